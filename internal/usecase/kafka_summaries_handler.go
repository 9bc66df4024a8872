package usecase

import (
	"context"
	"encoding/json"
	"time"

	"PulseCast/internal/domain/models"
	domrepo "PulseCast/internal/domain/repository"
	pkgkafka "PulseCast/pkg/kafka"
)

// KafkaSummariesHandler consumes daily summary messages and writes them
// to storage.
type KafkaSummariesHandler struct {
	topic   string
	storage domrepo.Storage
	metrics domrepo.Metrics
}

func NewKafkaSummariesHandler(topic string, storage domrepo.Storage, metrics domrepo.Metrics) *KafkaSummariesHandler {
	return &KafkaSummariesHandler{topic: topic, storage: storage, metrics: metrics}
}

func (h *KafkaSummariesHandler) Topic() string { return h.topic }

func (h *KafkaSummariesHandler) Handle(ctx context.Context, b []byte) error {
	var s models.DailySummary
	if err := json.Unmarshal(b, &s); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}

	start := time.Now()
	err := h.storage.Store(ctx, &s)
	h.metrics.RecordLatency("ch_insert_seconds", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	h.metrics.RecordSummaryIngested("clickhouse")
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaSummariesHandler)(nil)
