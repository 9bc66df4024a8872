package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"PulseCast/internal/domain/models"
	"PulseCast/internal/domain/repository"
	pkgkafka "PulseCast/pkg/kafka"
)

const summaryColumns = "date, resting_hr, hrv_daily_rmssd, sleep_duration_min, sleep_deep_min, sleep_rem_min, spo2_avg, br_full_sleep, steps, calories_active, active_zone_min, skin_temp_variation"

// ClickHouseStorage implements Storage for ClickHouse.
type ClickHouseStorage struct {
	db    *sql.DB
	table string
}

// NewClickHouseStorage creates ClickHouse storage.
func NewClickHouseStorage(db *sql.DB, table string) repository.Storage {
	return &ClickHouseStorage{db: db, table: table}
}

func (s *ClickHouseStorage) Init(ctx context.Context) error {
	return nil // Schema init in pkg
}

func (s *ClickHouseStorage) Store(ctx context.Context, d *models.DailySummary) error {
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", s.table, summaryColumns)
	_, err := s.db.ExecContext(ctx, q, summaryArgs(d)...)
	return err
}

func (s *ClickHouseStorage) StoreBatch(ctx context.Context, summaries []*models.DailySummary) error {
	if len(summaries) == 0 {
		return nil
	}
	// Batch insert using VALUES multi-row to reduce round-trips.
	const chunkSize = 500
	for start := 0; start < len(summaries); start += chunkSize {
		end := start + chunkSize
		if end > len(summaries) {
			end = len(summaries)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*12)
		for _, d := range summaries[start:end] {
			if d == nil || d.Date.IsZero() {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args, summaryArgs(d)...)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", s.table, summaryColumns, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return err
		}
	}
	return nil
}

func (s *ClickHouseStorage) Query(ctx context.Context, from, to time.Time, limit int) ([]*models.DailySummary, error) {
	q := fmt.Sprintf("SELECT %s FROM %s WHERE date >= ? AND date <= ? ORDER BY date ASC LIMIT ?", summaryColumns, s.table)
	rows, err := s.db.QueryContext(ctx, q, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.DailySummary
	for rows.Next() {
		d, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *ClickHouseStorage) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseStorage) Close() error {
	return nil // Managed by pkg
}

func summaryArgs(d *models.DailySummary) []interface{} {
	return []interface{}{
		d.Date,
		d.RestingHR,
		d.HRVRMSSD,
		d.SleepDurationMin,
		d.SleepDeepMin,
		d.SleepRemMin,
		d.SpO2Avg,
		d.BreathingRate,
		d.Steps,
		d.CaloriesActive,
		d.ActiveZoneMin,
		d.SkinTempVariation,
	}
}

func scanSummary(rows *sql.Rows) (*models.DailySummary, error) {
	var d models.DailySummary
	if err := rows.Scan(
		&d.Date,
		&d.RestingHR,
		&d.HRVRMSSD,
		&d.SleepDurationMin,
		&d.SleepDeepMin,
		&d.SleepRemMin,
		&d.SpO2Avg,
		&d.BreathingRate,
		&d.Steps,
		&d.CaloriesActive,
		&d.ActiveZoneMin,
		&d.SkinTempVariation,
	); err != nil {
		return nil, fmt.Errorf("scan summary: %w", err)
	}
	return &d, nil
}

// KafkaPublisher implements Publisher for Kafka.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaPublisher creates Kafka publisher.
func NewKafkaPublisher(producer *pkgkafka.Producer, topic string) repository.Publisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, d *models.DailySummary) error {
	return p.producer.Publish(ctx, p.topic, []byte(d.Date.Format("2006-01-02")), d)
}

func (p *KafkaPublisher) PublishBatch(ctx context.Context, summaries []*models.DailySummary) error {
	if len(summaries) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(summaries))
	for i, d := range summaries {
		msgs[i] = pkgkafka.Message{
			Key:   []byte(d.Date.Format("2006-01-02")),
			Value: d,
		}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
