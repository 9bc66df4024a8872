package logger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	mu      sync.Mutex
	batches [][]AggregatedLogEntry
}

func (p *capturePublisher) PublishMessage(_ context.Context, _ string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if batch, ok := payload.([]AggregatedLogEntry); ok {
		p.batches = append(p.batches, batch)
	}
	return nil
}

func (p *capturePublisher) all() []AggregatedLogEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []AggregatedLogEntry
	for _, b := range p.batches {
		out = append(out, b...)
	}
	return out
}

func TestCollectorDeduplicatesEntries(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{
		TimeInterval:   time.Hour,
		CountThreshold: 100,
		Topic:          "logs",
		Publisher:      pub,
	})

	for i := 0; i < 5; i++ {
		c.AddLog("error", "insert failed", map[string]interface{}{"table": "daily_summaries"}, "repo.go:42")
	}
	c.AddLog("error", "stream read failed", nil, "client.go:10")
	c.Close()

	// flush on close publishes asynchronously
	var got []AggregatedLogEntry
	deadline := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case <-deadline:
			t.Fatalf("expected 2 aggregated entries, got %d", len(got))
		case <-time.After(10 * time.Millisecond):
			got = pub.all()
		}
	}

	counts := map[string]int{}
	for _, e := range got {
		counts[e.Message] = e.Count
	}
	assert.Equal(t, 5, counts["insert failed"])
	assert.Equal(t, 1, counts["stream read failed"])
}

func TestCollectorFlushesOnThreshold(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{
		TimeInterval:   time.Hour,
		CountThreshold: 3,
		Topic:          "logs",
		Publisher:      pub,
	})
	defer c.Close()

	c.AddLog("error", "a", nil, "x")
	c.AddLog("error", "b", nil, "x")
	c.AddLog("error", "c", nil, "x")

	require.Eventually(t, func() bool {
		return len(pub.all()) == 3
	}, 2*time.Second, 10*time.Millisecond)
}
