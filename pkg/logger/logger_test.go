package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	mu       sync.Mutex
	topics   []string
	payloads [][]byte
}

func (p *capturePublisher) Publish(_ context.Context, topic string, _ []byte, value interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, value.([]byte))
	return nil
}

func TestLoggerWritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, "debug").With(String("component", "enricher"))

	l.Warn("price fallback", String("ticker", "SBER"), Float64("price", 250.5), Error(errors.New("timeout")))

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "price fallback", line["message"])
	assert.Equal(t, "enricher", line["component"])
	assert.Equal(t, "SBER", line["ticker"])
	assert.Equal(t, 250.5, line["price"])
	assert.Equal(t, "timeout", line["error"])
}

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, "warn")
	l.Debug("hidden")
	l.Info("hidden")
	assert.Zero(t, buf.Len())
}

func TestCollectorAggregatesDuplicates(t *testing.T) {
	pub := &capturePublisher{}
	l := NewWriter(&bytes.Buffer{}, "error")
	l.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 10, Topic: "logs", Source: "moexpull", Publisher: pub})

	for i := 0; i < 3; i++ {
		l.Error("fetch failed", String("endpoint", "bond_board"))
	}
	l.Error("fetch failed", String("endpoint", "dividends"))
	assert.Equal(t, 2, l.collector.Pending())

	l.RemoveCollector()

	require.Len(t, pub.payloads, 1)
	assert.Equal(t, "logs", pub.topics[0])

	var batch logBatch
	require.NoError(t, json.Unmarshal(pub.payloads[0], &batch))
	assert.Equal(t, "moexpull", batch.Source)
	require.Len(t, batch.Entries, 2)
	total := 0
	for _, e := range batch.Entries {
		total += e.Count
	}
	assert.Equal(t, 4, total)
}

func TestCollectorFlushesAtThreshold(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 2, Topic: "logs", Publisher: pub})

	c.AddLog("error", "a", nil, "x.go:1")
	c.AddLog("error", "b", nil, "x.go:2")
	assert.Equal(t, 0, c.Pending())

	c.Close()
	pub.mu.Lock()
	defer pub.mu.Unlock()
	assert.Len(t, pub.payloads, 1)
}
