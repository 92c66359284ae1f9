package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorderCounts(t *testing.T) {
	r := NewWithRegisterer(prometheus.NewRegistry())

	r.RecordSkip("matured")
	r.RecordSkip("matured")
	r.RecordSkip("no-quote")
	r.RecordEnrichment("bond", true)
	r.RecordEnrichment("bond", false)
	r.RecordFetch("bond_board", "ok", 0.2)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.skips.WithLabelValues("matured")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.skips.WithLabelValues("no-quote")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.enrichments.WithLabelValues("bond", "degraded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.fetches.WithLabelValues("bond_board", "ok")))
}

func TestRecordersOnSeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewWithRegisterer(prometheus.NewRegistry())
		NewWithRegisterer(prometheus.NewRegistry())
	})
}
