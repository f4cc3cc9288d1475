// Package monitoring watches batch outcomes and raises webhook alerts
// when block or failure rates climb past configured thresholds.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/humtech/outreach-cli/internal/store"
)

// MetricsSnapshot holds a point-in-time view of one batch.
type MetricsSnapshot struct {
	AutoSend    int `json:"auto_send"`
	NeedsReview int `json:"needs_review"`
	Blocked     int `json:"blocked"`
	Failed      int `json:"failed"`

	// Finished counts every lead with a recorded attempt.
	Finished  int     `json:"finished"`
	BlockRate float64 `json:"block_rate"`
	FailRate  float64 `json:"fail_rate"`

	BatchDate   string    `json:"batch_date"`
	CollectedAt time.Time `json:"collected_at"`
}

// Collector gathers batch metrics from the store.
type Collector struct {
	store store.Store
}

// NewCollector creates a Collector backed by the given store.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st}
}

// Collect builds a metrics snapshot for the batch date.
func (c *Collector) Collect(ctx context.Context, batchDate string) (*MetricsSnapshot, error) {
	counts, err := c.store.BatchCounts(ctx, batchDate)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: batch counts")
	}

	snap := &MetricsSnapshot{
		AutoSend:    counts.AutoSend,
		NeedsReview: counts.NeedsReview,
		Blocked:     counts.Blocked,
		Failed:      counts.Failed,
		BatchDate:   batchDate,
		CollectedAt: time.Now().UTC(),
	}
	snap.Finished = counts.AutoSend + counts.NeedsReview + counts.Blocked + counts.Failed
	if snap.Finished > 0 {
		snap.BlockRate = float64(counts.Blocked) / float64(snap.Finished)
		snap.FailRate = float64(counts.Failed) / float64(snap.Finished)
	}

	return snap, nil
}
