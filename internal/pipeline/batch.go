package pipeline

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/humtech/outreach-cli/internal/model"
)

// BatchStats summarises a batch run. One lead's failure never aborts
// the batch; failures are counted and the rest keep flowing.
type BatchStats struct {
	Processed   int64 `json:"processed"`
	AutoSend    int64 `json:"auto_send"`
	NeedsReview int64 `json:"needs_review"`
	Blocked     int64 `json:"blocked"`
	Suppressed  int64 `json:"suppressed"`
	Failed      int64 `json:"failed"`
}

const defaultConcurrency = 4

// ProcessBatch runs every lead through the gate with bounded
// concurrency. Returns early only on context cancellation.
func (p *Pipeline) ProcessBatch(ctx context.Context, inputs []LeadInput) (*BatchStats, error) {
	concurrency := p.cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	var stats BatchStats

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, input := range inputs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			result := p.Process(ctx, input)
			atomic.AddInt64(&stats.Processed, 1)
			switch result.Outcome {
			case model.OutcomeAutoSend:
				atomic.AddInt64(&stats.AutoSend, 1)
			case model.OutcomeNeedsReview:
				atomic.AddInt64(&stats.NeedsReview, 1)
			case model.OutcomeBlocked:
				atomic.AddInt64(&stats.Blocked, 1)
			case model.OutcomeSuppressed:
				atomic.AddInt64(&stats.Suppressed, 1)
			case model.OutcomeFailed:
				atomic.AddInt64(&stats.Failed, 1)
			}
			return nil
		})
	}

	err := g.Wait()

	zap.L().Info("pipeline: batch complete",
		zap.Int64("processed", atomic.LoadInt64(&stats.Processed)),
		zap.Int64("auto_send", stats.AutoSend),
		zap.Int64("needs_review", stats.NeedsReview),
		zap.Int64("blocked", stats.Blocked),
		zap.Int64("suppressed", stats.Suppressed),
		zap.Int64("failed", stats.Failed),
	)

	return &stats, err
}
