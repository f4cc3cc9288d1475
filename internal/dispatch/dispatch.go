package dispatch

import (
	"context"

	"go.uber.org/zap"

	"github.com/humtech/outreach-cli/internal/model"
	"github.com/humtech/outreach-cli/internal/resilience"
	"github.com/humtech/outreach-cli/internal/store"
)

// Stats summarises a dispatch run.
type Stats struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// Dispatcher pulls sendable leads for a batch and pushes each to the
// sender, marking leads sent or failed as it goes.
type Dispatcher struct {
	store  store.Store
	sender Sender
}

// New creates a Dispatcher.
func New(st store.Store, sender Sender) *Dispatcher {
	return &Dispatcher{store: st, sender: sender}
}

// Run dispatches every sendable lead in the batch. A lead is sendable
// only while its status is personalised, so a second run for the same
// batch delivers nothing twice. One failed send never stops the rest.
func (d *Dispatcher) Run(ctx context.Context, batchDate string) (*Stats, error) {
	records, err := d.store.SendableLeads(ctx, batchDate)
	if err != nil {
		return nil, err
	}

	var stats Stats
	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return &stats, err
		}
		if d.send(ctx, record) {
			stats.Sent++
		} else {
			stats.Failed++
		}
	}

	zap.L().Info("dispatch: batch complete",
		zap.String("batch_date", batchDate),
		zap.Int("sent", stats.Sent),
		zap.Int("failed", stats.Failed),
	)
	return &stats, nil
}

func (d *Dispatcher) send(ctx context.Context, record model.DispatchRecord) bool {
	cfg := resilience.RetryOnce()
	cfg.OnRetry = resilience.RetryLogger("dispatch", "send")

	err := resilience.Do(ctx, cfg, func(ctx context.Context) error {
		return d.sender.Send(ctx, record)
	})
	if err != nil {
		zap.L().Error("dispatch: send failed",
			zap.String("lead", record.Email),
			zap.Error(err),
		)
		if serr := d.store.MarkLeadFailed(ctx, record.LeadID); serr != nil {
			zap.L().Error("dispatch: mark lead failed", zap.String("lead", record.Email), zap.Error(serr))
		}
		d.logEvent(ctx, record, model.EventSendFailed, err.Error())
		return false
	}

	if serr := d.store.MarkLeadSent(ctx, record.LeadID); serr != nil {
		zap.L().Error("dispatch: mark lead sent", zap.String("lead", record.Email), zap.Error(serr))
	}
	d.logEvent(ctx, record, model.EventSent, "")

	zap.L().Info("dispatch: lead sent",
		zap.String("lead", record.Email),
		zap.Int("rung", record.Rung),
	)
	return true
}

func (d *Dispatcher) logEvent(ctx context.Context, record model.DispatchRecord, kind model.EventKind, detail string) {
	err := d.store.LogEvent(ctx, model.Event{
		LeadID:    record.LeadID,
		AttemptID: record.AttemptID,
		Kind:      kind,
		Detail:    detail,
	})
	if err != nil {
		zap.L().Warn("dispatch: log event", zap.String("lead", record.Email), zap.Error(err))
	}
}
