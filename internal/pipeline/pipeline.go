// Package pipeline orchestrates the per-lead quality gate: suppression
// check, evidence ledger, generation, truth validation, rung clamping,
// routing and audit recording.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/humtech/outreach-cli/internal/evidence"
	"github.com/humtech/outreach-cli/internal/generate"
	"github.com/humtech/outreach-cli/internal/model"
	"github.com/humtech/outreach-cli/internal/resilience"
	"github.com/humtech/outreach-cli/internal/review"
	"github.com/humtech/outreach-cli/internal/rung"
	"github.com/humtech/outreach-cli/internal/store"
	"github.com/humtech/outreach-cli/internal/truth"
)

// Config carries the batch-invariant pipeline parameters.
type Config struct {
	PromptVersion     string        `yaml:"prompt_version" mapstructure:"prompt_version"`
	Model             string        `yaml:"model" mapstructure:"model"`
	TemplateContext   string        `yaml:"template_context" mapstructure:"template_context"`
	MaxTokens         int64         `yaml:"max_tokens" mapstructure:"max_tokens"`
	GenerationTimeout time.Duration `yaml:"generation_timeout" mapstructure:"generation_timeout"`
	Concurrency       int           `yaml:"concurrency" mapstructure:"concurrency"`
}

// LeadInput is one unit of batch input: the lead plus its enrichment
// signals as sourced upstream.
type LeadInput struct {
	Lead    model.Lead     `json:"lead"`
	Signals []model.Signal `json:"signals,omitempty"`
}

// LeadResult reports what happened to one lead. Err is set only for
// infrastructure failures; policy blocks are ordinary outcomes.
type LeadResult struct {
	Lead    model.Lead
	Attempt *model.Attempt
	Outcome model.Outcome
	Err     error
}

// Pipeline runs leads through the quality gate.
type Pipeline struct {
	store     store.Store
	generator generate.Generator
	validator *truth.Validator
	cfg       Config
}

// New assembles a pipeline. A nil validator falls back to the built-in
// denylist.
func New(st store.Store, gen generate.Generator, validator *truth.Validator, cfg Config) *Pipeline {
	if validator == nil {
		validator = truth.New(nil)
	}
	return &Pipeline{store: st, generator: gen, validator: validator, cfg: cfg}
}

// Process runs one lead through the gate end to end. It always returns
// a LeadResult; a non-nil Err means an infrastructure fault that marked
// the lead failed, never a policy decision.
func (p *Pipeline) Process(ctx context.Context, input LeadInput) LeadResult {
	lead, err := p.store.UpsertLead(ctx, input.Lead)
	if err != nil {
		return LeadResult{Lead: input.Lead, Outcome: model.OutcomeFailed, Err: err}
	}

	suppressed, err := p.store.IsSuppressed(ctx, lead.Email)
	if err != nil {
		return p.fail(ctx, *lead, nil, err)
	}
	if suppressed {
		return p.suppress(ctx, *lead)
	}

	ledger := p.buildLedger(*lead, input.Signals)

	// Gate on required fields before any capability call is paid for.
	if missing := lead.MissingRequiredFields(); len(missing) > 0 {
		return p.block(ctx, *lead, ledger.Signals(), fmt.Sprintf("missing required fields: %s", strings.Join(missing, ", ")))
	}

	result, err := p.generate(ctx, *lead, ledger)
	if err != nil {
		var mfe *generate.MissingRequiredFieldError
		if errors.As(err, &mfe) {
			return p.block(ctx, *lead, ledger.Signals(), mfe.Error())
		}
		return p.fail(ctx, *lead, ledger.Signals(), err)
	}

	result = p.validator.Validate(result, ledger)
	result = rung.Apply(result, ledger, *lead)
	disposition, reason := review.Route(*lead, result)

	attempt := &model.Attempt{
		LeadID:        lead.ID,
		BatchDate:     lead.BatchDate,
		Ledger:        ledger.Signals(),
		Result:        result,
		Disposition:   disposition,
		Outcome:       model.Outcome(disposition),
		RouteReason:   reason,
		PromptVersion: result.PromptVersion,
		Model:         result.Model,
	}

	if err := p.record(ctx, attempt); err != nil {
		return p.fail(ctx, *lead, ledger.Signals(), err)
	}

	if err := p.store.UpdateLeadStatus(ctx, lead.ID, model.LeadStatusPersonalised); err != nil {
		zap.L().Warn("pipeline: update lead status", zap.String("lead", lead.Email), zap.Error(err))
	}
	p.logEvent(ctx, model.Event{
		LeadID:    lead.ID,
		AttemptID: attempt.ID,
		Kind:      eventKind(disposition),
		Detail:    reason,
	})

	zap.L().Info("pipeline: lead processed",
		zap.String("lead", lead.Email),
		zap.String("disposition", string(disposition)),
		zap.String("reason", reason),
		zap.Int("rung", result.Rung),
	)

	return LeadResult{Lead: *lead, Attempt: attempt, Outcome: attempt.Outcome}
}

// buildLedger drops invalid signals and keeps going; a bad signal must
// never sink the lead.
func (p *Pipeline) buildLedger(lead model.Lead, signals []model.Signal) *evidence.Ledger {
	ledger, err := evidence.Build(signals)
	if err != nil {
		zap.L().Warn("pipeline: invalid signals dropped",
			zap.String("lead", lead.Email),
			zap.Error(err),
		)
	}
	return ledger
}

// generate invokes the capability with a single retry. Schema violations
// and capability faults both qualify: a second call often produces
// conforming output or lands after a blip.
func (p *Pipeline) generate(ctx context.Context, lead model.Lead, ledger *evidence.Ledger) (*model.PersonalisationResult, error) {
	cfg := resilience.RetryOnce()
	cfg.ShouldRetry = retryableGeneration
	cfg.OnRetry = resilience.RetryLogger("pipeline", "generate")

	req := generate.Request{
		PromptVersion:   p.cfg.PromptVersion,
		TemplateContext: p.cfg.TemplateContext,
		Model:           p.cfg.Model,
		MaxTokens:       p.cfg.MaxTokens,
		Timeout:         p.cfg.GenerationTimeout,
	}

	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (*model.PersonalisationResult, error) {
		return p.generator.Generate(ctx, lead, ledger, req)
	})
}

func retryableGeneration(err error) bool {
	var sve *generate.SchemaViolationError
	if errors.As(err, &sve) {
		return true
	}
	var ce *generate.CapabilityError
	if errors.As(err, &ce) {
		return true
	}
	return resilience.IsTransient(err)
}

// record persists the attempt with a single retry. Losing the audit
// record is worse than losing the generation, so a lead whose attempt
// cannot be recorded is failed.
func (p *Pipeline) record(ctx context.Context, attempt *model.Attempt) error {
	cfg := resilience.RetryOnce()
	cfg.ShouldRetry = func(err error) bool {
		var pe *store.PersistenceError
		return errors.As(err, &pe) || resilience.IsTransient(err)
	}
	cfg.OnRetry = resilience.RetryLogger("pipeline", "record attempt")

	return resilience.Do(ctx, cfg, func(ctx context.Context) error {
		return p.store.RecordAttempt(ctx, attempt)
	})
}

func (p *Pipeline) suppress(ctx context.Context, lead model.Lead) LeadResult {
	if err := p.store.UpdateLeadStatus(ctx, lead.ID, model.LeadStatusSuppressed); err != nil {
		zap.L().Warn("pipeline: mark lead suppressed", zap.String("lead", lead.Email), zap.Error(err))
	}
	p.logEvent(ctx, model.Event{LeadID: lead.ID, Kind: model.EventSuppressed})

	zap.L().Info("pipeline: lead suppressed", zap.String("lead", lead.Email))
	return LeadResult{Lead: lead, Outcome: model.OutcomeSuppressed}
}

// block records a blocked attempt that never reached the capability.
// The snapshot carries the built ledger, not the raw input signals.
func (p *Pipeline) block(ctx context.Context, lead model.Lead, ledger []model.Signal, reason string) LeadResult {
	attempt := &model.Attempt{
		LeadID:        lead.ID,
		BatchDate:     lead.BatchDate,
		Ledger:        ledger,
		Disposition:   model.DispositionBlocked,
		Outcome:       model.OutcomeBlocked,
		RouteReason:   reason,
		PromptVersion: p.cfg.PromptVersion,
	}
	if err := p.record(ctx, attempt); err != nil {
		return p.fail(ctx, lead, ledger, err)
	}
	if err := p.store.UpdateLeadStatus(ctx, lead.ID, model.LeadStatusPersonalised); err != nil {
		zap.L().Warn("pipeline: update lead status", zap.String("lead", lead.Email), zap.Error(err))
	}
	p.logEvent(ctx, model.Event{LeadID: lead.ID, AttemptID: attempt.ID, Kind: model.EventBlocked, Detail: reason})

	zap.L().Info("pipeline: lead blocked", zap.String("lead", lead.Email), zap.String("reason", reason))
	return LeadResult{Lead: lead, Attempt: attempt, Outcome: model.OutcomeBlocked}
}

// fail marks the lead failed after retries are exhausted. The failed
// attempt is still recorded best-effort so the batch report can show it.
func (p *Pipeline) fail(ctx context.Context, lead model.Lead, ledger []model.Signal, cause error) LeadResult {
	attempt := &model.Attempt{
		LeadID:        lead.ID,
		BatchDate:     lead.BatchDate,
		Ledger:        ledger,
		Outcome:       model.OutcomeFailed,
		RouteReason:   cause.Error(),
		PromptVersion: p.cfg.PromptVersion,
	}
	if err := p.store.RecordAttempt(ctx, attempt); err != nil {
		zap.L().Error("pipeline: record failed attempt", zap.String("lead", lead.Email), zap.Error(err))
		attempt = nil
	}

	if err := p.store.MarkLeadFailed(ctx, lead.ID); err != nil {
		zap.L().Error("pipeline: mark lead failed", zap.String("lead", lead.Email), zap.Error(err))
	}
	event := model.Event{LeadID: lead.ID, Kind: model.EventFailed, Detail: cause.Error()}
	if attempt != nil {
		event.AttemptID = attempt.ID
	}
	p.logEvent(ctx, event)

	zap.L().Error("pipeline: lead failed", zap.String("lead", lead.Email), zap.Error(cause))
	return LeadResult{Lead: lead, Attempt: attempt, Outcome: model.OutcomeFailed, Err: cause}
}

func (p *Pipeline) logEvent(ctx context.Context, event model.Event) {
	if err := p.store.LogEvent(ctx, event); err != nil {
		zap.L().Warn("pipeline: log event", zap.String("lead", event.LeadID), zap.Error(err))
	}
}

func eventKind(d model.Disposition) model.EventKind {
	if d == model.DispositionBlocked {
		return model.EventBlocked
	}
	return model.EventGenerated
}
