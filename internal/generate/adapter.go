// Package generate adapts the pluggable generation capability to the
// engine's structured personalisation contract: versioned prompt in,
// schema-validated result with a provenance envelope out.
package generate

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/humtech/outreach-cli/internal/evidence"
	"github.com/humtech/outreach-cli/internal/model"
	"github.com/humtech/outreach-cli/pkg/anthropic"
)

// Request carries the per-invocation generation parameters. The prompt
// version travels with each call and is persisted per attempt; nothing is
// read from ambient state.
type Request struct {
	PromptVersion   string
	TemplateContext string
	Model           string
	MaxTokens       int64
	Timeout         time.Duration
}

// Generator produces a personalisation result for one lead.
type Generator interface {
	Generate(ctx context.Context, lead model.Lead, ledger *evidence.Ledger, req Request) (*model.PersonalisationResult, error)
}

// Adapter implements Generator on top of the Anthropic client.
type Adapter struct {
	client anthropic.Client
}

// NewAdapter creates a generator backed by the given capability client.
func NewAdapter(client anthropic.Client) *Adapter {
	return &Adapter{client: client}
}

const defaultMaxTokens = 500

// Generate runs one personalisation call. It short-circuits with
// MissingRequiredFieldError before invoking the capability, requests a
// structured result, and strict-parses it against the schema. The returned
// result carries the mandatory provenance fields (prompt version, model,
// timestamp).
func (a *Adapter) Generate(ctx context.Context, lead model.Lead, ledger *evidence.Ledger, req Request) (*model.PersonalisationResult, error) {
	if missing := requiredGenerationFields(lead); len(missing) > 0 {
		return nil, &MissingRequiredFieldError{Fields: missing}
	}

	prompt, err := BuildPrompt(req.PromptVersion, lead, ledger, req.TemplateContext)
	if err != nil {
		return nil, err
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	callCtx := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	resp, err := a.client.CreateMessage(callCtx, anthropic.MessageRequest{
		Model:     req.Model,
		MaxTokens: maxTokens,
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return nil, classifyCapabilityError(err)
	}

	resp.Usage.LogCost(req.Model, "personalise")

	result, err := parseResult(resp.Text())
	if err != nil {
		zap.L().Warn("generate: capability output failed schema validation",
			zap.String("lead", lead.Email),
			zap.Error(err),
		)
		return nil, err
	}

	result.PromptVersion = req.PromptVersion
	result.Model = resp.Model
	if result.Model == "" {
		result.Model = req.Model
	}
	result.GeneratedAt = time.Now().UTC()

	return result, nil
}

// requiredGenerationFields checks the subset of lead fields the capability
// call itself depends on. Email is gated upstream by the pipeline.
func requiredGenerationFields(lead model.Lead) []string {
	var missing []string
	if lead.FirstName == "" {
		missing = append(missing, "first_name")
	}
	if lead.Company == "" {
		missing = append(missing, "company")
	}
	if lead.Title == "" {
		missing = append(missing, "title")
	}
	return missing
}

func classifyCapabilityError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &CapabilityError{Kind: CapabilityTimeout, Err: err}
	}
	return &CapabilityError{Kind: CapabilityUnavailable, Err: err}
}
