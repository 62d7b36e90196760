// Package provider implements the Provider Instance of spec §4.5: the
// unit at which a translator, its key rotator, rate trackers, circuit
// breaker, and response-time metrics are bundled and scored for
// ranking by the Model Registry.
package provider

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/cortexhub/llmgateway/internal/breaker"
	"github.com/cortexhub/llmgateway/internal/chatapi"
	"github.com/cortexhub/llmgateway/internal/clock"
	"github.com/cortexhub/llmgateway/internal/gwerrors"
	"github.com/cortexhub/llmgateway/internal/keypool"
	"github.com/cortexhub/llmgateway/internal/metrics"
	"github.com/cortexhub/llmgateway/internal/translator"
)

// OutcomeKind tags what happened during one Attempt call.
type OutcomeKind int

const (
	// OutcomeOk means the upstream call succeeded; Response is set.
	OutcomeOk OutcomeKind = iota
	// OutcomeSkip means this instance could not be tried at all (breaker
	// open, or no key passed its budget check) — not counted as a retry.
	OutcomeSkip
	// OutcomeFail means the upstream call was attempted and failed.
	OutcomeFail
)

// SkipReason names why an instance returned OutcomeSkip.
type SkipReason string

const (
	SkipReasonOpen  SkipReason = "open"
	SkipReasonNoKey SkipReason = "no_key"
)

// Outcome is the result of one Instance.Attempt call, per spec §4.5.
type Outcome struct {
	Kind     OutcomeKind
	Response *chatapi.Response
	Skip     SkipReason
	Err      error
}

// Config bundles everything one Provider Instance is built from.
type Config struct {
	Name           string
	PublicModel    string
	UpstreamModels []string
	Priority       int
	Timeout        time.Duration
	MaxRetries     int
	Translator     translator.Translator
	Keys           []*keypool.Key
	ResponseWindow int
}

// Instance is one (model, upstream endpoint, credential pool) binding.
type Instance struct {
	name        string
	publicModel string
	priority    int
	timeout     time.Duration
	maxRetries  int

	translator translator.Translator
	rotator    *keypool.Rotator
	br         *breaker.Breaker
	window     *metrics.Window
	collector  *metrics.Collector
	logger     *zap.Logger

	upstreamModels []string
	modelCursor    atomic.Uint64
}

// New builds an Instance in the closed/healthy state.
func New(cfg Config, clk clock.Clock, collector *metrics.Collector, logger *zap.Logger) *Instance {
	if logger == nil {
		logger = zap.NewNop()
	}
	windowSize := cfg.ResponseWindow
	return &Instance{
		name:           cfg.Name,
		publicModel:    cfg.PublicModel,
		priority:       cfg.Priority,
		timeout:        cfg.Timeout,
		maxRetries:     cfg.MaxRetries,
		translator:     cfg.Translator,
		rotator:        keypool.New(cfg.Keys, clk, logger.With(zap.String("instance", cfg.Name))),
		br:             breaker.New(clk, logger.With(zap.String("instance", cfg.Name))),
		window:         metrics.NewWindow(windowSize),
		collector:      collector,
		logger:         logger,
		upstreamModels: cfg.UpstreamModels,
	}
}

// Name returns the instance's name, injected into responses as the
// `provider` field.
func (i *Instance) Name() string { return i.name }

// PublicModel returns the model id this instance is bound to, used as
// half of the "{model_id}::{instance_name}" durable snapshot key.
func (i *Instance) PublicModel() string { return i.publicModel }

// MaxRetries returns this instance's key-attempt budget (spec §4.8).
func (i *Instance) MaxRetries() int { return i.maxRetries }

// Priority returns the instance's configured priority, for the stats
// endpoint.
func (i *Instance) Priority() int { return i.priority }

// Enabled reports whether the instance is currently able to accept an
// attempt — i.e. its breaker is not tripped open. A half-open breaker
// still admits a probe, so it counts as enabled.
func (i *Instance) Enabled() bool { return i.br.State() != breaker.StateOpen }

// Breaker exposes the instance's breaker for the stats endpoint and the
// metrics snapshot writer.
func (i *Instance) Breaker() *breaker.Breaker { return i.br }

// Rotator exposes the instance's key rotator for the stats endpoint.
func (i *Instance) Rotator() *keypool.Rotator { return i.rotator }

// Window exposes the instance's rolling response-time window for the
// stats endpoint and the metrics snapshot writer.
func (i *Instance) Window() *metrics.Window { return i.window }

// Attempt implements spec §4.5's state machine.
func (i *Instance) Attempt(ctx context.Context, req *chatapi.Request) Outcome {
	if !i.br.Permit() {
		return Outcome{Kind: OutcomeSkip, Skip: SkipReasonOpen}
	}

	key, ok := i.rotator.Next()
	if !ok {
		return Outcome{Kind: OutcomeSkip, Skip: SkipReasonNoKey}
	}
	key.Tracker.Commit(key.Tracker.PreflightCharge())

	upstreamModel := i.nextUpstreamModel()
	params := translator.Params{UpstreamModel: upstreamModel, Timeout: i.timeout}

	translated, err := i.translator.TranslateRequest(req, params)
	if err != nil {
		return i.fail(key, err)
	}

	callCtx := ctx
	var cancel context.CancelFunc
	if i.timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := i.translator.Execute(callCtx, translated, key.Credential, params)
	duration := time.Since(start)
	if err != nil {
		i.recordAttempt("fail", duration, 0, 0, 0)
		return i.fail(key, err)
	}

	resp, err := i.translator.Normalize(raw, i.publicModel, i.name)
	if err != nil {
		i.recordAttempt("fail", duration, 0, 0, 0)
		return i.fail(key, err)
	}

	charge := key.Tracker.PostflightCharge(float64(resp.Usage.PromptTokens), float64(resp.Usage.CompletionTokens))
	key.Tracker.Commit(charge)
	i.rotator.RecordSuccess(key)
	i.br.RecordSuccess()
	i.window.Add(duration.Seconds())
	i.recordAttempt("ok", duration, resp.Usage.PromptTokens, resp.Usage.CompletionTokens, charge.Credits)

	return Outcome{Kind: OutcomeOk, Response: resp}
}

func (i *Instance) fail(key *keypool.Key, err error) Outcome {
	i.rotator.RecordFailure(key)
	i.br.RecordFailure()
	return Outcome{Kind: OutcomeFail, Err: gwerrors.Wrap(gwerrors.KindUpstreamFailure, "provider instance attempt", err)}
}

func (i *Instance) recordAttempt(status string, duration time.Duration, promptTokens, completionTokens int, credits float64) {
	if i.collector == nil {
		return
	}
	i.collector.RecordAttempt(i.publicModel, i.name, status, duration, promptTokens, completionTokens, credits)
}

// nextUpstreamModel advances the per-instance round-robin cursor over
// configured upstream model ids (spec §9: "cursor is per instance,
// advanced exactly once per outcome").
func (i *Instance) nextUpstreamModel() string {
	n := uint64(len(i.upstreamModels))
	if n == 0 {
		return i.publicModel
	}
	idx := i.modelCursor.Add(1) - 1
	return i.upstreamModels[idx%n]
}

// HealthScore computes spec §4.5.1's score from current breaker state,
// consecutive failures, and average response latency, scaled by
// priority. Safe to call concurrently with Attempt.
func (i *Instance) HealthScore() float64 {
	snap := i.br.Snapshot()

	score := 100.0
	switch snap.State {
	case breaker.StateOpen:
		score -= 100
	case breaker.StateHalfOpen:
		score -= 50
	}

	failurePenalty := float64(snap.ConsecutiveFailures) * 10
	if failurePenalty > 40 {
		failurePenalty = 40
	}
	score -= failurePenalty

	latencyPenalty := i.window.Avg() * 10
	if latencyPenalty > 30 {
		latencyPenalty = 30
	}
	score -= latencyPenalty

	if score < 0 {
		score = 0
	}

	priorityFactor := 1.0 - 0.10*float64(i.priority)
	if priorityFactor < 0 {
		priorityFactor = 0
	}
	return score * priorityFactor
}
