// Package dispatcher implements the request loop of spec §4.8: rank
// candidate Provider Instances, visit at most two, retry each up to its
// own budget with backoff sleep between attempts, and fail closed with
// an aggregated error once every avenue is exhausted.
package dispatcher

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/cortexhub/llmgateway/internal/backoff"
	"github.com/cortexhub/llmgateway/internal/chatapi"
	"github.com/cortexhub/llmgateway/internal/gwerrors"
	"github.com/cortexhub/llmgateway/internal/provider"
)

// maxInstancesPerRequest caps how many ranked instances one request
// will visit (spec §4.8: "at most 2 instances per request").
const maxInstancesPerRequest = 2

// Registry is the subset of the Model Registry the dispatcher needs,
// kept as an interface so tests can supply a stub.
type Registry interface {
	Lookup(modelID string) []*provider.Instance
}

// Dispatcher runs spec §4.8's request loop against a Registry.
type Dispatcher struct {
	registry Registry
	tracer   oteltrace.Tracer
	logger   *zap.Logger
}

// New builds a Dispatcher over the given Registry.
func New(registry Registry, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		registry: registry,
		tracer:   otel.Tracer("llmgateway/dispatcher"),
		logger:   logger,
	}
}

// Dispatch runs the request loop for one incoming chat completion
// request and returns either a normalized response or a
// gwerrors.Error describing why every avenue failed.
func (d *Dispatcher) Dispatch(ctx context.Context, req *chatapi.Request) (*chatapi.Response, error) {
	traceID := uuid.New().String()
	log := d.logger.With(zap.String("trace_id", traceID), zap.String("model", req.Model))

	ranked := d.registry.Lookup(req.Model)
	if len(ranked) == 0 {
		return nil, gwerrors.New(gwerrors.KindUnknownModel, "no provider instances bound to model "+req.Model)
	}

	visit := ranked
	if len(visit) > maxInstancesPerRequest {
		visit = visit[:maxInstancesPerRequest]
	}

	var errs *multierror.Error
	anySkip := false

	for _, inst := range visit {
		maxRetries := inst.MaxRetries()
		if maxRetries <= 0 {
			maxRetries = 1
		}

		for attempt := 0; attempt < maxRetries; attempt++ {
			if attempt > 0 {
				delay := backoff.Delay(attempt - 1)
				log.Debug("backing off before retry",
					zap.String("instance", inst.Name()), zap.Int("attempt", attempt), zap.Duration("delay", delay))
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return nil, gwerrors.Wrap(gwerrors.KindNoCapacity, "request canceled during backoff", ctx.Err())
				}
			}

			spanCtx, span := d.tracer.Start(ctx, "provider_instance.attempt",
				oteltrace.WithAttributes(
					attribute.String("trace_id", traceID),
					attribute.String("provider_instance", inst.Name()),
					attribute.Int("attempt", attempt),
				))

			outcome := inst.Attempt(spanCtx, req)

			switch outcome.Kind {
			case provider.OutcomeOk:
				span.SetStatus(codes.Ok, "")
				span.End()
				return outcome.Response, nil

			case provider.OutcomeSkip:
				span.SetAttributes(attribute.String("skip_reason", string(outcome.Skip)))
				span.End()
				anySkip = true
				attempt = maxRetries // break inner loop without counting as a retry
				log.Debug("instance skipped", zap.String("instance", inst.Name()), zap.String("reason", string(outcome.Skip)))

			case provider.OutcomeFail:
				span.RecordError(outcome.Err)
				span.SetStatus(codes.Error, outcome.Err.Error())
				span.End()
				errs = multierror.Append(errs, outcome.Err)
				log.Warn("attempt failed", zap.String("instance", inst.Name()), zap.Int("attempt", attempt), zap.Error(outcome.Err))
			}
		}
	}

	if errs.ErrorOrNil() == nil {
		if anySkip {
			return nil, gwerrors.New(gwerrors.KindNoCapacity, "every ranked provider instance was unavailable")
		}
		return nil, gwerrors.New(gwerrors.KindNoCapacity, "no provider instance produced a result")
	}

	return nil, gwerrors.Wrap(gwerrors.KindNoCapacity, "all retries exhausted", errs.ErrorOrNil())
}
