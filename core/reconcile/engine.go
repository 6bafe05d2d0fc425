package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/soptable/portal/core"
	"github.com/soptable/portal/core/user"
)

const tracerName = "github.com/soptable/portal/core/reconcile"

type (
	Engine struct {
		gw          Gateway
		logger      core.Logger
		metrics     *Metrics
		tracer      trace.Tracer
		notifier    Notifier
		callTimeout time.Duration
		newID       func() string
	}

	Option func(*Engine)
)

func WithLogger(logger core.Logger) Option { return func(e *Engine) { e.logger = logger } }

func WithMetrics(m *Metrics) Option { return func(e *Engine) { e.metrics = m } }

func WithTracer(t trace.Tracer) Option { return func(e *Engine) { e.tracer = t } }

func WithNotifier(n Notifier) Option { return func(e *Engine) { e.notifier = n } }

// WithCallTimeout bounds every single gateway call. Zero means no bound.
func WithCallTimeout(d time.Duration) Option { return func(e *Engine) { e.callTimeout = d } }

func NewEngine(gw Gateway, opts ...Option) *Engine {
	e := &Engine{
		gw:     gw,
		tracer: otel.Tracer(tracerName),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Reconcile processes candidates one after another, in input order, and reports one
// outcome per candidate. Once ctx is done no further candidate is started; the remaining
// ones are reported as errors. A gateway call already running is allowed to finish.
func (e *Engine) Reconcile(ctx context.Context, candidates []user.Candidate) Summary {
	start := time.Now()
	batchID := e.newID()
	ctx, span := e.tracer.Start(ctx, "reconcile.batch", trace.WithAttributes(
		attribute.String("batch.id", batchID),
		attribute.Int("batch.size", len(candidates)),
	))
	defer span.End()

	var aborted bool
	outcomes := make([]Outcome, 0, len(candidates))
	for i, c := range candidates {
		if err := ctx.Err(); err != nil {
			aborted = true
			outcomes = append(outcomes, rejected(i, c, "batch aborted: "+err.Error()))
			continue
		}
		outcomes = append(outcomes, e.reconcileOne(ctx, i, c))
	}

	sum := Report(outcomes)
	sum.BatchID = batchID

	span.SetAttributes(
		attribute.Int("batch.inserted", sum.Inserted),
		attribute.Int("batch.updated", sum.Updated),
		attribute.Int("batch.skipped", sum.Skipped),
		attribute.Int("batch.errors", len(sum.Errors)),
	)
	if aborted {
		span.SetStatus(codes.Error, "batch aborted")
	}
	e.metrics.ObserveBatch(start, sum, aborted)
	if e.logger != nil {
		e.logger.Info("batch reconciled", map[string]interface{}{
			"batch_id": batchID,
			"inserted": sum.Inserted,
			"updated":  sum.Updated,
			"skipped":  sum.Skipped,
			"errors":   len(sum.Errors),
			"aborted":  aborted,
			"took":     time.Since(start).String(),
		})
	}
	if e.notifier != nil {
		e.notifier.NotifyBatch(context.WithoutCancel(ctx), sum)
	}
	return sum
}

// reconcileOne walks a single candidate through validate -> match -> write.
// c is validated and reported as submitted; only the store sees the normalized email.
func (e *Engine) reconcileOne(ctx context.Context, idx int, c user.Candidate) Outcome {
	ctx, span := e.tracer.Start(ctx, "reconcile.candidate", trace.WithAttributes(attribute.Int("candidate.idx", idx)))
	defer span.End()

	out := e.decide(ctx, idx, c)
	span.SetAttributes(attribute.String("candidate.decision", string(out.Decision)))
	if out.Decision == DecisionError {
		span.SetStatus(codes.Error, out.Reason)
	}
	return out
}

func (e *Engine) decide(ctx context.Context, idx int, c user.Candidate) Outcome {
	if vr := Validate(c, idx); !vr.Valid {
		return rejected(idx, c, vr.Reason)
	}
	key := c.Normalized()

	var (
		match MatchResult
		err   error
	)
	e.call(ctx, func(ctx context.Context) { match, err = Match(ctx, key, e.gw) })
	if err != nil {
		e.logFailure(idx, c, err)
		return rejected(idx, c, err.Error())
	}

	switch {
	case !match.Found:
		e.call(ctx, func(ctx context.Context) { _, err = e.gw.InsertCandidate(ctx, key) })
		if err != nil {
			err = &PersistenceError{Op: "insert", Err: err}
			e.logFailure(idx, c, err)
			return rejected(idx, c, err.Error())
		}
		return Outcome{Index: idx, Email: c.Email.Value, Decision: DecisionInserted}

	case len(match.Diff) == 0:
		return Outcome{Index: idx, Email: c.Email.Value, Decision: DecisionSkipped}

	default:
		e.call(ctx, func(ctx context.Context) { err = e.gw.UpdateFields(ctx, match.StoredID, match.Diff) })
		if err != nil {
			err = &PersistenceError{Op: "update", Err: err}
			e.logFailure(idx, c, err)
			return rejected(idx, c, err.Error())
		}
		return Outcome{Index: idx, Email: c.Email.Value, Decision: DecisionUpdated, Changed: match.Diff.Fields()}
	}
}

// call runs fn detached from ctx cancellation, bounded by the per-call timeout.
func (e *Engine) call(ctx context.Context, fn func(ctx context.Context)) {
	callCtx := context.WithoutCancel(ctx)
	if e.callTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, e.callTimeout)
		defer cancel()
	}
	fn(callCtx)
}

func (e *Engine) logFailure(idx int, c user.Candidate, err error) {
	if e.logger == nil {
		return
	}
	e.logger.Warn(fmt.Sprintf("reconciling candidate %d", idx), err, map[string]interface{}{"email": c.Email.Value})
}

func rejected(idx int, c user.Candidate, reason string) Outcome {
	return Outcome{Index: idx, Email: c.Email.Value, Decision: DecisionError, Reason: reason}
}
