package gate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zero-day-ai/semgate/semerr"
)

// sinkTimeout bounds the report summary write.
const sinkTimeout = 2 * time.Second

// run is the state of one validation call. It is confined to the calling
// goroutine; the cache memoizes every rule evaluated during the call.
type run struct {
	e       *Engine
	snap    *snapshot
	target  any
	context map[string]any
	cache   map[string]Result
	active  map[string]bool
}

func (e *Engine) newRun(target any, hints map[string]any) *run {
	return &run{
		e:       e,
		snap:    e.snapshot(),
		target:  target,
		context: hints,
		cache:   make(map[string]Result),
		active:  make(map[string]bool),
	}
}

// ValidateRule evaluates one rule, evaluating its dependencies first. It
// returns a not-found error for ids that are unregistered or removed.
func (e *Engine) ValidateRule(ctx context.Context, id string, target any, hints map[string]any) (Result, error) {
	r := e.newRun(target, hints)
	if _, ok := r.snap.rules[id]; !ok {
		e.mu.RLock()
		err := e.missingRule("gate.ValidateRule", id)
		e.mu.RUnlock()
		return Result{}, err
	}
	return r.evaluate(ctx, id), nil
}

// ValidateGate evaluates every rule of g in dependency order and aggregates
// the verdict. Disabled rules appear as SKIPPED.
func (e *Engine) ValidateGate(ctx context.Context, g Gate, target any, hints map[string]any) (Verdict, error) {
	if !g.Valid() {
		return Verdict{}, semerr.InvalidGate("gate.ValidateGate", g.String())
	}
	return e.newRun(target, hints).gate(ctx, g), nil
}

// ValidateAll evaluates every gate in canonical order with one shared run
// cache. Cancellation is honored between gates: once ctx is done the
// remaining gates are not started, and the partial report is returned with
// Cancelled set together with ctx's error. A running rule is never
// interrupted by cancellation.
func (e *Engine) ValidateAll(ctx context.Context, target any, hints map[string]any) (Report, error) {
	runID := e.newRunID()
	ctx, span := e.tracer.Start(ctx, "gate.validate_all", trace.WithAttributes(attribute.String("semgate.run_id", runID)))
	defer span.End()

	r := e.newRun(target, hints)
	verdicts := make([]Verdict, 0, len(Gates()))
	var cancelErr error
	for _, g := range Gates() {
		if err := ctx.Err(); err != nil {
			cancelErr = err
			break
		}
		verdicts = append(verdicts, r.gate(ctx, g))
	}

	rep := Aggregate(runID, TargetID(target), e.now(), verdicts)
	rep.Cancelled = cancelErr != nil

	span.SetAttributes(
		attribute.Bool("semgate.overall_pass", rep.OverallPass),
		attribute.Int("semgate.blocking_failures", len(rep.BlockingFailures)),
	)
	if cancelErr != nil {
		span.SetStatus(codes.Error, cancelErr.Error())
		e.logger.WarnContext(ctx, "validation cancelled",
			"run_id", runID,
			"target_id", rep.TargetID,
			"gates_evaluated", len(verdicts))
		return rep, cancelErr
	}
	span.SetStatus(codes.Ok, "")

	e.logger.InfoContext(ctx, "validation complete",
		"run_id", runID,
		"target_id", rep.TargetID,
		"overall_pass", rep.OverallPass,
		"blocking_failures", rep.BlockingFailures)
	e.store(ctx, rep)
	return rep, nil
}

// store hands a report summary to the sink. Failures are logged only.
func (e *Engine) store(ctx context.Context, rep Report) {
	if e.sink == nil {
		return
	}
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sinkTimeout)
	defer cancel()

	key := "semgate:report:" + rep.RunID
	ok, err := e.sink.Store(sctx, key, rep, int(e.resultTTL/time.Second))
	switch {
	case err != nil:
		e.logger.WarnContext(ctx, "failed to store validation report", "key", key, "error", err)
	case !ok:
		e.logger.WarnContext(ctx, "validation report not stored", "key", key)
	}
}

func (r *run) gate(ctx context.Context, g Gate) Verdict {
	ctx, span := r.e.tracer.Start(ctx, "gate.validate_gate", trace.WithAttributes(attribute.String("semgate.gate", g.String())))
	defer span.End()

	order := r.snap.gateOrder(g)
	results := make([]Result, 0, len(order))
	for _, id := range order {
		results = append(results, r.evaluate(ctx, id))
	}
	v := NewVerdict(g, results)

	span.SetAttributes(attribute.Bool("semgate.gate.pass", v.Pass), attribute.Int("semgate.gate.rules", len(results)))
	r.e.metrics.recordVerdict(ctx, v)
	for _, o := range r.e.observers {
		o.ObserveVerdict(ctx, v)
	}
	return v
}

// evaluate returns the memoized result of id, computing it on first use.
// id must be present in the snapshot.
func (r *run) evaluate(ctx context.Context, id string) Result {
	if res, ok := r.cache[id]; ok {
		return res
	}
	ent := r.snap.rules[id]
	if r.active[id] {
		// Unreachable while the registry rejects cycles.
		return r.record(ctx, r.result(ent.rule, Failed("dependency cycle", map[string]any{"rule_id": id}), 0))
	}
	r.active[id] = true
	defer delete(r.active, id)

	if ent.state != StateEnabled {
		return r.record(ctx, r.result(ent.rule, Skip("rule disabled"), 0))
	}

	deps := make(map[string]Result, len(ent.rule.DependsOn))
	var unmet []string
	for _, dep := range ent.rule.DependsOn {
		if _, ok := r.snap.rules[dep]; !ok {
			unmet = append(unmet, dep)
			continue
		}
		res := r.evaluate(ctx, dep)
		deps[dep] = res
		if res.Outcome != Pass {
			unmet = append(unmet, dep)
		}
	}
	if len(unmet) > 0 {
		f := Finding{
			Outcome:  Skipped,
			Message:  fmt.Sprintf("unmet dependencies: %v", unmet),
			Evidence: map[string]any{"unmet_dependencies": unmet},
		}
		return r.record(ctx, r.result(ent.rule, f, 0))
	}

	check := &Check{RuleID: id, Gate: ent.rule.Gate, Target: r.target, Context: r.context, deps: deps}
	start := r.e.now()
	f := r.invoke(ctx, ent.rule, check)
	return r.record(ctx, r.result(ent.rule, f, r.e.now().Sub(start)))
}

// invoke runs the predicate under the rule timeout on a context detached
// from the caller's cancellation.
func (r *run) invoke(ctx context.Context, rule Rule, check *Check) Finding {
	timeout := rule.Timeout
	if timeout <= 0 {
		timeout = r.e.defaultTimeout
	}

	ctx, span := r.e.tracer.Start(ctx, "gate.rule", trace.WithAttributes(
		attribute.String("semgate.rule_id", rule.ID),
		attribute.String("semgate.gate", rule.Gate.String()),
	))
	defer span.End()

	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	type outcome struct {
		f   Finding
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- outcome{err: fmt.Errorf("predicate panicked: %v", p)}
			}
		}()
		f, err := rule.Predicate(rctx, check)
		done <- outcome{f: f, err: err}
	}()

	var f Finding
	select {
	case o := <-done:
		switch {
		case o.err != nil && errors.Is(o.err, context.DeadlineExceeded) && rctx.Err() != nil:
			f = timedOut(rule, timeout)
		case o.err != nil:
			f = Failed(o.err.Error(), map[string]any{"error": o.err.Error()})
		case !o.f.Outcome.valid():
			f = Failed(fmt.Sprintf("predicate returned invalid outcome %q", o.f.Outcome), nil)
		default:
			f = o.f
		}
	case <-rctx.Done():
		f = timedOut(rule, timeout)
	}

	span.SetAttributes(attribute.String("semgate.outcome", string(f.Outcome)))
	if f.Outcome == Fail {
		span.SetStatus(codes.Error, f.Message)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	return f
}

func timedOut(rule Rule, timeout time.Duration) Finding {
	return Finding{
		Outcome: rule.OnTimeout,
		Message: fmt.Sprintf("rule timed out after %s", timeout),
		Evidence: map[string]any{
			"timeout":    true,
			"timeout_ms": timeout.Milliseconds(),
		},
	}
}

func (r *run) result(rule Rule, f Finding, d time.Duration) Result {
	return Result{
		RuleID:    rule.ID,
		Gate:      rule.Gate,
		Severity:  rule.Severity,
		Outcome:   f.Outcome,
		Message:   f.Message,
		Evidence:  f.Evidence,
		Timestamp: r.e.now(),
		Duration:  d,
	}
}

// record memoizes res, appends it to history and notifies observers.
func (r *run) record(ctx context.Context, res Result) Result {
	r.cache[res.RuleID] = res
	r.e.history.Append(res)
	r.e.metrics.recordResult(ctx, res)
	for _, o := range r.e.observers {
		o.ObserveResult(ctx, res)
	}
	if res.Outcome == Fail {
		r.e.logger.DebugContext(ctx, "rule failed",
			"rule_id", res.RuleID,
			"gate", res.Gate.String(),
			"severity", res.Severity,
			"message", res.Message)
	}
	return res
}
