package gate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/zero-day-ai/semgate/semerr"
)

func always(o Outcome) Predicate {
	return func(context.Context, *Check) (Finding, error) {
		return Finding{Outcome: o, Message: string(o)}, nil
	}
}

func counting(n *atomic.Int32, o Outcome) Predicate {
	return func(context.Context, *Check) (Finding, error) {
		n.Add(1)
		return Finding{Outcome: o}, nil
	}
}

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	base := []Option{
		WithClock(func() time.Time { return fixedTime }),
		WithRunID(func() string { return "run-test" }),
	}
	return NewEngine(append(base, opts...)...)
}

func add(t *testing.T, e *Engine, r Rule) {
	t.Helper()
	ok, err := e.AddRule(r)
	require.NoError(t, err)
	require.True(t, ok, "rule %s not added", r.ID)
}

func outcomes(results []Result) map[string]Outcome {
	out := make(map[string]Outcome, len(results))
	for _, r := range results {
		out[r.RuleID] = r.Outcome
	}
	return out
}

func TestAddRule(t *testing.T) {
	e := newTestEngine(t)

	ok, err := e.AddRule(Rule{ID: "R1", Gate: Technical, Predicate: always(Pass)})
	require.NoError(t, err)
	assert.True(t, ok)

	info, found := e.Rule("R1")
	require.True(t, found)
	assert.Equal(t, SeverityBlocking, info.Severity, "severity defaults to blocking")
	assert.Equal(t, StateEnabled, info.State)
	assert.Equal(t, DefaultPriority, info.Priority, "priority defaults to 5")

	t.Run("duplicate id", func(t *testing.T) {
		ok, err := e.AddRule(Rule{ID: "R1", Gate: Semantic, Predicate: always(Fail)})
		require.NoError(t, err)
		assert.False(t, ok)
		info, _ := e.Rule("R1")
		assert.Equal(t, Technical, info.Gate, "existing rule untouched")
	})

	t.Run("removed id is never reused", func(t *testing.T) {
		add(t, e, Rule{ID: "R9", Gate: Vision, Predicate: always(Pass)})
		assert.True(t, e.RemoveRule("R9"))
		assert.False(t, e.RemoveRule("R9"))

		ok, err := e.AddRule(Rule{ID: "R9", Gate: Vision, Predicate: always(Pass)})
		require.NoError(t, err)
		assert.False(t, ok)

		info, found := e.Rule("R9")
		require.True(t, found)
		assert.Equal(t, StateRemoved, info.State)
	})

	t.Run("invalid rules", func(t *testing.T) {
		tests := []struct {
			name string
			rule Rule
		}{
			{"empty id", Rule{Gate: Technical, Predicate: always(Pass)}},
			{"bad gate", Rule{ID: "x", Gate: Gate(42), Predicate: always(Pass)}},
			{"no predicate", Rule{ID: "x", Gate: Technical}},
			{"bad severity", Rule{ID: "x", Gate: Technical, Severity: "FATAL", Predicate: always(Pass)}},
			{"bad timeout outcome", Rule{ID: "x", Gate: Technical, OnTimeout: Pass, Predicate: always(Pass)}},
			{"negative timeout", Rule{ID: "x", Gate: Technical, Timeout: -time.Second, Predicate: always(Pass)}},
			{"priority too high", Rule{ID: "x", Gate: Technical, Priority: 11, Predicate: always(Pass)}},
			{"negative priority", Rule{ID: "x", Gate: Technical, Priority: -1, Predicate: always(Pass)}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				ok, err := e.AddRule(tt.rule)
				assert.False(t, ok)
				assert.Error(t, err)
			})
		}
		_, found := e.Rule("x")
		assert.False(t, found)
	})
}

func TestAddRule_RejectsCycles(t *testing.T) {
	e := newTestEngine(t)
	add(t, e, Rule{ID: "A", Gate: Technical, DependsOn: []string{"C"}, Predicate: always(Pass)})
	add(t, e, Rule{ID: "B", Gate: Technical, DependsOn: []string{"A"}, Predicate: always(Pass)})

	ok, err := e.AddRule(Rule{ID: "C", Gate: Technical, DependsOn: []string{"B"}, Predicate: always(Pass)})
	assert.False(t, ok)
	assert.ErrorIs(t, err, semerr.ErrDependencyCycle)
	_, found := e.Rule("C")
	assert.False(t, found, "registry unchanged after a rejected rule")

	t.Run("self dependency", func(t *testing.T) {
		ok, err := e.AddRule(Rule{ID: "S", Gate: Technical, DependsOn: []string{"S"}, Predicate: always(Pass)})
		assert.False(t, ok)
		assert.ErrorIs(t, err, semerr.ErrDependencyCycle)
	})

	t.Run("cross gate cycle", func(t *testing.T) {
		add(t, e, Rule{ID: "X", Gate: Semantic, DependsOn: []string{"Y"}, Predicate: always(Pass)})
		ok, err := e.AddRule(Rule{ID: "Y", Gate: Vision, DependsOn: []string{"X"}, Predicate: always(Pass)})
		assert.False(t, ok)
		assert.ErrorIs(t, err, semerr.ErrDependencyCycle)
	})

	t.Run("non-cyclic rule still accepted", func(t *testing.T) {
		add(t, e, Rule{ID: "C2", Gate: Technical, DependsOn: []string{"B"}, Predicate: always(Pass)})
	})
}

func TestValidateGate_BlockingFailure(t *testing.T) {
	e := newTestEngine(t)
	add(t, e, Rule{ID: "R1", Gate: Technical, Predicate: always(Pass)})
	add(t, e, Rule{ID: "R2", Gate: Technical, Severity: SeverityBlocking, Predicate: always(Fail)})

	v, err := e.ValidateGate(context.Background(), Technical, map[string]any{}, nil)
	require.NoError(t, err)
	assert.False(t, v.Pass)
	assert.Equal(t, []string{"R2"}, v.BlockingFailures())
	assert.Equal(t, map[string]Outcome{"R1": Pass, "R2": Fail}, outcomes(v.Results))
}

func TestValidateGate_WarningFailureDoesNotBlock(t *testing.T) {
	e := newTestEngine(t)
	add(t, e, Rule{ID: "R1", Gate: Performance, Predicate: always(Pass)})
	add(t, e, Rule{ID: "W1", Gate: Performance, Severity: SeverityWarning, Predicate: always(Fail)})

	v, err := e.ValidateGate(context.Background(), Performance, nil, nil)
	require.NoError(t, err)
	assert.True(t, v.Pass)
	assert.Empty(t, v.BlockingFailures())
}

func TestValidateGate_InvalidGate(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.ValidateGate(context.Background(), Gate(0), nil, nil)
	assert.ErrorIs(t, err, semerr.ErrInvalidGate)
}

func TestValidate_UnregisteredDependencySkips(t *testing.T) {
	e := newTestEngine(t)
	add(t, e, Rule{ID: "R3", Gate: Technical, DependsOn: []string{"R_missing"}, Predicate: always(Pass)})

	res, err := e.ValidateRule(context.Background(), "R3", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, Skipped, res.Outcome)
	assert.Equal(t, []string{"R_missing"}, res.Evidence["unmet_dependencies"])

	v, err := e.ValidateGate(context.Background(), Technical, nil, nil)
	require.NoError(t, err)
	assert.True(t, v.Pass, "a skipped rule never fails its gate")
}

func TestValidate_DependencyOrderAndMemoization(t *testing.T) {
	e := newTestEngine(t)
	var baseCalls, leftCalls atomic.Int32

	order := make([]string, 0)
	record := func(id string) Predicate {
		return func(context.Context, *Check) (Finding, error) {
			order = append(order, id)
			return Passed(id), nil
		}
	}

	add(t, e, Rule{ID: "z_base", Gate: Technical, Predicate: func(ctx context.Context, c *Check) (Finding, error) {
		baseCalls.Add(1)
		return record("z_base")(ctx, c)
	}})
	add(t, e, Rule{ID: "a_left", Gate: Technical, DependsOn: []string{"z_base"}, Predicate: func(ctx context.Context, c *Check) (Finding, error) {
		leftCalls.Add(1)
		dep, ok := c.Dependency("z_base")
		if !ok || dep.Outcome != Pass {
			return Failedf("dependency not visible"), nil
		}
		return record("a_left")(ctx, c)
	}})
	add(t, e, Rule{ID: "b_right", Gate: Technical, DependsOn: []string{"z_base"}, Predicate: record("b_right")})
	add(t, e, Rule{ID: "c_top", Gate: Technical, DependsOn: []string{"a_left", "b_right"}, Predicate: record("c_top")})
	// A semantic rule reaching back into the technical gate.
	add(t, e, Rule{ID: "s_cross", Gate: Semantic, DependsOn: []string{"a_left"}, Predicate: record("s_cross")})

	rep, err := e.ValidateAll(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.True(t, rep.OverallPass)

	assert.Equal(t, []string{"z_base", "a_left", "b_right", "c_top", "s_cross"}, order)
	assert.Equal(t, int32(1), baseCalls.Load(), "shared dependency runs once per run")
	assert.Equal(t, int32(1), leftCalls.Load(), "cross-gate dependency reuses the run cache")

	tech, _ := rep.Verdict(Technical)
	assert.Equal(t, []string{"z_base", "a_left", "b_right", "c_top"}, ids(tech.Results))

	t.Run("each call gets its own cache", func(t *testing.T) {
		_, err := e.ValidateAll(context.Background(), nil, nil)
		require.NoError(t, err)
		assert.Equal(t, int32(2), baseCalls.Load())
	})
}

func TestValidate_DependencyFailureSkipsDependents(t *testing.T) {
	e := newTestEngine(t)
	var calls atomic.Int32
	add(t, e, Rule{ID: "infra", Gate: Technical, Predicate: always(Fail)})
	add(t, e, Rule{ID: "impl", Gate: Technical, DependsOn: []string{"infra"}, Predicate: counting(&calls, Pass)})

	v, err := e.ValidateGate(context.Background(), Technical, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]Outcome{"infra": Fail, "impl": Skipped}, outcomes(v.Results))
	assert.Zero(t, calls.Load(), "predicate not invoked when a dependency fails")
	assert.Equal(t, []string{"infra"}, v.BlockingFailures())
}

func TestValidate_DisabledRulesAndGates(t *testing.T) {
	e := newTestEngine(t)
	add(t, e, Rule{ID: "b1", Gate: Behavioral, Predicate: always(Fail)})
	add(t, e, Rule{ID: "b2", Gate: Behavioral, DependsOn: []string{"b1"}, Predicate: always(Pass)})
	add(t, e, Rule{ID: "v1", Gate: Vision, DependsOn: []string{"b2"}, Predicate: always(Pass)})

	require.NoError(t, e.DisableRule("b1"))
	v, err := e.ValidateGate(context.Background(), Behavioral, nil, nil)
	require.NoError(t, err)
	assert.True(t, v.Pass)
	assert.Equal(t, map[string]Outcome{"b1": Skipped, "b2": Skipped}, outcomes(v.Results))

	require.NoError(t, e.EnableRule("b1"))
	v, _ = e.ValidateGate(context.Background(), Behavioral, nil, nil)
	assert.False(t, v.Pass)

	require.NoError(t, e.DisableGate(Behavioral))
	for _, info := range e.Rules(Behavioral) {
		assert.Equal(t, StateDisabled, info.State)
	}
	rep, err := e.ValidateAll(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.True(t, rep.OverallPass)
	vision, _ := rep.Verdict(Vision)
	assert.Equal(t, Skipped, vision.Results[0].Outcome, "dependents of a disabled gate are skipped")

	require.NoError(t, e.EnableGate(Behavioral))
	rep, _ = e.ValidateAll(context.Background(), nil, nil)
	assert.False(t, rep.OverallPass)

	assert.ErrorIs(t, e.EnableGate(Gate(0)), semerr.ErrInvalidGate)
	assert.ErrorIs(t, e.DisableGate(Gate(99)), semerr.ErrInvalidGate)
	assert.ErrorIs(t, e.EnableRule("nope"), semerr.ErrNotFound)
	assert.ErrorIs(t, e.DisableRule("nope"), semerr.ErrNotFound)
}

func TestValidateRule_NotFound(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.ValidateRule(context.Background(), "ghost", nil, nil)
	assert.ErrorIs(t, err, semerr.ErrNotFound)

	add(t, e, Rule{ID: "gone", Gate: Technical, Predicate: always(Pass)})
	e.RemoveRule("gone")
	_, err = e.ValidateRule(context.Background(), "gone", nil, nil)
	assert.ErrorIs(t, err, semerr.ErrNotFound)
	assert.ErrorIs(t, err, semerr.ErrRuleRemoved)
	assert.ErrorIs(t, e.EnableRule("gone"), semerr.ErrRuleRemoved)
}

func TestValidate_RemovedDependencySkips(t *testing.T) {
	e := newTestEngine(t)
	add(t, e, Rule{ID: "base", Gate: Technical, Predicate: always(Pass)})
	add(t, e, Rule{ID: "top", Gate: Technical, DependsOn: []string{"base"}, Predicate: always(Pass)})
	e.RemoveRule("base")

	res, err := e.ValidateRule(context.Background(), "top", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, Skipped, res.Outcome)
}

func TestValidate_PredicateFailuresBecomeFail(t *testing.T) {
	e := newTestEngine(t)
	add(t, e, Rule{ID: "err", Gate: Technical, Predicate: func(context.Context, *Check) (Finding, error) {
		return Finding{}, errors.New("backend down")
	}})
	add(t, e, Rule{ID: "panic", Gate: Technical, Predicate: func(context.Context, *Check) (Finding, error) {
		panic("nil map")
	}})
	add(t, e, Rule{ID: "invalid", Gate: Technical, Predicate: func(context.Context, *Check) (Finding, error) {
		return Finding{Outcome: "MAYBE"}, nil
	}})

	v, err := e.ValidateGate(context.Background(), Technical, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]Outcome{"err": Fail, "panic": Fail, "invalid": Fail}, outcomes(v.Results))

	byID := map[string]Result{}
	for _, r := range v.Results {
		byID[r.RuleID] = r
	}
	assert.Equal(t, "backend down", byID["err"].Evidence["error"])
	assert.Contains(t, byID["panic"].Message, "nil map")
}

func TestValidate_Timeout(t *testing.T) {
	e := newTestEngine(t)
	block := func(ctx context.Context, _ *Check) (Finding, error) {
		<-ctx.Done()
		return Finding{}, ctx.Err()
	}
	ignore := func(context.Context, *Check) (Finding, error) {
		time.Sleep(200 * time.Millisecond)
		return Passed("late"), nil
	}
	add(t, e, Rule{ID: "slow_fail", Gate: Performance, Timeout: 10 * time.Millisecond, Predicate: block})
	add(t, e, Rule{ID: "slow_skip", Gate: Performance, Timeout: 10 * time.Millisecond, OnTimeout: Skipped, Predicate: block})
	add(t, e, Rule{ID: "slow_ignores_ctx", Gate: Performance, Timeout: 10 * time.Millisecond, Predicate: ignore})

	v, err := e.ValidateGate(context.Background(), Performance, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]Outcome{"slow_fail": Fail, "slow_skip": Skipped, "slow_ignores_ctx": Fail}, outcomes(v.Results))
	for _, r := range v.Results {
		assert.Equal(t, true, r.Evidence["timeout"], r.RuleID)
	}
	assert.False(t, v.Pass)
}

func TestValidateAll_CancellationBetweenGates(t *testing.T) {
	e := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var ruleCtxErr error
	add(t, e, Rule{ID: "t1", Gate: Technical, Predicate: func(rctx context.Context, _ *Check) (Finding, error) {
		cancel()
		ruleCtxErr = rctx.Err()
		return Passed("finished"), nil
	}})
	var later atomic.Int32
	add(t, e, Rule{ID: "b1", Gate: Behavioral, Predicate: counting(&later, Pass)})

	rep, err := e.ValidateAll(ctx, nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, rep.Cancelled)
	require.Len(t, rep.Gates, 1, "only gates started before cancellation are reported")
	assert.Equal(t, Technical, rep.Gates[0].Gate)
	assert.Equal(t, Pass, rep.Gates[0].Results[0].Outcome, "a running rule is not interrupted")
	assert.NoError(t, ruleCtxErr)
	assert.Zero(t, later.Load())
}

func TestValidateAll_ReportFields(t *testing.T) {
	e := newTestEngine(t)
	add(t, e, Rule{ID: "R1", Gate: Technical, Predicate: always(Pass)})
	add(t, e, Rule{ID: "R2", Gate: Technical, Predicate: always(Fail)})

	rep, err := e.ValidateAll(context.Background(), map[string]any{"id": "cfg-1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "run-test", rep.RunID)
	assert.Equal(t, "cfg-1", rep.TargetID)
	assert.Equal(t, fixedTime, rep.Timestamp)
	assert.Len(t, rep.Gates, 6, "every gate is reported, empty ones pass")
	assert.False(t, rep.OverallPass)
	assert.Equal(t, []string{"R2"}, rep.BlockingFailures)
	assert.False(t, rep.Cancelled)
}

func TestValidate_PredicatesSeeTargetAndContext(t *testing.T) {
	e := newTestEngine(t)
	add(t, e, Rule{ID: "ctx", Gate: Integration, Predicate: func(_ context.Context, c *Check) (Finding, error) {
		target := c.Target.(map[string]any)
		if target["name"] != "cfg" || c.Context["mode"] != "strict" {
			return Failedf("unexpected input %v %v", c.Target, c.Context), nil
		}
		if c.RuleID != "ctx" || c.Gate != Integration {
			return Failedf("unexpected identity"), nil
		}
		return Passed("ok"), nil
	}})
	res, err := e.ValidateRule(context.Background(), "ctx", map[string]any{"name": "cfg"}, map[string]any{"mode": "strict"})
	require.NoError(t, err)
	assert.Equal(t, Pass, res.Outcome, res.Message)
}

type recordingObserver struct {
	mu       sync.Mutex
	results  []string
	verdicts []Gate
}

func (o *recordingObserver) ObserveResult(_ context.Context, r Result) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.results = append(o.results, r.RuleID)
}

func (o *recordingObserver) ObserveVerdict(_ context.Context, v Verdict) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.verdicts = append(o.verdicts, v.Gate)
}

type fakeSink struct {
	mu   sync.Mutex
	keys []string
	ttls []int
	vals []any
	err  error
}

func (s *fakeSink) Store(_ context.Context, key string, value any, ttl int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	s.keys = append(s.keys, key)
	s.ttls = append(s.ttls, ttl)
	s.vals = append(s.vals, value)
	return true, nil
}

func TestValidateAll_ObserversHistoryAndSink(t *testing.T) {
	obs := &recordingObserver{}
	sink := &fakeSink{}
	e := newTestEngine(t, WithObserver(obs), WithSink(sink), WithHistoryLimit(5))
	add(t, e, Rule{ID: "R1", Gate: Technical, Predicate: always(Pass)})
	add(t, e, Rule{ID: "V1", Gate: Vision, Severity: SeverityWarning, Predicate: always(Fail)})

	_, err := e.ValidateAll(context.Background(), nil, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"R1", "V1"}, obs.results)
	assert.Equal(t, Gates(), obs.verdicts)

	assert.Equal(t, []string{"semgate:report:run-test"}, sink.keys)
	assert.Equal(t, []int{86400}, sink.ttls)
	_, isReport := sink.vals[0].(Report)
	assert.True(t, isReport)

	assert.Equal(t, []string{"R1", "V1"}, ids(e.RecentResults(0, 10)))
	assert.Equal(t, []string{"V1"}, ids(e.RecentResults(Vision, 10)))
	stats := e.Stats()
	assert.Equal(t, 1, stats.Pass)
	assert.Equal(t, 1, stats.Fail)

	t.Run("sink failures do not fail validation", func(t *testing.T) {
		sink.err = errors.New("redis down")
		rep, err := e.ValidateAll(context.Background(), nil, nil)
		require.NoError(t, err)
		assert.True(t, rep.OverallPass)
	})
}

func TestValidateAll_Spans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	e := newTestEngine(t, WithTracer(tp.Tracer("test")))
	add(t, e, Rule{ID: "R1", Gate: Technical, Predicate: always(Pass)})

	_, err := e.ValidateAll(context.Background(), nil, nil)
	require.NoError(t, err)

	counts := map[string]int{}
	for _, s := range exporter.GetSpans() {
		counts[s.Name]++
	}
	assert.Equal(t, 1, counts["gate.validate_all"])
	assert.Equal(t, 6, counts["gate.validate_gate"])
	assert.Equal(t, 1, counts["gate.rule"])
}

func TestEngine_ConcurrentValidationAndMutation(t *testing.T) {
	e := NewEngine()
	for _, g := range Gates() {
		add(t, e, Rule{ID: "base_" + g.String(), Gate: g, Predicate: always(Pass)})
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				rep, err := e.ValidateAll(context.Background(), nil, nil)
				if assert.NoError(t, err) {
					assert.Len(t, rep.Gates, 6)
				}
			}
		}()
	}
	for i := 0; i < 50; i++ {
		_ = e.DisableGate(Technical)
		_ = e.EnableGate(Technical)
		_, _ = e.AddRule(Rule{ID: "extra", Gate: Semantic, Predicate: always(Pass)})
		e.RemoveRule("extra")
		_ = e.Rules(0)
	}
	wg.Wait()
}

func TestMustAddRule(t *testing.T) {
	e := newTestEngine(t)
	e.MustAddRule(Rule{ID: "R1", Gate: Technical, Predicate: always(Pass)})
	assert.Panics(t, func() { e.MustAddRule(Rule{ID: "R1", Gate: Technical, Predicate: always(Pass)}) })
	assert.Panics(t, func() { e.MustAddRule(Rule{ID: "", Gate: Technical, Predicate: always(Pass)}) })
}

func TestRules_Listing(t *testing.T) {
	e := newTestEngine(t)
	add(t, e, Rule{ID: "v", Gate: Vision, Predicate: always(Pass)})
	add(t, e, Rule{ID: "b", Gate: Technical, Predicate: always(Pass)})
	add(t, e, Rule{ID: "a", Gate: Technical, Description: "first", DependsOn: []string{"b"}, Predicate: always(Pass)})

	all := e.Rules(0)
	require.Len(t, all, 3)
	assert.Equal(t, "a", all[0].ID)
	assert.Equal(t, "b", all[1].ID)
	assert.Equal(t, "v", all[2].ID)
	assert.Equal(t, []string{"b"}, all[0].DependsOn)
	assert.Len(t, e.Rules(Vision), 1)
}

func TestValidateGate_PriorityOrder(t *testing.T) {
	e := newTestEngine(t)
	add(t, e, Rule{ID: "a_low", Gate: Semantic, Priority: 3, Predicate: always(Pass)})
	add(t, e, Rule{ID: "b_high", Gate: Semantic, Priority: 9, Predicate: always(Pass)})
	add(t, e, Rule{ID: "c_top", Gate: Semantic, Priority: 10, DependsOn: []string{"a_low"}, Predicate: always(Pass)})

	v, err := e.ValidateGate(context.Background(), Semantic, nil, nil)
	require.NoError(t, err)
	ids := make([]string, 0, len(v.Results))
	for _, r := range v.Results {
		ids = append(ids, r.RuleID)
	}
	assert.Equal(t, []string{"b_high", "a_low", "c_top"}, ids)

	info, ok := e.Rule("c_top")
	require.True(t, ok)
	assert.Equal(t, 10, info.Priority)
}
