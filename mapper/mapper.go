// Package mapper translates natural-language intents into concepts grounded in
// a framework's knowledge graph.
//
// Translation is a pure function of the intent, the framework and the graph
// snapshot it runs against. It never returns a concept the graph does not
// contain: when nothing matches well enough the result is AMBIGUOUS and
// carries the closest candidates instead.
package mapper

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/zero-day-ai/semgate/graph"
	"github.com/zero-day-ai/semgate/semerr"
)

const instrumentationName = "github.com/zero-day-ai/semgate/mapper"

// maxCandidates bounds the diagnostic candidates attached to AMBIGUOUS results.
const maxCandidates = 3

// Mapper translates intents against the graphs in a Store.
type Mapper struct {
	store     *graph.Store
	scorer    Scorer
	threshold float64
	policy    Policy
	logger    *slog.Logger

	tracer       trace.Tracer
	translations metric.Int64Counter
	confidence   metric.Float64Histogram
}

// Option configures a Mapper.
type Option func(*Mapper)

// WithScorer replaces the token-set scorer.
func WithScorer(s Scorer) Option {
	return func(m *Mapper) {
		if s != nil {
			m.scorer = s
		}
	}
}

// WithFuzzyThreshold sets the minimum score for a FUZZY_MATCH. It must lie in
// (0, 1).
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Mapper) { m.threshold = threshold }
}

// WithPolicy sets the confidence policy used by BuildBridge.
func WithPolicy(p Policy) Option {
	return func(m *Mapper) { m.policy = p }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Mapper) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithTracer sets the tracer. The global tracer provider is used otherwise.
func WithTracer(t trace.Tracer) Option {
	return func(m *Mapper) {
		if t != nil {
			m.tracer = t
		}
	}
}

// WithMeter sets the meter used for translation metrics. The global meter
// provider is used otherwise.
func WithMeter(meter metric.Meter) Option {
	return func(m *Mapper) {
		if meter != nil {
			m.initMetrics(meter)
		}
	}
}

// New returns a Mapper reading graphs from store.
func New(store *graph.Store, opts ...Option) (*Mapper, error) {
	if store == nil {
		return nil, semerr.Configuration("mapper.New", fmt.Errorf("store is nil"))
	}
	m := &Mapper{
		store:     store,
		scorer:    TokenSetScorer{},
		threshold: DefaultFuzzyThreshold,
		policy:    DefaultPolicy(),
		logger:    slog.Default(),
		tracer:    otel.Tracer(instrumentationName),
	}
	m.initMetrics(otel.Meter(instrumentationName))
	for _, opt := range opts {
		opt(m)
	}
	if m.threshold <= 0 || m.threshold >= 1 {
		return nil, semerr.Configuration("mapper.New", fmt.Errorf("fuzzy threshold must lie in (0,1), got %v", m.threshold))
	}
	if err := m.policy.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Mapper) initMetrics(meter metric.Meter) {
	// Instrument creation only fails on invalid names; the names below are fixed.
	m.translations, _ = meter.Int64Counter(
		"semgate.mapper.translations",
		metric.WithDescription("Number of intent translations by status"),
		metric.WithUnit("1"),
	)
	m.confidence, _ = meter.Float64Histogram(
		"semgate.mapper.confidence",
		metric.WithDescription("Confidence of grounded translations"),
		metric.WithUnit("1"),
	)
}

// Threshold returns the fuzzy match threshold in effect.
func (m *Mapper) Threshold() float64 { return m.threshold }

// Policy returns the confidence policy in effect.
func (m *Mapper) Policy() Policy { return m.policy }

// Translate maps intent to a concept of framework's graph.
//
// An unknown framework yields UNKNOWN_FRAMEWORK without consulting any graph.
// An intent whose normalized form equals a phrase or synonym yields
// EXACT_MATCH with confidence 1. Otherwise the best-scoring key is a
// FUZZY_MATCH when its score reaches the threshold, with confidence equal to
// the score and always below 1. Anything else is AMBIGUOUS with confidence 0
// and up to three candidates.
func (m *Mapper) Translate(ctx context.Context, intent, framework string) Result {
	ctx, span := m.tracer.Start(ctx, "mapper.translate",
		trace.WithAttributes(attribute.String("semgate.framework", graph.FrameworkKey(framework))))
	defer span.End()

	key := graph.FrameworkKey(framework)
	g, ok := m.store.Lookup(key)
	var res Result
	if !ok {
		res = Result{Framework: key, Intent: intent, Normalized: graph.Normalize(intent), Status: StatusUnknownFramework}
	} else {
		res = m.translate(g, intent)
	}

	span.SetAttributes(
		attribute.String("semgate.mapper.status", string(res.Status)),
		attribute.Float64("semgate.mapper.confidence", res.Confidence),
		attribute.String("semgate.mapper.concept_id", res.ConceptID),
	)
	if res.Grounded() {
		span.SetStatus(codes.Ok, "")
		m.confidence.Record(ctx, res.Confidence, metric.WithAttributes(attribute.String("framework", key)))
	}
	m.translations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("framework", key),
		attribute.String("status", string(res.Status)),
	))

	m.logger.DebugContext(ctx, "translated intent",
		"framework", key,
		"status", res.Status,
		"concept_id", res.ConceptID,
		"confidence", res.Confidence)
	return res
}

// translate runs the match pipeline against one graph snapshot.
func (m *Mapper) translate(g *graph.KnowledgeGraph, intent string) Result {
	norm := graph.Normalize(intent)
	res := Result{
		Framework:    g.Framework(),
		Intent:       intent,
		Normalized:   norm,
		GraphVersion: g.Version(),
	}

	if id, ok := g.Resolve(norm); ok {
		res.Status = StatusExact
		res.ConceptID = id
		res.Key = norm
		res.Confidence = 1
		return res
	}

	candidates := m.rank(g, graph.Tokens(norm))
	if len(candidates) > 0 && candidates[0].Score >= m.threshold {
		best := candidates[0]
		res.Status = StatusFuzzy
		res.ConceptID = best.ConceptID
		res.Key = best.Key
		res.Confidence = best.Score
		if res.Confidence >= 1 {
			// Same token set, different string: still not an exact match.
			res.Confidence = math.Nextafter(1, 0)
		}
		res.Candidates = head(candidates, maxCandidates)
		return res
	}

	res.Status = StatusAmbiguous
	res.Candidates = head(candidates, maxCandidates)
	return res
}

// rank scores every key of g and orders the candidates by score, then raw
// intersection, then key.
func (m *Mapper) rank(g *graph.KnowledgeGraph, tokens []string) []Candidate {
	keys := g.Keys()
	out := make([]Candidate, 0, len(keys))
	for _, k := range keys {
		s := m.scorer.Score(tokens, graph.Tokens(k))
		id, _ := g.Resolve(k)
		out = append(out, Candidate{Key: k, ConceptID: id, Score: clamp01(s.Value), Intersection: s.Intersection})
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Intersection != b.Intersection {
			return a.Intersection > b.Intersection
		}
		return a.Key < b.Key
	})
	return out
}

// Verify checks that conceptID exists in framework's graph and carries every
// field its schema requires.
func (m *Mapper) Verify(framework, conceptID string) (Verification, error) {
	const op = "mapper.Verify"

	key := graph.FrameworkKey(framework)
	g, ok := m.store.Lookup(key)
	if !ok {
		return Verification{}, semerr.NotFound(op, "framework", key)
	}
	c, ok := g.Concept(conceptID)
	if !ok {
		return Verification{}, semerr.NotFound(op, "concept_id", conceptID).WithContext(map[string]any{"framework": key})
	}
	missing := g.Schema().Missing(c)
	return Verification{
		Framework:     key,
		ConceptID:     c.ID,
		Type:          c.Type,
		Valid:         len(missing) == 0,
		MissingFields: missing,
	}, nil
}

// BuildBridge translates intent and resolves the grounded concept against
// the store's current graph. It fails with semerr.ErrConceptNotFound only when
// a translated concept id no longer resolves, which can happen when a reload
// lands between the two steps. Ungrounded translations are returned with a
// nil Concept and a reject decision.
func (m *Mapper) BuildBridge(ctx context.Context, intent, framework string) (Bridge, error) {
	return m.bridge(ctx, m.Translate(ctx, intent, framework))
}

func (m *Mapper) bridge(ctx context.Context, res Result) (Bridge, error) {
	b := Bridge{Result: res, Decision: m.policy.Decide(res)}
	if !res.Grounded() {
		return b, nil
	}

	g, ok := m.store.Lookup(res.Framework)
	if !ok {
		return Bridge{}, semerr.ConceptNotFound("mapper.BuildBridge", res.Framework, res.ConceptID)
	}
	c, ok := g.Concept(res.ConceptID)
	if !ok {
		m.logger.WarnContext(ctx, "mapped concept vanished after reload",
			"framework", res.Framework,
			"concept_id", res.ConceptID,
			"graph_version", g.Version())
		return Bridge{}, semerr.ConceptNotFound("mapper.BuildBridge", res.Framework, res.ConceptID)
	}
	b.Concept = &c
	return b, nil
}

func head(c []Candidate, n int) []Candidate {
	if len(c) > n {
		c = c[:n]
	}
	return append([]Candidate(nil), c...)
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
