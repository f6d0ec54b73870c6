package mapper

// Score is a similarity between an intent and one mapping key.
type Score struct {
	// Value lies in [0, 1].
	Value float64
	// Intersection is the raw number of shared tokens, used to break ties.
	Intersection int
}

// Scorer compares the tokens of a normalized intent with the tokens of a
// normalized mapping key. Implementations must be deterministic and safe
// for concurrent use.
type Scorer interface {
	Score(intent, key []string) Score
}

// ScorerFunc adapts a function to the Scorer interface.
type ScorerFunc func(intent, key []string) Score

// Score calls f.
func (f ScorerFunc) Score(intent, key []string) Score { return f(intent, key) }

// TokenSetScorer scores by intersection over union of the two token sets.
// Two empty sets score 0.
type TokenSetScorer struct{}

// Score implements Scorer.
func (TokenSetScorer) Score(intent, key []string) Score {
	a := toSet(intent)
	b := toSet(key)
	if len(a) == 0 && len(b) == 0 {
		return Score{}
	}
	inter := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return Score{Value: float64(inter) / float64(union), Intersection: inter}
}

func toSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}
