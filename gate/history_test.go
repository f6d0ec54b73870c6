package gate

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func resultN(i int, g Gate, o Outcome) Result {
	return Result{RuleID: fmt.Sprintf("r%d", i), Gate: g, Outcome: o, Timestamp: fixedTime.Add(time.Duration(i) * time.Second)}
}

func ids(results []Result) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.RuleID)
	}
	return out
}

func TestHistory_RingEviction(t *testing.T) {
	h := NewHistory(3)
	assert.Equal(t, 3, h.Capacity())
	assert.Empty(t, h.Recent(0, 10))

	for i := 1; i <= 5; i++ {
		h.Append(resultN(i, Technical, Pass))
	}
	assert.Equal(t, 3, h.Len())
	assert.Equal(t, []string{"r3", "r4", "r5"}, ids(h.Recent(0, 0)))
	assert.Equal(t, []string{"r4", "r5"}, ids(h.Recent(0, 2)))
}

func TestHistory_DefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultHistoryLimit, NewHistory(0).Capacity())
	assert.Equal(t, DefaultHistoryLimit, NewHistory(-4).Capacity())
}

func TestHistory_RecentByGate(t *testing.T) {
	h := NewHistory(10)
	h.Append(resultN(1, Technical, Pass))
	h.Append(resultN(2, Semantic, Fail))
	h.Append(resultN(3, Technical, Skipped))
	h.Append(resultN(4, Semantic, Pass))
	h.Append(resultN(5, Technical, Fail))

	assert.Equal(t, []string{"r1", "r3", "r5"}, ids(h.Recent(Technical, 0)))
	assert.Equal(t, []string{"r3", "r5"}, ids(h.Recent(Technical, 2)))
	assert.Equal(t, []string{"r2", "r4"}, ids(h.Recent(Semantic, 10)))
	assert.Empty(t, h.Recent(Vision, 10))
}

func TestHistory_Stats(t *testing.T) {
	h := NewHistory(4)
	empty := h.Stats()
	assert.Zero(t, empty.Retained)
	assert.True(t, empty.Latest.IsZero())
	assert.Len(t, empty.ByGate, 6)

	h.Append(resultN(1, Technical, Pass))
	h.Append(resultN(2, Technical, Fail))
	h.Append(resultN(3, Semantic, Skipped))
	h.Append(resultN(4, Vision, Pass))
	h.Append(resultN(5, Vision, Fail))

	s := h.Stats()
	assert.Equal(t, 4, s.Retained)
	assert.Equal(t, uint64(5), s.Evaluated)
	assert.Equal(t, 1, s.Pass)
	assert.Equal(t, 2, s.Fail)
	assert.Equal(t, 1, s.Skipped)
	assert.Equal(t, 1, s.ByGate["technical"])
	assert.Equal(t, 2, s.ByGate["vision"])
	assert.Equal(t, 0, s.ByGate["behavioral"])
	assert.Equal(t, GateStats{Pass: 1, Fail: 1}, s.Outcomes["vision"])
	assert.Equal(t, fixedTime.Add(5*time.Second), s.Latest)
}

func TestHistory_ConcurrentAppend(t *testing.T) {
	h := NewHistory(50)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				h.Append(resultN(i*100+j, Behavioral, Pass))
				_ = h.Recent(Behavioral, 5)
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, 50, h.Len())
	assert.Equal(t, uint64(1000), h.Stats().Evaluated)
}
