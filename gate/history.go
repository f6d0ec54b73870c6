package gate

import (
	"sync"
	"time"
)

// DefaultHistoryLimit is the number of results retained by default.
const DefaultHistoryLimit = 100

// History is a fixed-capacity ring of the most recent rule results. Appends
// are O(1) and safe for concurrent use.
type History struct {
	mu    sync.Mutex
	buf   []Result
	next  int
	count int
	total uint64
}

// NewHistory returns a ring holding up to capacity results. Non-positive
// capacities fall back to DefaultHistoryLimit.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistoryLimit
	}
	return &History{buf: make([]Result, capacity)}
}

// Append records r, evicting the oldest result when full.
func (h *History) Append(r Result) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.buf[h.next] = r
	h.next = (h.next + 1) % len(h.buf)
	if h.count < len(h.buf) {
		h.count++
	}
	h.total++
}

// Len returns the number of retained results.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// Capacity returns the ring size.
func (h *History) Capacity() int { return len(h.buf) }

// Recent returns up to limit of the newest retained results, oldest first.
// A zero gate matches every gate. A non-positive limit returns everything
// retained.
func (h *History) Recent(g Gate, limit int) []Result {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []Result
	for i := h.count - 1; i >= 0; i-- {
		r := h.at(i)
		if g != 0 && r.Gate != g {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// at returns the i-th retained result counting from the oldest. h.mu must be held.
func (h *History) at(i int) Result {
	start := (h.next - h.count + len(h.buf)) % len(h.buf)
	return h.buf[(start+i)%len(h.buf)]
}

// Stats summarizes the results currently retained by a History.
type Stats struct {
	// Retained is the number of results in the window.
	Retained int `json:"retained"`
	// Evaluated counts every result ever appended, including evicted ones.
	Evaluated uint64               `json:"evaluated"`
	Pass      int                  `json:"pass_count"`
	Fail      int                  `json:"fail_count"`
	Skipped   int                  `json:"skipped_count"`
	ByGate    map[string]int       `json:"validation_counts_by_gate"`
	Latest    time.Time            `json:"latest_result_timestamp,omitempty"`
	Outcomes  map[string]GateStats `json:"outcomes_by_gate"`
}

// GateStats counts outcomes for one gate.
type GateStats struct {
	Pass    int `json:"pass"`
	Fail    int `json:"fail"`
	Skipped int `json:"skipped"`
}

// Stats computes outcome counts over the retained window.
func (h *History) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := Stats{
		Retained:  h.count,
		Evaluated: h.total,
		ByGate:    make(map[string]int, len(gateNames)),
		Outcomes:  make(map[string]GateStats, len(gateNames)),
	}
	for _, g := range Gates() {
		s.ByGate[g.String()] = 0
		s.Outcomes[g.String()] = GateStats{}
	}
	for i := 0; i < h.count; i++ {
		r := h.at(i)
		gs := s.Outcomes[r.Gate.String()]
		switch r.Outcome {
		case Pass:
			s.Pass++
			gs.Pass++
		case Fail:
			s.Fail++
			gs.Fail++
		case Skipped:
			s.Skipped++
			gs.Skipped++
		}
		s.Outcomes[r.Gate.String()] = gs
		s.ByGate[r.Gate.String()]++
		if r.Timestamp.After(s.Latest) {
			s.Latest = r.Timestamp
		}
	}
	return s
}
