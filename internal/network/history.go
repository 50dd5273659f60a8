package network

// History is the append-only log of equity vectors produced by one solver
// run. Entry 0 is the post-shock, pre-iteration state; every later entry is
// the state after one completed round. It is owned by the run that created
// it and read-only afterwards.
type History struct {
	entries [][]float64
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{}
}

// Append records an equity vector as the next entry. The vector is copied.
func (h *History) Append(equities []float64) {
	cp := make([]float64, len(equities))
	copy(cp, equities)
	h.entries = append(h.entries, cp)
}

// Len returns the number of recorded entries, including the shock entry.
func (h *History) Len() int {
	return len(h.entries)
}

// Rounds returns the number of completed rounds, i.e. entries beyond the
// shock entry. Zero for a freshly shocked system.
func (h *History) Rounds() int {
	if len(h.entries) == 0 {
		return 0
	}
	return len(h.entries) - 1
}

// At returns the equity vector recorded after the given round; round 0 is
// the post-shock state. The returned slice must not be modified.
func (h *History) At(round int) []float64 {
	return h.entries[round]
}

// Latest returns the most recent equity vector, or nil if empty.
func (h *History) Latest() []float64 {
	if len(h.entries) == 0 {
		return nil
	}
	return h.entries[len(h.entries)-1]
}

// Entries returns all recorded vectors in order. The slices are owned by
// the history.
func (h *History) Entries() [][]float64 {
	return h.entries
}
