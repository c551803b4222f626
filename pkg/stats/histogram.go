package stats

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/exp/constraints"
	"golang.org/x/exp/slices"
)

// Histogram counts observations into buckets. bounds are exclusive upper
// limits; values at or past the last bound land in an overflow bucket.
type Histogram[E constraints.Integer] struct {
	tag    string
	bounds []E
	counts []uint64
}

func NewHistogram[E constraints.Integer](tag string, bounds ...E) *Histogram[E] {
	b := slices.Clone(bounds)
	slices.Sort(b)
	return &Histogram[E]{
		tag:    tag,
		bounds: b,
		counts: make([]uint64, len(b)+1),
	}
}

func (h *Histogram[E]) Observe(v E) {
	idx, _ := slices.BinarySearch(h.bounds, v+1)
	// BinarySearch finds the first bound >= v+1, i.e. the first bound > v
	h.counts[idx]++
}

func (h *Histogram[E]) Counts() []uint64 {
	return slices.Clone(h.counts)
}

func (h *Histogram[E]) Total() uint64 {
	var t uint64
	for _, c := range h.counts {
		t += c
	}
	return t
}

func (h *Histogram[E]) String() string {
	var sb strings.Builder
	for i, c := range h.counts {
		if i > 0 {
			sb.WriteString(", ")
		}
		if i < len(h.bounds) {
			fmt.Fprintf(&sb, "<%v: %d", h.bounds[i], c)
		} else {
			fmt.Fprintf(&sb, "rest: %d", c)
		}
	}
	return sb.String()
}

func (h *Histogram[E]) Report(e *zerolog.Event) *zerolog.Event {
	return e.Str(h.tag, h.String())
}
