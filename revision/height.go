package revision

import (
	"strconv"
	"strings"

	"github.com/dscherger/monotone-sub002/errs"
	"github.com/dscherger/monotone-sub002/vocab"
)

// Height is a variable-length integer tuple that totally orders ancestry:
// h(a) < h(b) implies a is not a descendant of b, and every revision's
// height is unique. A revision's height is its tallest parent's height
// with the first unused child-index of that parent appended.
type Height []uint64

// Compare returns -1, 0, or 1 as h sorts before, equal to, or after o,
// using lexicographic order over the tuple (a shorter prefix sorts
// before any extension of it).
func (h Height) Compare(o Height) int {
	for i := 0; i < len(h) && i < len(o); i++ {
		switch {
		case h[i] < o[i]:
			return -1
		case h[i] > o[i]:
			return 1
		}
	}
	switch {
	case len(h) < len(o):
		return -1
	case len(h) > len(o):
		return 1
	default:
		return 0
	}
}

// Less reports whether h sorts strictly before o.
func (h Height) Less(o Height) bool { return h.Compare(o) < 0 }

// String renders h as dot-joined decimal components, e.g. "0.2.1".
func (h Height) String() string {
	parts := make([]string, len(h))
	for i, v := range h {
		parts[i] = strconv.FormatUint(v, 10)
	}
	return strings.Join(parts, ".")
}

// ParseHeight parses the format produced by Height.String.
func ParseHeight(s string) (Height, error) {
	if s == "" {
		return nil, errs.New(errs.Internal, "revision: empty height string")
	}
	parts := strings.Split(s, ".")
	h := make(Height, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return nil, errs.Wrap(errs.Internal, "revision: malformed height component", err)
		}
		h[i] = v
	}
	return h, nil
}

func (h Height) extend(idx uint64) Height {
	out := make(Height, len(h)+1)
	copy(out, h)
	out[len(h)] = idx
	return out
}

type heightTracker struct {
	heights        map[vocab.RevisionID]Height
	nextChildIndex map[vocab.RevisionID]uint64
}

func newHeightTracker() *heightTracker {
	return &heightTracker{
		heights:        make(map[vocab.RevisionID]Height),
		nextChildIndex: make(map[vocab.RevisionID]uint64),
	}
}

// assign computes and records the height for id given its non-null
// parent ids (empty for a root revision).
func (t *heightTracker) assign(id vocab.RevisionID, parents []vocab.RevisionID) Height {
	if len(parents) == 0 {
		h := Height{0}
		t.heights[id] = h
		return h
	}
	tallest := parents[0]
	for _, p := range parents[1:] {
		if t.heights[p].Compare(t.heights[tallest]) > 0 {
			tallest = p
		}
	}
	idx := t.nextChildIndex[tallest]
	t.nextChildIndex[tallest] = idx + 1
	h := t.heights[tallest].extend(idx)
	t.heights[id] = h
	return h
}
