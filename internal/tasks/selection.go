package tasks

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/desertthunder/spm/internal/models"
	"github.com/desertthunder/spm/internal/shared"
)

// Selection is a set of positions in a track list ordered newest addition first.
//
// The functions operating on a Selection never modify their argument.
type Selection map[int]struct{}

// NewSelection returns a selection holding indices.
func NewSelection(indices ...int) Selection {
	s := make(Selection, len(indices))
	for _, i := range indices {
		s[i] = struct{}{}
	}
	return s
}

// Has reports whether index i is selected.
func (s Selection) Has(i int) bool {
	_, ok := s[i]
	return ok
}

// Len returns the number of selected positions.
func (s Selection) Len() int {
	return len(s)
}

// Indices returns the selected positions in ascending order.
func (s Selection) Indices() []int {
	indices := make([]int, 0, len(s))
	for i := range s {
		indices = append(indices, i)
	}
	slices.Sort(indices)
	return indices
}

func (s Selection) clone() Selection {
	c := make(Selection, len(s))
	for i := range s {
		c[i] = struct{}{}
	}
	return c
}

// Toggle flips position i.
func Toggle(s Selection, i int) Selection {
	c := s.clone()
	if c.Has(i) {
		delete(c, i)
	} else {
		c[i] = struct{}{}
	}
	return c
}

// ToggleAll selects all n positions unless all are already selected, in which case it clears the selection.
func ToggleAll(s Selection, n int) Selection {
	if AllSelected(s, n) {
		return Selection{}
	}
	return SelectFirst(n)
}

// AllSelected reports whether every one of n positions is selected.
func AllSelected(s Selection, n int) bool {
	if n == 0 {
		return false
	}
	for i := range n {
		if !s.Has(i) {
			return false
		}
	}
	return true
}

// SelectFirst selects positions 0 through k-1.
func SelectFirst(k int) Selection {
	s := make(Selection, max(k, 0))
	for i := range k {
		s[i] = struct{}{}
	}
	return s
}

// SelectSince selects every track added after the track with id anchorID.
//
// Returns the anchor position, or -1 with an empty selection when the anchor is absent.
func SelectSince(tracks []models.Track, anchorID string) (Selection, int) {
	if anchorID == "" {
		return Selection{}, -1
	}
	k := slices.IndexFunc(tracks, func(t models.Track) bool { return t.ID == anchorID })
	if k < 0 {
		return Selection{}, -1
	}
	return SelectFirst(k), k
}

// ParseSelection parses a list such as "0,2-5" into positions of a list of n tracks.
func ParseSelection(expr string, n int) (Selection, error) {
	s := Selection{}
	for part := range strings.SplitSeq(expr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		lo, hi, isRange := strings.Cut(part, "-")
		start, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, fmt.Errorf("%w: bad index %q", shared.ErrInvalidArgument, part)
		}
		end := start
		if isRange {
			if end, err = strconv.Atoi(strings.TrimSpace(hi)); err != nil {
				return nil, fmt.Errorf("%w: bad range %q", shared.ErrInvalidArgument, part)
			}
		}

		if start < 0 || end >= n || start > end {
			return nil, fmt.Errorf("%w: %q is outside 0-%d", shared.ErrInvalidArgument, part, n-1)
		}
		for i := start; i <= end; i++ {
			s[i] = struct{}{}
		}
	}
	return s, nil
}

// Materialize returns the selected tracks in list order.
func Materialize(tracks []models.Track, s Selection) []models.Track {
	selected := make([]models.Track, 0, s.Len())
	for i, t := range tracks {
		if s.Has(i) {
			selected = append(selected, t)
		}
	}
	return selected
}
