package adapter

import (
	"fmt"
	"sort"
)

// ApplyEdits splices the edits into src and returns the new content. Every
// span is bounds-checked and overlap-checked first; edits are then applied
// in descending start order so the remaining offsets stay valid.
func ApplyEdits(src []byte, edits []MutationEdit) ([]byte, error) {
	if len(edits) == 0 {
		return src, nil
	}
	sorted := make([]MutationEdit, len(edits))
	copy(sorted, edits)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].End < sorted[j].End
	})
	for i, e := range sorted {
		if e.Start < 0 || e.End > len(src) || e.Start > e.End {
			return nil, fmt.Errorf("edit span [%d:%d) out of bounds for %d bytes", e.Start, e.End, len(src))
		}
		if i > 0 && e.Start < sorted[i-1].End {
			p := sorted[i-1]
			return nil, fmt.Errorf("overlapping edit spans [%d:%d) and [%d:%d)", p.Start, p.End, e.Start, e.End)
		}
	}
	out := append([]byte(nil), src...)
	for i := len(sorted) - 1; i >= 0; i-- {
		e := sorted[i]
		out = append(out[:e.Start], append([]byte(e.Replacement), out[e.End:]...)...)
	}
	return out, nil
}
