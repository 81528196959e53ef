package dice

import (
	"fmt"
	"strings"
)

// Result holds the full audit trail for a single dice roll evaluation.
// It is transient: produced per roll request and never persisted here.
type Result struct {
	// Notation is the original expression string, e.g. "3d6+2".
	Notation string
	// Rolls holds the raw die values per group, in group order.
	Rolls [][]int
	// Modifier is the flat modifier applied to additive totals.
	Modifier int
	// Total is the rule-set-dependent total: additive sum, percentile sum,
	// or pool success count.
	Total int
	// Success is present only when the caller supplied a target under a
	// success-based evaluation; nil means "no target supplied", never false.
	Success *bool
	// Critical is true iff any single raw value is in the critical face set.
	Critical bool
	// Fumble is true iff any single raw value is in the fumble face set.
	Fumble bool
}

// String returns a human-readable audit string in the format:
//
//	"3d6+2 → [6 4 2] +2 = 14"
//
// with " (critical)" / " (fumble)" appended when flagged and the success
// verdict appended when a target was evaluated.
//
// Precondition: r.Notation is non-empty.
func (r Result) String() string {
	if r.Notation == "" {
		panic("dice: Result.String() precondition violated: Notation must be non-empty")
	}
	var b strings.Builder
	b.WriteString(r.Notation)
	b.WriteString(" → ")
	for _, group := range r.Rolls {
		b.WriteString(fmt.Sprintf("%v", group))
	}
	if r.Modifier != 0 {
		b.WriteString(fmt.Sprintf(" %+d", r.Modifier))
	}
	b.WriteString(fmt.Sprintf(" = %d", r.Total))
	if r.Critical {
		b.WriteString(" (critical)")
	}
	if r.Fumble {
		b.WriteString(" (fumble)")
	}
	if r.Success != nil {
		if *r.Success {
			b.WriteString(" (success)")
		} else {
			b.WriteString(" (failure)")
		}
	}
	return b.String()
}
