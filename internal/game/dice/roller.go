package dice

import (
	"go.uber.org/zap"

	"github.com/gametablehq/gametable/internal/game/ruleset"
)

// Roll evaluates a parsed Notation under rs using src.
//
// Precondition: n must come from Parse under the same rule set; src must be
// non-nil.
// Postcondition: Every raw value lies in [1, sides] for its group; for
// non-exploding groups len(raw) == Count; Success is nil.
func Roll(n Notation, rs *ruleset.RuleSet, src Source) Result {
	res := Result{
		Notation: n.Raw,
		Rolls:    make([][]int, 0, len(n.Groups)),
		Modifier: n.Modifier,
	}

	for _, g := range n.Groups {
		raw := rollGroup(g, src)
		res.Rolls = append(res.Rolls, raw)
		for _, v := range raw {
			if rs.IsCritical(v) {
				res.Critical = true
			}
			if rs.IsFumble(v) {
				res.Fumble = true
			}
		}
	}

	res.Total = total(res.Rolls, n.Modifier, rs)
	return res
}

// RollWithTarget evaluates n like Roll and additionally sets the Success
// flag against target: roll-under systems succeed on total <= target, pool
// systems on success count >= target, additive systems on total >= target.
//
// Postcondition: Result.Success is non-nil.
func RollWithTarget(n Notation, rs *ruleset.RuleSet, src Source, target int) Result {
	res := Roll(n, rs, src)
	var ok bool
	switch {
	case rs.SuccessBased && rs.RollUnder:
		ok = res.Total <= target
	case rs.Pool():
		ok = res.Total >= target
	default:
		ok = res.Total >= target
	}
	res.Success = &ok
	return res
}

func rollGroup(g Group, src Source) []int {
	switch g.Kind {
	case KindAdvantage, KindDisadvantage:
		a := src.Intn(g.Sides) + 1
		b := src.Intn(g.Sides) + 1
		kept := a
		if g.Kind == KindAdvantage && b > a {
			kept = b
		}
		if g.Kind == KindDisadvantage && b < a {
			kept = b
		}
		return []int{kept}

	case KindExploding:
		// Each die chains while it shows its maximum face; every draw in
		// the chain, including the triggering maximum, is accumulated.
		var raw []int
		for i := 0; i < g.Count; i++ {
			for {
				v := src.Intn(g.Sides) + 1
				raw = append(raw, v)
				if v < g.Sides {
					break
				}
			}
		}
		return raw

	default:
		raw := make([]int, g.Count)
		for i := range raw {
			raw[i] = src.Intn(g.Sides) + 1
		}
		return raw
	}
}

// total computes the rule-set-dependent total. Pool systems count raw values
// meeting the success threshold and ignore the modifier; everything else,
// percentile included, sums raw values plus the modifier.
func total(rolls [][]int, modifier int, rs *ruleset.RuleSet) int {
	if rs.Pool() {
		count := 0
		for _, group := range rolls {
			for _, v := range group {
				if v >= rs.SuccessThreshold {
					count++
				}
			}
		}
		return count
	}

	sum := modifier
	for _, group := range rolls {
		for _, v := range group {
			sum += v
		}
	}
	return sum
}

// Roller wraps a Source and logger so every roll is logged with its
// expression, raw values, and total.
type Roller struct {
	src    Source
	logger *zap.Logger
}

// NewRoller creates a Roller that rolls with src and logs each roll at
// debug level.
//
// Precondition: src and logger must be non-nil.
func NewRoller(src Source, logger *zap.Logger) *Roller {
	return &Roller{src: src, logger: logger}
}

// RollExpr parses expr under rs, rolls it, evaluates target when non-nil,
// and logs the result.
//
// Postcondition: Returns a Result or an error wrapping ErrInvalidNotation.
func (r *Roller) RollExpr(expr string, rs *ruleset.RuleSet, target *int) (Result, error) {
	n, err := Parse(expr, rs)
	if err != nil {
		return Result{}, err
	}

	var res Result
	if target != nil {
		res = RollWithTarget(n, rs, r.src, *target)
	} else {
		res = Roll(n, rs, r.src)
	}

	fields := []zap.Field{
		zap.String("notation", res.Notation),
		zap.String("ruleset", rs.ID),
		zap.Int("total", res.Total),
		zap.Bool("critical", res.Critical),
		zap.Bool("fumble", res.Fumble),
	}
	if target != nil {
		fields = append(fields, zap.Int("target", *target), zap.Boolp("success", res.Success))
	}
	r.logger.Debug("dice roll", fields...)

	return res, nil
}
