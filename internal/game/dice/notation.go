package dice

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gametablehq/gametable/internal/game/ruleset"
)

// ErrInvalidNotation is the sentinel for notation strings that do not parse
// under the active rule set. Parse failures wrap this error with detail.
var ErrInvalidNotation = errors.New("invalid dice notation")

// Kind classifies how one dice group is rolled.
type Kind int

const (
	// KindNormal draws count independent dice.
	KindNormal Kind = iota
	// KindAdvantage draws two dice and keeps the maximum (single-die checks only).
	KindAdvantage
	// KindDisadvantage draws two dice and keeps the minimum (single-die checks only).
	KindDisadvantage
	// KindExploding chains extra draws while a die shows its maximum face.
	KindExploding
)

// String returns a human-readable kind label.
func (k Kind) String() string {
	switch k {
	case KindNormal:
		return "normal"
	case KindAdvantage:
		return "advantage"
	case KindDisadvantage:
		return "disadvantage"
	case KindExploding:
		return "exploding"
	default:
		return "unknown"
	}
}

// Group is one parsed dice group.
// Invariant after Parse: Count >= 1, Sides >= 2.
type Group struct {
	Count int
	Sides int
	Kind  Kind
}

// Notation is a parsed, immutable dice expression: an ordered sequence of
// dice groups plus one flat modifier.
type Notation struct {
	Raw      string
	Groups   []Group
	Modifier int
}

const (
	maxGroupCount = 100
	maxDieSides   = 1000
)

// Parse parses a notation string under the given rule set.
//
// Supported forms: "d20", "2d6", "3d6+2", "4d8-2", "2d6+1d4+3", and, when
// the rule set supports advantage, the suffixes "a"/"adv" and "d"/"dis"
// on a single-die group ("d20a", "d20dis"). A group with no sides digits
// rolls the rule set's default die ("3d"). When the rule set marks the
// system as exploding, every normal group becomes exploding.
//
// Precondition: rs must be non-nil.
// Postcondition: Returns a Notation with at least one group, or an error
// wrapping ErrInvalidNotation.
func Parse(expr string, rs *ruleset.RuleSet) (Notation, error) {
	if rs == nil {
		panic("dice: Parse called with nil rule set")
	}
	raw := expr
	s := strings.ToLower(strings.ReplaceAll(expr, " ", ""))
	if s == "" {
		return Notation{}, fmt.Errorf("%w: empty expression", ErrInvalidNotation)
	}

	n := Notation{Raw: raw}

	// Split into signed terms. A leading '+' is implied.
	for len(s) > 0 {
		sign := 1
		switch s[0] {
		case '+':
			s = s[1:]
		case '-':
			sign = -1
			s = s[1:]
		}
		if s == "" {
			return Notation{}, fmt.Errorf("%w: dangling sign in %q", ErrInvalidNotation, raw)
		}

		end := 1
		for end < len(s) && s[end] != '+' && s[end] != '-' {
			end++
		}
		term := s[:end]
		s = s[end:]

		if strings.ContainsRune(term, 'd') && !isInteger(term) {
			if sign < 0 {
				return Notation{}, fmt.Errorf("%w: negative dice group in %q", ErrInvalidNotation, raw)
			}
			g, err := parseGroup(term, raw, rs)
			if err != nil {
				return Notation{}, err
			}
			n.Groups = append(n.Groups, g)
			continue
		}

		v, err := strconv.Atoi(term)
		if err != nil {
			return Notation{}, fmt.Errorf("%w: bad term %q in %q", ErrInvalidNotation, term, raw)
		}
		n.Modifier += sign * v
	}

	if len(n.Groups) == 0 {
		return Notation{}, fmt.Errorf("%w: no dice group in %q", ErrInvalidNotation, raw)
	}
	return n, nil
}

func isInteger(s string) bool {
	_, err := strconv.Atoi(s)
	return err == nil
}

// parseGroup parses a single dice-group term of the form [count]d[sides][suffix].
func parseGroup(term, raw string, rs *ruleset.RuleSet) (Group, error) {
	dIdx := strings.IndexByte(term, 'd')
	if dIdx < 0 {
		return Group{}, fmt.Errorf("%w: missing die marker in %q", ErrInvalidNotation, raw)
	}

	count := 1
	if countStr := term[:dIdx]; countStr != "" {
		c, err := strconv.Atoi(countStr)
		if err != nil || c < 1 {
			return Group{}, fmt.Errorf("%w: bad die count %q in %q", ErrInvalidNotation, countStr, raw)
		}
		count = c
	}
	if count > maxGroupCount {
		return Group{}, fmt.Errorf("%w: die count %d exceeds limit %d", ErrInvalidNotation, count, maxGroupCount)
	}

	rest := term[dIdx+1:]
	digits := 0
	for digits < len(rest) && rest[digits] >= '0' && rest[digits] <= '9' {
		digits++
	}

	sides := rs.DefaultDie
	if digits > 0 {
		v, err := strconv.Atoi(rest[:digits])
		if err != nil {
			return Group{}, fmt.Errorf("%w: bad die sides in %q", ErrInvalidNotation, raw)
		}
		sides = v
	}
	if sides < 2 || sides > maxDieSides {
		return Group{}, fmt.Errorf("%w: die sides %d out of range in %q", ErrInvalidNotation, sides, raw)
	}

	kind := KindNormal
	if rs.Exploding {
		kind = KindExploding
	}

	switch suffix := rest[digits:]; suffix {
	case "":
	case "a", "adv":
		if !rs.Advantage {
			return Group{}, fmt.Errorf("%w: %s does not support advantage", ErrInvalidNotation, rs.ID)
		}
		if count != 1 {
			return Group{}, fmt.Errorf("%w: advantage requires a single die in %q", ErrInvalidNotation, raw)
		}
		kind = KindAdvantage
	case "d", "dis":
		if !rs.Advantage {
			return Group{}, fmt.Errorf("%w: %s does not support disadvantage", ErrInvalidNotation, rs.ID)
		}
		if count != 1 {
			return Group{}, fmt.Errorf("%w: disadvantage requires a single die in %q", ErrInvalidNotation, raw)
		}
		kind = KindDisadvantage
	default:
		return Group{}, fmt.Errorf("%w: unknown suffix %q in %q", ErrInvalidNotation, suffix, raw)
	}

	return Group{Count: count, Sides: sides, Kind: kind}, nil
}
