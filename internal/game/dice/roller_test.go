package dice_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/gametablehq/gametable/internal/game/dice"
	"github.com/gametablehq/gametable/internal/game/ruleset"
)

// scriptSource replays a fixed sequence of die faces.
type scriptSource struct {
	faces []int
	i     int
}

func (s *scriptSource) Intn(n int) int {
	if s.i >= len(s.faces) {
		panic("scriptSource exhausted")
	}
	v := s.faces[s.i]
	s.i++
	if v < 1 || v > n {
		panic("scripted face out of range for die")
	}
	return v - 1
}

func script(faces ...int) *scriptSource {
	return &scriptSource{faces: faces}
}

func mustParse(t *testing.T, expr string, rs *ruleset.RuleSet) dice.Notation {
	t.Helper()
	n, err := dice.Parse(expr, rs)
	require.NoError(t, err)
	return n
}

func intp(v int) *int { return &v }

// TestRoll_AdditiveExample covers the worked example: 3d6+2 with draws
// [6 4 2] against target 12 under an additive system whose critical set
// is {6}.
func TestRoll_AdditiveExample(t *testing.T) {
	rs := &ruleset.RuleSet{
		ID:            "additive-d6crit",
		Name:          "Additive with d6 crit",
		DefaultDie:    6,
		CriticalFaces: []int{6},
		FumbleFaces:   []int{},
	}
	require.NoError(t, rs.Validate())

	n := mustParse(t, "3d6+2", rs)
	res := dice.RollWithTarget(n, rs, script(6, 4, 2), 12)

	assert.Equal(t, 14, res.Total)
	require.NotNil(t, res.Success)
	assert.True(t, *res.Success, "total 14 >= target 12")
	assert.True(t, res.Critical, "one face hit 6")
	assert.False(t, res.Fumble)
	assert.Equal(t, [][]int{{6, 4, 2}}, res.Rolls)
}

// TestRoll_RollUnderExamples covers the percentile worked examples: draw 37
// vs target 45 succeeds, face 1 is critical, face 100 is fumble.
func TestRoll_RollUnderExamples(t *testing.T) {
	coc := reg().MustGet("callofcthulhu")
	n := mustParse(t, "d100", coc)

	res := dice.RollWithTarget(n, coc, script(37), 45)
	assert.Equal(t, 37, res.Total)
	require.NotNil(t, res.Success)
	assert.True(t, *res.Success, "roll-under: 37 <= 45")
	assert.False(t, res.Critical)
	assert.False(t, res.Fumble)

	res = dice.RollWithTarget(n, coc, script(60), 45)
	require.NotNil(t, res.Success)
	assert.False(t, *res.Success, "roll-under: 60 > 45")

	res = dice.Roll(n, coc, script(1))
	assert.True(t, res.Critical, "face 1 is in the critical set")
	assert.Nil(t, res.Success, "no target supplied leaves success absent")

	res = dice.Roll(n, coc, script(100))
	assert.True(t, res.Fumble, "face 100 is in the fumble set")
}

func TestRoll_PoolCountsSuccesses(t *testing.T) {
	sr := reg().MustGet("shadowrun")
	n := mustParse(t, "5d6+2", sr)

	// Faces 5 and 6 meet the threshold; the +2 modifier is ignored.
	res := dice.RollWithTarget(n, sr, script(5, 6, 4, 1, 5), 3)
	assert.Equal(t, 3, res.Total, "three faces met the threshold")
	require.NotNil(t, res.Success)
	assert.True(t, *res.Success, "3 successes >= target 3")
	assert.True(t, res.Critical, "a 6 was rolled")
	assert.True(t, res.Fumble, "a 1 was rolled")

	res = dice.RollWithTarget(n, sr, script(4, 4, 4, 4, 5), 2)
	assert.Equal(t, 1, res.Total)
	require.NotNil(t, res.Success)
	assert.False(t, *res.Success, "1 success < target 2")
}

func TestRoll_AdvantageKeepsMax(t *testing.T) {
	dnd := reg().MustGet("dnd5e")

	n := mustParse(t, "d20a", dnd)
	res := dice.Roll(n, dnd, script(7, 18))
	assert.Equal(t, [][]int{{18}}, res.Rolls)
	assert.Equal(t, 18, res.Total)

	n = mustParse(t, "d20dis", dnd)
	res = dice.Roll(n, dnd, script(7, 18))
	assert.Equal(t, [][]int{{7}}, res.Rolls)
	assert.Equal(t, 7, res.Total)
}

func TestRoll_AdvantageDiscardedFaceNeverFlags(t *testing.T) {
	dnd := reg().MustGet("dnd5e")
	n := mustParse(t, "d20a", dnd)

	// The discarded 1 must not flag a fumble; the kept 20 flags critical.
	res := dice.Roll(n, dnd, script(1, 20))
	assert.True(t, res.Critical)
	assert.False(t, res.Fumble, "discarded draw must not be evaluated")
}

func TestRoll_ExplodingChains(t *testing.T) {
	sw := reg().MustGet("savageworlds")
	n := mustParse(t, "2d6", sw)

	// First die explodes twice (6, 6, 3); second stops immediately (2).
	res := dice.Roll(n, sw, script(6, 6, 3, 2))
	assert.Equal(t, [][]int{{6, 6, 3, 2}}, res.Rolls)
	assert.Equal(t, 17, res.Total)
	assert.True(t, res.Critical)
}

func TestRoll_MultiGroupAdditive(t *testing.T) {
	dnd := reg().MustGet("dnd5e")
	n := mustParse(t, "2d6+1d4+3", dnd)
	res := dice.Roll(n, dnd, script(4, 5, 2))
	assert.Equal(t, [][]int{{4, 5}, {2}}, res.Rolls)
	assert.Equal(t, 14, res.Total)
}

func TestResult_String(t *testing.T) {
	rs := reg().MustGet("dnd5e")
	n := mustParse(t, "3d6+2", rs)
	res := dice.Roll(n, rs, script(6, 4, 2))
	s := res.String()
	assert.Contains(t, s, "3d6+2")
	assert.Contains(t, s, "[6 4 2]")
	assert.Contains(t, s, "= 14")
}

func TestResult_String_PanicsOnEmptyNotation(t *testing.T) {
	assert.Panics(t, func() { _ = dice.Result{}.String() })
}

// TestRoll_RawValuesInRange_Property verifies that for arbitrary valid
// notations every raw die value lies in [1, sides] and non-exploding groups
// produce exactly Count values.
func TestRoll_RawValuesInRange_Property(t *testing.T) {
	dnd := reg().MustGet("dnd5e")
	src := dice.NewCryptoSource()

	rapid.Check(t, func(rt *rapid.T) {
		count := rapid.IntRange(1, 20).Draw(rt, "count")
		sides := rapid.SampledFrom([]int{4, 6, 8, 10, 12, 20, 100}).Draw(rt, "sides")
		modifier := rapid.IntRange(-10, 10).Draw(rt, "modifier")

		n, err := dice.Parse(buildExpr(count, sides, modifier), dnd)
		require.NoError(rt, err)

		res := dice.Roll(n, dnd, src)
		require.Len(rt, res.Rolls, 1)
		assert.Len(rt, res.Rolls[0], count, "non-exploding group raw count must equal parsed count")

		sum := modifier
		for _, v := range res.Rolls[0] {
			assert.GreaterOrEqual(rt, v, 1)
			assert.LessOrEqual(rt, v, sides)
			sum += v
		}
		assert.Equal(rt, sum, res.Total, "additive total must be sum plus modifier")
	})
}

func buildExpr(count, sides, modifier int) string {
	switch {
	case modifier > 0:
		return fmt.Sprintf("%dd%d+%d", count, sides, modifier)
	case modifier < 0:
		return fmt.Sprintf("%dd%d%d", count, sides, modifier)
	default:
		return fmt.Sprintf("%dd%d", count, sides)
	}
}

// TestRoll_CriticalIffFaceInSet_Property verifies the critical/fumble flags
// are driven by individual faces only, never the total.
func TestRoll_CriticalIffFaceInSet_Property(t *testing.T) {
	dnd := reg().MustGet("dnd5e")
	src := dice.NewCryptoSource()

	rapid.Check(t, func(rt *rapid.T) {
		count := rapid.IntRange(1, 10).Draw(rt, "count")
		n, err := dice.Parse(fmt.Sprintf("%dd20", count), dnd)
		require.NoError(rt, err)

		res := dice.Roll(n, dnd, src)

		sawCrit, sawFumble := false, false
		for _, v := range res.Rolls[0] {
			if v == 20 {
				sawCrit = true
			}
			if v == 1 {
				sawFumble = true
			}
		}
		assert.Equal(rt, sawCrit, res.Critical)
		assert.Equal(rt, sawFumble, res.Fumble)
	})
}

func TestRoller_RollExpr(t *testing.T) {
	dnd := reg().MustGet("dnd5e")
	roller := dice.NewRoller(dice.NewCryptoSource(), zap.NewNop())

	res, err := roller.RollExpr("2d6+1", dnd, nil)
	require.NoError(t, err)
	assert.Nil(t, res.Success)
	assert.GreaterOrEqual(t, res.Total, 3)
	assert.LessOrEqual(t, res.Total, 13)

	res, err = roller.RollExpr("d20", dnd, intp(1))
	require.NoError(t, err)
	require.NotNil(t, res.Success)
	assert.True(t, *res.Success, "any d20 roll meets target 1")

	_, err = roller.RollExpr("nonsense", dnd, nil)
	require.ErrorIs(t, err, dice.ErrInvalidNotation)
}

func TestCryptoSource_Intn_InRange(t *testing.T) {
	src := dice.NewCryptoSource()
	for i := 0; i < 1000; i++ {
		v := src.Intn(6)
		assert.GreaterOrEqual(t, v, 0)
		assert.Less(t, v, 6)
	}
}

func TestCryptoSource_Intn_PanicsOnZero(t *testing.T) {
	src := dice.NewCryptoSource()
	assert.Panics(t, func() { src.Intn(0) })
}
