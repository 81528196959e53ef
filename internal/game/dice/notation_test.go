package dice_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gametablehq/gametable/internal/game/dice"
	"github.com/gametablehq/gametable/internal/game/ruleset"
)

func reg() *ruleset.Registry {
	return ruleset.NewRegistry()
}

func TestParse_BasicForms(t *testing.T) {
	rs := reg().MustGet("dnd5e")

	tests := []struct {
		expr     string
		groups   []dice.Group
		modifier int
	}{
		{"d20", []dice.Group{{Count: 1, Sides: 20, Kind: dice.KindNormal}}, 0},
		{"2d6", []dice.Group{{Count: 2, Sides: 6, Kind: dice.KindNormal}}, 0},
		{"3d6+2", []dice.Group{{Count: 3, Sides: 6, Kind: dice.KindNormal}}, 2},
		{"4d8-2", []dice.Group{{Count: 4, Sides: 8, Kind: dice.KindNormal}}, -2},
		{"2d6+1d4+3", []dice.Group{{Count: 2, Sides: 6}, {Count: 1, Sides: 4}}, 3},
		{"1d12+5-2", []dice.Group{{Count: 1, Sides: 12}}, 3},
	}
	for _, tc := range tests {
		n, err := dice.Parse(tc.expr, rs)
		require.NoError(t, err, "expression %q must parse", tc.expr)
		assert.Equal(t, tc.groups, n.Groups, "groups for %q", tc.expr)
		assert.Equal(t, tc.modifier, n.Modifier, "modifier for %q", tc.expr)
		assert.Equal(t, tc.expr, n.Raw)
	}
}

func TestParse_DefaultDie(t *testing.T) {
	rs := reg().MustGet("dnd5e")
	n, err := dice.Parse("2d", rs)
	require.NoError(t, err)
	require.Len(t, n.Groups, 1)
	assert.Equal(t, 20, n.Groups[0].Sides, "bare group rolls the system default die")
}

func TestParse_AdvantageSuffixes(t *testing.T) {
	rs := reg().MustGet("dnd5e")

	for _, expr := range []string{"d20a", "d20adv"} {
		n, err := dice.Parse(expr, rs)
		require.NoError(t, err, "expression %q", expr)
		assert.Equal(t, dice.KindAdvantage, n.Groups[0].Kind)
	}
	for _, expr := range []string{"d20d", "d20dis"} {
		n, err := dice.Parse(expr, rs)
		require.NoError(t, err, "expression %q", expr)
		assert.Equal(t, dice.KindDisadvantage, n.Groups[0].Kind)
	}
}

func TestParse_AdvantageRequiresSingleDie(t *testing.T) {
	rs := reg().MustGet("dnd5e")
	_, err := dice.Parse("2d20a", rs)
	require.ErrorIs(t, err, dice.ErrInvalidNotation)
}

func TestParse_AdvantageRejectedWhenUnsupported(t *testing.T) {
	coc := reg().MustGet("callofcthulhu")
	_, err := dice.Parse("d100a", coc)
	require.ErrorIs(t, err, dice.ErrInvalidNotation)
}

func TestParse_ExplodingFromRuleSet(t *testing.T) {
	sw := reg().MustGet("savageworlds")
	n, err := dice.Parse("2d6", sw)
	require.NoError(t, err)
	assert.Equal(t, dice.KindExploding, n.Groups[0].Kind)

	dnd := reg().MustGet("dnd5e")
	n, err = dice.Parse("2d6", dnd)
	require.NoError(t, err)
	assert.Equal(t, dice.KindNormal, n.Groups[0].Kind)
}

func TestParse_Invalid(t *testing.T) {
	rs := reg().MustGet("dnd5e")
	for _, expr := range []string{
		"", "20", "+3", "0d6", "d1", "2d6+", "-2d6", "2d6kh", "abc", "2d6x3", "101d6", "d2000",
	} {
		_, err := dice.Parse(expr, rs)
		require.ErrorIs(t, err, dice.ErrInvalidNotation, "expression %q must be rejected", expr)
	}
}

func TestParse_IgnoresSpacesAndCase(t *testing.T) {
	rs := reg().MustGet("dnd5e")
	n, err := dice.Parse("3D6 + 2", rs)
	require.NoError(t, err)
	assert.Equal(t, 2, n.Modifier)
	assert.Equal(t, dice.Group{Count: 3, Sides: 6, Kind: dice.KindNormal}, n.Groups[0])
}
