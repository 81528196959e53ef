// Package ruleset defines the static game-system reference data that
// parameterizes dice resolution: which notation features a system supports,
// how totals are computed, and which die faces count as critical or fumble.
package ruleset

import (
	"fmt"
	"strings"
)

// RuleSet is the read-only configuration for one game system.
// RuleSets are constructed at startup (built-in or loaded from YAML) and
// never mutated afterwards, so they are safe for concurrent reads.
//
// Invariant: DefaultDie >= 2. SuccessThreshold > 0 iff the system is a
// pool-counting system (SuccessBased && !RollUnder).
type RuleSet struct {
	// ID is the stable system identifier, e.g. "dnd5e".
	ID string `yaml:"id"`
	// Name is the display name, e.g. "Dungeons & Dragons 5e".
	Name string `yaml:"name"`
	// DefaultDie is the sides of the system's signature die (20 for d20
	// systems, 100 for percentile, 6 for pools).
	DefaultDie int `yaml:"default_die"`
	// Advantage reports whether the system supports advantage/disadvantage
	// suffixes in notation.
	Advantage bool `yaml:"advantage"`
	// Exploding reports whether dice in this system explode: a die showing
	// its maximum face is rerolled and every draw accumulates.
	Exploding bool `yaml:"exploding"`
	// SuccessBased reports whether the system evaluates success rather than
	// a purely additive total.
	SuccessBased bool `yaml:"success_based"`
	// RollUnder reports whether success means rolling at or below the
	// target. Only meaningful when SuccessBased is true; a success-based
	// system that is not roll-under counts pool successes instead.
	RollUnder bool `yaml:"roll_under"`
	// SuccessThreshold is the minimum face value that counts as one success
	// in a pool-counting system (e.g. 5 on a d6 pool).
	SuccessThreshold int `yaml:"success_threshold"`
	// CriticalFaces are the individual face values that flag a critical.
	CriticalFaces []int `yaml:"critical_faces"`
	// FumbleFaces are the individual face values that flag a fumble.
	FumbleFaces []int `yaml:"fumble_faces"`
}

// Pool reports whether this system counts pool successes: success-based but
// not roll-under.
func (r *RuleSet) Pool() bool {
	return r.SuccessBased && !r.RollUnder
}

// IsCritical reports whether a single raw die face is in the critical set.
func (r *RuleSet) IsCritical(face int) bool {
	return containsFace(r.CriticalFaces, face)
}

// IsFumble reports whether a single raw die face is in the fumble set.
func (r *RuleSet) IsFumble(face int) bool {
	return containsFace(r.FumbleFaces, face)
}

func containsFace(faces []int, face int) bool {
	for _, f := range faces {
		if f == face {
			return true
		}
	}
	return false
}

// Validate checks the rule set invariants.
//
// Postcondition: Returns nil if the rule set is internally consistent, or an
// error describing all violations.
func (r *RuleSet) Validate() error {
	var errs []string
	if r.ID == "" {
		errs = append(errs, "id must not be empty")
	}
	if r.Name == "" {
		errs = append(errs, "name must not be empty")
	}
	if r.DefaultDie < 2 {
		errs = append(errs, fmt.Sprintf("default_die must be >= 2, got %d", r.DefaultDie))
	}
	if r.Pool() && r.SuccessThreshold < 1 {
		errs = append(errs, "success_threshold must be >= 1 for pool systems")
	}
	if !r.Pool() && r.SuccessThreshold != 0 {
		errs = append(errs, "success_threshold is only valid for pool systems")
	}
	if r.RollUnder && !r.SuccessBased {
		errs = append(errs, "roll_under requires success_based")
	}
	for _, f := range r.CriticalFaces {
		if f < 1 {
			errs = append(errs, fmt.Sprintf("critical face %d must be >= 1", f))
		}
	}
	for _, f := range r.FumbleFaces {
		if f < 1 {
			errs = append(errs, fmt.Sprintf("fumble face %d must be >= 1", f))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("ruleset %q: %s", r.ID, strings.Join(errs, "; "))
	}
	return nil
}
