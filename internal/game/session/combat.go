package session

import "sort"

// Combatant is one participant in a combat encounter.
type Combatant struct {
	// ID is the combatant identifier (usually a character id).
	ID string
	// Initiative is the combatant's current initiative score.
	Initiative int
	// NPC marks game-master-controlled combatants.
	NPC bool
}

// Encounter tracks initiative ordering and turn progression for one room.
// At most one encounter exists per room; it is created by start-combat and
// cleared by end-combat. Not safe for concurrent use on its own; the
// owning Room serializes access.
//
// Invariant: after Start, combatants are ordered descending by initiative
// with insertion order as the stable tie-break. SetInitiative updates the
// stored score without re-sorting; display ordering is a read-time concern
// (Order), so the active turn never silently moves mid-combat.
type Encounter struct {
	combatants []Combatant
	turn       int
	active     bool
}

// Start begins the encounter with the given combatants, sorted descending
// by initiative (stable tie-break by input order), turn index 0.
//
// Precondition: entries must be non-empty.
// Postcondition: Active() is true; Combatants() is sorted descending.
func (e *Encounter) Start(entries []Combatant) {
	e.combatants = make([]Combatant, len(entries))
	copy(e.combatants, entries)
	sort.SliceStable(e.combatants, func(i, j int) bool {
		return e.combatants[i].Initiative > e.combatants[j].Initiative
	})
	e.turn = 0
	e.active = true
}

// End clears the encounter.
//
// Postcondition: Active() is false; Combatants() is empty.
func (e *Encounter) End() {
	e.combatants = nil
	e.turn = 0
	e.active = false
}

// Active reports whether the encounter is running.
func (e *Encounter) Active() bool { return e.active }

// Turn returns the current turn index.
func (e *Encounter) Turn() int { return e.turn }

// Combatants returns a copy of the stored combatant sequence in its
// authoritative turn order (the order fixed at Start).
func (e *Encounter) Combatants() []Combatant {
	out := make([]Combatant, len(e.combatants))
	copy(out, e.combatants)
	return out
}

// SetInitiative replaces the stored score for the given combatant without
// re-sorting the turn order.
//
// Postcondition: Returns true iff the combatant was found.
func (e *Encounter) SetInitiative(id string, score int) bool {
	for i := range e.combatants {
		if e.combatants[i].ID == id {
			e.combatants[i].Initiative = score
			return true
		}
	}
	return false
}

// Order returns the combatants re-sorted by their latest initiative scores
// (descending, stable). This is the display ordering; it does not touch the
// authoritative turn sequence.
func (e *Encounter) Order() []Combatant {
	out := e.Combatants()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Initiative > out[j].Initiative
	})
	return out
}

// NextTurn advances to the next combatant in the authoritative order,
// wrapping to the start of a new round.
//
// Precondition: the encounter must be active with at least one combatant.
// Postcondition: Returns the combatant whose turn begins and whether the
// advance wrapped around.
func (e *Encounter) NextTurn() (Combatant, bool) {
	e.turn = (e.turn + 1) % len(e.combatants)
	return e.combatants[e.turn], e.turn == 0
}
