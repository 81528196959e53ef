package ruleset

import "fmt"

// Registry provides rule set lookup by system ID.
// It is populated during startup and read-only afterwards; concurrent reads
// after construction are safe, concurrent registration is not.
type Registry struct {
	systems map[string]*RuleSet
}

// NewRegistry returns a Registry preloaded with the built-in rule sets.
//
// Postcondition: Every system in Builtin() is retrievable via Get.
func NewRegistry() *Registry {
	r := &Registry{systems: make(map[string]*RuleSet)}
	for _, rs := range Builtin() {
		r.systems[rs.ID] = rs
	}
	return r
}

// Register adds a rule set to the registry after validating it.
// Registering an existing ID overrides the previous definition, which is how
// a YAML directory customizes a built-in system.
//
// Precondition: rs must be non-nil.
// Postcondition: rs is retrievable via Get(rs.ID), or an error is returned
// and the registry is unchanged.
func (r *Registry) Register(rs *RuleSet) error {
	if rs == nil {
		panic("ruleset: Register called with nil rule set")
	}
	if err := rs.Validate(); err != nil {
		return err
	}
	r.systems[rs.ID] = rs
	return nil
}

// Get returns the rule set for the given system ID.
//
// Postcondition: Returns (rule set, true) if registered, or (nil, false).
func (r *Registry) Get(id string) (*RuleSet, bool) {
	rs, ok := r.systems[id]
	return rs, ok
}

// MustGet returns the rule set for id or panics. Useful in tests and for
// the built-in IDs.
func (r *Registry) MustGet(id string) *RuleSet {
	rs, ok := r.systems[id]
	if !ok {
		panic(fmt.Sprintf("ruleset: unknown system %q", id))
	}
	return rs
}

// IDs returns the registered system identifiers.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.systems))
	for id := range r.systems {
		ids = append(ids, id)
	}
	return ids
}
