package ruleset

// Builtin returns the rule sets shipped with the server. The slice and its
// elements must be treated as read-only.
func Builtin() []*RuleSet {
	return []*RuleSet{
		{
			ID:            "dnd5e",
			Name:          "Dungeons & Dragons 5e",
			DefaultDie:    20,
			Advantage:     true,
			CriticalFaces: []int{20},
			FumbleFaces:   []int{1},
		},
		{
			ID:            "pathfinder2e",
			Name:          "Pathfinder 2e",
			DefaultDie:    20,
			Advantage:     true,
			CriticalFaces: []int{20},
			FumbleFaces:   []int{1},
		},
		{
			ID:            "callofcthulhu",
			Name:          "Call of Cthulhu 7e",
			DefaultDie:    100,
			SuccessBased:  true,
			RollUnder:     true,
			CriticalFaces: []int{1},
			FumbleFaces:   []int{100},
		},
		{
			ID:               "shadowrun",
			Name:             "Shadowrun 6e",
			DefaultDie:       6,
			SuccessBased:     true,
			SuccessThreshold: 5,
			CriticalFaces:    []int{6},
			FumbleFaces:      []int{1},
		},
		{
			ID:            "savageworlds",
			Name:          "Savage Worlds",
			DefaultDie:    6,
			Exploding:     true,
			CriticalFaces: []int{6},
			FumbleFaces:   []int{1},
		},
	}
}
