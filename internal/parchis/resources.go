package parchis

// Resources is the five-counter bag every player carries.
type Resources struct {
	Silver int `json:"silver"`
	Stone  int `json:"stone"`
	Wood   int `json:"wood"`
	Fiber  int `json:"fiber"`
	Ore    int `json:"ore"`
}

var StartingResources = Resources{Silver: 100, Stone: 50, Wood: 50, Fiber: 50, Ore: 50}

var ResourceLimits = Resources{Silver: 999, Stone: 999, Wood: 999, Fiber: 999, Ore: 99}

func (r Resources) Add(o Resources) Resources {
	return Resources{
		Silver: r.Silver + o.Silver,
		Stone:  r.Stone + o.Stone,
		Wood:   r.Wood + o.Wood,
		Fiber:  r.Fiber + o.Fiber,
		Ore:    r.Ore + o.Ore,
	}
}

func (r Resources) Sub(o Resources) Resources {
	return r.Add(o.Scale(-1))
}

func (r Resources) Scale(n int) Resources {
	return Resources{
		Silver: r.Silver * n,
		Stone:  r.Stone * n,
		Wood:   r.Wood * n,
		Fiber:  r.Fiber * n,
		Ore:    r.Ore * n,
	}
}

// Covers reports whether r holds at least o of every resource.
func (r Resources) Covers(o Resources) bool {
	return r.Silver >= o.Silver &&
		r.Stone >= o.Stone &&
		r.Wood >= o.Wood &&
		r.Fiber >= o.Fiber &&
		r.Ore >= o.Ore
}

func (r Resources) IsZero() bool {
	return r == Resources{}
}

func (r Resources) HasNegative() bool {
	return r.Silver < 0 || r.Stone < 0 || r.Wood < 0 || r.Fiber < 0 || r.Ore < 0
}

// Clamp caps every counter at the matching limit.
func (r Resources) Clamp(limit Resources) Resources {
	return Resources{
		Silver: min(r.Silver, limit.Silver),
		Stone:  min(r.Stone, limit.Stone),
		Wood:   min(r.Wood, limit.Wood),
		Fiber:  min(r.Fiber, limit.Fiber),
		Ore:    min(r.Ore, limit.Ore),
	}
}
