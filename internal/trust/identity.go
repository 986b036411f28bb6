package trust

import "time"

// Category names one trust dimension (e.g. "security", "testing").
type Category string

// Identity is the externally computed trust estimate for the worker:
// per-category scores plus a scalar sovereignty value, all in [0,1].
// Identities are values; only a Provider reload produces a new one.
type Identity struct {
	Scores      map[Category]float64 `json:"scores"`
	Sovereignty float64              `json:"sovereignty"`
	LoadedAt    time.Time            `json:"loaded_at"`
}

// Score returns the identity's score for a category, zero when absent.
func (id Identity) Score(category Category) float64 {
	return id.Scores[category]
}

// Clamped returns a copy with every score and the sovereignty value
// clamped into [0,1]. The external pipeline owns the numbers, but the
// in-process invariant holds regardless of what it wrote.
func (id Identity) Clamped() Identity {
	out := Identity{
		Scores:      make(map[Category]float64, len(id.Scores)),
		Sovereignty: clamp01(id.Sovereignty),
		LoadedAt:    id.LoadedAt,
	}
	for category, score := range id.Scores {
		out.Scores[category] = clamp01(score)
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
