package permission

import (
	"time"

	"github.com/wardenhq/warden/internal/trust"
)

// Requirement is one row of the static requirement table: the minimum
// per-category trust scores and the sovereignty floor an action demands.
type Requirement struct {
	Action         string                     `json:"action"`
	Skill          string                     `json:"skill,omitempty"`
	RequiredScores map[trust.Category]float64 `json:"required_scores"`
	MinSovereignty float64                    `json:"min_sovereignty"`
}

// Denial describes one refused action. Created once, never mutated.
type Denial struct {
	Action           string           `json:"action"`
	Skill            string           `json:"skill,omitempty"`
	Overlap          float64          `json:"overlap"`
	Sovereignty      float64          `json:"sovereignty"`
	Threshold        float64          `json:"threshold"`
	FailedCategories []trust.Category `json:"failed_categories,omitempty"`
	Timestamp        time.Time        `json:"timestamp"`
}

// Result is the outcome of a permission check.
type Result struct {
	Allowed    bool
	Registered bool
	Overlap    float64
	Denial     *Denial
}
