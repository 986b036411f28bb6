package permission

import (
	"sort"
	"strings"
	"time"

	"github.com/wardenhq/warden/internal/trust"
)

// OverlapThreshold is the fraction of required categories that must be
// satisfied for an action to be allowed.
const OverlapThreshold = 0.8

// Engine performs pure permission decisions over the static requirement
// table. It has no side effects; denial bookkeeping belongs to the caller.
type Engine struct {
	table map[string]Requirement
	now   func() time.Time
}

// NewEngine builds an engine from the loaded requirement table.
func NewEngine(requirements []Requirement) *Engine {
	table := make(map[string]Requirement, len(requirements))
	for _, req := range requirements {
		name := normalizeAction(req.Action)
		if name == "" {
			continue
		}
		table[name] = req
	}
	return &Engine{
		table: table,
		now:   time.Now,
	}
}

// Actions returns the registered action names, sorted.
func (e *Engine) Actions() []string {
	names := make([]string, 0, len(e.table))
	for name := range e.table {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Overlap returns the fraction of the requirement's categories whose
// identity score meets the minimum, 1.0 when the requirement is empty.
func Overlap(id trust.Identity, req Requirement) float64 {
	if len(req.RequiredScores) == 0 {
		return 1.0
	}
	met := 0
	for category, minScore := range req.RequiredScores {
		if id.Score(category) >= minScore {
			met++
		}
	}
	return float64(met) / float64(len(req.RequiredScores))
}

// Decide applies the geometric permission test: allowed iff the overlap
// meets the threshold and sovereignty meets the requirement's floor.
func Decide(id trust.Identity, req Requirement) (allowed bool, overlap float64) {
	overlap = Overlap(id, req)
	return overlap >= OverlapThreshold && id.Sovereignty >= req.MinSovereignty, overlap
}

// Check evaluates an action against the current identity. Actions with
// no requirement entry allow by default (deliberate fail-open; flagged
// at startup so operators can confirm the policy).
func (e *Engine) Check(action string, id trust.Identity) Result {
	req, ok := e.table[normalizeAction(action)]
	if !ok {
		return Result{Allowed: true, Registered: false, Overlap: 1.0}
	}

	allowed, overlap := Decide(id, req)
	if allowed {
		return Result{Allowed: true, Registered: true, Overlap: overlap}
	}

	return Result{
		Registered: true,
		Overlap:    overlap,
		Denial: &Denial{
			Action:           req.Action,
			Skill:            req.Skill,
			Overlap:          overlap,
			Sovereignty:      id.Sovereignty,
			Threshold:        OverlapThreshold,
			FailedCategories: failedCategories(id, req),
			Timestamp:        e.now().UTC(),
		},
	}
}

func failedCategories(id trust.Identity, req Requirement) []trust.Category {
	var failed []trust.Category
	for category, minScore := range req.RequiredScores {
		if id.Score(category) < minScore {
			failed = append(failed, category)
		}
	}
	sort.Slice(failed, func(i, j int) bool { return failed[i] < failed[j] })
	return failed
}

func normalizeAction(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
