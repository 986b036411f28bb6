package scheduler

import "time"

// Tier classifies an inbound event's urgency.
type Tier string

const (
	// TierPrivileged bypasses the intervention window and executes
	// immediately. It does not bypass the permission check.
	TierPrivileged Tier = "privileged"
	// TierOrdinary queues the action behind a timeout so a supervisor
	// can intervene before it runs.
	TierOrdinary Tier = "ordinary"
)

// Status is the lifecycle state of a prediction.
type Status string

const (
	StatusPending    Status = "pending"
	StatusCompleted  Status = "completed"
	StatusRedirected Status = "redirected"
	StatusAborted    Status = "aborted"
)

// Prediction is a proposed autonomous action queued for timeout-gated
// execution unless a supervisor redirects it first.
type Prediction struct {
	ID             string        `json:"id"`
	Room           string        `json:"room"`
	Tier           Tier          `json:"tier"`
	ContextRef     string        `json:"context_ref,omitempty"`
	ProposedAction string        `json:"proposed_action"`
	CreatedAt      time.Time     `json:"created_at"`
	Timeout        time.Duration `json:"timeout"`
	Status         Status        `json:"status"`
	Generation     uint64        `json:"generation"`
}

// ExpiresAt returns the moment the intervention window closes.
func (p Prediction) ExpiresAt() time.Time {
	return p.CreatedAt.Add(p.Timeout)
}
