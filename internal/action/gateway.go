package action

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/wardenhq/warden/internal/drift"
	"github.com/wardenhq/warden/internal/permission"
	"github.com/wardenhq/warden/internal/trust"
)

// ErrDenied marks a permission denial. Not fatal; the denial is
// recorded and surfaced as a structured result.
var ErrDenied = errors.New("permission denied")

// ErrUnknownAction marks an action name with no registered variant.
var ErrUnknownAction = errors.New("action not registered")

// InvokeResult is the structured outcome of an invocation attempt.
type InvokeResult struct {
	Action  string
	Allowed bool
	Overlap float64
	Denial  *permission.Denial
}

// Gateway gates every privileged action behind the permission test.
// Denials feed the drift tracker; allowed actions are dispatched to
// their registered variant and the result propagated unmodified — retry
// policy belongs to the action layer, not the gateway.
type Gateway struct {
	engine   *permission.Engine
	tracker  *drift.Tracker
	registry *Registry
	identity trust.Provider

	// OnDecision observes every permission decision for audit/metrics.
	OnDecision func(action string, res permission.Result)
	// OnOutcome observes the dispatch result of allowed actions.
	OnOutcome func(action string, err error)
}

// NewGateway creates the action gateway.
func NewGateway(engine *permission.Engine, tracker *drift.Tracker, registry *Registry, identity trust.Provider) *Gateway {
	return &Gateway{
		engine:   engine,
		tracker:  tracker,
		registry: registry,
		identity: identity,
	}
}

// Invoke attempts a privileged action. Permission is checked first:
// denied actions are recorded (and may escalate to drift) without
// running; allowed actions reset the consecutive-denial counter and run.
func (g *Gateway) Invoke(ctx context.Context, actionName string, p Payload) (InvokeResult, error) {
	actionName = strings.TrimSpace(actionName)
	id := g.identity.Identity()
	res := g.engine.Check(actionName, id)
	if g.OnDecision != nil {
		g.OnDecision(actionName, res)
	}

	if !res.Allowed {
		g.tracker.RecordDenial(*res.Denial)
		g.tracker.CheckDrift()
		slog.Info("action denied",
			"action", actionName,
			"overlap", res.Denial.Overlap,
			"sovereignty", res.Denial.Sovereignty,
			"failed_categories", res.Denial.FailedCategories,
		)
		return InvokeResult{Action: actionName, Overlap: res.Overlap, Denial: res.Denial},
			fmt.Errorf("%s: %w", actionName, ErrDenied)
	}

	g.tracker.RecordAllow()

	variant, ok := g.registry.Get(actionName)
	if !ok {
		return InvokeResult{Action: actionName, Allowed: true, Overlap: res.Overlap},
			fmt.Errorf("%s: %w", actionName, ErrUnknownAction)
	}

	err := dispatch(ctx, variant, p)
	if g.OnOutcome != nil {
		g.OnOutcome(actionName, err)
	}
	return InvokeResult{Action: actionName, Allowed: true, Overlap: res.Overlap}, err
}

// dispatch routes a variant by its concrete type. The variant set is
// sealed, so the switch is exhaustive.
func dispatch(ctx context.Context, v Variant, p Payload) error {
	switch variant := v.(type) {
	case *Executable:
		if variant.Run == nil {
			return fmt.Errorf("executable %s has no run function", variant.ActionName)
		}
		return variant.Run(ctx, p)
	case *Categorizer:
		if variant.Categorize == nil {
			return fmt.Errorf("categorizer %s has no categorize function", variant.ActionName)
		}
		_, err := variant.Categorize(ctx, p)
		return err
	case *Trainer:
		if variant.Train == nil {
			return fmt.Errorf("trainer %s has no train function", variant.ActionName)
		}
		return variant.Train(ctx, p)
	default:
		return fmt.Errorf("unhandled action variant %T", v)
	}
}
