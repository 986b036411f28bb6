// Package action is the single entry point through which privileged
// actions are attempted: a closed set of action variants, a registry,
// and the gateway that applies the permission test before dispatch.
package action

import (
	"context"

	"github.com/wardenhq/warden/internal/trust"
)

// Payload carries the invocation context for an action.
type Payload struct {
	Room       string
	ContextRef string
	ArgsJSON   string
	RequestID  string
}

// Variant is the closed set of action implementations the gateway can
// dispatch. The interface is sealed so gateway routing stays exhaustive
// and statically checkable.
type Variant interface {
	Name() string
	variant()
}

// RunFunc performs an executable action's side effect.
type RunFunc func(ctx context.Context, p Payload) error

// Executable is an action that dispatches work to the host.
type Executable struct {
	ActionName string
	Run        RunFunc
}

func (e *Executable) Name() string { return e.ActionName }
func (*Executable) variant()       {}

// CategorizeFunc classifies a payload into trust categories.
type CategorizeFunc func(ctx context.Context, p Payload) ([]trust.Category, error)

// Categorizer is an action that classifies rather than executes.
type Categorizer struct {
	ActionName string
	Categorize CategorizeFunc
}

func (c *Categorizer) Name() string { return c.ActionName }
func (*Categorizer) variant()       {}

// TrainFunc feeds an outcome back into the worker's skill set.
type TrainFunc func(ctx context.Context, p Payload) error

// Trainer is an action that updates the worker from feedback.
type Trainer struct {
	ActionName string
	Train      TrainFunc
}

func (t *Trainer) Name() string { return t.ActionName }
func (*Trainer) variant()       {}
