// Package scheduler owns the per-room prediction state machine: at most
// one in-flight timeout-gated action proposal per room, advanced by
// timer fires, supervisor redirects, privileged overrides and aborts.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wardenhq/warden/internal/trust"
)

const (
	defaultMaxPending    = 8
	defaultRedirectGrace = 2 * time.Second
)

// ErrNotFound is returned by Bless when no pending prediction matches.
var ErrNotFound = errors.New("prediction not found")

// ExecuteFunc dispatches the proposed action. It is assumed to be
// long-running and must never be called while the scheduler lock is held.
type ExecuteFunc func(ctx context.Context, room, action string) error

// NotifyFunc surfaces countdowns, redirect confirmations and bless
// outcomes to a human-visible channel.
type NotifyFunc func(ctx context.Context, contextRef, message string)

// Event is one inbound occurrence for a room.
type Event struct {
	Tier           Tier
	Room           string
	ContextRef     string
	ProposedAction string
}

// OutcomeStatus summarizes how HandleEvent disposed of an event.
type OutcomeStatus string

const (
	OutcomePending   OutcomeStatus = "pending"
	OutcomeCompleted OutcomeStatus = "completed"
	OutcomeRejected  OutcomeStatus = "rejected"
)

// Outcome is the result of HandleEvent.
type Outcome struct {
	Status     OutcomeStatus
	Reason     string
	Prediction Prediction
	ExecErr    error
}

// Config controls scheduler limits and timing.
type Config struct {
	// MaxPending caps pending predictions across all rooms.
	MaxPending int
	// RedirectGrace de-duplicates redirects arriving just after one
	// completed for the same room.
	RedirectGrace time.Duration
	Timeouts      TimeoutPolicy
}

type roomState struct {
	generation     uint64
	pending        *Prediction
	timer          *time.Timer
	lastRedirectAt time.Time
}

// Service is the prediction scheduler. All state transitions for a room
// happen under one lock; armed timers capture the room generation at
// creation so a stale fire racing a fresh redirect is provably inert.
type Service struct {
	cfg      Config
	identity trust.Provider
	execute  ExecuteFunc
	notify   NotifyFunc

	// OnTransition observes lifecycle events ("created", "completed",
	// "redirected", "blessed", "aborted", "superseded", "rejected")
	// for audit and metrics. Set before first use.
	OnTransition func(event string, p Prediction)

	now       func() time.Time
	afterFunc func(d time.Duration, fn func()) *time.Timer
	newID     func() string

	mu           sync.Mutex
	rooms        map[string]*roomState
	pendingCount int
}

// NewService creates a scheduler.
func NewService(cfg Config, identity trust.Provider, execute ExecuteFunc, notify NotifyFunc) *Service {
	if cfg.MaxPending <= 0 {
		cfg.MaxPending = defaultMaxPending
	}
	if cfg.RedirectGrace <= 0 {
		cfg.RedirectGrace = defaultRedirectGrace
	}
	if cfg.Timeouts.Min <= 0 && cfg.Timeouts.Max <= 0 {
		cfg.Timeouts = DefaultTimeoutPolicy()
	}
	return &Service{
		cfg:       cfg,
		identity:  identity,
		execute:   execute,
		notify:    notify,
		now:       time.Now,
		afterFunc: time.AfterFunc,
		newID:     uuid.NewString,
		rooms:     make(map[string]*roomState),
	}
}

// HandleEvent advances the room's state machine for one inbound event.
//
// Privileged events execute synchronously, superseding any pending
// prediction for the room. Ordinary events queue a prediction behind an
// intervention window derived from the current sovereignty, unless the
// global pending cap is reached.
func (s *Service) HandleEvent(ctx context.Context, ev Event) Outcome {
	if ev.Tier == TierPrivileged {
		return s.handlePrivileged(ctx, ev)
	}
	return s.handleOrdinary(ctx, ev)
}

func (s *Service) handlePrivileged(ctx context.Context, ev Event) Outcome {
	s.mu.Lock()
	room := s.room(ev.Room)
	superseded := s.clearPendingLocked(room, StatusAborted)

	p := Prediction{
		ID:             s.newID(),
		Room:           ev.Room,
		Tier:           TierPrivileged,
		ContextRef:     ev.ContextRef,
		ProposedAction: ev.ProposedAction,
		CreatedAt:      s.now().UTC(),
		Status:         StatusCompleted,
		Generation:     room.generation,
	}
	s.mu.Unlock()

	if superseded != nil {
		s.transition("superseded", *superseded)
		s.sendNotify(ctx, superseded.ContextRef, fmt.Sprintf("prediction %s superseded by privileged action %s", superseded.ID, ev.ProposedAction))
	}

	execErr := s.runExecute(ctx, p)
	s.transition("completed", p)
	return Outcome{Status: OutcomeCompleted, Prediction: p, ExecErr: execErr}
}

func (s *Service) handleOrdinary(ctx context.Context, ev Event) Outcome {
	sovereignty := s.identity.Identity().Sovereignty
	timeout := s.cfg.Timeouts.Duration(sovereignty)

	s.mu.Lock()
	room := s.room(ev.Room)

	if room.pending != nil {
		p := *room.pending
		s.mu.Unlock()
		return Outcome{Status: OutcomeRejected, Reason: "room busy", Prediction: p}
	}
	if s.pendingCount >= s.cfg.MaxPending {
		s.mu.Unlock()
		rejected := Prediction{Room: ev.Room, Tier: TierOrdinary, ProposedAction: ev.ProposedAction}
		s.transition("rejected", rejected)
		return Outcome{Status: OutcomeRejected, Reason: "pending cap reached"}
	}

	room.generation++
	p := &Prediction{
		ID:             s.newID(),
		Room:           ev.Room,
		Tier:           TierOrdinary,
		ContextRef:     ev.ContextRef,
		ProposedAction: ev.ProposedAction,
		CreatedAt:      s.now().UTC(),
		Timeout:        timeout,
		Status:         StatusPending,
		Generation:     room.generation,
	}
	room.pending = p
	s.pendingCount++

	roomName, generation := ev.Room, room.generation
	room.timer = s.afterFunc(timeout, func() {
		s.onTimeout(roomName, generation)
	})
	created := *p
	s.mu.Unlock()

	s.transition("created", created)
	s.sendNotify(ctx, ev.ContextRef, fmt.Sprintf("proposing %s in %s; reply within %s to redirect", ev.ProposedAction, ev.Room, timeout))
	return Outcome{Status: OutcomePending, Prediction: created}
}

// onTimeout fires when a prediction's intervention window elapses. The
// captured generation is re-checked under the lock: a redirect, bless or
// abort in the meantime bumped it, making this fire a no-op.
func (s *Service) onTimeout(roomName string, generation uint64) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("prediction timeout handler panicked", "room", roomName, "panic", r)
		}
	}()

	s.mu.Lock()
	room, ok := s.rooms[roomName]
	if !ok || room.pending == nil || room.generation != generation {
		s.mu.Unlock()
		return
	}
	p := *room.pending
	p.Status = StatusCompleted
	room.pending = nil
	room.timer = nil
	s.pendingCount--
	s.mu.Unlock()

	ctx := context.Background()
	execErr := s.runExecute(ctx, p)
	s.transition("completed", p)
	if execErr != nil {
		s.sendNotify(ctx, p.ContextRef, fmt.Sprintf("action %s failed: %v", p.ProposedAction, execErr))
		return
	}
	s.sendNotify(ctx, p.ContextRef, fmt.Sprintf("action %s executed", p.ProposedAction))
}

// Redirect cancels the room's pending prediction in favor of human
// direction. Safe to call when nothing is pending; a redirect inside
// the grace window of a just-completed redirect is a de-duplicated no-op.
func (s *Service) Redirect(ctx context.Context, roomName, reason string) bool {
	now := s.now()

	s.mu.Lock()
	room, ok := s.rooms[roomName]
	if !ok {
		s.mu.Unlock()
		return false
	}
	if room.pending == nil {
		deduped := !room.lastRedirectAt.IsZero() && now.Sub(room.lastRedirectAt) <= s.cfg.RedirectGrace
		s.mu.Unlock()
		return deduped
	}

	room.generation++
	p := *room.pending
	p.Status = StatusRedirected
	if room.timer != nil {
		room.timer.Stop()
		room.timer = nil
	}
	room.pending = nil
	room.lastRedirectAt = now
	s.pendingCount--
	s.mu.Unlock()

	s.transition("redirected", p)
	msg := fmt.Sprintf("prediction %s redirected", p.ID)
	if reason != "" {
		msg += ": " + reason
	}
	s.sendNotify(ctx, p.ContextRef, msg)
	return true
}

// Bless promotes a pending prediction to immediate execution. The
// timeout is skipped; the permission check is not — execution still
// routes through the action gateway supplied as ExecuteFunc.
func (s *Service) Bless(ctx context.Context, predictionID, actor string) (Prediction, error) {
	s.mu.Lock()
	var room *roomState
	for _, rs := range s.rooms {
		if rs.pending != nil && rs.pending.ID == predictionID {
			room = rs
			break
		}
	}
	if room == nil {
		s.mu.Unlock()
		return Prediction{}, fmt.Errorf("bless %s: %w", predictionID, ErrNotFound)
	}

	room.generation++
	p := *room.pending
	p.Status = StatusCompleted
	if room.timer != nil {
		room.timer.Stop()
		room.timer = nil
	}
	room.pending = nil
	s.pendingCount--
	s.mu.Unlock()

	execErr := s.runExecute(ctx, p)
	s.transition("blessed", p)
	if execErr != nil {
		s.sendNotify(ctx, p.ContextRef, fmt.Sprintf("prediction %s blessed by %s but action failed: %v", p.ID, actor, execErr))
		return p, execErr
	}
	s.sendNotify(ctx, p.ContextRef, fmt.Sprintf("prediction %s blessed by %s", p.ID, actor))
	return p, nil
}

// AbortAll cancels every pending prediction. After it returns, no timer
// armed before the call can invoke the execute callback.
func (s *Service) AbortAll() int {
	s.mu.Lock()
	var aborted []Prediction
	for _, room := range s.rooms {
		room.generation++
		if p := s.clearPendingLocked(room, StatusAborted); p != nil {
			aborted = append(aborted, *p)
		}
	}
	s.pendingCount = 0
	s.mu.Unlock()

	for _, p := range aborted {
		s.transition("aborted", p)
	}
	if len(aborted) > 0 {
		slog.Info("aborted all pending predictions", "count", len(aborted))
	}
	return len(aborted)
}

// HasPending reports whether the room has an in-flight prediction.
func (s *Service) HasPending(roomName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomName]
	return ok && room.pending != nil
}

// ListPending returns copies of every pending prediction, ordered by
// creation time.
func (s *Service) ListPending() []Prediction {
	s.mu.Lock()
	result := make([]Prediction, 0, s.pendingCount)
	for _, room := range s.rooms {
		if room.pending != nil {
			result = append(result, *room.pending)
		}
	}
	s.mu.Unlock()

	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result
}

// PendingCount returns the number of pending predictions across rooms.
func (s *Service) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingCount
}

func (s *Service) room(name string) *roomState {
	room, ok := s.rooms[name]
	if !ok {
		room = &roomState{}
		s.rooms[name] = room
	}
	return room
}

// clearPendingLocked detaches the room's pending prediction with the
// given terminal status, bumping the generation so any armed timer for
// it is invalidated. Caller holds the lock.
func (s *Service) clearPendingLocked(room *roomState, status Status) *Prediction {
	if room.pending == nil {
		return nil
	}
	room.generation++
	p := *room.pending
	p.Status = status
	if room.timer != nil {
		room.timer.Stop()
		room.timer = nil
	}
	room.pending = nil
	if s.pendingCount > 0 {
		s.pendingCount--
	}
	return &p
}

// runExecute invokes the execute callback outside the scheduler lock,
// recovering panics so one room cannot break scheduling for others.
func (s *Service) runExecute(ctx context.Context, p Prediction) (err error) {
	if s.execute == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Error("execute callback panicked", "room", p.Room, "action", p.ProposedAction, "panic", r)
			err = fmt.Errorf("execute %s: panic: %v", p.ProposedAction, r)
		}
	}()
	return s.execute(ctx, p.Room, p.ProposedAction)
}

func (s *Service) sendNotify(ctx context.Context, contextRef, message string) {
	if s.notify == nil || contextRef == "" {
		return
	}
	s.notify(ctx, contextRef, message)
}

func (s *Service) transition(event string, p Prediction) {
	if s.OnTransition == nil {
		return
	}
	s.OnTransition(event, p)
}
