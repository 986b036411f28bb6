// Package runtime is the event loop between chat channels and the
// action-control core: it classifies inbound events into tiers, parses
// supervisor commands, and turns supervisor replies into redirects.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/wardenhq/warden/internal/bus"
	"github.com/wardenhq/warden/internal/drift"
	"github.com/wardenhq/warden/internal/scheduler"
	"github.com/wardenhq/warden/internal/trust"
)

// Loop consumes inbound messages and advances the prediction scheduler.
type Loop struct {
	bus         *bus.MessageBus
	scheduler   *scheduler.Service
	tracker     *drift.Tracker
	identity    trust.Provider
	proposer    Proposer
	supervisors map[string]bool
}

// NewLoop creates the runtime loop. Senders listed as supervisors issue
// privileged-tier events and control commands; everyone else's events
// are ordinary tier.
func NewLoop(msgBus *bus.MessageBus, sched *scheduler.Service, tracker *drift.Tracker, identity trust.Provider, proposer Proposer, supervisors []string) *Loop {
	supervisorSet := make(map[string]bool, len(supervisors))
	for _, id := range supervisors {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		supervisorSet[id] = true
	}
	return &Loop{
		bus:         msgBus,
		scheduler:   sched,
		tracker:     tracker,
		identity:    identity,
		proposer:    proposer,
		supervisors: supervisorSet,
	}
}

// Notifier adapts the message bus into the scheduler's notify callback.
// Context refs are room keys ("channel:chat_id").
func Notifier(msgBus *bus.MessageBus) scheduler.NotifyFunc {
	return func(ctx context.Context, contextRef, message string) {
		channelName, chatID, ok := splitRoomKey(contextRef)
		if !ok {
			slog.Warn("notify skipped, malformed context ref", "context_ref", contextRef)
			return
		}
		msgBus.PublishOutbound(&bus.OutboundMessage{
			Channel:   channelName,
			ChatID:    chatID,
			Content:   message,
			RequestID: bus.RequestIDFromContext(ctx),
		})
	}
}

// Run processes inbound messages until the context is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			l.scheduler.AbortAll()
			return ctx.Err()
		case msg, ok := <-l.bus.Inbound():
			if !ok {
				return nil
			}
			if msg == nil {
				continue
			}
			l.handleMessage(bus.WithRequestID(ctx, msg.RequestID), msg)
		}
	}
}

func (l *Loop) handleMessage(ctx context.Context, msg *bus.InboundMessage) {
	room := msg.RoomKey()
	supervisor := l.isSupervisor(msg.SenderID)
	content := strings.TrimSpace(msg.Content)

	if strings.HasPrefix(content, "/") {
		if !supervisor {
			slog.Debug("ignoring command from non-supervisor", "sender", msg.SenderID, "room", room)
			return
		}
		l.handleCommand(ctx, msg, room, content)
		return
	}

	// A supervisor replying while a prediction is pending is human
	// intervention: the prediction is redirected, not raced.
	if supervisor && l.scheduler.HasPending(room) {
		l.scheduler.Redirect(ctx, room, content)
		return
	}

	action, ok := l.propose(msg)
	if !ok {
		slog.Debug("no action proposed for message", "room", room)
		return
	}

	tier := scheduler.TierOrdinary
	if supervisor {
		tier = scheduler.TierPrivileged
	}

	outcome := l.scheduler.HandleEvent(ctx, scheduler.Event{
		Tier:           tier,
		Room:           room,
		ContextRef:     room,
		ProposedAction: action,
	})

	switch outcome.Status {
	case scheduler.OutcomeRejected:
		l.reply(msg, fmt.Sprintf("cannot queue %s: %s", action, outcome.Reason))
	case scheduler.OutcomeCompleted:
		if outcome.ExecErr != nil {
			l.reply(msg, fmt.Sprintf("action %s failed: %v", action, outcome.ExecErr))
		} else {
			l.reply(msg, fmt.Sprintf("action %s executed", action))
		}
	}
}

func (l *Loop) handleCommand(ctx context.Context, msg *bus.InboundMessage, room, content string) {
	fields := strings.Fields(content)
	command := strings.ToLower(fields[0])
	args := fields[1:]

	switch command {
	case "/bless":
		if len(args) == 0 {
			l.reply(msg, "usage: /bless <prediction-id>")
			return
		}
		if _, err := l.scheduler.Bless(ctx, args[0], msg.SenderID); err != nil {
			l.reply(msg, fmt.Sprintf("bless failed: %v", err))
		}
	case "/redirect":
		reason := strings.Join(args, " ")
		if !l.scheduler.Redirect(ctx, room, reason) {
			l.reply(msg, "nothing pending to redirect")
		}
	case "/abort":
		count := l.scheduler.AbortAll()
		l.reply(msg, fmt.Sprintf("aborted %d pending prediction(s)", count))
	case "/status":
		l.reply(msg, l.statusSummary())
	default:
		l.reply(msg, "commands: /bless <id>, /redirect [reason], /abort, /status")
	}
}

func (l *Loop) statusSummary() string {
	identity := l.identity.Identity()
	stats := l.tracker.Stats()
	pending := l.scheduler.ListPending()

	var b strings.Builder
	fmt.Fprintf(&b, "sovereignty: %.2f (%d categories)\n", identity.Sovereignty, len(identity.Scores))
	fmt.Fprintf(&b, "denials: %d total, %d consecutive, %d escalations\n",
		stats.TotalDenials, stats.ConsecutiveDenials, stats.DriftEscalations)
	fmt.Fprintf(&b, "pending predictions: %d", len(pending))
	for _, p := range pending {
		fmt.Fprintf(&b, "\n  %s %s in %s (expires %s)", p.ID, p.ProposedAction, p.Room, p.ExpiresAt().Format("15:04:05"))
	}
	return b.String()
}

func (l *Loop) propose(msg *bus.InboundMessage) (string, bool) {
	if l.proposer == nil {
		return "", false
	}
	return l.proposer.Propose(msg)
}

func (l *Loop) isSupervisor(senderID string) bool {
	return l.supervisors[strings.TrimSpace(senderID)]
}

func (l *Loop) reply(msg *bus.InboundMessage, content string) {
	l.bus.PublishOutbound(&bus.OutboundMessage{
		Channel:   msg.Channel,
		ChatID:    msg.ChatID,
		Content:   content,
		RequestID: msg.RequestID,
	})
}

// ListPending implements gateway.Core.
func (l *Loop) ListPending() []scheduler.Prediction {
	return l.scheduler.ListPending()
}

// Bless implements gateway.Core.
func (l *Loop) Bless(ctx context.Context, predictionID, actor string) (scheduler.Prediction, error) {
	return l.scheduler.Bless(ctx, predictionID, actor)
}

// DenialStats implements gateway.Core.
func (l *Loop) DenialStats() drift.Stats {
	return l.tracker.Stats()
}

// IdentitySnapshot implements gateway.Core.
func (l *Loop) IdentitySnapshot() trust.Identity {
	return l.identity.Identity()
}

func splitRoomKey(key string) (channel, chatID string, ok bool) {
	idx := strings.Index(key, ":")
	if idx <= 0 || idx == len(key)-1 {
		return "", "", false
	}
	return key[:idx], key[idx+1:], true
}
