package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wardenhq/warden/internal/action"
	"github.com/wardenhq/warden/internal/audit"
	"github.com/wardenhq/warden/internal/bus"
	"github.com/wardenhq/warden/internal/channel"
	"github.com/wardenhq/warden/internal/channel/telegram"
	"github.com/wardenhq/warden/internal/config"
	"github.com/wardenhq/warden/internal/drift"
	"github.com/wardenhq/warden/internal/gateway"
	"github.com/wardenhq/warden/internal/metrics"
	"github.com/wardenhq/warden/internal/permission"
	"github.com/wardenhq/warden/internal/runtime"
	"github.com/wardenhq/warden/internal/scheduler"
	"github.com/wardenhq/warden/internal/trust"
)

func NewRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the Warden daemon",
		RunE:  runServer,
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	workspace := cfg.WorkspacePath()

	provider := trust.NewFileProvider(cfg.IdentityFilePath())
	if _, err := provider.Reload(ctx); err != nil {
		slog.Warn("initial identity load failed, starting with zero identity", "error", err)
	}

	requirements, err := permission.LoadTable(cfg.PermissionsFilePath())
	if err != nil {
		return fmt.Errorf("failed to load permission table: %w", err)
	}
	engine := permission.NewEngine(requirements)
	slog.Warn("permission policy is fail-open: actions without a requirement entry are allowed",
		"registered_actions", len(engine.Actions()),
	)

	auditWriter := audit.NewWriter(workspace)
	recorder := metrics.NewRecorder(workspace)

	tracker := drift.NewTracker(
		func(denial permission.Denial) {
			appendAudit(auditWriter, audit.Event{
				Type:   "permission_deny",
				Action: denial.Action,
				Result: fmt.Sprintf("overlap=%.2f sovereignty=%.2f failed=%v", denial.Overlap, denial.Sovereignty, denial.FailedCategories),
			})
		},
		func() error {
			if _, err := recorder.RecordDrift(); err != nil {
				slog.Warn("record drift metrics failed", "error", err)
			}
			appendAudit(auditWriter, audit.Event{Type: "drift_escalation", Result: "identity recompute requested"})
			_, err := provider.Reload(context.Background())
			return err
		},
	)

	registry := action.NewRegistry()
	dispatchLog := action.NewDispatchLog(workspace)
	actionNames := engine.Actions()
	for _, actionName := range cfg.Directives {
		actionNames = append(actionNames, actionName)
	}
	if err := action.RegisterConfigured(registry, dispatchLog, actionNames); err != nil {
		return fmt.Errorf("failed to register actions: %w", err)
	}

	gate := action.NewGateway(engine, tracker, registry, provider)
	gate.OnDecision = func(actionName string, res permission.Result) {
		if _, err := recorder.RecordGateDecision(res.Allowed); err != nil {
			slog.Warn("record gate metrics failed", "error", err)
		}
		if res.Allowed {
			appendAudit(auditWriter, audit.Event{Type: "permission_allow", Action: actionName, Result: fmt.Sprintf("overlap=%.2f", res.Overlap)})
		}
	}
	gate.OnOutcome = func(actionName string, err error) {
		result := "success"
		if err != nil {
			result = err.Error()
		}
		appendAudit(auditWriter, audit.Event{Type: "action_execution", Action: actionName, Result: result})
	}

	msgBus := bus.NewMessageBus(100)

	sched := scheduler.NewService(
		scheduler.Config{
			MaxPending:    cfg.Scheduler.MaxPending,
			RedirectGrace: time.Duration(cfg.Scheduler.RedirectGraceSeconds) * time.Second,
			Timeouts: scheduler.TimeoutPolicy{
				Min: time.Duration(cfg.Scheduler.MinTimeoutSeconds) * time.Second,
				Max: time.Duration(cfg.Scheduler.MaxTimeoutSeconds) * time.Second,
			},
		},
		provider,
		func(ctx context.Context, room, proposedAction string) error {
			_, err := gate.Invoke(ctx, proposedAction, action.Payload{
				Room:       room,
				ContextRef: room,
				RequestID:  bus.RequestIDFromContext(ctx),
			})
			return err
		},
		runtime.Notifier(msgBus),
	)
	sched.OnTransition = func(event string, p scheduler.Prediction) {
		if _, err := recorder.RecordPrediction(event); err != nil {
			slog.Warn("record prediction metrics failed", "error", err)
		}
		appendAudit(auditWriter, audit.Event{
			Type:   "prediction_" + event,
			Room:   p.Room,
			Action: p.ProposedAction,
			Result: string(p.Status),
		})
	}

	loop := runtime.NewLoop(msgBus, sched, tracker, provider,
		runtime.NewDirectiveProposer(cfg.Directives), cfg.Supervisors)

	refresher, err := trust.NewRefresher(trust.RefresherConfig{
		Enabled:  cfg.Trust.RefreshEnabled,
		CronExpr: cfg.Trust.RefreshCron,
		Interval: time.Duration(cfg.Trust.RefreshIntervalMinutes) * time.Minute,
	}, provider)
	if err != nil {
		return fmt.Errorf("failed to create identity refresher: %w", err)
	}
	if err := refresher.Start(); err != nil {
		slog.Warn("identity refresher failed to start", "error", err)
	}

	errCh := make(chan error, 2)
	go func() {
		if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("runtime loop failed: %w", err)
		}
	}()

	chanMgr := channel.NewManager(msgBus)
	chanMgr.SetRecorder(recorder)

	if cfg.Channels.Telegram.Enabled {
		tg := telegram.New(&cfg.Channels.Telegram, msgBus)
		chanMgr.Register(tg)
	}

	chanMgr.StartAll(ctx)
	go chanMgr.RouteOutbound(ctx)

	gatewayServer := gateway.New(cfg.Gateway, loop)
	go func() {
		if err := gatewayServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("gateway server failed: %w", err)
		}
	}()

	fmt.Printf("Warden daemon running. Gateway: http://%s\nPress Ctrl+C to stop.\n", gatewayServer.Addr())

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		slog.Error("daemon component failed", "error", runErr)
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	slog.Info("shutting down")
	sched.AbortAll()
	refresher.Stop()
	chanMgr.StopAll(shutdownCtx)
	if err := gatewayServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Warn("gateway shutdown failed", "error", err)
	}

	return runErr
}

func appendAudit(writer *audit.Writer, event audit.Event) {
	event.Time = time.Now().UTC()
	if err := writer.Append(event); err != nil {
		slog.Warn("failed to append audit event", "type", event.Type, "error", err)
	}
}
