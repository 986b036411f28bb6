package trust

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/adhocore/gronx"
)

const defaultRefreshInterval = 15 * time.Minute

// RefresherConfig controls the background identity refresh loop.
type RefresherConfig struct {
	Enabled bool
	// CronExpr, when set, schedules reloads on a cron expression.
	// Otherwise Interval is used.
	CronExpr string
	Interval time.Duration
}

// Refresher periodically reloads the identity from the external trust
// computation so permission decisions track the freshest estimate.
type Refresher struct {
	cfg      RefresherConfig
	provider Provider
	now      func() time.Time

	mu      sync.Mutex
	stopCh  chan struct{}
	stopped chan struct{}
	running bool
}

// NewRefresher creates a refresher for the given provider.
func NewRefresher(cfg RefresherConfig, provider Provider) (*Refresher, error) {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultRefreshInterval
	}
	if expr := cfg.CronExpr; expr != "" {
		if !gronx.New().IsValid(expr) {
			return nil, fmt.Errorf("invalid refresh cron expression: %q", expr)
		}
	}
	return &Refresher{
		cfg:      cfg,
		provider: provider,
		now:      time.Now,
	}, nil
}

// Start launches the refresh loop.
func (r *Refresher) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return nil
	}
	if !r.cfg.Enabled {
		slog.Info("identity refresh disabled")
		return nil
	}

	r.stopCh = make(chan struct{})
	r.stopped = make(chan struct{})
	r.running = true

	go r.loop(r.stopCh, r.stopped)
	slog.Info("identity refresher started", "cron", r.cfg.CronExpr, "interval", r.cfg.Interval.String())
	return nil
}

// Stop halts the refresh loop.
func (r *Refresher) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	stopCh := r.stopCh
	stopped := r.stopped
	r.running = false
	r.stopCh = nil
	r.stopped = nil
	r.mu.Unlock()

	close(stopCh)
	<-stopped
	slog.Info("identity refresher stopped")
}

func (r *Refresher) loop(stopCh <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)

	ticker := time.NewTicker(r.tickInterval())
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if !r.due() {
				continue
			}
			if err := r.RunOnce(context.Background()); err != nil {
				slog.Warn("identity refresh failed, keeping stale identity", "error", err)
			}
		}
	}
}

// RunOnce performs a single reload.
func (r *Refresher) RunOnce(ctx context.Context) error {
	_, err := r.provider.Reload(ctx)
	return err
}

func (r *Refresher) tickInterval() time.Duration {
	if r.cfg.CronExpr != "" {
		// Cron schedules are checked at minute granularity.
		return time.Minute
	}
	return r.cfg.Interval
}

func (r *Refresher) due() bool {
	if r.cfg.CronExpr == "" {
		return true
	}
	due, err := gronx.New().IsDue(r.cfg.CronExpr, r.now())
	if err != nil {
		slog.Warn("cron schedule check failed", "expr", r.cfg.CronExpr, "error", err)
		return false
	}
	return due
}
