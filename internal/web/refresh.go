package web

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"owacal/internal/export"
	appLog "owacal/internal/log"
	"owacal/internal/metrics"
	"owacal/internal/model"
	"owacal/internal/pipeline"
	"owacal/internal/scrape"
)

// ErrBusy is returned by Refresh while another refresh is running.
var ErrBusy = errors.New("web: refresh already running")

// Poster delivers a rendered JSON envelope, usually deliver.Post bound to
// a URL and trust material.
type Poster func(ctx context.Context, payload []byte) error

// Refresher runs fetch cycles and keeps the latest snapshot for the HTTP
// handlers. At most one cycle runs at a time.
type Refresher struct {
	src     scrape.Source
	opts    pipeline.Options
	metrics *metrics.Metrics
	post    Poster
	render  func(export.Format, model.Snapshot) ([]byte, error)

	running sync.Mutex

	mu       sync.RWMutex
	snap     *model.Snapshot
	lastRun  time.Time
	lastErr  error
	runCount int
}

// NewRefresher builds a Refresher. m and post may be nil.
func NewRefresher(src scrape.Source, opts pipeline.Options, m *metrics.Metrics, post Poster) *Refresher {
	return &Refresher{
		src:     src,
		opts:    opts,
		metrics: m,
		post:    post,
		render:  export.Render,
	}
}

// Refresh runs one cycle: scrape, collect, parse, store and optionally
// deliver. A failed delivery keeps the new snapshot and is returned.
func (r *Refresher) Refresh(ctx context.Context) error {
	if !r.running.TryLock() {
		return ErrBusy
	}
	defer r.running.Unlock()

	start := time.Now()
	res, err := pipeline.Run(ctx, r.src, r.opts)
	took := time.Since(start)

	if err != nil {
		if r.metrics != nil {
			r.metrics.ObserveFailure(took)
		}
		r.record(nil, err)
		appLog.Error("refresh failed", err, "took", took.String())
		return err
	}

	if r.metrics != nil {
		r.metrics.ObserveRun(res, took)
	}
	snap := res.Snapshot
	r.record(&snap, nil)
	appLog.Info("refresh done", "events", len(snap.Events), "took", took.String())

	if r.post == nil {
		return nil
	}
	payload, err := r.render(export.FormatJSON, snap)
	if err != nil {
		appLog.Error("refresh render failed", err)
		return fmt.Errorf("web: render delivery payload: %w", err)
	}
	err = r.post(ctx, payload)
	if r.metrics != nil {
		r.metrics.ObserveDelivery(err)
	}
	if err != nil {
		appLog.Error("refresh delivery failed", err, "outcome", metrics.Outcome(err))
		return fmt.Errorf("web: deliver: %w", err)
	}
	return nil
}

func (r *Refresher) record(snap *model.Snapshot, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if snap != nil {
		r.snap = snap
	}
	r.lastRun = time.Now()
	r.lastErr = err
	r.runCount++
}

// Snapshot returns the latest successful snapshot, if any.
func (r *Refresher) Snapshot() (model.Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.snap == nil {
		return model.Snapshot{}, false
	}
	return *r.snap, true
}

// Status describes the refresher for /health.
type Status struct {
	Ready     bool      `json:"ready"`
	Events    int       `json:"events"`
	Runs      int       `json:"runs"`
	LastRun   time.Time `json:"last_run,omitzero"`
	FetchedAt time.Time `json:"fetched_at,omitzero"`
	LastError string    `json:"last_error,omitempty"`
}

// Status reports the outcome of the most recent cycle.
func (r *Refresher) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st := Status{
		Ready:   r.snap != nil,
		Runs:    r.runCount,
		LastRun: r.lastRun,
	}
	if r.snap != nil {
		st.Events = len(r.snap.Events)
		st.FetchedAt = r.snap.FetchedAt
	}
	if r.lastErr != nil {
		st.LastError = r.lastErr.Error()
	}
	return st
}

// cronLogger adapts the package logger to cron.Logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, kv ...any) {
	appLog.Debug("cron: "+msg, kv...)
}

func (cronLogger) Error(err error, msg string, kv ...any) {
	appLog.Error("cron: "+msg, err, kv...)
}

// Schedule runs Refresh on spec (standard 5-field cron) until ctx is done.
// Overlapping ticks are skipped. The first refresh runs immediately.
func (r *Refresher) Schedule(ctx context.Context, spec string) error {
	logger := cronLogger{}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc(spec, func() { _ = r.Refresh(ctx) }); err != nil {
		return fmt.Errorf("web: schedule %q: %w", spec, err)
	}

	appLog.Info("refresh scheduled", "spec", spec)
	_ = r.Refresh(ctx)

	c.Start()
	<-ctx.Done()
	// Wait for a running job to finish.
	<-c.Stop().Done()
	return nil
}
