// Package scheduler drives the periodic fetch, diff, classify and emit cycle
// over the watchlist.
//
// # Overview
//
// Run issues one tick immediately and then one per interval. Within a tick,
// programs are checked concurrently up to Workers at a time. Each check is a
// single unit of work: fetch, diff against the stored snapshot, classify,
// emit, then store the new observation.
//
// # Ordering
//
// Every program owns a one-token slot channel. A unit holds the slot for the
// whole sequence, so two cycles for the same program never overlap and a slow
// straggler can not overwrite a newer snapshot. Different programs never wait
// on each other.
//
// # Shutdown
//
// When Run's context is canceled no more programs are dispatched. In-flight
// units keep running on a detached work context for GracePeriod; after that
// the work context is canceled and no snapshot is written.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/ratelimit"
	"golang.org/x/sync/errgroup"

	"github.com/lugondev/solana-guardian/internal/diff"
	gerrors "github.com/lugondev/solana-guardian/internal/errors"
	"github.com/lugondev/solana-guardian/internal/fetcher"
	"github.com/lugondev/solana-guardian/internal/metrics"
	"github.com/lugondev/solana-guardian/internal/sink"
	"github.com/lugondev/solana-guardian/internal/snapshot"
	"github.com/lugondev/solana-guardian/pkg/types"
)

// ErrAlreadyStarted is returned by a second call to Run.
var ErrAlreadyStarted = errors.New("scheduler already started")

// Watchlist provides the programs to check. *watchlist.Registry satisfies it.
type Watchlist interface {
	List() []types.WatchedProgram
}

// Classifier maps transition events to alerts. *classify.Classifier
// satisfies it.
type Classifier interface {
	Classify(program types.WatchedProgram, event types.TransitionEvent, tick uint64) (types.Alert, error)
}

// Scheduler runs the monitoring loop.
type Scheduler struct {
	cfg        Config
	programs   []types.WatchedProgram
	fetcher    fetcher.Fetcher
	store      snapshot.Store
	classifier Classifier
	sink       sink.Sink

	// slots and phases are built once in New and never resized.
	slots  map[solana.PublicKey]chan struct{}
	phases map[solana.PublicKey]*atomic.Int32

	limiter ratelimit.Limiter
	metrics *metrics.Collection
	logger  *slog.Logger
	now     func() time.Time

	state atomic.Int32
	tick  atomic.Uint64
}

// New creates a Scheduler. The store is owned by the caller.
func New(
	cfg Config,
	watchlist Watchlist,
	f fetcher.Fetcher,
	store snapshot.Store,
	classifier Classifier,
	out sink.Sink,
) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if watchlist == nil || f == nil || store == nil || classifier == nil || out == nil {
		return nil, gerrors.ConfigInvalid("scheduler requires a watchlist, fetcher, store, classifier and sink")
	}
	if cfg.MetricsFlushInterval <= 0 {
		cfg.MetricsFlushInterval = DefaultMetricsFlushInterval
	}

	programs := watchlist.List()
	if len(programs) == 0 {
		return nil, gerrors.ConfigInvalid("watchlist is empty")
	}

	s := &Scheduler{
		cfg:        cfg,
		programs:   programs,
		fetcher:    f,
		store:      store,
		classifier: classifier,
		sink:       out,
		slots:      make(map[solana.PublicKey]chan struct{}, len(programs)),
		phases:     make(map[solana.PublicKey]*atomic.Int32, len(programs)),
		limiter:    ratelimit.NewUnlimited(),
		metrics:    metrics.NewCollection(),
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, p := range programs {
		s.slots[p.ID] = make(chan struct{}, 1)
		s.phases[p.ID] = new(atomic.Int32)
	}
	return s, nil
}

// WithLogger sets a custom logger.
func (s *Scheduler) WithLogger(logger *slog.Logger) *Scheduler {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithMetrics sets the metrics collection.
func (s *Scheduler) WithMetrics(m *metrics.Collection) *Scheduler {
	if m != nil {
		s.metrics = m
	}
	return s
}

// WithRateLimiter sets the limiter taken before every fetch attempt.
func (s *Scheduler) WithRateLimiter(l ratelimit.Limiter) *Scheduler {
	if l != nil {
		s.limiter = l
	}
	return s
}

// WithClock sets the clock used for tick timestamps.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	if now != nil {
		s.now = now
	}
	return s
}

// State returns the lifecycle state.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// Phase returns where the unit for id currently is.
func (s *Scheduler) Phase(id solana.PublicKey) (Phase, bool) {
	p, ok := s.phases[id]
	if !ok {
		return PhaseIdle, false
	}
	return Phase(p.Load()), true
}

func (s *Scheduler) setPhase(id solana.PublicKey, phase Phase) {
	if p, ok := s.phases[id]; ok {
		p.Store(int32(phase))
	}
}

// Run drives ticks until ctx is canceled and returns nil on a clean stop.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return ErrAlreadyStarted
	}
	defer s.state.Store(int32(StateStopped))

	s.logger.Info("starting guardian",
		"programs", len(s.programs),
		"interval", s.cfg.Interval,
		"workers", s.cfg.Workers,
		"num_metrics", s.metrics.Len(),
	)

	if err := s.metrics.Initialize(ctx); err != nil {
		return gerrors.Wrap(err, "failed to initialize metrics")
	}
	_ = s.metrics.UpdateGauge(ctx, metrics.MetricProgramsWatched, float64(len(s.programs)))

	// Work outlives the stop request by at most GracePeriod.
	workCtx, cancelWork := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelWork()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	flushTicker := time.NewTicker(s.cfg.MetricsFlushInterval)
	defer flushTicker.Stop()

	done := make(chan TickReport, 1)
	start := func() {
		go func() { done <- s.runTick(ctx, workCtx) }()
	}

	inFlight := true
	start()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("stop requested")
			if inFlight {
				s.awaitGrace(done, cancelWork)
			}
			return s.shutdown(workCtx)

		case report := <-done:
			inFlight = false
			s.logReport(report)

		case <-ticker.C:
			if inFlight {
				s.logger.Warn("previous tick still running, skipping interval")
				continue
			}
			inFlight = true
			start()

		case <-flushTicker.C:
			if err := s.metrics.Flush(ctx); err != nil {
				s.logger.Error("failed to flush metrics", "error", err)
			}
		}
	}
}

// awaitGrace waits for the running tick, canceling its work once the grace
// period is over.
func (s *Scheduler) awaitGrace(done <-chan TickReport, cancelWork context.CancelFunc) {
	s.logger.Info("waiting for in-flight checks", "grace_period", s.cfg.GracePeriod)

	timer := time.NewTimer(s.cfg.GracePeriod)
	defer timer.Stop()

	select {
	case report := <-done:
		s.logReport(report)
	case <-timer.C:
		s.logger.Warn("grace period expired, abandoning in-flight checks")
		cancelWork()
		s.logReport(<-done)
	}
}

func (s *Scheduler) shutdown(ctx context.Context) error {
	if err := s.metrics.Flush(ctx); err != nil {
		s.logger.Error("failed to flush metrics during shutdown", "error", err)
	}
	if err := s.metrics.Shutdown(ctx); err != nil {
		s.logger.Error("failed to shutdown metrics", "error", err)
	}
	s.logger.Info("guardian stopped", "ticks", s.tick.Load())
	return nil
}

// RunOnce runs a single tick synchronously.
func (s *Scheduler) RunOnce(ctx context.Context) TickReport {
	report := s.runTick(ctx, ctx)
	s.logReport(report)
	return report
}

type unitResult struct {
	baselined bool
	failed    bool
	skipped   bool
	alerts    int
}

// runTick checks every program once. stopCtx gates dispatch; workCtx carries
// the units themselves.
func (s *Scheduler) runTick(stopCtx, workCtx context.Context) TickReport {
	report := TickReport{
		Tick:    s.tick.Add(1),
		Started: s.now(),
	}
	started := time.Now()

	s.logger.Info("cycle started", "tick", report.Tick, "programs", len(s.programs))

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.cfg.Workers)

	tick := report.Tick
	for i, program := range s.programs {
		if stopCtx.Err() != nil {
			mu.Lock()
			report.Skipped += len(s.programs) - i
			mu.Unlock()
			break
		}

		g.Go(func() error {
			// g.Go may have waited for a free worker.
			r := unitResult{skipped: true}
			if stopCtx.Err() == nil {
				r = s.checkProgram(workCtx, program, tick)
			}

			mu.Lock()
			defer mu.Unlock()
			switch {
			case r.skipped:
				report.Skipped++
			case r.failed:
				report.Failed++
			default:
				report.Checked++
				if r.baselined {
					report.Baselined++
				}
			}
			report.Alerts += r.alerts
			return nil
		})
	}
	_ = g.Wait()

	report.Duration = time.Since(started)

	_ = s.metrics.IncrementCounter(workCtx, metrics.MetricTicks, 1)
	_ = s.metrics.RecordHistogram(workCtx, metrics.MetricTickDuration, report.Duration.Seconds())

	return report
}

func (s *Scheduler) logReport(r TickReport) {
	s.logger.Info("cycle complete",
		"tick", r.Tick,
		"summary", r.Summary(),
		"checked", r.Checked,
		"alerts", r.Alerts,
		"failed", r.Failed,
		"duration", r.Duration,
	)
}

// checkProgram is one unit of work for one program.
func (s *Scheduler) checkProgram(ctx context.Context, program types.WatchedProgram, tick uint64) unitResult {
	slot := s.slots[program.ID]
	select {
	case slot <- struct{}{}:
	case <-ctx.Done():
		return unitResult{skipped: true}
	}
	defer func() { <-slot }()
	defer s.setPhase(program.ID, PhaseIdle)

	s.setPhase(program.ID, PhaseFetching)

	previous, known, err := s.store.Get(ctx, program.ID)
	if err != nil {
		s.fail(program, "load snapshot", err)
		return unitResult{failed: true}
	}

	current, attempts, err := s.fetchWithRetry(ctx, program)
	if err != nil {
		if gerrors.Is(err, gerrors.ErrContextCanceled) {
			return unitResult{skipped: true}
		}
		_ = s.metrics.IncrementCounter(ctx, metrics.MetricFetchFailures, 1)
		s.fail(program, "fetch", err, "attempts", attempts)
		return unitResult{failed: true}
	}

	s.setPhase(program.ID, PhaseDiffing)

	var prev *types.ProgramState
	if known {
		prev = &previous
	}
	events := diff.Diff(prev, current, diff.OptionsFor(program, s.cfg.Diff))

	s.setPhase(program.ID, PhaseEmitting)

	emitted := 0
	for _, event := range events {
		alert, err := s.classifier.Classify(program, event, tick)
		if err != nil {
			s.logger.Error("failed to classify transition",
				"program", program.Label,
				"kind", event.Kind.String(),
				"error", err,
			)
			continue
		}

		if err := s.sink.Emit(ctx, alert); err != nil {
			_ = s.metrics.IncrementCounter(ctx, metrics.MetricSinkErrors, 1)
			s.logger.Warn("failed to deliver alert",
				"program", program.Label,
				"alert_id", alert.ID.String(),
				"error", err,
			)
		}
		emitted++
		s.countAlert(ctx, alert.Severity)
	}

	// Past the grace period nothing is written.
	if ctx.Err() != nil {
		return unitResult{skipped: true, alerts: emitted}
	}

	if err := s.store.Put(ctx, program.ID, current); err != nil {
		if snapshot.IsStale(err) {
			s.logger.Debug("newer snapshot already stored", "program", program.Label)
			return unitResult{skipped: true, alerts: emitted}
		}
		s.fail(program, "store snapshot", err)
		return unitResult{failed: true, alerts: emitted}
	}

	_ = s.metrics.IncrementCounter(ctx, metrics.MetricProgramsChecked, 1)
	if !known {
		_ = s.metrics.IncrementCounter(ctx, metrics.MetricSnapshotsBaseline, 1)
		if s.cfg.BaselineNotice {
			s.logger.Info("baseline recorded",
				"program", program.Label,
				"mutability", current.Mutability(),
				"authority", types.OptionalKeyString(current.UpgradeAuthority),
				"fingerprint", current.CodeFingerprint,
			)
		}
		return unitResult{baselined: true}
	}

	_ = s.metrics.IncrementCounter(ctx, metrics.MetricSnapshotsUpdated, 1)
	return unitResult{alerts: emitted}
}

func (s *Scheduler) fail(program types.WatchedProgram, stage string, err error, attrs ...any) {
	args := []any{
		"program", program.Label,
		"id", program.ID.String(),
		"stage", stage,
		"code", gerrors.Code(err),
		"error", err,
	}
	s.logger.Warn("program check failed", append(args, attrs...)...)
}

func (s *Scheduler) countAlert(ctx context.Context, severity types.Severity) {
	_ = s.metrics.IncrementCounter(ctx, metrics.MetricAlertsEmitted, 1)
	switch severity {
	case types.SeverityCritical:
		_ = s.metrics.IncrementCounter(ctx, metrics.MetricAlertsCritical, 1)
	case types.SeverityHigh:
		_ = s.metrics.IncrementCounter(ctx, metrics.MetricAlertsHigh, 1)
	case types.SeverityMedium:
		_ = s.metrics.IncrementCounter(ctx, metrics.MetricAlertsMedium, 1)
	}
}
