package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/advisorloop/autoengine/internal/analysis"
	"github.com/advisorloop/autoengine/internal/config"
	"github.com/advisorloop/autoengine/internal/executor"
	"github.com/advisorloop/autoengine/internal/logger"
	"github.com/advisorloop/autoengine/internal/marketdata"
	"github.com/advisorloop/autoengine/internal/metrics"
	"github.com/advisorloop/autoengine/internal/storage"
)

// Cycle triggers
const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
)

var (
	ErrAlreadyRunning = errors.New("engine already running")
	ErrNotRunning     = errors.New("engine not running")
)

// State is the engine's scheduling state. Transitions only through Start and
// Stop; RunCycleNow works in either state.
type State int

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

// Store is the persistence surface the cycle reads and refreshes.
type Store interface {
	GetAutomations() ([]storage.Automation, error)
	GetAutomation(id uint) (*storage.Automation, error)
	GetOpenPositions() ([]storage.Position, error)
	UpdatePosition(p *storage.Position) error
	SaveCycleLog(c *storage.CycleLog) error
}

// QuoteProvider refreshes prices and Greeks for a single contract.
type QuoteProvider interface {
	ContractQuote(ctx context.Context, symbol string) (*marketdata.ContractQuote, error)
}

// ChainProvider fetches the filterable contract list for an underlying.
type ChainProvider interface {
	Chain(ctx context.Context, underlying string) (*marketdata.Chain, error)
}

// SnapshotProvider builds the price summary the analyzer classifies.
type SnapshotProvider interface {
	Snapshot(ctx context.Context, symbol string) (*analysis.Snapshot, error)
}

// Analyzer is the technical-analysis collaborator.
type Analyzer interface {
	Analyze(ctx context.Context, snap *analysis.Snapshot) (*analysis.Result, string, error)
}

// TradeExecutor commits the cycle's proposals through the risk gate.
type TradeExecutor interface {
	Execute(ctx context.Context, exits []executor.ExitProposal, entries []executor.EntryProposal) executor.Result
}

// Notifier receives engine-level status and error alerts.
type Notifier interface {
	NotifyError(context string, err error)
	NotifyStatus(message string)
}

// Engine drives the Monitor -> Scan -> Risk Gate -> Execute cycle.
type Engine struct {
	store     Store
	quotes    QuoteProvider
	chains    ChainProvider
	snapshots SnapshotProvider
	analyzer  Analyzer
	executor  TradeExecutor
	notifier  Notifier
	metrics   *metrics.Metrics
	config    *config.Config
	logger    *logger.Logger
	loc       *time.Location
	ranker    Ranker
	clock     func() time.Time

	mu     sync.Mutex // guards state and cancel
	state  State
	cancel context.CancelFunc

	// cycleMu serializes cycle execution: a scheduled tick and RunCycleNow
	// can never run a cycle concurrently, and Stop never interrupts an
	// in-flight cycle.
	cycleMu sync.Mutex

	statusMu    sync.Mutex
	lastCycleAt time.Time
}

func NewEngine(
	store Store,
	quotes QuoteProvider,
	chains ChainProvider,
	snapshots SnapshotProvider,
	analyzer Analyzer,
	exec TradeExecutor,
	notifier Notifier,
	m *metrics.Metrics,
	cfg *config.Config,
	log *logger.Logger,
) *Engine {
	return &Engine{
		store:     store,
		quotes:    quotes,
		chains:    chains,
		snapshots: snapshots,
		analyzer:  analyzer,
		executor:  exec,
		notifier:  notifier,
		metrics:   m,
		config:    cfg,
		logger:    log,
		loc:       cfg.MarketLocation(),
		ranker:    RankerFor(cfg.Engine.Ranking),
		clock:     time.Now,
	}
}

// Start begins scheduling cycles. The first cycle runs immediately.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == Running {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.state = Running

	go e.run(ctx)

	e.logger.Info("engine started")
	return nil
}

// Stop halts the scheduler. An in-flight cycle runs to completion; open
// positions stay open and unmonitored until the engine is started again.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != Running {
		return ErrNotRunning
	}

	e.cancel()
	e.cancel = nil
	e.state = Stopped

	e.logger.Warn("engine stopped; open positions are unmonitored until restart")
	return nil
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// RunCycleNow executes exactly one synchronous cycle, bypassing the timer.
// Usable whether the engine is running or stopped; mutually exclusive with a
// scheduled tick.
func (e *Engine) RunCycleNow(ctx context.Context) {
	e.runCycle(ctx, TriggerManual)
}

// Status describes the engine for the control API.
type Status struct {
	State       string    `json:"state"`
	Session     string    `json:"session"`
	Interval    string    `json:"interval"`
	LastCycleAt time.Time `json:"last_cycle_at"`
}

func (e *Engine) Status() Status {
	session := CurrentSession(e.clock(), e.loc)

	e.statusMu.Lock()
	last := e.lastCycleAt
	e.statusMu.Unlock()

	return Status{
		State:       e.State().String(),
		Session:     session.String(),
		Interval:    e.intervalFor(session).String(),
		LastCycleAt: last,
	}
}

func (e *Engine) run(ctx context.Context) {
	e.runCycle(ctx, TriggerSchedule)

	for {
		interval := e.intervalFor(CurrentSession(e.clock(), e.loc))
		timer := time.NewTimer(interval)

		select {
		case <-ctx.Done():
			timer.Stop()
			e.logger.Info("scheduler loop exited")
			return
		case <-timer.C:
			e.runCycle(ctx, TriggerSchedule)
		}
	}
}

func (e *Engine) intervalFor(s Session) time.Duration {
	switch s {
	case SessionRegular:
		return e.config.RegularInterval()
	case SessionExtended:
		return e.config.ExtendedInterval()
	default:
		return e.config.ClosedInterval()
	}
}

func (e *Engine) runCycle(ctx context.Context, trigger string) {
	e.cycleMu.Lock()
	defer e.cycleMu.Unlock()

	// A started cycle runs to completion: Stop cancels the scheduler loop,
	// not the collaborator calls of the cycle already in flight.
	ctx = context.WithoutCancel(ctx)

	start := e.clock()
	session := CurrentSession(start, e.loc)
	cycleLog := &storage.CycleLog{Trigger: trigger, Session: session.String()}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("panic in engine cycle", "panic", fmt.Sprint(r))
			e.notifier.NotifyError("engine cycle panic", fmt.Errorf("%v", r))
			cycleLog.Error = fmt.Sprint(r)
			e.finishCycle(cycleLog, start, trigger)
		}
	}()

	e.logger.Info("cycle started", "trigger", trigger, "session", session.String())

	// Monitor runs first so exit proposals are evaluated before new entries
	// compete for the same balance.
	exits, monitored := e.monitorPositions(ctx)
	entries, scanned := e.scanOpportunities(ctx)

	cycleLog.PositionsMonitored = monitored
	cycleLog.AutomationsScanned = scanned
	cycleLog.ExitProposals = len(exits)
	cycleLog.EntryProposals = len(entries)

	e.metrics.ProposalsTotal.WithLabelValues("monitor").Add(float64(len(exits)))
	e.metrics.ProposalsTotal.WithLabelValues("scan").Add(float64(len(entries)))

	result := e.executor.Execute(ctx, exits, entries)
	cycleLog.Executed = result.Executed
	cycleLog.Rejected = result.Rejected

	if positions, err := e.store.GetOpenPositions(); err == nil {
		e.metrics.OpenPositions.Set(float64(len(positions)))
	}

	e.finishCycle(cycleLog, start, trigger)

	e.logger.Info("cycle completed",
		"trigger", trigger,
		"monitored", monitored, "scanned", scanned,
		"exit_proposals", len(exits), "entry_proposals", len(entries),
		"executed", result.Executed, "rejected", result.Rejected)
}

func (e *Engine) finishCycle(cycleLog *storage.CycleLog, start time.Time, trigger string) {
	elapsed := e.clock().Sub(start)
	cycleLog.DurationMs = elapsed.Milliseconds()

	e.metrics.CyclesTotal.WithLabelValues(trigger).Inc()
	e.metrics.CycleDuration.Observe(elapsed.Seconds())

	e.statusMu.Lock()
	e.lastCycleAt = start
	e.statusMu.Unlock()

	if err := e.store.SaveCycleLog(cycleLog); err != nil {
		e.logger.Error("save cycle log", "error", err)
	}
}
