// Package miner runs the nonce search against the current block template and
// keeps that template fresh.
//
// Two goroutines share one job.TemplateStore. The refresh loop is the only
// writer; the search loop takes a snapshot on every iteration and never holds
// the store lock while hashing or doing network I/O.
package miner

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/whatsy12/bitcoinminer/internal/job"
	"github.com/whatsy12/bitcoinminer/internal/journal"
	"github.com/whatsy12/bitcoinminer/internal/metrics"
)

// State is what the search loop is doing.
type State int32

const (
	Idle State = iota
	Searching
	Found
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Searching:
		return "searching"
	case Found:
		return "found"
	default:
		return "unknown"
	}
}

// Config tunes the loops.
type Config struct {
	RefreshInterval time.Duration
	RefreshMinGap   time.Duration
	IdlePoll        time.Duration
	StatsEvery      uint64
	SubmitTimeout   time.Duration
}

// DefaultConfig returns the intervals used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		RefreshInterval: 30 * time.Second,
		RefreshMinGap:   time.Second,
		IdlePoll:        100 * time.Millisecond,
		StatsEvery:      1000000,
		SubmitTimeout:   30 * time.Second,
	}
}

// Deps are the collaborators a Miner talks to. Source and Submitter are
// required; the rest fall back to in-process defaults.
type Deps struct {
	Source    job.Source
	Submitter job.BlockSubmitter
	Store     *job.TemplateStore
	Journal   journal.Journal
	Recorder  metrics.Recorder
	Logger    *zap.Logger
}

// Stats is a point-in-time view for status pages.
type Stats struct {
	State       string  `json:"state"`
	Hashes      uint64  `json:"hashes"`
	HashRate    float64 `json:"hash_rate"`
	BlocksFound uint64  `json:"blocks_found"`
	Accepted    uint64  `json:"blocks_accepted"`
	Rejected    uint64  `json:"blocks_rejected"`
	Failed      uint64  `json:"blocks_failed"`
	Height      int64   `json:"template_height"`
	Target      string  `json:"target"`
	Generation  uint64  `json:"template_generation"`
	Uptime      string  `json:"uptime"`
}

// Miner owns the search and refresh loops.
type Miner struct {
	cfg       Config
	source    job.Source
	submitter job.BlockSubmitter
	store     *job.TemplateStore
	journal   journal.Journal
	recorder  metrics.Recorder
	logger    *zap.Logger
	limiter   *rate.Limiter
	maxNonce  uint32

	refreshReq chan chan error

	state    atomic.Int32
	hashes   atomic.Uint64
	rateBits atomic.Uint64
	found    atomic.Uint64
	accepted atomic.Uint64
	rejected atomic.Uint64
	failed   atomic.Uint64

	mu      sync.Mutex
	started time.Time
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New wires a Miner. Zero config fields take DefaultConfig values.
func New(cfg Config, deps Deps) *Miner {
	def := DefaultConfig()
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = def.RefreshInterval
	}
	if cfg.RefreshMinGap < 0 {
		cfg.RefreshMinGap = 0
	}
	if cfg.IdlePoll <= 0 {
		cfg.IdlePoll = def.IdlePoll
	}
	if cfg.StatsEvery == 0 {
		cfg.StatsEvery = def.StatsEvery
	}
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = def.SubmitTimeout
	}
	if deps.Store == nil {
		deps.Store = job.NewTemplateStore()
	}
	if deps.Journal == nil {
		deps.Journal = journal.NewMemoryJournal()
	}
	if deps.Recorder == nil {
		deps.Recorder = metrics.Default
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	limit := rate.Inf
	if cfg.RefreshMinGap > 0 {
		limit = rate.Every(cfg.RefreshMinGap)
	}
	return &Miner{
		cfg:        cfg,
		source:     deps.Source,
		submitter:  deps.Submitter,
		store:      deps.Store,
		journal:    deps.Journal,
		recorder:   deps.Recorder,
		logger:     deps.Logger,
		limiter:    rate.NewLimiter(limit, 1),
		maxNonce:   math.MaxUint32,
		refreshReq: make(chan chan error),
	}
}

// Store exposes the template store the loops share.
func (m *Miner) Store() *job.TemplateStore { return m.store }

// Start launches both loops. They run until ctx is cancelled or Stop is called.
func (m *Miner) Start(ctx context.Context) error {
	if m.source == nil || m.submitter == nil {
		return errors.New("miner needs a template source and a block submitter")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return errors.New("miner already started")
	}
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.started = time.Now()
	m.hashes.Store(0)

	m.logger.Info("starting miner",
		zap.Duration("refresh_interval", m.cfg.RefreshInterval),
		zap.Uint64("stats_every", m.cfg.StatsEvery),
	)

	m.wg.Add(2)
	go m.refreshLoop(ctx)
	go m.searchLoop(ctx)
	return nil
}

// Stop cancels both loops and waits for them to exit. It is safe to call
// more than once, and the miner can be started again afterwards.
func (m *Miner) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	m.wg.Wait()
	m.mu.Lock()
	m.cancel = nil
	m.mu.Unlock()
	m.logger.Info("miner stopped", zap.Uint64("hashes", m.hashes.Load()))
}

// State returns the search loop's current state.
func (m *Miner) State() State { return State(m.state.Load()) }

func (m *Miner) setState(s State) { m.state.Store(int32(s)) }

// Stats snapshots the counters.
func (m *Miner) Stats() Stats {
	m.mu.Lock()
	started := m.started
	m.mu.Unlock()

	s := Stats{
		State:       m.State().String(),
		Hashes:      m.hashes.Load(),
		HashRate:    math.Float64frombits(m.rateBits.Load()),
		BlocksFound: m.found.Load(),
		Accepted:    m.accepted.Load(),
		Rejected:    m.rejected.Load(),
		Failed:      m.failed.Load(),
	}
	if !started.IsZero() {
		s.Uptime = time.Since(started).Truncate(time.Second).String()
	}
	if snap, err := m.store.Read(); err == nil {
		s.Height = snap.Template.Height
		s.Target = snap.Template.Target
		s.Generation = snap.Generation
	}
	return s
}
