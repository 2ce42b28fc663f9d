// Package controller supervises the ingest pipeline of a simulated network:
// one hub, one topology mirror and one worker per node category, torn down
// and rebuilt together on Reset.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/wgsim/controller/internal/hub"
	"github.com/wgsim/controller/internal/ingest"
	"github.com/wgsim/controller/internal/topology"
	"github.com/wgsim/controller/pkg/network"
	"github.com/wgsim/controller/pkg/tracer"
)

var (
	// ErrJoinTimeout is returned by Reset when a worker did not exit within
	// the configured join timeout.
	ErrJoinTimeout = errors.New("worker did not exit after cancellation")
	// ErrStopped is returned by operations on a stopped supervisor.
	ErrStopped = errors.New("supervisor stopped")
	// ErrResetInProgress is reported by ResetAsync when another reset holds
	// the supervisor.
	ErrResetInProgress = errors.New("reset already in progress")
)

// State is the lifecycle state of a Supervisor.
type State int32

const (
	StateRunning State = iota
	StateResetting
	// StateFaulted means the last reset could not join every old worker.
	// The previous hub stays visible and no new workers run.
	StateFaulted
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateResetting:
		return "resetting"
	case StateFaulted:
		return "faulted"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Options configures a Supervisor.
type Options struct {
	// LogCapacity bounds every node log; zero means hub.DefaultLogCapacity.
	LogCapacity int
	// JoinTimeout bounds the join step of Reset; zero waits forever.
	JoinTimeout time.Duration
	Repainter   hub.Repainter
	Tracer      *tracer.Tracer
}

// generation is the state published by one successful reset.
type generation struct {
	seq    uint64
	engine network.Engine
	hub    *hub.Hub
	mirror *topology.Mirror
}

// Supervisor owns the pipeline. Reset calls are serialized; the accessors
// never block on a reset in progress.
type Supervisor struct {
	source network.Source
	opts   Options

	mu        sync.Mutex // serializes Reset and Stop, guards workers
	workers   []*ingest.Handle
	seq       uint64
	resetting atomic.Bool

	state atomic.Int32
	gen   atomic.Pointer[generation]
}

// New builds the first generation from source and starts its workers.
func New(source network.Source, opts Options) (*Supervisor, error) {
	s := &Supervisor{source: source, opts: opts}
	s.state.Store(int32(StateResetting))
	if err := s.Reset(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	return State(s.state.Load())
}

func (s *Supervisor) setState(st State) {
	s.state.Store(int32(st))
	log.WithField("caller", "supervisor").Debugf("State changed to %s", st)
}

// Hub returns the hub of the current generation.
func (s *Supervisor) Hub() *hub.Hub {
	if g := s.gen.Load(); g != nil {
		return g.hub
	}
	return nil
}

// Mirror returns the topology mirror of the current generation.
func (s *Supervisor) Mirror() *topology.Mirror {
	if g := s.gen.Load(); g != nil {
		return g.mirror
	}
	return nil
}

// Generation returns a counter incremented by every successful reset.
func (s *Supervisor) Generation() uint64 {
	if g := s.gen.Load(); g != nil {
		return g.seq
	}
	return 0
}

// NodeIDs returns the engine's live membership for c. Unlike the hub node
// set it shrinks as soon as a relay crashes.
func (s *Supervisor) NodeIDs(c network.Category) []network.NodeID {
	g := s.gen.Load()
	if g == nil {
		return nil
	}
	return g.engine.IDs(c)
}

// Reset stops the current workers, waits for all of them to exit, then
// publishes a fresh hub and mirror built from the engine's topology and
// starts one worker per category on it.
//
// If a worker fails to exit within JoinTimeout, Reset returns ErrJoinTimeout
// and leaves the supervisor Faulted: the old hub is still published and no
// workers are started. A later Reset joins the stragglers first. If ctx ends
// during the join, Reset returns ctx's error and is also left Faulted, since
// the old workers were already cancelled. A ctx that is done before Reset
// starts changes nothing.
func (s *Supervisor) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reset(ctx)
}

// ResetAsync runs Reset on its own goroutine so the caller's loop is not held
// by the join. The channel yields exactly one result. When another reset is
// running it yields ErrResetInProgress immediately. When Stop holds the
// supervisor the reset waits for it and then yields ErrStopped.
func (s *Supervisor) ResetAsync(ctx context.Context) <-chan error {
	res := make(chan error, 1)
	locked := s.mu.TryLock()
	if !locked && s.resetting.Load() {
		res <- ErrResetInProgress
		return res
	}
	go func() {
		if !locked {
			s.mu.Lock()
		}
		defer s.mu.Unlock()
		res <- s.reset(ctx)
	}()
	return res
}

func (s *Supervisor) reset(ctx context.Context) error {
	logger := log.WithField("caller", "supervisor")
	if s.State() == StateStopped {
		return ErrStopped
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.resetting.Store(true)
	defer s.resetting.Store(false)
	s.setState(StateResetting)

	if err := s.stopWorkers(ctx); err != nil {
		s.setState(StateFaulted)
		logger.WithError(err).Error("Reset aborted")
		return err
	}

	eng, err := s.source.Engine()
	if err != nil {
		s.setState(StateFaulted)
		logger.WithError(err).Error("Failed to obtain engine")
		return fmt.Errorf("obtain engine: %w", err)
	}
	snap := eng.Topology()
	h, err := hub.New(eng, snap, hub.Options{
		LogCapacity: s.opts.LogCapacity,
		Repainter:   s.opts.Repainter,
		Tracer:      s.opts.Tracer,
	})
	if err != nil {
		s.setState(StateFaulted)
		logger.WithError(err).Error("Failed to build hub")
		return fmt.Errorf("build hub: %w", err)
	}

	s.seq++
	s.gen.Store(&generation{
		seq:    s.seq,
		engine: eng,
		hub:    h,
		mirror: topology.FromSnapshot(snap),
	})

	for _, c := range network.Categories {
		s.workers = append(s.workers, ingest.Spawn(ingest.RoleFor(c), eng.Events(c), h))
	}
	s.setState(StateRunning)
	logger.Infof("Pipeline reset (generation %d): %d relays, %d clients, %d servers",
		s.seq, len(snap.Relays), len(snap.Originators), len(snap.Responders))

	if s.opts.Repainter != nil {
		s.opts.Repainter.RequestRepaint()
	}
	return nil
}

// stopWorkers cancels every worker and joins them. Workers that did not
// exit stay in s.workers. Callers hold s.mu.
func (s *Supervisor) stopWorkers(ctx context.Context) error {
	for _, w := range s.workers {
		w.Cancel()
	}

	joinCtx := ctx
	if s.opts.JoinTimeout > 0 {
		var cancel context.CancelFunc
		joinCtx, cancel = context.WithTimeout(ctx, s.opts.JoinTimeout)
		defer cancel()
	}

	var joinErr error
	for _, w := range s.workers {
		if err := w.Join(joinCtx); err != nil {
			if ctx.Err() != nil {
				joinErr = fmt.Errorf("join %s worker: %w", w.Role().Category, ctx.Err())
			} else {
				joinErr = fmt.Errorf("%w: %s worker: %w", ErrJoinTimeout, w.Role().Category, err)
			}
			break
		}
	}

	remaining := s.workers[:0]
	for _, w := range s.workers {
		select {
		case <-w.Done():
		default:
			remaining = append(remaining, w)
		}
	}
	clear(s.workers[len(remaining):])
	s.workers = remaining
	return joinErr
}

// Stop cancels and joins every worker. The last hub stays readable.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State() == StateStopped {
		return nil
	}
	if err := s.stopWorkers(ctx); err != nil {
		s.setState(StateFaulted)
		return err
	}
	s.setState(StateStopped)
	log.WithField("caller", "supervisor").Info("Pipeline stopped")
	return nil
}

// Reconcile patches the current mirror from the engine's topology and
// reports whether it changed.
func (s *Supervisor) Reconcile() bool {
	g := s.gen.Load()
	if g == nil {
		return false
	}
	changed := g.mirror.Reconcile(g.engine.Topology())
	if changed && s.opts.Repainter != nil {
		s.opts.Repainter.RequestRepaint()
	}
	return changed
}

// RunReconciler calls Reconcile every interval until ctx ends.
func (s *Supervisor) RunReconciler(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Reconcile()
		}
	}
}
