// ABOUTME: Monitor registry for lifecycle and lookup
// ABOUTME: Keeps at most one monitor per stream address and owns their goroutines
package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/harper/radio-nowplaying/internal/domain"
	"github.com/harper/radio-nowplaying/internal/domain/monitor"
	"github.com/harper/radio-nowplaying/internal/domain/track"
)

type Deps struct {
	Capturer   domain.Capturer
	Identifier domain.Identifier
	Covers     domain.CoverResolver
}

type Options struct {
	ClipLength  time.Duration
	Interval    time.Duration
	WorkDir     string
	ArtifactExt string
}

// Entry describes one active monitor.
type Entry struct {
	Stream string      `json:"stream"`
	RunID  string      `json:"run_id"`
	Cycles uint64      `json:"cycles"`
	State  track.State `json:"state"`
}

type handle struct {
	mon    *monitor.Monitor
	cancel context.CancelFunc
}

// Registry maps stream addresses to running monitors. The mutex guards map
// membership only; no provider I/O ever happens while it is held.
type Registry struct {
	deps Deps
	opts Options
	log  logrus.FieldLogger

	monitors map[string]*handle
	mu       sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(deps Deps, opts Options, log logrus.FieldLogger) *Registry {
	if log == nil {
		log = logrus.StandardLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		deps:     deps,
		opts:     opts,
		log:      log,
		monitors: make(map[string]*handle),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches a monitor for stream unless one is already running, in which
// case it reports created=false with the running monitor's state.
func (r *Registry) Start(stream, label string) (bool, track.State) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.monitors[stream]; ok {
		return false, h.mon.Snapshot()
	}

	if r.ctx.Err() != nil {
		return false, track.Empty()
	}

	mon := monitor.New(monitor.Config{
		Stream:      stream,
		Label:       label,
		ClipLength:  r.opts.ClipLength,
		Interval:    r.opts.Interval,
		WorkDir:     r.opts.WorkDir,
		ArtifactExt: r.opts.ArtifactExt,
	}, r.deps.Capturer, r.deps.Identifier, r.deps.Covers, r.log)

	ctx, cancel := context.WithCancel(r.ctx)
	r.monitors[stream] = &handle{mon: mon, cancel: cancel}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		mon.Run(ctx)
	}()

	return true, mon.Snapshot()
}

// Stop cancels and forgets the monitor for stream. The loop winds down in the
// background; the entry is gone as soon as Stop returns.
func (r *Registry) Stop(stream string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.monitors[stream]
	if !ok {
		return false
	}

	h.cancel()
	delete(r.monitors, stream)
	return true
}

// Status returns the state for stream, or the canonical empty state when it is not monitored.
func (r *Registry) Status(stream string) track.State {
	r.mu.Lock()
	h, ok := r.monitors[stream]
	r.mu.Unlock()

	if !ok {
		return track.Empty()
	}
	return h.mon.Snapshot()
}

func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.monitors)
}

func (r *Registry) List() []Entry {
	r.mu.Lock()
	mons := make([]*monitor.Monitor, 0, len(r.monitors))
	for _, h := range r.monitors {
		mons = append(mons, h.mon)
	}
	r.mu.Unlock()

	result := make([]Entry, 0, len(mons))
	for _, m := range mons {
		result = append(result, Entry{
			Stream: m.Stream(),
			RunID:  m.RunID(),
			Cycles: m.Cycles(),
			State:  m.Snapshot(),
		})
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Stream < result[j].Stream
	})
	return result
}

// Shutdown stops every monitor and waits for their loops to exit or ctx to expire.
// The registry refuses new monitors afterwards.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	for stream, h := range r.monitors {
		h.cancel()
		delete(r.monitors, stream)
	}
	r.cancel()
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
