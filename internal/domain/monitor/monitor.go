// ABOUTME: Per-stream monitor running the capture, identify, cover, publish cycle
// ABOUTME: Publishes immutable state snapshots and exits only when its context is cancelled
package monitor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/harper/radio-nowplaying/internal/domain"
	"github.com/harper/radio-nowplaying/internal/domain/track"
)

type Config struct {
	Stream      string
	Label       string
	ClipLength  time.Duration
	Interval    time.Duration
	WorkDir     string
	ArtifactExt string
}

type Monitor struct {
	stream string
	label  string
	runID  string

	clipLength  time.Duration
	interval    time.Duration
	workDir     string
	artifactExt string

	capturer   domain.Capturer
	identifier domain.Identifier
	covers     domain.CoverResolver

	state  atomic.Pointer[track.State]
	cycles atomic.Uint64

	log  logrus.FieldLogger
	done chan struct{}
}

// identity memoizes the last identified track so an unchanged track does not
// trigger a cover lookup on every cycle.
type identity struct {
	key      string
	cover    string
	caughtUp bool
}

func New(cfg Config, capturer domain.Capturer, identifier domain.Identifier, covers domain.CoverResolver, log logrus.FieldLogger) *Monitor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if cfg.ArtifactExt == "" {
		cfg.ArtifactExt = ".wav"
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = os.TempDir()
	}

	runID := uuid.NewString()
	m := &Monitor{
		stream:      cfg.Stream,
		label:       cfg.Label,
		runID:       runID,
		clipLength:  cfg.ClipLength,
		interval:    cfg.Interval,
		workDir:     cfg.WorkDir,
		artifactExt: cfg.ArtifactExt,
		capturer:    capturer,
		identifier:  identifier,
		covers:      covers,
		log: log.WithFields(logrus.Fields{
			"stream":  cfg.Stream,
			"station": cfg.Label,
			"run":     runID,
		}),
		done: make(chan struct{}),
	}

	initial := track.NotFound(cfg.Label)
	m.state.Store(&initial)
	return m
}

func (m *Monitor) Stream() string {
	return m.stream
}

func (m *Monitor) Label() string {
	return m.label
}

func (m *Monitor) RunID() string {
	return m.runID
}

// Snapshot returns the last published state. Safe to call from any goroutine.
func (m *Monitor) Snapshot() track.State {
	return *m.state.Load()
}

// Cycles is the number of completed capture cycles.
func (m *Monitor) Cycles() uint64 {
	return m.cycles.Load()
}

// Done is closed once Run has returned.
func (m *Monitor) Done() <-chan struct{} {
	return m.done
}

// Run blocks until ctx is cancelled. Provider failures never end the loop.
func (m *Monitor) Run(ctx context.Context) {
	defer close(m.done)

	m.log.Info("monitor started")

	var memo identity
	for ctx.Err() == nil {
		m.cycle(ctx, &memo)
		m.cycles.Add(1)

		if !m.idle(ctx) {
			break
		}
	}

	m.sweepArtifacts()
	m.log.Info("monitor stopped")
}

func (m *Monitor) cycle(ctx context.Context, memo *identity) {
	artifact := m.artifactPath()
	defer m.release(artifact)

	next := m.observe(ctx, artifact, memo)

	// A cancelled cycle must not overwrite state after the monitor was stopped.
	if ctx.Err() != nil {
		return
	}
	m.publish(next)
}

func (m *Monitor) observe(ctx context.Context, artifact string, memo *identity) track.State {
	if err := m.capturer.Capture(ctx, m.stream, m.clipLength, artifact); err != nil {
		m.log.WithError(err).Warn("capture failed")
		return track.NotFound(m.label)
	}

	found, err := m.identifier.Identify(ctx, domain.Sample{Path: artifact, Stream: m.stream})
	switch {
	case errors.Is(err, domain.ErrNoMatch):
		m.log.Debug("no match")
		return track.NotFound(m.label)
	case err != nil:
		m.log.WithError(err).Warn("identify failed")
		return track.NotFound(m.label)
	case found == nil:
		return track.NotFound(m.label)
	}

	title := strings.TrimSpace(found.Title)
	artist := strings.TrimSpace(found.Artist)
	if title == "" && artist == "" {
		m.log.Debug("identify returned an empty track")
		return track.NotFound(m.label)
	}

	cover := m.coverFor(ctx, memo, artist, title)
	return track.Playing(m.label, title, artist, cover)
}

// coverFor looks up artwork once per distinct track, with one catch-up attempt
// when the first lookup found nothing.
func (m *Monitor) coverFor(ctx context.Context, memo *identity, artist, title string) string {
	key := track.IdentityKey(artist, title)

	if key != memo.key {
		*memo = identity{key: key, cover: m.lookupCover(ctx, artist, title)}
		m.log.WithField("track", key).Info("now playing")
		return memo.cover
	}

	if memo.cover == "" && !memo.caughtUp {
		memo.caughtUp = true
		memo.cover = m.lookupCover(ctx, artist, title)
	}
	return memo.cover
}

func (m *Monitor) lookupCover(ctx context.Context, artist, title string) string {
	if m.covers == nil {
		return ""
	}

	url, err := m.covers.Resolve(ctx, artist, title)
	if err != nil {
		m.log.WithError(err).Debug("cover lookup failed")
		return ""
	}
	return url
}

func (m *Monitor) publish(s track.State) {
	m.state.Store(&s)
}

func (m *Monitor) idle(ctx context.Context) bool {
	timer := time.NewTimer(m.interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (m *Monitor) artifactPath() string {
	name := "capture-" + m.runID + "-" + uuid.NewString() + m.artifactExt
	return filepath.Join(m.workDir, name)
}

func (m *Monitor) release(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		m.log.WithError(err).WithField("path", path).Warn("remove capture artifact")
	}
}

// sweepArtifacts removes anything this run may have left behind, e.g. a file an
// interrupted capture process finished writing after the cycle released it.
func (m *Monitor) sweepArtifacts() {
	matches, err := filepath.Glob(filepath.Join(m.workDir, "capture-"+m.runID+"-*"))
	if err != nil {
		m.log.WithError(err).Warn("list capture artifacts")
		return
	}
	for _, path := range matches {
		m.release(path)
	}
}
