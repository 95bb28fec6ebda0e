// Package session ties the board client, the viewport and the input
// dispatcher together and drives them from a single goroutine.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sushiag/go-pixel-canvas/internal/config"
	"github.com/sushiag/go-pixel-canvas/internal/gridsync"
	"github.com/sushiag/go-pixel-canvas/internal/input"
	"github.com/sushiag/go-pixel-canvas/internal/viewport"
)

var ErrClosed = errors.New("session: closed")

const eventBuffer = 64

type Options struct {
	Sync           gridsync.Config
	View           viewport.Config
	ClickThreshold float64
	FrameInterval  time.Duration
}

// OptionsFromConfig maps the process configuration onto session options.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		Sync: gridsync.Config{
			SnapshotURL:     cfg.BackendURL + "/getboard",
			ChannelURL:      cfg.BackendWSURL,
			GridSize:        cfg.GridSize,
			SnapshotTimeout: cfg.SnapshotTimeout,
			RetryDelay:      cfg.SnapshotRetryDelay,
		},
		View: viewport.Config{
			GridSize:   cfg.GridSize,
			CellSize:   cfg.CellSize,
			Viewport:   viewport.Size{W: cfg.ViewportWidth, H: cfg.ViewportHeight},
			ScaleRange: viewport.Range{Min: cfg.ScaleMin, Max: cfg.ScaleMax},
			FocusRange: viewport.Range{Min: cfg.FocusScaleMin, Max: cfg.FocusScaleMax},
		},
		ClickThreshold: cfg.ClickThreshold,
		FrameInterval:  cfg.FrameInterval,
	}
}

type snapshotResult struct {
	buf []byte
	err error
}

// Session owns one client's state. Run is the only goroutine that touches
// the client, the transform or the dispatcher; other goroutines reach it
// through Submit, Resync and the query methods.
type Session struct {
	client     *gridsync.Client
	transform  *viewport.Transform
	dispatcher *input.Dispatcher
	renderer   Renderer
	interval   time.Duration
	log        *logrus.Entry

	events    chan input.Event
	resync    chan struct{}
	calls     chan func()
	snapshots chan snapshotResult
	done      chan struct{}

	fetching bool
	dirty    bool
}

func New(opts Options, renderer Renderer, log *logrus.Entry) *Session {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = 16 * time.Millisecond
	}
	if opts.ClickThreshold <= 0 {
		opts.ClickThreshold = input.DefaultClickThreshold
	}

	client := gridsync.New(opts.Sync, log.WithField("component", "gridsync"))
	transform := viewport.New(opts.View)
	s := &Session{
		client:     client,
		transform:  transform,
		dispatcher: input.NewDispatcher(transform, client, opts.ClickThreshold, log.WithField("component", "input")),
		renderer:   renderer,
		interval:   opts.FrameInterval,
		log:        log,
		events:     make(chan input.Event, eventBuffer),
		resync:     make(chan struct{}, 1),
		calls:      make(chan func()),
		snapshots:  make(chan snapshotResult, 1),
		done:       make(chan struct{}),
		dirty:      true,
	}
	return s
}

// Run connects, loads the board and then serves events until ctx ends.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.done)
	defer s.client.Close()

	if err := s.client.Connect(ctx); err != nil {
		s.log.WithError(err).Error("Push channel unavailable, continuing without live updates")
	}
	s.startFetch(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	inbound := s.client.Inbound()
	for {
		select {
		case <-ctx.Done():
			s.log.Info("Session stopped")
			return ctx.Err()

		case ev := <-s.events:
			s.handleEvent(ev)

		case raw, ok := <-inbound:
			if !ok {
				s.log.Warn("Push channel closed, live updates stopped")
				inbound = nil
				continue
			}
			if err := s.client.HandleFrame(raw); err == nil {
				s.dirty = true
			}

		case res := <-s.snapshots:
			s.fetching = false
			if res.err != nil {
				s.client.Fail(res.err)
			} else {
				s.client.Install(res.buf)
			}
			s.dirty = true

		case <-s.resync:
			s.startFetch(ctx)

		case fn := <-s.calls:
			fn()

		case <-ticker.C:
			s.render()
		}
	}
}

func (s *Session) startFetch(ctx context.Context) {
	if s.fetching {
		return
	}
	s.fetching = true
	s.client.BeginRefresh()
	go func() {
		buf, err := s.client.FetchSnapshot(ctx)
		select {
		case s.snapshots <- snapshotResult{buf: buf, err: err}:
		case <-ctx.Done():
		}
	}()
}

func (s *Session) handleEvent(ev input.Event) {
	if err := s.dispatcher.Handle(ev); err != nil {
		if errors.Is(err, input.ErrNotFocused) {
			s.log.Debug("Color commit without a focused cell")
		}
		return
	}
	s.dirty = true
}

// render paints the frame when something changed. Until a board is installed
// the frame carries only the status and error, with no buffer.
func (s *Session) render() {
	if s.renderer == nil || !s.dirty {
		return
	}
	fr := s.frame()
	if fr.Status != gridsync.StatusReady {
		fr.Buffer = nil
	}
	s.renderer.Render(fr)
	s.dirty = false
}

func (s *Session) frame() Frame {
	return Frame{
		Buffer:     s.client.Buffer(),
		Size:       s.client.Size(),
		Position:   s.transform.Position(),
		Viewport:   s.transform.Viewport(),
		Crosshair:  s.transform.Crosshair(),
		Focus:      s.transform.Focus(),
		Transition: s.transform.Transition(),
		Status:     s.client.Status(),
		Err:        s.client.Err(),
		Unsent:     s.client.Unsent(),
	}
}

// Submit queues an input event for the session loop.
func (s *Session) Submit(ctx context.Context, ev input.Event) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	select {
	case s.events <- ev:
		return nil
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Resync asks the loop to refetch the board snapshot. Requests made while a
// fetch is running are merged into it.
func (s *Session) Resync() {
	select {
	case s.resync <- struct{}{}:
	default:
	}
}

// call runs fn on the session goroutine and waits for it.
func (s *Session) call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	wrapped := func() {
		fn()
		close(finished)
	}
	select {
	case s.calls <- wrapped:
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	<-finished
	return nil
}

// Snapshot returns the current frame with a private copy of the buffer.
func (s *Session) Snapshot(ctx context.Context) (Frame, error) {
	var fr Frame
	err := s.call(ctx, func() {
		fr = s.frame()
		fr.Buffer = append([]byte(nil), fr.Buffer...)
	})
	return fr, err
}

// Picker reports the focused cell and the colors offered for it.
func (s *Session) Picker(ctx context.Context) (PickerState, error) {
	var ps PickerState
	err := s.call(ctx, func() {
		focus := s.transform.Focus()
		if !focus.Focused {
			return
		}
		ps = PickerState{
			Open:    true,
			Row:     focus.Row,
			Col:     focus.Col,
			Choices: s.client.Palette().Choices(),
		}
	})
	return ps, err
}
