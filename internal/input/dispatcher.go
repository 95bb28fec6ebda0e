package input

import (
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/sushiag/go-pixel-canvas/internal/viewport"
)

var ErrNotFocused = errors.New("input: no cell is focused")

// DefaultClickThreshold is the pointer travel, in pixels, below which a
// press and release count as a click.
const DefaultClickThreshold = 5

// Transform is the part of the viewport state machine driven by input.
type Transform interface {
	Translate(dX, dY float64)
	ScaleAt(dir viewport.ZoomDirection, anchor viewport.Point)
	ScaleAtCenter(dir viewport.ZoomDirection)
	FocusAt(anchor viewport.Point)
	FocusCenter()
	Unfocus()
	SetViewportSize(width, height float64)
	Position() viewport.Position
	Focus() viewport.FocusState
	CellSize() float64
}

// Painter performs a local cell write.
type Painter interface {
	SetLocal(row, col, color int) error
}

// Dispatcher classifies raw input into transform and grid operations. Its
// only state is the position of the last pointer press.
type Dispatcher struct {
	transform Transform
	painter   Painter
	threshold float64
	log       *logrus.Entry

	down     viewport.Point
	buttonUp bool
}

func NewDispatcher(transform Transform, painter Painter, clickThreshold float64, log *logrus.Entry) *Dispatcher {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Dispatcher{
		transform: transform,
		painter:   painter,
		threshold: clickThreshold,
		log:       log,
		buttonUp:  true,
	}
}

// Dragging reports whether the pointer button is held.
func (d *Dispatcher) Dragging() bool {
	return !d.buttonUp
}

// Handle applies one event. Only CommitColor can fail.
func (d *Dispatcher) Handle(ev Event) error {
	switch ev := ev.(type) {
	case PointerDown:
		d.down = viewport.Point{X: ev.X, Y: ev.Y}
		d.buttonUp = false

	case PointerMove:
		if d.buttonUp {
			return nil
		}
		d.transform.Translate(ev.DX, ev.DY)

	case PointerUp:
		if d.buttonUp {
			return nil
		}
		d.buttonUp = true
		if math.Abs(ev.X-d.down.X) < d.threshold && math.Abs(ev.Y-d.down.Y) < d.threshold {
			d.transform.FocusAt(viewport.Point{X: ev.X, Y: ev.Y})
		}

	case Wheel:
		if ev.DeltaY == 0 {
			return nil
		}
		dir := viewport.ZoomIn
		if ev.DeltaY > 0 {
			dir = viewport.ZoomOut
		}
		d.transform.ScaleAt(dir, viewport.Point{X: ev.X, Y: ev.Y})

	case Key:
		d.handleKey(ev)

	case CommitColor:
		return d.commit(ev.Index)

	case CancelPicker:
		d.transform.Unfocus()

	case Resize:
		d.transform.SetViewportSize(ev.W, ev.H)

	default:
		d.log.WithField("event", fmt.Sprintf("%T", ev)).Debug("Ignoring unknown input event")
	}
	return nil
}

func (d *Dispatcher) handleKey(ev Key) {
	if ev.Ctrl {
		switch ev.Code {
		case KeyUp:
			d.transform.ScaleAtCenter(viewport.ZoomIn)
		case KeyDown:
			d.transform.ScaleAtCenter(viewport.ZoomOut)
		}
		return
	}

	// one cell at the current zoom; the view moves, not the cursor
	step := d.transform.CellSize() * d.transform.Position().Scale
	switch ev.Code {
	case KeyLeft:
		d.transform.Translate(step, 0)
	case KeyRight:
		d.transform.Translate(-step, 0)
	case KeyUp:
		d.transform.Translate(0, step)
	case KeyDown:
		d.transform.Translate(0, -step)
	case KeyEnter:
		d.transform.FocusCenter()
	case KeyEscape:
		d.transform.Unfocus()
	}
}

func (d *Dispatcher) commit(color int) error {
	focus := d.transform.Focus()
	if !focus.Focused {
		return ErrNotFocused
	}
	if err := d.painter.SetLocal(focus.Row, focus.Col, color); err != nil {
		d.log.WithError(err).WithFields(logrus.Fields{
			"row":   focus.Row,
			"col":   focus.Col,
			"color": color,
		}).Warn("Color commit failed")
		return fmt.Errorf("commit color: %w", err)
	}
	d.transform.Unfocus()
	return nil
}
