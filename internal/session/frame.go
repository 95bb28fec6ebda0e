package session

import (
	"time"

	"github.com/sushiag/go-pixel-canvas/internal/gridsync"
	"github.com/sushiag/go-pixel-canvas/internal/viewport"
)

// Frame is everything a renderer needs for one paint.
type Frame struct {
	// Buffer is the live color buffer. It is only valid for the duration of
	// the Render call, and is nil unless Status is ready.
	Buffer     []byte
	Size       int
	Position   viewport.Position
	Viewport   viewport.Size
	Crosshair  viewport.Crosshair
	Focus      viewport.FocusState
	Transition time.Duration
	Status     gridsync.Status
	Err        error
	Unsent     int
}

// Renderer is called on the session goroutine on each tick where something
// changed, including status changes before the board loads. It must not
// block and must not keep Buffer.
type Renderer interface {
	Render(Frame)
}

type RendererFunc func(Frame)

func (f RendererFunc) Render(fr Frame) { f(fr) }

// PickerState is what the color picker needs to offer a choice.
type PickerState struct {
	Open    bool
	Row     int
	Col     int
	Choices []int
}
