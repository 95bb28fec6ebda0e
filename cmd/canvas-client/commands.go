package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sushiag/go-pixel-canvas/internal/input"
)

type action int

const (
	actionEvents action = iota
	actionResync
	actionPicker
	actionQuit
	actionHelp
)

const helpText = `commands:
  h|left  l|right  k|up  j|down     move one cell
  + | zoom in      - | zoom out     zoom at the center
  enter | focus                     focus the center cell
  esc | unfocus                     leave focus
  paint <1-8>                       paint the focused cell
  cancel                            close the picker
  click <x> <y>                     press and release at a pixel
  drag <dx> <dy>                    drag the board
  wheel <x> <y> <dy>                scroll at a pixel
  resize <w> <h>                    change the viewport
  picker                            show the picker state
  resync                            refetch the board
  quit`

// parseCommand turns one line of input into dispatcher events.
func parseCommand(line string) (action, []input.Event, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return actionEvents, nil, nil
	}

	cmd, args := strings.ToLower(fields[0]), fields[1:]
	switch cmd {
	case "h", "left":
		return actionEvents, []input.Event{input.Key{Code: input.KeyLeft}}, nil
	case "l", "right":
		return actionEvents, []input.Event{input.Key{Code: input.KeyRight}}, nil
	case "k", "up":
		return actionEvents, []input.Event{input.Key{Code: input.KeyUp}}, nil
	case "j", "down":
		return actionEvents, []input.Event{input.Key{Code: input.KeyDown}}, nil
	case "+":
		return actionEvents, []input.Event{input.Key{Code: input.KeyUp, Ctrl: true}}, nil
	case "-":
		return actionEvents, []input.Event{input.Key{Code: input.KeyDown, Ctrl: true}}, nil
	case "zoom":
		if len(args) != 1 {
			return 0, nil, fmt.Errorf("usage: zoom in|out")
		}
		switch args[0] {
		case "in":
			return actionEvents, []input.Event{input.Key{Code: input.KeyUp, Ctrl: true}}, nil
		case "out":
			return actionEvents, []input.Event{input.Key{Code: input.KeyDown, Ctrl: true}}, nil
		}
		return 0, nil, fmt.Errorf("usage: zoom in|out")
	case "enter", "focus":
		return actionEvents, []input.Event{input.Key{Code: input.KeyEnter}}, nil
	case "esc", "unfocus":
		return actionEvents, []input.Event{input.Key{Code: input.KeyEscape}}, nil
	case "cancel":
		return actionEvents, []input.Event{input.CancelPicker{}}, nil
	case "paint":
		n, err := floats(args, 1)
		if err != nil {
			return 0, nil, fmt.Errorf("usage: paint <color>: %w", err)
		}
		return actionEvents, []input.Event{input.CommitColor{Index: int(n[0])}}, nil
	case "click":
		p, err := floats(args, 2)
		if err != nil {
			return 0, nil, fmt.Errorf("usage: click <x> <y>: %w", err)
		}
		return actionEvents, []input.Event{
			input.PointerDown{X: p[0], Y: p[1]},
			input.PointerUp{X: p[0], Y: p[1]},
		}, nil
	case "drag":
		d, err := floats(args, 2)
		if err != nil {
			return 0, nil, fmt.Errorf("usage: drag <dx> <dy>: %w", err)
		}
		return actionEvents, []input.Event{
			input.PointerDown{},
			input.PointerMove{DX: d[0], DY: d[1]},
			input.PointerUp{X: d[0], Y: d[1]},
		}, nil
	case "wheel":
		w, err := floats(args, 3)
		if err != nil {
			return 0, nil, fmt.Errorf("usage: wheel <x> <y> <dy>: %w", err)
		}
		return actionEvents, []input.Event{input.Wheel{X: w[0], Y: w[1], DeltaY: w[2]}}, nil
	case "resize":
		s, err := floats(args, 2)
		if err != nil {
			return 0, nil, fmt.Errorf("usage: resize <w> <h>: %w", err)
		}
		return actionEvents, []input.Event{input.Resize{W: s[0], H: s[1]}}, nil
	case "picker":
		return actionPicker, nil, nil
	case "resync":
		return actionResync, nil, nil
	case "help", "?":
		return actionHelp, nil, nil
	case "quit", "exit", "q":
		return actionQuit, nil, nil
	}
	return 0, nil, fmt.Errorf("unknown command %q (try help)", cmd)
}

func floats(args []string, n int) ([]float64, error) {
	if len(args) != n {
		return nil, fmt.Errorf("want %d argument(s), got %d", n, len(args))
	}
	out := make([]float64, n)
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
