package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/sushiag/go-pixel-canvas/internal/gridcodec"
	"github.com/sushiag/go-pixel-canvas/internal/gridsync"
	"github.com/sushiag/go-pixel-canvas/internal/palette"
	"github.com/sushiag/go-pixel-canvas/internal/session"
)

// textRenderer prints a window of cells around the crosshair. Empty cells are
// dots, painted cells show their palette index.
type textRenderer struct {
	out     io.Writer
	palette palette.Palette
	radius  int
}

func (r *textRenderer) Render(fr session.Frame) {
	if fr.Status != gridsync.StatusReady || fr.Buffer == nil {
		r.renderStatus(fr)
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "cell (%d, %d)  scale %.1f", fr.Crosshair.Row, fr.Crosshair.Col, fr.Position.Scale)
	if fr.Focus.Focused {
		fmt.Fprintf(&b, "  focused (%d, %d)", fr.Focus.Row, fr.Focus.Col)
	}
	if fr.Unsent > 0 {
		fmt.Fprintf(&b, "  unsent %d", fr.Unsent)
	}
	b.WriteByte('\n')

	for row := fr.Crosshair.Row - r.radius; row <= fr.Crosshair.Row+r.radius; row++ {
		for col := fr.Crosshair.Col - r.radius; col <= fr.Crosshair.Col+r.radius; col++ {
			b.WriteByte(r.glyph(fr, row, col))
			if row == fr.Crosshair.Row && col == fr.Crosshair.Col-1 {
				b.WriteByte('[')
			} else if row == fr.Crosshair.Row && col == fr.Crosshair.Col {
				b.WriteByte(']')
			} else {
				b.WriteByte(' ')
			}
		}
		b.WriteByte('\n')
	}
	io.WriteString(r.out, b.String())
}

func (r *textRenderer) renderStatus(fr session.Frame) {
	if fr.Err != nil {
		fmt.Fprintf(r.out, "board %s: %v\n", fr.Status, fr.Err)
		return
	}
	fmt.Fprintf(r.out, "board %s\n", fr.Status)
}

func (r *textRenderer) glyph(fr session.Frame, row, col int) byte {
	if row < 0 || col < 0 || row >= fr.Size || col >= fr.Size {
		return ' '
	}
	off := gridcodec.Offset(row, col, fr.Size)
	idx, ok := r.palette.Index(fr.Buffer[off : off+gridcodec.BytesPerCell])
	switch {
	case !ok:
		return '?'
	case idx == palette.Empty:
		return '.'
	default:
		return byte('0' + idx)
	}
}
