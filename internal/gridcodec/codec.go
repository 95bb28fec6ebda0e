// Package gridcodec converts between the packed board snapshot served by the
// backend and the per-cell RGBA buffer consumed by renderers.
//
// A packed snapshot stores two palette indices per byte, high nibble first,
// in row-major order. Each nibble is reduced modulo 8 before lookup, so the
// snapshot can only ever carry indices 0..7 even though live cell updates
// may use index 8.
package gridcodec

import (
	"fmt"

	"github.com/sushiag/go-pixel-canvas/internal/palette"
)

// BytesPerCell is the width of one RGBA quadruple in a color buffer.
const BytesPerCell = 4

const nibbleModulus = 8

// FormatError reports a packed snapshot whose shape does not match the grid.
type FormatError struct {
	Size int
	Want int
	Got  int
}

func (e *FormatError) Error() string {
	if e.Want < 0 {
		return fmt.Sprintf("gridcodec: grid size %d cannot be packed (need an even cell count)", e.Size)
	}
	return fmt.Sprintf("gridcodec: packed snapshot for %dx%d grid must be %d bytes, got %d", e.Size, e.Size, e.Want, e.Got)
}

// PackedLen returns the snapshot length for an n×n grid, or an error when the
// grid cannot be represented.
func PackedLen(n int) (int, error) {
	cells := n * n
	if n <= 0 || cells%2 != 0 {
		return 0, &FormatError{Size: n, Want: -1}
	}
	return cells / 2, nil
}

// BufferLen returns the color buffer length for an n×n grid.
func BufferLen(n int) int {
	return BytesPerCell * n * n
}

// Offset returns the byte offset of cell (row, col) in a color buffer.
func Offset(row, col, n int) int {
	return BytesPerCell * (row*n + col)
}

// Decode unpacks a snapshot into a freshly allocated color buffer.
func Decode(packed []byte, n int, p palette.Palette) ([]byte, error) {
	want, err := PackedLen(n)
	if err != nil {
		return nil, err
	}
	if len(packed) != want {
		return nil, &FormatError{Size: n, Want: want, Got: len(packed)}
	}

	out := make([]byte, BufferLen(n))
	for i, b := range packed {
		hi := int(b>>4) % nibbleModulus
		lo := int(b&0x0f) % nibbleModulus

		offset := i * 2 * BytesPerCell
		p.Fill(out[offset:], hi)
		p.Fill(out[offset+BytesPerCell:], lo)
	}
	return out, nil
}

// Encode packs one palette index per cell into snapshot form. Indices are
// truncated to four bits; Decode later folds them modulo 8.
func Encode(indices []uint8, n int) ([]byte, error) {
	want, err := PackedLen(n)
	if err != nil {
		return nil, err
	}
	if len(indices) != n*n {
		return nil, fmt.Errorf("gridcodec: expected %d cell indices, got %d", n*n, len(indices))
	}

	out := make([]byte, want)
	for i := range out {
		out[i] = (indices[2*i]&0x0f)<<4 | indices[2*i+1]&0x0f
	}
	return out, nil
}
