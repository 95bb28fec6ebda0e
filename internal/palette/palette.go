package palette

import "image/color"

// Empty is the palette index reserved for an unpainted cell.
const Empty = 0

// Size is the number of entries in every palette, including Empty.
const Size = 9

// Palette is the fixed, ordered list of cell colors shared by every client and
// the server. Index 0 is fully transparent.
type Palette [Size]color.RGBA

var defaultPalette = Palette{
	{R: 0, G: 0, B: 0, A: 0},
	{R: 220, G: 38, B: 38, A: 255},   // red
	{R: 234, G: 179, B: 8, A: 255},   // orange
	{R: 249, G: 115, B: 22, A: 255},  // yellow
	{R: 34, G: 197, B: 94, A: 255},   // green
	{R: 20, G: 184, B: 166, A: 255},  // teal
	{R: 14, G: 165, B: 233, A: 255},  // sky
	{R: 147, G: 51, B: 234, A: 255},  // purple
	{R: 248, G: 250, B: 252, A: 255}, // slate
}

// Default returns the canvas palette.
func Default() Palette {
	return defaultPalette
}

func (p Palette) Len() int { return len(p) }

// Valid reports whether idx addresses an entry of p.
func (p Palette) Valid(idx int) bool {
	return idx >= 0 && idx < len(p)
}

// RGBA returns the quadruple for idx. Callers must check Valid first.
func (p Palette) RGBA(idx int) [4]byte {
	c := p[idx]
	return [4]byte{c.R, c.G, c.B, c.A}
}

// Fill writes the quadruple for idx into dst[0:4].
func (p Palette) Fill(dst []byte, idx int) {
	c := p[idx]
	dst[0] = c.R
	dst[1] = c.G
	dst[2] = c.B
	dst[3] = c.A
}

// Index returns the palette index whose quadruple equals quad.
func (p Palette) Index(quad []byte) (int, bool) {
	if len(quad) < 4 {
		return 0, false
	}
	for i, c := range p {
		if c.R == quad[0] && c.G == quad[1] && c.B == quad[2] && c.A == quad[3] {
			return i, true
		}
	}
	return 0, false
}

// Choices lists the indices offered by the color picker: every opaque entry.
func (p Palette) Choices() []int {
	out := make([]int, 0, len(p)-1)
	for i := 1; i < len(p); i++ {
		out = append(out, i)
	}
	return out
}
