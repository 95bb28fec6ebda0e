package gridcodec

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sushiag/go-pixel-canvas/internal/palette"
)

func TestDecodeAllZero(t *testing.T) {
	p := palette.Default()
	const n = 10

	buf, err := Decode(make([]byte, n*n/2), n, p)
	require.NoError(t, err)
	require.Len(t, buf, 4*n*n)

	empty := p.RGBA(palette.Empty)
	assert.Equal(t, bytes.Repeat(empty[:], n*n), buf)
}

func TestDecodeNibbleOrder(t *testing.T) {
	p := palette.Default()
	const n = 4

	packed := make([]byte, n*n/2)
	packed[0] = 0x12

	buf, err := Decode(packed, n, p)
	require.NoError(t, err)

	red := p.RGBA(1)
	orange := p.RGBA(2)
	assert.Equal(t, red[:], buf[0:4], "high nibble is the first cell")
	assert.Equal(t, orange[:], buf[4:8], "low nibble is the second cell")

	empty := p.RGBA(palette.Empty)
	assert.Equal(t, bytes.Repeat(empty[:], n*n-2), buf[8:])
}

func TestDecodeFoldsNibblesModuloEight(t *testing.T) {
	p := palette.Default()

	// 0x8F: nibbles 8 and 15 fold to 0 and 7.
	buf, err := Decode([]byte{0x8F, 0x00}, 2, p)
	require.NoError(t, err)

	first, ok := p.Index(buf[0:4])
	require.True(t, ok)
	assert.Equal(t, 0, first)

	second, ok := p.Index(buf[4:8])
	require.True(t, ok)
	assert.Equal(t, 7, second)
}

func TestDecodeRejectsWrongLength(t *testing.T) {
	p := palette.Default()

	_, err := Decode(make([]byte, 7), 4, p)
	var formatErr *FormatError
	require.True(t, errors.As(err, &formatErr))
	assert.Equal(t, 8, formatErr.Want)
	assert.Equal(t, 7, formatErr.Got)

	_, err = Decode(nil, 3, p)
	require.True(t, errors.As(err, &formatErr), "odd cell count cannot be packed")

	_, err = Decode(nil, 0, p)
	require.Error(t, err)
}

func TestEncodeThenDecode(t *testing.T) {
	p := palette.Default()
	const n = 4

	indices := make([]uint8, n*n)
	for i := range indices {
		indices[i] = uint8(i % 8)
	}
	indices[5] = 8 // only reachable through live updates

	packed, err := Encode(indices, n)
	require.NoError(t, err)
	require.Len(t, packed, n*n/2)

	buf, err := Decode(packed, n, p)
	require.NoError(t, err)

	for i, want := range indices {
		got, ok := p.Index(buf[i*4 : i*4+4])
		require.True(t, ok)
		assert.Equal(t, int(want)%8, got, "cell %d", i)
	}
}

func TestOffset(t *testing.T) {
	assert.Equal(t, 44, Offset(2, 3, 4))
	assert.Equal(t, 0, Offset(0, 0, 100))
	assert.Equal(t, 4*(99*100+99), Offset(99, 99, 100))
}
