package gridsync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sushiag/go-pixel-canvas/internal/gridcodec"
	"github.com/sushiag/go-pixel-canvas/internal/messages"
	"github.com/sushiag/go-pixel-canvas/internal/palette"
)

const testGridSize = 4

// stubBoard serves a fixed snapshot and records frames sent over /ws.
type stubBoard struct {
	t        *testing.T
	srv      *httptest.Server
	snapshot []byte
	failures atomic.Int32 // requests to fail before serving
	requests atomic.Int32
	header   atomic.Value

	mu       sync.Mutex
	received [][]byte
	conns    []*websocket.Conn
	got      chan struct{}
}

func newStubBoard(t *testing.T, indices []uint8) *stubBoard {
	t.Helper()
	packed, err := gridcodec.Encode(indices, testGridSize)
	require.NoError(t, err)

	b := &stubBoard{t: t, snapshot: packed, got: make(chan struct{}, 16)}
	upgrader := websocket.Upgrader{}

	mux := http.NewServeMux()
	mux.HandleFunc("/getboard", func(w http.ResponseWriter, r *http.Request) {
		b.requests.Add(1)
		b.header.Store(r.Header.Get(messages.ClientIDHeader))
		if b.failures.Load() > 0 {
			b.failures.Add(-1)
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write(b.snapshot)
	})
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		b.mu.Lock()
		b.conns = append(b.conns, conn)
		b.mu.Unlock()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			b.mu.Lock()
			b.received = append(b.received, data)
			b.mu.Unlock()
			b.got <- struct{}{}
		}
	})
	b.srv = httptest.NewServer(mux)
	t.Cleanup(b.srv.Close)
	return b
}

func (b *stubBoard) config() Config {
	return Config{
		SnapshotURL:     b.srv.URL + "/getboard",
		ChannelURL:      "ws" + strings.TrimPrefix(b.srv.URL, "http") + "/ws",
		GridSize:        testGridSize,
		SnapshotTimeout: time.Second,
		RetryDelay:      time.Millisecond,
	}
}

func (b *stubBoard) push(frame string) {
	require.Eventually(b.t, func() bool {
		b.mu.Lock()
		defer b.mu.Unlock()
		return len(b.conns) > 0
	}, 2*time.Second, 5*time.Millisecond)

	b.mu.Lock()
	defer b.mu.Unlock()
	require.NoError(b.t, b.conns[0].WriteMessage(websocket.TextMessage, []byte(frame)))
}

func (b *stubBoard) waitReceived(n int) [][]byte {
	for i := 0; i < n; i++ {
		select {
		case <-b.got:
		case <-time.After(2 * time.Second):
			b.t.Fatalf("timed out waiting for frame %d", i+1)
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([][]byte(nil), b.received...)
}

func newTestClient(t *testing.T, cfg Config) (*Client, *test.Hook) {
	t.Helper()
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	c := New(cfg, logrus.NewEntry(log))
	t.Cleanup(c.Close)
	return c, hook
}

func cellColor(c *Client, row, col int) [4]byte {
	off := gridcodec.Offset(row, col, c.Size())
	var px [4]byte
	copy(px[:], c.Buffer()[off:off+4])
	return px
}

func receiveFrame(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case raw, ok := <-c.Inbound():
		require.True(t, ok, "inbound closed")
		return raw
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for inbound frame")
		return nil
	}
}

func TestLoadSnapshot(t *testing.T) {
	indices := make([]uint8, testGridSize*testGridSize)
	indices[gridcodec.Offset(1, 2, testGridSize)/4] = 5
	board := newStubBoard(t, indices)
	c, _ := newTestClient(t, board.config())

	assert.Equal(t, StatusLoading, c.Status())
	assert.Len(t, c.Buffer(), 4*testGridSize*testGridSize)

	require.NoError(t, c.LoadSnapshot(context.Background()))
	assert.Equal(t, StatusReady, c.Status())
	assert.NoError(t, c.Err())

	pal := palette.Default()
	assert.Equal(t, pal.RGBA(5), cellColor(c, 1, 2))
	assert.Equal(t, pal.RGBA(0), cellColor(c, 0, 0))
	assert.Equal(t, c.ID().String(), board.header.Load())
}

func TestSnapshotRetriesOnce(t *testing.T) {
	board := newStubBoard(t, make([]uint8, testGridSize*testGridSize))
	board.failures.Store(1)
	c, hook := newTestClient(t, board.config())

	require.NoError(t, c.LoadSnapshot(context.Background()))
	assert.Equal(t, StatusReady, c.Status())
	assert.EqualValues(t, 2, board.requests.Load())
	require.NotNil(t, hook.LastEntry())
}

func TestSnapshotFailsAfterRetry(t *testing.T) {
	board := newStubBoard(t, make([]uint8, testGridSize*testGridSize))
	board.failures.Store(5)
	c, _ := newTestClient(t, board.config())

	err := c.LoadSnapshot(context.Background())
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, 2, terr.Attempts)
	assert.EqualValues(t, 2, board.requests.Load())
	assert.Equal(t, StatusFailed, c.Status())
	assert.Equal(t, err, c.Err())

	assert.ErrorIs(t, c.SetLocal(0, 0, 1), ErrNotReady)
}

func TestSnapshotWrongLengthIsTransportError(t *testing.T) {
	board := newStubBoard(t, make([]uint8, testGridSize*testGridSize))
	board.snapshot = board.snapshot[:3]
	c, _ := newTestClient(t, board.config())

	_, err := c.FetchSnapshot(context.Background())
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	var ferr *gridcodec.FormatError
	assert.ErrorAs(t, err, &ferr)
	assert.EqualValues(t, 2, board.requests.Load())
	assert.Equal(t, StatusLoading, c.Status(), "fetching alone does not change state")
}

func TestSetLocalPublishes(t *testing.T) {
	board := newStubBoard(t, make([]uint8, testGridSize*testGridSize))
	c, _ := newTestClient(t, board.config())
	require.NoError(t, c.Initialize(context.Background()))
	require.True(t, c.Connected())

	require.NoError(t, c.SetLocal(2, 3, 7))
	assert.Equal(t, palette.Default().RGBA(7), cellColor(c, 2, 3))

	frames := board.waitReceived(1)
	env, err := messages.DecodeEnvelope(frames[0])
	require.NoError(t, err)
	assert.Equal(t, messages.SetCell, env.MsgType)
	p, err := messages.ParseSetCell(env.Payload)
	require.NoError(t, err)
	assert.Equal(t, messages.SetCellPayload{Row: 2, Col: 3, Offset: 44, Color: 7}, p)
	assert.Zero(t, c.Unsent())
}

func TestSetLocalRejectsInvalid(t *testing.T) {
	board := newStubBoard(t, make([]uint8, testGridSize*testGridSize))
	c, _ := newTestClient(t, board.config())
	require.NoError(t, c.LoadSnapshot(context.Background()))
	before := append([]byte(nil), c.Buffer()...)

	for _, tc := range []struct{ row, col, color int }{
		{-1, 0, 1},
		{0, testGridSize, 1},
		{0, 0, 9},
		{0, 0, 0},
		{0, 0, -1},
	} {
		assert.ErrorIs(t, c.SetLocal(tc.row, tc.col, tc.color), ErrInvalidCell)
	}
	assert.Equal(t, before, c.Buffer())
}

func TestSetLocalWithoutChannelKeepsWrite(t *testing.T) {
	board := newStubBoard(t, make([]uint8, testGridSize*testGridSize))
	c, hook := newTestClient(t, board.config())
	require.NoError(t, c.LoadSnapshot(context.Background()))

	require.NoError(t, c.SetLocal(0, 1, 8))
	assert.Equal(t, palette.Default().RGBA(8), cellColor(c, 0, 1))
	assert.Equal(t, 1, c.Unsent())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestRemoteUpdateApplied(t *testing.T) {
	board := newStubBoard(t, make([]uint8, testGridSize*testGridSize))
	c, _ := newTestClient(t, board.config())
	require.NoError(t, c.Initialize(context.Background()))

	board.push(`{"type":"cell-updated","payload":{"row":3,"col":0,"color":2}}`)
	require.NoError(t, c.HandleFrame(receiveFrame(t, c)))
	assert.Equal(t, palette.Default().RGBA(2), cellColor(c, 3, 0))
}

func TestMalformedFramesDropped(t *testing.T) {
	board := newStubBoard(t, make([]uint8, testGridSize*testGridSize))
	c, _ := newTestClient(t, board.config())
	require.NoError(t, c.LoadSnapshot(context.Background()))
	before := append([]byte(nil), c.Buffer()...)

	frames := []string{
		`not json`,
		`{"type":"set-cell","payload":{"row":0,"col":0,"offset":0,"color":1}}`,
		`{"type":"cell-updated","payload":{"row":0,"col":0}}`,
		`{"type":"cell-updated","payload":{"row":"0","col":0,"color":1}}`,
		`{"type":"cell-updated","payload":{"row":0.5,"col":0,"color":1}}`,
		`{"type":"cell-updated","payload":{"row":4,"col":0,"color":1}}`,
		`{"type":"cell-updated","payload":{"row":0,"col":-1,"color":1}}`,
		`{"type":"cell-updated","payload":{"row":0,"col":0,"color":0}}`,
		`{"type":"cell-updated","payload":{"row":0,"col":0,"color":9}}`,
	}
	for _, f := range frames {
		err := c.HandleFrame([]byte(f))
		var perr *ProtocolError
		assert.ErrorAs(t, err, &perr, f)
	}
	assert.Equal(t, before, c.Buffer())
}

func TestRemoteUpdatesQueuedWhileLoading(t *testing.T) {
	board := newStubBoard(t, make([]uint8, testGridSize*testGridSize))
	c, _ := newTestClient(t, board.config())

	require.NoError(t, c.ApplyRemote(1, 1, 4))
	require.NoError(t, c.ApplyRemote(1, 1, 6))
	assert.Equal(t, [4]byte{}, cellColor(c, 1, 1))

	buf, err := c.FetchSnapshot(context.Background())
	require.NoError(t, err)
	c.Install(buf)
	assert.Equal(t, palette.Default().RGBA(6), cellColor(c, 1, 1), "latest queued update wins")
}

func TestResyncKeepsBoardOnFailure(t *testing.T) {
	board := newStubBoard(t, make([]uint8, testGridSize*testGridSize))
	c, _ := newTestClient(t, board.config())
	require.NoError(t, c.LoadSnapshot(context.Background()))
	require.NoError(t, c.ApplyRemote(0, 0, 3))

	board.failures.Store(2)
	require.Error(t, c.Resync(context.Background()))
	assert.Equal(t, StatusReady, c.Status())
	assert.Equal(t, palette.Default().RGBA(3), cellColor(c, 0, 0))

	require.NoError(t, c.Resync(context.Background()))
	assert.Equal(t, palette.Default().RGBA(0), cellColor(c, 0, 0))
}

func TestInboundClosesWithConnection(t *testing.T) {
	board := newStubBoard(t, make([]uint8, testGridSize*testGridSize))
	c, _ := newTestClient(t, board.config())
	assert.Nil(t, c.Inbound())

	require.NoError(t, c.Connect(context.Background()))
	inbound := c.Inbound()
	require.NotNil(t, inbound)

	c.Close()
	assert.False(t, c.Connected())
	select {
	case _, ok := <-inbound:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("inbound not closed")
	}
}

func TestSetCellWireFormat(t *testing.T) {
	msg := messages.MessageAnyPayload{
		MsgType: messages.SetCell,
		Payload: messages.NewSetCell(0, 1, 8, testGridSize),
	}
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"set-cell","payload":{"row":0,"col":1,"offset":4,"color":8}}`, string(data))
}

func TestSnapshotThenRemoteTouchesOneCell(t *testing.T) {
	indices := make([]uint8, testGridSize*testGridSize)
	indices[0], indices[1] = 1, 2
	board := newStubBoard(t, indices)
	require.Equal(t, byte(0x12), board.snapshot[0])

	c, _ := newTestClient(t, board.config())
	require.NoError(t, c.LoadSnapshot(context.Background()))
	pal := palette.Default()
	assert.Equal(t, pal.RGBA(1), cellColor(c, 0, 0))
	assert.Equal(t, pal.RGBA(2), cellColor(c, 0, 1))

	before := append([]byte(nil), c.Buffer()...)
	require.NoError(t, c.HandleFrame([]byte(`{"type":"cell-updated","payload":{"row":2,"col":3,"color":5}}`)))

	after := c.Buffer()
	want := pal.RGBA(5)
	assert.Equal(t, want[:], after[44:48])
	assert.Equal(t, before[:44], after[:44])
	assert.Equal(t, before[48:], after[48:])
}

func TestRefreshKeepsWritesMadeDuringFetch(t *testing.T) {
	board := newStubBoard(t, make([]uint8, testGridSize*testGridSize))
	c, _ := newTestClient(t, board.config())
	require.NoError(t, c.LoadSnapshot(context.Background()))

	buf, err := c.FetchSnapshot(context.Background())
	require.NoError(t, err)

	require.NoError(t, c.SetLocal(1, 1, 3))
	require.NoError(t, c.ApplyRemote(2, 2, 5))
	c.Install(buf)

	pal := palette.Default()
	assert.Equal(t, [4]byte{0xf9, 0x73, 0x16, 0xff}, cellColor(c, 1, 1))
	assert.Equal(t, [4]byte{0x14, 0xb8, 0xa6, 0xff}, cellColor(c, 2, 2))
	assert.Equal(t, pal.RGBA(3), cellColor(c, 1, 1))

	// the journal ends with the install
	c.Install(make([]byte, gridcodec.BufferLen(testGridSize)))
	assert.Equal(t, pal.RGBA(0), cellColor(c, 1, 1))
}

func TestFailedRefreshDropsJournal(t *testing.T) {
	board := newStubBoard(t, make([]uint8, testGridSize*testGridSize))
	c, _ := newTestClient(t, board.config())
	require.NoError(t, c.LoadSnapshot(context.Background()))

	c.BeginRefresh()
	require.NoError(t, c.SetLocal(0, 2, 6))
	c.Fail(assert.AnError)
	assert.Equal(t, StatusReady, c.Status())
	assert.Equal(t, palette.Default().RGBA(6), cellColor(c, 0, 2))

	// writes after a finished refresh are not carried into the next one
	require.NoError(t, c.SetLocal(0, 3, 7))
	c.Install(make([]byte, gridcodec.BufferLen(testGridSize)))
	assert.Equal(t, palette.Default().RGBA(0), cellColor(c, 0, 3))
}

func TestUnknownMessageType(t *testing.T) {
	c, _ := newTestClient(t, Config{GridSize: testGridSize})
	_, err := c.DecodeRemote([]byte(`{"type":"getCell","payload":{"row":0,"col":0,"color":1}}`))
	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Reason, "unknown message type")
}
