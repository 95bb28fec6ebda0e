// Package gridsync keeps a client's copy of the shared board in step with the
// server: it installs the initial snapshot, applies cell updates pushed by
// other clients and publishes local writes.
//
// A Client is not safe for concurrent use. FetchSnapshot is the exception and
// may run on a helper goroutine; everything else belongs to one loop.
package gridsync

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/sushiag/go-pixel-canvas/internal/gridcodec"
	"github.com/sushiag/go-pixel-canvas/internal/messages"
	"github.com/sushiag/go-pixel-canvas/internal/palette"
)

type Status int

const (
	StatusLoading Status = iota
	StatusReady
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type Config struct {
	SnapshotURL     string
	ChannelURL      string
	GridSize        int
	SnapshotTimeout time.Duration
	RetryDelay      time.Duration

	// optional; defaults are http.DefaultClient and websocket.DefaultDialer
	HTTPClient *http.Client
	Dialer     *websocket.Dialer
}

// CellUpdate is a validated remote write.
type CellUpdate struct {
	Row   int
	Col   int
	Color int
}

type Client struct {
	cfg        Config
	palette    palette.Palette
	httpClient *http.Client
	dialer     *websocket.Dialer
	id         uuid.UUID
	log        *logrus.Entry

	buf    []byte
	status Status
	err    error

	// journal holds every write made while a snapshot is being fetched, in
	// arrival order, so Install can lay them over the fetched board.
	journal    []CellUpdate
	refreshing atomic.Bool

	channel *channel
	unsent  int
}

func New(cfg Config, log *logrus.Entry) *Client {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	c := &Client{
		cfg:        cfg,
		palette:    palette.Default(),
		httpClient: cfg.HTTPClient,
		dialer:     cfg.Dialer,
		id:         uuid.New(),
		buf:        make([]byte, gridcodec.BufferLen(cfg.GridSize)),
		status:     StatusLoading,
	}
	if c.httpClient == nil {
		c.httpClient = http.DefaultClient
	}
	if c.dialer == nil {
		c.dialer = websocket.DefaultDialer
	}
	c.log = log.WithField("client_id", c.id.String())
	return c
}

func (c *Client) ID() uuid.UUID            { return c.id }
func (c *Client) Size() int                { return c.cfg.GridSize }
func (c *Client) Palette() palette.Palette { return c.palette }
func (c *Client) Status() Status           { return c.status }

// Err is the TransportError that put the client into StatusFailed.
func (c *Client) Err() error { return c.err }

// Buffer is the live color buffer, 4·N² bytes, row-major RGBA. Renderers must
// not modify it and should only paint it when Status is StatusReady.
func (c *Client) Buffer() []byte { return c.buf }

// Unsent counts local writes that could not be published.
func (c *Client) Unsent() int { return c.unsent }

// Connected reports whether the push channel is open.
func (c *Client) Connected() bool {
	return c.channel != nil && !c.channel.isClosed.Load()
}

// Inbound yields raw frames from the push channel. It is nil before Connect,
// so selecting on it blocks, and it is closed when the connection ends.
func (c *Client) Inbound() <-chan []byte {
	if c.channel == nil {
		return nil
	}
	return c.channel.inbound
}

// Initialize opens the push channel and loads the snapshot. A channel failure
// is logged and does not prevent the snapshot from loading.
func (c *Client) Initialize(ctx context.Context) error {
	if err := c.Connect(ctx); err != nil {
		c.log.WithError(err).Error("Push channel unavailable")
	}
	return c.LoadSnapshot(ctx)
}

// Connect dials the push channel.
func (c *Client) Connect(ctx context.Context) error {
	if c.Connected() {
		return nil
	}
	ch, err := dialChannel(ctx, c.dialer, c.cfg.ChannelURL, c.headers(), c.log)
	if err != nil {
		return err
	}
	c.channel = ch
	return nil
}

// LoadSnapshot fetches the board and installs it, or marks the client failed.
func (c *Client) LoadSnapshot(ctx context.Context) error {
	buf, err := c.FetchSnapshot(ctx)
	if err != nil {
		c.Fail(err)
		return err
	}
	c.Install(buf)
	return nil
}

// BeginRefresh starts journaling writes for the next Install. FetchSnapshot
// calls it too; a caller that launches the fetch elsewhere should call it
// first so no write slips in between.
func (c *Client) BeginRefresh() {
	c.refreshing.Store(true)
}

// Install replaces the board with a decoded snapshot and replays the local
// and remote writes made since the fetch began.
func (c *Client) Install(buf []byte) {
	if len(buf) != len(c.buf) {
		c.log.WithFields(logrus.Fields{
			"got":  len(buf),
			"want": len(c.buf),
		}).Error("Refusing snapshot with wrong buffer length")
		return
	}
	c.buf = buf
	c.status = StatusReady
	c.err = nil

	for _, u := range c.journal {
		c.write(u.Row, u.Col, u.Color)
	}
	c.log.WithField("replayed", len(c.journal)).Info("Board snapshot installed")
	c.journal = nil
	c.refreshing.Store(false)
}

// Fail records a snapshot failure. A board that is already installed stays.
func (c *Client) Fail(err error) {
	c.journal = nil
	c.refreshing.Store(false)
	if c.status == StatusReady {
		c.log.WithError(err).Warn("Snapshot refresh failed, keeping current board")
		return
	}
	c.status = StatusFailed
	c.err = err
	c.log.WithError(err).Error("Board unavailable")
}

// Resync refreshes the board from the server.
func (c *Client) Resync(ctx context.Context) error {
	buf, err := c.FetchSnapshot(ctx)
	if err != nil {
		c.Fail(err)
		return err
	}
	c.Install(buf)
	return nil
}

// HandleFrame decodes one inbound frame and applies it.
func (c *Client) HandleFrame(raw []byte) error {
	u, err := c.DecodeRemote(raw)
	if err != nil {
		c.log.WithError(err).WithField("raw", string(raw)).Warn("Dropping malformed frame")
		return err
	}
	return c.ApplyRemote(u.Row, u.Col, u.Color)
}

// DecodeRemote validates the shape of a cell-updated frame.
func (c *Client) DecodeRemote(raw []byte) (CellUpdate, error) {
	env, err := messages.DecodeEnvelope(raw)
	if err != nil {
		return CellUpdate{}, &ProtocolError{Reason: "bad envelope", Raw: raw, Err: err}
	}
	if !env.MsgType.Known() {
		return CellUpdate{}, &ProtocolError{Reason: "unknown message type " + env.MsgType.String(), Raw: raw}
	}
	if env.MsgType != messages.CellUpdated {
		return CellUpdate{}, &ProtocolError{Reason: "unexpected message type " + env.MsgType.String(), Raw: raw}
	}
	p, err := messages.ParseCellUpdated(env.Payload)
	if err != nil {
		return CellUpdate{}, &ProtocolError{Reason: "bad cell-updated payload", Raw: raw, Err: err}
	}
	u := CellUpdate{Row: p.Row, Col: p.Col, Color: p.Color}
	if err := c.validateRemote(u); err != nil {
		err.Raw = raw
		return CellUpdate{}, err
	}
	return u, nil
}

// ApplyRemote writes another client's update into the board. Updates that
// arrive before the first snapshot are held and replayed on Install; during
// a refresh they are applied and journaled.
func (c *Client) ApplyRemote(row, col, color int) error {
	u := CellUpdate{Row: row, Col: col, Color: color}
	if err := c.validateRemote(u); err != nil {
		c.log.WithError(err).Warn("Dropping remote update")
		return err
	}

	switch c.status {
	case StatusLoading:
		c.journal = append(c.journal, u)
	case StatusReady:
		c.write(row, col, color)
		c.record(u)
	default:
		// no board to apply to
	}

	c.log.WithFields(logrus.Fields{
		"row":   row,
		"col":   col,
		"color": color,
	}).Debug("Applied remote update")
	return nil
}

// SetLocal paints a cell immediately and then publishes the write. The write
// is never rolled back: if publishing fails it is logged and counted in
// Unsent, and SetLocal still succeeds.
func (c *Client) SetLocal(row, col, color int) error {
	if c.status != StatusReady {
		return ErrNotReady
	}
	if !c.inBounds(row, col) || !c.validColor(color) {
		return ErrInvalidCell
	}

	c.write(row, col, color)
	c.record(CellUpdate{Row: row, Col: col, Color: color})

	msg := messages.MessageAnyPayload{
		MsgType: messages.SetCell,
		Payload: messages.NewSetCell(row, col, color, c.cfg.GridSize),
	}
	if err := c.publish(msg); err != nil {
		c.unsent++
		c.log.WithError(err).WithFields(logrus.Fields{
			"row":   row,
			"col":   col,
			"color": color,
		}).Warn("Local write not published")
	}
	return nil
}

func (c *Client) publish(msg messages.MessageAnyPayload) error {
	if c.channel == nil {
		return ErrChannelClosed
	}
	return c.channel.Send(msg)
}

func (c *Client) Close() {
	if c.channel != nil {
		c.channel.Close()
	}
}

func (c *Client) record(u CellUpdate) {
	if c.refreshing.Load() {
		c.journal = append(c.journal, u)
	}
}

func (c *Client) write(row, col, color int) {
	c.palette.Fill(c.buf[gridcodec.Offset(row, col, c.cfg.GridSize):], color)
}

func (c *Client) inBounds(row, col int) bool {
	n := c.cfg.GridSize
	return row >= 0 && row < n && col >= 0 && col < n
}

// validColor accepts the 1-based indices that travel on the wire. Index 0
// marks an unpainted cell and is never written through the channel.
func (c *Client) validColor(color int) bool {
	return color >= 1 && c.palette.Valid(color)
}

func (c *Client) validateRemote(u CellUpdate) *ProtocolError {
	if !c.inBounds(u.Row, u.Col) {
		return &ProtocolError{Reason: "cell out of range"}
	}
	if !c.validColor(u.Color) {
		return &ProtocolError{Reason: "unknown color index"}
	}
	return nil
}

func (c *Client) headers() http.Header {
	h := http.Header{}
	h.Set(messages.ClientIDHeader, c.id.String())
	return h
}
