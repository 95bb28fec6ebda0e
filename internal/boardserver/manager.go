// Package boardserver is a small board backend: it serves the packed snapshot
// over HTTP and relays cell writes between websocket clients. All board and
// connection state lives on the manager goroutine.
package boardserver

import (
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/sushiag/go-pixel-canvas/internal/gridcodec"
	"github.com/sushiag/go-pixel-canvas/internal/messages"
	"github.com/sushiag/go-pixel-canvas/internal/palette"
)

var ErrStopped = errors.New("boardserver: manager stopped")

type commandKind int

const (
	cmdRegister commandKind = iota
	cmdSnapshot
	cmdPaint
	cmdCount
)

type managerCommand struct {
	kind     commandKind
	conn     *connection
	cell     messages.CellUpdatedPayload
	response chan any
}

type Manager struct {
	size    int
	palette palette.Palette

	commandChan  chan managerCommand
	inbound      chan inboundFrame
	disconnected chan uuid.UUID
	done         chan struct{}
	stopped      chan struct{}
	stopOnce     sync.Once

	upgrader websocket.Upgrader
	log      *logrus.Entry
}

// NewManager starts the manager loop for an n×n board.
func NewManager(n int, log *logrus.Entry) (*Manager, error) {
	if _, err := gridcodec.PackedLen(n); err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	m := &Manager{
		size:         n,
		palette:      palette.Default(),
		commandChan:  make(chan managerCommand),
		inbound:      make(chan inboundFrame),
		disconnected: make(chan uuid.UUID),
		done:         make(chan struct{}),
		stopped:      make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: log,
	}
	go m.managerLoop()
	return m, nil
}

func (m *Manager) Size() int { return m.size }

// Stop ends the manager loop and closes every connection.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.done)
		<-m.stopped
	})
}

// Snapshot returns the packed board.
func (m *Manager) Snapshot() ([]byte, error) {
	resp, err := m.do(managerCommand{kind: cmdSnapshot})
	if err != nil {
		return nil, err
	}
	return resp.([]byte), nil
}

// Paint writes a cell as the server itself and announces it to every client.
func (m *Manager) Paint(row, col, color int) error {
	resp, err := m.do(managerCommand{
		kind: cmdPaint,
		cell: messages.NewCellUpdated(row, col, color),
	})
	if err != nil {
		return err
	}
	if resp != nil {
		return resp.(error)
	}
	return nil
}

// Connections returns the number of open websocket clients.
func (m *Manager) Connections() int {
	resp, err := m.do(managerCommand{kind: cmdCount})
	if err != nil {
		return 0
	}
	return resp.(int)
}

func (m *Manager) do(cmd managerCommand) (any, error) {
	cmd.response = make(chan any, 1)
	select {
	case m.commandChan <- cmd:
	case <-m.done:
		return nil, ErrStopped
	}
	select {
	case resp := <-cmd.response:
		return resp, nil
	case <-m.done:
		return nil, ErrStopped
	}
}

func (m *Manager) managerLoop() {
	board := make([]uint8, m.size*m.size)
	connections := make(map[uuid.UUID]*connection)

	drop := func(id uuid.UUID) {
		if c, ok := connections[id]; ok {
			delete(connections, id)
			close(c.Outgoing)
		}
	}
	broadcast := func(from uuid.UUID, cell messages.CellUpdatedPayload) {
		msg := messages.MessageAnyPayload{MsgType: messages.CellUpdated, Payload: cell}
		for id, c := range connections {
			if id == from {
				continue
			}
			select {
			case c.Outgoing <- msg:
			default:
				c.log.Warn("Outgoing buffer full, dropping connection")
				drop(id)
			}
		}
	}

	defer func() {
		for id := range connections {
			drop(id)
		}
		close(m.stopped)
		m.log.Info("Manager loop stopped")
	}()

	m.log.WithField("size", m.size).Info("Manager loop started")

	for {
		select {
		case <-m.done:
			return

		case cmd := <-m.commandChan:
			switch cmd.kind {
			case cmdRegister:
				connections[cmd.conn.ID] = cmd.conn
				cmd.conn.log.WithField("connections", len(connections)).Info("Client connected")
				cmd.response <- nil

			case cmdSnapshot:
				// board only ever holds values checked against the palette
				packed, _ := gridcodec.Encode(board, m.size)
				cmd.response <- packed

			case cmdPaint:
				if err := m.validate(cmd.cell.Row, cmd.cell.Col, cmd.cell.Color); err != nil {
					cmd.response <- err
					break
				}
				board[cmd.cell.Row*m.size+cmd.cell.Col] = uint8(cmd.cell.Color)
				broadcast(uuid.Nil, cmd.cell)
				cmd.response <- nil

			case cmdCount:
				cmd.response <- len(connections)
			}

		case frame := <-m.inbound:
			if _, ok := connections[frame.from]; !ok {
				continue
			}
			cell, err := m.parseSetCell(frame.data)
			if err != nil {
				connections[frame.from].log.WithError(err).Warn("Rejected frame")
				continue
			}
			board[cell.Row*m.size+cell.Col] = uint8(cell.Color)
			broadcast(frame.from, cell)

		case id := <-m.disconnected:
			drop(id)
			m.log.WithFields(logrus.Fields{
				"conn_id":     id.String(),
				"connections": len(connections),
			}).Info("Client disconnected")
		}
	}
}

func (m *Manager) parseSetCell(data []byte) (messages.CellUpdatedPayload, error) {
	env, err := messages.DecodeEnvelope(data)
	if err != nil {
		return messages.CellUpdatedPayload{}, err
	}
	if !env.MsgType.Known() {
		return messages.CellUpdatedPayload{}, fmt.Errorf("unknown message type %s", env.MsgType)
	}
	if env.MsgType != messages.SetCell {
		return messages.CellUpdatedPayload{}, fmt.Errorf("unexpected message type %s", env.MsgType)
	}
	p, err := messages.ParseSetCell(env.Payload)
	if err != nil {
		return messages.CellUpdatedPayload{}, err
	}
	if err := m.validate(p.Row, p.Col, p.Color); err != nil {
		return messages.CellUpdatedPayload{}, err
	}
	if want := gridcodec.Offset(p.Row, p.Col, m.size); p.Offset != want {
		return messages.CellUpdatedPayload{}, fmt.Errorf("offset %d does not match cell (%d, %d), want %d", p.Offset, p.Row, p.Col, want)
	}
	return messages.NewCellUpdated(p.Row, p.Col, p.Color), nil
}

func (m *Manager) validate(row, col, color int) error {
	if row < 0 || row >= m.size || col < 0 || col >= m.size {
		return fmt.Errorf("cell (%d, %d) outside %dx%d board", row, col, m.size, m.size)
	}
	if color < 1 || !m.palette.Valid(color) {
		return fmt.Errorf("color %d is not a paintable palette index", color)
	}
	return nil
}
