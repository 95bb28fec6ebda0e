package boardserver

import (
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/sushiag/go-pixel-canvas/internal/messages"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	outgoingBuffer = 64
)

// connection is one websocket peer. The manager owns Outgoing and closes it
// to stop the write loop.
type connection struct {
	ID       uuid.UUID
	Conn     *websocket.Conn
	Outgoing chan messages.MessageAnyPayload
	log      *logrus.Entry
}

type inboundFrame struct {
	from uuid.UUID
	data []byte
}

func newConnection(conn *websocket.Conn, log *logrus.Entry) *connection {
	id := uuid.New()
	return &connection{
		ID:       id,
		Conn:     conn,
		Outgoing: make(chan messages.MessageAnyPayload, outgoingBuffer),
		log:      log.WithField("conn_id", id.String()),
	}
}

func (c *connection) start(inbound chan<- inboundFrame, disconnected chan<- uuid.UUID, done <-chan struct{}) {
	go c.readLoop(inbound, disconnected, done)
	go c.writeLoop()
}

func (c *connection) readLoop(inbound chan<- inboundFrame, disconnected chan<- uuid.UUID, done <-chan struct{}) {
	defer func() {
		select {
		case disconnected <- c.ID:
		case <-done:
		}
		c.Conn.Close()
		c.log.Info("Connection closed (read)")
	}()

	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.WithError(err).Warn("Read error")
			}
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			c.log.Debug("Ignoring binary message")
		case websocket.TextMessage:
			select {
			case inbound <- inboundFrame{from: c.ID, data: data}:
			case <-done:
				return
			}
		}
	}
}

func (c *connection) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.Outgoing:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.Conn.WriteJSON(msg); err != nil {
				c.log.WithError(err).Warn("Write error")
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
