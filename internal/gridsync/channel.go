package gridsync

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait       = 10 * time.Second
	inboundCapacity = 256
)

// channel is the push connection to the board server. Its read loop is the
// only writer of inbound, which is closed when the connection ends.
type channel struct {
	conn     *websocket.Conn
	inbound  chan []byte
	doneCh   chan struct{}
	sendMu   sync.Mutex
	isClosed atomic.Bool
	log      *logrus.Entry
}

func dialChannel(ctx context.Context, dialer *websocket.Dialer, url string, headers http.Header, log *logrus.Entry) (*channel, error) {
	conn, _, err := dialer.DialContext(ctx, url, headers)
	if err != nil {
		return nil, fmt.Errorf("websocket connection failed: %w", err)
	}

	c := &channel{
		conn:    conn,
		inbound: make(chan []byte, inboundCapacity),
		doneCh:  make(chan struct{}),
		log:     log,
	}
	log.WithField("url", url).Info("Connected to push channel")
	go c.readLoop()
	return c, nil
}

func (c *channel) readLoop() {
	defer func() {
		close(c.inbound)
		c.Close()
	}()

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if closeErr, ok := err.(*websocket.CloseError); ok {
				c.log.WithField("code", closeErr.Code).Info("Push channel closed by server")
			} else if !c.isClosed.Load() {
				c.log.WithError(err).Error("Push channel read failed")
			}
			return
		}

		if msgType != websocket.TextMessage {
			c.log.WithField("type", msgType).Debug("Ignoring non-text message")
			continue
		}

		select {
		case c.inbound <- data:
		case <-c.doneCh:
			return
		}
	}
}

// Send writes one JSON frame.
func (c *channel) Send(msg any) error {
	if c.isClosed.Load() {
		return ErrChannelClosed
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

func (c *channel) Close() {
	if c.isClosed.CompareAndSwap(false, true) {
		close(c.doneCh)

		c.sendMu.Lock()
		_ = c.conn.SetWriteDeadline(time.Now().Add(time.Second))
		_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = c.conn.Close()
		c.sendMu.Unlock()

		c.log.Info("Push channel closed")
	}
}
