package messages

import (
	"encoding/json"
)

type MessageType string

// ClientIDHeader carries a client's session ID on the snapshot request and
// the push channel handshake.
const ClientIDHeader = "X-Canvas-Client"

// Envelope is how every push-channel frame travels on the wire.
type Envelope struct {
	MsgType MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// MessageAnyPayload is the outbound form of Envelope.
type MessageAnyPayload struct {
	MsgType MessageType `json:"type"`
	Payload any         `json:"payload,omitempty"`
}

const (
	CellUpdated MessageType = "cell-updated" // server -> client
	SetCell     MessageType = "set-cell"     // client -> server
)

// CellUpdatedPayload announces another client's write. Color is a 1-based
// palette index.
type CellUpdatedPayload struct {
	Row   int `json:"row"`
	Col   int `json:"col"`
	Color int `json:"color"`
}

// SetCellPayload is a local write being published. Offset is the byte offset
// of the cell in the color buffer and must equal 4*(Row*N+Col).
type SetCellPayload struct {
	Row    int `json:"row"`
	Col    int `json:"col"`
	Offset int `json:"offset"`
	Color  int `json:"color"`
}

// NewSetCell builds a set-cell payload for an n×n grid.
func NewSetCell(row, col, color, n int) SetCellPayload {
	return SetCellPayload{
		Row:    row,
		Col:    col,
		Offset: 4 * (row*n + col),
		Color:  color,
	}
}

// NewCellUpdated builds the server announcement for a cell write.
func NewCellUpdated(row, col, color int) CellUpdatedPayload {
	return CellUpdatedPayload{Row: row, Col: col, Color: color}
}
