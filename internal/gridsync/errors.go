package gridsync

import (
	"errors"
	"fmt"
)

var (
	ErrNotReady      = errors.New("gridsync: board snapshot not loaded")
	ErrInvalidCell   = errors.New("gridsync: invalid cell write")
	ErrChannelClosed = errors.New("gridsync: push channel closed")
)

// TransportError means the board snapshot could not be fetched, even after
// the retry. No grid is installed when it is returned.
type TransportError struct {
	Attempts int
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("gridsync: snapshot fetch failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError describes an inbound frame that was dropped without touching
// the board.
type ProtocolError struct {
	Reason string
	Raw    []byte
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gridsync: dropped inbound frame: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("gridsync: dropped inbound frame: %s", e.Reason)
}

func (e *ProtocolError) Unwrap() error { return e.Err }
