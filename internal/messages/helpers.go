package messages

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

func (ty MessageType) String() string {
	switch ty {
	case CellUpdated, SetCell:
		return string(ty)
	default:
		return fmt.Sprintf("unknown (%q)", string(ty))
	}
}

// Known reports whether ty is part of the protocol.
func (ty MessageType) Known() bool {
	return ty == CellUpdated || ty == SetCell
}

// DecodeEnvelope parses a frame, keeping numbers in the payload exact.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	return env, nil
}

// DecodePayload unmarshals an envelope payload into v with UseNumber set, so
// interface-typed fields also keep their exact representation.
func DecodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return fmt.Errorf("decode payload: empty payload")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}

// ParseCellUpdated extracts a cell-updated payload. Unlike a plain
// json.Unmarshal into CellUpdatedPayload it rejects missing fields, quoted
// numbers and fractions instead of zeroing or truncating them.
func ParseCellUpdated(raw json.RawMessage) (CellUpdatedPayload, error) {
	var fields map[string]any
	if err := DecodePayload(raw, &fields); err != nil {
		return CellUpdatedPayload{}, err
	}

	var out CellUpdatedPayload
	var err error
	if out.Row, err = intField(fields, "row"); err != nil {
		return CellUpdatedPayload{}, err
	}
	if out.Col, err = intField(fields, "col"); err != nil {
		return CellUpdatedPayload{}, err
	}
	if out.Color, err = intField(fields, "color"); err != nil {
		return CellUpdatedPayload{}, err
	}
	return out, nil
}

// ParseSetCell extracts a set-cell payload with the same strictness as
// ParseCellUpdated.
func ParseSetCell(raw json.RawMessage) (SetCellPayload, error) {
	var fields map[string]any
	if err := DecodePayload(raw, &fields); err != nil {
		return SetCellPayload{}, err
	}

	var out SetCellPayload
	var err error
	for _, f := range []struct {
		key string
		dst *int
	}{
		{"row", &out.Row},
		{"col", &out.Col},
		{"offset", &out.Offset},
		{"color", &out.Color},
	} {
		if *f.dst, err = intField(fields, f.key); err != nil {
			return SetCellPayload{}, err
		}
	}
	return out, nil
}

func intField(fields map[string]any, key string) (int, error) {
	v, ok := fields[key]
	if !ok {
		return 0, fmt.Errorf("field %q: missing", key)
	}
	n, ok := v.(json.Number)
	if !ok {
		return 0, fmt.Errorf("field %q: not a number (%T)", key, v)
	}
	i, err := strconv.ParseInt(string(n), 10, 0)
	if err != nil {
		return 0, fmt.Errorf("field %q: not an integer: %s", key, n)
	}
	return int(i), nil
}
