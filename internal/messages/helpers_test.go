package messages

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

// rawPayload serializes v for use as an envelope payload.
func rawPayload(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}
