package observability

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactJSON(t *testing.T) {
	raw := json.RawMessage(`{"api_key":"sk-abc123","user_query":"what happened","nested":{"password":"hunter2"}}`)
	out := RedactJSON(raw)

	var v map[string]any
	require.NoError(t, json.Unmarshal(out, &v))
	assert.Equal(t, "[REDACTED]", v["api_key"])
	assert.Equal(t, "what happened", v["user_query"])
	nested := v["nested"].(map[string]any)
	assert.Equal(t, "[REDACTED]", nested["password"])
}

func TestRedactString(t *testing.T) {
	out := RedactString("token=abc123 incident_id=INC001")
	assert.Contains(t, out, "token=[REDACTED]")
	assert.Contains(t, out, "incident_id=INC001")
}
