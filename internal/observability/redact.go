package observability

import (
	"encoding/json"
	"strings"
)

// sensitiveKeys matches spec's fixed sensitive-name pattern list:
// *api_key*, *token*, *password*, *secret* (generalized to a few common
// synonyms seen across connector/LLM configs).
var sensitiveKeys = []string{
	"api_key", "apikey", "x-api-key", "authorization", "token", "password", "secret", "bearer",
}

// RedactJSON redacts sensitive values in a JSON payload based on key name,
// for use before a record containing request/response bodies is logged.
func RedactJSON(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return raw
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return raw
	}
	b, err := json.Marshal(redactValue(v))
	if err != nil {
		return raw
	}
	return b
}

// RedactString redacts sensitive substrings in a free-text string by
// scanning `key=value`/`key: value` pairs, used for log fields that are
// not structured JSON (e.g. a rendered context summary).
func RedactString(s string) string {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == '\n' })
	for i, f := range fields {
		if parts := strings.SplitN(f, "=", 2); len(parts) == 2 && isSensitiveKey(parts[0]) {
			fields[i] = parts[0] + "=[REDACTED]"
		} else if key, ok := strings.CutSuffix(f, ":"); ok && isSensitiveKey(key) && i+1 < len(fields) {
			fields[i+1] = "[REDACTED]"
		}
	}
	return strings.Join(fields, " ")
}

func redactValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, vv := range val {
			if isSensitiveKey(k) {
				val[k] = "[REDACTED]"
			} else {
				val[k] = redactValue(vv)
			}
		}
		return val
	case []any:
		for i := range val {
			val[i] = redactValue(val[i])
		}
		return val
	default:
		return v
	}
}

func isSensitiveKey(k string) bool {
	return IsSensitiveName(k)
}

// IsSensitiveName reports whether a field/argument name matches the
// sensitive-name pattern list (*api_key*, *token*, *password*, *secret*).
func IsSensitiveName(k string) bool {
	low := strings.ToLower(k)
	for _, s := range sensitiveKeys {
		if strings.Contains(low, s) {
			return true
		}
	}
	return false
}
