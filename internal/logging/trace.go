package logging

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/jmgress/smartrecover/internal/observability"
)

// Trace logs a debug-level function-entry record with its arguments,
// redacting any argument name matching the sensitive-name pattern. This is
// SmartRecover's own lightweight function tracing, layered on top of (and
// independent from) the OpenTelemetry spans in internal/observability.
func Trace(ctx context.Context, logger zerolog.Logger, enabled bool, fn string, args map[string]any) {
	if !enabled {
		return
	}
	evt := FromContext(ctx, logger).Debug().Str("fn", fn)
	for k, v := range args {
		if observability.IsSensitiveName(k) {
			evt = evt.Str(k, "[REDACTED]")
		} else {
			evt = evt.Interface(k, v)
		}
	}
	evt.Msg("trace")
}
