package otel

import (
	"os"
	"sync/atomic"
)

// traceEnabled gates debug-level events. Read on every Debug call.
var traceEnabled atomic.Bool

func init() {
	traceEnabled.Store(os.Getenv("YARNSTASH_TRACE") != "")
}

// TraceEnabled reports whether YARNSTASH_TRACE is set.
func TraceEnabled() bool {
	return traceEnabled.Load()
}

// SetTraceEnabled overrides the environment setting.
func SetTraceEnabled(v bool) {
	traceEnabled.Store(v)
}
