package bdsmlr

// ErrorContext carries the request context attached to a telemetry report.
type ErrorContext struct {
	Endpoint  string
	Attempts  int
	RequestID string
}

// TelemetrySink receives every terminal request failure before it propagates
// to the caller. Implementations must be fire-and-forget: never block, never
// return feedback to the request path.
type TelemetrySink interface {
	ReportError(err error, ctx ErrorContext)
}

// loggerSink is the default sink: it logs through the client Logger and
// bumps the error counters.
type loggerSink struct {
	logger  Logger
	metrics *MetricsCollector
}

func (s *loggerSink) ReportError(err error, ctx ErrorContext) {
	s.metrics.RecordError(KindOf(err), ctx.Endpoint)
	if s.logger != nil {
		s.logger.Error("request failed",
			"endpoint", ctx.Endpoint,
			"attempts", ctx.Attempts,
			"requestID", ctx.RequestID,
			"error", err.Error(),
		)
	}
}

// TelemetryFunc adapts a function to the TelemetrySink interface.
type TelemetryFunc func(err error, ctx ErrorContext)

func (f TelemetryFunc) ReportError(err error, ctx ErrorContext) {
	f(err, ctx)
}
