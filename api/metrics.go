package api

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "daily-shit-list/api"

// commandMetrics collects per-request timings for the command endpoint and
// reports them once, as a structured log line and a span.
type commandMetrics struct {
	logger        *log.Logger
	span          trace.Span
	start         time.Time
	op            string
	source        string
	parseDuration time.Duration
	applyDuration time.Duration
	errorStage    string
}

func newCommandMetrics(ctx context.Context, logger *log.Logger) (*commandMetrics, context.Context) {
	spanCtx, span := otel.Tracer(tracerName).Start(ctx, "commands.request")
	return &commandMetrics{logger: logger, span: span, start: time.Now()}, spanCtx
}

func (m *commandMetrics) SetOp(op string) {
	m.op = op
}

func (m *commandMetrics) SetSource(source string) {
	m.source = source
}

func (m *commandMetrics) ObserveParse(d time.Duration) {
	if d <= 0 {
		return
	}
	m.parseDuration = d
}

func (m *commandMetrics) ObserveApply(d time.Duration) {
	if d <= 0 {
		return
	}
	m.applyDuration = d
}

func (m *commandMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

func (m *commandMetrics) Log(status int, err error) {
	if m == nil {
		return
	}

	if m.span != nil {
		attrs := []attribute.KeyValue{
			attribute.String("command.op", m.op),
			attribute.String("command.source", m.source),
			attribute.Int("http.status", status),
		}
		if m.errorStage != "" {
			attrs = append(attrs, attribute.String("error.stage", m.errorStage))
		}
		m.span.SetAttributes(attrs...)
		if err != nil {
			m.span.SetStatus(codes.Error, err.Error())
		}
		m.span.End()
	}

	if m.logger == nil {
		return
	}
	fields := log.Fields{
		"route":    "/api/commands",
		"op":       m.op,
		"source":   m.source,
		"status":   status,
		"total_ms": durationToMillis(time.Since(m.start)),
	}
	if m.parseDuration > 0 {
		fields["parse_ms"] = durationToMillis(m.parseDuration)
	}
	if m.applyDuration > 0 {
		fields["apply_ms"] = durationToMillis(m.applyDuration)
	}
	if m.errorStage != "" {
		fields["error_stage"] = m.errorStage
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	m.logger.WithFields(fields).Info("commands.request.metrics")
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
