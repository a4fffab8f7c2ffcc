package api

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTestTracer(t *testing.T) (*sdktrace.TracerProvider, *tracetest.InMemoryExporter, func()) {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
	)
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)

	cleanup := func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			t.Logf("shutdown tracer provider: %v", err)
		}
		otel.SetTracerProvider(prev)
	}
	return tp, exporter, cleanup
}

func attributesToMap(attrs []attribute.KeyValue) map[string]any {
	out := make(map[string]any, len(attrs))
	for _, kv := range attrs {
		out[string(kv.Key)] = kv.Value.AsInterface()
	}
	return out
}

func TestCommandMetricsLogRecordsSpanAndFields(t *testing.T) {
	logger, hook := test.NewNullLogger()

	tp, exporter, restore := setupTestTracer(t)
	defer restore()

	metrics, _ := newCommandMetrics(context.Background(), logger)
	metrics.start = metrics.start.Add(-50 * time.Millisecond)
	metrics.SetOp("add")
	metrics.SetSource("cli")
	metrics.ObserveParse(2 * time.Millisecond)
	metrics.ObserveApply(10 * time.Millisecond)

	metrics.Log(http.StatusOK, nil)

	if err := tp.ForceFlush(context.Background()); err != nil {
		t.Fatalf("force flush spans: %v", err)
	}

	entry := hook.LastEntry()
	if entry == nil || entry.Message != "commands.request.metrics" {
		t.Fatalf("unexpected log entry %+v", entry)
	}
	if entry.Data["op"] != "add" || entry.Data["source"] != "cli" {
		t.Fatalf("unexpected fields %+v", entry.Data)
	}
	if total, ok := entry.Data["total_ms"].(float64); !ok || total <= 0 {
		t.Fatalf("expected positive total_ms, got %#v", entry.Data["total_ms"])
	}
	if _, ok := entry.Data["error_stage"]; ok {
		t.Fatalf("expected no error stage, got %+v", entry.Data)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if span.Name != "commands.request" {
		t.Fatalf("unexpected span name %s", span.Name)
	}
	attrs := attributesToMap(span.Attributes)
	if attrs["command.op"] != "add" || attrs["command.source"] != "cli" {
		t.Fatalf("unexpected span attributes %+v", attrs)
	}
	if status, ok := attrs["http.status"].(int64); !ok || status != int64(http.StatusOK) {
		t.Fatalf("unexpected status attribute %#v", attrs["http.status"])
	}
}

func TestCommandMetricsLogWithErrorSetsSpanStatus(t *testing.T) {
	logger, hook := test.NewNullLogger()

	tp, exporter, restore := setupTestTracer(t)
	defer restore()

	metrics, _ := newCommandMetrics(context.Background(), logger)
	metrics.SetErrorStage("apply")
	boom := errors.New("store unavailable")

	metrics.Log(http.StatusInternalServerError, boom)

	if err := tp.ForceFlush(context.Background()); err != nil {
		t.Fatalf("force flush spans: %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if span.Status.Code != codes.Error || span.Status.Description == "" {
		t.Fatalf("expected error status, got %+v", span.Status)
	}
	attrs := attributesToMap(span.Attributes)
	if attrs["error.stage"] != "apply" {
		t.Fatalf("expected error stage attribute, got %+v", attrs)
	}

	entry := hook.LastEntry()
	if entry == nil {
		t.Fatal("expected log entry")
	}
	if entry.Data["error_stage"] != "apply" || entry.Data["error"] != boom.Error() {
		t.Fatalf("unexpected fields %+v", entry.Data)
	}
}
