package observability

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
)

var testLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))

func TestInitTracingDisabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{}, testLogger)
	if err != nil {
		t.Fatal(err)
	}
	_, span := otel.Tracer("test").Start(context.Background(), "noop")
	if span.SpanContext().IsValid() {
		t.Error("disabled tracing produced a recording span")
	}
	span.End()
	if err := shutdown(context.Background()); err != nil {
		t.Error(err)
	}
}

func TestInitTracingStdout(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := InitTracing(context.Background(), TracingConfig{
		Enabled:     true,
		ServiceName: "orbitdash-test",
		Exporter:    "stdout",
		SampleRatio: 1,
		Writer:      &buf,
	}, testLogger)
	if err != nil {
		t.Fatal(err)
	}
	defer InitTracing(context.Background(), TracingConfig{}, testLogger)

	_, span := otel.Tracer("test").Start(context.Background(), "telemetry.Tick")
	span.End()
	ShutdownWithTimeout(context.Background(), shutdown, testLogger)

	if !strings.Contains(buf.String(), "telemetry.Tick") {
		t.Errorf("exported spans = %q", buf.String())
	}
}

func TestInitTracingUnknownExporter(t *testing.T) {
	_, err := InitTracing(context.Background(), TracingConfig{Enabled: true, Exporter: "zipkin"}, testLogger)
	if err == nil {
		t.Error("expected error for unsupported exporter")
	}
}
