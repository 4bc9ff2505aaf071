package observability

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"

	"github.com/leslieo2/go-probe/internal/config"
)

func TestNewTracer_Disabled(t *testing.T) {
	tracer, err := NewTracer(context.Background(), config.TracingConfig{Enabled: false})
	if err != nil {
		t.Fatalf("NewTracer() returned error: %v", err)
	}
	if tracer == nil {
		t.Fatal("NewTracer() returned nil")
	}
	if err := tracer.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() returned error: %v", err)
	}
}

func TestNewTracer_Stdout(t *testing.T) {
	tracer, err := NewTracer(context.Background(), config.TracingConfig{
		Enabled:     true,
		Exporter:    "stdout",
		ServiceName: "go-probe-test",
		Version:     "test",
		Environment: "test",
	})
	if err != nil {
		t.Fatalf("NewTracer() returned error: %v", err)
	}

	ctx, parent := tracer.StartSpan(context.Background(), "parent")
	_, child := tracer.StartSpan(ctx, "child", attribute.String("probe", "ready"))

	if !child.SpanContext().IsValid() {
		t.Error("child span context is not valid")
	}
	if child.SpanContext().TraceID() != parent.SpanContext().TraceID() {
		t.Error("child span does not share the parent trace")
	}

	child.End()
	parent.End()

	if err := tracer.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() returned error: %v", err)
	}
}

func TestNewTracer_OTLP(t *testing.T) {
	// The gRPC exporter connects lazily, so construction succeeds
	// without a collector listening.
	tracer, err := NewTracer(context.Background(), config.TracingConfig{
		Enabled:     true,
		Exporter:    "otlp",
		Endpoint:    "127.0.0.1:4317",
		ServiceName: "go-probe-test",
	})
	if err != nil {
		t.Fatalf("NewTracer() returned error: %v", err)
	}
	if tracer.provider == nil {
		t.Error("expected an sdk tracer provider")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = tracer.Shutdown(ctx)
}

func TestTracer_ConcurrentSpans(t *testing.T) {
	tracer, err := NewTracer(context.Background(), config.TracingConfig{Enabled: false})
	if err != nil {
		t.Fatalf("NewTracer() returned error: %v", err)
	}

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func(id int) {
			_, span := tracer.StartSpan(context.Background(), "concurrent-span", attribute.Int("id", id))
			span.End()
			done <- true
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-done
	}
}
