package observability

import (
	"context"
	"testing"
)

func TestInitDisabledUsesNoopTracer(t *testing.T) {
	if err := Init(context.Background(), Config{Enabled: false}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if Enabled() {
		t.Fatal("expected tracing to stay disabled")
	}
	if Tracer() == nil {
		t.Fatal("expected a non-nil no-op tracer")
	}
	if err := Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown on a disabled provider should be a no-op: %v", err)
	}
}

func TestInitStdoutExporterEnablesTracing(t *testing.T) {
	err := Init(context.Background(), Config{
		Enabled:     true,
		Exporter:    "stdout",
		ServiceName: "offchain-test",
		SampleRate:  1.0,
	})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer Shutdown(context.Background())

	if !Enabled() {
		t.Fatal("expected tracing to be enabled")
	}

	ctx, span := StartSpan(context.Background(), "test.span")
	span.End()
	if SpanFromContext(ctx) == nil {
		t.Fatal("expected a span in context")
	}
}

func TestInitUnknownExporterFails(t *testing.T) {
	err := Init(context.Background(), Config{Enabled: true, Exporter: "carrier-pigeon"})
	if err == nil {
		t.Fatal("expected an error for an unknown exporter")
	}
}
