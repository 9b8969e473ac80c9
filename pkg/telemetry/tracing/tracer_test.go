package tracing

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"mercator-hq/s3rotate/pkg/config"
)

func newRecordingTracer(t *testing.T) (*Tracer, *tracetest.SpanRecorder) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return NewWithProvider(provider), recorder
}

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		config      *config.TracingConfig
		wantErr     bool
		wantEnabled bool
	}{
		{
			name:    "nil config",
			config:  nil,
			wantErr: true,
		},
		{
			name:   "disabled tracing",
			config: &config.TracingConfig{Enabled: false, ServiceName: "test-service"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracer, err := New(context.Background(), tt.config, "test")
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if tracer.Enabled() != tt.wantEnabled {
				t.Errorf("Enabled() = %v, want %v", tracer.Enabled(), tt.wantEnabled)
			}
			if err := tracer.Shutdown(context.Background()); err != nil {
				t.Errorf("Shutdown() error = %v", err)
			}
		})
	}
}

func TestNoop(t *testing.T) {
	tracer := Noop()

	ctx, span := tracer.Start(context.Background(), "rotation.run", AttrFamily.String("db"))
	End(span, nil)

	if tracer.Enabled() {
		t.Error("Noop tracer reports enabled")
	}
	if TraceID(ctx) != "" {
		t.Errorf("TraceID() = %q, want empty for noop span", TraceID(ctx))
	}
}

func TestTracer_StartRecordsParentAndAttributes(t *testing.T) {
	tracer, recorder := newRecordingTracer(t)

	ctx, parent := tracer.Start(context.Background(), "rotation.run", AttrFamily.String("db"))
	_, child := tracer.Start(ctx, "rotation.rotate_daily", AttrTier.String("daily"))
	End(child, nil)
	End(parent, nil)

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("recorded %d spans, want 2", len(spans))
	}

	childSpan, parentSpan := spans[0], spans[1]
	if childSpan.Name() != "rotation.rotate_daily" || parentSpan.Name() != "rotation.run" {
		t.Fatalf("unexpected span names %q, %q", childSpan.Name(), parentSpan.Name())
	}
	if childSpan.Parent().SpanID() != parentSpan.SpanContext().SpanID() {
		t.Error("child span is not linked to its parent")
	}
	if TraceID(ctx) != parentSpan.SpanContext().TraceID().String() {
		t.Error("TraceID() does not match the parent span")
	}

	found := false
	for _, attr := range parentSpan.Attributes() {
		if attr.Key == AttrFamily && attr.Value.AsString() == "db" {
			found = true
		}
	}
	if !found {
		t.Errorf("family attribute missing from %v", parentSpan.Attributes())
	}
}

func TestEnd_Error(t *testing.T) {
	tracer, recorder := newRecordingTracer(t)

	_, span := tracer.Start(context.Background(), "rotation.upload")
	End(span, errors.New("access denied"))

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("recorded %d spans, want 1", len(spans))
	}
	if spans[0].Status().Code != codes.Error {
		t.Errorf("status = %v, want Error", spans[0].Status().Code)
	}
	if len(spans[0].Events()) == 0 {
		t.Error("expected the error to be recorded as an event")
	}
}
