package tracing

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestHTTPMiddleware(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	defer otel.SetTextMapPropagator(prev)

	const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"

	tests := []struct {
		name        string
		traceparent string
		wantValid   bool
	}{
		{name: "valid header", traceparent: "00-" + traceID + "-00f067aa0ba902b7-01", wantValid: true},
		{name: "no header", traceparent: ""},
		{name: "malformed header", traceparent: "00-xyz-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got trace.SpanContext
			handler := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = trace.SpanContextFromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodPost, "/run", nil)
			if tt.traceparent != "" {
				req.Header.Set("traceparent", tt.traceparent)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if got.IsValid() != tt.wantValid {
				t.Fatalf("span context valid = %v, want %v", got.IsValid(), tt.wantValid)
			}
			header := rec.Header().Get("X-Trace-ID")
			if tt.wantValid && header != traceID {
				t.Errorf("X-Trace-ID = %q, want %q", header, traceID)
			}
			if !tt.wantValid && header != "" {
				t.Errorf("X-Trace-ID = %q, want empty", header)
			}
		})
	}
}
