package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestSetupDisabledIsNoop(t *testing.T) {
	before := otel.GetTracerProvider()

	tests := []struct {
		name     string
		endpoint string
		enabled  bool
	}{
		{"disabled", "http://localhost:4318", false},
		{"no endpoint", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shutdown, err := Setup(context.Background(), "attestd-test", tt.endpoint, tt.enabled)
			if err != nil {
				t.Fatalf("setup: %v", err)
			}
			if err := shutdown(context.Background()); err != nil {
				t.Fatalf("shutdown: %v", err)
			}
			if otel.GetTracerProvider() != before {
				t.Fatal("global tracer provider replaced")
			}
		})
	}
}
