package tracing

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"

	"good-food/internal/config"
)

func TestSetupWithoutEndpointInstallsPropagator(t *testing.T) {
	shutdown, err := Setup(context.Background(), "test", config.TracingConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}

	fields := otel.GetTextMapPropagator().Fields()
	want := map[string]bool{"traceparent": false, "baggage": false}
	for _, f := range fields {
		if _, ok := want[f]; ok {
			want[f] = true
		}
	}
	for f, seen := range want {
		if !seen {
			t.Errorf("propagator missing %s (fields %v)", f, fields)
		}
	}
}
