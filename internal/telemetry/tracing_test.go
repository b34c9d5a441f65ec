package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInitTracerProviderInstallsPropagator(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp, err := InitTracerProvider(context.Background(), Config{}, sdktrace.WithSpanProcessor(recorder))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, tp.Shutdown(context.Background())) })

	ctx, span := otel.Tracer("test").Start(context.Background(), "crawl.run")
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	span.End()

	require.NotEmpty(t, carrier.Get("traceparent"))
	spans := recorder.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, "crawl.run", spans[0].Name())

	var found bool
	for _, kv := range spans[0].Resource().Attributes() {
		if string(kv.Key) == "service.name" && kv.Value.AsString() == ServiceName {
			found = true
		}
	}
	require.True(t, found)
}

func TestConfigSampler(t *testing.T) {
	t.Parallel()

	cases := map[float64]string{
		0:    "AlwaysOnSampler",
		1:    "AlwaysOnSampler",
		-0.5: "AlwaysOnSampler",
		0.25: "ParentBased{root:TraceIDRatioBased{0.25}",
	}
	for ratio, want := range cases {
		got := Config{SampleRatio: ratio}.sampler().Description()
		require.Contains(t, got, want, "ratio %v", ratio)
	}
}

func TestConfigAttributesIncludeVersion(t *testing.T) {
	t.Parallel()

	attrs := Config{ServiceName: "svc", ServiceVersion: "1.2.3"}.attributes()
	require.Len(t, attrs, 2)
	require.Equal(t, "svc", attrs[0].Value.AsString())
	require.Equal(t, "1.2.3", attrs[1].Value.AsString())
}
