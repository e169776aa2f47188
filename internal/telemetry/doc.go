// Package telemetry wires OpenTelemetry tracing and metrics for campusd.
//
// Spans and OTLP metrics are exported to a collector when
// observability.enable_telemetry is set; otherwise every tracer and meter is
// a no-op. Prometheus metrics scraped from /metrics are independent of this
// package.
//
//	tel, err := telemetry.New(ctx, telemetry.ConfigFrom(cfg.Observability, version))
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	ctx, span := tel.Tracer("campusd/retrieval").Start(ctx, "retrieval.Retrieve")
//	defer span.End()
//
// Tests use NewTestTelemetry, which records spans and metrics in memory.
package telemetry
