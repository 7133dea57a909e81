// Package telemetry provides observability instrumentation for the amphora
// orchestration worker.
//
// The package integrates structured logging (zerolog), distributed tracing
// (OpenTelemetry), and metrics (Prometheus) into a unified system for
// monitoring and debugging task and driver activity.
//
// # Usage
//
// Initialize telemetry at application startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceName = "amphion"
//	cfg.ServiceVersion = "1.0.0"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
//	// Start metrics server
//	if err := tel.StartMetricsServer(); err != nil {
//	    log.Fatal(err)
//	}
//
// Add telemetry to context:
//
//	ctx = tel.WithContext(ctx)
//
// # Structured Logging
//
// The logger provides component-specific logging with automatic context
// propagation:
//
//	logger := tel.Logger.NewComponentLogger("tasks")
//	logger = logger.WithLoadBalancerID("lb-123").WithAmphoraID("amp-456")
//	logger.Info("Plugging VIP port")
//	logger.WithError(err).Error("VIP plug failed")
//
// Log levels: trace, debug, info, warn, error, fatal
//
// # Distributed Tracing
//
// Tracing provides visibility into task flow and driver latency:
//
//	ctx, span := tel.Tracer.StartTaskSpan(ctx, "amphora-post-vip-plug")
//	defer span.End()
//
//	span.SetAttributes(
//	    telemetry.AttrAmphoraID.String(amphoraID),
//	    telemetry.AttrLoadBalancerID.String(lbID),
//	)
//
//	if err != nil {
//	    telemetry.RecordError(span, err)
//	}
//
// Supported exporters: OTLP/gRPC (production), stdout (development), none
// (testing).
//
// # Metrics
//
// Prometheus metrics track task and driver behavior:
//
//	tel.Metrics.RecordTaskExecution("listeners-update", "success", duration)
//	tel.Metrics.RecordDriverCall("noop", "post_vip_plug", duration)
//	tel.Metrics.RecordDriverError("noop", "get_info", "timeout")
//	tel.Metrics.RecordEntityMarkedError("amphora")
//	tel.Metrics.RecordRetryDecision("revert_all")
//
// Metrics are exposed via HTTP at /metrics (default: :9102/metrics).
//
// # Graceful Shutdown
//
// Always shut down telemetry gracefully to flush pending traces:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
//	defer cancel()
//
//	if err := tel.Shutdown(ctx); err != nil {
//	    log.Printf("Telemetry shutdown error: %v", err)
//	}
package telemetry
