// Package observability provides structured logging, Prometheus metrics, health
// checks, graceful shutdown, and OpenTelemetry setup for the console.
//
// # Structured Logging
//
// Logger wraps logrus with a JSON formatter:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("subject", sub).Info("Authenticated")
//
// Request scoped loggers travel on the context:
//
//	ctx = observability.WithLogger(ctx, logger)
//	observability.FromContext(ctx).Warn("Role cache read failed")
//
// # Prometheus Metrics
//
//	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
//	metrics.RecordAuthAttempt("header", observability.OutcomeAuthenticated)
//	metrics.RecordPermissionDecision(observability.DecisionPathAdmin, true)
//
// All Record helpers are safe to call on a nil *Metrics.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient, version)
//	router.HandleFunc("/health/ready", checker.Readiness)
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "apim-console",
//	}, logger)
//	defer observability.ShutdownOTel(ctx, providers, logger)
package observability
