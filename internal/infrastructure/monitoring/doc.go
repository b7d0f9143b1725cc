/*
Package monitoring provides Prometheus metrics for the terminal server.

# Overview

Metrics implements the recorder interfaces of the session manager and the
tool registry, so session churn, one-shot executions and tool calls are
counted without those packages knowing about Prometheus.

# Usage

	metrics := monitoring.NewMetrics()
	manager := terminal.NewManager(logger).WithMetrics(metrics)
	registry := service.NewRegistry().WithRecorder(metrics)

	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
*/
package monitoring
