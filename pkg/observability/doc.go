/*
Package observability turns engine lifecycle hooks into Prometheus metrics
and structured log lines.

	metrics := observability.NewMetrics()
	eng := operad.New(operad.WithLifecycleHooks(observability.Combine(
		metrics.Hooks(),
		observability.LogHooks(logger),
	)))
	http.Handle("/metrics", metrics.Handler())
*/
package observability
