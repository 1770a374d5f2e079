/*
Package observability turns engine lifecycle hooks into Prometheus metrics.

Metrics exported:

	vmtune_reconciliations_total{kind,outcome}   finished reconciliations
	vmtune_phase_duration_seconds{phase}         time spent in each transaction phase

Combine several LifecycleHooks with Chain.
*/
package observability
