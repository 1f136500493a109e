// Package metrics exposes Prometheus metrics for the event pipeline.
//
// Two registries are kept apart: a system registry with Go runtime and
// process collectors, and an application registry carrying the pipeline
// series recorded by PipelineObserver. Each can be served on its own address.
//
//	m := metrics.NewMetrics(metrics.Config{ServiceName: "eventpipe"})
//	obs := metrics.NewPipelineObserver(m)
//	pub := publisher.New(cache, conn, publisher.WithObserver(obs))
package metrics
