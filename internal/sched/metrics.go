package sched

import "github.com/prometheus/client_golang/prometheus"

var (
	residentStates = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "rwkvd",
			Subsystem: "sched",
			Name:      "resident_states",
			Help:      "Sequence states currently resident in the cache",
		},
	)

	runtimeBatchSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "rwkvd",
			Subsystem: "sched",
			Name:      "runtime_batch_size",
			Help:      "Sequences stepped together per tick",
			Buckets:   prometheus.LinearBuckets(1, 1, 16),
		},
	)

	ticksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "rwkvd",
			Subsystem: "sched",
			Name:      "ticks_total",
			Help:      "Total scheduler ticks executed",
		},
	)

	sequencesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rwkvd",
			Subsystem: "sched",
			Name:      "sequences_total",
			Help:      "Finished sequences by outcome",
		},
		[]string{"outcome"},
	)

	tokensGenerated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "rwkvd",
			Subsystem: "sched",
			Name:      "tokens_generated_total",
			Help:      "Total tokens sampled across all sequences",
		},
	)

	admissionRejects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rwkvd",
			Subsystem: "sched",
			Name:      "admission_rejects_total",
			Help:      "Admission rejections by reason",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(
		residentStates,
		runtimeBatchSize,
		ticksTotal,
		sequencesTotal,
		tokensGenerated,
		admissionRejects,
	)
}
