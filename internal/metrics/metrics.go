package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CallsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "callagent_calls_active",
		Help: "Currently active call sessions",
	})

	CallsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "callagent_calls_total",
		Help: "Total calls handled",
	})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "callagent_stage_duration_seconds",
		Help:    "Per-stage latency (completion, synthesis, playback)",
		Buckets: []float64{0.05, 0.1, 0.2, 0.3, 0.5, 0.8, 1.0, 2.0, 5.0},
	}, []string{"stage"})

	Interactions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "callagent_interactions_total",
		Help: "User-turn to assistant-reply cycles started",
	})

	SegmentsSpoken = promauto.NewCounter(prometheus.CounterOpts{
		Name: "callagent_segments_spoken_total",
		Help: "Reply segments synthesized and flushed to the transport",
	})

	SegmentsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "callagent_segments_skipped_total",
		Help: "Reply segments dropped after a synthesis failure",
	})

	BargeIns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "callagent_barge_ins_total",
		Help: "Caller interruptions that cleared pending playback",
	})

	ToolCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "callagent_tool_calls_total",
		Help: "Tool invocations by name",
	}, []string{"tool"})

	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "callagent_speech_cache_lookups_total",
		Help: "Speech cache lookups by outcome (hit, miss, error)",
	}, []string{"outcome"})

	MarksOutstanding = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "callagent_marks_outstanding",
		Help: "Playback marks awaiting transport acknowledgement",
	})

	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "callagent_errors_total",
		Help: "Error counts by stage",
	}, []string{"stage", "error_type"})
)
