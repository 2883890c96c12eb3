package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AdmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caniedit_admissions_total",
			Help: "Entitlement decisions by tool, scope type and outcome",
		},
		[]string{"tool", "scope", "outcome"},
	)

	ToolDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "caniedit_tool_duration_seconds",
			Help:    "Duration of PDF tool processing in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"tool"},
	)

	SweeperRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caniedit_sweeper_runs_total",
			Help: "Background task iterations by task and result",
		},
		[]string{"task", "result"},
	)

	SweeperDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caniedit_sweeper_deleted_total",
			Help: "Rows or files removed by background tasks",
		},
		[]string{"task"},
	)

	PlanCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caniedit_plan_cache_lookups_total",
			Help: "Plan cache lookups by result",
		},
		[]string{"result"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caniedit_http_requests_total",
			Help: "HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)
)
