package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Generation outcome label values
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

var (
	// HTTPRequestDuration tracks HTTP request duration
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// AIGenerationsTotal counts generation attempts that reached a provider.
	// operation is the request type, status is completed or failed.
	AIGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_generations_total",
			Help: "Total number of AI generation attempts",
		},
		[]string{"operation", "status"},
	)

	// AIGenerationDuration tracks wall-clock time of a generation attempt
	AIGenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_generation_duration_seconds",
			Help:    "AI generation duration in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 60},
		},
		[]string{"operation"},
	)

	// AITokensTotal counts tokens billed per provider
	AITokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_tokens_total",
			Help: "Total number of AI tokens consumed",
		},
		[]string{"provider"},
	)

	// AICostUSDTotal accumulates spend per provider
	AICostUSDTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_cost_usd_total",
			Help: "Total AI spend in USD",
		},
		[]string{"provider"},
	)

	// AIBudgetRejectionsTotal counts calls refused by the tenant budget check
	AIBudgetRejectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ai_budget_rejections_total",
			Help: "Total number of AI calls rejected because the tenant budget was exhausted",
		},
	)

	// AIRateLimitHitsTotal counts requests refused by a rate limiter.
	// limiter is "local" (in-process) or "redis" (tenant hourly window).
	AIRateLimitHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_rate_limit_hits_total",
			Help: "Total number of AI requests rejected by rate limiting",
		},
		[]string{"limiter"},
	)
)
