package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	MatchesStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reflexduel_matches_started_total",
			Help: "Matches created, by how the players were paired",
		},
		[]string{"source"},
	)
	MatchesFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reflexduel_matches_finished_total",
			Help: "Matches archived, by finish reason",
		},
		[]string{"reason"},
	)
	RoundsResolved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reflexduel_rounds_resolved_total",
			Help: "Rounds resolved, by trigger",
		},
		[]string{"trigger"},
	)
	ReactionTime = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reflexduel_reaction_seconds",
			Help:    "Reaction time of the fast answer of each round",
			Buckets: []float64{0.1, 0.2, 0.3, 0.5, 0.75, 1, 1.5, 2, 3, 5},
		},
	)
	LiveMatches = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "reflexduel_live_matches",
			Help: "Matches currently tracked as live",
		},
	)
	QueueLength = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "reflexduel_queue_length",
			Help: "Players waiting for an opponent",
		},
	)
	OnlinePlayers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "reflexduel_online_players",
			Help: "Players with a heartbeat inside the presence window",
		},
	)
	StoreWrites = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reflexduel_store_write_seconds",
			Help:    "Latency of full state document writes",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"result"},
	)
	HTTPRequests = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reflexduel_http_request_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	RLRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limiter_requests_total",
			Help: "Total requests seen by the rate limiter",
		},
		[]string{"endpoint"},
	)
	RLBlocked = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limiter_blocked_total",
			Help: "Total requests blocked by the rate limiter",
		},
		[]string{"endpoint"},
	)
)

func init() {
	prometheus.MustRegister(
		MatchesStarted,
		MatchesFinished,
		RoundsResolved,
		ReactionTime,
		LiveMatches,
		QueueLength,
		OnlinePlayers,
		StoreWrites,
		HTTPRequests,
		RLRequests,
		RLBlocked,
	)
}
