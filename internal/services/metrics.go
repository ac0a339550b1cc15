package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 核心流程的 Prometheus 指标
type Metrics struct {
	VotesCast     *prometheus.CounterVec
	Transitions   *prometheus.CounterVec
	TxRetries     prometheus.Counter
	PointsAwarded *prometheus.CounterVec
	Notifications *prometheus.CounterVec
}

// NewMetrics registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		VotesCast: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "holewatch",
			Name:      "votes_cast_total",
			Help:      "Accepted votes by kind and choice.",
		}, []string{"kind", "choice"}),
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "holewatch",
			Name:      "report_transitions_total",
			Help:      "Report state transitions.",
		}, []string{"from", "to"}),
		TxRetries: f.NewCounter(prometheus.CounterOpts{
			Namespace: "holewatch",
			Name:      "report_tx_retries_total",
			Help:      "Report transactions retried after a conflict.",
		}),
		PointsAwarded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "holewatch",
			Name:      "points_transactions_total",
			Help:      "Points transactions appended by category.",
		}, []string{"category"}),
		Notifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "holewatch",
			Name:      "notifications_total",
			Help:      "Participant notices by result.",
		}, []string{"result"}),
	}
}
