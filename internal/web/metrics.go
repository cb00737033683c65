package web

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	verificationsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chapa_verifications_processed_total",
			Help: "Total number of checkout confirmations by outcome",
		},
		[]string{"outcome"}, // confirmed, failed, unknown
	)

	notificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chapa_notifications_sent_total",
			Help: "Total number of buyer notifications by result",
		},
		[]string{"result"}, // ok, error, skipped
	)
)
