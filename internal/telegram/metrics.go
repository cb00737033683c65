package telegram

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	updatesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telegram_updates_received_total",
			Help: "Total number of updates received by kind",
		},
		[]string{"kind"},
	)

	commandsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telegram_commands_processed_total",
			Help: "Total number of processed text messages by command",
		},
		[]string{"command"},
	)

	callbacksProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telegram_callbacks_processed_total",
			Help: "Total number of processed callback queries by data",
		},
		[]string{"callback"},
	)

	paymentsInitialized = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telegram_payments_initialized_total",
			Help: "Total number of local checkout initializations by result",
		},
		[]string{"result"}, // ok, error
	)

	handlerErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telegram_handler_errors_total",
			Help: "Total number of handler failures by handler and type",
		},
		[]string{"handler", "type"}, // invalid_argument, error, panic
	)
)
