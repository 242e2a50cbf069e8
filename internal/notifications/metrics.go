package notifications

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	alarmsScheduled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stepio_alarms_scheduled_total",
		Help: "Alarms handed to the notification platform, by source kind.",
	}, []string{"kind"})

	alarmsCanceled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stepio_alarms_canceled_total",
		Help: "Alarm ids sent to the notification platform for cancellation.",
	})

	alarmFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stepio_alarm_failures_total",
		Help: "Notification platform calls that failed, by operation.",
	}, []string{"op"})
)
