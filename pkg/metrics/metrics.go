package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "realtime_active_connections",
		Help: "Number of open websocket connections.",
	})

	OnlineUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "realtime_online_users",
		Help: "Number of users with at least one open connection.",
	})

	BroadcastsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "realtime_broadcasts_total",
		Help: "Broadcasts performed, labeled by event name.",
	}, []string{"event"})

	SendFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "realtime_send_failures_total",
		Help: "Individual transport sends that failed.",
	})

	SweepEvictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "realtime_sweep_evictions_total",
		Help: "Users evicted by the inactivity sweep.",
	})
)
