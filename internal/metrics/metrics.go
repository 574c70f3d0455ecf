package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	chatDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chat_config_chat_request_duration_seconds",
		Help:    "Duration of chat completion requests from enqueue to terminal state",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"status"})

	chatStatusTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_config_chat_request_total",
		Help: "Total chat requests grouped by terminal status",
	}, []string{"status"})

	settingsReloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_config_settings_reload_total",
		Help: "Settings cache reloads grouped by outcome",
	}, []string{"status"})

	profileOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_config_profile_operations_total",
		Help: "Profile lifecycle operations grouped by action",
	}, []string{"action"})

	catalogRefreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "chat_config_endpoint_catalog_refresh_duration_seconds",
		Help:    "Duration of serving endpoint catalog refreshes",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 15, 30},
	})

	catalogRefreshCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_config_endpoint_catalog_refresh_total",
		Help: "Serving endpoint catalog refreshes grouped by outcome",
	}, []string{"status"})
)

// ObserveChatRequest records the duration and terminal status of a chat
// request.
func ObserveChatRequest(status string, duration time.Duration) {
	if status == "" {
		status = "unknown"
	}
	chatDuration.WithLabelValues(status).Observe(duration.Seconds())
	chatStatusTotal.WithLabelValues(status).Inc()
}

// ObserveSettingsReload records the outcome of a settings cache reload.
func ObserveSettingsReload(success bool) {
	if success {
		settingsReloads.WithLabelValues("success").Inc()
		return
	}
	settingsReloads.WithLabelValues("failed").Inc()
}

// ObserveProfileOperation counts a profile lifecycle action.
func ObserveProfileOperation(action string) {
	if action == "" {
		action = "unknown"
	}
	profileOps.WithLabelValues(action).Inc()
}

// ObserveCatalogRefresh records metrics for an endpoint catalog refresh.
func ObserveCatalogRefresh(duration time.Duration, success bool) {
	catalogRefreshDuration.Observe(duration.Seconds())
	if success {
		catalogRefreshCount.WithLabelValues("success").Inc()
	} else {
		catalogRefreshCount.WithLabelValues("failed").Inc()
	}
}
