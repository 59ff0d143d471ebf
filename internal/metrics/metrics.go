// Package metrics provides Prometheus metrics for the drop client and the
// reference server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Sync channel
	syncState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "drop_sync_state",
			Help: "Current sync channel state (0 idle, 1 connecting, 2 open, 3 closed)",
		},
	)

	syncEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drop_sync_events_total",
			Help: "Total number of sync transport events by kind",
		},
		[]string{"kind"},
	)

	syncNotificationsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "drop_sync_notifications_sent_total",
			Help: "Total number of list_change notifications sent",
		},
	)

	// List pulls
	listPullsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drop_list_pulls_total",
			Help: "Total number of list pulls",
		},
		[]string{"status"},
	)

	listPullDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "drop_list_pull_duration_seconds",
			Help:    "List pull duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Mutations and uploads
	mutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drop_mutations_total",
			Help: "Total number of mutations by operation and status",
		},
		[]string{"op", "status"},
	)

	uploadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "drop_upload_bytes_total",
			Help: "Total bytes sent by successful uploads",
		},
	)

	// Reference server
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drop_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "drop_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	wsClientsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "drop_ws_clients_active",
			Help: "Number of connected push channel clients",
		},
	)

	wsBroadcastsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "drop_ws_broadcasts_total",
			Help: "Total number of messages relayed to push channel rooms",
		},
	)

	itemsExpiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "drop_items_expired_total",
			Help: "Total number of items removed by the expiry cleaner",
		},
	)

	authAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drop_auth_attempts_total",
			Help: "Total number of login attempts",
		},
		[]string{"result"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetSyncState records the sync channel state.
func SetSyncState(state int) {
	syncState.Set(float64(state))
}

// RecordSyncEvent records a transport event.
func RecordSyncEvent(kind string) {
	syncEventsTotal.WithLabelValues(kind).Inc()
}

// RecordNotificationSent records an outgoing list_change.
func RecordNotificationSent() {
	syncNotificationsSent.Inc()
}

// RecordListPull records a list pull.
func RecordListPull(duration time.Duration, success bool) {
	listPullsTotal.WithLabelValues(status(success)).Inc()
	listPullDuration.Observe(duration.Seconds())
}

// RecordMutation records a create, favorite, delete or clean.
func RecordMutation(op string, success bool) {
	mutationsTotal.WithLabelValues(op, status(success)).Inc()
}

// RecordUpload records bytes sent by a successful upload.
func RecordUpload(bytes int64) {
	uploadBytesTotal.Add(float64(bytes))
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// AddWSClients adjusts the connected client gauge.
func AddWSClients(delta int) {
	wsClientsActive.Add(float64(delta))
}

// RecordBroadcast records one relayed push message.
func RecordBroadcast() {
	wsBroadcastsTotal.Inc()
}

// RecordExpired records items removed by the cleaner.
func RecordExpired(count int) {
	itemsExpiredTotal.Add(float64(count))
}

// RecordAuthAttempt records a login attempt.
func RecordAuthAttempt(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	authAttemptsTotal.WithLabelValues(result).Inc()
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
