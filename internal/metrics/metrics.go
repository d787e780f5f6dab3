package metrics

import (
	"time"

	"fleet-alerts/internal/alerting"
	"fleet-alerts/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AlertsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleet_alerts_created_total",
			Help: "Alerts created by reconciliation passes",
		},
		[]string{"type"},
	)

	AlertsUpdated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleet_alerts_updated_total",
			Help: "Open alerts whose message or severity changed",
		},
		[]string{"type"},
	)

	AlertsResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleet_alerts_resolved_total",
			Help: "Alerts auto-resolved because their condition cleared",
		},
		[]string{"type"},
	)

	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleet_alert_notifications_total",
			Help: "Notification attempts by outcome",
		},
		[]string{"type", "outcome"},
	)

	Findings = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fleet_alert_findings",
			Help: "Findings reported by the last pass",
		},
		[]string{"type"},
	)

	PassDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fleet_alert_pass_duration_seconds",
			Help:    "Reconciliation pass latency in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"type"},
	)

	PassFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleet_alert_pass_failures_total",
			Help: "Reconciliation passes aborted by an error",
		},
		[]string{"type"},
	)
)

// Recorder feeds engine and dispatcher events into the package collectors.
type Recorder struct{}

var _ alerting.Recorder = Recorder{}

func (Recorder) ObservePass(result alerting.RunResult, duration time.Duration) {
	t := string(result.Type)
	AlertsCreated.WithLabelValues(t).Add(float64(result.Created))
	AlertsUpdated.WithLabelValues(t).Add(float64(result.Updated))
	AlertsResolved.WithLabelValues(t).Add(float64(result.Resolved))
	Findings.WithLabelValues(t).Set(float64(len(result.Findings)))
	PassDuration.WithLabelValues(t).Observe(duration.Seconds())
}

func (Recorder) PassFailed(alertType models.AlertType) {
	PassFailures.WithLabelValues(string(alertType)).Inc()
}

func (Recorder) Notification(alertType models.AlertType, outcome string) {
	Notifications.WithLabelValues(string(alertType), outcome).Inc()
}
