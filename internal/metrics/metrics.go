// Package metrics exposes the gateway's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SubmissionDuration tracks the latency of platform mutations.
	SubmissionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "wellness_submission_duration_seconds",
			Help: "Duration of platform mutation calls in seconds",
			Buckets: []float64{
				0.01,  // 10ms
				0.025, // 25ms
				0.05,  // 50ms
				0.1,   // 100ms
				0.25,  // 250ms
				0.5,   // 500ms
				1.0,   // 1s
				2.5,   // 2.5s
				5.0,   // 5s
				10.0,  // 10s
			},
		},
		[]string{"kind", "status"},
	)

	// WizardOutcomes counts local rejections that never reached the platform.
	WizardOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wellness_wizard_rejections_total",
			Help: "Wizard submissions rejected before any platform call",
		},
		[]string{"wizard", "reason"},
	)

	// OpenWizards is the number of wizards held in the registries.
	OpenWizards = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "wellness_open_wizards",
			Help: "Wizards currently open per kind",
		},
		[]string{"wizard"},
	)
)

// RecordSubmission records one platform mutation.
func RecordSubmission(kind, status string, seconds float64) {
	SubmissionDuration.WithLabelValues(kind, status).Observe(seconds)
}

// RecordRejection counts a locally rejected submit.
func RecordRejection(wizard, reason string) {
	WizardOutcomes.WithLabelValues(wizard, reason).Inc()
}

// SetOpenWizards publishes the current registry size of one wizard kind.
func SetOpenWizards(wizard string, n int) {
	OpenWizards.WithLabelValues(wizard).Set(float64(n))
}
