package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce         sync.Once
	apiRequestsTotal     *prometheus.CounterVec
	apiLatencySeconds    *prometheus.HistogramVec
	apiErrorsTotal       *prometheus.CounterVec
	autoSubmissionsTotal prometheus.Counter
	scoresSavedTotal     *prometheus.CounterVec
	unsupportedQuestions *prometheus.CounterVec
	gradedTotal          prometheus.Counter
)

// RegisterMetrics initialises the Prometheus collectors used by the API and grading engine.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assessment_api_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "assessment_api_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assessment_api_errors_total",
			Help: "Total number of error responses returned by API endpoints.",
		}, []string{"method", "route", "status"})

		autoSubmissionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "assessment_auto_submissions_total",
			Help: "Assignments submitted automatically because their countdown expired.",
		})

		scoresSavedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assessment_scores_saved_total",
			Help: "Per-question scores persisted, by question type and origin.",
		}, []string{"question_type", "origin"})

		unsupportedQuestions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assessment_unsupported_questions_total",
			Help: "Questions skipped by auto-grading because no scoring strategy exists.",
		}, []string{"question_type"})

		gradedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "assessment_assignments_graded_total",
			Help: "Assignments that transitioned from submitted to graded.",
		})

		prometheus.MustRegister(
			apiRequestsTotal,
			apiLatencySeconds,
			apiErrorsTotal,
			autoSubmissionsTotal,
			scoresSavedTotal,
			unsupportedQuestions,
			gradedTotal,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// AutoSubmissions counts forced submissions.
func AutoSubmissions() prometheus.Counter {
	RegisterMetrics()
	return autoSubmissionsTotal
}

// ScoresSaved counts persisted question scores.
func ScoresSaved() *prometheus.CounterVec {
	RegisterMetrics()
	return scoresSavedTotal
}

// UnsupportedQuestions counts questions without a scoring strategy.
func UnsupportedQuestions() *prometheus.CounterVec {
	RegisterMetrics()
	return unsupportedQuestions
}

// AssignmentsGraded counts submitted to graded transitions.
func AssignmentsGraded() prometheus.Counter {
	RegisterMetrics()
	return gradedTotal
}
