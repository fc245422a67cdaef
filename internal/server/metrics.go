package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of one server. Each server owns
// its registry so tests can run several side by side. A nil *Metrics is a
// no-op.
type Metrics struct {
	registry *prometheus.Registry

	jobsCreated  prometheus.Counter
	jobsFinished *prometheus.CounterVec
	jobsRunning  prometheus.Gauge
	steps        prometheus.Counter
	checkpoints  prometheus.Counter
	bestLength   *prometheus.GaugeVec
}

// NewMetrics registers the evotsp collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		jobsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "evotsp_jobs_created_total",
			Help: "Jobs submitted to the server.",
		}),
		jobsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evotsp_jobs_finished_total",
			Help: "Jobs that reached a final state.",
		}, []string{"state"}),
		jobsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "evotsp_jobs_running",
			Help: "Jobs currently optimizing.",
		}),
		steps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "evotsp_steps_total",
			Help: "Engine steps (generations or annealing moves) completed across all jobs.",
		}),
		checkpoints: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "evotsp_checkpoints_saved_total",
			Help: "Checkpoints written to the store.",
		}),
		bestLength: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "evotsp_best_length",
			Help: "Best tour length found so far, per job.",
		}, []string{"job_id"}),
	}
	m.registry.MustRegister(m.jobsCreated, m.jobsFinished, m.jobsRunning, m.steps, m.checkpoints, m.bestLength)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) jobCreated() {
	if m == nil {
		return
	}
	m.jobsCreated.Inc()
}

func (m *Metrics) jobStarted() {
	if m == nil {
		return
	}
	m.jobsRunning.Inc()
}

func (m *Metrics) jobFinished(jobID string, state JobState) {
	if m == nil {
		return
	}
	m.jobsRunning.Dec()
	m.jobsFinished.WithLabelValues(string(state)).Inc()
	m.bestLength.DeleteLabelValues(jobID)
}

func (m *Metrics) progress(jobID string, steps int, bestLength float64) {
	if m == nil {
		return
	}
	m.steps.Add(float64(steps))
	m.bestLength.WithLabelValues(jobID).Set(bestLength)
}

func (m *Metrics) checkpointSaved() {
	if m == nil {
		return
	}
	m.checkpoints.Inc()
}
