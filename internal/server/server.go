package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cwbudde/evotsp/internal/opt"
	"github.com/cwbudde/evotsp/internal/solve"
	"github.com/cwbudde/evotsp/internal/store"
	"github.com/cwbudde/evotsp/internal/tsp"
)

// maxBodyBytes bounds request bodies; a 100k-city instance fits comfortably.
const maxBodyBytes = 16 << 20

// Server represents the HTTP server
type Server struct {
	jobManager *JobManager
	store      store.Store
	metrics    *Metrics
	addr       string
	server     *http.Server

	// baseCtx parents every job context; stopJobs cancels them all.
	baseCtx  context.Context
	stopJobs context.CancelFunc
	workers  sync.WaitGroup
}

// NewServer creates a new HTTP server. checkpointStore may be nil, which
// disables traces, checkpoints and resume.
func NewServer(addr string, checkpointStore store.Store) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	metrics := NewMetrics()
	return &Server{
		jobManager: NewJobManager(metrics),
		store:      checkpointStore,
		metrics:    metrics,
		addr:       addr,
		baseCtx:    ctx,
		stopJobs:   cancel,
	}
}

// Jobs exposes the job manager.
func (s *Server) Jobs() *JobManager {
	return s.jobManager
}

// Handler builds the routed and wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleIndex)
	mux.Handle("/metrics", s.metrics.Handler())

	mux.HandleFunc("/api/v1/jobs", s.handleJobs)
	mux.HandleFunc("/api/v1/jobs/", s.handleJobsWithID)
	mux.HandleFunc("/api/v1/checkpoints", s.handleListCheckpoints)
	mux.HandleFunc("/api/v1/checkpoints/", s.handleCheckpointsWithID)

	return s.loggingMiddleware(s.corsMiddleware(mux))
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("Starting HTTP server", "addr", s.addr, "checkpoints", s.store != nil)
	return s.server.ListenAndServe()
}

// Shutdown cancels running jobs, waits for their workers to record a final
// state, then gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down HTTP server", "running_jobs", len(s.jobManager.GetRunningJobs()))
	s.stopJobs()

	done := make(chan struct{})
	go func() {
		s.workers.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		slog.Warn("Timed out waiting for jobs to stop")
	}

	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// SubmitJob validates config and starts a job. warmStart and resumedFrom are
// set when resuming from a checkpoint.
func (s *Server) SubmitJob(config JobConfig, warmStart []int, resumedFrom string) (*Job, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if warmStart != nil {
		if _, err := tsp.NewTour(config.Cities, warmStart); err != nil {
			return nil, fmt.Errorf("invalid warm start: %w", err)
		}
	}

	job := s.jobManager.CreateJob(config)
	if resumedFrom != "" {
		s.jobManager.UpdateJob(job.ID, func(j *Job) {
			j.ResumedFrom = resumedFrom
		})
		job.ResumedFrom = resumedFrom
	}

	ctx, cancel := context.WithCancel(s.baseCtx)
	s.jobManager.setCancel(job.ID, cancel)

	s.workers.Add(1)
	go func() {
		defer s.workers.Done()
		defer cancel()
		if err := runJob(ctx, s.jobManager, s.store, job.ID, warmStart); err != nil && !errors.Is(err, context.Canceled) {
			slog.Debug("Job worker returned error", "job_id", job.ID, "error", err)
		}
	}()
	return job, nil
}

// handleJobs handles /api/v1/jobs
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateJob(w, r)
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.jobManager.ListJobs())
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleJobsWithID handles /api/v1/jobs/:id/*
func (s *Server) handleJobsWithID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/jobs/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "Job ID required", http.StatusBadRequest)
		return
	}

	jobID := parts[0]
	sub := ""
	if len(parts) > 1 {
		sub = parts[1]
	}

	switch sub {
	case "", "status":
		s.requireMethod(w, r, http.MethodGet, func() { s.handleGetJobStatus(w, r, jobID) })
	case "best":
		s.requireMethod(w, r, http.MethodGet, func() { s.handleGetBest(w, r, jobID) })
	case "stream":
		s.requireMethod(w, r, http.MethodGet, func() { s.handleJobStream(w, r, jobID) })
	case "trace":
		s.requireMethod(w, r, http.MethodGet, func() { s.handleGetTrace(w, r, jobID) })
	case "controls":
		s.requireMethod(w, r, http.MethodPost, func() { s.handleControls(w, r, jobID) })
	case "cancel":
		s.requireMethod(w, r, http.MethodPost, func() { s.handleCancel(w, r, jobID) })
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

func (s *Server) requireMethod(w http.ResponseWriter, r *http.Request, method string, next func()) {
	if r.Method != method {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	next()
}

// handleCreateJob handles POST /api/v1/jobs. Missing parameters take the
// solve defaults.
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	config := JobConfig{Params: solve.DefaultParams()}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&config); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}

	job, err := s.SubmitJob(config, nil, "")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	slog.Info("Job created", "job_id", job.ID, "mode", config.Mode, "cities", len(config.Cities))
	writeJSON(w, http.StatusCreated, job)
}

// handleGetJobStatus handles GET /api/v1/jobs/:id/status
func (s *Server) handleGetJobStatus(w http.ResponseWriter, r *http.Request, jobID string) {
	job, exists := s.jobManager.GetJob(jobID)
	if !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}

	elapsed := job.Elapsed()
	var stepsPerSec float64
	if elapsed > 0 {
		stepsPerSec = float64(job.Iterations) / elapsed.Seconds()
	}

	response := map[string]any{
		"id":            job.ID,
		"state":         job.State,
		"config":        job.Config,
		"bestLength":    job.BestLength,
		"initialLength": job.InitialLength,
		"iterations":    job.Iterations,
		"converged":     job.Converged,
		"elapsed":       elapsed.Seconds(),
		"stepsPerSec":   stepsPerSec,
		"startTime":     job.StartTime,
		"endTime":       job.EndTime,
		"error":         job.Error,
		"resumedFrom":   job.ResumedFrom,
	}
	if job.Params != nil {
		response["params"] = job.Params
	}
	if job.Stats != nil {
		response["stats"] = job.Stats
	}
	if job.Temperature > 0 {
		response["temperature"] = job.Temperature
	}
	if controls, ok := s.jobManager.Controls(jobID); ok && !job.State.Finished() {
		if pending := controls.Pending(); !pending.IsEmpty() {
			response["pendingControls"] = pending
		}
	}

	writeJSON(w, http.StatusOK, response)
}

// BestResponse is the exported best candidate of a job.
type BestResponse struct {
	Fitness    float64     `json:"fitness"`
	Length     float64     `json:"length"`
	Chromosome []tsp.Point `json:"chromosome"`
	Order      []int       `json:"order"`
}

// handleGetBest handles GET /api/v1/jobs/:id/best
func (s *Server) handleGetBest(w http.ResponseWriter, r *http.Request, jobID string) {
	job, exists := s.jobManager.GetJob(jobID)
	if !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	if len(job.BestOrder) == 0 {
		http.Error(w, "No results yet", http.StatusNotFound)
		return
	}

	tour, err := tsp.NewTour(job.Config.Cities, job.BestOrder)
	if err != nil {
		http.Error(w, fmt.Sprintf("Corrupt best tour: %v", err), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, BestResponse{
		Fitness:    tour.Fitness(),
		Length:     tour.Length(),
		Chromosome: tour.Points(),
		Order:      tour.Order(),
	})
}

// handleGetTrace handles GET /api/v1/jobs/:id/trace
func (s *Server) handleGetTrace(w http.ResponseWriter, r *http.Request, jobID string) {
	if s.store == nil {
		http.Error(w, "Traces are disabled", http.StatusNotFound)
		return
	}
	entries, err := s.store.LoadTrace(jobID)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "Trace not found", http.StatusNotFound)
		return
	} else if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleControls handles POST /api/v1/jobs/:id/controls. Updates are queued
// and take effect at the next generation boundary.
func (s *Server) handleControls(w http.ResponseWriter, r *http.Request, jobID string) {
	job, exists := s.jobManager.GetJob(jobID)
	if !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	if job.State.Finished() {
		http.Error(w, fmt.Sprintf("Job already %s", job.State), http.StatusConflict)
		return
	}

	var update solve.ControlUpdate
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&update); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}
	if update.IsEmpty() {
		http.Error(w, "No controls given", http.StatusBadRequest)
		return
	}

	controls, _ := s.jobManager.Controls(jobID)
	if err := controls.Update(update); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, opt.ErrInvalidConfig) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}

	slog.Info("Controls queued", "job_id", jobID)
	writeJSON(w, http.StatusAccepted, controls.Pending())
}

// handleCancel handles POST /api/v1/jobs/:id/cancel
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request, jobID string) {
	job, exists := s.jobManager.GetJob(jobID)
	if !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	if err := s.jobManager.CancelJob(jobID); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	slog.Info("Job cancellation requested", "job_id", jobID)
	writeJSON(w, http.StatusAccepted, map[string]any{"id": job.ID, "state": job.State})
}

// handleListCheckpoints handles GET /api/v1/checkpoints
func (s *Server) handleListCheckpoints(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.store == nil {
		writeJSON(w, http.StatusOK, []store.CheckpointInfo{})
		return
	}
	infos, err := s.store.ListCheckpoints()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, infos)
}

// handleCheckpointsWithID handles POST /api/v1/checkpoints/:id/resume.
// An optional JSON body overrides search parameters of the checkpointed
// config; the city set and mode must stay the same.
func (s *Server) handleCheckpointsWithID(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/v1/checkpoints/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "resume" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.store == nil {
		http.Error(w, "Checkpoints are disabled", http.StatusNotFound)
		return
	}

	checkpointID := parts[0]
	checkpoint, err := s.store.LoadCheckpoint(checkpointID)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "Checkpoint not found", http.StatusNotFound)
		return
	} else if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := checkpoint.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	config := checkpoint.Config
	config.Cities = append([]tsp.Point(nil), checkpoint.Config.Cities...)
	err = json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&config)
	if err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}
	if err := checkpoint.IsCompatible(config); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	job, err := s.SubmitJob(config, checkpoint.BestOrder, checkpointID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	slog.Info("Job resumed from checkpoint",
		"job_id", job.ID,
		"checkpoint", checkpointID,
		"best_length", checkpoint.BestLength,
	)
	writeJSON(w, http.StatusCreated, job)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// corsMiddleware adds CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
