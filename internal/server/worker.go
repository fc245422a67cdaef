package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cwbudde/evotsp/internal/solve"
	"github.com/cwbudde/evotsp/internal/store"
)

const (
	// progressInterval throttles SSE broadcasts to 2 updates per second.
	progressInterval = 500 * time.Millisecond

	// traceOrderLimit is the largest instance whose trace lines carry the tour.
	traceOrderLimit = 200

	// saReportEvery batches SA progress; a single move is too cheap to report.
	saReportEvery = 100
)

// runJob executes an optimization job in the background.
// If checkpointStore is not nil, the progress trace is written and, when the
// job has checkpointInterval > 0, periodic and final checkpoints are saved.
// warmStart seeds the search when resuming from a checkpoint.
func runJob(ctx context.Context, jm *JobManager, checkpointStore store.Store, jobID string, warmStart []int) error {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}
	controls, _ := jm.Controls(jobID)

	if err := jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateRunning
	}); err != nil {
		return err
	}
	jm.metrics.jobStarted()

	slog.Info("Starting job",
		"job_id", jobID,
		"mode", job.Config.Mode,
		"cities", len(job.Config.Cities),
		"generations", job.Config.Generations,
		"resumed_from", job.ResumedFrom,
	)

	var trace *store.TraceWriter
	if checkpointStore != nil {
		tw, err := checkpointStore.OpenTrace(jobID, warmStart != nil)
		if err != nil {
			slog.Warn("Trace disabled", "job_id", jobID, "error", err)
		} else {
			trace = tw
			defer trace.Close()
		}
	}

	progressDone := make(chan struct{})
	go monitorProgress(ctx, jm, jobID, progressDone)

	checkpointDone := make(chan struct{})
	if checkpointStore != nil && job.Config.CheckpointInterval > 0 {
		go monitorCheckpoints(ctx, jm, checkpointStore, jobID, checkpointDone)
	}

	reportEvery := 1
	if job.Config.Mode == solve.ModeSA {
		reportEvery = saReportEvery
	}
	lastIteration := 0
	onProgress := func(p solve.Progress) {
		steps := p.Iteration - lastIteration
		lastIteration = p.Iteration

		jm.UpdateJob(jobID, func(j *Job) {
			j.Iterations = p.Iteration
			j.BestLength = p.BestLength
			j.InitialLength = p.InitialLength
			j.BestOrder = p.BestOrder
			j.Params = p.Params
			j.Stats = p.Stats
			j.Temperature = p.Temperature
		})
		jm.metrics.progress(jobID, steps, p.BestLength)

		if trace != nil {
			entry := store.TraceEntry{
				Iteration:   p.Iteration,
				Length:      p.BestLength,
				Timestamp:   time.Now(),
				Temperature: p.Temperature,
			}
			if p.Stats != nil {
				entry.MeanFitness = p.Stats.Mean
			}
			if len(p.BestOrder) <= traceOrderLimit {
				entry.Order = p.BestOrder
			}
			if err := trace.Write(entry); err != nil {
				slog.Warn("Failed to write trace entry", "job_id", jobID, "error", err)
			}
		}
	}

	opts := []solve.Option{
		solve.WithProgress(onProgress, reportEvery),
		solve.WithControls(controls),
	}
	if warmStart != nil {
		opts = append(opts, solve.WithWarmStart(warmStart))
	}

	result, err := solve.Optimize(ctx, job.Config.Cities, job.Config.Params, opts...)

	close(progressDone)
	close(checkpointDone)

	if err != nil {
		markJobFailed(jm, jobID, err)
		return err
	}

	finalState := StateCompleted
	if result.Cancelled {
		finalState = StateCancelled
	}

	endTime := time.Now()
	if err := jm.UpdateJob(jobID, func(j *Job) {
		j.State = finalState
		j.BestOrder = result.BestOrder
		j.BestLength = result.BestLength
		j.InitialLength = result.InitialLength
		j.Iterations = result.Iterations
		j.Converged = result.Converged
		j.EndTime = &endTime
	}); err != nil {
		return err
	}
	jm.metrics.jobFinished(jobID, finalState)

	if checkpointStore != nil && job.Config.CheckpointInterval > 0 {
		if err := saveCheckpoint(jm, checkpointStore, jobID); err != nil {
			slog.Error("Failed to save final checkpoint", "job_id", jobID, "error", err)
		}
	}

	slog.Info("Job finished",
		"job_id", jobID,
		"state", finalState,
		"elapsed", result.Elapsed,
		"initial_length", result.InitialLength,
		"best_length", result.BestLength,
		"iterations", result.Iterations,
	)

	if final, ok := jm.GetJob(jobID); ok {
		jm.broadcaster.Broadcast(newProgressEvent(final))
	}
	if result.Cancelled {
		return ctx.Err()
	}
	return nil
}

// monitorProgress periodically broadcasts progress events during optimization
func monitorProgress(ctx context.Context, jm *JobManager, jobID string, done chan struct{}) {
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	lastIteration := -1
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			job, exists := jm.GetJob(jobID)
			if !exists {
				return
			}
			if job.Iterations == lastIteration {
				continue
			}
			lastIteration = job.Iterations
			jm.broadcaster.Broadcast(newProgressEvent(job))
		}
	}
}

// markJobFailed marks a job as failed with an error message
func markJobFailed(jm *JobManager, jobID string, err error) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateFailed
		j.Error = err.Error()
		j.EndTime = &endTime
	})
	jm.metrics.jobFinished(jobID, StateFailed)
	slog.Error("Job failed", "job_id", jobID, "error", err)

	if job, ok := jm.GetJob(jobID); ok {
		jm.broadcaster.Broadcast(newProgressEvent(job))
	}
}

// monitorCheckpoints periodically saves checkpoints during optimization
func monitorCheckpoints(ctx context.Context, jm *JobManager, checkpointStore store.Store, jobID string, done chan struct{}) {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return
	}

	ticker := time.NewTicker(time.Duration(job.Config.CheckpointInterval) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := saveCheckpoint(jm, checkpointStore, jobID); err != nil {
				slog.Error("Failed to save checkpoint", "job_id", jobID, "error", err)
			}
		}
	}
}

// saveCheckpoint saves a checkpoint for the given job
func saveCheckpoint(jm *JobManager, checkpointStore store.Store, jobID string) error {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	if len(job.BestOrder) == 0 {
		slog.Debug("Skipping checkpoint, no best tour yet", "job_id", jobID)
		return nil
	}

	checkpoint := store.NewCheckpoint(
		jobID,
		job.BestOrder,
		job.BestLength,
		job.InitialLength,
		job.Iterations,
		job.Config,
	)
	if err := checkpointStore.SaveCheckpoint(jobID, checkpoint); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	jm.metrics.checkpointSaved()

	slog.Info("Checkpoint saved",
		"job_id", jobID,
		"iteration", job.Iterations,
		"best_length", job.BestLength,
	)
	return nil
}
