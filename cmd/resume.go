package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/cwbudde/evotsp/internal/solve"
	"github.com/cwbudde/evotsp/internal/store"
	"github.com/spf13/cobra"
)

var (
	resumeDataDir string
	resumeServer  string
	resumeOutPath string
	resumeParams  *paramFlags
)

var resumeCmd = &cobra.Command{
	Use:   "resume <job-id>",
	Short: "Resume from checkpoint",
	Long: `Continues a checkpointed job from its best tour.

Runs locally and overwrites the checkpoint with the improved tour, or, with
--server, asks a running server to start a new job from the checkpoint.
Search flags override the checkpointed parameters; the city set and mode
must stay the same.`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

func init() {
	resumeCmd.Flags().StringVar(&resumeDataDir, "data-dir", "./data", "Checkpoint directory")
	resumeCmd.Flags().StringVar(&resumeServer, "server", "", "Resume on this server instead of locally")
	resumeCmd.Flags().StringVar(&resumeOutPath, "out", "", "Write result JSON to this file (default stdout)")
	resumeParams = addParamFlags(resumeCmd)
	rootCmd.AddCommand(resumeCmd)
}

func runResume(cmd *cobra.Command, args []string) error {
	jobID := args[0]
	if resumeServer != "" {
		return resumeOnServer(cmd, resumeServer, jobID)
	}

	st, err := store.NewFSStore(resumeDataDir)
	if err != nil {
		return fmt.Errorf("failed to open checkpoint store: %w", err)
	}

	cp, err := st.LoadCheckpoint(jobID)
	if err != nil {
		return err
	}
	if err := cp.Validate(); err != nil {
		return fmt.Errorf("checkpoint %s is invalid: %w", jobID, err)
	}

	config := cp.Config
	resumeParams.apply(cmd, &config.Params)
	if err := cp.IsCompatible(config); err != nil {
		return err
	}
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	slog.Info("Resuming from checkpoint",
		"job_id", jobID,
		"iteration", cp.Iteration,
		"best_length", cp.BestLength,
		"generations", config.Generations,
	)

	ctx, stop := interruptContext(cmd.Context())
	defer stop()

	progress, every := progressLogger(config.Generations)
	result, err := solve.Optimize(ctx, config.Cities, config.Params,
		solve.WithProgress(progress, every),
		solve.WithWarmStart(cp.BestOrder),
	)
	if err != nil {
		return err
	}

	// The checkpoint keeps the length the job started from and counts
	// iterations across resumes.
	result.InitialLength = cp.InitialLength
	updated := store.NewCheckpoint(jobID, result.BestOrder, result.BestLength, cp.InitialLength, cp.Iteration+result.Iterations, config)
	if err := st.SaveCheckpoint(jobID, updated); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	if err := writeResult(resumeOutPath, result); err != nil {
		return err
	}
	printSummary(os.Stderr, result)
	return nil
}

func resumeOnServer(cmd *cobra.Command, serverURL, jobID string) error {
	overrides, err := resumeParams.changed(cmd)
	if err != nil {
		return err
	}
	body, err := json.Marshal(overrides)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/api/v1/checkpoints/%s/resume", serverURL, jobID)
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %s: %s", resp.Status, bytes.TrimSpace(msg))
	}

	var job struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Resumed %s as job %s\n", jobID, job.ID)
	fmt.Fprintf(cmd.OutOrStdout(), "Follow with: evotsp status --server %s %s\n", serverURL, job.ID)
	return nil
}
