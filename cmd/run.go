package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cwbudde/evotsp/internal/config"
	"github.com/cwbudde/evotsp/internal/solve"
	"github.com/cwbudde/evotsp/internal/store"
	"github.com/cwbudde/evotsp/internal/tsp"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	runConfigPath string
	runRandom     int
	runOutPath    string
	runCheckpoint bool
	runDataDir    string
	runParams     *paramFlags
)

var runCmd = &cobra.Command{
	Use:   "run [cities-file]",
	Short: "Run single-shot optimization",
	Long: `Runs one optimization and writes the result as JSON.

Cities come from a file argument (.json, .yaml, .tsp), --random N or the
cities/cities_path/random keys of a --config YAML file. Flags given on the
command line override values from the config file.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runOptimization,
}

func init() {
	runCmd.Flags().StringVar(&runConfigPath, "config", "", "YAML run file")
	runCmd.Flags().IntVar(&runRandom, "random", 0, "Generate N random cities instead of reading a file")
	runCmd.Flags().StringVar(&runOutPath, "out", "", "Write result JSON to this file (default stdout)")
	runCmd.Flags().BoolVar(&runCheckpoint, "checkpoint", false, "Save the final tour as a resumable checkpoint")
	runCmd.Flags().StringVar(&runDataDir, "data-dir", "./data", "Checkpoint directory")
	runParams = addParamFlags(runCmd)

	rootCmd.AddCommand(runCmd)
}

// runFile merges the config file, positional argument and flags.
func runFile(cmd *cobra.Command, args []string) (*config.File, error) {
	file := config.Default()
	if runConfigPath != "" {
		loaded, err := config.Load(runConfigPath)
		if err != nil {
			return nil, err
		}
		file = loaded
	}

	runParams.apply(cmd, &file.Params)
	if len(args) == 1 {
		file.Cities, file.CitiesPath, file.Random = nil, args[0], 0
	}
	if cmd.Flags().Changed("random") {
		file.Cities, file.CitiesPath, file.Random = nil, "", runRandom
	}
	if cmd.Flags().Changed("data-dir") || file.DataDir == "" {
		file.DataDir = runDataDir
	}

	if err := file.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return file, nil
}

func runOptimization(cmd *cobra.Command, args []string) error {
	file, err := runFile(cmd, args)
	if err != nil {
		return err
	}

	// Random instances are reproducible from the run seed.
	cities, err := file.LoadCities(rand.New(rand.NewSource(file.Seed)))
	if err != nil {
		return err
	}

	slog.Info("Starting optimization",
		"mode", file.Mode,
		"cities", len(cities),
		"generations", file.Generations,
		"pop", file.PopSize,
		"seed", file.Seed,
	)

	ctx, stop := interruptContext(cmd.Context())
	defer stop()

	progress, every := progressLogger(file.Generations)
	result, err := solve.Optimize(ctx, cities, file.Params, solve.WithProgress(progress, every))
	if err != nil {
		return err
	}

	if runCheckpoint {
		jobID := uuid.New().String()
		if err := saveRunCheckpoint(file.DataDir, jobID, cities, file, result); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Checkpoint saved: %s (resume with: evotsp resume %s)\n", jobID, jobID)
	}

	if err := writeResult(runOutPath, result); err != nil {
		return err
	}
	printSummary(os.Stderr, result)
	return nil
}

func saveRunCheckpoint(dataDir, jobID string, cities []tsp.Point, file *config.File, result *solve.Result) error {
	st, err := store.NewFSStore(dataDir)
	if err != nil {
		return fmt.Errorf("failed to open checkpoint store: %w", err)
	}
	jobConfig := store.JobConfig{
		Cities:             cities,
		Params:             file.Params,
		CheckpointInterval: file.CheckpointInterval,
	}
	cp := store.NewCheckpoint(jobID, result.BestOrder, result.BestLength, result.InitialLength, result.Iterations, jobConfig)
	if err := st.SaveCheckpoint(jobID, cp); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// writeResult writes indented result JSON to path, or stdout if path is empty.
func writeResult(path string, result *solve.Result) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	data = append(data, '\n')

	if path == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	return nil
}

func printSummary(w io.Writer, result *solve.Result) {
	improvement := 0.0
	if result.InitialLength > 0 {
		improvement = 100 * (result.InitialLength - result.BestLength) / result.InitialLength
	}
	rate := float64(result.Iterations) / max(result.Elapsed.Seconds(), 1e-9)

	status := ""
	switch {
	case result.Cancelled:
		status = " (interrupted)"
	case result.Converged:
		status = " (converged)"
	}

	fmt.Fprintf(w, "Length %.4f -> %.4f (%.1f%% shorter) after %s iterations in %s, %s it/s%s\n",
		result.InitialLength, result.BestLength, improvement,
		humanize.Comma(int64(result.Iterations)),
		result.Elapsed.Round(time.Millisecond),
		humanize.CommafWithDigits(rate, 0),
		status,
	)
}

// interruptContext cancels on SIGINT or SIGTERM.
func interruptContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
