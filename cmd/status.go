package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"text/tabwriter"
	"time"

	"github.com/cwbudde/evotsp/internal/solve"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	serverURL string
)

var statusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Query server status or specific job",
	Long: `Queries the server for job status information.
If no job-id is provided, lists all jobs.
If job-id is provided, shows detailed status for that job.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	rootCmd.AddCommand(statusCmd)
}

// jobStatus mirrors the fields of GET /api/v1/jobs/:id/status the CLI prints.
type jobStatus struct {
	ID     string `json:"id"`
	State  string `json:"state"`
	Config struct {
		Cities []json.RawMessage `json:"cities"`
		solve.Params
	} `json:"config"`
	BestLength    float64 `json:"bestLength"`
	InitialLength float64 `json:"initialLength"`
	Iterations    int     `json:"iterations"`
	Converged     bool    `json:"converged"`
	Elapsed       float64 `json:"elapsed"`
	StepsPerSec   float64 `json:"stepsPerSec"`
	Temperature   float64 `json:"temperature"`
	Error         string  `json:"error"`
	ResumedFrom   string  `json:"resumedFrom"`

	Params *struct {
		CrossoverRate   float64 `json:"crossoverRate"`
		MutationRate    float64 `json:"mutationRate"`
		Elitism         float64 `json:"elitism"`
		SelectionTarget float64 `json:"selectionTarget"`
	} `json:"params"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return listJobs(cmd.OutOrStdout(), fmt.Sprintf("%s/api/v1/jobs", serverURL))
	}
	jobID := args[0]
	return getJobStatus(cmd.OutOrStdout(), fmt.Sprintf("%s/api/v1/jobs/%s/status", serverURL, jobID), jobID)
}

func fetchJSON(url string, v any) (int, error) {
	resp, err := http.Get(url)
	if err != nil {
		return 0, fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, fmt.Errorf("server returned error: %s", string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp.StatusCode, nil
}

func listJobs(out io.Writer, url string) error {
	var jobs []jobStatus
	if _, err := fetchJSON(url, &jobs); err != nil {
		return err
	}

	if len(jobs) == 0 {
		fmt.Fprintln(out, "No jobs found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "JOB ID\tSTATE\tMODE\tCITIES\tITERATIONS\tLENGTH")
	for _, job := range jobs {
		length := "-"
		if job.BestLength > 0 {
			length = fmt.Sprintf("%.4f -> %.4f", job.InitialLength, job.BestLength)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			job.ID, job.State, job.Config.Mode, len(job.Config.Cities),
			humanize.Comma(int64(job.Iterations)), length)
	}
	w.Flush()

	fmt.Fprintf(out, "\n%d job(s)\n", len(jobs))
	return nil
}

func getJobStatus(out io.Writer, url, jobID string) error {
	var status jobStatus
	code, err := fetchJSON(url, &status)
	if code == http.StatusNotFound {
		return fmt.Errorf("job not found: %s", jobID)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Job: %s\n", status.ID)
	fmt.Fprintf(out, "State: %s\n", status.State)
	if status.ResumedFrom != "" {
		fmt.Fprintf(out, "Resumed from: %s\n", status.ResumedFrom)
	}
	fmt.Fprintln(out)

	cfg := status.Config
	fmt.Fprintln(out, "Configuration:")
	fmt.Fprintf(out, "  Mode: %s\n", cfg.Mode)
	fmt.Fprintf(out, "  Cities: %d\n", len(cfg.Cities))
	fmt.Fprintf(out, "  Generations: %s\n", humanize.Comma(int64(cfg.Generations)))
	if cfg.Mode != solve.ModeSA {
		fmt.Fprintf(out, "  Population: %d\n", cfg.PopSize)
	}
	if cfg.Mode == solve.ModeGA {
		fmt.Fprintf(out, "  Selection: %s\n", cfg.Selection)
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Progress:")
	fmt.Fprintf(out, "  Iterations: %s\n", humanize.Comma(int64(status.Iterations)))
	if status.InitialLength > 0 {
		fmt.Fprintf(out, "  Initial Length: %.4f\n", status.InitialLength)
	}
	if status.BestLength > 0 {
		fmt.Fprintf(out, "  Best Length: %.4f\n", status.BestLength)
		if status.InitialLength > 0 {
			improvement := status.InitialLength - status.BestLength
			fmt.Fprintf(out, "  Improvement: %.4f (%.1f%%)\n", improvement, 100*improvement/status.InitialLength)
		}
	}
	elapsed := time.Duration(status.Elapsed * float64(time.Second))
	fmt.Fprintf(out, "  Elapsed: %s\n", elapsed.Round(time.Millisecond))
	if status.StepsPerSec > 0 {
		fmt.Fprintf(out, "  Throughput: %s it/s\n", humanize.CommafWithDigits(status.StepsPerSec, 0))
	}
	if status.Temperature > 0 {
		fmt.Fprintf(out, "  Temperature: %.4g\n", status.Temperature)
	}
	if status.Converged {
		fmt.Fprintln(out, "  Converged: yes")
	}

	if p := status.Params; p != nil {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Live parameters:")
		fmt.Fprintf(out, "  Crossover: %.3f  Mutation: %.3f  Elitism: %.3f  Selection target: %.3f\n",
			p.CrossoverRate, p.MutationRate, p.Elitism, p.SelectionTarget)
	}

	if status.Error != "" {
		fmt.Fprintf(out, "\nError: %s\n", status.Error)
	}
	return nil
}
