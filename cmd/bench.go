package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"runtime"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/cwbudde/evotsp/internal/config"
	"github.com/cwbudde/evotsp/internal/solve"
	"github.com/dustin/go-humanize"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

var (
	benchRuns        int
	benchRandom      int
	benchConcurrency int
	benchModes       []string
	benchParams      *paramFlags
)

var benchCmd = &cobra.Command{
	Use:   "bench [cities-file]",
	Short: "Compare modes over several seeds",
	Long: `Runs each mode --runs times with seeds seed, seed+1, ... on the same
instance, concurrently, and prints a summary of the best lengths found.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBench,
}

func init() {
	benchCmd.Flags().IntVar(&benchRuns, "runs", 5, "Runs per mode")
	benchCmd.Flags().IntVar(&benchRandom, "random", 50, "Random instance size when no file is given")
	benchCmd.Flags().IntVar(&benchConcurrency, "concurrency", runtime.NumCPU(), "Runs executing at once")
	benchCmd.Flags().StringSliceVar(&benchModes, "modes", []string{string(solve.ModeGA), string(solve.ModeSA)}, "Modes to compare")
	benchParams = addParamFlags(benchCmd)
	rootCmd.AddCommand(benchCmd)
}

// benchSummary aggregates the runs of one mode.
type benchSummary struct {
	Mode    solve.Mode
	Runs    int
	Best    float64
	Mean    float64
	StdDev  float64
	Median  float64
	Worst   float64
	Elapsed time.Duration // mean wall time per run
}

func summarizeBench(mode solve.Mode, results []*solve.Result) benchSummary {
	lengths := make([]float64, len(results))
	var elapsed time.Duration
	for i, r := range results {
		lengths[i] = r.BestLength
		elapsed += r.Elapsed
	}
	sort.Float64s(lengths)

	s := benchSummary{Mode: mode, Runs: len(results)}
	if len(lengths) == 0 {
		return s
	}
	s.Best = floats.Min(lengths)
	s.Worst = floats.Max(lengths)
	s.Mean, s.StdDev = stat.MeanStdDev(lengths, nil)
	s.Median = stat.Quantile(0.5, stat.Empirical, lengths, nil)
	s.Elapsed = elapsed / time.Duration(len(results))
	return s
}

func runBench(cmd *cobra.Command, args []string) error {
	if benchRuns < 1 {
		return fmt.Errorf("--runs must be at least 1")
	}

	base := solve.DefaultParams()
	benchParams.apply(cmd, &base)
	if base.Seed == 0 {
		base.Seed = time.Now().UnixNano()
	}

	file := config.Default()
	if len(args) == 1 {
		file.CitiesPath = args[0]
	} else {
		file.Random = benchRandom
	}
	cities, err := file.LoadCities(rand.New(rand.NewSource(base.Seed)))
	if err != nil {
		return err
	}

	modes := make([]solve.Mode, len(benchModes))
	for i, name := range benchModes {
		m, err := solve.ParseMode(name)
		if err != nil {
			return err
		}
		p := base
		p.Mode = m
		if err := p.Validate(); err != nil {
			return fmt.Errorf("%s: %w", m, err)
		}
		modes[i] = m
	}

	ctx, stop := interruptContext(cmd.Context())
	defer stop()

	slog.Info("Starting benchmark",
		"cities", len(cities),
		"modes", benchModes,
		"runs", benchRuns,
		"concurrency", benchConcurrency,
	)

	results := make([][]*solve.Result, len(modes))
	errs := make([][]error, len(modes))
	p := pool.New().WithMaxGoroutines(max(1, benchConcurrency))
	for i, mode := range modes {
		results[i] = make([]*solve.Result, benchRuns)
		errs[i] = make([]error, benchRuns)
		for run := 0; run < benchRuns; run++ {
			params := base
			params.Mode = mode
			params.Seed = base.Seed + int64(run)
			p.Go(func() {
				results[i][run], errs[i][run] = solve.Optimize(ctx, cities, params)
			})
		}
	}
	p.Wait()

	summaries := make([]benchSummary, len(modes))
	for i, mode := range modes {
		var ok []*solve.Result
		for run, r := range results[i] {
			if errs[i][run] != nil {
				return fmt.Errorf("%s run %d: %w", mode, run, errs[i][run])
			}
			if r.Cancelled {
				return errors.New("benchmark interrupted")
			}
			ok = append(ok, r)
		}
		summaries[i] = summarizeBench(mode, ok)
	}

	printBench(cmd.OutOrStdout(), len(cities), summaries)
	return nil
}

func printBench(out io.Writer, cities int, summaries []benchSummary) {
	fmt.Fprintf(out, "%s cities\n\n", humanize.Comma(int64(cities)))
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "MODE\tRUNS\tBEST\tMEDIAN\tMEAN\tSTDDEV\tWORST\tTIME/RUN\t")
	for _, s := range summaries {
		fmt.Fprintf(w, "%s\t%d\t%.4f\t%.4f\t%.4f\t%.4f\t%.4f\t%s\t\n",
			s.Mode, s.Runs, s.Best, s.Median, s.Mean, s.StdDev, s.Worst, s.Elapsed.Round(time.Millisecond))
	}
	w.Flush()
}
