package main

import (
	"fmt"
	"strings"
	"time"

	"habitatcv/internal/evaluation"
	"habitatcv/internal/experiment"
	"habitatcv/internal/registry"
	"habitatcv/internal/runs"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	evalInput     string
	evalOutput    string
	evalWorkers   int
	evalInnerSeed int64
	evalNoRecord  bool
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Run nested cross-validation and write predictions, thresholds and models",
	Long: `Loads the path table, keeps the configured calf status, shuffles, and runs
nested stratified cross-validation. Writes prediction.csv, threshold.txt,
metrics.yaml, variable_correlation.csv and classifier.gob to the output
directory and records the run in the registry.`,
	RunE: runEvaluate,
}

func init() {
	evaluateCmd.Flags().StringVarP(&evalInput, "input", "i", "", "input CSV (overrides data.input)")
	evaluateCmd.Flags().StringVarP(&evalOutput, "output", "o", "", "output directory (overrides output.dir)")
	evaluateCmd.Flags().IntVarP(&evalWorkers, "workers", "w", 0, "concurrent outer folds (overrides cv.workers)")
	evaluateCmd.Flags().Int64Var(&evalInnerSeed, "inner-seed", 0, "fix the inner split seed (overrides cv.inner_seed)")
	evaluateCmd.Flags().BoolVar(&evalNoRecord, "no-record", false, "do not write the run to the registry")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	if evalInput != "" {
		cfg.Data.Input = evalInput
	}
	if evalOutput != "" {
		cfg.Output.Dir = evalOutput
	}
	if cmd.Flags().Changed("workers") {
		cfg.CV.Workers = evalWorkers
	}
	if cmd.Flags().Changed("inner-seed") {
		seed := evalInnerSeed
		cfg.CV.InnerSeed = &seed
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	var recorder runs.Recorder
	if !evalNoRecord {
		store, err := registry.Open(cfg.Registry.Path)
		if err != nil {
			return err
		}
		defer store.Close()
		recorder = store
	}

	tracker := runs.NewTracker(recorder)
	stop := tracker.CancelOnDone(cmd.Context())
	report, err := experiment.NewRunner(cfg, tracker).Run(cmd.Context())
	stop()
	if err != nil {
		return err
	}

	printReport(report)
	return nil
}

func printReport(report *experiment.Report) {
	cyan := color.New(color.FgCyan).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	fmt.Println()
	fmt.Println(bold("=== Nested cross-validation ==="))
	fmt.Printf("Run:          %s\n", cyan(report.RunID))
	fmt.Printf("Observations: %d\n", report.Dataset.Len())
	fmt.Println()

	fmt.Println(bold("Outer folds"))
	for _, fold := range report.Results.Folds {
		fmt.Printf("  %d  %-38s threshold %s  inner AUC %.4f\n",
			fold.Iteration, fold.Search.Best.String(),
			yellow(fmt.Sprintf("%.3f", fold.Threshold)), fold.Inner.AUC)
	}
	fmt.Println()

	fmt.Println(bold("Pooled performance"))
	printSummary(report.Results.Summary)
	fmt.Printf("\nArtefacts written to %s (%s)\n", cyan(report.OutputDir), report.Elapsed.Round(time.Millisecond))

	log.Debug().Str("run_id", report.RunID).Msg("report printed")
}

func printSummary(s evaluation.Summary) {
	for _, line := range strings.Split(strings.TrimRight(s.FormatMetrics(), "\n"), "\n") {
		fmt.Println("  " + line)
	}
}
