package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"habitatcv/internal/experiment"
	"habitatcv/internal/registry"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	runsLimit  int
	runsDelete bool
)

var runsCmd = &cobra.Command{
	Use:   "runs [run-id]",
	Short: "List recorded evaluation runs, show one, or delete one",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRuns,
}

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "maximum runs to list")
	runsCmd.Flags().BoolVar(&runsDelete, "delete", false, "remove the given run from the registry")
}

func runRuns(cmd *cobra.Command, args []string) error {
	store, err := registry.Open(cfg.Registry.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	if runsDelete {
		if len(args) != 1 {
			return fmt.Errorf("--delete needs a run id")
		}
		if err := store.Delete(args[0]); err != nil {
			return err
		}
		fmt.Println("Deleted run", args[0])
		return nil
	}

	if len(args) == 1 {
		rec, err := store.Get(args[0])
		if err != nil {
			return err
		}
		printRecord(rec)
		return nil
	}

	records, err := store.List()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No runs recorded in", cfg.Registry.Path)
		return nil
	}
	if runsLimit > 0 && len(records) > runsLimit {
		records = records[:runsLimit]
	}

	fmt.Printf("%-36s  %-10s  %-16s  %5s  %7s  %8s\n", "ID", "STATUS", "STARTED", "N", "AUC", "ACCURACY")
	for _, rec := range records {
		fmt.Printf("%-36s  %-10s  %-16s  %5d  %7.4f  %8.4f\n",
			rec.ID, statusColor(rec.Status), rec.StartTime.Local().Format("2006-01-02 15:04"),
			rec.N, rec.AUC, rec.Accuracy)
	}
	return nil
}

func printRecord(rec registry.Record) {
	fmt.Printf("Run:       %s\n", rec.ID)
	fmt.Printf("Status:    %s\n", statusColor(rec.Status))
	fmt.Printf("Input:     %s\n", rec.Input)
	fmt.Printf("Output:    %s\n", rec.OutputDir)
	fmt.Printf("Started:   %s\n", rec.StartTime.Local().Format(time.RFC3339))
	if !rec.EndTime.IsZero() {
		fmt.Printf("Duration:  %s\n", rec.EndTime.Sub(rec.StartTime).Round(time.Second))
	}
	if rec.Error != "" {
		fmt.Printf("Error:     %s\n", color.RedString(rec.Error))
		return
	}

	fmt.Printf("N:         %d\n", rec.N)
	fmt.Printf("AUC:       %.4f\n", rec.AUC)
	fmt.Printf("Accuracy:  %.4f\n", rec.Accuracy)
	fmt.Printf("Sens/Spec: %.4f / %.4f\n", rec.Sensitivity, rec.Specificity)

	thresholds := make([]string, len(rec.Thresholds))
	for i, t := range rec.Thresholds {
		thresholds[i] = fmt.Sprintf("%.3f", t)
	}
	fmt.Printf("Thresholds: %s\n", strings.Join(thresholds, " "))

	// metrics.yaml carries the per-fold detail while the output directory
	// still holds this run's artefacts
	metrics, err := experiment.ReadMetrics(filepath.Join(rec.OutputDir, experiment.MetricsFile))
	if err == nil && metrics.RunID == rec.ID {
		for _, fm := range metrics.Folds {
			fmt.Printf("  fold %d: %s  search AUC %.4f  inner AUC %.4f  nonzero %d\n",
				fm.Iteration, fm.Params, fm.SearchAUC, fm.InnerAUC, fm.NonZero)
		}
		return
	}
	for i := 1; i <= len(rec.Thresholds); i++ {
		if p, ok := rec.Params[fmt.Sprintf("fold_%d", i)]; ok {
			fmt.Printf("  fold %d: %s\n", i, p)
		}
	}
}

func statusColor(status string) string {
	switch status {
	case "completed":
		return color.GreenString(status)
	case "failed":
		return color.RedString(status)
	case "cancelled":
		return color.YellowString(status)
	default:
		return status
	}
}
