package main

import (
	"fmt"

	"habitatcv/internal/evaluation"
	"habitatcv/internal/experiment"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	thresholdAt   float64
	thresholdStep int
)

var thresholdCmd = &cobra.Command{
	Use:   "threshold <prediction.csv>",
	Short: "Sweep presence thresholds over an exported prediction table",
	Long: `Reads the response and presence columns of a prediction table and reports
the threshold that minimises |sensitivity - specificity|. With --at, reports
the performance at one fixed threshold instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runThreshold,
}

func init() {
	thresholdCmd.Flags().Float64Var(&thresholdAt, "at", 0, "evaluate a single threshold")
	thresholdCmd.Flags().IntVar(&thresholdStep, "every", 0, "also print every n-th point of the sweep")
}

func runThreshold(cmd *cobra.Command, args []string) error {
	probs, labels, err := experiment.ReadPredictions(args[0])
	if err != nil {
		return err
	}

	var res evaluation.ThresholdResult
	if cmd.Flags().Changed("at") {
		res, err = evaluation.EvaluateThreshold(probs, labels, thresholdAt)
	} else {
		res, err = evaluation.OptimizeThreshold(probs, labels)
	}
	if err != nil {
		return err
	}

	if thresholdStep > 0 {
		curve, err := evaluation.ThresholdCurve(probs, labels)
		if err != nil {
			return err
		}
		fmt.Printf("%9s  %11s  %11s\n", "threshold", "sensitivity", "specificity")
		for i := thresholdStep - 1; i < len(curve); i += thresholdStep {
			p := curve[i]
			fmt.Printf("%9.3f  %11.4f  %11.4f\n", p.Threshold, p.Sensitivity, p.Specificity)
		}
		fmt.Println()
	}

	fmt.Printf("Threshold:   %s\n", color.GreenString("%.3f", res.Threshold))
	fmt.Printf("Sensitivity: %.4f\n", res.Sensitivity)
	fmt.Printf("Specificity: %.4f\n", res.Specificity)
	fmt.Printf("AUC:         %.4f\n", res.AUC)
	fmt.Printf("Accuracy:    %.4f\n", res.Accuracy)
	return nil
}
