package main

import (
	"fmt"
	"math"

	"habitatcv/internal/experiment"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var correlateMin float64

var correlateCmd = &cobra.Command{
	Use:   "correlate",
	Short: "Write the predictor correlation matrix without running the evaluation",
	RunE:  runCorrelate,
}

func init() {
	correlateCmd.Flags().Float64Var(&correlateMin, "min", 0.7, "print predictor pairs with |r| at or above this value")
}

func runCorrelate(cmd *cobra.Command, args []string) error {
	ds, err := experiment.NewRunner(cfg, nil).LoadDataset()
	if err != nil {
		return err
	}

	cm, err := experiment.Correlate(ds)
	if err != nil {
		return err
	}

	exporter, err := experiment.NewExporter(cfg.Output.Dir)
	if err != nil {
		return err
	}
	if err := exporter.WriteCorrelation(cm); err != nil {
		return err
	}

	fmt.Printf("Correlation of %d predictors over %d observations written to %s\n",
		len(cm.Names), ds.Len(), exporter.Dir)
	for i := range cm.Names {
		for j := i + 1; j < len(cm.Names); j++ {
			if r := cm.Values[i][j]; math.Abs(r) >= correlateMin {
				fmt.Printf("  %s ~ %s: %s\n", cm.Names[i], cm.Names[j], color.YellowString("%.3f", r))
			}
		}
	}
	return nil
}
