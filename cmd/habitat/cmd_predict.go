package main

import (
	"fmt"
	"path/filepath"

	"habitatcv/internal/data"
	"habitatcv/internal/experiment"
	"habitatcv/internal/persistence"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	predictModel  string
	predictInput  string
	predictOutput string
	predictFold   int
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Score a path table with a saved classifier",
	Long: `Loads classifier.gob written by evaluate and scores every row of a path
table with its outer-fold models. Writes application.csv with a presence
probability and a 0/1 prediction per fold, using each fold's own threshold.`,
	RunE: runPredict,
}

func init() {
	predictCmd.Flags().StringVarP(&predictModel, "model", "m", "", "saved classifier (default <output.dir>/classifier.gob)")
	predictCmd.Flags().StringVarP(&predictInput, "input", "i", "", "path table to score (default data.input)")
	predictCmd.Flags().StringVarP(&predictOutput, "output", "o", "", "output directory (default output.dir)")
	predictCmd.Flags().IntVar(&predictFold, "fold", 0, "apply only this outer fold's model")
}

func runPredict(cmd *cobra.Command, args []string) error {
	if predictModel == "" {
		predictModel = filepath.Join(cfg.Output.Dir, experiment.ClassifierFile)
	}
	if predictInput == "" {
		predictInput = cfg.Data.Input
	}
	if predictOutput == "" {
		predictOutput = cfg.Output.Dir
	}

	bundle, err := persistence.LoadModelBundle(predictModel)
	if err != nil {
		return err
	}

	schema := cfg.Schema()
	schema.Predictors = bundle.Metadata.Predictors
	ds, err := data.NewCSVReader(predictInput, schema).LoadData()
	if err != nil {
		return fmt.Errorf("failed to load data: %w", err)
	}

	app, err := experiment.Apply(bundle, ds, predictFold)
	if err != nil {
		return err
	}

	exporter, err := experiment.NewExporter(predictOutput)
	if err != nil {
		return err
	}
	if err := exporter.WriteApplication(app); err != nil {
		return err
	}

	fmt.Printf("Scored %d observations with run %s\n", ds.Len(), color.CyanString(bundle.Metadata.RunID))
	for k, it := range app.Iterations {
		positives := 0
		for _, p := range app.Prediction[k] {
			positives += p
		}
		fmt.Printf("  fold %d  threshold %s  %d predicted presences\n",
			it, color.YellowString("%.3f", app.Thresholds[k]), positives)
	}
	fmt.Println("Written to", filepath.Join(exporter.Dir, experiment.ApplicationFile))
	return nil
}
