package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"habitatcv/internal/data"
	"habitatcv/internal/evaluation"
	"habitatcv/internal/models"
	"habitatcv/internal/preprocessing"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Data     DataConfig     `yaml:"data"`
	CV       CVConfig       `yaml:"cv"`
	Grid     GridConfig     `yaml:"grid"`
	Model    ModelConfig    `yaml:"model"`
	Output   OutputConfig   `yaml:"output"`
	Registry RegistryConfig `yaml:"registry"`
	Log      LogConfig      `yaml:"log"`
}

type DataConfig struct {
	Input       string   `yaml:"input"`
	CalfStatus  int      `yaml:"calf_status"`
	ShuffleSeed int64    `yaml:"shuffle_seed"`
	Predictors  []string `yaml:"predictors"`
}

type CVConfig struct {
	OuterFolds  int    `yaml:"outer_folds"`
	InnerFolds  int    `yaml:"inner_folds"`
	SearchFolds int    `yaml:"search_folds"`
	OuterSeed   int64  `yaml:"outer_seed"`
	InnerSeed   *int64 `yaml:"inner_seed"`
	Workers     int    `yaml:"workers"`
}

type GridConfig struct {
	Penalty []string  `yaml:"penalty"`
	C       []float64 `yaml:"c"`
	Solver  []string  `yaml:"solver"`
}

type ModelConfig struct {
	MaxIter int     `yaml:"max_iter"`
	Tol     float64 `yaml:"tol"`
	Scale   string  `yaml:"scale"`
}

type OutputConfig struct {
	Dir string `yaml:"dir"`
}

type RegistryConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

func Default() Config {
	nested := evaluation.DefaultNestedConfig()
	model := models.DefaultConfig()
	grid := evaluation.DefaultParamGrid()

	return Config{
		Data: DataConfig{
			Input:       "data/paths.csv",
			CalfStatus:  1,
			ShuffleSeed: 21,
			Predictors:  data.DefaultSchema().Predictors,
		},
		CV: CVConfig{
			OuterFolds: nested.OuterFolds,
			InnerFolds: nested.InnerFolds,
			OuterSeed:  nested.OuterSeed,
			Workers:    nested.Workers,
		},
		Grid: GridConfig{
			Penalty: grid.Penalties,
			C:       grid.C,
			Solver:  grid.Solvers,
		},
		Model: ModelConfig{
			MaxIter: model.MaxIter,
			Tol:     model.Tol,
			Scale:   model.Scale,
		},
		Output:   OutputConfig{Dir: "output"},
		Registry: RegistryConfig{Path: "habitat-runs.db"},
		Log:      LogConfig{Level: "info"},
	}
}

// Load reads the YAML file at path over the defaults, then applies a .env
// file if present and the HABITAT_* environment overrides. An empty path
// skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Data.Input = getEnvOrDefault("HABITAT_INPUT", c.Data.Input)
	c.Output.Dir = getEnvOrDefault("HABITAT_OUTPUT_DIR", c.Output.Dir)
	c.Registry.Path = getEnvOrDefault("HABITAT_REGISTRY_PATH", c.Registry.Path)
	c.Log.Level = getEnvOrDefault("HABITAT_LOG_LEVEL", c.Log.Level)

	if v := os.Getenv("HABITAT_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HABITAT_WORKERS: %w", err)
		}
		c.CV.Workers = n
	}
	if v := os.Getenv("HABITAT_INNER_SEED"); v != "" {
		if strings.EqualFold(v, "none") {
			c.CV.InnerSeed = nil
			return nil
		}
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("HABITAT_INNER_SEED: %w", err)
		}
		c.CV.InnerSeed = &seed
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func (c Config) Validate() error {
	if c.Data.Input == "" {
		return fmt.Errorf("data.input cannot be empty")
	}
	if c.CV.OuterFolds < 2 {
		return fmt.Errorf("cv.outer_folds must be at least 2, got %d", c.CV.OuterFolds)
	}
	if c.CV.InnerFolds < 2 {
		return fmt.Errorf("cv.inner_folds must be at least 2, got %d", c.CV.InnerFolds)
	}
	if c.CV.SearchFolds != 0 && c.CV.SearchFolds < 2 {
		return fmt.Errorf("cv.search_folds must be 0 or at least 2, got %d", c.CV.SearchFolds)
	}
	if c.CV.Workers < 0 {
		return fmt.Errorf("cv.workers cannot be negative, got %d", c.CV.Workers)
	}

	if len(c.Grid.Penalty) == 0 || len(c.Grid.C) == 0 || len(c.Grid.Solver) == 0 {
		return fmt.Errorf("grid must name at least one penalty, C and solver")
	}
	for _, p := range c.ParamGrid().Expand() {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("grid: %w", err)
		}
	}

	if c.Model.MaxIter <= 0 {
		return fmt.Errorf("model.max_iter must be positive, got %d", c.Model.MaxIter)
	}
	if c.Model.Tol <= 0 {
		return fmt.Errorf("model.tol must be positive, got %g", c.Model.Tol)
	}
	switch c.Model.Scale {
	case "", "raw", preprocessing.ScaleNone, preprocessing.ScaleStandard, preprocessing.ScaleMinMax:
	default:
		return fmt.Errorf("model.scale %q is not one of none, standard, minmax", c.Model.Scale)
	}

	if c.Output.Dir == "" {
		return fmt.Errorf("output.dir cannot be empty")
	}
	return nil
}

func (c Config) ParamGrid() evaluation.ParamGrid {
	return evaluation.ParamGrid{
		Penalties: c.Grid.Penalty,
		C:         c.Grid.C,
		Solvers:   c.Grid.Solver,
	}
}

func (c Config) ModelConfig() models.ModelConfig {
	return models.ModelConfig{
		MaxIter: c.Model.MaxIter,
		Tol:     c.Model.Tol,
		Scale:   c.Model.Scale,
	}
}

func (c Config) Nested() evaluation.NestedConfig {
	return evaluation.NestedConfig{
		OuterFolds:  c.CV.OuterFolds,
		InnerFolds:  c.CV.InnerFolds,
		SearchFolds: c.CV.SearchFolds,
		OuterSeed:   c.CV.OuterSeed,
		InnerSeed:   c.CV.InnerSeed,
		Workers:     c.CV.Workers,
		Grid:        c.ParamGrid(),
		Model:       c.ModelConfig(),
	}
}

func (c Config) Schema() data.Schema {
	schema := data.DefaultSchema()
	if len(c.Data.Predictors) > 0 {
		schema.Predictors = c.Data.Predictors
	}
	return schema
}
