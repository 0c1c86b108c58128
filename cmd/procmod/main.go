// Command procmod runs the built-in example models through the inference
// core. Run configurations are YAML files; see the run subcommand.
package main

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/stat"
	"gopkg.in/yaml.v3"

	"github.com/sjbertolani/procmod"
	"github.com/sjbertolani/procmod/models"
	"github.com/sjbertolani/procmod/trace"
)

// runConfig is the YAML surface of the run subcommand.
type runConfig struct {
	Model            string    `yaml:"model"`
	Method           string    `yaml:"method"`
	NSamples         int       `yaml:"nsamples"`
	Lag              int       `yaml:"lag"`
	TimeBudget       string    `yaml:"timebudget"`
	Temp             float64   `yaml:"temp"`
	Temps            []float64 `yaml:"temps"`
	TempSwapInterval int       `yaml:"tempswapinterval"`
	DepthBiased      bool      `yaml:"depthbiased"`
	Seed             uint64    `yaml:"seed"`
	Verbose          bool      `yaml:"verbose"`
}

var builtins = map[string]procmod.Program{
	"coin":      models.Coin(0.3),
	"gaussmean": models.GaussianMean(1.2, 0.5),
	"bimodal":   models.Bimodal(5),
	"valley":    models.BimodalValley(4),
	"truncunif": models.TruncatedUniform(0, 10, 7),
	"tree": models.Tree(models.TreeParams{
		ContinueProb: 0.6,
		BranchProb:   0.4,
		MaxSegments:  8,
		MaxDepth:     4,
		TargetSize:   12,
		SizeTol:      2,
	}),
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	root := &cobra.Command{
		Use:           "procmod",
		Short:         "trace-based MCMC inference over the built-in example models",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var configPath string
	run := &cobra.Command{
		Use:   "run",
		Short: "run a sampler described by a YAML config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			return runSampler(logger, cfg)
		},
	}
	run.Flags().StringVarP(&configPath, "config", "c", "", "path to the YAML run config")
	if err := run.MarkFlagRequired("config"); err != nil {
		panic(err)
	}

	list := &cobra.Command{
		Use:   "models",
		Short: "list the built-in models",
		Run: func(cmd *cobra.Command, args []string) {
			names := make([]string, 0, len(builtins))
			for name := range builtins {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Println(name)
			}
		},
	}

	root.AddCommand(run, list)
	if err := root.Execute(); err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (runConfig, error) {
	var cfg runConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", path, err)
	}
	if cfg.Method == "" {
		cfg.Method = "mh"
	}
	return cfg, nil
}

func runSampler(logger *slog.Logger, cfg runConfig) error {
	program, ok := builtins[cfg.Model]
	if !ok {
		return fmt.Errorf("unknown model %q (try the models subcommand)", cfg.Model)
	}
	var budget time.Duration
	if cfg.TimeBudget != "" {
		var err error
		budget, err = time.ParseDuration(cfg.TimeBudget)
		if err != nil {
			return fmt.Errorf("parsing timebudget: %w", err)
		}
	}

	logger.Info("starting run", "model", cfg.Model, "method", cfg.Method, "nsamples", cfg.NSamples)
	var values []float64
	collect := func(t trace.View) {
		if v, ok := t.ReturnValue().(float64); ok {
			values = append(values, v)
		} else if b, ok := t.ReturnValue().(bool); ok {
			if b {
				values = append(values, 1)
			} else {
				values = append(values, 0)
			}
		}
	}

	var stats procmod.Stats
	var err error
	switch cfg.Method {
	case "mh":
		stats, err = procmod.MH(program, nil, &procmod.MHOptions{
			NSamples:             cfg.NSamples,
			Lag:                  cfg.Lag,
			TimeBudget:           budget,
			Verbose:              cfg.Verbose,
			Temp:                 cfg.Temp,
			DepthBiasedVarSelect: cfg.DepthBiased,
			Seed:                 cfg.Seed,
			OnSample:             collect,
		})
	case "mhpt":
		stats, err = procmod.MHPT(program, nil, &procmod.PTOptions{
			NSamples:             cfg.NSamples,
			Lag:                  cfg.Lag,
			TimeBudget:           budget,
			Verbose:              cfg.Verbose,
			Temps:                cfg.Temps,
			TempSwapInterval:     cfg.TempSwapInterval,
			DepthBiasedVarSelect: cfg.DepthBiased,
			Seed:                 cfg.Seed,
			OnSample: func(t trace.View, temp float64) {
				if temp == 1 {
					collect(t)
				}
			},
		})
	case "reject":
		n := cfg.NSamples
		if n == 0 {
			n = 1000
		}
		var samples []any
		samples, err = procmod.RejectionSample(program, nil, n)
		for _, s := range samples {
			if v, ok := s.(float64); ok {
				values = append(values, v)
			}
		}
	case "forward":
		var v any
		v, err = procmod.ForwardSample(program, nil)
		if err == nil {
			fmt.Printf("%v\n", v)
			return nil
		}
	default:
		return fmt.Errorf("unknown method %q", cfg.Method)
	}
	if err != nil {
		return err
	}

	if len(values) > 0 {
		mean := stat.Mean(values, nil)
		sd := math.Sqrt(stat.Variance(values, nil))
		fmt.Printf("samples %d  mean %.4f  stddev %.4f\n", len(values), mean, sd)
	}
	if stats.Proposals > 0 {
		fmt.Printf("acceptance %.4f  elapsed %v  replay %.1f%%\n",
			stats.AcceptanceRate(), stats.Elapsed.Round(time.Millisecond), 100*stats.ReplayShare())
	}
	return nil
}
