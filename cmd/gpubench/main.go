package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/fxnlabs/gpubench/internal/config"
	"github.com/fxnlabs/gpubench/internal/logger"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func init() {
	// A GL context is current on exactly one OS thread; keep main on it.
	runtime.LockOSThread()
}

// env is filled in by the app's Before hook and shared by all commands.
type env struct {
	cfg *config.Config
	log *zap.Logger
}

func main() {
	e := &env{}

	app := &cli.App{
		Name:  "gpubench",
		Usage: "Benchmark 1024x1024 matrix multiplication on OpenGL and every OpenCL device",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "Load configuration from `FILE` (optional)",
				EnvVars: []string{"GPUBENCH_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "verbosity",
				Usage:   "Log level: debug, info, warn, error",
				EnvVars: []string{"GPUBENCH_VERBOSITY"},
			},
			&cli.StringFlag{
				Name:    "log-encoding",
				Usage:   "Log encoding: console or json",
				EnvVars: []string{"GPUBENCH_LOG_ENCODING"},
			},
			&cli.StringFlag{
				Name:    "format",
				Usage:   "Report format: text or yaml",
				EnvVars: []string{"GPUBENCH_FORMAT"},
			},
			&cli.BoolFlag{
				Name:    "banner",
				Usage:   "Print a banner and header before the report",
				EnvVars: []string{"GPUBENCH_BANNER"},
			},
			&cli.StringFlag{
				Name:    "metrics-textfile",
				Usage:   "Write Prometheus metrics to `FILE` after the run",
				EnvVars: []string{"GPUBENCH_METRICS_TEXTFILE"},
			},
			&cli.StringFlag{
				Name:    "kernel-source",
				Usage:   "Where kernels come from: file or embedded",
				EnvVars: []string{"GPUBENCH_KERNEL_SOURCE"},
			},
			&cli.StringFlag{
				Name:    "glsl",
				Usage:   "Path of the GLSL compute shader",
				EnvVars: []string{"GPUBENCH_GLSL"},
			},
			&cli.StringFlag{
				Name:    "opencl",
				Usage:   "Path of the OpenCL kernel source",
				EnvVars: []string{"GPUBENCH_OPENCL"},
			},
		},
		Before: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			zapLogger, err := logger.New(cfg.Logger.Verbosity, cfg.Logger.Encoding)
			if err != nil {
				return err
			}
			e.cfg = cfg
			e.log = zapLogger.Named("gpubench")
			return nil
		},
		After: func(c *cli.Context) error {
			if e.log != nil {
				_ = e.log.Sync()
			}
			return nil
		},
		Action: func(c *cli.Context) error {
			return runBenchmark(e.cfg, e.log, c.App.Writer)
		},
		Commands: []*cli.Command{
			runCommand(e),
			devicesCommand(e),
			initConfigCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		if e.log != nil {
			e.log.Fatal("failed to run gpubench", zap.Error(err))
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the optional config file and applies flag overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		var err error
		cfg, err = config.LoadConfig(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config %s: %w", path, err)
		}
	}

	if c.IsSet("verbosity") {
		cfg.Logger.Verbosity = c.String("verbosity")
	}
	if c.IsSet("log-encoding") {
		cfg.Logger.Encoding = c.String("log-encoding")
	}
	if c.IsSet("format") {
		cfg.Report.Format = c.String("format")
	}
	if c.IsSet("banner") {
		cfg.Report.Banner = c.Bool("banner")
	}
	if c.IsSet("metrics-textfile") {
		cfg.Metrics.Textfile = c.String("metrics-textfile")
	}
	if c.IsSet("kernel-source") {
		cfg.Kernels.Source = c.String("kernel-source")
	}
	if c.IsSet("glsl") {
		cfg.Kernels.GLSL = c.String("glsl")
	}
	if c.IsSet("opencl") {
		cfg.Kernels.OpenCL = c.String("opencl")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
