package main

import (
	"fmt"
	"io"

	"github.com/fxnlabs/gpubench/internal/config"
	"github.com/fxnlabs/gpubench/internal/gpu"
	"github.com/fxnlabs/gpubench/internal/metrics"
	"github.com/fxnlabs/gpubench/kernels"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func runCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run the benchmark (default)",
		Action: func(c *cli.Context) error {
			return runBenchmark(e.cfg, e.log, c.App.Writer)
		},
	}
}

// runBenchmark establishes the GL context and runs one pass. Failing to get
// a context is the only error; per-device failures end up in the report.
func runBenchmark(cfg *config.Config, log *zap.Logger, out io.Writer) error {
	dims := gpu.DefaultDimensions()

	glContext, err := gpu.NewGLContext()
	if err != nil {
		return fmt.Errorf("failed to establish OpenGL context: %w", err)
	}
	defer glContext.Close()
	log.Info("OpenGL context ready", zap.String("version", glContext.Version()))

	loader, glslPath, clPath := kernelSources(cfg, log)

	recorder := metrics.NewRecorder()
	recorder.SetDimensions(dims)

	manager, err := gpu.NewManager(dims,
		gpu.NewOpenGLBackend(dims, loader, glslPath, cfg.Kernels.WidthUniform, log.Named("opengl")),
		gpu.NewOpenCLPlatforms(log.Named("opencl")),
		gpu.NewOpenCLBackend(dims, loader, clPath, cfg.Kernels.EntryPoint, log.Named("opencl")),
		log.Named("manager"),
		gpu.WithObserver(recorder),
	)
	if err != nil {
		return err
	}

	return execute(out, cfg, log, manager, recorder)
}

// execute runs the manager and emits the report and metrics.
func execute(out io.Writer, cfg *config.Config, log *zap.Logger, manager *gpu.Manager, recorder *metrics.Recorder) error {
	if cfg.Report.Banner {
		printBanner(out, gpu.DefaultDimensions())
	}

	report := manager.Run()
	if err := writeReport(out, cfg.Report.Format, report); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if cfg.Metrics.Textfile != "" {
		if err := recorder.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			log.Error("failed to write metrics textfile", zap.String("path", cfg.Metrics.Textfile), zap.Error(err))
		} else {
			log.Debug("metrics written", zap.String("path", cfg.Metrics.Textfile))
		}
	}
	return nil
}

func kernelSources(cfg *config.Config, log *zap.Logger) (gpu.SourceLoader, string, string) {
	if cfg.Kernels.Source == config.KernelSourceEmbedded {
		return gpu.NewFSLoader(kernels.FS, log.Named("kernels")), kernels.GLSL, kernels.OpenCL
	}
	return gpu.NewFileLoader(log.Named("kernels")), cfg.Kernels.GLSL, cfg.Kernels.OpenCL
}
