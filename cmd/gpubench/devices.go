package main

import (
	"fmt"
	"io"

	"github.com/fxnlabs/gpubench/internal/gpu"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func devicesCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "devices",
		Usage: "List every OpenCL platform and device without running anything",
		Action: func(c *cli.Context) error {
			return listDevices(c.App.Writer, gpu.NewOpenCLPlatforms(e.log.Named("opencl")), e.log)
		},
	}
}

func listDevices(out io.Writer, src gpu.PlatformSource, log *zap.Logger) error {
	devices := gpu.ListDevices(src, log)
	if len(devices) == 0 {
		_, err := fmt.Fprintln(out, "No OpenCL devices found")
		return err
	}

	for i, d := range devices {
		info := d.Info()
		status := ""
		if !info.Available {
			status = " (unavailable)"
		}
		if _, err := fmt.Fprintf(out, "%2d  %-36s  %s%s\n", i, info.Platform, info.Name, status); err != nil {
			return err
		}
	}
	return nil
}
