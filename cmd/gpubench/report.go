package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/common-nighthawk/go-figure"
	"github.com/fxnlabs/gpubench/internal/config"
	"github.com/fxnlabs/gpubench/internal/gpu"
	"gopkg.in/yaml.v3"
)

func printBanner(w io.Writer, dims gpu.Dimensions) {
	myFigure := figure.NewFigure("gpubench", "", true)
	fmt.Fprintln(w, myFigure.String())
	fmt.Fprintf(w, "Benchmarking %dx%d Matrix Mul\n", dims.Width, dims.Width)
	fmt.Fprintln(w, strings.Repeat("=", 40))
}

func writeReport(w io.Writer, format string, report *gpu.Report) error {
	switch format {
	case config.ReportFormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return err
		}
		return enc.Close()
	case config.ReportFormatText, "":
		for _, e := range report.Entries {
			if _, err := fmt.Fprintln(w, formatEntry(e, report)); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

// formatEntry renders one entry as a single stable line:
// backend, device, milliseconds and the speedup against the baseline.
func formatEntry(e gpu.Entry, report *gpu.Report) string {
	device := e.Device
	if e.Platform != "" {
		device = fmt.Sprintf("%s [%s]", e.Device, e.Platform)
	}
	prefix := fmt.Sprintf("%-6s  %-48s", e.Backend, device)

	switch e.Status {
	case gpu.StatusFailed:
		// build logs span lines; keep the entry on one
		return fmt.Sprintf("%s  %13s  FAILED: %s", prefix, "-", strings.Join(strings.Fields(e.Error), " "))
	case gpu.StatusNoBaseline:
		return fmt.Sprintf("%s  %10.3f ms  %9.1f GFLOP/s  speedup n/a (baseline failed)", prefix, e.Millis, e.GFLOPS)
	case gpu.StatusNoSpeedup:
		return fmt.Sprintf("%s  %10.3f ms  %9.1f GFLOP/s  speedup n/a (zero duration)", prefix, e.Millis, e.GFLOPS)
	}

	if e.Baseline {
		return fmt.Sprintf("%s  %10.3f ms  %9.1f GFLOP/s  baseline", prefix, e.Millis, e.GFLOPS)
	}
	against := "baseline"
	if base, ok := report.Baseline(); ok {
		against = base.Backend
	}
	return fmt.Sprintf("%s  %10.3f ms  %9.1f GFLOP/s  %.2fx vs %s", prefix, e.Millis, e.GFLOPS, e.Speedup, against)
}
