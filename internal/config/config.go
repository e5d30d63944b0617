package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	KernelSourceFile     = "file"
	KernelSourceEmbedded = "embedded"

	ReportFormatText = "text"
	ReportFormatYAML = "yaml"
)

// Config holds everything about a run that is not the matrix shape. The
// matrix dimension is a compile-time constant and deliberately absent here.
type Config struct {
	Logger struct {
		Verbosity string `yaml:"verbosity"`
		Encoding  string `yaml:"encoding"`
	} `yaml:"logger"`
	Kernels struct {
		// Source is "file" to read GLSL/OpenCL from disk or "embedded" to use
		// the kernels compiled into the binary.
		Source       string `yaml:"source"`
		GLSL         string `yaml:"glsl"`
		OpenCL       string `yaml:"opencl"`
		EntryPoint   string `yaml:"entryPoint"`
		WidthUniform string `yaml:"widthUniform"`
	} `yaml:"kernels"`
	Report struct {
		Format string `yaml:"format"`
		Banner bool   `yaml:"banner"`
	} `yaml:"report"`
	Metrics struct {
		// Textfile, when set, receives the run's metrics in the Prometheus
		// text exposition format.
		Textfile string `yaml:"textfile"`
	} `yaml:"metrics"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	cfg.Logger.Verbosity = "info"
	cfg.Logger.Encoding = "console"
	cfg.Kernels.Source = KernelSourceFile
	cfg.Kernels.GLSL = "compute.glsl"
	cfg.Kernels.OpenCL = "compute.cl"
	cfg.Kernels.EntryPoint = "matrix_mul"
	cfg.Kernels.WidthUniform = "WIDTH"
	cfg.Report.Format = ReportFormatText
	return &cfg
}

// LoadConfig reads a YAML file over the defaults. Keys missing from the file
// keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := Default()
	err = yaml.Unmarshal(data, config)
	if err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate rejects values the rest of the program cannot act on.
func (c *Config) Validate() error {
	switch c.Kernels.Source {
	case KernelSourceFile, KernelSourceEmbedded:
	default:
		return fmt.Errorf("kernels.source must be %q or %q, got %q", KernelSourceFile, KernelSourceEmbedded, c.Kernels.Source)
	}
	switch c.Report.Format {
	case ReportFormatText, ReportFormatYAML:
	default:
		return fmt.Errorf("report.format must be %q or %q, got %q", ReportFormatText, ReportFormatYAML, c.Report.Format)
	}
	switch c.Logger.Encoding {
	case "console", "json":
	default:
		return fmt.Errorf("logger.encoding must be \"console\" or \"json\", got %q", c.Logger.Encoding)
	}
	if c.Kernels.EntryPoint == "" {
		return fmt.Errorf("kernels.entryPoint must not be empty")
	}
	if c.Kernels.WidthUniform == "" {
		return fmt.Errorf("kernels.widthUniform must not be empty")
	}
	return nil
}
