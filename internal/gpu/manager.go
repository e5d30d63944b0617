package gpu

import (
	"fmt"

	"go.uber.org/zap"
)

// Status classifies one report entry.
type Status string

const (
	StatusOK Status = "ok"
	// StatusFailed marks a run that returned the failure sentinel.
	StatusFailed Status = "failed"
	// StatusNoBaseline marks a successful device run whose speedup could not
	// be computed because the baseline failed.
	StatusNoBaseline Status = "no-baseline"
	// StatusNoSpeedup marks a successful device run against a successful
	// baseline where one of the two measured zero milliseconds.
	StatusNoSpeedup Status = "no-speedup"
)

// Entry is one line of the benchmark report.
type Entry struct {
	// Index is the entry's position in the report: 0 for the baseline, then
	// devices in enumeration order.
	Index    int     `yaml:"index"`
	Backend  string  `yaml:"backend"`
	Device   string  `yaml:"device"`
	Platform string  `yaml:"platform,omitempty"`
	Baseline bool    `yaml:"baseline,omitempty"`
	Status   Status  `yaml:"status"`
	Millis   float64 `yaml:"millis"`
	Speedup  float64 `yaml:"speedup,omitempty"`
	GFLOPS   float64 `yaml:"gflops,omitempty"`
	Checksum float64 `yaml:"checksum,omitempty"`
	Error    string  `yaml:"error,omitempty"`
}

// Report is the outcome of one benchmark pass.
type Report struct {
	Width     int     `yaml:"width"`
	LocalSize int     `yaml:"localSize"`
	Entries   []Entry `yaml:"entries"`
}

// Baseline returns the reference entry, if the pass produced one.
func (r *Report) Baseline() (Entry, bool) {
	for _, e := range r.Entries {
		if e.Baseline {
			return e, true
		}
	}
	return Entry{}, false
}

// Observer receives every entry as soon as it is produced.
type Observer interface {
	Observe(e Entry)
}

// Option configures a Manager.
type Option func(*Manager)

// WithObserver registers an observer for report entries.
func WithObserver(o Observer) Option {
	return func(m *Manager) {
		m.observers = append(m.observers, o)
	}
}

// WithFill overrides the constant the input matrices are filled with.
func WithFill(v float32) Option {
	return func(m *Manager) {
		m.fill = v
	}
}

// Manager drives one benchmark pass: the context runner once as the
// baseline, then the device runner once for every enumerated device.
//
// A pass is strictly sequential. Runs never overlap, so no two devices
// contend for host bandwidth while being timed.
type Manager struct {
	dims      Dimensions
	baseline  ContextRunner
	platforms PlatformSource
	runner    DeviceRunner
	observers []Observer
	fill      float32
	logger    *zap.Logger
}

// NewManager validates the dimensions and wires the two backends.
func NewManager(dims Dimensions, baseline ContextRunner, platforms PlatformSource, runner DeviceRunner, logger *zap.Logger, opts ...Option) (*Manager, error) {
	if err := dims.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		dims:      dims,
		baseline:  baseline,
		platforms: platforms,
		runner:    runner,
		fill:      1.0,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Run executes the pass and returns its report. Individual run failures are
// recorded in the report; Run itself does not fail.
func (m *Manager) Run() *Report {
	host := NewMatrices(m.dims, m.fill)
	report := &Report{Width: m.dims.Width, LocalSize: m.dims.LocalSize}

	m.logger.Debug("running baseline", zap.String("backend", m.baseline.Name()))
	baseline := normalize(m.baseline.Run(host))
	m.record(report, m.baselineEntry(baseline, host))

	n := Enumerate(m.platforms, m.logger, func(dev Device) {
		info := dev.Info()
		m.logger.Debug("running device",
			zap.String("backend", m.runner.Name()),
			zap.String("device", info.Name),
			zap.String("platform", info.Platform))
		sample := normalize(m.runner.RunDevice(dev, host))
		m.record(report, m.deviceEntry(info, baseline, sample, host))
	})

	m.logger.Info("benchmark complete",
		zap.Int("devices", n),
		zap.Bool("baseline_ok", baseline.OK()))
	return report
}

func (m *Manager) record(report *Report, e Entry) {
	e.Index = len(report.Entries)
	report.Entries = append(report.Entries, e)
	for _, o := range m.observers {
		o.Observe(e)
	}
}

func (m *Manager) baselineEntry(s Sample, host *Matrices) Entry {
	e := Entry{
		Backend:  m.baseline.Name(),
		Device:   s.Device,
		Baseline: true,
		Millis:   s.Millis,
	}
	if !s.OK() {
		e.Status = StatusFailed
		e.Error = s.Err.Error()
		return e
	}
	e.Status = StatusOK
	e.Speedup = 1
	e.GFLOPS = GFLOPS(m.dims, s)
	e.Checksum = Checksum(host.C)
	return e
}

func (m *Manager) deviceEntry(info DeviceInfo, baseline, s Sample, host *Matrices) Entry {
	name := s.Device
	if name == "" {
		name = info.Name
	}
	e := Entry{
		Backend:  m.runner.Name(),
		Device:   name,
		Platform: info.Platform,
		Millis:   s.Millis,
	}
	if !s.OK() {
		e.Status = StatusFailed
		e.Error = s.Err.Error()
		return e
	}
	e.GFLOPS = GFLOPS(m.dims, s)
	e.Checksum = Checksum(host.C)
	speedup, ok := Speedup(baseline, s)
	if !ok {
		e.Status = StatusNoSpeedup
		if !baseline.OK() {
			e.Status = StatusNoBaseline
		}
		return e
	}
	e.Status = StatusOK
	e.Speedup = speedup
	return e
}

// normalize enforces the sample invariant at the run boundary: any error
// forces the sentinel, and a negative duration without an error is itself
// treated as a failed measurement.
func normalize(s Sample) Sample {
	if s.Err != nil {
		s.Millis = FailureSentinel
		return s
	}
	if s.Millis < 0 {
		return Failed(s.Device, fmt.Errorf("%w: negative duration %.3fms", ErrDispatch, s.Millis))
	}
	return s
}
