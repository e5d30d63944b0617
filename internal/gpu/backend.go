package gpu

import (
	"fmt"
	"time"
)

const (
	// MatrixWidth is the fixed N of the benchmarked N×N multiplication.
	MatrixWidth = 1024
	// LocalGroupSize is the edge of the square work-group both kernels use.
	LocalGroupSize = 32
	// FailureSentinel is the Millis value of a sample whose run did not complete.
	FailureSentinel = -1.0
)

// Dimensions describes the shape of one benchmark run. It is built once and
// injected into every backend so no backend carries its own copy of N.
type Dimensions struct {
	Width     int
	LocalSize int
}

// DefaultDimensions returns the 1024×1024 / 32×32 shape used by the CLI.
func DefaultDimensions() Dimensions {
	return Dimensions{Width: MatrixWidth, LocalSize: LocalGroupSize}
}

// Elements is the number of floats in one N×N matrix.
func (d Dimensions) Elements() int {
	return d.Width * d.Width
}

// Bytes is the size of one N×N float32 matrix.
func (d Dimensions) Bytes() int {
	return d.Elements() * 4
}

// Groups is the number of work-groups along each axis of the dispatch grid.
func (d Dimensions) Groups() int {
	return d.Width / d.LocalSize
}

// FLOPs is the floating point operation count of one N×N×N multiplication.
func (d Dimensions) FLOPs() float64 {
	w := float64(d.Width)
	return 2 * w * w * w
}

// Validate checks the dispatch precondition: the grid must cover the output
// exactly, so N has to be a multiple of the local group size.
func (d Dimensions) Validate() error {
	if d.Width <= 0 || d.LocalSize <= 0 {
		return fmt.Errorf("%w: width %d and local size %d must be positive", ErrDimensions, d.Width, d.LocalSize)
	}
	if d.Width%d.LocalSize != 0 {
		return fmt.Errorf("%w: width %d is not a multiple of local size %d", ErrDimensions, d.Width, d.LocalSize)
	}
	return nil
}

// Matrices holds the host-side buffers shared by every run. A and B are
// read-only after construction; C is overwritten by each completed run.
type Matrices struct {
	A []float32
	B []float32
	C []float32
}

// NewMatrices allocates A and B filled with fill and a zeroed C.
func NewMatrices(d Dimensions, fill float32) *Matrices {
	m := &Matrices{
		A: make([]float32, d.Elements()),
		B: make([]float32, d.Elements()),
		C: make([]float32, d.Elements()),
	}
	for i := range m.A {
		m.A[i] = fill
		m.B[i] = fill
	}
	return m
}

// DeviceInfo identifies a compute device in logs and reports.
type DeviceInfo struct {
	Name      string `yaml:"name"`
	Platform  string `yaml:"platform,omitempty"`
	Available bool   `yaml:"available"`
}

// Device is an opaque handle produced by enumeration. Handles are used for a
// single run and never persisted.
type Device interface {
	Info() DeviceInfo
}

// Sample is the measured device-side window of one run.
//
// Millis is non-negative when Err is nil and exactly FailureSentinel otherwise.
type Sample struct {
	Device string
	Millis float64
	Err    error
}

// Succeeded builds a sample from a measured duration.
func Succeeded(device string, elapsed time.Duration) Sample {
	return Sample{
		Device: device,
		Millis: float64(elapsed) / float64(time.Millisecond),
	}
}

// Failed builds a sentinel sample carrying the cause.
func Failed(device string, err error) Sample {
	return Sample{
		Device: device,
		Millis: FailureSentinel,
		Err:    err,
	}
}

// OK reports whether the sample may take part in arithmetic.
func (s Sample) OK() bool {
	return s.Err == nil && s.Millis >= 0
}

// ContextRunner runs one dispatch inside an execution context that the caller
// has already made current. It owns no context of its own.
type ContextRunner interface {
	Name() string
	Run(m *Matrices) Sample
}

// DeviceRunner runs one dispatch on a specific device, building and tearing
// down an isolated context for every call.
type DeviceRunner interface {
	Name() string
	RunDevice(dev Device, m *Matrices) Sample
}

// commitOutput runs read against scratch and copies the result into dst only
// when read succeeds, so a failed readback leaves dst untouched.
func commitOutput(dst, scratch []float32, read func(out []float32) error) error {
	if err := read(scratch); err != nil {
		return err
	}
	copy(dst, scratch)
	return nil
}
