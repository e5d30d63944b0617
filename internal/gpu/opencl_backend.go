package gpu

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// clDriver is the part of the OpenCL API a run needs. The cgo binding
// implements it in opencl builds; other builds get a driver that always
// reports ErrUnavailable.
type clDriver interface {
	// CreateContext creates a context holding exactly dev.
	CreateContext(dev Device) (clContext, error)
}

type clContext interface {
	// CreateQueue creates an in-order queue on the context's device.
	CreateQueue() (clQueue, error)
	CreateProgram(source string) (clProgram, error)
	// CreateInputBuffer creates a read-only buffer initialised from data.
	CreateInputBuffer(data []float32) (clBuffer, error)
	// CreateOutputBuffer creates a write-only buffer of elements floats.
	CreateOutputBuffer(elements int) (clBuffer, error)
	Release()
}

type clQueue interface {
	EnqueueKernel(k clKernel, global, local [2]int) error
	// ReadBuffer blocks until buf has been copied into dst.
	ReadBuffer(buf clBuffer, dst []float32) error
	Release()
}

type clProgram interface {
	// Build compiles the program for the context's device and returns the
	// build log.
	Build() (string, error)
	CreateKernel(name string) (clKernel, error)
	Release()
}

type clKernel interface {
	SetBufferArg(index int, buf clBuffer) error
	SetInt32Arg(index int, value int32) error
	Release()
}

type clBuffer interface {
	Release()
}

// OpenCLBackend runs the matrix multiplication kernel on one OpenCL device
// per call. Every call builds its own context, queue, program, kernel and
// buffers and releases all of them before returning, so a failing device
// cannot affect the next one.
type OpenCLBackend struct {
	dims       Dimensions
	source     SourceLoader
	path       string
	entryPoint string
	driver     clDriver
	logger     *zap.Logger
}

// NewOpenCLBackend creates the per-device runner. entryPoint names the
// kernel function, which takes (A, B, C, N) in that order.
func NewOpenCLBackend(dims Dimensions, source SourceLoader, path, entryPoint string, logger *zap.Logger) *OpenCLBackend {
	return &OpenCLBackend{
		dims:       dims,
		source:     source,
		path:       path,
		entryPoint: entryPoint,
		driver:     newCLDriver(),
		logger:     logger,
	}
}

// Name implements DeviceRunner.
func (b *OpenCLBackend) Name() string {
	return "OpenCL"
}

// RunDevice implements DeviceRunner. Host C is written only when the run
// succeeds.
func (b *OpenCLBackend) RunDevice(dev Device, m *Matrices) Sample {
	info := dev.Info()
	b.logger.Info("OpenCL device",
		zap.String("device", info.Name),
		zap.String("platform", info.Platform),
		zap.Bool("available", info.Available))

	elapsed, err := b.run(dev, m)
	if err != nil {
		b.logger.Error("OpenCL run failed", zap.String("device", info.Name), zap.Error(err))
		return Failed(info.Name, err)
	}

	b.logger.Info("OpenCL run completed",
		zap.String("device", info.Name),
		zap.Duration("elapsed", elapsed))
	return Succeeded(info.Name, elapsed)
}

func (b *OpenCLBackend) run(dev Device, m *Matrices) (time.Duration, error) {
	if err := b.dims.Validate(); err != nil {
		return 0, err
	}

	context, err := b.driver.CreateContext(dev)
	if err != nil {
		return 0, fmt.Errorf("%w: create context: %w", ErrContext, err)
	}
	defer context.Release()

	queue, err := context.CreateQueue()
	if err != nil {
		return 0, fmt.Errorf("%w: create command queue: %w", ErrContext, err)
	}
	defer queue.Release()

	src := b.source.Load(b.path)
	if src == "" {
		return 0, fmt.Errorf("%w: %w: %s", ErrCompile, ErrSourceEmpty, b.path)
	}

	program, err := context.CreateProgram(src)
	if err != nil {
		return 0, fmt.Errorf("%w: create program: %w", ErrCompile, err)
	}
	defer program.Release()

	if buildLog, err := program.Build(); err != nil {
		return 0, fmt.Errorf("%w: %w: %s", ErrCompile, err, strings.TrimSpace(buildLog))
	}

	kernel, err := program.CreateKernel(b.entryPoint)
	if err != nil {
		return 0, fmt.Errorf("%w: kernel %q: %w", ErrCompile, b.entryPoint, err)
	}
	defer kernel.Release()

	scratch := make([]float32, b.dims.Elements())

	start := time.Now()

	bufA, err := context.CreateInputBuffer(m.A)
	if err != nil {
		return 0, fmt.Errorf("%w: upload A: %w", ErrDispatch, err)
	}
	defer bufA.Release()

	bufB, err := context.CreateInputBuffer(m.B)
	if err != nil {
		return 0, fmt.Errorf("%w: upload B: %w", ErrDispatch, err)
	}
	defer bufB.Release()

	bufC, err := context.CreateOutputBuffer(b.dims.Elements())
	if err != nil {
		return 0, fmt.Errorf("%w: allocate C: %w", ErrDispatch, err)
	}
	defer bufC.Release()

	for i, buf := range []clBuffer{bufA, bufB, bufC} {
		if err := kernel.SetBufferArg(i, buf); err != nil {
			return 0, fmt.Errorf("%w: set arg %d: %w", ErrDispatch, i, err)
		}
	}
	if err := kernel.SetInt32Arg(3, int32(b.dims.Width)); err != nil {
		return 0, fmt.Errorf("%w: set arg 3: %w", ErrDispatch, err)
	}

	global := [2]int{b.dims.Width, b.dims.Width}
	local := [2]int{b.dims.LocalSize, b.dims.LocalSize}
	if err := queue.EnqueueKernel(kernel, global, local); err != nil {
		return 0, fmt.Errorf("%w: enqueue kernel: %w", ErrDispatch, err)
	}

	readback := func(out []float32) error {
		if err := queue.ReadBuffer(bufC, out); err != nil {
			return fmt.Errorf("%w: read back C: %w", ErrDispatch, err)
		}
		return nil
	}
	if err := commitOutput(m.C, scratch, readback); err != nil {
		return 0, err
	}

	return time.Since(start), nil
}
