//go:build opengl
// +build opengl

package gpu

import (
	"fmt"
	"strings"
	"time"
	"unsafe"

	"github.com/go-gl/gl/v4.3-core/gl"
	"go.uber.org/zap"
)

// SSBO binding slots the compute shader addresses positionally.
const (
	bindingA = 0
	bindingB = 1
	bindingC = 2
)

// OpenGLBackend runs the matrix multiplication as a GL compute shader in the
// context current on the calling thread. It never creates or switches
// contexts; see NewGLContext.
type OpenGLBackend struct {
	dims    Dimensions
	source  SourceLoader
	path    string
	uniform string
	logger  *zap.Logger
}

// NewOpenGLBackend creates the compute-shader runner. uniform names the int
// uniform the shader reads N from.
func NewOpenGLBackend(dims Dimensions, source SourceLoader, path, uniform string, logger *zap.Logger) *OpenGLBackend {
	return &OpenGLBackend{
		dims:    dims,
		source:  source,
		path:    path,
		uniform: uniform,
		logger:  logger,
	}
}

// Name implements ContextRunner.
func (b *OpenGLBackend) Name() string {
	return "OpenGL"
}

// Run implements ContextRunner. Host C is written only when the run succeeds.
func (b *OpenGLBackend) Run(m *Matrices) Sample {
	device := rendererName()
	b.logger.Info("OpenGL device", zap.String("device", device))

	elapsed, err := b.run(m)
	if err != nil {
		b.logger.Error("OpenGL run failed", zap.String("device", device), zap.Error(err))
		return Failed(device, err)
	}

	b.logger.Info("OpenGL run completed",
		zap.String("device", device),
		zap.Duration("elapsed", elapsed))
	return Succeeded(device, elapsed)
}

func (b *OpenGLBackend) run(m *Matrices) (time.Duration, error) {
	if err := b.dims.Validate(); err != nil {
		return 0, err
	}
	drainErrors()

	src := b.source.Load(b.path)
	if src == "" {
		return 0, fmt.Errorf("%w: %w: %s", ErrCompile, ErrSourceEmpty, b.path)
	}

	shader, err := compileComputeShader(src)
	if err != nil {
		return 0, err
	}
	defer gl.DeleteShader(shader)

	program, err := linkProgram(shader)
	if err != nil {
		return 0, err
	}
	defer gl.DeleteProgram(program)

	gl.UseProgram(program)
	defer gl.UseProgram(0)

	var ssbo [3]uint32
	gl.GenBuffers(int32(len(ssbo)), &ssbo[0])
	defer gl.DeleteBuffers(int32(len(ssbo)), &ssbo[0])

	gl.BindBufferBase(gl.SHADER_STORAGE_BUFFER, bindingA, ssbo[0])
	gl.BindBufferBase(gl.SHADER_STORAGE_BUFFER, bindingB, ssbo[1])
	gl.BindBufferBase(gl.SHADER_STORAGE_BUFFER, bindingC, ssbo[2])
	defer gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, 0)

	location := gl.GetUniformLocation(program, gl.Str(b.uniform+"\x00"))
	if location < 0 {
		b.logger.Warn("width uniform not found in shader", zap.String("uniform", b.uniform))
	}
	gl.Uniform1i(location, int32(b.dims.Width))

	scratch := make([]float32, b.dims.Elements())

	start := time.Now()

	upload(ssbo[0], m.A, gl.STATIC_DRAW)
	upload(ssbo[1], m.B, gl.STATIC_DRAW)
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, ssbo[2])
	gl.BufferData(gl.SHADER_STORAGE_BUFFER, b.dims.Bytes(), nil, gl.DYNAMIC_COPY)

	groups := uint32(b.dims.Groups())
	gl.DispatchCompute(groups, groups, 1)
	gl.MemoryBarrier(gl.SHADER_STORAGE_BARRIER_BIT | gl.BUFFER_UPDATE_BARRIER_BIT)
	if code := gl.GetError(); code != gl.NO_ERROR {
		return 0, fmt.Errorf("%w: dispatch returned GL error 0x%04x", ErrDispatch, code)
	}

	readback := func(out []float32) error {
		ptr := gl.MapBuffer(gl.SHADER_STORAGE_BUFFER, gl.READ_ONLY)
		if ptr == nil {
			return fmt.Errorf("%w: map output buffer returned GL error 0x%04x", ErrDispatch, gl.GetError())
		}
		copy(out, unsafe.Slice((*float32)(ptr), len(out)))
		if !gl.UnmapBuffer(gl.SHADER_STORAGE_BUFFER) {
			return fmt.Errorf("%w: output buffer store was lost during readback", ErrDispatch)
		}
		return nil
	}
	if err := commitOutput(m.C, scratch, readback); err != nil {
		return 0, err
	}

	return time.Since(start), nil
}

func upload(buffer uint32, data []float32, usage uint32) {
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, buffer)
	gl.BufferData(gl.SHADER_STORAGE_BUFFER, len(data)*4, gl.Ptr(data), usage)
}

func compileComputeShader(src string) (uint32, error) {
	shader := gl.CreateShader(gl.COMPUTE_SHADER)

	csources, free := gl.Strs(src + "\x00")
	gl.ShaderSource(shader, 1, csources, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLength)
		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetShaderInfoLog(shader, logLength, nil, gl.Str(log))
		gl.DeleteShader(shader)
		return 0, fmt.Errorf("%w: %s", ErrCompile, strings.TrimRight(log, "\x00\n"))
	}
	return shader, nil
}

func linkProgram(shader uint32) (uint32, error) {
	program := gl.CreateProgram()
	gl.AttachShader(program, shader)
	gl.LinkProgram(program)

	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLength)
		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetProgramInfoLog(program, logLength, nil, gl.Str(log))
		gl.DeleteProgram(program)
		return 0, fmt.Errorf("%w: link: %s", ErrCompile, strings.TrimRight(log, "\x00\n"))
	}
	return program, nil
}

func rendererName() string {
	if s := gl.GetString(gl.RENDERER); s != nil {
		return gl.GoStr(s)
	}
	return "Unknown"
}

// drainErrors clears errors left by earlier GL calls so they are not
// attributed to this run's dispatch.
func drainErrors() {
	for i := 0; i < 16 && gl.GetError() != gl.NO_ERROR; i++ {
	}
}
