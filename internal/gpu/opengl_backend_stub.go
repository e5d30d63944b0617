//go:build !opengl
// +build !opengl

package gpu

import "go.uber.org/zap"

// OpenGLBackend is a stub type when the binary is built without OpenGL
type OpenGLBackend struct {
	logger *zap.Logger
}

// NewOpenGLBackend returns a runner that always fails with ErrUnavailable.
func NewOpenGLBackend(dims Dimensions, source SourceLoader, path, uniform string, logger *zap.Logger) *OpenGLBackend {
	return &OpenGLBackend{logger: logger}
}

func (b *OpenGLBackend) Name() string {
	return "OpenGL"
}

func (b *OpenGLBackend) Run(m *Matrices) Sample {
	return Failed("Unknown", ErrUnavailable)
}

// GLContext is a stub type when the binary is built without OpenGL
type GLContext struct{}

// NewGLContext always fails; rebuild with -tags opengl.
func NewGLContext() (*GLContext, error) {
	return nil, ErrUnavailable
}

func (c *GLContext) Version() string {
	return "Unknown"
}

func (c *GLContext) Close() error {
	return nil
}
