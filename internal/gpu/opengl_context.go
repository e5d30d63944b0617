//go:build opengl
// +build opengl

package gpu

import (
	"fmt"

	"github.com/go-gl/gl/v4.3-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// GLContext is the single process-wide GL 4.3 core context, backed by a
// hidden GLFW window. It must be created and used on a thread locked with
// runtime.LockOSThread.
type GLContext struct {
	window *glfw.Window
}

// NewGLContext initializes GLFW, creates a hidden window, makes its context
// current on the calling thread and loads the GL entry points.
func NewGLContext() (*GLContext, error) {
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("%w: failed to initialize GLFW: %v", ErrContext, err)
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 3)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)

	window, err := glfw.CreateWindow(640, 480, "gpubench", nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("%w: failed to create GLFW window: %v", ErrContext, err)
	}
	window.MakeContextCurrent()

	if err := gl.Init(); err != nil {
		window.Destroy()
		glfw.Terminate()
		return nil, fmt.Errorf("%w: failed to load GL entry points: %v", ErrContext, err)
	}

	return &GLContext{window: window}, nil
}

// Version returns the GL_VERSION string of the current context.
func (c *GLContext) Version() string {
	if s := gl.GetString(gl.VERSION); s != nil {
		return gl.GoStr(s)
	}
	return "Unknown"
}

// Close destroys the window and terminates GLFW.
func (c *GLContext) Close() error {
	c.window.Destroy()
	glfw.Terminate()
	return nil
}
