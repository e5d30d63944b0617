//go:build opengl
// +build opengl

package gpu

import (
	"runtime"
	"testing"

	"github.com/fxnlabs/gpubench/kernels"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// withGLContext runs fn with a current context on a locked thread, skipping
// the test on machines without GL 4.3.
func withGLContext(t *testing.T, fn func()) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	ctx, err := NewGLContext()
	if err != nil {
		t.Skipf("OpenGL 4.3 context not available: %v", err)
	}
	defer ctx.Close()
	fn()
}

func TestOpenGLBackend_UnitMatrices(t *testing.T) {
	withGLContext(t, func() {
		logger := zap.NewNop()
		backend := NewOpenGLBackend(testDims, NewFSLoader(kernels.FS, logger), kernels.GLSL, "WIDTH", logger)
		host := NewMatrices(testDims, 1)

		sample := backend.Run(host)
		require.NoError(t, sample.Err)
		assert.GreaterOrEqual(t, sample.Millis, 0.0)
		assert.NotEmpty(t, sample.Device)
		for i, v := range host.C {
			require.Equal(t, float32(testDims.Width), v, "element %d", i)
		}

		first := append([]float32(nil), host.C...)
		sample = backend.Run(host)
		require.NoError(t, sample.Err)
		assert.Equal(t, first, host.C)
	})
}

func TestOpenGLBackend_CompileFailure(t *testing.T) {
	withGLContext(t, func() {
		logger := zap.NewNop()
		host := NewMatrices(testDims, 1)

		t.Run("missing source", func(t *testing.T) {
			backend := NewOpenGLBackend(testDims, NewFileLoader(logger), "does-not-exist.glsl", "WIDTH", logger)
			sample := backend.Run(host)
			assert.ErrorIs(t, sample.Err, ErrCompile)
			assert.ErrorIs(t, sample.Err, ErrSourceEmpty)
			assert.Equal(t, FailureSentinel, sample.Millis)
		})

		t.Run("invalid shader", func(t *testing.T) {
			loader := &staticLoader{src: "#version 430 core\nvoid main() { not glsl }\n"}
			backend := NewOpenGLBackend(testDims, loader, "bad.glsl", "WIDTH", logger)
			sample := backend.Run(host)
			assert.ErrorIs(t, sample.Err, ErrCompile)
			assert.Equal(t, FailureSentinel, sample.Millis)
			for _, v := range host.C {
				require.Zero(t, v)
			}
		})
	})
}

type staticLoader struct {
	src string
}

func (l *staticLoader) Load(string) string {
	return l.src
}
