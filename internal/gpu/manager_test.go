package gpu

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

var testDims = Dimensions{Width: 64, LocalSize: 32}

type mockContextRunner struct {
	mock.Mock
}

func (m *mockContextRunner) Name() string {
	return "OpenGL"
}

func (m *mockContextRunner) Run(host *Matrices) Sample {
	args := m.Called(host)
	return args.Get(0).(Sample)
}

type mockDeviceRunner struct {
	mock.Mock
}

func (m *mockDeviceRunner) Name() string {
	return "OpenCL"
}

func (m *mockDeviceRunner) RunDevice(dev Device, host *Matrices) Sample {
	args := m.Called(dev, host)
	return args.Get(0).(Sample)
}

// referenceRunner multiplies on the host with gonum and reports a fixed
// duration. It stands in for both backend models.
type referenceRunner struct {
	dims   Dimensions
	millis float64
	calls  int
}

func (r *referenceRunner) Name() string {
	return "reference"
}

func (r *referenceRunner) Run(host *Matrices) Sample {
	r.multiply(host)
	return Sample{Device: "host", Millis: r.millis}
}

func (r *referenceRunner) RunDevice(dev Device, host *Matrices) Sample {
	r.multiply(host)
	return Sample{Device: dev.Info().Name, Millis: r.millis}
}

func (r *referenceRunner) multiply(host *Matrices) {
	r.calls++
	n := r.dims.Width
	a := mat.NewDense(n, n, Float32ToFloat64(host.A))
	b := mat.NewDense(n, n, Float32ToFloat64(host.B))
	var c mat.Dense
	c.Mul(a, b)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			host.C[i*n+j] = float32(c.At(i, j))
		}
	}
}

type recordingObserver struct {
	entries []Entry
}

func (o *recordingObserver) Observe(e Entry) {
	o.entries = append(o.entries, e)
}

func TestNewManager_RejectsIndivisibleWidth(t *testing.T) {
	_, err := NewManager(Dimensions{Width: 100, LocalSize: 32}, &mockContextRunner{}, newFakePlatforms(), &mockDeviceRunner{}, zap.NewNop())
	assert.ErrorIs(t, err, ErrDimensions)
}

func TestManager_SingleGPUScenario(t *testing.T) {
	// platform 1 has one GPU, platform 2 reports no reachable devices
	gpu := &fakeDevice{info: DeviceInfo{Name: "GeForce", Platform: "NVIDIA CUDA", Available: true}}
	src := &fakePlatforms{platforms: []Platform{
		&fakePlatform{name: "NVIDIA CUDA", devices: []Device{gpu}},
		&fakePlatform{name: "Portable Computing Language", err: errors.New("CL_DEVICE_NOT_FOUND")},
	}}

	baseline := &mockContextRunner{}
	baseline.On("Run", mock.Anything).Return(Sample{Device: "Mesa Intel", Millis: 12}).Once()
	runner := &mockDeviceRunner{}
	runner.On("RunDevice", gpu, mock.Anything).Return(Sample{Device: "GeForce", Millis: 3}).Once()

	manager, err := NewManager(DefaultDimensions(), baseline, src, runner, zap.NewNop())
	require.NoError(t, err)

	report := manager.Run()

	baseline.AssertExpectations(t)
	runner.AssertExpectations(t)
	runner.AssertNumberOfCalls(t, "RunDevice", 1)

	require.Len(t, report.Entries, 2)
	assert.Equal(t, 1024, report.Width)
	assert.Equal(t, 32, report.LocalSize)

	base, ok := report.Baseline()
	require.True(t, ok)
	assert.Equal(t, "OpenGL", base.Backend)
	assert.Equal(t, "Mesa Intel", base.Device)
	assert.Equal(t, StatusOK, base.Status)

	dev := report.Entries[1]
	assert.Equal(t, "OpenCL", dev.Backend)
	assert.Equal(t, "GeForce", dev.Device)
	assert.Equal(t, "NVIDIA CUDA", dev.Platform)
	assert.Equal(t, StatusOK, dev.Status)
	assert.Equal(t, 4.0, dev.Speedup)
}

func TestManager_RunsEveryDeviceExactlyOnce(t *testing.T) {
	counts := []int{2, 3, 0, 1}
	src := newFakePlatforms(counts...)

	baseline := &mockContextRunner{}
	baseline.On("Run", mock.Anything).Return(Sample{Device: "gl", Millis: 5}).Once()
	runner := &mockDeviceRunner{}
	runner.On("RunDevice", mock.Anything, mock.Anything).Return(Sample{Millis: 5})

	manager, err := NewManager(testDims, baseline, src, runner, zap.NewNop())
	require.NoError(t, err)
	report := manager.Run()

	runner.AssertNumberOfCalls(t, "RunDevice", 6)
	assert.Len(t, report.Entries, 7)
	for _, platform := range src.platforms {
		devices, _ := platform.Devices()
		for _, d := range devices {
			runner.AssertCalled(t, "RunDevice", d, mock.Anything)
		}
	}
}

func TestManager_BaselineFailureSkipsSpeedup(t *testing.T) {
	baseline := &mockContextRunner{}
	baseline.On("Run", mock.Anything).Return(Failed("Unknown", ErrCompile))
	runner := &mockDeviceRunner{}
	runner.On("RunDevice", mock.Anything, mock.Anything).Return(Sample{Device: "GeForce", Millis: 3})

	manager, err := NewManager(testDims, baseline, newFakePlatforms(1), runner, zap.NewNop())
	require.NoError(t, err)
	report := manager.Run()

	require.Len(t, report.Entries, 2)
	base := report.Entries[0]
	assert.True(t, base.Baseline)
	assert.Equal(t, StatusFailed, base.Status)
	assert.Equal(t, FailureSentinel, base.Millis)
	assert.Contains(t, base.Error, ErrCompile.Error())

	dev := report.Entries[1]
	assert.Equal(t, StatusNoBaseline, dev.Status)
	assert.Zero(t, dev.Speedup)
	assert.Equal(t, 3.0, dev.Millis)
	assert.Greater(t, dev.GFLOPS, 0.0)
}

func TestManager_DeviceFailureDoesNotStopEnumeration(t *testing.T) {
	src := newFakePlatforms(3)
	devices, _ := src.platforms[0].Devices()

	baseline := &mockContextRunner{}
	baseline.On("Run", mock.Anything).Return(Sample{Device: "gl", Millis: 6})
	runner := &mockDeviceRunner{}
	runner.On("RunDevice", devices[0], mock.Anything).Return(Sample{Device: "p0-d0", Millis: 2})
	runner.On("RunDevice", devices[1], mock.Anything).Return(Failed("p0-d1", ErrContext))
	runner.On("RunDevice", devices[2], mock.Anything).Return(Sample{Device: "p0-d2", Millis: 12})

	manager, err := NewManager(testDims, baseline, src, runner, zap.NewNop())
	require.NoError(t, err)
	report := manager.Run()

	require.Len(t, report.Entries, 4)
	assert.Equal(t, StatusOK, report.Entries[1].Status)
	assert.Equal(t, 3.0, report.Entries[1].Speedup)

	failed := report.Entries[2]
	assert.Equal(t, StatusFailed, failed.Status)
	assert.Equal(t, FailureSentinel, failed.Millis)
	assert.Zero(t, failed.Speedup)
	assert.Zero(t, failed.GFLOPS)
	assert.Contains(t, failed.Error, ErrContext.Error())

	assert.Equal(t, StatusOK, report.Entries[3].Status)
	assert.Equal(t, 0.5, report.Entries[3].Speedup)
}

func TestManager_NoFailedSampleEscapesAsSuccess(t *testing.T) {
	baseline := &mockContextRunner{}
	baseline.On("Run", mock.Anything).Return(Sample{Device: "gl", Millis: 4})
	runner := &mockDeviceRunner{}
	// a broken runner: negative duration with no error, and an error with a
	// plausible duration
	runner.On("RunDevice", mock.Anything, mock.Anything).Return(Sample{Device: "neg", Millis: -7}).Once()
	runner.On("RunDevice", mock.Anything, mock.Anything).Return(Sample{Device: "err", Millis: 9, Err: ErrDispatch}).Once()

	manager, err := NewManager(testDims, baseline, newFakePlatforms(2), runner, zap.NewNop())
	require.NoError(t, err)
	report := manager.Run()

	for _, e := range report.Entries {
		if e.Status == StatusFailed {
			assert.Equal(t, FailureSentinel, e.Millis, e.Device)
			continue
		}
		assert.GreaterOrEqual(t, e.Millis, 0.0, e.Device)
	}
	assert.Equal(t, StatusFailed, report.Entries[1].Status)
	assert.Equal(t, StatusFailed, report.Entries[2].Status)
}

func TestManager_UnitMatricesProduceN(t *testing.T) {
	ref := &referenceRunner{dims: testDims, millis: 1}
	var last *Matrices
	runner := &mockDeviceRunner{}
	runner.On("RunDevice", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			last = args.Get(1).(*Matrices)
			ref.RunDevice(args.Get(0).(Device), last)
		}).
		Return(Sample{Millis: 1})

	manager, err := NewManager(testDims, ref, newFakePlatforms(1), runner, zap.NewNop())
	require.NoError(t, err)
	report := manager.Run()

	require.NotNil(t, last)
	for i, v := range last.C {
		require.Equal(t, float32(testDims.Width), v, "element %d", i)
	}
	// the host inputs are never modified by a run
	for i := range last.A {
		require.Equal(t, float32(1), last.A[i])
		require.Equal(t, float32(1), last.B[i])
	}

	n := float64(testDims.Width)
	for _, e := range report.Entries {
		assert.Equal(t, n*n*n, e.Checksum, e.Backend)
	}
}

func TestManager_RepeatedRunsAreIdentical(t *testing.T) {
	ref := &referenceRunner{dims: testDims, millis: 2}
	manager, err := NewManager(testDims, ref, newFakePlatforms(2), ref, zap.NewNop())
	require.NoError(t, err)

	first := manager.Run()
	second := manager.Run()

	assert.Equal(t, 6, ref.calls)
	require.Len(t, second.Entries, len(first.Entries))
	for i := range first.Entries {
		assert.Equal(t, first.Entries[i].Checksum, second.Entries[i].Checksum)
		assert.Equal(t, first.Entries[i].Status, second.Entries[i].Status)
	}
}

func TestManager_Observers(t *testing.T) {
	ref := &referenceRunner{dims: testDims, millis: 2}
	obs := &recordingObserver{}
	manager, err := NewManager(testDims, ref, newFakePlatforms(1, 1), ref, zap.NewNop(), WithObserver(obs), WithFill(2))
	require.NoError(t, err)

	report := manager.Run()

	assert.Equal(t, report.Entries, obs.entries)
	// 2·2 summed over N terms
	n := float64(testDims.Width)
	assert.Equal(t, 4*n*n*n, obs.entries[0].Checksum)
}

func TestManager_ZeroDurationBaselineIsNotAFailure(t *testing.T) {
	baseline := &mockContextRunner{}
	baseline.On("Run", mock.Anything).Return(Sample{Device: "gl", Millis: 0})
	runner := &mockDeviceRunner{}
	runner.On("RunDevice", mock.Anything, mock.Anything).Return(Sample{Device: "GeForce", Millis: 3})

	manager, err := NewManager(testDims, baseline, newFakePlatforms(1), runner, zap.NewNop())
	require.NoError(t, err)
	report := manager.Run()

	require.Len(t, report.Entries, 2)
	assert.Equal(t, StatusOK, report.Entries[0].Status)
	dev := report.Entries[1]
	assert.Equal(t, StatusNoSpeedup, dev.Status)
	assert.Zero(t, dev.Speedup)
	assert.Empty(t, dev.Error)
}

func TestManager_EntriesAreIndexed(t *testing.T) {
	ref := &referenceRunner{dims: testDims, millis: 1}
	// identical device names on one platform stay distinguishable
	src := &fakePlatforms{platforms: []Platform{&fakePlatform{name: "pocl", devices: []Device{
		&fakeDevice{info: DeviceInfo{Name: "cpu", Platform: "pocl"}},
		&fakeDevice{info: DeviceInfo{Name: "cpu", Platform: "pocl"}},
	}}}}

	manager, err := NewManager(testDims, ref, src, ref, zap.NewNop())
	require.NoError(t, err)
	report := manager.Run()

	require.Len(t, report.Entries, 3)
	for i, e := range report.Entries {
		assert.Equal(t, i, e.Index)
	}
}
