//go:build !opencl
// +build !opencl

package gpu

import "go.uber.org/zap"

// OpenCLPlatforms is a stub type when the binary is built without OpenCL
type OpenCLPlatforms struct {
	logger *zap.Logger
}

func NewOpenCLPlatforms(logger *zap.Logger) *OpenCLPlatforms {
	return &OpenCLPlatforms{logger: logger}
}

// Platforms always fails; rebuild with -tags opencl.
func (s *OpenCLPlatforms) Platforms() ([]Platform, error) {
	return nil, ErrUnavailable
}

type unavailableCL struct{}

func newCLDriver() clDriver {
	return unavailableCL{}
}

func (unavailableCL) CreateContext(Device) (clContext, error) {
	return nil, ErrUnavailable
}
