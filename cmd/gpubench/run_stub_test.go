//go:build !opengl
// +build !opengl

package main

import (
	"bytes"
	"testing"

	"github.com/fxnlabs/gpubench/internal/config"
	"github.com/fxnlabs/gpubench/internal/gpu"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestRunBenchmark_NoContext(t *testing.T) {
	var out bytes.Buffer
	err := runBenchmark(config.Default(), zap.NewNop(), &out)

	assert.ErrorIs(t, err, gpu.ErrUnavailable)
	assert.Empty(t, out.String())
}
