// Package kernels provides the default matrix multiplication kernels
// embedded in the binary.
package kernels

import "embed"

const (
	// GLSL is the compute shader: SSBO bindings 0/1/2 and an int WIDTH uniform.
	GLSL = "compute.glsl"
	// OpenCL is the kernel source exporting matrix_mul(A, B, C, N).
	OpenCL = "compute.cl"
)

// FS contains both kernel sources at its root.
//
//go:embed compute.glsl compute.cl
var FS embed.FS
