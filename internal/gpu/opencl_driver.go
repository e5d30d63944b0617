//go:build opencl
// +build opencl

package gpu

/*
#cgo linux LDFLAGS: -lOpenCL
#cgo windows LDFLAGS: -lOpenCL
#cgo darwin LDFLAGS: -framework OpenCL

#ifdef __APPLE__
#include <OpenCL/opencl.h>
#else
#define CL_TARGET_OPENCL_VERSION 200
#include <CL/cl.h>
#endif

#include <stdlib.h>

static cl_command_queue gpubench_create_queue(cl_context ctx, cl_device_id dev, cl_int *err) {
#ifdef __APPLE__
	return clCreateCommandQueue(ctx, dev, 0, err);
#else
	return clCreateCommandQueueWithProperties(ctx, dev, NULL, err);
#endif
}

static const char* gpubench_status(cl_int status) {
	switch (status) {
	case CL_SUCCESS: return "CL_SUCCESS";
	case CL_DEVICE_NOT_FOUND: return "CL_DEVICE_NOT_FOUND";
	case CL_DEVICE_NOT_AVAILABLE: return "CL_DEVICE_NOT_AVAILABLE";
	case CL_COMPILER_NOT_AVAILABLE: return "CL_COMPILER_NOT_AVAILABLE";
	case CL_MEM_OBJECT_ALLOCATION_FAILURE: return "CL_MEM_OBJECT_ALLOCATION_FAILURE";
	case CL_OUT_OF_RESOURCES: return "CL_OUT_OF_RESOURCES";
	case CL_OUT_OF_HOST_MEMORY: return "CL_OUT_OF_HOST_MEMORY";
	case CL_BUILD_PROGRAM_FAILURE: return "CL_BUILD_PROGRAM_FAILURE";
	case CL_INVALID_VALUE: return "CL_INVALID_VALUE";
	case CL_INVALID_PLATFORM: return "CL_INVALID_PLATFORM";
	case CL_INVALID_DEVICE: return "CL_INVALID_DEVICE";
	case CL_INVALID_CONTEXT: return "CL_INVALID_CONTEXT";
	case CL_INVALID_COMMAND_QUEUE: return "CL_INVALID_COMMAND_QUEUE";
	case CL_INVALID_HOST_PTR: return "CL_INVALID_HOST_PTR";
	case CL_INVALID_MEM_OBJECT: return "CL_INVALID_MEM_OBJECT";
	case CL_INVALID_PROGRAM: return "CL_INVALID_PROGRAM";
	case CL_INVALID_PROGRAM_EXECUTABLE: return "CL_INVALID_PROGRAM_EXECUTABLE";
	case CL_INVALID_KERNEL_NAME: return "CL_INVALID_KERNEL_NAME";
	case CL_INVALID_KERNEL: return "CL_INVALID_KERNEL";
	case CL_INVALID_ARG_INDEX: return "CL_INVALID_ARG_INDEX";
	case CL_INVALID_ARG_VALUE: return "CL_INVALID_ARG_VALUE";
	case CL_INVALID_ARG_SIZE: return "CL_INVALID_ARG_SIZE";
	case CL_INVALID_KERNEL_ARGS: return "CL_INVALID_KERNEL_ARGS";
	case CL_INVALID_WORK_DIMENSION: return "CL_INVALID_WORK_DIMENSION";
	case CL_INVALID_WORK_GROUP_SIZE: return "CL_INVALID_WORK_GROUP_SIZE";
	case CL_INVALID_WORK_ITEM_SIZE: return "CL_INVALID_WORK_ITEM_SIZE";
	case CL_INVALID_BUFFER_SIZE: return "CL_INVALID_BUFFER_SIZE";
	case -1001: return "CL_PLATFORM_NOT_FOUND_KHR";
	default: return "unknown OpenCL error";
	}
}
*/
import "C"

import (
	"fmt"
	"strings"
	"unsafe"

	"go.uber.org/zap"
)

func clStatus(op string, status C.cl_int) error {
	return fmt.Errorf("%s: %s (%d)", op, C.GoString(C.gpubench_status(status)), int(status))
}

func clString(size C.size_t, fill func(size C.size_t, ptr unsafe.Pointer) C.cl_int) string {
	if size == 0 {
		return ""
	}
	buf := make([]byte, size)
	if fill(size, unsafe.Pointer(&buf[0])) != C.CL_SUCCESS {
		return ""
	}
	return strings.TrimRight(string(buf), "\x00 ")
}

func platformString(id C.cl_platform_id, param C.cl_platform_info) string {
	var size C.size_t
	if C.clGetPlatformInfo(id, param, 0, nil, &size) != C.CL_SUCCESS {
		return ""
	}
	return clString(size, func(size C.size_t, ptr unsafe.Pointer) C.cl_int {
		return C.clGetPlatformInfo(id, param, size, ptr, nil)
	})
}

func deviceString(id C.cl_device_id, param C.cl_device_info) string {
	var size C.size_t
	if C.clGetDeviceInfo(id, param, 0, nil, &size) != C.CL_SUCCESS {
		return ""
	}
	return clString(size, func(size C.size_t, ptr unsafe.Pointer) C.cl_int {
		return C.clGetDeviceInfo(id, param, size, ptr, nil)
	})
}

type clDevice struct {
	id   C.cl_device_id
	info DeviceInfo
}

func (d *clDevice) Info() DeviceInfo {
	return d.info
}

type clPlatform struct {
	id   C.cl_platform_id
	name string
}

func (p *clPlatform) Name() string {
	return p.name
}

// Devices returns every device of any type under the platform.
func (p *clPlatform) Devices() ([]Device, error) {
	deviceType := C.cl_device_type(C.CL_DEVICE_TYPE_ALL)
	var n C.cl_uint
	if status := C.clGetDeviceIDs(p.id, deviceType, 0, nil, &n); status != C.CL_SUCCESS {
		return nil, clStatus("clGetDeviceIDs", status)
	}
	if n == 0 {
		return nil, nil
	}
	ids := make([]C.cl_device_id, n)
	if status := C.clGetDeviceIDs(p.id, deviceType, n, &ids[0], nil); status != C.CL_SUCCESS {
		return nil, clStatus("clGetDeviceIDs", status)
	}

	out := make([]Device, 0, len(ids))
	for _, id := range ids {
		info := DeviceInfo{Name: deviceString(id, C.CL_DEVICE_NAME), Platform: p.name}
		if info.Name == "" {
			info.Name = "Unknown"
		}
		var available C.cl_bool
		if C.clGetDeviceInfo(id, C.CL_DEVICE_AVAILABLE, C.size_t(unsafe.Sizeof(available)), unsafe.Pointer(&available), nil) == C.CL_SUCCESS {
			info.Available = available == C.CL_TRUE
		}
		out = append(out, &clDevice{id: id, info: info})
	}
	return out, nil
}

// OpenCLPlatforms enumerates the OpenCL platforms of the installed ICDs.
type OpenCLPlatforms struct {
	logger *zap.Logger
}

// NewOpenCLPlatforms creates the platform source.
func NewOpenCLPlatforms(logger *zap.Logger) *OpenCLPlatforms {
	return &OpenCLPlatforms{logger: logger}
}

// Platforms implements PlatformSource.
func (s *OpenCLPlatforms) Platforms() ([]Platform, error) {
	var n C.cl_uint
	if status := C.clGetPlatformIDs(0, nil, &n); status != C.CL_SUCCESS {
		return nil, fmt.Errorf("%w: %w", ErrContext, clStatus("clGetPlatformIDs", status))
	}
	if n == 0 {
		return nil, nil
	}
	ids := make([]C.cl_platform_id, n)
	if status := C.clGetPlatformIDs(n, &ids[0], nil); status != C.CL_SUCCESS {
		return nil, fmt.Errorf("%w: %w", ErrContext, clStatus("clGetPlatformIDs", status))
	}

	out := make([]Platform, 0, len(ids))
	for i, id := range ids {
		name := platformString(id, C.CL_PLATFORM_NAME)
		if name == "" {
			name = fmt.Sprintf("platform-%d", i)
		}
		out = append(out, &clPlatform{id: id, name: name})
	}
	s.logger.Debug("found OpenCL platforms", zap.Int("count", len(out)))
	return out, nil
}

type cgoDriver struct{}

func newCLDriver() clDriver {
	return cgoDriver{}
}

func (cgoDriver) CreateContext(dev Device) (clContext, error) {
	d, ok := dev.(*clDevice)
	if !ok {
		return nil, fmt.Errorf("%T is not an OpenCL device", dev)
	}
	var status C.cl_int
	ctx := C.clCreateContext(nil, 1, &d.id, nil, nil, &status)
	if status != C.CL_SUCCESS {
		return nil, clStatus("clCreateContext", status)
	}
	return &cgoContext{ctx: ctx, device: d.id}, nil
}

type cgoContext struct {
	ctx    C.cl_context
	device C.cl_device_id
}

func (c *cgoContext) CreateQueue() (clQueue, error) {
	var status C.cl_int
	queue := C.gpubench_create_queue(c.ctx, c.device, &status)
	if status != C.CL_SUCCESS {
		return nil, clStatus("clCreateCommandQueue", status)
	}
	return &cgoQueue{queue: queue}, nil
}

func (c *cgoContext) CreateProgram(source string) (clProgram, error) {
	src := C.CString(source)
	defer C.free(unsafe.Pointer(src))
	length := C.size_t(len(source))

	var status C.cl_int
	program := C.clCreateProgramWithSource(c.ctx, 1, &src, &length, &status)
	if status != C.CL_SUCCESS {
		return nil, clStatus("clCreateProgramWithSource", status)
	}
	return &cgoProgram{program: program, device: c.device}, nil
}

func (c *cgoContext) CreateInputBuffer(data []float32) (clBuffer, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("clCreateBuffer: empty input")
	}
	flags := C.cl_mem_flags(C.CL_MEM_READ_ONLY | C.CL_MEM_COPY_HOST_PTR)
	var status C.cl_int
	mem := C.clCreateBuffer(c.ctx, flags, C.size_t(len(data)*4), unsafe.Pointer(&data[0]), &status)
	if status != C.CL_SUCCESS {
		return nil, clStatus("clCreateBuffer", status)
	}
	return &cgoBuffer{mem: mem, size: len(data) * 4}, nil
}

func (c *cgoContext) CreateOutputBuffer(elements int) (clBuffer, error) {
	var status C.cl_int
	mem := C.clCreateBuffer(c.ctx, C.cl_mem_flags(C.CL_MEM_WRITE_ONLY), C.size_t(elements*4), nil, &status)
	if status != C.CL_SUCCESS {
		return nil, clStatus("clCreateBuffer", status)
	}
	return &cgoBuffer{mem: mem, size: elements * 4}, nil
}

func (c *cgoContext) Release() {
	C.clReleaseContext(c.ctx)
}

type cgoQueue struct {
	queue C.cl_command_queue
}

func (q *cgoQueue) EnqueueKernel(k clKernel, global, local [2]int) error {
	kernel, ok := k.(*cgoKernel)
	if !ok {
		return fmt.Errorf("clEnqueueNDRangeKernel: foreign kernel %T", k)
	}
	g := [2]C.size_t{C.size_t(global[0]), C.size_t(global[1])}
	l := [2]C.size_t{C.size_t(local[0]), C.size_t(local[1])}
	if status := C.clEnqueueNDRangeKernel(q.queue, kernel.kernel, 2, nil, &g[0], &l[0], 0, nil, nil); status != C.CL_SUCCESS {
		return clStatus("clEnqueueNDRangeKernel", status)
	}
	return nil
}

func (q *cgoQueue) ReadBuffer(buf clBuffer, dst []float32) error {
	b, ok := buf.(*cgoBuffer)
	if !ok {
		return fmt.Errorf("clEnqueueReadBuffer: foreign buffer %T", buf)
	}
	if len(dst)*4 != b.size {
		return fmt.Errorf("clEnqueueReadBuffer: %d bytes into %d", b.size, len(dst)*4)
	}
	if status := C.clEnqueueReadBuffer(q.queue, b.mem, C.CL_TRUE, 0, C.size_t(b.size), unsafe.Pointer(&dst[0]), 0, nil, nil); status != C.CL_SUCCESS {
		return clStatus("clEnqueueReadBuffer", status)
	}
	return nil
}

func (q *cgoQueue) Release() {
	C.clReleaseCommandQueue(q.queue)
}

type cgoProgram struct {
	program C.cl_program
	device  C.cl_device_id
}

func (p *cgoProgram) Build() (string, error) {
	status := C.clBuildProgram(p.program, 1, &p.device, nil, nil, nil)
	if status == C.CL_SUCCESS {
		return "", nil
	}

	var size C.size_t
	log := ""
	if C.clGetProgramBuildInfo(p.program, p.device, C.CL_PROGRAM_BUILD_LOG, 0, nil, &size) == C.CL_SUCCESS {
		log = clString(size, func(size C.size_t, ptr unsafe.Pointer) C.cl_int {
			return C.clGetProgramBuildInfo(p.program, p.device, C.CL_PROGRAM_BUILD_LOG, size, ptr, nil)
		})
	}
	return log, clStatus("clBuildProgram", status)
}

func (p *cgoProgram) CreateKernel(name string) (clKernel, error) {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))

	var status C.cl_int
	kernel := C.clCreateKernel(p.program, cname, &status)
	if status != C.CL_SUCCESS {
		return nil, clStatus("clCreateKernel", status)
	}
	return &cgoKernel{kernel: kernel}, nil
}

func (p *cgoProgram) Release() {
	C.clReleaseProgram(p.program)
}

type cgoKernel struct {
	kernel C.cl_kernel
}

func (k *cgoKernel) SetBufferArg(index int, buf clBuffer) error {
	b, ok := buf.(*cgoBuffer)
	if !ok {
		return fmt.Errorf("clSetKernelArg: foreign buffer %T", buf)
	}
	if status := C.clSetKernelArg(k.kernel, C.cl_uint(index), C.size_t(unsafe.Sizeof(b.mem)), unsafe.Pointer(&b.mem)); status != C.CL_SUCCESS {
		return clStatus("clSetKernelArg", status)
	}
	return nil
}

func (k *cgoKernel) SetInt32Arg(index int, value int32) error {
	v := C.cl_int(value)
	if status := C.clSetKernelArg(k.kernel, C.cl_uint(index), C.size_t(unsafe.Sizeof(v)), unsafe.Pointer(&v)); status != C.CL_SUCCESS {
		return clStatus("clSetKernelArg", status)
	}
	return nil
}

func (k *cgoKernel) Release() {
	C.clReleaseKernel(k.kernel)
}

type cgoBuffer struct {
	mem  C.cl_mem
	size int
}

func (b *cgoBuffer) Release() {
	C.clReleaseMemObject(b.mem)
}
