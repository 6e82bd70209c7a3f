// Package runner executes the warp scatter on an OCCA device.
package runner

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/notargets/gocca"
	"github.com/notargets/warpsched/bucket"
	"github.com/notargets/warpsched/device"
	"github.com/notargets/warpsched/launch"
	"github.com/notargets/warpsched/logging"
	"github.com/notargets/warpsched/scheduler"
)

// ErrNoTable is returned when Scatter runs before any table was uploaded
var ErrNoTable = errors.New("no bucket table uploaded")

const uint32Size = 4

// Table arrays live in pooled memory under these names
const (
	memWarpStart = "warpStart"
	memStartPos  = "startPos"
	memEndPos    = "endPos"
	memTaskIDs   = "taskIDs"
	memRanks     = "ranks"
	memWidths    = "widths"
)

// Runner owns the kernels and device memory used to scatter threads on one
// accepted device
type Runner struct {
	Device       *gocca.OCCADevice
	Descriptor   device.Descriptor
	Kernels      map[string]*gocca.OCCAKernel
	PooledMemory map[string]*gocca.OCCAMemory

	table            *bucket.Table
	tableFingerprint uint64
	outputCapacity   int
	logger           logging.Logger
}

// Option configures a Runner
type Option func(*Runner)

// WithLogger sets the runner's logger
func WithLogger(logger logging.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRunner creates a Runner for an opened device described by desc
func NewRunner(dev *gocca.OCCADevice, desc device.Descriptor, opts ...Option) *Runner {
	r := &Runner{
		Device:       dev,
		Descriptor:   desc,
		Kernels:      make(map[string]*gocca.OCCAKernel),
		PooledMemory: make(map[string]*gocca.OCCAMemory),
		logger:       logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// BuildKernel compiles and registers a kernel under key
func (r *Runner) BuildKernel(kernelSource, kernelName, key string) (*gocca.OCCAKernel, error) {
	if kernel, exists := r.Kernels[key]; exists {
		return kernel, nil
	}

	var kernel *gocca.OCCAKernel
	var err error
	if r.Device.Mode() == "OpenMP" {
		// OpenMP builds do not get -O3 by default
		props := gocca.JsonParse(`{"compiler_flags": "-O3"}`)
		defer props.Free()
		kernel, err = r.Device.BuildKernelFromString(kernelSource, kernelName, props)
	} else {
		kernel, err = r.Device.BuildKernelFromString(kernelSource, kernelName, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build kernel %s: %w", kernelName, err)
	}
	if kernel == nil {
		return nil, fmt.Errorf("kernel build returned nil for %s", kernelName)
	}

	r.Kernels[key] = kernel
	r.logger.Debug("kernel built", "kernel", key, "mode", r.Device.Mode())
	return kernel, nil
}

// UploadTable copies the table's arrays to the device. It reports false
// when the device already holds an identical table.
func (r *Runner) UploadTable(t *bucket.Table) bool {
	fp := t.Fingerprint()
	if r.table != nil && fp == r.tableFingerprint {
		r.table = t
		return false
	}

	warpStart, startPos, endPos := t.Arrays()
	r.upload(memWarpStart, warpStart)
	r.upload(memStartPos, startPos)
	r.upload(memEndPos, endPos)

	r.table = t
	r.tableFingerprint = fp
	r.logger.Debug("bucket table uploaded", "table", t.String(), "fingerprint", fp)
	return true
}

// upload writes data into the named buffer; table arrays never change size
func (r *Runner) upload(name string, data []uint32) {
	size := int64(len(data) * uint32Size)
	if mem, exists := r.PooledMemory[name]; exists {
		mem.CopyFrom(unsafe.Pointer(&data[0]), size)
		return
	}
	r.PooledMemory[name] = r.Device.Malloc(size, unsafe.Pointer(&data[0]), nil)
}

// ensureOutput grows the per-thread output buffers to hold n entries
func (r *Runner) ensureOutput(n int) {
	if n <= r.outputCapacity {
		return
	}
	size := int64(n * uint32Size)
	for _, name := range []string{memTaskIDs, memRanks, memWidths} {
		if mem, exists := r.PooledMemory[name]; exists {
			mem.Free()
		}
		r.PooledMemory[name] = r.Device.Malloc(size, nil, nil)
	}
	r.outputCapacity = n
}

// Scatter uploads t if needed, runs one scatter launch sized for it and
// returns every thread's assignment
func (r *Runner) Scatter(t *bucket.Table) ([]scheduler.Assignment, launch.Config, error) {
	r.UploadTable(t)
	return r.Run()
}

// Run launches the scatter over the most recently uploaded table
func (r *Runner) Run() ([]scheduler.Assignment, launch.Config, error) {
	if r.table == nil {
		return nil, launch.Config{}, ErrNoTable
	}
	cfg, err := launch.ForTable(r.Descriptor, r.table)
	if err != nil {
		return nil, cfg, err
	}
	if cfg.NumThreads == 0 {
		return nil, cfg, nil
	}

	kernel, err := r.BuildKernel(kernelPreamble(cfg)+scatterKernelSource,
		scatterKernelName, kernelKey(cfg))
	if err != nil {
		return nil, cfg, err
	}
	r.ensureOutput(cfg.NumThreads)

	err = kernel.RunWithArgs(
		r.PooledMemory[memWarpStart],
		r.PooledMemory[memStartPos],
		r.PooledMemory[memEndPos],
		r.PooledMemory[memTaskIDs],
		r.PooledMemory[memRanks],
		r.PooledMemory[memWidths],
		int32(cfg.BlocksPerGrid.X),
		int64(cfg.NumThreads),
	)
	if err != nil {
		return nil, cfg, fmt.Errorf("kernel execution failed: %w", err)
	}
	r.Device.Finish()

	n := cfg.NumThreads
	taskIDs := make([]uint32, n)
	ranks := make([]uint32, n)
	widths := make([]uint32, n)
	size := int64(n * uint32Size)
	r.PooledMemory[memTaskIDs].CopyTo(unsafe.Pointer(&taskIDs[0]), size)
	r.PooledMemory[memRanks].CopyTo(unsafe.Pointer(&ranks[0]), size)
	r.PooledMemory[memWidths].CopyTo(unsafe.Pointer(&widths[0]), size)

	assignments := make([]scheduler.Assignment, n)
	for i := range assignments {
		assignments[i] = scheduler.FromRaw(taskIDs[i], ranks[i], widths[i])
	}
	r.logger.Debug("scatter complete", "launch", cfg.String())
	return assignments, cfg, nil
}

// Free releases all kernels and device memory
func (r *Runner) Free() {
	for _, kernel := range r.Kernels {
		kernel.Free()
	}
	for _, mem := range r.PooledMemory {
		mem.Free()
	}
	r.Kernels = make(map[string]*gocca.OCCAKernel)
	r.PooledMemory = make(map[string]*gocca.OCCAMemory)
	r.table = nil
	r.outputCapacity = 0
}
