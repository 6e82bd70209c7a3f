// Package launch derives kernel launch dimensions from device capability.
package launch

import (
	"errors"
	"fmt"

	"github.com/notargets/warpsched/bucket"
	"github.com/notargets/warpsched/device"
)

// ErrInvalidThreadCount is returned for negative thread counts
var ErrInvalidThreadCount = errors.New("invalid thread count")

// Dim3 matches CUDA's dim3 launch dimensions
type Dim3 struct {
	X, Y, Z int
}

// Size returns the number of elements spanned by the dimensions
func (d Dim3) Size() int {
	return d.X * d.Y * d.Z
}

// Config is the launch configuration for one scatter kernel
type Config struct {
	BlocksPerGrid   Dim3
	ThreadsPerBlock Dim3
	NumThreads      int // Threads with work; kernels skip indices at or above it
}

// Launched is the number of threads the grid actually starts
func (c Config) Launched() int {
	return c.BlocksPerGrid.Size() * c.ThreadsPerBlock.Size()
}

func (c Config) String() string {
	return fmt.Sprintf("grid=%d block=%d threads=%d",
		c.BlocksPerGrid.X, c.ThreadsPerBlock.X, c.NumThreads)
}

// PlanArch sizes a one-dimensional launch of numThreads threads using the
// architecture's threads-per-block
func PlanArch(arch device.Architecture, numThreads int) (Config, error) {
	if numThreads < 0 {
		return Config{}, fmt.Errorf("%w: %d", ErrInvalidThreadCount, numThreads)
	}
	threadsPerBlock := device.ThreadsPerBlock(arch)
	if threadsPerBlock == 0 {
		return Config{}, fmt.Errorf("%w: %s", device.ErrUnsupportedArchitecture, arch)
	}
	blocksPerGrid := (numThreads + threadsPerBlock - 1) / threadsPerBlock
	return Config{
		BlocksPerGrid:   Dim3{X: blocksPerGrid, Y: 1, Z: 1},
		ThreadsPerBlock: Dim3{X: threadsPerBlock, Y: 1, Z: 1},
		NumThreads:      numThreads,
	}, nil
}

// Plan sizes a launch for the device described by desc
func Plan(desc device.Descriptor, numThreads int) (Config, error) {
	return PlanArch(desc.Arch, numThreads)
}

// ForTable sizes the launch that runs the scatter over table: exactly one
// thread per covered lane, so no thread below NumThreads falls outside the
// table's warps
func ForTable(desc device.Descriptor, table *bucket.Table) (Config, error) {
	return Plan(desc, table.NumThreads())
}
