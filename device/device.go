// Package device enumerates and characterizes compute devices so that
// launch parameters can be derived from hardware capability.
package device

import (
	"fmt"
)

// Properties is what a Prober reports for one physical device
type Properties struct {
	ID              int
	Name            string
	Backend         string // OCCA mode used to open the device: "CUDA", "OpenMP", "Serial"
	Host            bool   // CPU backend rather than a GPU
	ComputeMajor    int
	ComputeMinor    int
	MultiProcessors int
	CoreClockGHz    float64
	MemoryClockGHz  float64
	MemoryBusWidth  int // bits
	FreeMemory      uint64
	TotalMemory     uint64
}

// Requirements gate which devices join the active set
type Requirements struct {
	Selected          Architecture // Accepted classes; zero means ArchGPU
	MinMemory         uint64       // Required free bytes
	RecommendedMemory uint64       // Free bytes below which a device is flagged
}

func (r Requirements) selected() Architecture {
	if r.Selected == ArchUnknown {
		return ArchGPU
	}
	return r.Selected
}

// Supports reports whether arch is one of the selected classes
func (r Requirements) Supports(arch Architecture) bool {
	return arch != ArchUnknown && r.selected().Has(arch)
}

// Descriptor is the immutable characterization of an accepted device
type Descriptor struct {
	ID               int // Ordinal among all physical devices
	SupportedID      int // Ordinal among accepted devices
	Name             string
	Backend          string
	Arch             Architecture
	Cores            int
	CoreClockGHz     float64
	MemoryClockGHz   float64
	MemoryBusWidth   int
	FreeMemory       uint64
	MeetsRecommended bool

	AbsolutePerformance float64 // GOps/s
	RelativePerformance float64 // Ratio to the fastest accepted device
	AbsoluteBandwidth   float64 // GB/s
	RelativeBandwidth   float64 // Ratio to the widest accepted device
}

func (d Descriptor) String() string {
	return fmt.Sprintf("device %d (%s, %s): %d cores, %.1f GOps/s (%.2f), %.1f GB/s (%.2f)",
		d.ID, d.Name, d.Arch, d.Cores,
		d.AbsolutePerformance, d.RelativePerformance,
		d.AbsoluteBandwidth, d.RelativeBandwidth)
}

// ScreenStatus decides whether device id may join the active set. It fails
// for unsupported classes and for free memory below MinMemory; otherwise it
// reports whether RecommendedMemory is also met.
func ScreenStatus(id int, archSupported bool, freeMemory uint64, req Requirements) (recommended bool, err error) {
	if !archSupported {
		return false, fmt.Errorf("device %d: %w", id, ErrUnsupportedArchitecture)
	}
	if freeMemory < req.MinMemory {
		return false, fmt.Errorf("device %d: %w: %d free, %d required",
			id, ErrInsufficientMemory, freeMemory, req.MinMemory)
	}
	return freeMemory >= req.RecommendedMemory, nil
}

// newDescriptor builds the absolute part of a descriptor; relative scores
// are filled in once every device is known
func newDescriptor(p Properties, arch Architecture, supportedID int, recommended bool) Descriptor {
	cores := p.MultiProcessors * SMCores(arch, p.ComputeMinor)
	return Descriptor{
		ID:                  p.ID,
		SupportedID:         supportedID,
		Name:                p.Name,
		Backend:             p.Backend,
		Arch:                arch,
		Cores:               cores,
		CoreClockGHz:        p.CoreClockGHz,
		MemoryClockGHz:      p.MemoryClockGHz,
		MemoryBusWidth:      p.MemoryBusWidth,
		FreeMemory:          p.FreeMemory,
		MeetsRecommended:    recommended,
		AbsolutePerformance: float64(cores) * p.CoreClockGHz,
		// Double data rate: two transfers per memory clock
		AbsoluteBandwidth: 2 * p.MemoryClockGHz * float64(p.MemoryBusWidth) / 8,
	}
}
