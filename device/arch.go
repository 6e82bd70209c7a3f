package device

import (
	"fmt"
	"runtime"
	"strings"

	"golang.org/x/sys/cpu"
)

// Architecture is a hardware generation class. Values are bit flags so a
// set of supported classes can be expressed as one mask.
type Architecture uint32

const (
	ArchUnknown Architecture = 0
	ArchFermi   Architecture = 1 << iota
	ArchKepler
	ArchMaxwell
	ArchNewGen // Pascal and later
	ArchHost   // OCCA Serial/OpenMP backends running on the CPU
)

// ArchGPU selects every GPU generation
const ArchGPU = ArchFermi | ArchKepler | ArchMaxwell | ArchNewGen

// ArchAll selects every known class including the host backend
const ArchAll = ArchGPU | ArchHost

// Has reports whether every bit of other is set in a
func (a Architecture) Has(other Architecture) bool {
	return other != ArchUnknown && a&other == other
}

func (a Architecture) String() string {
	if a == ArchUnknown {
		return "unknown"
	}
	var names []string
	for _, spec := range archTable {
		if a&spec.Arch != 0 {
			names = append(names, spec.Name)
		}
	}
	if len(names) == 0 {
		return fmt.Sprintf("Architecture(%#x)", uint32(a))
	}
	return strings.Join(names, "|")
}

// ArchSpec holds the per-generation constants used for sizing and scoring
type ArchSpec struct {
	Arch              Architecture
	Name              string
	MinMajor          int         // Lowest compute capability major version in the class
	CoresPerSM        int         // Cores per streaming multiprocessor; 0 means derived at runtime
	CoresPerSMByMinor map[int]int // Overrides keyed by compute capability minor version
	ThreadsPerBlock   int
}

// archTable is ordered by ascending MinMajor. Adding a generation is adding a row.
var archTable = []ArchSpec{
	{Arch: ArchFermi, Name: "fermi", MinMajor: 2, CoresPerSM: 32, CoresPerSMByMinor: map[int]int{1: 48}, ThreadsPerBlock: 256},
	{Arch: ArchKepler, Name: "kepler", MinMajor: 3, CoresPerSM: 192, ThreadsPerBlock: 128},
	{Arch: ArchMaxwell, Name: "maxwell", MinMajor: 5, CoresPerSM: 128, ThreadsPerBlock: 64},
	{Arch: ArchNewGen, Name: "newgen", MinMajor: 6, CoresPerSM: 64, ThreadsPerBlock: 64},
	{Arch: ArchHost, Name: "host", MinMajor: -1, CoresPerSM: 0, ThreadsPerBlock: 256},
}

// LookupArch returns the table row for a single architecture class
func LookupArch(arch Architecture) (ArchSpec, bool) {
	for _, spec := range archTable {
		if spec.Arch == arch {
			return spec, true
		}
	}
	return ArchSpec{}, false
}

// Architectures returns the known classes in table order
func Architectures() []ArchSpec {
	specs := make([]ArchSpec, len(archTable))
	copy(specs, archTable)
	return specs
}

// ParseArchitecture maps a class name to its flag
func ParseArchitecture(name string) (Architecture, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "gpu":
		return ArchGPU, nil
	case "all":
		return ArchAll, nil
	}
	for _, spec := range archTable {
		if spec.Name == name {
			return spec.Arch, nil
		}
	}
	return ArchUnknown, fmt.Errorf("%w: %q", ErrUnsupportedArchitecture, name)
}

// ParseArchitectures combines several class names into one mask
func ParseArchitectures(names []string) (Architecture, error) {
	var mask Architecture
	for _, name := range names {
		arch, err := ParseArchitecture(name)
		if err != nil {
			return ArchUnknown, err
		}
		mask |= arch
	}
	return mask, nil
}

// ClassifyCapability maps a CUDA compute capability to a GPU class.
// Capabilities older than Fermi are ArchUnknown.
func ClassifyCapability(major, minor int) Architecture {
	arch := ArchUnknown
	for _, spec := range archTable {
		if spec.Arch == ArchHost {
			continue
		}
		if major >= spec.MinMajor {
			arch = spec.Arch
		}
	}
	return arch
}

// Classify returns the class of a probed device
func Classify(p Properties) Architecture {
	if p.Host {
		return ArchHost
	}
	return ClassifyCapability(p.ComputeMajor, p.ComputeMinor)
}

// SMCores returns the core density of one multiprocessor
func SMCores(arch Architecture, minor int) int {
	spec, ok := LookupArch(arch)
	if !ok {
		return 0
	}
	if cores, ok := spec.CoresPerSMByMinor[minor]; ok {
		return cores
	}
	if spec.CoresPerSM == 0 && arch == ArchHost {
		return hostVectorLanes()
	}
	return spec.CoresPerSM
}

// ThreadsPerBlock returns the block size used for launches on the class
func ThreadsPerBlock(arch Architecture) int {
	spec, ok := LookupArch(arch)
	if !ok {
		return 0
	}
	return spec.ThreadsPerBlock
}

// hostVectorLanes is the float32 SIMD width of one CPU core
func hostVectorLanes() int {
	switch runtime.GOARCH {
	case "amd64", "386":
		switch {
		case cpu.X86.HasAVX512F:
			return 16
		case cpu.X86.HasAVX2, cpu.X86.HasAVX:
			return 8
		case cpu.X86.HasSSE2:
			return 4
		}
	case "arm64":
		if cpu.ARM64.HasASIMD {
			return 4
		}
	}
	return 1
}
