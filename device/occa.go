package device

import (
	"context"
	"fmt"
	"runtime"

	"github.com/notargets/gocca"
)

// DefaultMaxDevices bounds ordinal enumeration through OCCA
const DefaultMaxDevices = 16

// openFunc opens an OCCA device and returns its mode and a release func
type openFunc func(props string) (mode string, release func(), err error)

func openOCCA(props string) (string, func(), error) {
	device, err := gocca.NewDevice(props)
	if err != nil {
		return "", nil, err
	}
	return device.Mode(), func() { device.Free() }, nil
}

// CUDAProps returns the OCCA device properties for a CUDA ordinal
func CUDAProps(id int) string {
	return fmt.Sprintf(`{"mode": "CUDA", "device_id": %d}`, id)
}

// OCCAProber confirms which CUDA ordinals OCCA can open and reports the
// hardware characteristics recorded for them in Inventory
type OCCAProber struct {
	Inventory  map[int]Properties
	MaxDevices int

	open openFunc
}

var _ Prober = (*OCCAProber)(nil)

// NewOCCAProber creates a prober whose ordinal i is described by inventory[i]
func NewOCCAProber(inventory []Properties) *OCCAProber {
	inv := make(map[int]Properties, len(inventory))
	for i, p := range inventory {
		inv[i] = p
	}
	return &OCCAProber{Inventory: inv, MaxDevices: DefaultMaxDevices, open: openOCCA}
}

// NumDevices opens consecutive CUDA ordinals until one fails
func (p *OCCAProber) NumDevices(ctx context.Context) (int, error) {
	maxDevices := p.MaxDevices
	if maxDevices <= 0 {
		maxDevices = DefaultMaxDevices
	}
	count := 0
	for id := 0; id < maxDevices; id++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		mode, release, err := p.open(CUDAProps(id))
		if err != nil {
			break
		}
		release()
		if mode != "CUDA" {
			break
		}
		count++
	}
	return count, nil
}

func (p *OCCAProber) Probe(ctx context.Context, id int) (Properties, error) {
	if err := ctx.Err(); err != nil {
		return Properties{}, err
	}
	props, ok := p.Inventory[id]
	if !ok {
		return Properties{}, fmt.Errorf("%w: no inventory entry for CUDA ordinal %d", ErrUnknownDevice, id)
	}
	props.ID = id
	props.Backend = "CUDA"
	props.Host = false
	return props, nil
}

// HostProber reports the CPU as a single OCCA device, preferring OpenMP
// over Serial
type HostProber struct {
	CoreClockGHz   float64 // Not discoverable portably; taken from configuration
	MemoryClockGHz float64
	MemoryBusWidth int

	open     openFunc
	memInfo  func() (free, total uint64, err error)
	numCores func() int
}

var _ Prober = (*HostProber)(nil)

// NewHostProber creates a host prober with the given nominal clocks
func NewHostProber(coreClockGHz, memoryClockGHz float64, memoryBusWidth int) *HostProber {
	return &HostProber{
		CoreClockGHz:   coreClockGHz,
		MemoryClockGHz: memoryClockGHz,
		MemoryBusWidth: memoryBusWidth,
		open:           openOCCA,
		memInfo:        hostMemory,
		numCores:       runtime.NumCPU,
	}
}

var hostBackends = []string{
	`{"mode": "OpenMP"}`,
	`{"mode": "Serial"}`,
}

func (p *HostProber) backend() (string, error) {
	var lastErr error
	for _, props := range hostBackends {
		mode, release, err := p.open(props)
		if err != nil {
			lastErr = err
			continue
		}
		release()
		return mode, nil
	}
	return "", fmt.Errorf("no host backend available: %w", lastErr)
}

func (p *HostProber) NumDevices(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if _, err := p.backend(); err != nil {
		return 0, err
	}
	return 1, nil
}

func (p *HostProber) Probe(ctx context.Context, id int) (Properties, error) {
	if err := ctx.Err(); err != nil {
		return Properties{}, err
	}
	if id != 0 {
		return Properties{}, fmt.Errorf("%w: host ordinal %d", ErrUnknownDevice, id)
	}
	mode, err := p.backend()
	if err != nil {
		return Properties{}, err
	}
	free, total, err := p.memInfo()
	if err != nil {
		return Properties{}, fmt.Errorf("host memory: %w", err)
	}
	return Properties{
		ID:              0,
		Name:            "host-" + runtime.GOARCH,
		Backend:         mode,
		Host:            true,
		MultiProcessors: p.numCores(),
		CoreClockGHz:    p.CoreClockGHz,
		MemoryClockGHz:  p.MemoryClockGHz,
		MemoryBusWidth:  p.MemoryBusWidth,
		FreeMemory:      free,
		TotalMemory:     total,
	}, nil
}
