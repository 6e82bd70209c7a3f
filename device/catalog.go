package device

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/notargets/warpsched/logging"
	"gonum.org/v1/gonum/floats"
)

// Rejection records why a probed device was left out of the active set
type Rejection struct {
	ID  int
	Err error
}

// Catalog holds the descriptors of every accepted device. It is built once
// by Setup and read-only afterwards.
type Catalog struct {
	numDevices        int
	devices           []Descriptor
	rejected          []Rejection
	systemPerformance float64
	systemBandwidth   float64
}

// Option configures Setup
type Option func(*options)

type options struct {
	logger logging.Logger
}

// WithLogger sets the logger used while probing and screening
func WithLogger(logger logging.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

type probeResult struct {
	props Properties
	err   error
}

// Setup enumerates every device through prober, probes them concurrently,
// screens each one against req and characterizes the accepted set. A device
// that fails probing or screening is rejected for the life of the process.
func Setup(ctx context.Context, prober Prober, req Requirements, opts ...Option) (*Catalog, error) {
	o := options{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	numDevices, err := prober.NumDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDriverInit, err)
	}
	if numDevices < 0 {
		return nil, fmt.Errorf("%w: device count %d", ErrDriverInit, numDevices)
	}
	if numDevices == 0 {
		return nil, ErrNoDevices
	}

	// Each probe writes only its own slot
	results := make([]probeResult, numDevices)
	var wg sync.WaitGroup
	for id := 0; id < numDevices; id++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			props, err := prober.Probe(ctx, id)
			props.ID = id
			results[id] = probeResult{props: props, err: err}
		}()
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cat := &Catalog{numDevices: numDevices}
	for id, res := range results {
		if res.err != nil {
			o.logger.Warn("device probe failed", "device", id, "error", res.err)
			cat.rejected = append(cat.rejected, Rejection{ID: id, Err: res.err})
			continue
		}

		arch := Classify(res.props)
		recommended, err := ScreenStatus(id, req.Supports(arch), res.props.FreeMemory, req)
		if err != nil {
			o.logger.Info("device rejected", "device", id, "name", res.props.Name, "arch", arch, "error", err)
			cat.rejected = append(cat.rejected, Rejection{ID: id, Err: err})
			continue
		}
		if !recommended {
			o.logger.Warn("device below recommended memory", "device", id,
				"free", res.props.FreeMemory, "recommended", req.RecommendedMemory)
		}

		desc := newDescriptor(res.props, arch, len(cat.devices), recommended)
		cat.devices = append(cat.devices, desc)
		o.logger.Debug("device accepted", "device", id, "supported_id", desc.SupportedID,
			"arch", arch, "cores", desc.Cores)
	}

	if len(cat.devices) == 0 {
		reasons := make([]error, len(cat.rejected))
		for i, r := range cat.rejected {
			reasons[i] = r.Err
		}
		return nil, fmt.Errorf("%w: %w", ErrNoSupportedDevices, errors.Join(reasons...))
	}

	cat.characterize()
	o.logger.Info("device catalog ready", "devices", numDevices, "supported", len(cat.devices),
		"gops", cat.systemPerformance, "gbps", cat.systemBandwidth)
	return cat, nil
}

// characterize normalizes each device's scores against the best accepted device
func (c *Catalog) characterize() {
	perf := make([]float64, len(c.devices))
	bw := make([]float64, len(c.devices))
	for i, d := range c.devices {
		perf[i] = d.AbsolutePerformance
		bw[i] = d.AbsoluteBandwidth
	}
	c.systemPerformance = floats.Sum(perf)
	c.systemBandwidth = floats.Sum(bw)

	normalize(perf)
	normalize(bw)
	for i := range c.devices {
		c.devices[i].RelativePerformance = perf[i]
		c.devices[i].RelativeBandwidth = bw[i]
	}
}

// normalize scales v so its largest entry is 1; all-zero input stays zero
func normalize(v []float64) {
	peak := floats.Max(v)
	if peak <= 0 {
		return
	}
	floats.Scale(1/peak, v)
}

// NumDevices is the number of physical devices enumerated
func (c *Catalog) NumDevices() int { return c.numDevices }

// NumSupported is the number of accepted devices
func (c *Catalog) NumSupported() int { return len(c.devices) }

// Devices returns a copy of the accepted descriptors ordered by SupportedID
func (c *Catalog) Devices() []Descriptor {
	devices := make([]Descriptor, len(c.devices))
	copy(devices, c.devices)
	return devices
}

// Device returns the descriptor with the given SupportedID
func (c *Catalog) Device(supportedID int) (Descriptor, error) {
	if supportedID < 0 || supportedID >= len(c.devices) {
		return Descriptor{}, fmt.Errorf("%w: supported id %d of %d",
			ErrUnknownDevice, supportedID, len(c.devices))
	}
	return c.devices[supportedID], nil
}

// Rejected lists the devices left out and why
func (c *Catalog) Rejected() []Rejection {
	rejected := make([]Rejection, len(c.rejected))
	copy(rejected, c.rejected)
	return rejected
}

// Fastest returns the accepted device with the highest performance score
func (c *Catalog) Fastest() Descriptor {
	best := c.devices[0]
	for _, d := range c.devices[1:] {
		if d.AbsolutePerformance > best.AbsolutePerformance {
			best = d
		}
	}
	return best
}

// SystemPerformance is the summed performance of accepted devices in GOps/s
func (c *Catalog) SystemPerformance() float64 { return c.systemPerformance }

// SystemBandwidth is the summed bandwidth of accepted devices in GB/s
func (c *Catalog) SystemBandwidth() float64 { return c.systemBandwidth }
