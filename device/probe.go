package device

import (
	"context"
	"fmt"
)

// Prober enumerates physical devices and reports their raw properties.
// Probe may be called concurrently for different ordinals.
type Prober interface {
	NumDevices(ctx context.Context) (int, error)
	Probe(ctx context.Context, id int) (Properties, error)
}

// StaticProber reports a fixed inventory, ordinal i being Devices[i]
type StaticProber struct {
	Devices []Properties
}

var _ Prober = (*StaticProber)(nil)

// NewStaticProber creates a prober over a copy of devices
func NewStaticProber(devices []Properties) *StaticProber {
	return &StaticProber{Devices: append([]Properties(nil), devices...)}
}

func (s *StaticProber) NumDevices(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return len(s.Devices), nil
}

func (s *StaticProber) Probe(ctx context.Context, id int) (Properties, error) {
	if err := ctx.Err(); err != nil {
		return Properties{}, err
	}
	if id < 0 || id >= len(s.Devices) {
		return Properties{}, fmt.Errorf("%w: ordinal %d", ErrUnknownDevice, id)
	}
	p := s.Devices[id]
	p.ID = id
	return p, nil
}
