package utils

import (
	"fmt"

	"github.com/notargets/gocca"
	"github.com/notargets/warpsched/device"
)

// CreateTestDevice creates a Device for testing, preferring parallel backends
func CreateTestDevice() *gocca.OCCADevice {
	backends := []string{
		`{"mode": "OpenMP"}`,
		`{"mode": "CUDA", "device_id": 0}`,
		`{"mode": "Serial"}`,
	}

	for _, props := range backends {
		dev, err := gocca.NewDevice(props)
		if err == nil {
			fmt.Printf("Created %s Device\n", dev.Mode())
			return dev
		}
	}

	// Serial is always built into OCCA
	panic("Failed to create any Device")
}

// DeviceProps returns the OCCA properties that open the device desc was
// probed through
func DeviceProps(desc device.Descriptor) string {
	switch desc.Backend {
	case "", "CUDA":
		return device.CUDAProps(desc.ID)
	default:
		return fmt.Sprintf(`{"mode": "%s"}`, desc.Backend)
	}
}

// OpenDevice opens the OCCA device for an accepted descriptor
func OpenDevice(desc device.Descriptor) (*gocca.OCCADevice, error) {
	dev, err := gocca.NewDevice(DeviceProps(desc))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", desc.Name, err)
	}
	return dev, nil
}

// HostDescriptor describes an already opened device well enough to plan
// launches on it; CUDA devices are treated as the newest GPU class
func HostDescriptor(dev *gocca.OCCADevice) device.Descriptor {
	desc := device.Descriptor{Name: dev.Mode(), Backend: dev.Mode(), Arch: device.ArchHost}
	if dev.Mode() == "CUDA" {
		desc.Arch = device.ArchNewGen
	}
	return desc
}
