package device

import "errors"

// Sentinel errors returned by device setup.
var (
	// ErrDriverInit is returned when the device runtime cannot be queried.
	ErrDriverInit = errors.New("device driver initialization failed")

	// ErrNoDevices is returned when enumeration finds no physical device.
	ErrNoDevices = errors.New("no devices found")

	// ErrNoSupportedDevices is returned when every device fails screening.
	ErrNoSupportedDevices = errors.New("no device meets the requirements")

	// ErrUnsupportedArchitecture is returned for classes outside the selected set.
	ErrUnsupportedArchitecture = errors.New("unsupported architecture")

	// ErrInsufficientMemory is returned when free memory is below the minimum.
	ErrInsufficientMemory = errors.New("insufficient free memory")

	// ErrUnknownDevice is returned when a prober has no properties for an ordinal.
	ErrUnknownDevice = errors.New("unknown device")
)
