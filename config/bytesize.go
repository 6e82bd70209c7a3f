package config

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ByteSize is a memory amount that decodes from plain integers or from
// strings with a binary suffix such as "512MiB" or "4GiB"
type ByteSize uint64

var byteUnits = []struct {
	suffix string
	scale  uint64
}{
	{"TiB", 1 << 40},
	{"GiB", 1 << 30},
	{"MiB", 1 << 20},
	{"KiB", 1 << 10},
	{"B", 1},
}

// ParseByteSize parses "1073741824", "1GiB" or "1.5 GiB"
func ParseByteSize(s string) (ByteSize, error) {
	s = strings.TrimSpace(s)
	for _, u := range byteUnits {
		if num, ok := strings.CutSuffix(s, u.suffix); ok {
			v, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
			if err != nil || v < 0 {
				return 0, fmt.Errorf("invalid byte size %q", s)
			}
			return ByteSize(v * float64(u.scale)), nil
		}
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size %q", s)
	}
	return ByteSize(v), nil
}

// UnmarshalYAML accepts integers and suffixed strings
func (b *ByteSize) UnmarshalYAML(node *yaml.Node) error {
	v, err := ParseByteSize(node.Value)
	if err != nil {
		return err
	}
	*b = v
	return nil
}

// MarshalYAML writes the size in bytes
func (b ByteSize) MarshalYAML() (any, error) {
	return uint64(b), nil
}

func (b ByteSize) String() string {
	for _, u := range byteUnits[:len(byteUnits)-1] {
		if uint64(b) >= u.scale && uint64(b)%u.scale == 0 {
			return fmt.Sprintf("%d%s", uint64(b)/u.scale, u.suffix)
		}
	}
	return fmt.Sprintf("%dB", uint64(b))
}
