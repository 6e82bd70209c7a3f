package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/notargets/warpsched/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const inventoryYAML = `
backend: inventory
log_level: debug
requirements:
  architectures: [kepler, maxwell]
  min_memory: 1GiB
  recommended_memory: 4GiB
devices:
  - name: GTX 980
    compute_capability: "5.2"
    multiprocessors: 16
    core_clock_ghz: 1.2
    memory_clock_ghz: 3.5
    memory_bus_width: 256
    free_memory: 3GiB
    total_memory: 4GiB
  - name: Tesla K40
    compute_capability: "3.5"
    multiprocessors: 15
    core_clock_ghz: 0.75
    memory_clock_ghz: 3.0
    memory_bus_width: 384
    free_memory: 11811160064
metrics:
  enabled: true
  namespace: gem
`

func TestParse_Inventory(t *testing.T) {
	cfg, err := Parse([]byte(inventoryYAML))
	require.NoError(t, err)

	assert.Equal(t, BackendInventory, cfg.Backend)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "gem", cfg.Metrics.Namespace)
	require.Len(t, cfg.Devices, 2)
	assert.Equal(t, ByteSize(3<<30), cfg.Devices[0].FreeMemory)
	assert.Equal(t, ByteSize(11811160064), cfg.Devices[1].FreeMemory)

	req, err := cfg.DeviceRequirements()
	require.NoError(t, err)
	assert.Equal(t, device.ArchKepler|device.ArchMaxwell, req.Selected)
	assert.Equal(t, uint64(1<<30), req.MinMemory)
	assert.Equal(t, uint64(4<<30), req.RecommendedMemory)

	inv, err := cfg.Inventory()
	require.NoError(t, err)
	assert.Equal(t, 5, inv[0].ComputeMajor)
	assert.Equal(t, 2, inv[0].ComputeMinor)
	assert.Equal(t, 1, inv[1].ID)

	prober, err := cfg.Prober()
	require.NoError(t, err)
	assert.IsType(t, &device.StaticProber{}, prober)
}

func TestParse_OCCABackend(t *testing.T) {
	cfg, err := Parse([]byte(`
backend: occa
devices:
  - name: any
    compute_capability: "7.0"
    multiprocessors: 80
`))
	require.NoError(t, err)
	prober, err := cfg.Prober()
	require.NoError(t, err)
	assert.IsType(t, &device.OCCAProber{}, prober)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	req, err := cfg.DeviceRequirements()
	require.NoError(t, err)
	assert.Equal(t, device.ArchAll, req.Selected)

	prober, err := cfg.Prober()
	require.NoError(t, err)
	assert.IsType(t, &device.HostProber{}, prober)
}

func TestValidate_Errors(t *testing.T) {
	testCases := map[string]string{
		"unknown_backend":   "backend: opencl\n",
		"empty_inventory":   "backend: inventory\n",
		"bad_arch":          "requirements:\n  architectures: [tesla]\n",
		"recommended_below": "requirements:\n  min_memory: 2GiB\n  recommended_memory: 1GiB\n",
		"bad_capability": `
backend: inventory
devices:
  - name: x
    compute_capability: "seven"
    multiprocessors: 1
`,
		"no_multiprocessors": `
backend: inventory
devices:
  - name: x
    compute_capability: "7.0"
`,
	}
	for name, doc := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	_, err := Parse([]byte("requirements: [unclosed"))
	assert.Error(t, err)

	_, err = Parse([]byte("requirements:\n  min_memory: lots\n"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "warpsched.yaml")
	require.NoError(t, os.WriteFile(path, []byte(inventoryYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Devices, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParseByteSize(t *testing.T) {
	for in, want := range map[string]ByteSize{
		"0":       0,
		"1024":    1024,
		"512MiB":  512 << 20,
		"1.5 GiB": 3 << 29,
		"2TiB":    2 << 40,
		"64B":     64,
		" 8KiB ":  8 << 10,
	} {
		got, err := ParseByteSize(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, bad := range []string{"", "GiB", "-1GiB", "ten"} {
		_, err := ParseByteSize(bad)
		assert.Error(t, err, bad)
	}
}

func TestByteSize_String(t *testing.T) {
	assert.Equal(t, "4GiB", ByteSize(4<<30).String())
	assert.Equal(t, "1536MiB", ByteSize(3<<29).String())
	assert.Equal(t, "100B", ByteSize(100).String())
	assert.Equal(t, "0B", ByteSize(0).String())
}
