package metrics

import (
	"context"
	"testing"

	"github.com/notargets/warpsched/device"
	"github.com/notargets/warpsched/scheduler"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalog(t *testing.T) *device.Catalog {
	t.Helper()
	prober := device.NewStaticProber([]device.Properties{
		{Name: "a", ComputeMajor: 5, ComputeMinor: 2, MultiProcessors: 16,
			CoreClockGHz: 1.0, MemoryClockGHz: 2.0, MemoryBusWidth: 256, FreeMemory: 1 << 30},
		{Name: "b", ComputeMajor: 5, ComputeMinor: 2, MultiProcessors: 8,
			CoreClockGHz: 1.0, MemoryClockGHz: 2.0, MemoryBusWidth: 128, FreeMemory: 1 << 30},
		{Name: "old", ComputeMajor: 1, ComputeMinor: 0, MultiProcessors: 8, FreeMemory: 1 << 30},
	})
	cat, err := device.Setup(context.Background(), prober, device.Requirements{})
	require.NoError(t, err)
	return cat
}

func TestCollector_ObserveCatalog(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg, "test")
	require.NoError(t, err)

	c.ObserveCatalog(testCatalog(t))

	assert.Equal(t, 2.0, testutil.ToFloat64(c.devicesSupported))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.devicesRejected))
	assert.Equal(t, 2048.0, testutil.ToFloat64(
		c.devicePerformance.WithLabelValues("0", "a", "maxwell")))
	assert.Equal(t, 0.5, testutil.ToFloat64(
		c.deviceRelative.WithLabelValues("1", "b", "maxwell", "performance")))
	assert.Equal(t, 0.5, testutil.ToFloat64(
		c.deviceRelative.WithLabelValues("1", "b", "maxwell", "bandwidth")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.deviceBandwidth))
}

func TestCollector_ObserveScatter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg, "test")
	require.NoError(t, err)

	c.ObserveScatter(scheduler.Occupancy{Active: 80, Disabled: 48, Tasks: 50})
	c.ObserveScatter(scheduler.Occupancy{Active: 32, Disabled: 0, Tasks: 1})

	assert.Equal(t, 2.0, testutil.ToFloat64(c.launches))
	assert.Equal(t, 112.0, testutil.ToFloat64(c.activeLanes))
	assert.Equal(t, 48.0, testutil.ToFloat64(c.disabledLanes))
	assert.Equal(t, 51.0, testutil.ToFloat64(c.tasks))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.efficiency))
}

func TestNewCollector_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewCollector(reg, "dup")
	require.NoError(t, err)
	_, err = NewCollector(reg, "dup")
	assert.Error(t, err)
}
