// Package metrics exports device characterization and scatter occupancy
// to Prometheus.
package metrics

import (
	"strconv"

	"github.com/notargets/warpsched/device"
	"github.com/notargets/warpsched/scheduler"
	"github.com/prometheus/client_golang/prometheus"
)

// Collector owns the warpsched metric families
type Collector struct {
	devicePerformance *prometheus.GaugeVec
	deviceBandwidth   *prometheus.GaugeVec
	deviceRelative    *prometheus.GaugeVec
	deviceFreeMemory  *prometheus.GaugeVec
	devicesSupported  prometheus.Gauge
	devicesRejected   prometheus.Gauge

	launches      prometheus.Counter
	activeLanes   prometheus.Counter
	disabledLanes prometheus.Counter
	tasks         prometheus.Counter
	efficiency    prometheus.Gauge
}

var deviceLabels = []string{"device", "name", "arch"}

// NewCollector creates the metric families and registers them with reg
func NewCollector(reg prometheus.Registerer, namespace string) (*Collector, error) {
	c := &Collector{
		devicePerformance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "device", Name: "performance_gops",
			Help: "Estimated absolute device performance in GOps/s.",
		}, deviceLabels),
		deviceBandwidth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "device", Name: "bandwidth_gbps",
			Help: "Estimated absolute device memory bandwidth in GB/s.",
		}, deviceLabels),
		deviceRelative: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "device", Name: "relative_score",
			Help: "Device score relative to the best accepted device.",
		}, append(deviceLabels, "metric")),
		deviceFreeMemory: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "device", Name: "free_memory_bytes",
			Help: "Free device memory observed at setup.",
		}, deviceLabels),
		devicesSupported: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "catalog", Name: "supported_devices",
			Help: "Devices accepted into the active set.",
		}),
		devicesRejected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "catalog", Name: "rejected_devices",
			Help: "Devices rejected by probing or screening.",
		}),
		launches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "scatter", Name: "launches_total",
			Help: "Scatter launches observed.",
		}),
		activeLanes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "scatter", Name: "active_lanes_total",
			Help: "Lanes that received a task.",
		}),
		disabledLanes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "scatter", Name: "disabled_lanes_total",
			Help: "Padding lanes that received no task.",
		}),
		tasks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "scatter", Name: "tasks_total",
			Help: "Tasks scheduled.",
		}),
		efficiency: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "scatter", Name: "lane_efficiency",
			Help: "Fraction of active lanes in the most recent launch.",
		}),
	}

	for _, col := range []prometheus.Collector{
		c.devicePerformance, c.deviceBandwidth, c.deviceRelative, c.deviceFreeMemory,
		c.devicesSupported, c.devicesRejected,
		c.launches, c.activeLanes, c.disabledLanes, c.tasks, c.efficiency,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// ObserveCatalog publishes the characterization of every accepted device
func (c *Collector) ObserveCatalog(cat *device.Catalog) {
	c.devicesSupported.Set(float64(cat.NumSupported()))
	c.devicesRejected.Set(float64(len(cat.Rejected())))

	for _, d := range cat.Devices() {
		labels := prometheus.Labels{
			"device": strconv.Itoa(d.ID),
			"name":   d.Name,
			"arch":   d.Arch.String(),
		}
		c.devicePerformance.With(labels).Set(d.AbsolutePerformance)
		c.deviceBandwidth.With(labels).Set(d.AbsoluteBandwidth)
		c.deviceFreeMemory.With(labels).Set(float64(d.FreeMemory))

		perf := prometheus.Labels{"metric": "performance"}
		bw := prometheus.Labels{"metric": "bandwidth"}
		for k, v := range labels {
			perf[k] = v
			bw[k] = v
		}
		c.deviceRelative.With(perf).Set(d.RelativePerformance)
		c.deviceRelative.With(bw).Set(d.RelativeBandwidth)
	}
}

// ObserveScatter records the lane usage of one launch
func (c *Collector) ObserveScatter(o scheduler.Occupancy) {
	c.launches.Inc()
	c.activeLanes.Add(float64(o.Active))
	c.disabledLanes.Add(float64(o.Disabled))
	c.tasks.Add(float64(o.Tasks))
	c.efficiency.Set(o.Efficiency())
}
