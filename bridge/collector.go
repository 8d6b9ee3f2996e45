package bridge

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wtc-scada/pnioctl/cyclicio"
)

// Collector exports per-RTU AR state and cyclic I/O frame counters as
// Prometheus metrics: every metric a fixed *prometheus.Desc built once in
// NewCollector, Collect iterating the currently registered stations under a
// short critical section.
type Collector struct {
	registry *Registry

	mu       sync.Mutex
	bindings map[string]*cyclicio.Binding

	arStateDesc     *prometheus.Desc
	framesSentDesc  *prometheus.Desc
	framesRecvDesc  *prometheus.Desc
	cycleMissDesc   *prometheus.Desc
	decodeErrorDesc *prometheus.Desc
	activeAlarmDesc *prometheus.Desc
}

// NewCollector returns a Collector reading status from registry and cyclic
// counters from whatever Bindings are registered with RegisterBinding.
func NewCollector(registry *Registry) *Collector {
	return &Collector{
		registry: registry,
		bindings: make(map[string]*cyclicio.Binding),
		arStateDesc: prometheus.NewDesc(
			"pnioctl_ar_state",
			"Current AR state as an enumerated value (0=Idle .. 7=Error).",
			[]string{"station"}, nil,
		),
		framesSentDesc: prometheus.NewDesc(
			"pnioctl_cyclic_frames_sent_total",
			"Total cyclic output frames sent for this station's AR.",
			[]string{"station", "direction"}, nil,
		),
		framesRecvDesc: prometheus.NewDesc(
			"pnioctl_cyclic_frames_received_total",
			"Total cyclic input frames received for this station's AR.",
			[]string{"station", "direction"}, nil,
		),
		cycleMissDesc: prometheus.NewDesc(
			"pnioctl_cyclic_cycle_misses_total",
			"Total cycles where no new cycle counter value was observed.",
			[]string{"station", "direction"}, nil,
		),
		decodeErrorDesc: prometheus.NewDesc(
			"pnioctl_cyclic_decode_errors_total",
			"Total cyclic frame decode errors.",
			[]string{"station", "direction"}, nil,
		),
		activeAlarmDesc: prometheus.NewDesc(
			"pnioctl_active_alarms",
			"Externally reported active alarm count for this station.",
			[]string{"station"}, nil,
		),
	}
}

// RegisterBinding makes b's frame counters visible to Collect.
func (c *Collector) RegisterBinding(b *cyclicio.Binding) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bindings[b.StationName] = b
}

// UnregisterBinding stops exporting counters for stationName.
func (c *Collector) UnregisterBinding(stationName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.bindings, stationName)
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.arStateDesc
	ch <- c.framesSentDesc
	ch <- c.framesRecvDesc
	ch <- c.cycleMissDesc
	ch <- c.decodeErrorDesc
	ch <- c.activeAlarmDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, s := range c.registry.Snapshot() {
		ch <- prometheus.MustNewConstMetric(c.arStateDesc, prometheus.GaugeValue, float64(s.ARState), s.Station)
		ch <- prometheus.MustNewConstMetric(c.activeAlarmDesc, prometheus.GaugeValue, float64(s.ActiveAlarms), s.Station)
	}

	c.mu.Lock()
	bindings := make([]*cyclicio.Binding, 0, len(c.bindings))
	for _, b := range c.bindings {
		bindings = append(bindings, b)
	}
	c.mu.Unlock()

	for _, b := range bindings {
		c.collectStats(ch, b.StationName, "input", &b.InputStats)
		c.collectStats(ch, b.StationName, "output", &b.OutputStats)
	}
}

func (c *Collector) collectStats(ch chan<- prometheus.Metric, station, direction string, stats *cyclicio.Stats) {
	sent, recv, cycleMisses, decodeErrors := stats.Snapshot()
	ch <- prometheus.MustNewConstMetric(c.framesSentDesc, prometheus.CounterValue, float64(sent), station, direction)
	ch <- prometheus.MustNewConstMetric(c.framesRecvDesc, prometheus.CounterValue, float64(recv), station, direction)
	ch <- prometheus.MustNewConstMetric(c.cycleMissDesc, prometheus.CounterValue, float64(cycleMisses), station, direction)
	ch <- prometheus.MustNewConstMetric(c.decodeErrorDesc, prometheus.CounterValue, float64(decodeErrors), station, direction)
}

var _ prometheus.Collector = (*Collector)(nil)
