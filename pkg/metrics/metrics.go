// Package metrics exposes pin counters in the Prometheus text format,
// written to a local file for the node exporter textfile collector.
package metrics

import (
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"gpioisr/pkg/pulse"
)

const namespace = "gpioisr"

// Source provides pin snapshots.
type Source interface {
	Snapshots(dst []pulse.Snapshot) []pulse.Snapshot
}

// Collector is a prometheus.Collector reading pin snapshots on each scrape.
type Collector struct {
	src Source

	pulses   *prometheus.Desc
	period   *prometheus.Desc
	budget   *prometheus.Desc
	rising   *prometheus.Desc
	rejected *prometheus.Desc
}

// NewCollector returns a Collector over src.
func NewCollector(src Source) *Collector {
	return &Collector{
		src: src,
		pulses: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "pulses_total"),
			"Accepted pulses, including the count restored at startup.",
			[]string{"pin"}, nil),
		period: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "last_period_milliseconds"),
			"Time between the two most recent accepted pulses.",
			[]string{"pin"}, nil),
		budget: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "ignore_budget"),
			"Remaining ignore budget; the period is trusted at zero.",
			[]string{"pin"}, nil),
		rising: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "rising_edges_total"),
			"Rising edges observed since startup.",
			[]string{"pin"}, nil),
		rejected: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "rejected_edges_total"),
			"Falling edges rejected since startup.",
			[]string{"pin", "reason"}, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.pulses
	ch <- c.period
	ch <- c.budget
	ch <- c.rising
	ch <- c.rejected
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, s := range c.src.Snapshots(nil) {
		pin := strconv.Itoa(s.Pin)
		ch <- prometheus.MustNewConstMetric(c.pulses, prometheus.CounterValue, float64(s.TotalCount), pin)
		ch <- prometheus.MustNewConstMetric(c.period, prometheus.GaugeValue, float64(s.LastPeriodMs), pin)
		ch <- prometheus.MustNewConstMetric(c.budget, prometheus.GaugeValue, float64(s.IgnoreBudget), pin)
		ch <- prometheus.MustNewConstMetric(c.rising, prometheus.CounterValue, float64(s.RisingEdges), pin)
		ch <- prometheus.MustNewConstMetric(c.rejected, prometheus.CounterValue, float64(s.RejectedNoRise), pin, "no_rise")
		ch <- prometheus.MustNewConstMetric(c.rejected, prometheus.CounterValue, float64(s.RejectedWidth), pin, "width")
	}
}

// Textfile writes the metrics of a Source to a file.
type Textfile struct {
	path string
	reg  *prometheus.Registry
}

// NewTextfile returns a Textfile writing the metrics of src to path.
func NewTextfile(path string, src Source) (*Textfile, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(NewCollector(src)); err != nil {
		return nil, fmt.Errorf("register collector: %w", err)
	}
	return &Textfile{path: path, reg: reg}, nil
}

// Path returns the output file path.
func (t *Textfile) Path() string {
	return t.path
}

// Write replaces the file with the current metrics.
func (t *Textfile) Write() error {
	if err := prometheus.WriteToTextfile(t.path, t.reg); err != nil {
		return fmt.Errorf("write metrics %q: %w", t.path, err)
	}
	return nil
}
