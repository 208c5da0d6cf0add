package report

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "chantrack"

// Collector exports the tracked channels as Prometheus gauges. Every scrape
// takes fresh snapshots from its source.
type Collector struct {
	source Source

	channels   *prometheus.Desc
	members    *prometheus.Desc
	withStatus *prometheus.Desc
	complete   *prometheus.Desc
}

func NewCollector(source Source) *Collector {
	if source == nil {
		panic("source must not be nil")
	}
	channelLabel := []string{"channel"}
	return &Collector{
		source: source,
		channels: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "tracked_channels"),
			"Number of tracked channels.",
			nil, nil),
		members: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "channel", "members"),
			"Number of members in a tracked channel.",
			channelLabel, nil),
		withStatus: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "channel", "members_with_status"),
			"Number of members holding at least one channel user mode.",
			channelLabel, nil),
		complete: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "channel", "member_list_complete"),
			"1 if the server confirmed the member list, 0 otherwise.",
			channelLabel, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.channels
	ch <- c.members
	ch <- c.withStatus
	ch <- c.complete
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snapshots := c.source.Channels()
	ch <- prometheus.MustNewConstMetric(c.channels, prometheus.GaugeValue,
		float64(len(snapshots)))
	for _, snap := range snapshots {
		name := snap.Name()
		users := snap.Users()
		ch <- prometheus.MustNewConstMetric(c.members, prometheus.GaugeValue,
			float64(len(users)), name)
		ch <- prometheus.MustNewConstMetric(c.withStatus, prometheus.GaugeValue,
			float64(countWithStatus(snap)), name)
		complete := 0.0
		if snap.IsComplete() {
			complete = 1
		}
		ch <- prometheus.MustNewConstMetric(c.complete, prometheus.GaugeValue,
			complete, name)
	}
}
