package metric

import "github.com/prometheus/client_golang/prometheus"

// SessionCounts reports resident and indexed session counts.
type SessionCounts func() (resident, indexed int)

// SessionCollector reads session counts at scrape time.
type SessionCollector struct {
	counts   SessionCounts
	resident *prometheus.Desc
	indexed  *prometheus.Desc
}

// NewSessionCollector returns a collector over counts.
func NewSessionCollector(counts SessionCounts) *SessionCollector {
	return &SessionCollector{
		counts: counts,
		resident: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "sessions", "resident"),
			"Sessions currently held in memory.", nil, nil),
		indexed: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "sessions", "indexed"),
			"Resident sessions with a recorded storage checksum.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *SessionCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.resident
	ch <- c.indexed
}

// Collect implements prometheus.Collector.
func (c *SessionCollector) Collect(ch chan<- prometheus.Metric) {
	resident, indexed := c.counts()
	ch <- prometheus.MustNewConstMetric(c.resident, prometheus.GaugeValue, float64(resident))
	ch <- prometheus.MustNewConstMetric(c.indexed, prometheus.GaugeValue, float64(indexed))
}
