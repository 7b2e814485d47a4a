package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DaemonMetrics records persistence and collection activity. It
// satisfies service.Observer.
type DaemonMetrics struct {
	written      *prometheus.CounterVec
	passivated   prometheus.Counter
	recovered    prometheus.Counter
	corrupt      prometheus.Counter
	failures     *prometheus.CounterVec
	scanDuration *prometheus.HistogramVec
	resident     *prometheus.GaugeVec
	expired      *prometheus.CounterVec
	skipped      prometheus.Counter
}

// NewDaemonMetrics creates the daemon metrics and registers them with reg.
func NewDaemonMetrics(reg prometheus.Registerer) *DaemonMetrics {
	m := &DaemonMetrics{
		written: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "persistence", Name: "writes_total",
			Help: "Session frames written, by reason.",
		}, []string{"reason"}),
		passivated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "persistence", Name: "passivated_total",
			Help: "Sessions moved from memory to storage.",
		}),
		recovered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "persistence", Name: "recovered_total",
			Help: "Sessions loaded from storage into memory.",
		}),
		corrupt: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "storage", Name: "corrupt_removed_total",
			Help: "Undecodable session entries deleted.",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "storage", Name: "failures_total",
			Help: "Storage operations that failed, by operation.",
		}, []string{"op"}),
		scanDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "daemon", Name: "scan_duration_seconds",
			Help:    "Duration of daemon scans.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
		}, []string{"daemon"}),
		resident: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "daemon", Name: "resident_sessions",
			Help: "Resident sessions at the end of the last scan.",
		}, []string{"daemon"}),
		expired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "gc", Name: "expired_total",
			Help: "Sessions destroyed for exceeding their maximum age, by prior state.",
		}, []string{"state"}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "gc", Name: "skipped_ticks_total",
			Help: "Collector ticks that did not run a pass.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.written, m.passivated, m.recovered, m.corrupt, m.failures,
			m.scanDuration, m.resident, m.expired, m.skipped)
	}
	return m
}

func (m *DaemonMetrics) SessionWritten(reason string) { m.written.WithLabelValues(reason).Inc() }

func (m *DaemonMetrics) SessionPassivated() { m.passivated.Inc() }

func (m *DaemonMetrics) SessionRecovered() { m.recovered.Inc() }

func (m *DaemonMetrics) CorruptFileRemoved() { m.corrupt.Inc() }

func (m *DaemonMetrics) StorageFailure(op string) { m.failures.WithLabelValues(op).Inc() }

func (m *DaemonMetrics) ScanCompleted(daemon string, resident int, elapsed time.Duration) {
	m.scanDuration.WithLabelValues(daemon).Observe(elapsed.Seconds())
	m.resident.WithLabelValues(daemon).Set(float64(resident))
}

func (m *DaemonMetrics) SessionExpired(state string) { m.expired.WithLabelValues(state).Inc() }

func (m *DaemonMetrics) CollectionSkipped() { m.skipped.Inc() }
