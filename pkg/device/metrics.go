package device

import (
	"io"

	"github.com/VictoriaMetrics/metrics"

	"github.com/pnio-go/pnetd/pkg/metricsx"
)

// deviceMetrics is lazily built the same way pkg/api/api0.apiMetrics is: a
// struct of pre-created *metrics.Counter/*metrics.Gauge fields behind a
// sync.Once, so HandlePeriodic never pays for a map lookup or a string
// format per tick. Every metric shows up in the scrape output before it
// has ever been incremented, except the per-port
// pnetd_lldp_peer_changes_total counters, which appear on a port's first
// increment.
type deviceMetrics struct {
	set *metrics.Set

	pal_rx_frames_total struct {
		dcp   *metrics.Counter
		lldp  *metrics.Counter
		other *metrics.Counter
	}
	pal_tx_frames_total *metrics.Counter

	dcp_requests_total struct {
		accepted *metrics.Counter
		rejected *metrics.Counter
	}

	lldp_peers_known        *metrics.Gauge
	lldp_peer_changes_total *metricsx.PortCounter

	cmdev_ar_aborts_total     *metrics.Counter
	cpm_rejected_frames_total *metrics.Counter

	alarm_queue_depth *metrics.Gauge
}

func newDeviceMetrics(d *Device) *deviceMetrics {
	mo := &deviceMetrics{set: metrics.NewSet()}
	mo.pal_rx_frames_total.dcp = mo.set.NewCounter(`pnetd_pal_rx_frames_total{ethertype="dcp"}`)
	mo.pal_rx_frames_total.lldp = mo.set.NewCounter(`pnetd_pal_rx_frames_total{ethertype="lldp"}`)
	mo.pal_rx_frames_total.other = mo.set.NewCounter(`pnetd_pal_rx_frames_total{ethertype="other"}`)
	mo.pal_tx_frames_total = mo.set.NewCounter(`pnetd_pal_tx_frames_total`)

	mo.dcp_requests_total.accepted = mo.set.NewCounter(`pnetd_dcp_requests_total{result="accepted"}`)
	mo.dcp_requests_total.rejected = mo.set.NewCounter(`pnetd_dcp_requests_total{result="rejected"}`)

	mo.lldp_peers_known = mo.set.NewGauge(`pnetd_lldp_peers_known`, func() float64 { return float64(len(d.peers)) })
	mo.lldp_peer_changes_total = metricsx.NewPortCounter(mo.set, `pnetd_lldp_peer_changes_total`, d.cfg.NumPorts)

	mo.cmdev_ar_aborts_total = mo.set.NewCounter(`pnetd_cmdev_ar_aborts_total`)
	mo.cpm_rejected_frames_total = mo.set.NewCounter(`pnetd_cpm_rejected_frames_total`)

	mo.alarm_queue_depth = mo.set.NewGauge(`pnetd_alarm_queue_depth`, func() float64 { return float64(d.alarmQueue.Count()) })

	return mo
}

// m lazily initializes and returns d's metrics object.
func (d *Device) m() *deviceMetrics {
	d.metricsInit.Do(func() {
		d.metricsObj = newDeviceMetrics(d)
	})
	return d.metricsObj
}

// Metrics returns the VictoriaMetrics set backing d, for wiring into a
// metrics.ExposeMetrics-style HTTP handler.
func (d *Device) Metrics() *metrics.Set {
	return d.m().set
}

// WritePrometheus writes d's metrics in Prometheus text exposition format.
func (d *Device) WritePrometheus(w io.Writer) {
	d.m().set.WritePrometheus(w)
}
