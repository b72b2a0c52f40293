package device

import (
	"bytes"
	"strings"
	"testing"
)

func TestMetricsExposesCounters(t *testing.T) {
	d, _ := newTestDevice(t)

	d.HandlePeriodic(0)

	var buf bytes.Buffer
	d.WritePrometheus(&buf)
	out := buf.String()

	for _, want := range []string{
		"pnetd_pal_rx_frames_total",
		"pnetd_dcp_requests_total",
		"pnetd_lldp_peers_known",
		"pnetd_alarm_queue_depth",
		"pnetd_cmdev_ar_aborts_total",
		"pnetd_cpm_rejected_frames_total",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("WritePrometheus output missing metric %q", want)
		}
	}
}
