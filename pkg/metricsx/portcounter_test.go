package metricsx

import (
	"bytes"
	"strings"
	"testing"

	"github.com/VictoriaMetrics/metrics"
)

func TestPortCounter(t *testing.T) {
	set := metrics.NewSet()
	c := NewPortCounter(set, `pnetd_lldp_peer_changes_total`, 2)

	c.Inc(1)
	c.Inc(1)
	c.Inc(2)
	c.Inc(99) // out of range, ignored

	var buf bytes.Buffer
	set.WritePrometheus(&buf)
	out := buf.String()

	if !strings.Contains(out, `pnetd_lldp_peer_changes_total{port="1"} 2`) {
		t.Errorf("missing or wrong port 1 counter in output:\n%s", out)
	}
	if !strings.Contains(out, `pnetd_lldp_peer_changes_total{port="2"} 1`) {
		t.Errorf("missing or wrong port 2 counter in output:\n%s", out)
	}
}
