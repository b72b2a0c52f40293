package metricsx

import (
	"strconv"

	"github.com/VictoriaMetrics/metrics"
)

// PortCounter is like a *metrics.Counter, but split by physical port
// number. It plays the same per-key fan-out role the upstream package's
// geohash-keyed counter does for client location, just keyed by a
// PROFINET port index (1-based, matching the port numbering pkg/porttable
// and pkg/lldp use) instead of a geohash cell.
type PortCounter struct {
	set  *metrics.Set
	base string
	arg  string
	ctr  []*metrics.Counter
}

// NewPortCounter creates a PortCounter writing to set, with one sub-counter
// per port in [1, numPorts].
func NewPortCounter(set *metrics.Set, name string, numPorts int) *PortCounter {
	base, arg := splitName(name)
	return &PortCounter{
		set:  set,
		base: base,
		arg:  arg,
		ctr:  make([]*metrics.Counter, numPorts),
	}
}

// Inc increments the counter for the given 1-based port number. Out-of-range
// ports are silently ignored, the same tolerant handling GeoCounter gives an
// unparseable location.
func (c *PortCounter) Inc(port int) {
	i := port - 1
	if i < 0 || i >= len(c.ctr) {
		return
	}
	if c.ctr[i] == nil {
		c.ctr[i] = c.set.NewCounter(formatName(c.base, c.arg, "port", strconv.Itoa(port)))
	}
	c.ctr[i].Inc()
}
