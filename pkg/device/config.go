package device

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config is the full configuration surface for a pnetd device, mirroring
// pkg/atlas.Config's env-tag convention field for field: env:"KEY=default"
// for an always-applied default, env:"KEY?=default" for a default that can
// still be explicitly overridden with an empty value.
type Config struct {
	// StationName is the device's initial PROFINET station name; empty is
	// valid and means "not yet named" (CMINA accepts the empty string).
	StationName string `env:"PNETD_STATION_NAME?="`

	// MAC is the device's Ethernet MAC address, in aa:bb:cc:dd:ee:ff form.
	MAC string `env:"PNETD_MAC"`

	// IP, Netmask, and Gateway are the initial IP suite, dotted-decimal.
	IP      string `env:"PNETD_IP?=0.0.0.0"`
	Netmask string `env:"PNETD_NETMASK?=0.0.0.0"`
	Gateway string `env:"PNETD_GATEWAY?=0.0.0.0"`

	// NumPorts is the number of physical ports this device exposes.
	NumPorts int `env:"PNETD_NUM_PORTS=1"`

	// StoreDir is the directory fstore persists station name, IP suite,
	// I&M, SNMP system location, and diagnosis blobs under.
	StoreDir string `env:"PNETD_STORE_DIR=."`

	// SQLiteDiagLog, if set, additionally logs every diagnosis add/
	// update/remove to a sqlite3 audit database at this path.
	SQLiteDiagLog string `env:"PNETD_SQLITE_DIAG_LOG"`

	// AlarmQueueCapacity bounds the alarm ring buffer.
	AlarmQueueCapacity int `env:"PNETD_ALARM_QUEUE_CAPACITY=64"`

	// SchedulerCapacity bounds the number of concurrently pending
	// scheduler jobs (LLDP timers, DCP back-offs, watchdogs).
	SchedulerCapacity int `env:"PNETD_SCHEDULER_CAPACITY=64"`

	// CheckPeerLLDPInterval is how often the LLDP peer table expires
	// stale entries.
	CheckPeerLLDPInterval time.Duration `env:"PNETD_LLDP_CHECK_INTERVAL=5s"`

	// LogLevel is the minimum level logged to stdout.
	LogLevel zerolog.Level `env:"PNETD_LOG_LEVEL=info"`

	// LogStdoutPretty enables human-readable (rather than JSON) console
	// logging.
	LogStdoutPretty bool `env:"PNETD_LOG_STDOUT_PRETTY=true"`

	// MetricsAddr, if set, serves VictoriaMetrics/metrics-format output
	// for scraping.
	MetricsAddr string `env:"PNETD_METRICS_ADDR"`

	// VendorID and DeviceID identify this device to DCP Identify/Get
	// requests' DeviceProperties/DeviceID block.
	VendorID uint16 `env:"PNETD_VENDOR_ID=0"`
	DeviceID uint16 `env:"PNETD_DEVICE_ID=0"`

	// CycleBase32 and Reduction set the cyclic data transmission period
	// (in 1/32ms ticks times the reduction ratio) the PPM producer
	// advances its counter by.
	CycleBase32 uint32 `env:"PNETD_CYCLE_BASE32=32"`
	Reduction   uint32 `env:"PNETD_REDUCTION_RATIO=1"`

	// CPMWatchdogFactor is the number of consecutive rejected cyclic
	// frames CPM tolerates before aborting the active AR.
	CPMWatchdogFactor int `env:"PNETD_CPM_WATCHDOG_FACTOR=3"`

	// LLDPSendInterval is the cadence of this device's own periodic LLDP
	// self-announcement, per port.
	LLDPSendInterval time.Duration `env:"PNETD_LLDP_SEND_INTERVAL=5s"`

	// LLDPTTL is the Time-To-Live this device advertises in its own LLDP
	// frames.
	LLDPTTL uint16 `env:"PNETD_LLDP_TTL=20"`
}

// UnmarshalEnv unmarshals an array of "KEY=VALUE" environment entries into
// c, applying defaults the same way pkg/atlas.Config.UnmarshalEnv does: a
// "KEY=default" tag always falls back to default when the key is absent
// (or, unless incremental, when given an empty string is not itself
// wanted); a "KEY?=default" tag additionally allows the var to be set to
// an explicit empty string.
func (c *Config) UnmarshalEnv(es []string, incremental bool) error {
	em := map[string]string{}
	for _, e := range es {
		if strings.HasPrefix(e, "PNETD_") {
			if k, v, ok := strings.Cut(e, "="); ok {
				em[k] = v
			}
		}
	}

	cv := reflect.ValueOf(c).Elem()
	for _, ctf := range reflect.VisibleFields(cv.Type()) {
		env, ok := ctf.Tag.Lookup("env")
		if !ok {
			continue
		}

		var unsettable bool
		key, val, _ := strings.Cut(env, "=")
		if strings.HasSuffix(key, "?") {
			key = strings.TrimSuffix(key, "?")
			unsettable = true
		}

		if v, exists := em[key]; exists {
			if unsettable || v != "" {
				val = v
			}
			delete(em, key)
		} else if incremental {
			continue
		}

		cvf := cv.FieldByName(ctf.Name)
		switch cvf.Interface().(type) {
		case string:
			cvf.SetString(val)
		case int, int8, int16, int32, int64:
			if val == "" {
				cvf.SetInt(0)
			} else if v, err := strconv.ParseInt(val, 10, 64); err == nil {
				cvf.SetInt(v)
			} else {
				return fmt.Errorf("env %s (%T): parse %q: %w", key, cvf.Interface(), val, err)
			}
		case uint, uint8, uint16, uint32, uint64:
			if val == "" {
				cvf.SetUint(0)
			} else if v, err := strconv.ParseUint(val, 10, 64); err == nil {
				cvf.SetUint(v)
			} else {
				return fmt.Errorf("env %s (%T): parse %q: %w", key, cvf.Interface(), val, err)
			}
		case bool:
			if val == "" {
				cvf.SetBool(false)
			} else if v, err := strconv.ParseBool(val); err == nil {
				cvf.SetBool(v)
			} else {
				return fmt.Errorf("env %s (%T): parse %q: %w", key, cvf.Interface(), val, err)
			}
		case time.Duration:
			if v, err := time.ParseDuration(val); err == nil {
				cvf.Set(reflect.ValueOf(v))
			} else {
				return fmt.Errorf("env %s (%T): parse %q: %w", key, cvf.Interface(), val, err)
			}
		case zerolog.Level:
			if v, err := zerolog.ParseLevel(val); err == nil {
				cvf.Set(reflect.ValueOf(v))
			} else {
				return fmt.Errorf("env %s (%T): parse %q: %w", key, cvf.Interface(), val, err)
			}
		default:
			return fmt.Errorf("unhandled type %T (%s)", cvf.Interface(), env)
		}
	}

	for key, val := range em {
		if val != "" {
			return fmt.Errorf("unknown environment variable %q", key)
		}
	}
	return nil
}
