// Command pnetd runs the PROFINET IO device stack.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"net/netip"

	"github.com/VictoriaMetrics/metrics"
	"github.com/hashicorp/go-envparse"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/pnio-go/pnetd/internal/pnptypes"
	"github.com/pnio-go/pnetd/pkg/device"
	"github.com/pnio-go/pnetd/pkg/pal/palnet"
)

var opt struct {
	Help      bool
	Interface string
}

func init() {
	pflag.BoolVarP(&opt.Help, "help", "h", false, "Show this help text")
	pflag.StringVarP(&opt.Interface, "interface", "i", "eth0", "Network interface to bind to")
}

func main() {
	pflag.Parse()

	if pflag.NArg() > 1 || opt.Help {
		fmt.Printf("usage: %s [options] [env_file]\n\noptions:\n%s\nnote: if env_file is provided, config from the environment is ignored\n", os.Args[0], pflag.CommandLine.FlagUsages())
		if opt.Help {
			os.Exit(2)
		}
		os.Exit(0)
	}

	var e []string
	if pflag.NArg() == 0 {
		e = os.Environ()
	} else {
		x, err := readEnv(pflag.Arg(0))
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: read env file: %v\n", err)
			os.Exit(1)
		}
		e = x
	}

	var c device.Config
	if err := c.UnmarshalEnv(e, false); err != nil {
		fmt.Fprintf(os.Stderr, "error: parse config: %v\n", err)
		os.Exit(1)
	}

	log := configureLogging(&c)

	pn, err := palnet.Open(opt.Interface, netip.AddrPort{})
	if err != nil {
		log.Fatal().Err(err).Str("interface", opt.Interface).Msg("open network interface")
	}
	defer pn.Close()

	var d *device.Device
	d, err = device.New(c, pn, log, device.Callbacks{
		StationNameChanged: func(name string) { log.Info().Str("name", name).Msg("station name changed") },
		IPSuiteChanged: func(ip, netmask, gateway uint32) {
			log.Info().Uint32("ip", ip).Uint32("netmask", netmask).Uint32("gateway", gateway).Msg("ip suite changed")
		},
		FactoryReset: func() { log.Warn().Msg("factory reset requested") },
		Signal:       func(on bool) { log.Info().Bool("on", on).Msg("signal led") },
		ARStateChanged: func(event pnptypes.StateEvent, arep uint32) {
			log.Info().Stringer("event", event).Uint32("arep", arep).Msg("ar state changed")
			if event == pnptypes.StatePrmEnd {
				if err := d.ApplicationReady(); err != nil {
					log.Warn().Err(err).Uint32("arep", arep).Msg("confirm application ready")
				}
			}
		},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("initialize device")
	}

	if c.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
			metrics.WriteProcessMetrics(w)
			d.WritePrometheus(w)
		})
		go func() {
			if err := http.ListenAndServe(c.MetricsAddr, mux); err != nil {
				log.Error().Err(err).Str("addr", c.MetricsAddr).Msg("serve metrics")
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.HandlePeriodic(pn.NowMicros())
		}
	}
}

// configureLogging builds the process logger the same way
// pkg/atlas.configureLogging does: a single stdout output, console-pretty
// or JSON depending on Config, wrapped in MultiLevelWriter so a future log
// file output can be added alongside it without restructuring callers.
func configureLogging(c *device.Config) zerolog.Logger {
	var out io.Writer = os.Stdout
	if c.LogStdoutPretty {
		out = zerolog.ConsoleWriter{Out: os.Stdout}
	}
	return zerolog.New(zerolog.MultiLevelWriter(out)).
		Level(c.LogLevel).
		With().
		Timestamp().
		Logger()
}

func readEnv(name string) ([]string, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := envparse.Parse(f)
	if err != nil {
		return nil, err
	}

	var r []string
	for k, v := range m {
		r = append(r, k+"="+v)
	}
	return r, nil
}
