// Command pnetd-dcpcli sends a DCP Identify request and prints every
// response received within the listen window, the raw-Ethernet analogue of
// r2-a2s-probe's UDP A2S_INFO probe.
package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"time"

	"net/netip"

	"github.com/spf13/pflag"

	"github.com/pnio-go/pnetd/pkg/dcp"
	"github.com/pnio-go/pnetd/pkg/pal"
	"github.com/pnio-go/pnetd/pkg/pal/palnet"
)

var opt struct {
	Interface string
	Timeout   time.Duration
	Help      bool
}

func init() {
	pflag.StringVarP(&opt.Interface, "interface", "i", "eth0", "Network interface to probe on")
	pflag.DurationVarP(&opt.Timeout, "timeout", "t", time.Second*3, "Amount of time to wait for responses")
	pflag.BoolVarP(&opt.Help, "help", "h", false, "Show this help text")
}

func main() {
	pflag.Parse()

	if opt.Help {
		fmt.Printf("usage: %s [options]\n\noptions:\n%s", os.Args[0], pflag.CommandLine.FlagUsages())
		os.Exit(2)
	}

	pn, err := palnet.Open(opt.Interface, netip.AddrPort{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: open %s: %v\n", opt.Interface, err)
		os.Exit(2)
	}
	defer pn.Close()

	if err := sendIdentifyAll(pn); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: send identify request: %v\n", err)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), opt.Timeout)
	defer cancel()

	n := 0
	t := time.NewTicker(time.Millisecond * 10)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			if n == 0 {
				fmt.Fprintln(os.Stderr, "no responses received")
				os.Exit(1)
			}
			return
		case <-t.C:
			for {
				frame, ok := pn.RecvEthernet()
				if !ok {
					break
				}
				if frame.EtherType != dcp.EtherTypeProfinetRT {
					continue
				}
				if printIdentifyResponse(frame.Src, frame.Payload) {
					n++
				}
			}
		}
	}
}

// sendIdentifyAll broadcasts a DCP Identify-Request with the all-selector
// option, the same "ask everyone to speak up" request a PLC engineering
// tool issues during device discovery.
func sendIdentifyAll(pn *palnet.Net) error {
	payload := make([]byte, 0, 14)
	var frameID [2]byte
	binary.BigEndian.PutUint16(frameID[:], dcp.FrameIDIdentify)
	payload = append(payload, frameID[:]...)
	payload = append(payload, byte(dcp.ServiceIdentify), byte(dcp.ServiceTypeRequest))

	var xid [4]byte
	binary.BigEndian.PutUint32(xid[:], 1)
	payload = append(payload, xid[:]...)

	payload = append(payload, 0, 1) // response delay factor
	payload = append(payload, 0, 2) // data length: one (option,suboption) pair
	payload = append(payload, byte(dcp.OptionAllSelector), byte(dcp.OptionAllSelector))

	return pn.SendEthernet(pal.EtherFrame{
		Dst:       dcp.MulticastIdentifyMAC,
		Src:       pn.MAC(),
		EtherType: dcp.EtherTypeProfinetRT,
		Payload:   payload,
	})
}

func printIdentifyResponse(src [6]byte, payload []byte) bool {
	if len(payload) < 12 {
		return false
	}
	blocks, err := dcp.ParseSetBlocks(payload[12:])
	if err != nil {
		return false
	}

	fmt.Printf("%02x:%02x:%02x:%02x:%02x:%02x\n", src[0], src[1], src[2], src[3], src[4], src[5])
	for _, blk := range blocks {
		switch {
		case blk.Option == uint8(dcp.OptionDeviceProperties) && blk.Suboption == dcp.SubDevicePropNameOfStation:
			fmt.Printf("  station name: %s\n", blk.Value)
		case blk.Option == uint8(dcp.OptionIP) && blk.Suboption == dcp.SubIPParameter && len(blk.Value) >= 12:
			fmt.Printf("  ip:      %d.%d.%d.%d\n", blk.Value[0], blk.Value[1], blk.Value[2], blk.Value[3])
			fmt.Printf("  netmask: %d.%d.%d.%d\n", blk.Value[4], blk.Value[5], blk.Value[6], blk.Value[7])
			fmt.Printf("  gateway: %d.%d.%d.%d\n", blk.Value[8], blk.Value[9], blk.Value[10], blk.Value[11])
		}
	}
	return true
}
