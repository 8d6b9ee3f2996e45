// Command pnioctl is a flag-driven debugging aid for the PROFINET IO
// controller core: it wires the library packages together for manual
// smoke-testing on a real interface. It is not part of the command/status
// bridge surface; operators talk to the running controller through
// that surface instead.
package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/wtc-scada/pnioctl"
	"github.com/wtc-scada/pnioctl/dcp"
	"github.com/wtc-scada/pnioctl/rawnet"
	"github.com/wtc-scada/pnioctl/strategy"
	"github.com/wtc-scada/pnioctl/wire"
)

var CmdLog = log.New(os.Stderr, filepath.Base(os.Args[0])+": ", 0)

var (
	ifaceFlag  = flag.String("iface", "eth0", "Network `interface` carrying the PROFINET segment.")
	srcMACFlag = flag.String("mac", "", "This controller's own source `MAC` address.")
)

func main() {
	log.SetFlags(0)
	flag.Parse()

	if flag.NArg() < 1 {
		CmdLog.Fatal("usage: pnioctl [-iface NAME] [-mac XX:XX:XX:XX:XX:XX] <discover|connect|status> [args]")
	}

	srcMAC, err := parseMAC(*srcMACFlag)
	if err != nil {
		CmdLog.Fatal(err)
	}

	sock, err := rawnet.Open(*ifaceFlag)
	if err != nil {
		CmdLog.Fatal("raw socket: ", err)
	}
	defer sock.Close()
	if err := sock.JoinMulticast(wire.DCPMulticast); err != nil {
		CmdLog.Fatal("join DCP multicast: ", err)
	}

	transport, err := pnioctl.NewUDPTransport(nil)
	if err != nil {
		CmdLog.Fatal("rpc transport: ", err)
	}
	defer transport.Close()

	ctrl, err := pnioctl.New(pnioctl.Config{}, sock, transport, srcMAC, strategy.NewMemStore())
	if err != nil {
		CmdLog.Fatal("controller: ", err)
	}

	go recvLoop(ctrl, sock)
	go tickLoop(ctrl)
	done := make(chan struct{})
	defer close(done)
	go ctrl.Run(done)

	switch flag.Arg(0) {
	case "discover":
		runDiscover(ctrl)
	case "connect":
		runConnect(ctrl, flag.Args()[1:])
	case "status":
		runStatus(ctrl)
	default:
		CmdLog.Fatalf("unknown subcommand %q", flag.Arg(0))
	}
}

func parseMAC(s string) (wire.MAC, error) {
	var mac wire.MAC
	if s == "" {
		return mac, nil
	}
	hw, err := net.ParseMAC(s)
	if err != nil || len(hw) != 6 {
		return mac, fmt.Errorf("pnioctl: invalid MAC %q", s)
	}
	copy(mac[:], hw)
	return mac, nil
}

func recvLoop(ctrl *pnioctl.Controller, sock rawnet.Socket) {
	for {
		frame, err := sock.ReadFrame()
		if err != nil {
			if err == rawnet.ErrClosed {
				return
			}
			continue
		}
		if err := ctrl.DispatchRawFrame(frame); err != nil {
			CmdLog.Print("dropped frame: ", err)
		}
	}
}

func tickLoop(ctrl *pnioctl.Controller) {
	ticker := time.NewTicker(4 * time.Millisecond)
	defer ticker.Stop()
	for now := range ticker.C {
		ctrl.Tick(now)
	}
}

func runDiscover(ctrl *pnioctl.Controller) {
	if err := ctrl.Discover(); err != nil {
		CmdLog.Fatal("identify-all: ", err)
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT)

	timeout := time.After(dcp.DiscoverTimeoutDefault)
	select {
	case <-timeout:
	case <-signals:
	}

	for _, d := range ctrl.DiscoveredDevices() {
		fmt.Printf("%s  mac=%s  vendor=0x%04X device=0x%04X  %s\n",
			d.StationName, net.HardwareAddr(d.MAC[:]), d.VendorID, d.DeviceID, d.IP)
	}
}

func runConnect(ctrl *pnioctl.Controller, args []string) {
	if len(args) < 2 {
		CmdLog.Fatal("usage: pnioctl connect <station> <remote-host:port>")
	}
	station, remote := args[0], args[1]

	addr, err := net.ResolveUDPAddr("udp4", remote)
	if err != nil {
		CmdLog.Fatal("resolve remote: ", err)
	}

	if _, ok := ctrl.Station(station); !ok {
		if _, err := ctrl.AddRTU(pnioctl.StationConfig{Name: station, Remote: addr}); err != nil {
			CmdLog.Fatal("add rtu: ", err)
		}
	}

	if err := ctrl.Connect(station, strategy.VendorHints{}, 0); err != nil {
		CmdLog.Fatal("connect: ", err)
	}
	fmt.Printf("%s connected\n", station)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT)
	<-signals
	if err := ctrl.Disconnect(station); err != nil {
		CmdLog.Print("disconnect: ", err)
	}
}

func runStatus(ctrl *pnioctl.Controller) {
	for _, s := range ctrl.Registry.Snapshot() {
		state := s.ARState
		contact := "never"
		if !s.LastContactTime.IsZero() {
			contact = s.LastContactTime.Format(time.RFC3339)
		}
		fmt.Printf("%-20s  state=%-14s  last-contact=%s  alarms=%d\n", s.Station, state, contact, s.ActiveAlarms)
	}
}
