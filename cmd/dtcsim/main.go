// Command dtcsim drives a j1939dtc.Monitor against either a real
// SocketCAN interface or a built-in fault simulator, printing the
// active DTC set every time it changes. It mirrors the structure of
// the CANopen stack's own cmd/canopen tool: flag-parsed arguments,
// logrus for CLI-level logging, a background goroutine for periodic
// work, and a signal-driven shutdown.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/oaklane/j1939dtc"
	"github.com/oaklane/j1939dtc/pkg/config"
)

const defaultTickPeriod = 250 * time.Millisecond

func main() {
	log.SetLevel(log.InfoLevel)

	canInterface := flag.String("i", "", "socketcan interface, e.g. can0, vcan0 (omit to run the built-in fault simulator)")
	activeReadCount := flag.Uint("active-read-count", 0, "promote a candidate DTC after this many occurrences (0 = use default)")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	f := config.Default()
	if *activeReadCount != 0 {
		f.ActiveReadCount = uint32(*activeReadCount)
	}

	monitor := dtc.New(nil, f)
	monitor.RegisterCallback(func(active []dtc.TrackedDTC) {
		log.Infof("active DTC set changed, %d entries", len(active))
		for _, d := range active {
			log.Infof("  src=0x%02X spn=%d fmi=%d oc=%d mil=%d", d.Src, d.SPN, d.FMI, d.OC, d.MIL)
		}
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	clock := newSimClock()

	if *canInterface != "" {
		bus, err := newSocketcanBus(*canInterface, monitor, clock)
		if err != nil {
			log.Fatalf("could not connect to interface %v: %v", *canInterface, err)
		}
		go func() {
			if err := bus.ConnectAndPublish(); err != nil {
				log.Errorf("socketcan connection closed: %v", err)
			}
		}()
		defer bus.Disconnect()
	} else {
		log.Info("no -i given, running the built-in fault simulator")
		go runSimulator(ctx, monitor, clock)
	}

	runTicker(ctx, monitor, clock)
}

func runTicker(ctx context.Context, monitor *dtc.Monitor, clock *simClock) {
	ticker := time.NewTicker(defaultTickPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down")
			return
		case <-ticker.C:
			monitor.Tick(clock.Seconds())
		}
	}
}

func runSimulator(ctx context.Context, monitor *dtc.Monitor, clock *simClock) {
	sim := newFaultSimulator(monitor, clock)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sim.emitOne()
		}
	}
}
