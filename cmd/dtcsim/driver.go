package main

import (
	"github.com/brutella/can"

	"github.com/oaklane/j1939dtc"
)

// socketcanBus wraps brutella/can as this program's CAN bus adapter, the same
// role cmd/canopen/driver.go's SocketcanBus plays for the CANopen
// stack: a thin adapter translating the vendor library's frame type
// into the one the rest of the program speaks.
type socketcanBus struct {
	bus     *can.Bus
	monitor *dtc.Monitor
	clock   *simClock
}

func newSocketcanBus(ifaceName string, monitor *dtc.Monitor, clock *simClock) (*socketcanBus, error) {
	bus, err := can.NewBusForInterfaceWithName(ifaceName)
	if err != nil {
		return nil, err
	}
	b := &socketcanBus{bus: bus, monitor: monitor, clock: clock}
	bus.Subscribe(b)
	return b, nil
}

// Handle implements brutella/can's frame-received callback.
func (b *socketcanBus) Handle(frame can.Frame) {
	b.monitor.ProcessFrame(frame.ID, frame.Data, b.clock.Seconds())
}

func (b *socketcanBus) ConnectAndPublish() error {
	return b.bus.ConnectAndPublish()
}

func (b *socketcanBus) Disconnect() error {
	return b.bus.Disconnect()
}
