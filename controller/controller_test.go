package controller

import (
	"errors"
	"testing"
	"time"

	"github.com/goburrow/modbus"
	"github.com/rs/zerolog"

	"fieldctl/buffer"
	"fieldctl/watchdog"
)

// stubClient is a minimal modbus.Client that answers every discrete
// input read with a fixed, always-changing pattern so a cycle always
// produces at least one Field change to exercise routing.
type stubClient struct{ toggle byte }

var _ modbus.Client = (*stubClient)(nil)

func (c *stubClient) ReadCoils(address, quantity uint16) ([]byte, error) {
	return make([]byte, (quantity+7)/8), nil
}
func (c *stubClient) ReadDiscreteInputs(address, quantity uint16) ([]byte, error) {
	c.toggle ^= 1
	return []byte{c.toggle}, nil
}
func (c *stubClient) WriteSingleCoil(address, value uint16) ([]byte, error) { return []byte{}, nil }
func (c *stubClient) WriteMultipleCoils(address, quantity uint16, value []byte) ([]byte, error) {
	return nil, errors.New("unused")
}
func (c *stubClient) ReadInputRegisters(address, quantity uint16) ([]byte, error) {
	return make([]byte, quantity*2), nil
}
func (c *stubClient) ReadHoldingRegisters(address, quantity uint16) ([]byte, error) {
	return make([]byte, quantity*2), nil
}
func (c *stubClient) WriteSingleRegister(address, value uint16) ([]byte, error) { return []byte{}, nil }
func (c *stubClient) WriteMultipleRegisters(address, quantity uint16, value []byte) ([]byte, error) {
	return nil, errors.New("unused")
}
func (c *stubClient) ReadWriteMultipleRegisters(readAddress, readQuantity, writeAddress, writeQuantity uint16, value []byte) ([]byte, error) {
	return nil, errors.New("unused")
}
func (c *stubClient) MaskWriteRegister(address, andMask, orMask uint16) ([]byte, error) {
	return nil, errors.New("unused")
}
func (c *stubClient) ReadFIFOQueue(address uint16) ([]byte, error) { return nil, errors.New("unused") }

func newTestController(t *testing.T) *Controller {
	t.Helper()

	client := &stubClient{}
	c, err := New(Options{
		Deployment: "default",
		HMIAddr:    "127.0.0.1:0",
		Dial: func(ip string) (modbus.Client, func() error, error) {
			return client, func() error { return nil }, nil
		},
		Logger: zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("unexpected error building controller: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestNew_BuildsFromDefaultDeployment(t *testing.T) {
	c := newTestController(t)
	if len(c.Scheduler.Devices) != 2 {
		t.Fatalf("expected 2 devices from the default deployment, got %d", len(c.Scheduler.Devices))
	}
	if len(c.Scheduler.IPs) != 1 {
		t.Fatalf("expected both devices to share one gateway IP, got %d IPs", len(c.Scheduler.IPs))
	}
}

func TestRunOnce_FiresActivityLoopWhenNoHMISyncDue(t *testing.T) {
	c := newTestController(t)

	var activityCalls int
	c.OnActivityLoop(func(d time.Duration) { activityCalls++ })

	c.RunOnce(time.Unix(0, 0))

	if activityCalls != 1 {
		t.Fatalf("expected exactly one activity-loop call, got %d", activityCalls)
	}
}

func TestRunOnce_RoutesChangesThroughCallbacks(t *testing.T) {
	c := newTestController(t)

	var routed int
	c.OnRoute(func(store *buffer.Store, sourceArea int, value int64, destArea int) { routed++ })

	// Two cycles guarantee a toggle flip on the discrete fixture.
	c.RunOnce(time.Unix(0, 0))
	c.RunOnce(time.Unix(1, 0))

	if routed == 0 {
		t.Fatal("expected at least one routed change across two cycles")
	}
}

func TestRunOnce_HardResetsAfterSystemicFault(t *testing.T) {
	c := newTestController(t)
	c.Pipeline.Dial = func(ip string) (modbus.Client, func() error, error) {
		return nil, nil, errors.New("connection refused")
	}

	c.RunOnce(time.Unix(0, 0))

	if c.Scheduler.IPs[0].InError {
		t.Fatal("expected the systemic-fault hard reset to clear the gateway's InError state")
	}
	if c.Scheduler.IPs[0].Errors != 0 {
		t.Fatalf("expected the hard reset to clear the error counter, got %d", c.Scheduler.IPs[0].Errors)
	}
}

func TestOnWatchdogStatus_FiresWhenBlocked(t *testing.T) {
	c := newTestController(t)

	var statuses int
	c.OnWatchdogStatus(func(s watchdog.Status) {
		if s.Blocked {
			statuses++
		}
	})

	now := time.Unix(0, 0)
	c.Watchdog.Record(watchdog.ActivityLoop, 500*time.Millisecond, now)
	c.Watchdog.Classify(now)

	if statuses != 1 {
		t.Fatalf("expected exactly one Blocked callback, got %d", statuses)
	}
}
