// Package device describes one Modbus/TCP field device: its channel
// map (which areas back which register ranges, on which function
// code), its own error gate, and the banking logic that spreads a
// wide register range across several polling passes so no single
// read call monopolises the gateway's link.
package device

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/goburrow/modbus"

	"fieldctl/errcode"
	"fieldctl/errgate"
	"fieldctl/x/mathx"
)

// Kind is the logical channel type: analog/discrete, input/output.
type Kind int

const (
	AI Kind = iota // analog input
	AO             // analog output
	DI             // discrete input
	DO             // discrete output
)

// HwKind is the Modbus function-code family a channel is read or
// written through.
type HwKind int

const (
	Coil     HwKind = iota // FC 1/5/15
	Input                  // FC 4
	Hold                   // FC 3/6/16
	Discrete               // FC 2
)

// Priority is the scheduling priority a device's channels are polled
// at (spec.md §4.E). Declaration order matches the original firmware:
// Low sweeps slowest, High sweeps every pass.
type Priority int

const (
	Low Priority = iota
	Normal
	Medium
	High
)

// Jump returns how many device-priority slots the scheduler advances
// past this priority's devices once its warm-up sweep has completed.
// High always does a full sweep (see SPEC_FULL.md §4 Open Questions).
func (p Priority) Jump() int {
	switch p {
	case Low:
		return 1
	case Medium:
		return 2
	case Normal:
		return 3
	default:
		return 0
	}
}

// Channel declares one contiguous register range on a device.
type Channel struct {
	Type         Kind
	Hw           HwKind
	StartAddr    uint16
	Items        int
	ItemsPerCall int // 2 for a float32 spanning two registers, 1 otherwise
}

// maxCallsPerRead caps how many registers a single banked read pulls,
// matching the original firmware's GenericPrgDevice::MAX_CALLS.
const maxCallsPerRead = 8

// Device is one field device reachable over Modbus/TCP.
type Device struct {
	Name        string
	IP          string
	UnitID      byte
	Channels    []Channel
	IOAreas     []int
	DevPriority Priority

	errs *errgate.Gate
	bank int
}

// New constructs a Device with its own error gate: errStrikes
// consecutive failures trip it, and errWindow*errStrikes must elapse
// before it is retried.
func New(name, ip string, unitID byte, channels []Channel, ioAreas []int, priority Priority, errStrikes int, errWindow time.Duration) *Device {
	return &Device{
		Name:        name,
		IP:          ip,
		UnitID:      unitID,
		Channels:    channels,
		IOAreas:     ioAreas,
		DevPriority: priority,
		errs:        errgate.New(errStrikes, errWindow),
	}
}

// Area maps a (channel, address-within-channel) pair to the buffer
// area it belongs to, via the device's declared IOAreas list.
func (d *Device) Area(channel, address int) int {
	if len(d.IOAreas) == 0 {
		return -1
	}
	size := d.Channels[0].Items * channel
	return d.IOAreas[size+address]
}

// ChannelInfo returns the declared Channel, or false if out of range.
func (d *Device) ChannelInfo(channel int) (Channel, bool) {
	if channel < 0 || channel >= len(d.Channels) {
		return Channel{}, false
	}
	return d.Channels[channel], true
}

// InError reports the device's current error-gate state.
func (d *Device) InError() bool { return d.errs.InError() }

// ResetErrors clears the device's error gate and banking cursor —
// used by a controller-level hard reset after a systemic gateway
// fault, so a device that tripped during the outage isn't left
// cooling down once the gateway is actually reachable again.
func (d *Device) ResetErrors() {
	d.errs.Reset()
	d.bank = 0
}

// BankCount reports how many banked ReadBank calls a wide channel
// needs to cover its full register range; narrow channels need just
// one. Used by callers sizing per-IP poll-progress logging.
func (d *Device) BankCount(channel int) int {
	ch := d.Channels[channel]
	if ch.Items <= maxCallsPerRead {
		return 1
	}
	return int(mathx.CeilDiv(uint(ch.Items), uint(maxCallsPerRead)))
}

// ReadBank computes the (startAddr, count) for the next banked read of
// a wide channel, cycling through the channel's full range
// maxCallsPerRead registers at a time across successive calls. Narrow
// channels (Items < maxCallsPerRead) are read whole every call.
func (d *Device) ReadBank(channel int) (startAddr uint16, count int) {
	ch := d.Channels[channel]
	startAddr = ch.StartAddr

	if ch.Items < maxCallsPerRead {
		return startAddr, ch.Items
	}

	if d.bank == 0 {
		d.bank++
		return startAddr, maxCallsPerRead
	}

	jump := d.bank * maxCallsPerRead
	items := maxCallsPerRead
	addr := startAddr + uint16(jump)

	if jump+items > ch.Items {
		remaining := mathx.Abs(jump - ch.Items)
		if remaining == 0 {
			addr = startAddr
		} else {
			items = remaining
		}
		d.bank = 0
	} else {
		d.bank++
	}

	return addr, items
}

// ReadRegisters performs one banked register read for channel and
// returns the raw 16-bit words, recording the outcome on the device's
// error gate.
func (d *Device) ReadRegisters(client modbus.Client, channel int, now time.Time) ([]uint16, error) {
	ch, ok := d.ChannelInfo(channel)
	if !ok {
		return nil, errcode.Wrap("device.ReadRegisters", errcode.ConfigFault, fmt.Errorf("device %s: unknown channel %d", d.Name, channel))
	}
	if d.errs.InError() {
		d.errs.Loop(true, now)
		return nil, errcode.Wrap("device.ReadRegisters", errcode.DeviceFault, fmt.Errorf("device %s: gate open", d.Name))
	}

	addr, count := d.ReadBank(channel)

	var raw []byte
	var err error
	switch ch.Hw {
	case Hold:
		raw, err = client.ReadHoldingRegisters(addr, uint16(count))
	case Input:
		raw, err = client.ReadInputRegisters(addr, uint16(count))
	case Discrete:
		raw, err = client.ReadDiscreteInputs(addr, uint16(count))
	case Coil:
		raw, err = client.ReadCoils(addr, uint16(count))
	default:
		return nil, errcode.Wrap("device.ReadRegisters", errcode.ConfigFault, fmt.Errorf("device %s: unsupported hw kind for channel %d", d.Name, channel))
	}

	if err != nil || raw == nil {
		d.errs.Loop(true, now)
		return nil, errcode.Wrap("device.ReadRegisters", errcode.Timeout, fmt.Errorf("device %s: read failed: %w", d.Name, err))
	}
	d.errs.Loop(false, now)

	if ch.Hw == Discrete || ch.Hw == Coil {
		return unpackBits(raw, count), nil
	}
	return unpackWords(raw), nil
}

// ReadFloats reads channel's registers as IEEE-754 float32 values, two
// registers per value. The register pair order is deliberately
// swapped (tmp[1] is the first register received, and the high half) to match the
// original firmware's get_float (SPEC_FULL.md §4 Open Questions).
func (d *Device) ReadFloats(client modbus.Client, channel int, now time.Time) ([]float32, error) {
	words, err := d.ReadRegisters(client, channel, now)
	if err != nil {
		return nil, err
	}
	out := make([]float32, 0, len(words)/2)
	for i := 0; i+1 < len(words); i += 2 {
		var tmp [2]uint16
		tmp[1] = words[i]
		tmp[0] = words[i+1]
		bits := uint32(tmp[1])<<16 | uint32(tmp[0])
		out = append(out, math.Float32frombits(bits))
	}
	return out, nil
}

// WriteSingle writes one value to channel; only DO and AO channels
// accept writes. address is the
// absolute coil address for Coil channels; Hold channels always write
// the channel's own starting register.
func (d *Device) WriteSingle(client modbus.Client, channel int, address uint16, value uint16, now time.Time) error {
	ch, ok := d.ChannelInfo(channel)
	if !ok {
		return errcode.Wrap("device.WriteSingle", errcode.ConfigFault, fmt.Errorf("device %s: unknown channel %d", d.Name, channel))
	}
	if ch.Type != DO && ch.Type != AO {
		return errcode.Wrap("device.WriteSingle", errcode.ConfigFault, fmt.Errorf("device %s: channel %d is not a DO or AO channel", d.Name, channel))
	}

	var err error
	switch ch.Hw {
	case Hold:
		_, err = client.WriteSingleRegister(ch.StartAddr, value)
	case Coil:
		coilVal := uint16(0)
		if value != 0 {
			coilVal = 0xFF00
		}
		_, err = client.WriteSingleCoil(address, coilVal)
	default:
		return errcode.Wrap("device.WriteSingle", errcode.ConfigFault, fmt.Errorf("device %s: unsupported write hw kind for channel %d", d.Name, channel))
	}

	d.errs.Loop(err != nil, now)
	if err != nil {
		return errcode.Wrap("device.WriteSingle", errcode.Timeout, err)
	}
	return nil
}

func unpackWords(raw []byte) []uint16 {
	out := make([]uint16, len(raw)/2)
	for i := range out {
		out[i] = binary.BigEndian.Uint16(raw[i*2:])
	}
	return out
}

func unpackBits(raw []byte, count int) []uint16 {
	out := make([]uint16, count)
	for i := 0; i < count; i++ {
		byteIdx := i / 8
		bitIdx := uint(i % 8)
		if byteIdx < len(raw) && raw[byteIdx]&(1<<bitIdx) != 0 {
			out[i] = 1
		}
	}
	return out
}
