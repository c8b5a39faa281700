// Package pipeline orchestrates one polling cycle for a single
// gateway IP: connect, read the due priority slice, shape values
// through transform, route changed Field values to their redirect
// area, fire the caller's callbacks, then write the DO/AO channels
// that changed.
//
// Grounded on original_source/src/Fncs/Fncs.cpp: ManageMdbCli (cycle
// shape), DeviceManagement_Read (read + shape), DeviceManagement_Write
// (write pass).
package pipeline

import (
	"time"

	"github.com/goburrow/modbus"

	"fieldctl/area"
	"fieldctl/buffer"
	"fieldctl/device"
	"fieldctl/errcode"
	"fieldctl/gateway"
	"fieldctl/transform"
)

// SomethingChangedFn fires at most once per cycle, after every routed
// change has been applied, if at least one change was redirected
// (areaToWrite != 0); unrouted changes alone do not fire it.
type SomethingChangedFn func(store *buffer.Store)

// RouteFn fires once per area whose Field change was redirected to
// another area (areaToWrite != 0), carrying the original area, its
// pre-redirect value, and the destination area.
type RouteFn func(store *buffer.Store, sourceArea int, value int64, destArea int)

// Dial opens a Modbus/TCP client for one IP; callers supply this so
// pipeline never hard-codes a transport.
type Dial func(ip string) (modbus.Client, func() error, error)

// Pipeline wires a gateway scheduler, a buffer store and a transform
// table into one runnable cycle.
type Pipeline struct {
	Store     *buffer.Store
	Scheduler *gateway.Scheduler
	Toggles   *transform.Table
	Dial      Dial

	SomethingChanged SomethingChangedFn
	Route            RouteFn
}

// RunCycle runs one pass for the gateway IP at ipIdx: connect, read
// its due priority slice, route changes, write pending outputs,
// disconnect. Matches ManageMdbCli's per-IP loop, one IP per call so
// callers can interleave with the HMI sync and watchdog tick.
func (p *Pipeline) RunCycle(ipIdx int, now time.Time) error {
	state := p.Scheduler.IPs[ipIdx]

	client, closeFn, err := p.Dial(state.IP)
	p.Scheduler.MarkConnect(ipIdx, err == nil)
	if err != nil {
		return errcode.Wrap("pipeline.RunCycle", errcode.GatewayFault, err)
	}
	defer closeFn()

	readErr := p.readPass(ipIdx, client, now)
	p.routeChanges()
	writeErr := p.writePass(state.IP, client, now)

	if readErr != nil {
		return readErr
	}
	return writeErr
}

// readPass polls the IP's due priority slice and shapes each value
// through transform, writing accepted changes into the Field view.
func (p *Pipeline) readPass(ipIdx int, client modbus.Client, now time.Time) error {
	slice := p.Scheduler.NextReadSlice(ipIdx)

	var firstErr error
	for _, devIdx := range slice {
		dev := p.Scheduler.Devices[devIdx]
		for ch := range dev.Channels {
			info, _ := dev.ChannelInfo(ch)
			if info.Type != device.DI && info.Type != device.AI {
				continue
			}
			if err := p.readChannel(dev, ch, info, client, now); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (p *Pipeline) readChannel(dev *device.Device, ch int, info device.Channel, client modbus.Client, now time.Time) error {
	words, err := dev.ReadRegisters(client, ch, now)
	if err != nil {
		return err
	}

	kind := transform.Digital
	if info.Type == device.AI {
		kind = transform.Analog
	}

	for j, raw := range words {
		a := dev.Area(ch, j)
		if !p.Store.Areas.InRange(a) {
			continue
		}
		current := int64(0)
		if rec, ok := p.Store.Read(a, buffer.Field); ok {
			current = rec.Value
		}
		reverse := p.Store.IsReverse(a)

		decision := p.Toggles.Evaluate(a, kind, int64(raw), current, reverse, func(other int) int64 {
			if rec, ok := p.Store.Read(other, buffer.Field); ok {
				return rec.Value
			}
			return 0
		})

		if decision.Reset {
			p.Store.ResetChanged(a, buffer.Field)
		}
		if decision.Write {
			p.Store.Write(a, buffer.Field, decision.Value)
			if p.Store.CanWriteToPanel(a) {
				p.Store.Write(a, buffer.ToPanel, decision.Value)
			}
		}
	}
	return nil
}

// routeChanges sweeps every area for a pending Field change and, only
// when the area declares a redirect target, forwards the value and
// fires Route. Areas with no redirect (AreaToWrite == 0) are left
// untouched — including their changed flag — exactly as
// original_source/src/Fncs/Fncs.cpp::ManageMdbCli does (see
// SPEC_FULL.md §4 Open Questions).
func (p *Pipeline) routeChanges() {
	items := p.Store.Drain(buffer.Field, true)
	anyChange := false

	for _, item := range items {
		dest := p.Store.AreaToWrite(item.Area)
		if dest == 0 {
			continue
		}
		p.Store.Write(dest, buffer.Field, item.Record.Value)
		p.Store.ResetChanged(item.Area, buffer.Field)

		if p.Route != nil {
			p.Route(p.Store, item.Area, item.Record.Value, dest)
		}
		anyChange = true
	}

	if anyChange && p.SomethingChanged != nil {
		p.SomethingChanged(p.Store)
	}
}

// writePass pushes every changed Field value on a DO/AO channel back
// out over Modbus for every device at ip, matching
// DeviceManagement_Write's per-IP device loop.
func (p *Pipeline) writePass(ip string, client modbus.Client, now time.Time) error {
	var firstErr error
	for _, devIdx := range p.Scheduler.DevicesByIP(ip) {
		dev := p.Scheduler.Devices[devIdx]
		if dev.InError() {
			continue
		}
		for ch := range dev.Channels {
			info, _ := dev.ChannelInfo(ch)
			if info.Type != device.DO && info.Type != device.AO {
				continue
			}
			for j := 0; j < info.Items; j++ {
				a := dev.Area(ch, j)
				if a == area.Dummy || !p.Store.Areas.InRange(a) {
					continue
				}
				if !p.Store.HasChanged(a, buffer.Field) {
					continue
				}
				rec, ok := p.Store.Read(a, buffer.Field)
				if !ok {
					continue
				}
				err := dev.WriteSingle(client, ch, info.StartAddr+uint16(j), uint16(rec.Value), now)
				if err != nil {
					if firstErr == nil {
						firstErr = err
					}
					continue
				}
				p.Store.ResetChanged(a, buffer.Field)
			}
		}
	}
	return firstErr
}
