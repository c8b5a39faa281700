// Package gateway groups field devices by IP and schedules them in a
// priority ring: each IP gets its own round of Low/Normal/Medium/High
// priority cursors, advanced one slice per scheduler pass so a gateway
// with many devices never blocks behind a single slow sweep.
//
// Grounded on original_source/src/PLC/PLC.cpp (BuildIps, GetJump,
// GetUsedPriorities, GetDevicesByPriority) and the per-cycle loop
// shape of original_source/src/Fncs/Fncs.cpp's DeviceManagement_Read.
package gateway

import (
	"fieldctl/device"
	"fieldctl/x/mathx"
)

// priorityOrder is the fixed sweep order used to enumerate an IP's
// distinct priorities, matching the original's declaration order.
var priorityOrder = []device.Priority{device.Low, device.Normal, device.Medium, device.High}

// cursor tracks one priority's round-robin position within a single
// IP's device list. DeviceIndex of -1 is the warm-up sentinel: the
// very first pass at this priority sweeps every device at once.
type cursor struct {
	Priority   device.Priority
	DeviceIndex int
}

// IPState is one gateway's scheduling state: the priorities present
// among its devices (found by IP in the owning Scheduler's device
// slice), a cursor per priority, and a connect-failure counter.
type IPState struct {
	IP      string
	Errors  int
	InError bool

	priorities []cursor
	index      int
}

// Scheduler owns every known device, grouped into per-IP states, and
// advances one IP's priority ring per NextReadSlice call.
type Scheduler struct {
	Devices []*device.Device
	IPs     []*IPState
}

// NewScheduler builds the per-IP priority rings for a set of devices.
func NewScheduler(devices []*device.Device) *Scheduler {
	s := &Scheduler{Devices: devices}
	s.buildIPs()
	return s
}

// buildIPs is BuildIps/GetUsedPriorities: discover each distinct IP
// among the devices and, for each, the distinct priorities present,
// in priorityOrder, seeded at the warm-up sentinel.
func (s *Scheduler) buildIPs() {
	seen := make(map[string]bool)
	for _, d := range s.Devices {
		if seen[d.IP] {
			continue
		}
		seen[d.IP] = true

		state := &IPState{IP: d.IP}
		for _, p := range priorityOrder {
			if s.existDevicesByPriority(p, d.IP) {
				state.priorities = append(state.priorities, cursor{Priority: p, DeviceIndex: -1})
			}
		}
		s.IPs = append(s.IPs, state)
	}
}

func (s *Scheduler) existDevicesByPriority(p device.Priority, ip string) bool {
	for _, d := range s.Devices {
		if d.IP == ip && d.DevPriority == p {
			return true
		}
	}
	return false
}

// DevicesByIP returns the indices (into s.Devices) of every device at
// the given IP.
func (s *Scheduler) DevicesByIP(ip string) []int {
	var out []int
	for i, d := range s.Devices {
		if d.IP == ip {
			out = append(out, i)
		}
	}
	return out
}

// devicesByPriority returns the indices (into s.Devices) of devices at
// ip with the given priority, in declaration order — this is the
// slice GetJump/the warm-up sweep walks over.
func (s *Scheduler) devicesByPriority(p device.Priority, ip string) []int {
	var out []int
	for i, d := range s.Devices {
		if d.IP == ip && d.DevPriority == p {
			out = append(out, i)
		}
	}
	return out
}

// NextReadSlice picks the slice of device indices to poll on this
// call, for the IP at ipIdx, advancing that IP's priority cursor
// ring. It mirrors DeviceManagement_Read's priority selection exactly,
// including the resolved Open Question: High always sweeps in full.
func (s *Scheduler) NextReadSlice(ipIdx int) []int {
	state := s.IPs[ipIdx]
	if len(state.priorities) == 0 {
		return nil
	}

	cur := &state.priorities[state.index]
	devs := s.devicesByPriority(cur.Priority, state.IP)
	if len(devs) == 0 {
		s.advance(state, cur, 0)
		return nil
	}

	start, end := 0, len(devs)
	if cur.DeviceIndex != -1 && cur.Priority != device.High {
		jump := cur.Priority.Jump()
		start = cur.DeviceIndex
		end = mathx.Min(start+jump, len(devs))
	}

	s.advance(state, cur, len(devs))
	if start >= len(devs) {
		return nil
	}
	return devs[start:end]
}

func (s *Scheduler) advance(state *IPState, cur *cursor, total int) {
	jump := cur.Priority.Jump()
	if cur.DeviceIndex+jump >= total || cur.DeviceIndex == -1 {
		cur.DeviceIndex = 0
	} else {
		cur.DeviceIndex += jump
	}

	if state.index >= len(state.priorities)-1 {
		state.index = 0
	} else {
		state.index++
	}
}

// Reset rebuilds every IP's priority-ring cursors back to their
// warm-up sentinel and clears connect-error state — used by a
// controller-level hard reset after every gateway has gone
// persistently unreachable (spec.md §4.E.1, §7).
func (s *Scheduler) Reset() {
	s.IPs = nil
	s.buildIPs()
}

// MarkConnect records the outcome of a connection attempt for the IP
// at ipIdx: failure bumps the error counter and trips InError; a
// successful connect while previously in error clears both.
func (s *Scheduler) MarkConnect(ipIdx int, ok bool) {
	state := s.IPs[ipIdx]
	if !ok {
		state.Errors++
		state.InError = true
		return
	}
	if state.InError {
		state.Errors = 0
		state.InError = false
	}
}
