// Package transform implements the signal-shaping layer that decides,
// for each freshly read field value, whether it represents a real
// change worth pushing into the buffer store: an analog deadband
// filter, reverse-polarity inversion, and the toggle-latch/forward-
// group logic used by push-button channels.
//
// Grounded on original_source/src/Fncs/Fncs.cpp's DeviceManagement_Read
// body and GetToggleFwdValue.
package transform

import (
	"fieldctl/signal"
	"fieldctl/x/mathx"
)

// Kind distinguishes the two shaping rules: a deadband compare for
// analog channels, toggle/reverse handling for digital ones.
type Kind int

const (
	Analog Kind = iota
	Digital
)

// analogThreshold is the minimum absolute delta an analog reading
// must show against the buffer's current value before it is
// considered a real change (ANALOG_TRESHOLD in the original).
const analogThreshold = 25

// ToggleEntry declares one push-button toggle: the area its raw input
// is read from, and optionally a set of other areas whose Field value
// (OR-reduced) should drive the toggle instead of the raw input.
type ToggleEntry struct {
	AreaRead int
	Forwards []int
}

// Table holds every declared toggle and its live latch state.
type Table struct {
	entries map[int]*ToggleEntry
	latches map[int]*signal.Toggle
}

// NewTable returns an empty toggle table.
func NewTable() *Table {
	return &Table{
		entries: make(map[int]*ToggleEntry),
		latches: make(map[int]*signal.Toggle),
	}
}

// AddToggle declares a toggle reading area, optionally forwarded from
// other areas' current Field values.
func (t *Table) AddToggle(areaRead int, forwards ...int) {
	t.entries[areaRead] = &ToggleEntry{AreaRead: areaRead, Forwards: forwards}
	t.latches[areaRead] = &signal.Toggle{}
}

// ForwardValue OR-reduces the Field value of every area an area's
// toggle forwards from: non-zero in any of them yields 1. Returns 0
// if the area has no toggle, no forwards, or every forward reads 0 —
// mirroring GetToggleFwdValue's "no signal found" sentinel.
func (t *Table) ForwardValue(area int, fieldValue func(int) int64) int64 {
	entry, ok := t.entries[area]
	if !ok {
		return 0
	}
	for _, fwd := range entry.Forwards {
		if fieldValue(fwd) > 0 {
			return 1
		}
	}
	return 0
}

// Decision is the outcome of evaluating one freshly read value.
type Decision struct {
	Reset bool  // clear the area's Field-changed flag
	Write bool  // Value should be written into the area's Field view
	Value int64
}

// Evaluate decides what to do with a raw reading for area, given its
// declared kind, the reverse-polarity bit, and the buffer's current
// Field value. fieldValue resolves another area's current Field
// value, used only for toggle forward groups.
func (t *Table) Evaluate(area int, kind Kind, raw, current int64, reverse bool, fieldValue func(int) int64) Decision {
	if kind == Analog {
		if mathx.Abs(raw-current) > analogThreshold {
			return Decision{Reset: true, Write: true, Value: raw}
		}
		return Decision{}
	}

	value := raw
	if reverse {
		value = flipBit(value)
	}

	entry, hasToggle := t.entries[area]
	if !hasToggle {
		if value != current {
			return Decision{Reset: true, Write: true, Value: value}
		}
		return Decision{}
	}

	signalIn := value
	if len(entry.Forwards) > 0 {
		if fwd := t.ForwardValue(area, fieldValue); fwd != 0 {
			signalIn = fwd
		}
	}

	latch := t.latches[area]
	if signalIn == current && boolToBit(latch.Last()) == signalIn {
		return Decision{}
	}

	out, flipped := latch.Run(signalIn != 0)
	if !flipped {
		return Decision{Reset: true}
	}
	return Decision{Reset: true, Write: true, Value: boolToBit(out)}
}

func flipBit(v int64) int64 {
	if v != 0 {
		return 0
	}
	return 1
}

func boolToBit(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
