package signal

import (
	"testing"
	"time"
)

func TestTON_DelaysRisingEdge(t *testing.T) {
	now := time.Unix(0, 0)
	ton := NewTON(100 * time.Millisecond)

	if ton.Run(true, now) {
		t.Fatal("Q should not assert immediately")
	}
	now = now.Add(50 * time.Millisecond)
	if ton.Run(true, now) {
		t.Fatal("Q should not assert before preset elapses")
	}
	now = now.Add(60 * time.Millisecond)
	if !ton.Run(true, now) {
		t.Fatal("Q should assert once preset elapses")
	}
	ton.Run(false, now)
	if ton.Q() {
		t.Fatal("Q should drop as soon as IN goes false")
	}
}

func TestTOF_HoldsAfterFallingEdge(t *testing.T) {
	now := time.Unix(0, 0)
	tof := NewTOF(100 * time.Millisecond)

	if !tof.Run(true, now) {
		t.Fatal("Q should assert immediately when IN is true")
	}
	if !tof.Run(false, now) {
		t.Fatal("Q should still hold right after the falling edge")
	}
	now = now.Add(150 * time.Millisecond)
	if tof.Run(false, now) {
		t.Fatal("Q should drop once the off-delay elapses")
	}
}

func TestTP_PulsesForPresetThenDrops(t *testing.T) {
	now := time.Unix(0, 0)
	tp := NewTP(100 * time.Millisecond)

	if !tp.Run(true, now) {
		t.Fatal("Q should assert on the rising edge")
	}
	now = now.Add(50 * time.Millisecond)
	if !tp.Run(false, now) {
		t.Fatal("Q should keep pulsing even if IN drops early")
	}
	now = now.Add(60 * time.Millisecond)
	if tp.Run(false, now) {
		t.Fatal("Q should drop once the pulse width elapses")
	}
}

func TestTP_RetriggerIgnoredWhileRunning(t *testing.T) {
	now := time.Unix(0, 0)
	tp := NewTP(100 * time.Millisecond)

	tp.Run(true, now)
	now = now.Add(10 * time.Millisecond)
	tp.Run(true, now) // second rising edge while already Q
	now = now.Add(80 * time.Millisecond)
	if !tp.Run(true, now) {
		t.Fatal("pulse should still be timed from the first edge")
	}
}
