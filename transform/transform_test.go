package transform

import "testing"

func noFwd(int) int64 { return 0 }

func TestEvaluate_AnalogDeadband(t *testing.T) {
	tbl := NewTable()

	d := tbl.Evaluate(10, Analog, 110, 100, false, noFwd)
	if d.Reset || d.Write {
		t.Fatalf("delta of 10 should be inside the deadband, got %+v", d)
	}

	d = tbl.Evaluate(10, Analog, 130, 100, false, noFwd)
	if !d.Reset || !d.Write || d.Value != 130 {
		t.Fatalf("delta of 30 should exceed the deadband, got %+v", d)
	}
}

func TestEvaluate_DigitalNoToggleReverse(t *testing.T) {
	tbl := NewTable()

	d := tbl.Evaluate(20, Digital, 1, 0, true, noFwd)
	if !d.Reset || !d.Write || d.Value != 0 {
		t.Fatalf("reversed 1 should write 0, got %+v", d)
	}

	d = tbl.Evaluate(20, Digital, 0, 0, true, noFwd)
	if !d.Reset || !d.Write || d.Value != 1 {
		t.Fatalf("reversed 0 should write 1 (a change from current=0), got %+v", d)
	}
}

func TestEvaluate_ToggleFlipsOnRisingEdgeOnly(t *testing.T) {
	tbl := NewTable()
	tbl.AddToggle(30)

	// rising edge -> latch flips from its zero value to 1
	d := tbl.Evaluate(30, Digital, 1, 0, false, noFwd)
	if !d.Reset || !d.Write || d.Value != 1 {
		t.Fatalf("rising edge should flip the latch to 1, got %+v", d)
	}

	// holding the input high: signalIn == current (1) and == last
	// input (true), so nothing happens at all.
	d = tbl.Evaluate(30, Digital, 1, 1, false, noFwd)
	if d.Reset || d.Write {
		t.Fatalf("held-high input should be a no-op, got %+v", d)
	}

	// falling edge: process runs (signal changed) but the toggle
	// itself only resets, it does not flip on a falling edge.
	d = tbl.Evaluate(30, Digital, 0, 1, false, noFwd)
	if !d.Reset || d.Write {
		t.Fatalf("falling edge should reset without writing, got %+v", d)
	}
}

func TestEvaluate_ToggleForwardGroupOverridesRawInput(t *testing.T) {
	tbl := NewTable()
	tbl.AddToggle(40, 41, 42)

	fieldValues := map[int]int64{41: 0, 42: 0}
	lookup := func(a int) int64 { return fieldValues[a] }

	// raw input is 0 and no forward is active: signalIn stays 0,
	// equal to current and to last input -> no-op.
	d := tbl.Evaluate(40, Digital, 0, 0, false, lookup)
	if d.Reset || d.Write {
		t.Fatalf("no active forward should be a no-op, got %+v", d)
	}

	// one forward area goes non-zero: signalIn becomes 1 regardless
	// of the raw reading, flipping the latch.
	fieldValues[42] = 1
	d = tbl.Evaluate(40, Digital, 0, 0, false, lookup)
	if !d.Reset || !d.Write || d.Value != 1 {
		t.Fatalf("an active forward should flip the latch, got %+v", d)
	}
}
