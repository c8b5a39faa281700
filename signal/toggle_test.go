package signal

import "testing"

func TestToggle_FlipsOnRisingEdgeOnly(t *testing.T) {
	var tg Toggle

	if v, flipped := tg.Run(false); v || flipped {
		t.Fatal("no edge, no flip")
	}
	v, flipped := tg.Run(true)
	if !flipped || !v {
		t.Fatal("rising edge should flip the latch on")
	}
	if v, flipped := tg.Run(true); flipped || !v {
		t.Fatal("held high should not flip again")
	}
	if v, flipped := tg.Run(false); flipped || !v {
		t.Fatal("falling edge is a no-op for the latch value")
	}
	v, flipped = tg.Run(true)
	if !flipped || v {
		t.Fatal("second rising edge should flip the latch back off")
	}
}
