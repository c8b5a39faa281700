package signal

import "time"

// Debounce rejects transitions on a boolean input that don't hold
// stable for at least Settle. It is built on a TON: any change starts
// the timer, and only a change that survives Settle is accepted as
// the new stable value.
type Debounce struct {
	ton    TON
	stable bool
}

// NewDebounce returns a Debounce with the given settle time.
func NewDebounce(settle time.Duration) *Debounce {
	return &Debounce{ton: TON{Timer{Preset: settle}}}
}

// Run feeds the next raw sample and returns the debounced value.
func (d *Debounce) Run(raw bool, now time.Time) bool {
	if raw == d.stable {
		d.ton.Run(false, now)
	} else {
		d.ton.Run(true, now)
		if d.ton.Q() {
			d.stable = raw
		}
	}
	return d.stable
}

// Stable returns the last accepted value without advancing the timer.
func (d *Debounce) Stable() bool { return d.stable }
