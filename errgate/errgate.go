// Package errgate implements the N-strike error gate used to decide
// when a flaky device or gateway should be taken out of the polling
// rotation, and when it earns another try.
//
// A gate tracks consecutive failures. Once Strikes failures have
// accumulated it trips into the open (errored) state and stays there
// for a cooldown proportional to Strikes*Window; a single success
// seen while closed resets the strike count.
package errgate

import "time"

// Gate is one device's or gateway's error budget.
type Gate struct {
	Strikes int           // failures tolerated before tripping open
	Window  time.Duration // cooldown unit; actual cooldown is Strikes*Window

	count     int
	open      bool
	trippedAt time.Time
}

// New returns a Gate that trips after strikes consecutive failures
// and cools down for strikes*window before retrying.
func New(strikes int, window time.Duration) *Gate {
	return &Gate{Strikes: strikes, Window: window}
}

// Loop records the outcome of one cycle and reports whether the gate
// is currently closed (ok to proceed). While open it periodically
// checks whether the cooldown has elapsed and resets if so, but still
// reports not-ok for the cycle that performed the reset.
func (g *Gate) Loop(failed bool, now time.Time) bool {
	if !g.open {
		g.check(failed, now)
		return !g.open
	}
	g.retry(now)
	return false
}

// InError reports the gate's current open/closed state without
// recording an outcome.
func (g *Gate) InError() bool { return g.open }

// IncrementError bumps the strike counter without checking the
// threshold; exported for callers that pre-count failures across a
// read and a write pass before calling Loop once.
func (g *Gate) IncrementError() { g.count++ }

func (g *Gate) check(failed bool, now time.Time) {
	if !failed {
		g.count = 0
		return
	}
	g.IncrementError()
	if g.count >= g.Strikes {
		g.open = true
		g.trippedAt = now
	}
}

func (g *Gate) retry(now time.Time) {
	cooldown := g.Window * time.Duration(g.Strikes)
	if g.trippedAt.Add(cooldown).Before(now) || g.trippedAt.Add(cooldown).Equal(now) {
		g.reset()
	}
}

func (g *Gate) reset() {
	g.open = false
	g.count = 0
	g.trippedAt = time.Time{}
}

// Reset forces the gate back to its closed, zero-strike state,
// bypassing the cooldown — used by a controller-level hard reset
// after a systemic fault rather than waiting out Strikes*Window.
func (g *Gate) Reset() { g.reset() }
