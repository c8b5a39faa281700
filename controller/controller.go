// Package controller wires every leaf package into one runnable field
// controller: it owns the buffer store, the gateway scheduler, the
// pipeline, the HMI sync server and the watchdog, and drives them
// through a single cooperative loop. Callback registration and the
// bus-mirrored overlay event spine replace the teacher's global
// singletons and function-pointer callbacks (SPEC_FULL.md §9 Design
// Notes).
//
// Grounded on the teacher's root main.go (bootstrap -> wait-ready ->
// select loop -> ticker-driven periodic work) and
// original_source/src/Fncs/Fncs.cpp's cycle ordering (read/route/write
// per gateway, then HMI sync, then watchdog).
package controller

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"fieldctl/area"
	"fieldctl/buffer"
	"fieldctl/bus"
	"fieldctl/config"
	"fieldctl/device"
	"fieldctl/errcode"
	"fieldctl/gateway"
	"fieldctl/hmi"
	"fieldctl/pipeline"
	"fieldctl/watchdog"
)

// SomethingChangedFn and RouteFn are re-exported so callers registering
// overlay callbacks don't need to import pipeline directly.
type SomethingChangedFn = pipeline.SomethingChangedFn
type RouteFn = pipeline.RouteFn

// ActivityLoopFn fires once per full pass over every gateway IP on
// which no HMI sync was due, with the pass's wall-clock duration — the host analogue of the original
// firmware's per-loop activity callback.
type ActivityLoopFn func(d time.Duration)

// Controller owns every live component and the single loop that drives
// them.
type Controller struct {
	Store     *buffer.Store
	Scheduler *gateway.Scheduler
	Pipeline  *pipeline.Pipeline
	HMI       *hmi.Server
	Watchdog  *watchdog.Watchdog

	bus     *bus.Bus
	conn    *bus.Connection
	log     zerolog.Logger
	cadence time.Time

	// lastHMISync and hmiPushNext drive the HMI-sync-vs-activity-loop
	// decision made once every RunOnce pass (SPEC_FULL.md §4.E step 7):
	// a full RunOnce pass already sweeps every gateway IP once, so it
	// stands in for "the round-robin returning to index 0"; if
	// hmi.MinPeriod has elapsed since the last panel sync, that pass
	// alternates a Push/Pull instead of firing the activity-loop
	// callback.
	lastHMISync time.Time
	hmiPushNext bool

	// configAnomaly, lastDeviceError and lastGatewayError are the
	// non-watchdog contributors to area.SystemFlags; lastWatchdogFlags
	// caches the watchdog's own bits. Each is updated by its own
	// producer (RunOnce for the error bits, defaultWatchdogStatus for
	// the watchdog bits, checkAreaInitialization once at startup for
	// the config bit) and writeSystemFlags ORs all four together so
	// neither producer clobbers the other's contribution.
	configAnomaly     bool
	lastDeviceError   bool
	lastGatewayError  bool
	lastWatchdogFlags int64

	onActivityLoop ActivityLoopFn
}

// Options configures New. Logger must be set explicitly — pass
// zerolog.Nop() for a silent controller.
type Options struct {
	Deployment string
	HMIAddr    string
	Dial       pipeline.Dial
	Logger     zerolog.Logger
	AreaCount  int
}

// New loads deployment's declarative config, builds every component,
// and wires the bus mirroring described in SPEC_FULL.md §2.2.
func New(opts Options) (*Controller, error) {
	tbl, err := config.Load(opts.Deployment)
	if err != nil {
		return nil, err
	}

	n := opts.AreaCount
	if n == 0 {
		n = area.ReservedCount
		for _, a := range tbl.Areas {
			if a.Area+1 > n {
				n = a.Area + 1
			}
			if a.AreaToWrite+1 > n {
				n = a.AreaToWrite + 1
			}
		}
	}
	areas := area.NewTable(n)
	store := buffer.NewStore(areas)
	config.BuildAreas(store, tbl.Areas)

	devices := config.BuildDevices(tbl.Devices)
	scheduler := gateway.NewScheduler(devices)
	toggles := config.BuildToggles(tbl.Toggles)

	hmiServer, err := hmi.NewServer(store, opts.HMIAddr)
	if err != nil {
		return nil, err
	}

	b := bus.NewBus(16)
	conn := b.NewConnection("controller")

	wd := watchdog.New(store)

	c := &Controller{
		Store:       store,
		Scheduler:   scheduler,
		HMI:         hmiServer,
		Watchdog:    wd,
		bus:         b,
		conn:        conn,
		log:         opts.Logger.With().Str("component", "controller").Logger(),
		hmiPushNext: true,
		lastHMISync: time.Now(),
	}

	c.Pipeline = &pipeline.Pipeline{
		Store:     store,
		Scheduler: scheduler,
		Toggles:   toggles,
		Dial:      opts.Dial,
	}
	c.Pipeline.SomethingChanged = c.defaultSomethingChanged
	c.Pipeline.Route = c.defaultRoute
	wd.OnStatus = c.defaultWatchdogStatus

	c.logDeviceBankPlan(devices)
	c.checkAreaInitialization()

	return c, nil
}

// checkAreaInitialization runs the startup audit spec.md §3 calls for:
// every declared area should have been Define'd exactly once. Redirect
// targets Define was never called for, and areas Define was called
// for more than once, are
// reported and latch area.FlagConfigAnomaly for the life of the
// controller (writeSystemFlags folds it into every flags write).
func (c *Controller) checkAreaInitialization() {
	never := c.Store.NeverInitialized()
	multi := c.Store.InitializedMultipleTimes()
	if len(never) == 0 && len(multi) == 0 {
		return
	}

	c.configAnomaly = true
	c.log.Warn().
		Int("neverInitialized", len(never)).
		Int("initializedMultipleTimes", len(multi)).
		Msg("area table has configuration anomalies")
}

// logDeviceBankPlan reports, for every wide channel, how many banked
// reads it will take to cover its full register range — useful for
// sizing expected poll latency per device at startup.
func (c *Controller) logDeviceBankPlan(devices []*device.Device) {
	for _, dev := range devices {
		for ch := range dev.Channels {
			if banks := dev.BankCount(ch); banks > 1 {
				c.log.Debug().Str("device", dev.Name).Int("channel", ch).Int("banks", banks).
					Msg("wide channel will be polled across multiple banked reads")
			}
		}
	}
}

// OnSomethingChanged additionally invokes fn (after the bus mirror)
// whenever a cycle routes at least one change.
func (c *Controller) OnSomethingChanged(fn SomethingChangedFn) {
	inner := c.Pipeline.SomethingChanged
	c.Pipeline.SomethingChanged = func(store *buffer.Store) {
		inner(store)
		if fn != nil {
			fn(store)
		}
	}
}

// OnRoute additionally invokes fn (after the default route's debug
// log and watchdog timing) whenever an area's Field change is
// redirected.
func (c *Controller) OnRoute(fn RouteFn) {
	inner := c.Pipeline.Route
	c.Pipeline.Route = func(store *buffer.Store, sourceArea int, value int64, destArea int) {
		inner(store, sourceArea, value, destArea)
		if fn != nil {
			fn(store, sourceArea, value, destArea)
		}
	}
}

// OnActivityLoop registers fn to be called once per full sweep of
// every gateway IP on which no HMI sync was due, timed by the
// watchdog's ActivityLoop phase.
func (c *Controller) OnActivityLoop(fn ActivityLoopFn) { c.onActivityLoop = fn }

// OnWatchdogStatus additionally invokes fn (after the bus mirror and
// the system-flags bitmap write) whenever the watchdog classifies a
// condition as active.
func (c *Controller) OnWatchdogStatus(fn watchdog.StatusFn) {
	inner := c.Watchdog.OnStatus
	c.Watchdog.OnStatus = func(s watchdog.Status) {
		inner(s)
		if fn != nil {
			fn(s)
		}
	}
}

func (c *Controller) defaultSomethingChanged(store *buffer.Store) {
	start := time.Now()
	defer func() { c.Watchdog.Record(watchdog.SomethingChanged, time.Since(start), start) }()

	for _, item := range store.Drain(buffer.Field, true) {
		c.conn.Publish(c.conn.NewMessage(bus.AreaTopic(item.Area), item.Record.Value, true))
	}
}

func (c *Controller) defaultRoute(store *buffer.Store, sourceArea int, value int64, destArea int) {
	start := time.Now()
	c.log.Debug().Int("source", sourceArea).Int("dest", destArea).Int64("value", value).Msg("route")
	c.Watchdog.Record(watchdog.Route, time.Since(start), start)
}

func (c *Controller) defaultWatchdogStatus(s watchdog.Status) {
	var flags []area.SystemFlag
	if s.Overload {
		flags = append(flags, area.FlagWatchdogOverload)
	}
	if s.Blocked {
		flags = append(flags, area.FlagWatchdogBlocked)
	}
	if s.Unstable {
		flags = append(flags, area.FlagWatchdogUnstable)
	}
	if s.Inactive {
		flags = append(flags, area.FlagWatchdogInactive)
	}
	c.lastWatchdogFlags = area.Bitmap(flags...)
	c.writeSystemFlags()

	c.conn.Publish(c.conn.NewMessage(bus.WatchdogTopic, s, true))
	c.log.Warn().Interface("status", s).Msg("watchdog classification active")
}

// writeSystemFlags ORs together every cached flag contributor —
// device/gateway error state, the startup config-anomaly audit, and
// the watchdog's own bits — and writes the combined bitmap to
// area.SystemFlags. Called by every producer after it updates its own
// cached field, so none of them clobber each other.
func (c *Controller) writeSystemFlags() {
	var flags []area.SystemFlag
	if c.lastDeviceError {
		flags = append(flags, area.FlagAnyDeviceError)
	}
	if c.lastGatewayError {
		flags = append(flags, area.FlagAnyGatewayError)
	}
	if c.configAnomaly {
		flags = append(flags, area.FlagConfigAnomaly)
	}
	bitmap := area.Bitmap(flags...) | c.lastWatchdogFlags
	c.Store.WriteSilent(area.SystemFlags, buffer.Field, bitmap)
}

// anyGatewayInError reports whether every known gateway IP is
// currently in its connect-error state (the condition RunOnce treats
// as a systemic fault), and whether at least one is.
func (c *Controller) anyGatewayInError() (allErrored bool, anyErrored bool) {
	if len(c.Scheduler.IPs) == 0 {
		return false, false
	}
	allErrored = true
	for _, ip := range c.Scheduler.IPs {
		if ip.InError {
			anyErrored = true
		} else {
			allErrored = false
		}
	}
	return allErrored, anyErrored
}

// RunOnce drives one full pass over every known gateway IP (read,
// route, write per IP). That pass stands in for the round-robin
// returning to gateway index 0 (SPEC_FULL.md §4.E step 7): if
// hmi.MinPeriod has elapsed since the last panel sync, this pass
// alternates a Push or a Pull against the HMI server instead of firing
// the activity-loop callback. A pass on which every gateway IP is in
// its connect-error state triggers a hard reset of the scheduler and
// every device's error gate; one such pass is enough, as no count of
// consecutive failed passes is kept.
func (c *Controller) RunOnce(now time.Time) {
	cycleStart := now

	anyGatewayError := false
	for i := range c.Scheduler.IPs {
		ip := c.Scheduler.IPs[i].IP
		if err := c.Pipeline.RunCycle(i, now); err != nil {
			c.log.Error().Err(err).Str("ip", ip).Str("code", string(errcode.Of(err))).Msg("cycle error")
		}
		if c.Scheduler.IPs[i].InError {
			anyGatewayError = true
		}
		c.conn.Publish(c.conn.NewMessage(bus.GatewayTopic(ip), c.Scheduler.IPs[i].InError, true))
	}

	deviceErrors := 0
	for _, dev := range c.Scheduler.Devices {
		if dev.InError() {
			deviceErrors++
		}
	}
	c.Store.WriteSilent(area.SystemErrors, buffer.Field, int64(deviceErrors))
	if c.Store.CanWriteToPanel(area.SystemErrors) {
		c.Store.WriteSilent(area.SystemErrors, buffer.ToPanel, int64(deviceErrors))
	}

	c.lastDeviceError = deviceErrors > 0
	c.lastGatewayError = anyGatewayError
	c.writeSystemFlags()

	if now.Sub(c.lastHMISync) >= hmi.MinPeriod {
		if c.hmiPushNext {
			c.HMI.Push()
		} else {
			c.HMI.Pull()
		}
		c.hmiPushNext = !c.hmiPushNext
		c.lastHMISync = now
	} else {
		activityDuration := time.Since(cycleStart)
		c.Watchdog.Record(watchdog.ActivityLoop, activityDuration, now)
		if c.onActivityLoop != nil {
			c.onActivityLoop(activityDuration)
		}
	}

	if allErrored, _ := c.anyGatewayInError(); allErrored {
		c.log.Error().Str("code", string(errcode.SystemicFault)).Msg("systemic fault: every gateway unreachable")
		c.hardReset()
	}

	c.Watchdog.Record(watchdog.UpdateCycle, time.Since(cycleStart), now)
}

// hardReset recovers from a systemic fault (a RunOnce pass on which
// every gateway IP is in its connect-error state; the first such pass
// triggers it, without waiting for repeated failures): it clears every device's error
// gate and rebuilds the scheduler's priority rings from their warm-up
// sentinel, so the next pass starts clean instead of staying wedged
// behind tripped gates and stale cursors.
func (c *Controller) hardReset() {
	for _, dev := range c.Scheduler.Devices {
		dev.ResetErrors()
	}
	c.Scheduler.Reset()
	c.log.Warn().Msg("performed hard reset after systemic fault")
}

// Run drives RunOnce on a ticker (the HMI server's TCP listener is
// already running from New, and its register block is driven
// synchronously from RunOnce's Push/Pull calls) until
// ctx is cancelled, classifying watchdog status no faster than
// watchdog.CadenceMinimum.
func (c *Controller) Run(ctx context.Context, period time.Duration) {
	tick := time.NewTicker(period)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.Info().Msg("controller stopping")
			return
		case now := <-tick.C:
			c.RunOnce(now)
			if now.Sub(c.cadence) >= watchdog.CadenceMinimum {
				c.Watchdog.Classify(now)
				c.cadence = now
			}
		}
	}
}

// Close releases the HMI server's TCP listener.
func (c *Controller) Close() { c.HMI.Close() }
