package bus

// AreaTopic identifies the overlay-event stream for one buffer area's
// Field changes, published by controller.defaultSomethingChanged.
func AreaTopic(a int) Topic { return T("area", a) }

// GatewayTopic identifies the per-IP connect-state stream, published
// once per RunOnce pass for every known gateway.
func GatewayTopic(ip string) Topic { return T("gateway", ip, "state") }

// WatchdogTopic identifies the single retained stream carrying the
// watchdog's latest active classification.
var WatchdogTopic = T("watchdog", "status")
