package area

// SystemFlag is one bit of the AREA_SYSTEM_FLAGS bitmap pushed to the
// HMI. Bit position is declaration order below — this is part of the
// HMI wire contract and must not be reordered once deployed.
type SystemFlag int

const (
	FlagAnyDeviceError SystemFlag = iota
	FlagAnyGatewayError
	FlagWatchdogOverload
	FlagWatchdogBlocked
	FlagWatchdogUnstable
	FlagWatchdogInactive
	FlagConfigAnomaly
)

// Bitmap ORs a set of flags into the int64 value stored at
// AREA_SYSTEM_FLAGS.
func Bitmap(flags ...SystemFlag) int64 {
	var m int64
	for _, f := range flags {
		m |= 1 << uint(f)
	}
	return m
}

// Set reports whether flag is set in bitmap m.
func Set(m int64, f SystemFlag) bool {
	return m&(1<<uint(f)) != 0
}
