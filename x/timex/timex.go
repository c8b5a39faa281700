// Package timex provides the millisecond wall-clock helper used across
// the controller in place of Arduino's millis()/micros().
package timex

import "time"

// NowMs returns Unix milliseconds as int64, used for buffer record
// timestamps and diagnostic logging.
func NowMs() int64 { return time.Now().UnixMilli() }
