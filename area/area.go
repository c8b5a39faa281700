// Package area holds the static area table: declarative metadata about
// each addressable slot in the buffer store, plus the handful of
// reserved areas every deployment carries.
package area

// Reserved areas. 0..9 are reserved by the platform; DUMMY is a
// write sentinel far outside any realistic area count.
const (
	SystemErrors   = 0 // count of devices currently in error
	SystemRunningT = 1 // latest cycle duration in milliseconds
	SystemFlags    = 2 // bitmap of system-level alarm bits
	Dummy          = 999
)

// ReservedCount is the number of low areas reserved by the platform
// (0..9 inclusive of unused slots 3..9 held for future reservations).
const ReservedCount = 10

// Info is the immutable, declaration-time metadata for one area.
//
// AreaToWrite redirects a Field-view change to another area; Dummy
// means "no redirect but allow self-write pass-through", 0 means "no
// redirect".
type Info struct {
	Area          int
	AreaToWrite   int
	WriteToPanel  bool
	ReadFromPanel bool
	Reverse       bool
	Name          string
}

// Table is the full set of declared areas, keyed by area number.
type Table struct {
	n     int
	infos map[int]Info

	// init tracking, per spec.md §3 invariant: every declared area
	// must be initialized exactly once; violations are reported, not
	// fatal.
	initCount map[int]int
}

// NewTable creates a table sized for areas in [0, n).
func NewTable(n int) *Table {
	return &Table{
		n:         n,
		infos:     make(map[int]Info),
		initCount: make(map[int]int),
	}
}

// Size returns the configured area count N.
func (t *Table) Size() int { return t.n }

// InRange reports whether a is a valid, non-Dummy area address.
func (t *Table) InRange(a int) bool { return a >= 0 && a < t.n && a != Dummy }

// Define registers area metadata and marks it as initialized. Safe to
// call more than once for the same area; repeats are counted and
// surfaced via InitializedMultipleTimes.
func (t *Table) Define(a int, areaToWrite int, writeToPanel, readFromPanel, reverse bool, name string) {
	t.infos[a] = Info{
		Area:          a,
		AreaToWrite:   areaToWrite,
		WriteToPanel:  writeToPanel,
		ReadFromPanel: readFromPanel,
		Reverse:       reverse,
		Name:          name,
	}
	t.initCount[a]++
}

// Lookup returns the declared Info for an area, or the zero Info and
// false if the area was never declared.
func (t *Table) Lookup(a int) (Info, bool) {
	info, ok := t.infos[a]
	return info, ok
}

// AreaToWrite returns the redirect target for a, or 0 if undeclared or
// not set.
func (t *Table) AreaToWrite(a int) int {
	return t.infos[a].AreaToWrite
}

// IsReverse reports the declared reverse-polarity bit for a.
func (t *Table) IsReverse(a int) bool { return t.infos[a].Reverse }

// CanWriteToPanel reports whether changes to a's ToPanel view should
// be mirrored to the HMI.
func (t *Table) CanWriteToPanel(a int) bool { return t.infos[a].WriteToPanel }

// CanReadFromPanel reports whether the HMI may source a's value.
func (t *Table) CanReadFromPanel(a int) bool { return t.infos[a].ReadFromPanel }

// Name returns the diagnostic label for a, or "" if undeclared.
func (t *Table) Name(a int) string { return t.infos[a].Name }

// ReadFromPanelList returns every area marked ReadFromPanel, built
// once at startup (callers should cache the result; the table itself
// is immutable after Define calls finish).
func (t *Table) ReadFromPanelList() []int {
	var out []int
	for a, info := range t.infos {
		if info.ReadFromPanel {
			out = append(out, a)
		}
	}
	return out
}

// NeverInitialized returns every area referenced as another area's
// AreaToWrite redirect target for which Define was never called — a
// dangling route, almost always a configuration typo. Area numbers
// are sparse by convention (the default deployment in package config
// jumps 10, 11, 20, 30), so auditing the full [0, N) index range would
// flag the entire unused address space on every deployment; scoping
// the check to actual redirect targets keeps it a real anomaly
// detector instead of permanent noise.
func (t *Table) NeverInitialized() []int {
	var out []int
	seen := make(map[int]bool)
	for _, info := range t.infos {
		dest := info.AreaToWrite
		if dest == 0 || dest == Dummy || seen[dest] {
			continue
		}
		seen[dest] = true
		if t.initCount[dest] == 0 {
			out = append(out, dest)
		}
	}
	return out
}

// InitializedMultipleTimes returns every area Define was called for
// more than once.
func (t *Table) InitializedMultipleTimes() []int {
	var out []int
	for a, c := range t.initCount {
		if c > 1 {
			out = append(out, a)
		}
	}
	return out
}
