// Package buffer implements the three-view data store that every
// other component reads and writes through: Field (the controller's
// own working value), FromPanel (last value pulled from the HMI) and
// ToPanel (last value pushed to the HMI). Each area keeps one record
// per view it actually uses; views an area was never written for
// simply don't exist yet.
//
// Store wraps an area.Table for the static declarations and adds the
// per-view value records plus change tracking. It is the one place in
// the controller that takes a mutex, so its methods are safe to call
// from several goroutines; in this repository the core loop is the
// only caller, including the hmi Push/Pull calls it makes.
package buffer

import (
	"sync"

	"fieldctl/area"
	"fieldctl/x/timex"
)

// View identifies which of the three buffers a record belongs to.
type View int

const (
	Field View = iota
	FromPanel
	ToPanel
)

// Record is one view's value for one area.
type Record struct {
	Value     int64
	PrevValue int64
	TimeMs    int64
	Changed   bool
}

// CompareResult is the outcome of Compare.
type CompareResult int

const (
	CompareError CompareResult = iota - 1
	CompareNotFound
	CompareDifferent
	CompareEqual
)

// ChangedItem is one entry returned by Drain.
type ChangedItem struct {
	Area   int
	Record Record
}

// Store is the shared, mutex-guarded buffer of area values.
type Store struct {
	Areas *area.Table

	mu          sync.Mutex
	data        map[int]map[View]Record
	toPanelRead []int
}

// NewStore creates an empty store sized by the given area table.
func NewStore(areas *area.Table) *Store {
	return &Store{
		Areas: areas,
		data:  make(map[int]map[View]Record),
	}
}

// Define registers area metadata, delegating to the area table.
func (s *Store) Define(a, areaToWrite int, writeToPanel, readFromPanel, reverse bool, name string) {
	s.Areas.Define(a, areaToWrite, writeToPanel, readFromPanel, reverse, name)
}

// AddInitialValue seeds a view with a starting value, marked changed
// so the first pass always pushes it out.
func (s *Store) AddInitialValue(a int, initial int64, view View) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensure(a)[view] = Record{Value: initial, TimeMs: timex.NowMs(), Changed: true}
}

// Init builds the cached list of areas marked ReadFromPanel. Call
// once after every Define call has run.
func (s *Store) Init() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toPanelRead = s.Areas.ReadFromPanelList()
}

// Write stores value for area a's view, marking it changed if the
// value actually differs (or the view didn't exist yet).
func (s *Store) Write(a int, view View, value int64) bool {
	return s.write(a, view, value, false)
}

// WriteSilent is Write without marking the record changed — used for
// HMI echo suppression (spec.md §4.H).
func (s *Store) WriteSilent(a int, view View, value int64) bool {
	return s.write(a, view, value, true)
}

func (s *Store) write(a int, view View, value int64, silent bool) bool {
	if a == area.Dummy {
		return true
	}
	if !s.Areas.InRange(a) {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	views := s.ensure(a)
	rec, ok := views[view]
	if !ok {
		views[view] = Record{Value: value, TimeMs: timex.NowMs(), Changed: !silent}
		return true
	}
	if rec.Value == value {
		return true
	}
	views[view] = Record{
		Value:     value,
		PrevValue: rec.Value,
		TimeMs:    timex.NowMs(),
		Changed:   !silent,
	}
	return true
}

// Compare reports how value relates to the currently stored value for
// area a's view.
func (s *Store) Compare(a int, view View, value int64) CompareResult {
	if !s.Areas.InRange(a) {
		return CompareError
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.data[a][view]
	if !ok {
		return CompareNotFound
	}
	if rec.Value != value {
		return CompareDifferent
	}
	return CompareEqual
}

// Read returns the current record for area a's view.
func (s *Store) Read(a int, view View) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.data[a][view]
	return rec, ok
}

// HasChanged reports whether area a's view carries an unconsumed
// change.
func (s *Store) HasChanged(a int, view View) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[a][view].Changed
}

// ResetChanged clears the changed flag for area a's view without
// altering its value.
func (s *Store) ResetChanged(a int, view View) {
	s.mu.Lock()
	defer s.mu.Unlock()
	views, ok := s.data[a]
	if !ok {
		return
	}
	rec := views[view]
	rec.Changed = false
	views[view] = rec
}

// Drain returns every area whose view carries a pending change, and
// (unless preserve is set) clears the changed flag as it collects
// them — the read/clear is atomic under the store's lock.
func (s *Store) Drain(view View, preserve bool) []ChangedItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []ChangedItem
	for a, views := range s.data {
		rec, ok := views[view]
		if !ok || !rec.Changed {
			continue
		}
		out = append(out, ChangedItem{Area: a, Record: rec})
		if !preserve {
			rec.Changed = false
			views[view] = rec
		}
	}
	return out
}

// ReadFromPanelList returns the cached set of areas sourced from the
// HMI panel, built by Init.
func (s *Store) ReadFromPanelList() []int { return s.toPanelRead }

func (s *Store) Name(a int) string              { return s.Areas.Name(a) }
func (s *Store) AreaToWrite(a int) int          { return s.Areas.AreaToWrite(a) }
func (s *Store) IsReverse(a int) bool           { return s.Areas.IsReverse(a) }
func (s *Store) CanReadFromPanel(a int) bool    { return s.Areas.CanReadFromPanel(a) }
func (s *Store) CanWriteToPanel(a int) bool     { return s.Areas.CanWriteToPanel(a) }
func (s *Store) NeverInitialized() []int        { return s.Areas.NeverInitialized() }
func (s *Store) InitializedMultipleTimes() []int { return s.Areas.InitializedMultipleTimes() }

// ensure returns (creating if needed) the per-view map for area a.
// Callers must hold s.mu.
func (s *Store) ensure(a int) map[View]Record {
	views, ok := s.data[a]
	if !ok {
		views = make(map[View]Record)
		s.data[a] = views
	}
	return views
}
