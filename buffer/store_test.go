package buffer

import (
	"testing"

	"fieldctl/area"
)

func newTestStore() *Store {
	tbl := area.NewTable(20)
	s := NewStore(tbl)
	s.Define(10, 0, true, false, false, "di-1")
	s.Define(11, 10, false, true, false, "do-1")
	s.Init()
	return s
}

func TestStore_WriteMarksChangedOnlyOnDifference(t *testing.T) {
	s := newTestStore()

	if !s.Write(10, Field, 1) {
		t.Fatal("first write should succeed")
	}
	if !s.HasChanged(10, Field) {
		t.Fatal("first write of a new view should be marked changed")
	}
	s.ResetChanged(10, Field)

	s.Write(10, Field, 1) // same value again
	if s.HasChanged(10, Field) {
		t.Fatal("writing the same value should not re-mark changed")
	}

	s.Write(10, Field, 0)
	if !s.HasChanged(10, Field) {
		t.Fatal("writing a different value should mark changed")
	}
}

func TestStore_WriteSilentDoesNotMarkChanged(t *testing.T) {
	s := newTestStore()

	s.WriteSilent(11, ToPanel, 5)
	if s.HasChanged(11, ToPanel) {
		t.Fatal("silent write must not mark the view changed (echo suppression)")
	}
	rec, ok := s.Read(11, ToPanel)
	if !ok || rec.Value != 5 {
		t.Fatal("silent write should still update the stored value")
	}
}

func TestStore_CompareStates(t *testing.T) {
	s := newTestStore()

	if got := s.Compare(10, Field, 1); got != CompareNotFound {
		t.Fatalf("expected CompareNotFound before any write, got %v", got)
	}
	s.Write(10, Field, 1)
	if got := s.Compare(10, Field, 1); got != CompareEqual {
		t.Fatalf("expected CompareEqual, got %v", got)
	}
	if got := s.Compare(10, Field, 2); got != CompareDifferent {
		t.Fatalf("expected CompareDifferent, got %v", got)
	}
	if got := s.Compare(999, Field, 0); got != CompareError {
		t.Fatalf("expected CompareError for an out-of-range area, got %v", got)
	}
}

func TestStore_DrainClearsChangedUnlessPreserved(t *testing.T) {
	s := newTestStore()
	s.Write(10, Field, 7)
	s.Write(11, Field, 9)

	items := s.Drain(Field, true)
	if len(items) != 2 {
		t.Fatalf("expected 2 changed items, got %d", len(items))
	}
	if !s.HasChanged(10, Field) {
		t.Fatal("preserve=true must leave changed flags intact")
	}

	items = s.Drain(Field, false)
	if len(items) != 2 {
		t.Fatalf("expected 2 changed items on the non-preserving drain, got %d", len(items))
	}
	if s.HasChanged(10, Field) || s.HasChanged(11, Field) {
		t.Fatal("preserve=false must clear changed flags as it drains")
	}
}

func TestStore_DummyAreaWritesAreNoops(t *testing.T) {
	s := newTestStore()
	if !s.Write(area.Dummy, Field, 42) {
		t.Fatal("writes to the dummy area should report success")
	}
	if _, ok := s.Read(area.Dummy, Field); ok {
		t.Fatal("dummy area writes must not create a record")
	}
}

func TestStore_ReadFromPanelList(t *testing.T) {
	s := newTestStore()
	list := s.ReadFromPanelList()
	if len(list) != 1 || list[0] != 11 {
		t.Fatalf("expected [11], got %v", list)
	}
}
