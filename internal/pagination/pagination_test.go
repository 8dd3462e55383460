package pagination

import (
	"reflect"
	"testing"
)

func TestFirstPageHasNoPrev(t *testing.T) {
	p := New(100, 10, 1, 2)
	if p.Prev != 0 {
		t.Errorf("expected no prev on page 1, got %d", p.Prev)
	}
	if p.Next != 2 {
		t.Errorf("expected next=2, got %d", p.Next)
	}
}

func TestLastPageHasNoNext(t *testing.T) {
	p := New(100, 10, 10, 2)
	if p.Next != 0 {
		t.Errorf("expected no next on last page, got %d", p.Next)
	}
	if p.Prev != 9 {
		t.Errorf("expected prev=9, got %d", p.Prev)
	}
}

func TestOutOfRangePageClamps(t *testing.T) {
	p := New(100, 10, 99, 2)
	if p.Current != 10 {
		t.Errorf("expected clamp to last page 10, got %d", p.Current)
	}

	p = New(100, 10, -3, 2)
	if p.Current != 1 {
		t.Errorf("expected clamp to first page, got %d", p.Current)
	}
}

func TestLeadWindow(t *testing.T) {
	p := New(100, 10, 5, 2)
	want := []int{3, 4, 5, 6, 7}
	if !reflect.DeepEqual(p.Pages, want) {
		t.Errorf("expected pages %v, got %v", want, p.Pages)
	}

	// window clipped at the low boundary
	p = New(100, 10, 1, 2)
	want = []int{1, 2, 3}
	if !reflect.DeepEqual(p.Pages, want) {
		t.Errorf("expected pages %v, got %v", want, p.Pages)
	}

	// zero lead keeps only the current page
	p = New(100, 10, 5, 0)
	want = []int{5}
	if !reflect.DeepEqual(p.Pages, want) {
		t.Errorf("expected pages %v, got %v", want, p.Pages)
	}
}

func TestSliceBounds(t *testing.T) {
	p := New(25, 10, 3, 0)
	if p.Start != 20 || p.End != 25 {
		t.Errorf("expected bounds [20,25), got [%d,%d)", p.Start, p.End)
	}

	p = New(25, 10, 1, 0)
	if p.Start != 0 || p.End != 10 {
		t.Errorf("expected bounds [0,10), got [%d,%d)", p.Start, p.End)
	}
}

func TestEmptySequence(t *testing.T) {
	p := New(0, 10, 1, 2)
	if p.Current != 1 || p.Last != 1 {
		t.Errorf("empty sequence should yield one page, got current=%d last=%d", p.Current, p.Last)
	}
	if p.Start != 0 || p.End != 0 {
		t.Errorf("empty sequence should have empty bounds, got [%d,%d)", p.Start, p.End)
	}
	if p.Next != 0 || p.Prev != 0 {
		t.Errorf("empty sequence should have no neighbors")
	}
}
