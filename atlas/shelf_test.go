package atlas

import "testing"

func TestShelfAllocatorBasic(t *testing.T) {
	a := NewShelfAllocator(100, 100, 2)

	x, y, ok := a.Allocate(20, 20)
	if !ok {
		t.Fatal("failed to allocate first box")
	}
	if x != 0 || y != 0 {
		t.Errorf("expected (0,0), got (%d,%d)", x, y)
	}

	x, y, ok = a.Allocate(20, 20)
	if !ok {
		t.Fatal("failed to allocate second box")
	}
	if x != 22 || y != 0 { // 20 + 2 padding
		t.Errorf("expected (22,0), got (%d,%d)", x, y)
	}
}

func TestShelfAllocatorNewShelf(t *testing.T) {
	a := NewShelfAllocator(50, 100, 2)

	_, y1, ok := a.Allocate(20, 20)
	if !ok {
		t.Fatal("failed to allocate first box")
	}

	_, y2, ok := a.Allocate(20, 20)
	if !ok {
		t.Fatal("failed to allocate second box")
	}
	if y2 != y1 {
		t.Errorf("expected same shelf, got y1=%d, y2=%d", y1, y2)
	}

	x3, y3, ok := a.Allocate(20, 20)
	if !ok {
		t.Fatal("failed to allocate third box")
	}
	if y3 <= y1 {
		t.Errorf("expected new shelf, got y1=%d, y3=%d", y1, y3)
	}
	if x3 != 0 {
		t.Errorf("expected x=0 for new shelf, got %d", x3)
	}
}

func TestShelfAllocatorFull(t *testing.T) {
	a := NewShelfAllocator(50, 50, 2)

	count := 0
	for {
		_, _, ok := a.Allocate(20, 20)
		if !ok {
			break
		}
		count++
		if count > 100 {
			t.Fatal("allocator never filled up")
		}
	}

	if count != 4 { // 2x2 grid of 20+2 in 50x50
		t.Errorf("expected 4 allocations, got %d", count)
	}
}

func TestShelfAllocatorGrow(t *testing.T) {
	a := NewShelfAllocator(50, 50, 2)

	for {
		if _, _, ok := a.Allocate(20, 20); !ok {
			break
		}
	}
	before := a.ShelfCount()

	a.Grow(100)
	x, y, ok := a.Allocate(20, 20)
	if !ok {
		t.Fatal("allocation failed after Grow")
	}
	if y < 44 || x != 0 {
		t.Errorf("expected new shelf below old space, got (%d,%d)", x, y)
	}
	if a.ShelfCount() != before+1 {
		t.Errorf("expected one more shelf, got %d -> %d", before, a.ShelfCount())
	}

	// Shrinking is ignored.
	a.Grow(10)
	if a.RemainingHeight() < 0 {
		t.Error("RemainingHeight negative after ignored shrink")
	}
}

func TestShelfAllocatorReset(t *testing.T) {
	a := NewShelfAllocator(100, 100, 2)

	a.Allocate(20, 20)
	a.Allocate(20, 20)

	if a.ShelfCount() == 0 {
		t.Error("expected shelves before reset")
	}

	a.Reset()

	if a.ShelfCount() != 0 {
		t.Error("expected no shelves after reset")
	}
	if a.Utilization() != 0 {
		t.Error("expected 0 utilization after reset")
	}
}

func TestShelfAllocatorUtilization(t *testing.T) {
	a := NewShelfAllocator(100, 100, 0)

	if a.Utilization() != 0 {
		t.Errorf("expected 0 utilization initially, got %f", a.Utilization())
	}

	a.Allocate(50, 50)
	if util := a.Utilization(); util != 0.25 {
		t.Errorf("expected 0.25 utilization, got %f", util)
	}
}
