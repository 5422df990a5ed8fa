// Package regalloc assigns local-variable slots to SSA values.
//
// The stack machine has an unbounded number of slots, so allocation is a
// linear scan without spilling or interval splitting: intervals are visited
// in order of their start point and each takes the lowest free slot (or
// pair of adjacent slots for wide values) that no overlapping interval
// holds. Lifetime holes let an interval give its slot away temporarily
// (the "inactive" set); such slots are only reused by intervals that fit
// entirely inside the hole.
package regalloc

import (
	"sort"

	"github.com/raymyers/ralph-cf/pkg/diag"
	"github.com/raymyers/ralph-cf/pkg/liveness"
	"github.com/raymyers/ralph-cf/pkg/ssa"
)

// Result holds the result of slot allocation
type Result struct {
	// Slots maps each allocated value to its first slot. A wide value also
	// occupies the following slot.
	Slots map[ssa.ValueID]int
	// SlotCount is 1 + the highest slot used (the method's max-locals).
	SlotCount int
}

// Slot returns the slot assigned to v.
func (r *Result) Slot(v ssa.ValueID) (int, bool) {
	s, ok := r.Slots[v]
	return s, ok
}

// allocator is the per-call linear scan state. It is never shared between
// methods, so methods can be allocated concurrently.
type allocator struct {
	unhandled []*liveness.Interval
	active    []*liveness.Interval
	inactive  []*liveness.Interval

	slots    map[ssa.ValueID]int
	occupied []bool // slot -> held by an active interval
	next     int    // first slot never handed out
}

// Allocate assigns slots to the given intervals. Argument intervals are
// assigned first, each to its ArgSlot, so the calling convention layout is
// preserved (receiver in slot 0 for instance methods).
func Allocate(intervals []*liveness.Interval) (*Result, error) {
	a := &allocator{slots: make(map[ssa.ValueID]int, len(intervals))}
	if err := a.init(intervals); err != nil {
		return nil, err
	}

	for len(a.unhandled) > 0 {
		u := a.unhandled[0]
		a.unhandled = a.unhandled[1:]
		if err := a.advance(u.Start()); err != nil {
			return nil, err
		}
		slot, err := a.selectSlot(u)
		if err != nil {
			return nil, err
		}
		a.assign(u, slot)
	}

	return &Result{Slots: a.slots, SlotCount: a.next}, nil
}

func (a *allocator) init(intervals []*liveness.Interval) error {
	seen := make(map[ssa.ValueID]bool, len(intervals))
	var args []*liveness.Interval
	for _, it := range intervals {
		if it.Width != 1 && it.Width != 2 {
			return diag.Internalf("regalloc", "interval of v%d has width %d", it.Value, it.Width)
		}
		if len(it.Ranges) == 0 {
			return diag.Internalf("regalloc", "interval of v%d is empty", it.Value)
		}
		if seen[it.Value] {
			return diag.Internalf("regalloc", "duplicate interval for v%d", it.Value)
		}
		seen[it.Value] = true
		if it.IsArgument() {
			args = append(args, it)
		} else {
			a.unhandled = append(a.unhandled, it)
		}
	}

	// Argument pre-pass: each argument takes the slot the caller stores it
	// in, whether or not the arguments before it have intervals.
	sort.SliceStable(args, func(i, j int) bool { return args[i].Arg < args[j].Arg })
	for i, it := range args {
		if i > 0 && args[i-1].Arg == it.Arg {
			return diag.Internalf("regalloc", "two intervals for argument %d", it.Arg)
		}
		if it.ArgSlot < 0 || it.ArgSlot < a.next {
			return diag.Internalf("regalloc", "argument %d in slot %d overlaps the previous argument", it.Arg, it.ArgSlot)
		}
		a.assign(it, it.ArgSlot)
	}

	sort.SliceStable(a.unhandled, func(i, j int) bool {
		si, sj := a.unhandled[i].Start(), a.unhandled[j].Start()
		if si != sj {
			return si < sj
		}
		return a.unhandled[i].Value < a.unhandled[j].Value
	})
	return nil
}

// advance updates the active and inactive sets for position pos.
func (a *allocator) advance(pos int) error {
	var active []*liveness.Interval
	for _, it := range a.active {
		switch {
		case it.End() <= pos:
			a.release(it)
		case !it.Covers(pos):
			a.release(it)
			a.inactive = append(a.inactive, it)
		default:
			active = append(active, it)
		}
	}
	a.active = active

	var inactive []*liveness.Interval
	for _, it := range a.inactive {
		switch {
		case it.End() <= pos:
			// Retired while in a hole; its slot is already free.
		case it.Covers(pos):
			if err := a.occupy(it); err != nil {
				return err
			}
			a.active = append(a.active, it)
		default:
			inactive = append(inactive, it)
		}
	}
	a.inactive = inactive
	return nil
}

// selectSlot picks the lowest free slot for u, skipping slots held by
// inactive intervals that overlap u.
func (a *allocator) selectSlot(u *liveness.Interval) (int, error) {
	excluded := make(map[int]bool)
	limit := 1
	for _, it := range a.inactive {
		limit += it.Width
	}
	for attempt := 0; attempt <= limit; attempt++ {
		slot := a.lowestFree(u.Width, excluded)
		conflict := false
		for _, it := range a.inactive {
			held := a.slots[it.Value]
			if !intersects(held, it.Width, slot, u.Width) || !it.Overlaps(u) {
				continue
			}
			for k := held; k < held+it.Width; k++ {
				excluded[k] = true
			}
			conflict = true
		}
		if !conflict {
			return slot, nil
		}
	}
	return 0, diag.Internalf("regalloc", "no conflict-free slot for v%d", u.Value)
}

// lowestFree returns the lowest slot r such that r..r+width-1 are neither
// held by an active interval nor excluded. Slots past next are always free.
func (a *allocator) lowestFree(width int, excluded map[int]bool) int {
	for r := 0; ; r++ {
		free := true
		for k := r; k < r+width; k++ {
			if (k < a.next && a.occupied[k]) || excluded[k] {
				free = false
				break
			}
		}
		if free {
			return r
		}
	}
}

func (a *allocator) assign(it *liveness.Interval, slot int) {
	a.slots[it.Value] = slot
	for slot+it.Width > len(a.occupied) {
		a.occupied = append(a.occupied, false)
	}
	for k := slot; k < slot+it.Width; k++ {
		a.occupied[k] = true
	}
	a.next = max(a.next, slot+it.Width)
	a.active = append(a.active, it)
}

func (a *allocator) release(it *liveness.Interval) {
	slot := a.slots[it.Value]
	for k := slot; k < slot+it.Width; k++ {
		a.occupied[k] = false
	}
}

func (a *allocator) occupy(it *liveness.Interval) error {
	slot := a.slots[it.Value]
	for k := slot; k < slot+it.Width; k++ {
		if a.occupied[k] {
			return diag.Internalf("regalloc", "slot %d of v%d was taken while it was inactive", k, it.Value)
		}
	}
	for k := slot; k < slot+it.Width; k++ {
		a.occupied[k] = true
	}
	return nil
}

// intersects returns true if [s1, s1+w1) and [s2, s2+w2) share a slot.
func intersects(s1, w1, s2, w2 int) bool {
	return s1 < s2+w2 && s2 < s1+w1
}
