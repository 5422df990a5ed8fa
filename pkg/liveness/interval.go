package liveness

import (
	"fmt"
	"strings"

	"github.com/raymyers/ralph-cf/pkg/ssa"
)

// Range is a half-open span [From, To) of program points.
type Range struct {
	From, To int
}

// Interval is the live interval of one value: sorted, disjoint ranges.
// A gap between two ranges is a lifetime hole.
type Interval struct {
	Value  ssa.ValueID
	Ranges []Range
	Width  int // slots needed: 1, or 2 for long and double
	Arg    int // argument index, -1 for other values
	// ArgSlot is the slot the calling convention gives an argument.
	ArgSlot int
}

// Start returns the first point covered by the interval.
func (i *Interval) Start() int {
	return i.Ranges[0].From
}

// End returns the point just after the last point covered.
func (i *Interval) End() int {
	return i.Ranges[len(i.Ranges)-1].To
}

// IsArgument returns true for method argument intervals.
func (i *Interval) IsArgument() bool {
	return i.Arg >= 0
}

// Covers returns true if point p lies in one of the ranges.
func (i *Interval) Covers(p int) bool {
	for _, r := range i.Ranges {
		if p < r.From {
			return false
		}
		if p < r.To {
			return true
		}
	}
	return false
}

// Overlaps returns true if the two intervals share a program point.
func (i *Interval) Overlaps(o *Interval) bool {
	a, b := 0, 0
	for a < len(i.Ranges) && b < len(o.Ranges) {
		ra, rb := i.Ranges[a], o.Ranges[b]
		if ra.From < rb.To && rb.From < ra.To {
			return true
		}
		if ra.To <= rb.To {
			a++
		} else {
			b++
		}
	}
	return false
}

// addRange adds [from, to). Ranges are built walking the code backwards, so
// from never exceeds the start of the current first range.
func (i *Interval) addRange(from, to int) {
	if len(i.Ranges) > 0 && to >= i.Ranges[0].From {
		first := &i.Ranges[0]
		first.From = min(first.From, from)
		first.To = max(first.To, to)
		return
	}
	i.Ranges = append([]Range{{From: from, To: to}}, i.Ranges...)
}

// setFrom moves the start of the first range to the definition point.
func (i *Interval) setFrom(from int) {
	if len(i.Ranges) == 0 {
		i.Ranges = []Range{{From: from, To: from + 1}}
		return
	}
	i.Ranges[0].From = from
}

func (i *Interval) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "v%d", i.Value)
	if i.Width == 2 {
		sb.WriteString(" wide")
	}
	if i.Arg >= 0 {
		fmt.Fprintf(&sb, " arg%d", i.Arg)
	}
	for _, r := range i.Ranges {
		fmt.Fprintf(&sb, " [%d,%d)", r.From, r.To)
	}
	return sb.String()
}
