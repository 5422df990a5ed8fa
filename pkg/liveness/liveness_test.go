package liveness

import (
	"testing"

	"github.com/raymyers/ralph-cf/pkg/ssa"
	"github.com/raymyers/ralph-cf/pkg/ssa/ssatest"
)

func TestValueSetOperations(t *testing.T) {
	t.Run("Add and Contains", func(t *testing.T) {
		s := NewValueSet()
		s.Add(1)
		s.Add(2)

		if !s.Contains(1) || !s.Contains(2) {
			t.Error("set should contain 1 and 2")
		}
		if s.Contains(3) {
			t.Error("set should not contain 3")
		}
	})

	t.Run("Union and Minus", func(t *testing.T) {
		s1 := NewValueSet()
		s1.Add(1)
		s1.Add(2)
		s2 := NewValueSet()
		s2.Add(2)
		s2.Add(3)

		u := s1.Union(s2)
		if !u.Equal(ValueSet{1: {}, 2: {}, 3: {}}) {
			t.Errorf("union = %v", u.Slice())
		}
		d := s1.Minus(s2)
		if !d.Equal(ValueSet{1: {}}) {
			t.Errorf("difference = %v", d.Slice())
		}
	})

	t.Run("Copy", func(t *testing.T) {
		s := NewValueSet()
		s.Add(1)
		c := s.Copy()
		s.Add(3)
		if c.Contains(3) {
			t.Error("copy should not be affected by modifications to original")
		}
	})

	t.Run("Slice is sorted", func(t *testing.T) {
		s := ValueSet{5: {}, 1: {}, 3: {}}
		got := s.Slice()
		if len(got) != 3 || got[0] != 1 || got[1] != 3 || got[2] != 5 {
			t.Errorf("Slice() = %v", got)
		}
	})
}

func TestIntervalQueries(t *testing.T) {
	it := &Interval{Ranges: []Range{{2, 6}, {10, 14}}, Width: 1, Arg: -1}

	if it.Start() != 2 || it.End() != 14 {
		t.Errorf("Start/End = %d/%d, want 2/14", it.Start(), it.End())
	}
	for p, want := range map[int]bool{1: false, 2: true, 5: true, 6: false, 8: false, 10: true, 13: true, 14: false} {
		if got := it.Covers(p); got != want {
			t.Errorf("Covers(%d) = %v, want %v", p, got, want)
		}
	}

	tests := []struct {
		name   string
		ranges []Range
		want   bool
	}{
		{"inside hole", []Range{{6, 10}}, false},
		{"touching", []Range{{0, 2}, {14, 20}}, false},
		{"overlaps first", []Range{{5, 7}}, true},
		{"spans hole", []Range{{7, 11}}, true},
		{"interleaved", []Range{{0, 1}, {6, 8}, {13, 15}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &Interval{Ranges: tt.ranges, Width: 1, Arg: -1}
			if got := it.Overlaps(o); got != tt.want {
				t.Errorf("Overlaps = %v, want %v", got, tt.want)
			}
			if got := o.Overlaps(it); got != tt.want {
				t.Errorf("reverse Overlaps = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAddRangeMerges(t *testing.T) {
	it := &Interval{}
	it.addRange(20, 24)
	it.addRange(12, 14)
	it.addRange(8, 12)
	it.setFrom(9)

	want := []Range{{9, 14}, {20, 24}}
	if len(it.Ranges) != len(want) {
		t.Fatalf("ranges = %v, want %v", it.Ranges, want)
	}
	for i := range want {
		if it.Ranges[i] != want[i] {
			t.Errorf("range %d = %v, want %v", i, it.Ranges[i], want[i])
		}
	}
}

func findValue(t *testing.T, f *ssa.Func, name string) ssa.ValueID {
	t.Helper()
	for i := range f.Values {
		if f.Values[i].Name == name {
			return ssa.ValueID(i)
		}
	}
	t.Fatalf("no value named %q", name)
	return ssa.NoValue
}

func TestComputeSumLoop(t *testing.T) {
	// entry: n = arg 0; zero = const 0; goto loop        points 0..8
	// loop:  i = phi(zero, i2); s = phi(zero, s2)
	//        if i >= n goto exit else body               points 8..12
	// body:  s2 = s + i; one = const 1; i2 = i + one
	//        goto loop                                   points 12..22
	// exit:  return s                                    points 22..26
	f := ssatest.Sum()
	info, err := Compute(f, Options{RematerializeConstants: true})
	if err != nil {
		t.Fatalf("Compute() error: %v", err)
	}

	want := map[string][]Range{
		"n":  {{0, 22}},
		"i":  {{8, 18}},
		"s":  {{8, 14}, {22, 24}},
		"s2": {{14, 22}},
		"i2": {{18, 22}},
	}
	if len(info.Intervals) != len(want) {
		t.Errorf("got %d intervals, want %d", len(info.Intervals), len(want))
	}
	for name, ranges := range want {
		it := info.Interval(findValue(t, f, name))
		if it == nil {
			t.Errorf("%s has no interval", name)
			continue
		}
		if len(it.Ranges) != len(ranges) {
			t.Errorf("%s ranges = %v, want %v", name, it.Ranges, ranges)
			continue
		}
		for i := range ranges {
			if it.Ranges[i] != ranges[i] {
				t.Errorf("%s ranges = %v, want %v", name, it.Ranges, ranges)
				break
			}
		}
	}

	// Constants are rematerialized and never live.
	for _, it := range info.Intervals {
		if ssa.IsConstant(f.DefOp(it.Value)) {
			t.Errorf("constant v%d should not have an interval", it.Value)
		}
	}

	n := info.Interval(findValue(t, f, "n"))
	if n.Arg != 0 || n.Width != 1 {
		t.Errorf("n Arg/Width = %d/%d, want 0/1", n.Arg, n.Width)
	}
}

func TestComputeLiveSets(t *testing.T) {
	f := ssatest.Sum()
	info, err := Compute(f, Options{RematerializeConstants: true})
	if err != nil {
		t.Fatalf("Compute() error: %v", err)
	}

	n, i, s := findValue(t, f, "n"), findValue(t, f, "i"), findValue(t, f, "s")
	loop, body, exit := ssa.BlockID(1), ssa.BlockID(2), ssa.BlockID(3)

	// The phis are defined in loop, so only n flows in from outside.
	if got := info.LiveIn[loop]; !got.Equal(ValueSet{n: {}}) {
		t.Errorf("LiveIn(loop) = %v", got.Slice())
	}
	if got := info.LiveIn[body]; !got.Equal(ValueSet{n: {}, i: {}, s: {}}) {
		t.Errorf("LiveIn(body) = %v", got.Slice())
	}
	if got := info.LiveIn[exit]; !got.Equal(ValueSet{s: {}}) {
		t.Errorf("LiveIn(exit) = %v", got.Slice())
	}

	entry := info.LiveAtEntry(loop)
	want := []ssa.ValueID{n, i, s}
	if len(entry) != len(want) {
		t.Fatalf("LiveAtEntry(loop) = %v, want %v", entry, want)
	}
	for k := range want {
		if entry[k] != want[k] {
			t.Errorf("LiveAtEntry(loop) = %v, want %v", entry, want)
		}
	}
}

func TestComputeWithoutRematerialization(t *testing.T) {
	f := ssatest.Sum()
	info, err := Compute(f, Options{})
	if err != nil {
		t.Fatalf("Compute() error: %v", err)
	}

	// zero feeds both phis from the entry block; one feeds i2.
	zero := ssa.ValueID(1)
	it := info.Interval(zero)
	if it == nil {
		t.Fatal("zero should have an interval without rematerialization")
	}
	if it.Start() != 4 || it.End() != 8 {
		t.Errorf("zero interval = %v, want [4,8)", it.Ranges)
	}
}

func TestUnusedArgumentGetsInterval(t *testing.T) {
	f := ssatest.Args(true)
	info, err := Compute(f, Options{RematerializeConstants: true})
	if err != nil {
		t.Fatalf("Compute() error: %v", err)
	}

	if len(info.Intervals) != 3 {
		t.Fatalf("got %d intervals, want 3", len(info.Intervals))
	}
	wantSlots := []int{0, 1, 3}
	for k, it := range info.Intervals {
		if it.Arg != k {
			t.Errorf("interval %d Arg = %d", k, it.Arg)
		}
		if it.ArgSlot != wantSlots[k] {
			t.Errorf("argument %d ArgSlot = %d, want %d", k, it.ArgSlot, wantSlots[k])
		}
		// Live from method entry through the argument instruction.
		def := info.Point[f.Value(it.Value).Def]
		if len(it.Ranges) != 1 || it.Start() != 0 || it.End() != def+1 {
			t.Errorf("unused argument interval = %v, want [0,%d)", it.Ranges, def+1)
		}
	}
	if info.Intervals[1].Width != 2 {
		t.Errorf("long argument width = %d, want 2", info.Intervals[1].Width)
	}
}

func TestNumbering(t *testing.T) {
	f := ssatest.Sum()
	info, err := Compute(f, Options{})
	if err != nil {
		t.Fatalf("Compute() error: %v", err)
	}

	prev := -1
	for _, b := range info.Order {
		if info.From[b] <= prev {
			t.Errorf("block %d starts at %d, not after %d", b, info.From[b], prev)
		}
		for _, id := range f.Block(b).Insts {
			p := info.Point[id]
			if p <= info.From[b] || p >= info.To[b] {
				t.Errorf("instruction %d at %d outside block [%d,%d)", id, p, info.From[b], info.To[b])
			}
		}
		prev = info.To[b] - 1
	}
}

func TestLateArgumentLiveFromEntry(t *testing.T) {
	// entry: one = const 1; y = one + one; P.f = y; a = arg 0; return a
	// y is defined before a but a already holds its slot.
	f := ssatest.LateArg()
	info, err := Compute(f, Options{RematerializeConstants: true})
	if err != nil {
		t.Fatalf("Compute() error: %v", err)
	}

	a := info.Interval(findValue(t, f, "a"))
	y := info.Interval(findValue(t, f, "y"))
	if a == nil || y == nil {
		t.Fatal("a and y should have intervals")
	}
	if a.Start() != info.From[f.Entry] {
		t.Errorf("a starts at %d, want %d", a.Start(), info.From[f.Entry])
	}
	if !a.Overlaps(y) {
		t.Errorf("a %v and y %v should overlap", a.Ranges, y.Ranges)
	}
}

func TestMissingArgumentKeepsSlot(t *testing.T) {
	f := ssatest.SecondArg()
	info, err := Compute(f, Options{RematerializeConstants: true})
	if err != nil {
		t.Fatalf("Compute() error: %v", err)
	}
	b := info.Interval(findValue(t, f, "b"))
	if b == nil || b.Arg != 1 || b.ArgSlot != 1 {
		t.Errorf("b interval = %v, want argument 1 in slot 1", b)
	}
}
