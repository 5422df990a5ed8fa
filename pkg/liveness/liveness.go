// Package liveness computes the block order, program point numbering, live
// sets and live intervals consumed by the slot allocator.
//
// Blocks are laid out in reverse postorder. Each block takes a "from" point
// at which its phis are defined; its k-th instruction sits at from+2(k+1);
// its "to" point is the last instruction point plus 2. A use at point q keeps
// the operand live up to q (exclusive) and a definition starts at its own
// point, so an instruction's result may reuse the slot of an operand that
// dies at that instruction.
package liveness

import (
	"github.com/raymyers/ralph-cf/pkg/diag"
	"github.com/raymyers/ralph-cf/pkg/ssa"
)

// Options controls which values need a slot.
type Options struct {
	// RematerializeConstants excludes constant-producing instructions:
	// their uses re-emit the constant instead of loading it.
	RematerializeConstants bool
}

// Info is the liveness of one function.
type Info struct {
	Order     []ssa.BlockID
	From      []int // block -> first point, -1 when unreachable
	To        []int // block -> point after the last instruction
	Point     []int // instruction -> program point, -1 when unreachable
	LiveIn    []ValueSet
	LiveOut   []ValueSet
	Intervals []*Interval // ordered by value id

	fn      *ssa.Func
	tracked []bool
	byValue map[ssa.ValueID]*Interval
}

// NeedsSlot decides whether v is allocated a slot: arguments always are;
// other values when they are used, unless they are rematerialized constants.
func NeedsSlot(f *ssa.Func, v ssa.ValueID, opts Options) bool {
	val := f.Value(v)
	if val.Type.Kind == ssa.KindVoid {
		return false
	}
	if op := f.DefOp(v); op != nil {
		if _, ok := op.(ssa.Argument); ok {
			return true
		}
		if opts.RematerializeConstants && ssa.IsConstant(op) {
			return false
		}
	}
	return val.HasUsers()
}

// Compute computes liveness for f.
func Compute(f *ssa.Func, opts Options) (*Info, error) {
	info := &Info{
		Order:   f.ReversePostorder(),
		From:    make([]int, len(f.Blocks)),
		To:      make([]int, len(f.Blocks)),
		Point:   make([]int, len(f.Insts)),
		LiveIn:  make([]ValueSet, len(f.Blocks)),
		LiveOut: make([]ValueSet, len(f.Blocks)),
		fn:      f,
		tracked: make([]bool, len(f.Values)),
		byValue: make(map[ssa.ValueID]*Interval),
	}
	for i := range info.tracked {
		info.tracked[i] = NeedsSlot(f, ssa.ValueID(i), opts)
	}
	info.number()
	if err := info.computeLiveSets(); err != nil {
		return nil, err
	}
	info.buildIntervals()
	return info, nil
}

func (info *Info) number() {
	for i := range info.From {
		info.From[i] = -1
		info.To[i] = -1
	}
	for i := range info.Point {
		info.Point[i] = -1
	}
	p := 0
	for _, b := range info.Order {
		info.From[b] = p
		p += 2
		for _, id := range info.fn.Block(b).Insts {
			info.Point[id] = p
			p += 2
		}
		info.To[b] = p
	}
}

// phiInputs returns the operands that the phis of succ take along the edge
// from pred.
func (info *Info) phiInputs(pred, succ ssa.BlockID) ([]ssa.ValueID, error) {
	f := info.fn
	blk := f.Block(succ)
	if len(blk.Phis) == 0 {
		return nil, nil
	}
	idx := f.PredIndex(succ, pred)
	if idx < 0 {
		return nil, diag.Internalf("liveness", "block %s is not a predecessor of %s",
			ssa.BlockName(f, pred), ssa.BlockName(f, succ))
	}
	var inputs []ssa.ValueID
	for _, phi := range blk.Phis {
		ops := f.Value(phi).Operands
		if idx >= len(ops) {
			return nil, diag.Internalf("liveness", "phi %s has no operand for predecessor %s",
				ssa.ValueName(f, phi), ssa.BlockName(f, pred))
		}
		inputs = append(inputs, ops[idx])
	}
	return inputs, nil
}

func (info *Info) computeLiveSets() error {
	f := info.fn
	uses := make([]ValueSet, len(f.Blocks))
	defs := make([]ValueSet, len(f.Blocks))
	for _, b := range info.Order {
		use, def := NewValueSet(), NewValueSet()
		blk := f.Block(b)
		for _, phi := range blk.Phis {
			def.Add(phi)
		}
		for _, id := range blk.Insts {
			inst := f.Inst(id)
			for _, a := range inst.Args {
				if info.tracked[a] && !def.Contains(a) {
					use.Add(a)
				}
			}
			if inst.Out != ssa.NoValue {
				def.Add(inst.Out)
			}
		}
		uses[b], defs[b] = use, def
		info.LiveIn[b] = NewValueSet()
		info.LiveOut[b] = NewValueSet()
	}

	for changed := true; changed; {
		changed = false
		for i := len(info.Order) - 1; i >= 0; i-- {
			b := info.Order[i]
			out := NewValueSet()
			for _, s := range f.Succs(b) {
				for v := range info.LiveIn[s] {
					out.Add(v)
				}
				inputs, err := info.phiInputs(b, s)
				if err != nil {
					return err
				}
				for _, v := range inputs {
					if info.tracked[v] {
						out.Add(v)
					}
				}
			}
			in := uses[b].Union(out.Minus(defs[b]))
			if !in.Equal(info.LiveIn[b]) || !out.Equal(info.LiveOut[b]) {
				info.LiveIn[b], info.LiveOut[b] = in, out
				changed = true
			}
		}
	}
	return nil
}

func (info *Info) interval(v ssa.ValueID) *Interval {
	if it, ok := info.byValue[v]; ok {
		return it
	}
	it := &Interval{
		Value: v,
		Width: info.fn.Value(v).Type.Width(),
		Arg:   info.fn.ArgIndex(v),
	}
	if it.Arg >= 0 {
		slots, _ := info.fn.Sig.ArgSlots()
		if it.Arg < len(slots) {
			it.ArgSlot = slots[it.Arg]
		}
	}
	info.byValue[v] = it
	return it
}

func (info *Info) buildIntervals() {
	f := info.fn
	for i := len(info.Order) - 1; i >= 0; i-- {
		b := info.Order[i]
		from, to := info.From[b], info.To[b]
		live := info.LiveOut[b].Copy()
		for _, v := range live.Slice() {
			info.interval(v).addRange(from, to)
		}

		blk := f.Block(b)
		for k := len(blk.Insts) - 1; k >= 0; k-- {
			inst := f.Inst(blk.Insts[k])
			p := info.Point[inst.ID]
			if out := inst.Out; out != ssa.NoValue && info.tracked[out] {
				it := info.interval(out)
				def := p
				if it.IsArgument() {
					// The caller has filled the slot before the first instruction.
					def = info.From[f.Entry]
				}
				if live.Contains(out) {
					it.setFrom(def)
				} else {
					it.addRange(def, p+1)
				}
				live.Remove(out)
			}
			for _, a := range inst.Args {
				if !info.tracked[a] {
					continue
				}
				info.interval(a).addRange(from, p)
				live.Add(a)
			}
		}

		for _, phi := range blk.Phis {
			if !info.tracked[phi] {
				continue
			}
			it := info.interval(phi)
			if live.Contains(phi) {
				it.setFrom(from)
			} else {
				it.addRange(from, from+1)
			}
			live.Remove(phi)
		}
	}

	for v := range f.Values {
		if it, ok := info.byValue[ssa.ValueID(v)]; ok {
			info.Intervals = append(info.Intervals, it)
		}
	}
}

// Interval returns the interval of v, or nil if v needs no slot.
func (info *Info) Interval(v ssa.ValueID) *Interval {
	return info.byValue[v]
}

// LiveAtEntry returns the slotted values live on entry to b, including its
// phis, in ascending value order.
func (info *Info) LiveAtEntry(b ssa.BlockID) []ssa.ValueID {
	if info.LiveIn[b] == nil {
		return nil
	}
	set := info.LiveIn[b].Copy()
	for _, phi := range info.fn.Block(b).Phis {
		if info.tracked[phi] {
			set.Add(phi)
		}
	}
	return set.Slice()
}

// Tracked returns true if v was given an interval.
func (info *Info) Tracked(v ssa.ValueID) bool {
	return info.tracked[v]
}
