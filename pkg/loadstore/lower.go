// Package loadstore lowers SSA functions to stack form.
//
// Every operand is pushed right before the instruction that uses it, either
// by loading it from its slot or by re-emitting the constant that defines
// it. Results are stored to their slot, or popped when nothing uses them.
// Phis are eliminated by parallel moves at the end of each predecessor: all
// sources are pushed first and then stored in reverse order, so the operand
// stack holds the temporaries of the parallel copy.
package loadstore

import (
	"github.com/raymyers/ralph-cf/pkg/cf"
	"github.com/raymyers/ralph-cf/pkg/diag"
	"github.com/raymyers/ralph-cf/pkg/liveness"
	"github.com/raymyers/ralph-cf/pkg/regalloc"
	"github.com/raymyers/ralph-cf/pkg/ssa"
)

// Options controls lowering.
type Options struct {
	// RematerializeConstants re-emits constants at each use. It must match
	// the liveness option the allocation was computed with.
	RematerializeConstants bool
}

type lowerer struct {
	fn    *ssa.Func
	info  *liveness.Info
	alloc *regalloc.Result
	opts  Options
	code  *cf.Code
}

// Lower produces stack-form code for fn. Blocks are emitted in the liveness
// block order; unreachable blocks are dropped. Edges into blocks with phis
// must come from a goto (see ssa.Func.SplitCriticalEdges).
func Lower(fn *ssa.Func, info *liveness.Info, alloc *regalloc.Result, opts Options) (*cf.Code, error) {
	l := &lowerer{fn: fn, info: info, alloc: alloc, opts: opts, code: cf.NewCode(fn)}
	for _, b := range info.Order {
		if err := l.lowerBlock(b); err != nil {
			return nil, diag.InFunc(err, fn.Name())
		}
	}

	stack, err := cf.ComputeStackInfo(l.code)
	if err != nil {
		return nil, diag.InFunc(err, fn.Name())
	}
	if stack.MaxLocals > alloc.SlotCount {
		return nil, diag.InFunc(diag.Internalf("loadstore",
			"code uses %d slots but only %d were allocated", stack.MaxLocals, alloc.SlotCount), fn.Name())
	}
	l.code.MaxLocals = alloc.SlotCount
	l.code.MaxStack = stack.MaxStack
	return l.code, nil
}

func (l *lowerer) lowerBlock(b ssa.BlockID) error {
	l.code.Append(cf.Label{Block: b})
	for _, id := range l.fn.Block(b).Insts {
		if err := l.lowerInst(l.fn.Inst(id)); err != nil {
			return err
		}
	}
	return nil
}

func (l *lowerer) lowerInst(inst *ssa.Inst) error {
	switch op := inst.Op.(type) {
	case ssa.Argument:
		// Arguments arrive in their slots.
		return nil

	case ssa.ConstInt, ssa.ConstLong, ssa.ConstFloat, ssa.ConstDouble,
		ssa.ConstNull, ssa.ConstString, ssa.ConstClass:
		if l.opts.RematerializeConstants {
			return nil
		}
		l.code.Append(cf.Const{Op: op, Type: l.fn.Value(inst.Out).Type})
		return l.storeResult(inst.Out)

	case ssa.Binop, ssa.Neg, ssa.Convert, ssa.Cmp,
		ssa.NewInstance, ssa.NewArray, ssa.ArrayLength, ssa.ArrayGet, ssa.ArrayPut,
		ssa.InstanceGet, ssa.InstancePut, ssa.StaticGet, ssa.StaticPut,
		ssa.CheckCast, ssa.InstanceOf, ssa.Invoke:
		in, err := l.loadOperands(inst.Args)
		if err != nil {
			return err
		}
		exec := cf.Exec{Inst: inst.ID, Op: op, In: in}
		if inst.Out != ssa.NoValue {
			exec.Out = &cf.StackValue{Height: 0, Type: l.fn.Value(inst.Out).Type}
		}
		l.code.Append(exec)
		if inst.Out == ssa.NoValue {
			return nil
		}
		return l.storeResult(inst.Out)

	case ssa.Goto:
		if err := l.insertPhiMoves(inst.Block, op.Target); err != nil {
			return err
		}
		l.code.Append(cf.Goto{Target: op.Target})
		return nil

	case ssa.If:
		for _, succ := range []ssa.BlockID{op.Then, op.Else} {
			if len(l.fn.Block(succ).Phis) > 0 {
				return diag.Internalf("loadstore", "conditional edge %s -> %s carries phis",
					ssa.BlockName(l.fn, inst.Block), ssa.BlockName(l.fn, succ))
			}
		}
		if len(inst.Args) != 1 && len(inst.Args) != 2 {
			return diag.Internalf("loadstore", "branch with %d operands", len(inst.Args))
		}
		in, err := l.loadOperands(inst.Args)
		if err != nil {
			return err
		}
		l.code.Append(cf.If{Cond: op.Cond, In: in, Then: op.Then})
		l.code.Append(cf.Goto{Target: op.Else})
		return nil

	case ssa.Return:
		if len(inst.Args) == 0 {
			l.code.Append(cf.Return{})
			return nil
		}
		in, err := l.loadOperands(inst.Args[:1])
		if err != nil {
			return err
		}
		l.code.Append(cf.Return{In: &in[0]})
		return nil

	case ssa.Throw:
		if len(inst.Args) != 1 {
			return diag.Internalf("loadstore", "throw with %d operands", len(inst.Args))
		}
		in, err := l.loadOperands(inst.Args)
		if err != nil {
			return err
		}
		l.code.Append(cf.Throw{In: in[0]})
		return nil

	default:
		return diag.Internalf("loadstore", "unknown operation %T", inst.Op)
	}
}

// loadOperands pushes vs left to right onto an empty stack and returns the
// stack values that replace them.
func (l *lowerer) loadOperands(vs []ssa.ValueID) ([]cf.StackValue, error) {
	in := make([]cf.StackValue, 0, len(vs))
	h := 0
	for _, v := range vs {
		typ := l.fn.Value(v).Type
		if err := l.load(v); err != nil {
			return nil, err
		}
		in = append(in, cf.StackValue{Height: h, Type: typ})
		h += typ.Width()
	}
	return in, nil
}

// load pushes v: from its slot, or by re-emitting its constant.
func (l *lowerer) load(v ssa.ValueID) error {
	typ := l.fn.Value(v).Type
	if slot, ok := l.alloc.Slot(v); ok {
		l.code.Append(cf.Load{Slot: slot, Type: typ, Value: v})
		return nil
	}
	if op := l.fn.DefOp(v); op != nil && ssa.IsConstant(op) {
		l.code.Append(cf.Const{Op: op, Type: typ})
		return nil
	}
	return diag.Internalf("loadstore", "operand %s has no slot", ssa.ValueName(l.fn, v))
}

// storeResult pops the freshly pushed v into its slot, or discards it.
func (l *lowerer) storeResult(v ssa.ValueID) error {
	typ := l.fn.Value(v).Type
	if slot, ok := l.alloc.Slot(v); ok {
		l.code.Append(cf.Store{Slot: slot, Type: typ, Value: v})
		return nil
	}
	if l.info.Tracked(v) {
		return diag.Internalf("loadstore", "result %s has no slot", ssa.ValueName(l.fn, v))
	}
	l.code.Append(cf.Pop{Type: typ})
	return nil
}

type move struct {
	dst, src ssa.ValueID
}

// insertPhiMoves emits the parallel copy for the edge pred -> succ.
func (l *lowerer) insertPhiMoves(pred, succ ssa.BlockID) error {
	blk := l.fn.Block(succ)
	if len(blk.Phis) == 0 {
		return nil
	}
	idx := l.fn.PredIndex(succ, pred)
	if idx < 0 {
		return diag.Internalf("loadstore", "block %s is not a predecessor of %s",
			ssa.BlockName(l.fn, pred), ssa.BlockName(l.fn, succ))
	}

	var moves []move
	for _, phi := range blk.Phis {
		dstSlot, ok := l.alloc.Slot(phi)
		if !ok {
			// Unused phi.
			continue
		}
		ops := l.fn.Value(phi).Operands
		if idx >= len(ops) {
			return diag.Internalf("loadstore", "phi %s has no operand for %s",
				ssa.ValueName(l.fn, phi), ssa.BlockName(l.fn, pred))
		}
		src := ops[idx]
		if srcSlot, ok := l.alloc.Slot(src); ok && srcSlot == dstSlot {
			continue
		}
		moves = append(moves, move{dst: phi, src: src})
	}

	for _, m := range moves {
		if err := l.load(m.src); err != nil {
			return err
		}
	}
	for i := len(moves) - 1; i >= 0; i-- {
		dst := moves[i].dst
		slot, _ := l.alloc.Slot(dst)
		l.code.Append(cf.Store{Slot: slot, Type: l.fn.Value(dst).Type, Value: dst})
	}
	return nil
}
