package interp

import (
	"github.com/raymyers/ralph-cf/pkg/diag"
	"github.com/raymyers/ralph-cf/pkg/ssa"
)

func checkArgs(fn *ssa.Func, args []Value) error {
	if want := len(fn.Sig.ArgTypes()); len(args) != want {
		return diag.Internalf("interp", "%s takes %d arguments, got %d", fn.Name(), want, len(args))
	}
	return nil
}

// RunSSA interprets fn on args, ordered as the method's arguments with the
// receiver first. Thrown exceptions are returned as *Exception errors.
func RunSSA(fn *ssa.Func, env *Env, args []Value) (Value, error) {
	if err := checkArgs(fn, args); err != nil {
		return nil, err
	}
	vals := make([]Value, len(fn.Values))
	defined := make([]bool, len(fn.Values))
	get := func(v ssa.ValueID) (Value, error) {
		if v < 0 || int(v) >= len(vals) || !defined[v] {
			return nil, diag.Internalf("interp", "%s used before definition", ssa.ValueName(fn, v))
		}
		return vals[v], nil
	}

	steps := 0
	block, prev := fn.Entry, ssa.NoBlock
	edge := 0
	for {
		blk := fn.Block(block)
		if prev != ssa.NoBlock && len(blk.Phis) > 0 {
			k := predSlot(fn, prev, edge)
			if k < 0 {
				return nil, diag.Internalf("interp", "%s is not a predecessor of %s",
					ssa.BlockName(fn, prev), ssa.BlockName(fn, block))
			}
			// Phis read their operands before any of them is written.
			incoming := make([]Value, len(blk.Phis))
			for i, phi := range blk.Phis {
				v, err := get(fn.Value(phi).Operands[k])
				if err != nil {
					return nil, err
				}
				incoming[i] = v
			}
			for i, phi := range blk.Phis {
				vals[phi], defined[phi] = incoming[i], true
			}
		}

		next, nextEdge := ssa.NoBlock, 0
		for _, id := range blk.Insts {
			steps++
			if steps > env.limit() {
				return nil, diag.Internalf("interp", "step limit exceeded in %s", fn.Name())
			}
			inst := fn.Inst(id)
			in := make([]Value, len(inst.Args))
			for i, a := range inst.Args {
				v, err := get(a)
				if err != nil {
					return nil, err
				}
				in[i] = v
			}

			switch op := inst.Op.(type) {
			case ssa.Argument:
				if op.Index < 0 || op.Index >= len(args) {
					return nil, diag.Internalf("interp", "argument %d out of range", op.Index)
				}
				vals[inst.Out], defined[inst.Out] = args[op.Index], true
			case ssa.Goto:
				next = op.Target
			case ssa.If:
				taken, err := cond(op.Cond, in)
				if err != nil {
					return nil, err
				}
				next, nextEdge = op.Else, 1
				if taken {
					next, nextEdge = op.Then, 0
				}
			case ssa.Return:
				if len(in) == 0 {
					return nil, nil
				}
				return in[0], nil
			case ssa.Throw:
				return nil, raise(in)
			default:
				out, err := env.eval(op, in)
				if err != nil {
					return nil, err
				}
				if inst.Out != ssa.NoValue {
					vals[inst.Out], defined[inst.Out] = out, true
				}
			}
		}
		if next == ssa.NoBlock {
			return nil, diag.Internalf("interp", "%s has no terminator", ssa.BlockName(fn, block))
		}
		prev, block, edge = block, next, nextEdge
	}
}

// predSlot returns the phi operand index for the edge leaving from through
// its successor number edge. Both arms of a branch may target the same
// block, so the pred list can hold from twice.
func predSlot(fn *ssa.Func, from ssa.BlockID, edge int) int {
	succs := fn.Succs(from)
	if edge >= len(succs) {
		return -1
	}
	to := succs[edge]
	nth := 0
	for _, s := range succs[:edge] {
		if s == to {
			nth++
		}
	}
	for i, p := range fn.Block(to).Preds {
		if p != from {
			continue
		}
		if nth == 0 {
			return i
		}
		nth--
	}
	return -1
}

// raise turns the operand of a throw into the escaping exception.
func raise(in []Value) error {
	if len(in) == 0 || in[0] == nil {
		return throw("java/lang/NullPointerException")
	}
	return &Exception{Class: classOf(in[0]), Value: in[0]}
}
