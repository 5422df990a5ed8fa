package interp

import (
	"github.com/raymyers/ralph-cf/pkg/cf"
	"github.com/raymyers/ralph-cf/pkg/diag"
)

type frame struct {
	slots []Value
	valid []bool
	wide  []bool
	stack []Value
}

func (f *frame) check(slot, width int) error {
	if slot < 0 || slot+width > len(f.slots) {
		return diag.Internalf("interp", "slot %d out of range", slot)
	}
	return nil
}

func (f *frame) store(slot, width int, v Value) error {
	if err := f.check(slot, width); err != nil {
		return err
	}
	// Overwriting the upper half of a wide value destroys it.
	if slot > 0 && f.wide[slot-1] {
		f.valid[slot-1], f.wide[slot-1] = false, false
	}
	f.slots[slot], f.valid[slot], f.wide[slot] = v, true, width == 2
	if width == 2 {
		f.valid[slot+1], f.wide[slot+1] = false, false
	}
	return nil
}

func (f *frame) load(slot, width int) (Value, error) {
	if err := f.check(slot, width); err != nil {
		return nil, err
	}
	if !f.valid[slot] || f.wide[slot] != (width == 2) {
		return nil, diag.Internalf("interp", "load of uninitialized slot %d", slot)
	}
	return f.slots[slot], nil
}

func (f *frame) push(v Value) {
	f.stack = append(f.stack, v)
}

func (f *frame) pop(n int) ([]Value, error) {
	if n > len(f.stack) {
		return nil, diag.Internalf("interp", "operand stack underflow")
	}
	top := len(f.stack) - n
	vs := append([]Value(nil), f.stack[top:]...)
	f.stack = f.stack[:top]
	return vs, nil
}

// RunCF interprets lowered code. Arguments are placed in consecutive slots
// from 0, wide arguments taking two.
func RunCF(code *cf.Code, env *Env, args []Value) (Value, error) {
	if err := checkArgs(code.Func, args); err != nil {
		return nil, err
	}
	f := &frame{
		slots: make([]Value, code.MaxLocals),
		valid: make([]bool, code.MaxLocals),
		wide:  make([]bool, code.MaxLocals),
	}
	slots, _ := code.Func.Sig.ArgSlots()
	for i, t := range code.Func.Sig.ArgTypes() {
		if err := f.store(slots[i], t.Width(), args[i]); err != nil {
			return nil, err
		}
	}

	labels := code.Labels()
	jump := func(target int, ok bool) (int, error) {
		if !ok {
			return 0, diag.Internalf("interp", "branch to a missing label in %s", code.Name)
		}
		return target, nil
	}

	steps := 0
	for pc := 0; pc < len(code.Instrs); pc++ {
		steps++
		if steps > env.limit() {
			return nil, diag.Internalf("interp", "step limit exceeded in %s", code.Name)
		}
		switch inst := code.Instrs[pc].(type) {
		case cf.Label:
		case cf.Load:
			v, err := f.load(inst.Slot, inst.Type.Width())
			if err != nil {
				return nil, err
			}
			f.push(v)
		case cf.Store:
			vs, err := f.pop(1)
			if err != nil {
				return nil, err
			}
			if err := f.store(inst.Slot, inst.Type.Width(), vs[0]); err != nil {
				return nil, err
			}
		case cf.Pop:
			if _, err := f.pop(1); err != nil {
				return nil, err
			}
		case cf.Const:
			v, err := env.eval(inst.Op, nil)
			if err != nil {
				return nil, err
			}
			f.push(v)
		case cf.Exec:
			in, err := f.pop(len(inst.In))
			if err != nil {
				return nil, err
			}
			out, err := env.eval(inst.Op, in)
			if err != nil {
				return nil, err
			}
			if inst.Out != nil {
				f.push(out)
			}
		case cf.Goto:
			target, ok := labels[inst.Target]
			next, err := jump(target, ok)
			if err != nil {
				return nil, err
			}
			pc = next
		case cf.If:
			in, err := f.pop(len(inst.In))
			if err != nil {
				return nil, err
			}
			taken, err := cond(inst.Cond, in)
			if err != nil {
				return nil, err
			}
			if taken {
				target, ok := labels[inst.Then]
				next, err := jump(target, ok)
				if err != nil {
					return nil, err
				}
				pc = next
			}
		case cf.Return:
			if inst.In == nil {
				return nil, nil
			}
			vs, err := f.pop(1)
			if err != nil {
				return nil, err
			}
			return vs[0], nil
		case cf.Throw:
			vs, err := f.pop(1)
			if err != nil {
				return nil, err
			}
			return nil, raise(vs)
		default:
			return nil, diag.Internalf("interp", "unknown instruction %T", inst)
		}
	}
	return nil, diag.Internalf("interp", "fell off the end of %s", code.Name)
}
