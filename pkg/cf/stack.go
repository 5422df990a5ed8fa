// Operand stack and local slot accounting for stack-form code.
package cf

import (
	"github.com/raymyers/ralph-cf/pkg/diag"
)

// StackInfo holds the frame requirements of a method body
type StackInfo struct {
	MaxLocals int // 1 + highest slot word touched by a load or store
	MaxStack  int // deepest operand stack, in words
}

// ComputeStackInfo simulates the operand stack over c and returns its
// requirements. The stack must be empty at every label and after every
// control transfer, and each Exec operand must sit at the height recorded
// for it during lowering.
func ComputeStackInfo(c *Code) (*StackInfo, error) {
	info := &StackInfo{}
	h := 0
	push := func(width int) {
		h += width
		info.MaxStack = max(info.MaxStack, h)
	}
	pop := func(width int) error {
		if h < width {
			return diag.Internalf("cf", "stack underflow in %s", c.Name)
		}
		h -= width
		return nil
	}
	// popAll checks that in is exactly the top of stack and removes it.
	popAll := func(in []StackValue) error {
		total := 0
		for _, v := range in {
			total += v.Type.Width()
		}
		if err := pop(total); err != nil {
			return err
		}
		at := h
		for _, v := range in {
			if v.Height != at {
				return diag.Internalf("cf", "operand at height %d, expected %d in %s", v.Height, at, c.Name)
			}
			at = v.Top()
		}
		return nil
	}
	empty := func(where string) error {
		if h != 0 {
			return diag.Internalf("cf", "%d words left on the stack at %s in %s", h, where, c.Name)
		}
		return nil
	}

	for _, inst := range c.Instrs {
		var err error
		switch i := inst.(type) {
		case Label:
			err = empty("label")
		case Load:
			info.MaxLocals = max(info.MaxLocals, i.Slot+i.Type.Width())
			push(i.Type.Width())
		case Store:
			info.MaxLocals = max(info.MaxLocals, i.Slot+i.Type.Width())
			err = pop(i.Type.Width())
		case Pop:
			err = pop(i.Type.Width())
		case Const:
			push(i.Type.Width())
		case Exec:
			if err = popAll(i.In); err == nil && i.Out != nil {
				if i.Out.Height != h {
					err = diag.Internalf("cf", "result at height %d, expected %d in %s", i.Out.Height, h, c.Name)
				}
				push(i.Out.Type.Width())
			}
		case Goto:
			err = empty("goto")
		case If:
			if err = popAll(i.In); err == nil {
				err = empty("branch")
			}
		case Return:
			if i.In != nil {
				err = popAll([]StackValue{*i.In})
			}
			if err == nil {
				err = empty("return")
			}
		case Throw:
			if err = popAll([]StackValue{i.In}); err == nil {
				err = empty("throw")
			}
		default:
			err = diag.Internalf("cf", "unknown instruction %T in %s", inst, c.Name)
		}
		if err != nil {
			return nil, err
		}
	}
	return info, nil
}
