package cf

import (
	"fmt"
	"io"
	"strings"

	"github.com/raymyers/ralph-cf/pkg/ssa"
)

// Printer outputs stack-form code in a readable format
type Printer struct {
	w io.Writer
}

// NewPrinter creates a new stack-form printer
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// PrintCode prints a lowered method
func (p *Printer) PrintCode(c *Code) {
	fmt.Fprintf(p.w, "%s {\n", c.Name)
	fmt.Fprintf(p.w, "  ; locals = %d, stack = %d\n", c.MaxLocals, c.MaxStack)

	frames := make(map[ssa.BlockID]Frame, len(c.Frames))
	for _, fr := range c.Frames {
		frames[fr.Block] = fr
	}

	for _, inst := range c.Instrs {
		p.printInstruction(c.Func, inst)
		if lbl, ok := inst.(Label); ok {
			if fr, ok := frames[lbl.Block]; ok {
				p.printFrame(fr)
			}
		}
	}
	fmt.Fprintln(p.w, "}")
}

func (p *Printer) printFrame(fr Frame) {
	parts := make([]string, len(fr.Locals))
	for i, l := range fr.Locals {
		parts[i] = fmt.Sprintf("%d:%s", l.Slot, l.Type)
	}
	fmt.Fprintf(p.w, "  ; frame [%s]\n", strings.Join(parts, ", "))
}

func (p *Printer) printInstruction(f *ssa.Func, inst Instruction) {
	switch i := inst.(type) {
	case Label:
		// Labels are printed without indentation
		fmt.Fprintf(p.w, "%s:\n", blockName(f, i.Block))
	case Load:
		fmt.Fprintf(p.w, "  load.%s %d\n", typeSuffix(i.Type), i.Slot)
	case Store:
		fmt.Fprintf(p.w, "  store.%s %d\n", typeSuffix(i.Type), i.Slot)
	case Pop:
		if i.Type.IsWide() {
			fmt.Fprintln(p.w, "  pop2")
		} else {
			fmt.Fprintln(p.w, "  pop")
		}
	case Const:
		fmt.Fprintf(p.w, "  %s\n", opString(f, i.Op))
	case Exec:
		fmt.Fprintf(p.w, "  %s", opString(f, i.Op))
		if i.Out != nil {
			fmt.Fprintf(p.w, " -> %s", stackValueString(*i.Out))
		}
		fmt.Fprintln(p.w)
	case Goto:
		fmt.Fprintf(p.w, "  goto %s\n", blockName(f, i.Target))
	case If:
		form := "if"
		if len(i.In) == 1 {
			form = "ifz"
		}
		fmt.Fprintf(p.w, "  %s.%s %s\n", form, i.Cond, blockName(f, i.Then))
	case Return:
		if i.In != nil {
			fmt.Fprintf(p.w, "  return.%s\n", typeSuffix(i.In.Type))
		} else {
			fmt.Fprintln(p.w, "  return")
		}
	case Throw:
		fmt.Fprintln(p.w, "  throw")
	default:
		fmt.Fprintf(p.w, "  ??? (%T)\n", inst)
	}
}

func stackValueString(v StackValue) string {
	return fmt.Sprintf("s%d:%s", v.Height, typeSuffix(v.Type))
}

// typeSuffix is the one-letter kind used in load/store/return mnemonics.
func typeSuffix(t ssa.Type) string {
	switch t.Kind {
	case ssa.KindInt:
		return "i"
	case ssa.KindLong:
		return "l"
	case ssa.KindFloat:
		return "f"
	case ssa.KindDouble:
		return "d"
	case ssa.KindRef:
		return "a"
	default:
		return "v"
	}
}

func blockName(f *ssa.Func, b ssa.BlockID) string {
	if f == nil {
		return fmt.Sprintf("b%d", b)
	}
	return ssa.BlockName(f, b)
}

func opString(f *ssa.Func, op ssa.Op) string {
	if f == nil {
		return fmt.Sprintf("%T", op)
	}
	return ssa.OpString(f, op)
}
