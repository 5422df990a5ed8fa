package ssa

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Printer outputs a Func in a readable textual form.
type Printer struct {
	w io.Writer
}

// NewPrinter creates a new SSA printer
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// PrintFunc prints a function, blocks in reverse postorder.
func (p *Printer) PrintFunc(f *Func) {
	fmt.Fprintf(p.w, "method %s(", f.Name())
	for i, t := range f.Sig.Params {
		if i > 0 {
			fmt.Fprint(p.w, ", ")
		}
		fmt.Fprint(p.w, t)
	}
	fmt.Fprintf(p.w, ") %s", f.Sig.Return)
	if f.Sig.Static {
		fmt.Fprint(p.w, " static")
	}
	fmt.Fprintln(p.w, " {")
	for _, b := range f.ReversePostorder() {
		p.printBlock(f, b)
	}
	fmt.Fprintln(p.w, "}")
}

func (p *Printer) printBlock(f *Func, b BlockID) {
	blk := f.Block(b)
	fmt.Fprintf(p.w, "%s:", BlockName(f, b))
	if len(blk.Preds) > 0 {
		names := make([]string, len(blk.Preds))
		for i, pred := range blk.Preds {
			names[i] = BlockName(f, pred)
		}
		fmt.Fprintf(p.w, " ; preds %s", strings.Join(names, ", "))
	}
	fmt.Fprintln(p.w)
	for _, phi := range blk.Phis {
		v := f.Value(phi)
		fmt.Fprintf(p.w, "  %s = phi(%s) : %s\n", ValueName(f, phi), p.valueList(f, v.Operands), v.Type)
	}
	for _, id := range blk.Insts {
		inst := f.Inst(id)
		fmt.Fprint(p.w, "  ")
		if inst.Out != NoValue {
			fmt.Fprintf(p.w, "%s = ", ValueName(f, inst.Out))
		}
		fmt.Fprint(p.w, OpString(f, inst.Op))
		if len(inst.Args) > 0 {
			fmt.Fprintf(p.w, " %s", p.valueList(f, inst.Args))
		}
		if inst.Out != NoValue {
			fmt.Fprintf(p.w, " : %s", f.Value(inst.Out).Type)
		}
		fmt.Fprintln(p.w)
	}
}

func (p *Printer) valueList(f *Func, vs []ValueID) string {
	names := make([]string, len(vs))
	for i, v := range vs {
		names[i] = ValueName(f, v)
	}
	return strings.Join(names, ", ")
}

// ValueName returns the printed name of a value: its debug name if set,
// otherwise "v<id>".
func ValueName(f *Func, v ValueID) string {
	if v == NoValue {
		return "_"
	}
	if name := f.Value(v).Name; name != "" {
		return name
	}
	return "v" + strconv.Itoa(int(v))
}

// BlockName returns the printed name of a block.
func BlockName(f *Func, b BlockID) string {
	if name := f.Block(b).Name; name != "" {
		return name
	}
	return "b" + strconv.Itoa(int(b))
}

// OpString renders an operation without its operands.
func OpString(f *Func, op Op) string {
	switch o := op.(type) {
	case Argument:
		return fmt.Sprintf("arg %d", o.Index)
	case ConstInt:
		return fmt.Sprintf("const %d", o.Value)
	case ConstLong:
		return fmt.Sprintf("const %dL", o.Value)
	case ConstFloat:
		return fmt.Sprintf("const %gf", o.Value)
	case ConstDouble:
		return fmt.Sprintf("const %gd", o.Value)
	case ConstNull:
		return "const null"
	case ConstString:
		return fmt.Sprintf("const %q", o.Value)
	case ConstClass:
		return fmt.Sprintf("const-class %s", o.Class)
	case Binop:
		return fmt.Sprintf("%s.%s", o.Op, o.Kind)
	case Neg:
		return fmt.Sprintf("neg.%s", o.Kind)
	case Convert:
		return fmt.Sprintf("%s-to-%s", o.From, o.To)
	case Cmp:
		switch o.Bias {
		case BiasLess:
			return fmt.Sprintf("cmpl.%s", o.Kind)
		case BiasGreater:
			return fmt.Sprintf("cmpg.%s", o.Kind)
		}
		return fmt.Sprintf("cmp.%s", o.Kind)
	case NewInstance:
		return "new " + o.Class
	case NewArray:
		return "new-array " + o.Elem.String()
	case ArrayLength:
		return "array-length"
	case ArrayGet:
		return "aget." + o.Elem.String()
	case ArrayPut:
		return "aput." + o.Elem.String()
	case InstanceGet:
		return "iget " + o.Field.String()
	case InstancePut:
		return "iput " + o.Field.String()
	case StaticGet:
		return "sget " + o.Field.String()
	case StaticPut:
		return "sput " + o.Field.String()
	case CheckCast:
		return "check-cast " + o.Class
	case InstanceOf:
		return "instance-of " + o.Class
	case Invoke:
		return fmt.Sprintf("invoke-%s %s", o.Kind, o.Method)
	case Goto:
		return "goto " + BlockName(f, o.Target)
	case If:
		return fmt.Sprintf("if.%s %s, %s", o.Cond, BlockName(f, o.Then), BlockName(f, o.Else))
	case Return:
		return "return"
	case Throw:
		return "throw"
	default:
		return "???"
	}
}
