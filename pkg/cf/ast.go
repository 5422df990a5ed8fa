// Package cf defines the stack-form code produced by the CF backend.
// Operands travel on an operand stack; SSA values live in numbered local
// slots between instructions. Code is a flat instruction sequence with
// labels marking branch targets, ready for a bytecode serializer.
package cf

import "github.com/raymyers/ralph-cf/pkg/ssa"

// StackValue is an operand stack entry: the number of stack words below it
// and its type. It exists only in lowered code and never has a slot.
type StackValue struct {
	Height int
	Type   ssa.Type
}

// Top returns the stack height after the value is pushed.
func (v StackValue) Top() int {
	return v.Height + v.Type.Width()
}

// Instruction is the interface for stack-form instructions
type Instruction interface {
	implCfInstruction()
}

// Label marks the start of a block
type Label struct {
	Block ssa.BlockID
}

// Load pushes the value held in a slot
type Load struct {
	Slot  int
	Type  ssa.Type
	Value ssa.ValueID
}

// Store pops the top of stack into a slot
type Store struct {
	Slot  int
	Type  ssa.Type
	Value ssa.ValueID
}

// Pop discards the top of stack (pop2 for wide types)
type Pop struct {
	Type ssa.Type
}

// Const pushes a literal. Op is one of the ssa constant operations.
type Const struct {
	Op   ssa.Op
	Type ssa.Type
}

// Exec performs a non-branching SSA operation on stack operands. In holds
// the operands in push order; Out is nil when nothing is pushed.
type Exec struct {
	Inst ssa.InstID
	Op   ssa.Op
	In   []StackValue
	Out  *StackValue
}

// Goto is an unconditional jump
type Goto struct {
	Target ssa.BlockID
}

// If pops one operand (compared against zero or null) or two and jumps to
// Then when the condition holds; otherwise it falls through.
type If struct {
	Cond ssa.Cond
	In   []StackValue
	Then ssa.BlockID
}

// Return returns from the method, popping the result if In is set
type Return struct {
	In *StackValue
}

// Throw pops an exception and throws it
type Throw struct {
	In StackValue
}

// Marker methods for Instruction interface
func (Label) implCfInstruction()  {}
func (Load) implCfInstruction()   {}
func (Store) implCfInstruction()  {}
func (Pop) implCfInstruction()    {}
func (Const) implCfInstruction()  {}
func (Exec) implCfInstruction()   {}
func (Goto) implCfInstruction()   {}
func (If) implCfInstruction()     {}
func (Return) implCfInstruction() {}
func (Throw) implCfInstruction()  {}

// Local is one entry of a frame: a slot and its verification type.
type Local struct {
	Slot int
	Type string
}

// Frame is the verifier state at a branch target. The operand stack is
// always empty at block boundaries, so only locals are recorded.
type Frame struct {
	Block  ssa.BlockID
	Locals []Local
}

// Code is the lowered body of one method. Func is the SSA function it was
// lowered from, after critical edge splitting.
type Code struct {
	Name      string
	Func      *ssa.Func
	MaxLocals int
	MaxStack  int
	Instrs    []Instruction
	Frames    []Frame // ordered by position of the target label
}

// NewCode creates an empty method body for fn
func NewCode(fn *ssa.Func) *Code {
	return &Code{
		Name:   fn.Name(),
		Func:   fn,
		Instrs: make([]Instruction, 0),
	}
}

// Append adds an instruction to the code
func (c *Code) Append(inst Instruction) {
	c.Instrs = append(c.Instrs, inst)
}

// Labels returns the position of every label in the code.
func (c *Code) Labels() map[ssa.BlockID]int {
	labels := make(map[ssa.BlockID]int)
	for i, inst := range c.Instrs {
		if lbl, ok := inst.(Label); ok {
			labels[lbl.Block] = i
		}
	}
	return labels
}

// Targets returns the set of blocks that some branch jumps to.
func (c *Code) Targets() map[ssa.BlockID]bool {
	used := make(map[ssa.BlockID]bool)
	for _, inst := range c.Instrs {
		switch i := inst.(type) {
		case Goto:
			used[i.Target] = true
		case If:
			used[i.Then] = true
		}
	}
	return used
}

// EndsBlock returns true for instructions after which control never
// falls through.
func EndsBlock(inst Instruction) bool {
	switch inst.(type) {
	case Goto, Return, Throw:
		return true
	default:
		return false
	}
}
