// Package ssa defines the register-based SSA intermediate representation
// consumed by the CF backend. Values, instructions and blocks are stored in
// arenas owned by a Func and refer to each other through integer handles, so
// use lists, phi operands and predecessor links may form cycles freely.
package ssa

// ValueID identifies a value within its Func. IDs follow creation order.
type ValueID int32

// InstID identifies an instruction within its Func.
type InstID int32

// BlockID identifies a basic block within its Func.
type BlockID int32

const (
	NoValue ValueID = -1
	NoInst  InstID  = -1
	NoBlock BlockID = -1
)

// Value is an SSA definition: the result of an instruction, or a phi.
type Value struct {
	ID    ValueID
	Type  Type
	Block BlockID
	Def   InstID // NoInst for phis
	Name  string // optional, for printing

	// Operands holds one value per predecessor of Block, in predecessor
	// order. Only phis have operands.
	Operands []ValueID

	Users    []InstID  // instructions using this value (with repetition)
	PhiUsers []ValueID // phis using this value (with repetition)
}

// IsPhi returns true if the value is defined by a phi.
func (v *Value) IsPhi() bool {
	return v.Def == NoInst
}

// HasUsers returns true if any instruction or phi uses the value.
func (v *Value) HasUsers() bool {
	return len(v.Users) > 0 || len(v.PhiUsers) > 0
}

// Inst is an instruction. Out is NoValue if the operation has no result.
type Inst struct {
	ID    InstID
	Block BlockID
	Op    Op
	Args  []ValueID
	Out   ValueID
}

// Block is a basic block: phis, then instructions ending in a terminator.
type Block struct {
	ID    BlockID
	Name  string
	Phis  []ValueID
	Insts []InstID
	Preds []BlockID
}

// Func is an SSA method body together with its signature.
type Func struct {
	Sig    Signature
	Values []Value
	Insts  []Inst
	Blocks []Block
	Entry  BlockID
}

// NewFunc creates an empty function. The first block created becomes the entry.
func NewFunc(sig Signature) *Func {
	return &Func{Sig: sig, Entry: NoBlock}
}

// Name returns the qualified method name.
func (f *Func) Name() string {
	return f.Sig.FullName()
}

// Value returns the value with the given id.
func (f *Func) Value(id ValueID) *Value {
	return &f.Values[id]
}

// Inst returns the instruction with the given id.
func (f *Func) Inst(id InstID) *Inst {
	return &f.Insts[id]
}

// Block returns the block with the given id.
func (f *Func) Block(id BlockID) *Block {
	return &f.Blocks[id]
}

// NewBlock appends an empty block.
func (f *Func) NewBlock(name string) BlockID {
	id := BlockID(len(f.Blocks))
	f.Blocks = append(f.Blocks, Block{ID: id, Name: name})
	if f.Entry == NoBlock {
		f.Entry = id
	}
	return id
}

func (f *Func) newValue(typ Type, block BlockID, def InstID) ValueID {
	id := ValueID(len(f.Values))
	f.Values = append(f.Values, Value{ID: id, Type: typ, Block: block, Def: def})
	return id
}

// Emit appends an instruction to block b and returns its result, or NoValue
// when typ is Void. Emitting a terminator records b as a predecessor of each
// successor, so phi operands must be given in the order edges are emitted.
func (f *Func) Emit(b BlockID, op Op, typ Type, args ...ValueID) ValueID {
	id := InstID(len(f.Insts))
	out := NoValue
	if typ.Kind != KindVoid {
		out = f.newValue(typ, b, id)
	}
	f.Insts = append(f.Insts, Inst{ID: id, Block: b, Op: op, Args: args, Out: out})
	blk := f.Block(b)
	blk.Insts = append(blk.Insts, id)
	for _, a := range args {
		f.Values[a].Users = append(f.Values[a].Users, id)
	}
	for _, succ := range Successors(op) {
		s := f.Block(succ)
		s.Preds = append(s.Preds, b)
	}
	return out
}

// AddPhi creates a phi in block b. Its operands are set with SetPhiOperands
// once all predecessors are known.
func (f *Func) AddPhi(b BlockID, typ Type) ValueID {
	v := f.newValue(typ, b, NoInst)
	blk := f.Block(b)
	blk.Phis = append(blk.Phis, v)
	return v
}

// SetPhiOperands sets the operands of a phi, one per predecessor.
func (f *Func) SetPhiOperands(phi ValueID, operands ...ValueID) {
	p := f.Value(phi)
	for _, old := range p.Operands {
		f.removePhiUser(old, phi)
	}
	p.Operands = append([]ValueID(nil), operands...)
	for _, op := range operands {
		f.Values[op].PhiUsers = append(f.Values[op].PhiUsers, phi)
	}
}

func (f *Func) removePhiUser(v, phi ValueID) {
	users := f.Values[v].PhiUsers
	for i, u := range users {
		if u == phi {
			f.Values[v].PhiUsers = append(users[:i], users[i+1:]...)
			return
		}
	}
}

// Named sets a debug name on a value and returns it, for fluent construction.
func (f *Func) Named(v ValueID, name string) ValueID {
	f.Values[v].Name = name
	return v
}

// Terminator returns the last instruction of b, or nil if b is empty.
func (f *Func) Terminator(b BlockID) *Inst {
	blk := f.Block(b)
	if len(blk.Insts) == 0 {
		return nil
	}
	return f.Inst(blk.Insts[len(blk.Insts)-1])
}

// Succs returns the successors of b in edge order.
func (f *Func) Succs(b BlockID) []BlockID {
	term := f.Terminator(b)
	if term == nil {
		return nil
	}
	return Successors(term.Op)
}

// Args returns the argument values ordered by argument index.
func (f *Func) Args() []ValueID {
	var args []ValueID
	for _, inst := range f.Insts {
		a, ok := inst.Op.(Argument)
		if !ok || inst.Out == NoValue {
			continue
		}
		for len(args) <= a.Index {
			args = append(args, NoValue)
		}
		args[a.Index] = inst.Out
	}
	return args
}

// ArgIndex returns the argument index of v, or -1 if v is not an argument.
func (f *Func) ArgIndex(v ValueID) int {
	val := f.Value(v)
	if val.IsPhi() {
		return -1
	}
	if a, ok := f.Inst(val.Def).Op.(Argument); ok {
		return a.Index
	}
	return -1
}

// DefOp returns the operation defining v, or nil for phis.
func (f *Func) DefOp(v ValueID) Op {
	val := f.Value(v)
	if val.IsPhi() {
		return nil
	}
	return f.Inst(val.Def).Op
}

// PredIndex returns the position of pred in b's predecessor list, or -1.
func (f *Func) PredIndex(b, pred BlockID) int {
	for i, p := range f.Block(b).Preds {
		if p == pred {
			return i
		}
	}
	return -1
}
