package ssa

// Op is the operation performed by an instruction. The set of operations is
// closed: passes switch over the concrete types below and treat anything else
// as malformed IR.
type Op interface {
	implOp()
}

// Argument defines the value of a method argument (the receiver is index 0
// for instance methods).
type Argument struct{ Index int }

// Constants. They have no operands and an invariant out type.
type ConstInt struct{ Value int32 }
type ConstLong struct{ Value int64 }
type ConstFloat struct{ Value float32 }
type ConstDouble struct{ Value float64 }
type ConstNull struct{}
type ConstString struct{ Value string }
type ConstClass struct{ Class string }

// ArithOp selects the operation of a Binop.
type ArithOp uint8

const (
	Add ArithOp = iota
	Sub
	Mul
	Div
	Rem
	And
	Or
	Xor
	Shl
	Shr
	Ushr
)

var arithNames = [...]string{"add", "sub", "mul", "div", "rem", "and", "or", "xor", "shl", "shr", "ushr"}

func (o ArithOp) String() string {
	if int(o) < len(arithNames) {
		return arithNames[o]
	}
	return "arith?"
}

// Cond is a branch condition.
type Cond uint8

const (
	Eq Cond = iota
	Ne
	Lt
	Ge
	Gt
	Le
)

var condNames = [...]string{"eq", "ne", "lt", "ge", "gt", "le"}

func (c Cond) String() string {
	if int(c) < len(condNames) {
		return condNames[c]
	}
	return "cond?"
}

// CmpBias selects the result of a floating point comparison involving NaN.
type CmpBias uint8

const (
	BiasNone CmpBias = iota // long compare
	BiasLess                // NaN compares as -1 (fcmpl/dcmpl)
	BiasGreater             // NaN compares as 1 (fcmpg/dcmpg)
)

// InvokeKind is the dispatch kind of an Invoke.
type InvokeKind uint8

const (
	InvokeStatic InvokeKind = iota
	InvokeVirtual
	InvokeSpecial
	InvokeInterface
)

var invokeNames = [...]string{"static", "virtual", "special", "interface"}

func (k InvokeKind) String() string {
	if int(k) < len(invokeNames) {
		return invokeNames[k]
	}
	return "invoke?"
}

// Binop computes a op b on two values of the given kind. Shift distances
// are always int.
type Binop struct {
	Op   ArithOp
	Kind Kind
}

// Cmp compares two long, float or double values and yields -1, 0 or 1.
type Cmp struct {
	Kind Kind
	Bias CmpBias
}

type Neg struct{ Kind Kind }         // out = -a
type Convert struct{ From, To Kind } // out = (To) a

// Objects and arrays
type NewInstance struct{ Class string }
type NewArray struct{ Elem Type }         // args: size
type ArrayLength struct{}                 // args: array
type ArrayGet struct{ Elem Type }         // args: array, index
type ArrayPut struct{ Elem Type }         // args: array, index, value
type InstanceGet struct{ Field FieldRef } // args: object
type InstancePut struct{ Field FieldRef } // args: object, value
type StaticGet struct{ Field FieldRef }
type StaticPut struct{ Field FieldRef } // args: value
type CheckCast struct{ Class string }   // args: object
type InstanceOf struct{ Class string }  // args: object

// Invoke calls a method; args are the receiver (if any) and the arguments.
type Invoke struct {
	Kind   InvokeKind
	Method MethodRef
}

// Control flow. Every block ends in exactly one of these.
type Goto struct{ Target BlockID }

// If compares its single operand against zero (or null), or its two
// operands against each other.
type If struct {
	Cond       Cond
	Then, Else BlockID
}
type Return struct{} // args: the returned value, if any
type Throw struct{}  // args: the exception

func (Argument) implOp()    {}
func (ConstInt) implOp()    {}
func (ConstLong) implOp()   {}
func (ConstFloat) implOp()  {}
func (ConstDouble) implOp() {}
func (ConstNull) implOp()   {}
func (ConstString) implOp() {}
func (ConstClass) implOp()  {}
func (Binop) implOp()       {}
func (Neg) implOp()         {}
func (Convert) implOp()     {}
func (Cmp) implOp()         {}
func (NewInstance) implOp() {}
func (NewArray) implOp()    {}
func (ArrayLength) implOp() {}
func (ArrayGet) implOp()    {}
func (ArrayPut) implOp()    {}
func (InstanceGet) implOp() {}
func (InstancePut) implOp() {}
func (StaticGet) implOp()   {}
func (StaticPut) implOp()   {}
func (CheckCast) implOp()   {}
func (InstanceOf) implOp()  {}
func (Invoke) implOp()      {}
func (Goto) implOp()        {}
func (If) implOp()          {}
func (Return) implOp()      {}
func (Throw) implOp()       {}

// IsConstant returns true for the literal-producing operations that can be
// rematerialized instead of reloaded.
func IsConstant(op Op) bool {
	switch op.(type) {
	case ConstInt, ConstLong, ConstFloat, ConstDouble, ConstNull, ConstString, ConstClass:
		return true
	default:
		return false
	}
}

// IsTerminator returns true for operations that end a block.
func IsTerminator(op Op) bool {
	switch op.(type) {
	case Goto, If, Return, Throw:
		return true
	default:
		return false
	}
}

// Successors returns the successor blocks of a terminator, in edge order.
func Successors(op Op) []BlockID {
	switch o := op.(type) {
	case Goto:
		return []BlockID{o.Target}
	case If:
		return []BlockID{o.Then, o.Else}
	default:
		return nil
	}
}
