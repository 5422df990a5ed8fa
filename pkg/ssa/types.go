package ssa

import (
	"fmt"
	"strings"
)

// Kind is the primitive category of a value as seen by the stack machine.
type Kind uint8

const (
	KindVoid Kind = iota
	KindInt       // also boolean, byte, char and short
	KindLong
	KindFloat
	KindDouble
	KindRef
)

var kindNames = [...]string{
	KindVoid:   "void",
	KindInt:    "int",
	KindLong:   "long",
	KindFloat:  "float",
	KindDouble: "double",
	KindRef:    "ref",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Type is a value type. Reference types carry an internal class name
// ("java/lang/String") or an array descriptor ("[I"). An empty Class on a
// reference type means the precise type is not known to the IR.
type Type struct {
	Kind  Kind
	Class string
}

var (
	Void   = Type{Kind: KindVoid}
	Int    = Type{Kind: KindInt}
	Long   = Type{Kind: KindLong}
	Float  = Type{Kind: KindFloat}
	Double = Type{Kind: KindDouble}
)

// NullClass is the verifier type of the null constant.
const NullClass = "null"

// Ref returns the reference type for an internal class name or array descriptor.
func Ref(class string) Type {
	return Type{Kind: KindRef, Class: class}
}

// ArrayOf returns the array type with the given element type.
func ArrayOf(elem Type) Type {
	return Ref("[" + elem.Descriptor())
}

// IsWide returns true for long and double, which need two slots.
func (t Type) IsWide() bool {
	return t.Kind == KindLong || t.Kind == KindDouble
}

// IsRef returns true for reference types.
func (t Type) IsRef() bool {
	return t.Kind == KindRef
}

// Width is the number of slots (and stack words) a value of this type takes.
func (t Type) Width() int {
	switch t.Kind {
	case KindVoid:
		return 0
	case KindLong, KindDouble:
		return 2
	default:
		return 1
	}
}

// IsArray returns true if t is a reference to an array type.
func (t Type) IsArray() bool {
	return t.Kind == KindRef && strings.HasPrefix(t.Class, "[")
}

// Elem returns the component type of an array type.
func (t Type) Elem() (Type, bool) {
	if !t.IsArray() {
		return Type{}, false
	}
	elem, err := FromDescriptor(t.Class[1:])
	if err != nil {
		return Type{}, false
	}
	return elem, true
}

// Descriptor returns the JVM field descriptor of t.
func (t Type) Descriptor() string {
	switch t.Kind {
	case KindVoid:
		return "V"
	case KindInt:
		return "I"
	case KindLong:
		return "J"
	case KindFloat:
		return "F"
	case KindDouble:
		return "D"
	}
	if strings.HasPrefix(t.Class, "[") {
		return t.Class
	}
	if t.Class == "" {
		return "Ljava/lang/Object;"
	}
	return "L" + t.Class + ";"
}

func (t Type) String() string {
	if t.Kind == KindRef && t.Class != "" {
		return t.Class
	}
	return t.Kind.String()
}

// FromDescriptor parses a JVM field descriptor. Sub-int primitives map to int.
func FromDescriptor(d string) (Type, error) {
	if d == "" {
		return Type{}, fmt.Errorf("empty descriptor")
	}
	switch d[0] {
	case 'Z', 'B', 'C', 'S', 'I':
		if len(d) == 1 {
			return Int, nil
		}
	case 'J':
		if len(d) == 1 {
			return Long, nil
		}
	case 'F':
		if len(d) == 1 {
			return Float, nil
		}
	case 'D':
		if len(d) == 1 {
			return Double, nil
		}
	case 'V':
		if len(d) == 1 {
			return Void, nil
		}
	case 'L':
		if strings.HasSuffix(d, ";") && len(d) > 2 {
			return Ref(d[1 : len(d)-1]), nil
		}
	case '[':
		if _, err := FromDescriptor(d[1:]); err != nil {
			return Type{}, err
		}
		return Ref(d), nil
	}
	return Type{}, fmt.Errorf("invalid descriptor %q", d)
}

// ParseType parses the textual form used by printers and loaders:
// "int", "long", "float", "double", "void", "boolean", a class name, or a
// descriptor starting with '['.
func ParseType(s string) (Type, error) {
	switch s {
	case "void":
		return Void, nil
	case "int", "boolean", "byte", "char", "short":
		return Int, nil
	case "long":
		return Long, nil
	case "float":
		return Float, nil
	case "double":
		return Double, nil
	case "":
		return Type{}, fmt.Errorf("empty type")
	}
	if strings.HasPrefix(s, "[") {
		return FromDescriptor(s)
	}
	return Ref(s), nil
}

// FieldRef names a field and its type.
type FieldRef struct {
	Owner string
	Name  string
	Type  Type
}

func (f FieldRef) String() string {
	return f.Owner + "." + f.Name
}

// MethodRef names an invoked method.
type MethodRef struct {
	Owner  string
	Name   string
	Params []Type
	Return Type
}

func (m MethodRef) String() string {
	return m.Owner + "." + m.Name
}

// Signature describes the method being compiled.
type Signature struct {
	Class  string
	Name   string
	Static bool
	Params []Type
	Return Type
}

// ArgTypes returns the types of the argument values, with the receiver
// (typed as the enclosing class) first for instance methods.
func (s Signature) ArgTypes() []Type {
	var types []Type
	if !s.Static {
		types = append(types, Ref(s.Class))
	}
	return append(types, s.Params...)
}

// ArgSlots returns the first local slot of each argument under the calling
// convention, and the number of slots the arguments take together.
func (s Signature) ArgSlots() ([]int, int) {
	types := s.ArgTypes()
	slots := make([]int, len(types))
	next := 0
	for i, t := range types {
		slots[i] = next
		next += t.Width()
	}
	return slots, next
}

// FullName returns "Class.name".
func (s Signature) FullName() string {
	if s.Class == "" {
		return s.Name
	}
	return s.Class + "." + s.Name
}
