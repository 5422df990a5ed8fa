// Package interp executes SSA functions and their stack-form lowering.
//
// Both interpreters share the semantics of every operation, so running a
// function before and after lowering must give the same result and the
// same trace of side effects. Values are represented with Go types:
// int32, int64, float32 and float64 for primitives, and nil, *Object,
// *Array, string (java/lang/String) or Class for references.
package interp

import (
	"fmt"
	"strings"

	"github.com/raymyers/ralph-cf/pkg/ssa"
)

// Value is a runtime value.
type Value = any

// Object is an instance of a class.
type Object struct {
	Class  string
	Fields map[string]Value
}

// Array is an array instance.
type Array struct {
	Elem ssa.Type
	Data []Value
}

// Class is the value of a class literal.
type Class struct {
	Name string
}

// Exception is a thrown value escaping the interpreted method.
type Exception struct {
	Class string
	Value Value // the thrown object, nil for exceptions raised by the machine
}

func (e *Exception) Error() string {
	return "exception " + e.Class
}

func throw(class string) *Exception {
	return &Exception{Class: class}
}

// Zero returns the default value of a field or array element of type t.
func Zero(t ssa.Type) Value {
	switch t.Kind {
	case ssa.KindInt:
		return int32(0)
	case ssa.KindLong:
		return int64(0)
	case ssa.KindFloat:
		return float32(0)
	case ssa.KindDouble:
		return float64(0)
	default:
		return nil
	}
}

// classOf returns the runtime class of a non-null reference.
func classOf(v Value) string {
	switch o := v.(type) {
	case *Object:
		return o.Class
	case *Array:
		return ssa.ArrayOf(o.Elem).Class
	case string:
		return "java/lang/String"
	case Class:
		return "java/lang/Class"
	default:
		return ""
	}
}

// Format renders a value for traces and test failures.
func Format(v Value) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case int32:
		return fmt.Sprintf("%d", x)
	case int64:
		return fmt.Sprintf("%dL", x)
	case float32:
		return fmt.Sprintf("%gf", x)
	case float64:
		return fmt.Sprintf("%gd", x)
	case string:
		return fmt.Sprintf("%q", x)
	case Class:
		return x.Name + ".class"
	case *Object:
		return "new " + x.Class
	case *Array:
		parts := make([]string, len(x.Data))
		for i, e := range x.Data {
			parts[i] = Format(e)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprintf("%v", x)
	}
}
