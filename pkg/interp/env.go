package interp

import (
	"fmt"
	"strings"

	"github.com/raymyers/ralph-cf/pkg/ssa"
)

// Method implements an invoked method outside the interpreted code.
type Method func(env *Env, args []Value) (Value, error)

// Env is the world an interpreted method runs in: static fields, callable
// methods, and the trace of observable effects.
type Env struct {
	Statics map[string]Value
	Methods map[string]Method
	// Supers maps a class to its superclass, for casts and instanceof.
	Supers map[string]string
	// Trace records static writes and invokes in execution order.
	Trace []string
	// StepLimit bounds the number of executed instructions, 0 for the default.
	StepLimit int
}

const defaultStepLimit = 1_000_000

// NewEnv creates an empty environment.
func NewEnv() *Env {
	return &Env{
		Statics: make(map[string]Value),
		Methods: make(map[string]Method),
		Supers:  make(map[string]string),
	}
}

func (e *Env) record(format string, args ...any) {
	e.Trace = append(e.Trace, fmt.Sprintf(format, args...))
}

func (e *Env) limit() int {
	if e.StepLimit > 0 {
		return e.StepLimit
	}
	return defaultStepLimit
}

// isInstance reports whether a non-null value may be used as class.
func (e *Env) isInstance(v Value, class string) bool {
	if class == "java/lang/Object" {
		return true
	}
	actual := classOf(v)
	for seen := 0; actual != "" && seen < 64; seen++ {
		if actual == class {
			return true
		}
		actual = e.Supers[actual]
	}
	if strings.HasPrefix(class, "[") {
		// Arrays of references are covariant.
		arr, ok := v.(*Array)
		want, isArr := ssa.Ref(class).Elem()
		if ok && isArr && arr.Elem.IsRef() && want.IsRef() {
			return want.Class == "" || want.Class == "java/lang/Object" || arr.Elem.Class == want.Class
		}
	}
	return false
}
