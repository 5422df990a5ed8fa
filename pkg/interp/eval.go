package interp

import (
	"fmt"
	"math"
	"strings"

	"github.com/raymyers/ralph-cf/pkg/diag"
	"github.com/raymyers/ralph-cf/pkg/ssa"
)

func operand[T any](args []Value, i int) (T, error) {
	var zero T
	if i >= len(args) {
		return zero, diag.Internalf("interp", "missing operand %d", i)
	}
	v, ok := args[i].(T)
	if !ok {
		return zero, diag.Internalf("interp", "operand %d is %T, want %T", i, args[i], zero)
	}
	return v, nil
}

// eval executes a non-branching operation on evaluated operands.
func (e *Env) eval(op ssa.Op, args []Value) (Value, error) {
	switch o := op.(type) {
	case ssa.ConstInt:
		return o.Value, nil
	case ssa.ConstLong:
		return o.Value, nil
	case ssa.ConstFloat:
		return o.Value, nil
	case ssa.ConstDouble:
		return o.Value, nil
	case ssa.ConstNull:
		return nil, nil
	case ssa.ConstString:
		return o.Value, nil
	case ssa.ConstClass:
		return Class{Name: o.Class}, nil
	case ssa.Binop:
		return binop(o, args)
	case ssa.Neg:
		return neg(o.Kind, args)
	case ssa.Convert:
		return convert(o, args)
	case ssa.Cmp:
		return compare(o, args)
	case ssa.NewInstance:
		return &Object{Class: o.Class, Fields: make(map[string]Value)}, nil
	case ssa.NewArray:
		n, err := operand[int32](args, 0)
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, throw("java/lang/NegativeArraySizeException")
		}
		data := make([]Value, n)
		for i := range data {
			data[i] = Zero(o.Elem)
		}
		return &Array{Elem: o.Elem, Data: data}, nil
	case ssa.ArrayLength:
		arr, err := array(args)
		if err != nil {
			return nil, err
		}
		return int32(len(arr.Data)), nil
	case ssa.ArrayGet:
		arr, i, err := element(args)
		if err != nil {
			return nil, err
		}
		return arr.Data[i], nil
	case ssa.ArrayPut:
		arr, i, err := element(args)
		if err != nil {
			return nil, err
		}
		if len(args) < 3 {
			return nil, diag.Internalf("interp", "array store without a value")
		}
		arr.Data[i] = args[2]
		return nil, nil
	case ssa.InstanceGet:
		obj, err := object(args)
		if err != nil {
			return nil, err
		}
		if v, ok := obj.Fields[o.Field.Name]; ok {
			return v, nil
		}
		return Zero(o.Field.Type), nil
	case ssa.InstancePut:
		obj, err := object(args)
		if err != nil {
			return nil, err
		}
		if len(args) < 2 {
			return nil, diag.Internalf("interp", "field store without a value")
		}
		obj.Fields[o.Field.Name] = args[1]
		e.record("iput %s = %s", o.Field, Format(args[1]))
		return nil, nil
	case ssa.StaticGet:
		if v, ok := e.Statics[o.Field.String()]; ok {
			return v, nil
		}
		return Zero(o.Field.Type), nil
	case ssa.StaticPut:
		if len(args) < 1 {
			return nil, diag.Internalf("interp", "static store without a value")
		}
		e.Statics[o.Field.String()] = args[0]
		e.record("sput %s = %s", o.Field, Format(args[0]))
		return nil, nil
	case ssa.CheckCast:
		if len(args) < 1 {
			return nil, diag.Internalf("interp", "check-cast without an operand")
		}
		if args[0] != nil && !e.isInstance(args[0], o.Class) {
			return nil, throw("java/lang/ClassCastException")
		}
		return args[0], nil
	case ssa.InstanceOf:
		if len(args) < 1 {
			return nil, diag.Internalf("interp", "instance-of without an operand")
		}
		if args[0] != nil && e.isInstance(args[0], o.Class) {
			return int32(1), nil
		}
		return int32(0), nil
	case ssa.Invoke:
		return e.invoke(o, args)
	default:
		return nil, diag.Internalf("interp", "cannot evaluate %T", op)
	}
}

func (e *Env) invoke(o ssa.Invoke, args []Value) (Value, error) {
	if o.Kind != ssa.InvokeStatic && (len(args) == 0 || args[0] == nil) {
		return nil, throw("java/lang/NullPointerException")
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = Format(a)
	}
	e.record("invoke %s(%s)", o.Method, strings.Join(parts, ", "))
	m, ok := e.Methods[o.Method.String()]
	if !ok {
		return nil, fmt.Errorf("no implementation for %s", o.Method)
	}
	return m(e, args)
}

func array(args []Value) (*Array, error) {
	if len(args) > 0 && args[0] == nil {
		return nil, throw("java/lang/NullPointerException")
	}
	return operand[*Array](args, 0)
}

func element(args []Value) (*Array, int, error) {
	arr, err := array(args)
	if err != nil {
		return nil, 0, err
	}
	i, err := operand[int32](args, 1)
	if err != nil {
		return nil, 0, err
	}
	if i < 0 || int(i) >= len(arr.Data) {
		return nil, 0, throw("java/lang/ArrayIndexOutOfBoundsException")
	}
	return arr, int(i), nil
}

func object(args []Value) (*Object, error) {
	if len(args) > 0 && args[0] == nil {
		return nil, throw("java/lang/NullPointerException")
	}
	return operand[*Object](args, 0)
}

func binop(o ssa.Binop, args []Value) (Value, error) {
	switch o.Kind {
	case ssa.KindInt:
		a, err := operand[int32](args, 0)
		if err != nil {
			return nil, err
		}
		b, err := operand[int32](args, 1)
		if err != nil {
			return nil, err
		}
		return intArith(o.Op, a, b)
	case ssa.KindLong:
		a, err := operand[int64](args, 0)
		if err != nil {
			return nil, err
		}
		switch o.Op {
		case ssa.Shl, ssa.Shr, ssa.Ushr:
			s, err := operand[int32](args, 1)
			if err != nil {
				return nil, err
			}
			return longShift(o.Op, a, s), nil
		}
		b, err := operand[int64](args, 1)
		if err != nil {
			return nil, err
		}
		return longArith(o.Op, a, b)
	case ssa.KindFloat:
		a, err := operand[float32](args, 0)
		if err != nil {
			return nil, err
		}
		b, err := operand[float32](args, 1)
		if err != nil {
			return nil, err
		}
		return floatArith(o.Op, a, b)
	case ssa.KindDouble:
		a, err := operand[float64](args, 0)
		if err != nil {
			return nil, err
		}
		b, err := operand[float64](args, 1)
		if err != nil {
			return nil, err
		}
		return floatArith(o.Op, a, b)
	}
	return nil, diag.Internalf("interp", "%s on %s", o.Op, o.Kind)
}

func intArith(op ssa.ArithOp, a, b int32) (Value, error) {
	switch op {
	case ssa.Add:
		return a + b, nil
	case ssa.Sub:
		return a - b, nil
	case ssa.Mul:
		return a * b, nil
	case ssa.Div, ssa.Rem:
		if b == 0 {
			return nil, throw("java/lang/ArithmeticException")
		}
		if op == ssa.Div {
			return a / b, nil
		}
		return a % b, nil
	case ssa.And:
		return a & b, nil
	case ssa.Or:
		return a | b, nil
	case ssa.Xor:
		return a ^ b, nil
	case ssa.Shl:
		return a << (uint32(b) & 31), nil
	case ssa.Shr:
		return a >> (uint32(b) & 31), nil
	case ssa.Ushr:
		return int32(uint32(a) >> (uint32(b) & 31)), nil
	}
	return nil, diag.Internalf("interp", "unknown int operation %s", op)
}

func longArith(op ssa.ArithOp, a, b int64) (Value, error) {
	switch op {
	case ssa.Add:
		return a + b, nil
	case ssa.Sub:
		return a - b, nil
	case ssa.Mul:
		return a * b, nil
	case ssa.Div, ssa.Rem:
		if b == 0 {
			return nil, throw("java/lang/ArithmeticException")
		}
		if op == ssa.Div {
			return a / b, nil
		}
		return a % b, nil
	case ssa.And:
		return a & b, nil
	case ssa.Or:
		return a | b, nil
	case ssa.Xor:
		return a ^ b, nil
	}
	return nil, diag.Internalf("interp", "unknown long operation %s", op)
}

func longShift(op ssa.ArithOp, a int64, s int32) Value {
	n := uint64(s) & 63
	switch op {
	case ssa.Shl:
		return a << n
	case ssa.Shr:
		return a >> n
	default:
		return int64(uint64(a) >> n)
	}
}

func floatArith[T float32 | float64](op ssa.ArithOp, a, b T) (Value, error) {
	switch op {
	case ssa.Add:
		return a + b, nil
	case ssa.Sub:
		return a - b, nil
	case ssa.Mul:
		return a * b, nil
	case ssa.Div:
		return a / b, nil
	case ssa.Rem:
		return T(math.Mod(float64(a), float64(b))), nil
	}
	return nil, diag.Internalf("interp", "%s is not a floating point operation", op)
}

func neg(k ssa.Kind, args []Value) (Value, error) {
	if len(args) < 1 {
		return nil, diag.Internalf("interp", "neg without an operand")
	}
	switch a := args[0].(type) {
	case int32:
		return -a, nil
	case int64:
		return -a, nil
	case float32:
		return -a, nil
	case float64:
		return -a, nil
	}
	return nil, diag.Internalf("interp", "neg.%s of %T", k, args[0])
}

func convert(o ssa.Convert, args []Value) (Value, error) {
	if len(args) < 1 {
		return nil, diag.Internalf("interp", "conversion without an operand")
	}
	var f float64
	var i int64
	isFloat := false
	switch a := args[0].(type) {
	case int32:
		i = int64(a)
	case int64:
		i = a
	case float32:
		f, isFloat = float64(a), true
	case float64:
		f, isFloat = a, true
	default:
		return nil, diag.Internalf("interp", "cannot convert %T", args[0])
	}

	switch o.To {
	case ssa.KindInt:
		if isFloat {
			return saturate(f, math.MinInt32, math.MaxInt32, func(x float64) int32 { return int32(x) }), nil
		}
		return int32(i), nil
	case ssa.KindLong:
		if isFloat {
			return saturate(f, math.MinInt64, math.MaxInt64, func(x float64) int64 { return int64(x) }), nil
		}
		return i, nil
	case ssa.KindFloat:
		if isFloat {
			return float32(f), nil
		}
		return float32(i), nil
	case ssa.KindDouble:
		if isFloat {
			return f, nil
		}
		return float64(i), nil
	}
	return nil, diag.Internalf("interp", "conversion to %s", o.To)
}

// saturate converts like the JVM's f2i family: NaN is 0, out of range
// values clamp.
func saturate[T int32 | int64](f float64, lo, hi T, conv func(float64) T) T {
	switch {
	case math.IsNaN(f):
		return 0
	case f <= float64(lo):
		return lo
	case f >= float64(hi):
		return hi
	}
	return conv(f)
}

func compare(o ssa.Cmp, args []Value) (Value, error) {
	if len(args) < 2 {
		return nil, diag.Internalf("interp", "compare needs two operands")
	}
	sign := func(lt, gt bool) int32 {
		switch {
		case lt:
			return -1
		case gt:
			return 1
		}
		return 0
	}
	switch a := args[0].(type) {
	case int64:
		b, err := operand[int64](args, 1)
		if err != nil {
			return nil, err
		}
		return sign(a < b, a > b), nil
	case float32:
		b, err := operand[float32](args, 1)
		if err != nil {
			return nil, err
		}
		return floatCompare(o.Bias, float64(a), float64(b)), nil
	case float64:
		b, err := operand[float64](args, 1)
		if err != nil {
			return nil, err
		}
		return floatCompare(o.Bias, a, b), nil
	}
	return nil, diag.Internalf("interp", "cannot compare %T", args[0])
}

func floatCompare(bias ssa.CmpBias, a, b float64) int32 {
	switch {
	case math.IsNaN(a) || math.IsNaN(b):
		if bias == ssa.BiasGreater {
			return 1
		}
		return -1
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// cond evaluates a branch condition on one operand (against zero or null)
// or two.
func cond(c ssa.Cond, args []Value) (bool, error) {
	var a, b Value
	switch len(args) {
	case 1:
		a = args[0]
		if _, ok := a.(int32); ok {
			b = int32(0)
		}
	case 2:
		a, b = args[0], args[1]
	default:
		return false, diag.Internalf("interp", "branch with %d operands", len(args))
	}

	if x, ok := a.(int32); ok {
		y, ok := b.(int32)
		if !ok {
			return false, diag.Internalf("interp", "comparing int with %T", b)
		}
		switch c {
		case ssa.Eq:
			return x == y, nil
		case ssa.Ne:
			return x != y, nil
		case ssa.Lt:
			return x < y, nil
		case ssa.Ge:
			return x >= y, nil
		case ssa.Gt:
			return x > y, nil
		case ssa.Le:
			return x <= y, nil
		}
		return false, diag.Internalf("interp", "unknown condition %s", c)
	}

	same := a == b
	switch c {
	case ssa.Eq:
		return same, nil
	case ssa.Ne:
		return !same, nil
	}
	return false, diag.Internalf("interp", "%s on references", c)
}
