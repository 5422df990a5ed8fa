// Package typeinfer computes the verifier type of every reference-typed
// SSA value, as needed for stack map frames.
//
// Values whose type follows from the instruction alone (arguments,
// constants, allocations, casts, field reads, invokes) are seeded first.
// Phis and array reads then take their type from their operands, iterating
// with a worklist until nothing changes. Joins are deliberately limited: a
// value merging two different classes is reported as not implemented
// instead of computing a common superclass.
package typeinfer

import (
	"sort"

	"github.com/raymyers/ralph-cf/pkg/diag"
	"github.com/raymyers/ralph-cf/pkg/ssa"
)

const (
	objectClass = "java/lang/Object"
	stringClass = "java/lang/String"
	classClass  = "java/lang/Class"
)

// Map holds the verifier type of reference values: an internal class name,
// an array descriptor, or ssa.NullClass. Values whose type is still unknown
// (bottom) have no entry.
type Map map[ssa.ValueID]string

// Values returns the typed values in ascending order.
func (m Map) Values() []ssa.ValueID {
	vs := make([]ssa.ValueID, 0, len(m))
	for v := range m {
		vs = append(vs, v)
	}
	sort.Slice(vs, func(i, j int) bool { return vs[i] < vs[j] })
	return vs
}

type inferrer struct {
	fn      *ssa.Func
	types   Map
	queue   []ssa.ValueID
	queued  []bool
	argType []ssa.Type
}

// Infer computes the verifier types of the reference values of fn.
func Infer(fn *ssa.Func) (Map, error) {
	in := &inferrer{
		fn:      fn,
		types:   make(Map),
		queued:  make([]bool, len(fn.Values)),
		argType: fn.Sig.ArgTypes(),
	}
	if err := in.seed(); err != nil {
		return nil, diag.InFunc(err, fn.Name())
	}
	if err := in.run(); err != nil {
		return nil, diag.InFunc(err, fn.Name())
	}
	return in.types, nil
}

func (in *inferrer) seed() error {
	for i := range in.fn.Values {
		v := ssa.ValueID(i)
		val := in.fn.Value(v)
		if !val.Type.IsRef() || val.IsPhi() {
			continue
		}
		typ, invariant, err := in.invariantType(v)
		if err != nil {
			return err
		}
		if invariant {
			in.types[v] = typ
			in.enqueueUsers(v)
		}
	}
	return nil
}

// invariantType returns the type of v if it follows from its defining
// instruction alone.
func (in *inferrer) invariantType(v ssa.ValueID) (string, bool, error) {
	switch op := in.fn.DefOp(v).(type) {
	case ssa.Argument:
		if op.Index < 0 || op.Index >= len(in.argType) {
			return "", false, diag.Internalf("typeinfer", "argument index %d out of range", op.Index)
		}
		return classOf(in.argType[op.Index]), true, nil
	case ssa.ConstNull:
		return ssa.NullClass, true, nil
	case ssa.ConstString:
		return stringClass, true, nil
	case ssa.ConstClass:
		return classClass, true, nil
	case ssa.NewInstance:
		return op.Class, true, nil
	case ssa.NewArray:
		return ssa.ArrayOf(op.Elem).Class, true, nil
	case ssa.CheckCast:
		return op.Class, true, nil
	case ssa.InstanceGet:
		return classOf(op.Field.Type), true, nil
	case ssa.StaticGet:
		return classOf(op.Field.Type), true, nil
	case ssa.Invoke:
		return classOf(op.Method.Return), true, nil
	case ssa.ArrayGet:
		return "", false, nil
	default:
		return "", false, diag.Internalf("typeinfer", "%s produces a reference but has no type rule",
			ssa.OpString(in.fn, op))
	}
}

func classOf(t ssa.Type) string {
	if t.Class == "" {
		return objectClass
	}
	return t.Class
}

func (in *inferrer) enqueue(v ssa.ValueID) {
	if in.queued[v] {
		return
	}
	in.queued[v] = true
	in.queue = append(in.queue, v)
}

// enqueueUsers queues the phis and non-invariant instructions using v.
func (in *inferrer) enqueueUsers(v ssa.ValueID) {
	val := in.fn.Value(v)
	for _, phi := range val.PhiUsers {
		if in.fn.Value(phi).Type.IsRef() {
			in.enqueue(phi)
		}
	}
	for _, id := range val.Users {
		inst := in.fn.Inst(id)
		if _, ok := inst.Op.(ssa.ArrayGet); ok && inst.Out != ssa.NoValue && in.fn.Value(inst.Out).Type.IsRef() {
			in.enqueue(inst.Out)
		}
	}
}

func (in *inferrer) run() error {
	for len(in.queue) > 0 {
		v := in.queue[0]
		in.queue = in.queue[1:]
		in.queued[v] = false

		typ, known, err := in.compute(v)
		if err != nil {
			return err
		}
		if !known {
			continue
		}
		if old, ok := in.types[v]; ok && old == typ {
			continue
		}
		in.types[v] = typ
		in.enqueueUsers(v)
	}
	return nil
}

// compute recomputes the type of a non-invariant value from its inputs.
func (in *inferrer) compute(v ssa.ValueID) (string, bool, error) {
	val := in.fn.Value(v)
	if val.IsPhi() {
		var sources []string
		for _, op := range val.Operands {
			if t, ok := in.types[op]; ok {
				sources = append(sources, t)
			}
		}
		return in.join(v, sources)
	}

	inst := in.fn.Inst(val.Def)
	switch inst.Op.(type) {
	case ssa.ArrayGet:
		if len(inst.Args) == 0 {
			return "", false, diag.Internalf("typeinfer", "array read without operands")
		}
		arr, ok := in.types[inst.Args[0]]
		if !ok || arr == ssa.NullClass {
			return "", false, nil
		}
		elem, ok := ssa.Ref(arr).Elem()
		if !ok || !elem.IsRef() {
			return "", false, diag.Internalf("typeinfer", "%s is read as an array of references", arr)
		}
		return classOf(elem), true, nil
	default:
		return "", false, diag.Internalf("typeinfer", "unexpected worklist entry %s", ssa.ValueName(in.fn, v))
	}
}

// join merges the known source types of v. Null is absorbed by any class;
// two different classes are not supported.
func (in *inferrer) join(v ssa.ValueID, sources []string) (string, bool, error) {
	result := ""
	for _, t := range sources {
		switch {
		case result == "" || result == ssa.NullClass:
			result = t
		case t == ssa.NullClass || t == result:
		default:
			return "", false, diag.Unimplementedf("typeinfer", "join of %s and %s at %s",
				result, t, ssa.ValueName(in.fn, v))
		}
	}
	if result == "" {
		return "", false, nil
	}
	return result, true, nil
}
