package cfgen

import (
	"fmt"

	"github.com/raymyers/ralph-cf/pkg/cf"
	"github.com/raymyers/ralph-cf/pkg/ssa"
)

const (
	initName          = "<init>"
	uninitializedThis = "uninitializedThis"
)

// initializers records, for every allocated object and for the receiver of
// a constructor, the blocks that call a constructor on it. Until such a call
// the verifier sees the value as uninitialized.
type initializers struct {
	fn *ssa.Func
	// origin is the verifier type of a value while it is uninitialized.
	origin map[ssa.ValueID]string
	calls  map[ssa.ValueID][]ssa.BlockID
}

// findInitializers scans code for new instructions, naming each allocation
// by its position in code.Instrs.
func findInitializers(fn *ssa.Func, code *cf.Code) *initializers {
	in := &initializers{
		fn:     fn,
		origin: make(map[ssa.ValueID]string),
		calls:  make(map[ssa.ValueID][]ssa.BlockID),
	}
	for pos, inst := range code.Instrs {
		e, ok := inst.(cf.Exec)
		if !ok {
			continue
		}
		if _, ok := e.Op.(ssa.NewInstance); ok {
			in.origin[fn.Inst(e.Inst).Out] = fmt.Sprintf("uninitialized(%d)", pos)
		}
	}
	if fn.Sig.Name == initName && !fn.Sig.Static {
		if args := fn.Args(); len(args) > 0 && args[0] != ssa.NoValue {
			in.origin[args[0]] = uninitializedThis
		}
	}

	for v := range in.origin {
		for _, use := range fn.Value(v).Users {
			inst := fn.Inst(use)
			call, ok := inst.Op.(ssa.Invoke)
			if !ok || call.Kind != ssa.InvokeSpecial || call.Method.Name != initName {
				continue
			}
			if len(inst.Args) > 0 && inst.Args[0] == v {
				in.calls[v] = append(in.calls[v], inst.Block)
			}
		}
	}
	return in
}

// frameType returns the uninitialized type of v on entry to b, or "" when v
// is initialized there. v is uninitialized at b if a constructor call on it
// is reachable from b without passing through the block defining v.
func (in *initializers) frameType(v ssa.ValueID, b ssa.BlockID) string {
	origin, ok := in.origin[v]
	if !ok {
		return ""
	}
	def := in.fn.Value(v).Block
	visited := make(map[ssa.BlockID]bool)
	var work []ssa.BlockID
	for _, call := range in.calls[v] {
		if call == b {
			return origin
		}
		if call != def && !visited[call] {
			visited[call] = true
			work = append(work, call)
		}
	}
	for len(work) > 0 {
		blk := work[len(work)-1]
		work = work[:len(work)-1]
		for _, pred := range in.fn.Block(blk).Preds {
			if pred == b {
				return origin
			}
			if pred != def && !visited[pred] {
				visited[pred] = true
				work = append(work, pred)
			}
		}
	}
	return ""
}
