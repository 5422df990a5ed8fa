// Package cfgen runs the CF backend passes over SSA functions.
//
// A method is verified, its critical edges are split, verifier types are
// inferred, slots are allocated from liveness intervals, and the lowered
// code is cleaned up and given frames at every branch target.
package cfgen

import (
	"fmt"
	"log/slog"
	"runtime"
	"sort"

	"github.com/raymyers/ralph-cf/pkg/cf"
	"github.com/raymyers/ralph-cf/pkg/diag"
	"github.com/raymyers/ralph-cf/pkg/liveness"
	"github.com/raymyers/ralph-cf/pkg/loadstore"
	"github.com/raymyers/ralph-cf/pkg/regalloc"
	"github.com/raymyers/ralph-cf/pkg/ssa"
	"github.com/raymyers/ralph-cf/pkg/typeinfer"
)

// Options configures the pipeline.
type Options struct {
	// Rematerialize re-emits constants at their uses instead of giving
	// them slots.
	Rematerialize bool
	// VerifyAllocation checks the slot assignment against the intervals.
	VerifyAllocation bool
	// Workers bounds the parallelism of BuildAll, 0 for one per CPU.
	Workers int
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{Rematerialize: true}
}

func (o Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.NumCPU()
}

// Result holds the output of every pass for one method.
type Result struct {
	Func     *ssa.Func
	Types    typeinfer.Map
	Liveness *liveness.Info
	Alloc    *regalloc.Result
	Code     *cf.Code
}

// Build lowers fn to stack form. fn is modified in place by critical edge
// splitting.
func Build(fn *ssa.Func, opts Options) (*cf.Code, error) {
	res, err := Compile(fn, opts)
	if err != nil {
		return nil, err
	}
	return res.Code, nil
}

// Compile is Build keeping the intermediate results.
func Compile(fn *ssa.Func, opts Options) (*Result, error) {
	name := fn.Name()
	if err := fn.Verify(); err != nil {
		return nil, fmt.Errorf("verifying input: %w", diag.InFunc(err, name))
	}
	if n := fn.SplitCriticalEdges(); n > 0 {
		slog.Debug("critical edges split", "func", name, "edges", n)
	}

	types, err := typeinfer.Infer(fn)
	if err != nil {
		return nil, fmt.Errorf("inferring types: %w", err)
	}

	info, err := liveness.Compute(fn, liveness.Options{RematerializeConstants: opts.Rematerialize})
	if err != nil {
		return nil, fmt.Errorf("computing liveness: %w", diag.InFunc(err, name))
	}

	alloc, err := regalloc.Allocate(info.Intervals)
	if err != nil {
		return nil, fmt.Errorf("allocating slots: %w", diag.InFunc(err, name))
	}
	slog.Debug("slots allocated", "func", name, "values", len(alloc.Slots), "slots", alloc.SlotCount)
	if opts.VerifyAllocation {
		if err := regalloc.Verify(info.Intervals, alloc); err != nil {
			return nil, fmt.Errorf("verifying allocation: %w", diag.InFunc(err, name))
		}
	}

	code, err := loadstore.Lower(fn, info, alloc, loadstore.Options{RematerializeConstants: opts.Rematerialize})
	if err != nil {
		return nil, fmt.Errorf("lowering: %w", err)
	}
	cf.Cleanup(code)
	stack, err := cf.ComputeStackInfo(code)
	if err != nil {
		return nil, fmt.Errorf("cleanup: %w", diag.InFunc(err, name))
	}
	code.MaxStack = stack.MaxStack

	frames, err := computeFrames(code, info, alloc, types)
	if err != nil {
		return nil, fmt.Errorf("computing frames: %w", diag.InFunc(err, name))
	}
	code.Frames = frames
	slog.Debug("method lowered", "func", name,
		"instructions", len(code.Instrs), "max_stack", code.MaxStack, "frames", len(frames))

	return &Result{Func: fn, Types: types, Liveness: info, Alloc: alloc, Code: code}, nil
}

// computeFrames records the slots live at every branch target together
// with their verification types.
func computeFrames(code *cf.Code, info *liveness.Info, alloc *regalloc.Result, types typeinfer.Map) ([]cf.Frame, error) {
	targets := code.Targets()
	inits := findInitializers(code.Func, code)
	var frames []cf.Frame
	for _, inst := range code.Instrs {
		lbl, ok := inst.(cf.Label)
		if !ok || !targets[lbl.Block] {
			continue
		}
		fr := cf.Frame{Block: lbl.Block}
		for _, v := range info.LiveAtEntry(lbl.Block) {
			slot, ok := alloc.Slot(v)
			if !ok {
				return nil, diag.Internalf("cfgen", "%s is live at %s without a slot",
					ssa.ValueName(code.Func, v), ssa.BlockName(code.Func, lbl.Block))
			}
			typ := inits.frameType(v, lbl.Block)
			var err error
			if typ == "" {
				typ, err = verifierType(code.Func, types, v)
			}
			if err != nil {
				return nil, err
			}
			fr.Locals = append(fr.Locals, cf.Local{Slot: slot, Type: typ})
		}
		sort.Slice(fr.Locals, func(i, j int) bool { return fr.Locals[i].Slot < fr.Locals[j].Slot })
		frames = append(frames, fr)
	}
	return frames, nil
}

func verifierType(fn *ssa.Func, types typeinfer.Map, v ssa.ValueID) (string, error) {
	t := fn.Value(v).Type
	switch t.Kind {
	case ssa.KindInt, ssa.KindLong, ssa.KindFloat, ssa.KindDouble:
		return t.Kind.String(), nil
	case ssa.KindRef:
		if typ, ok := types[v]; ok {
			return typ, nil
		}
		return "", diag.Internalf("cfgen", "no verifier type for %s", ssa.ValueName(fn, v))
	}
	return "", diag.Internalf("cfgen", "%s has type %s", ssa.ValueName(fn, v), t)
}
