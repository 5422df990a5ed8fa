package ssa

import (
	"github.com/raymyers/ralph-cf/pkg/diag"
)

// ReversePostorder returns the blocks reachable from the entry in reverse
// postorder, visiting successors in edge order. Every block appears after
// its dominators, so definitions precede their non-phi uses.
func (f *Func) ReversePostorder() []BlockID {
	if f.Entry == NoBlock {
		return nil
	}
	visited := make([]bool, len(f.Blocks))
	var post []BlockID

	type frame struct {
		block BlockID
		next  int
	}
	stack := []frame{{block: f.Entry}}
	visited[f.Entry] = true
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		succs := f.Succs(top.block)
		if top.next < len(succs) {
			s := succs[top.next]
			top.next++
			if !visited[s] {
				visited[s] = true
				stack = append(stack, frame{block: s})
			}
			continue
		}
		post = append(post, top.block)
		stack = stack[:len(stack)-1]
	}

	for i, j := 0, len(post)-1; i < j; i, j = i+1, j-1 {
		post[i], post[j] = post[j], post[i]
	}
	return post
}

// SplitCriticalEdges inserts an empty block on every conditional edge that
// leads into a block with phis, so phi moves always have a single-successor
// block to live in. Predecessor positions are preserved, so phi operands
// stay valid. It returns the number of blocks added.
func (f *Func) SplitCriticalEdges() int {
	added := 0
	n := len(f.Blocks)
	for b := BlockID(0); int(b) < n; b++ {
		term := f.Terminator(b)
		if term == nil {
			continue
		}
		cond, ok := term.Op.(If)
		if !ok {
			continue
		}
		termID := term.ID
		if len(f.Block(cond.Then).Phis) > 0 {
			cond.Then = f.splitEdge(b, cond.Then)
			added++
		}
		if len(f.Block(cond.Else).Phis) > 0 {
			cond.Else = f.splitEdge(b, cond.Else)
			added++
		}
		f.Insts[termID].Op = cond
	}
	return added
}

func (f *Func) splitEdge(from, to BlockID) BlockID {
	name := f.Block(from).Name + "_" + f.Block(to).Name
	mid := f.NewBlock(name)
	f.Emit(mid, Goto{Target: to}, Void)

	// Emit appended mid to the end; move it into from's slot instead.
	target := f.Block(to)
	target.Preds = target.Preds[:len(target.Preds)-1]
	for i, p := range target.Preds {
		if p == from {
			target.Preds[i] = mid
			break
		}
	}
	f.Block(mid).Preds = []BlockID{from}
	return mid
}

// Verify checks the structural invariants the backend relies on.
func (f *Func) Verify() error {
	if f.Entry == NoBlock {
		return diag.Internalf("ssa", "function has no blocks")
	}
	if len(f.Block(f.Entry).Preds) > 0 {
		return diag.Internalf("ssa", "entry block %s has predecessors", f.Block(f.Entry).Name)
	}
	argTypes := f.Sig.ArgTypes()
	defined := make([]bool, len(argTypes))
	for _, bid := range f.ReversePostorder() {
		blk := f.Block(bid)
		if len(blk.Insts) == 0 {
			return diag.Internalf("ssa", "block %s is empty", blk.Name)
		}
		for i, id := range blk.Insts {
			inst := f.Inst(id)
			last := i == len(blk.Insts)-1
			if IsTerminator(inst.Op) != last {
				return diag.Internalf("ssa", "block %s: terminator must be the last instruction", blk.Name)
			}
			if a, ok := inst.Op.(Argument); ok {
				if bid != f.Entry {
					return diag.Internalf("ssa", "argument %d outside the entry block", a.Index)
				}
				if a.Index < 0 || a.Index >= len(argTypes) {
					return diag.Internalf("ssa", "argument index %d out of range", a.Index)
				}
				// Arguments hold their slots from method entry.
				if i > 0 {
					if _, prev := f.Inst(blk.Insts[i-1]).Op.(Argument); !prev {
						return diag.Internalf("ssa", "argument %d follows other instructions in %s", a.Index, blk.Name)
					}
				}
				if defined[a.Index] {
					return diag.Internalf("ssa", "argument %d defined twice", a.Index)
				}
				defined[a.Index] = true
			}
		}
		for _, phi := range blk.Phis {
			if got, want := len(f.Value(phi).Operands), len(blk.Preds); got != want {
				return diag.Internalf("ssa", "phi v%d in %s has %d operands, block has %d predecessors",
					phi, blk.Name, got, want)
			}
		}
	}
	for i, ok := range defined {
		if !ok {
			return diag.Internalf("ssa", "parameter %d has no argument instruction", i)
		}
	}
	return nil
}
