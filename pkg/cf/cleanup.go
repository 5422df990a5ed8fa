// Branch cleanup for stack-form code.
// Jumps to a jump are shortcut, jumps to the next instruction are dropped,
// code that cannot be reached by falling through or jumping is removed, and
// labels that no branch references go away.
package cf

import "github.com/raymyers/ralph-cf/pkg/ssa"

// Cleanup runs all branch cleanups until the code stops changing.
func Cleanup(c *Code) {
	for {
		before := len(c.Instrs)
		Tunnel(c)
		RemoveFallthroughGotos(c)
		RemoveDeadCode(c)
		CleanupLabels(c)
		if len(c.Instrs) == before {
			return
		}
	}
}

// Tunnel shortcuts chains of unconditional jumps: "goto L1" where L1 is
// "goto L2" becomes "goto L2".
func Tunnel(c *Code) {
	jumpTargets := make(map[ssa.BlockID]ssa.BlockID)
	for i := 0; i+1 < len(c.Instrs); i++ {
		lbl, ok := c.Instrs[i].(Label)
		if !ok {
			continue
		}
		if gt, ok := c.Instrs[i+1].(Goto); ok {
			jumpTargets[lbl.Block] = gt.Target
		}
	}

	for i, inst := range c.Instrs {
		switch in := inst.(type) {
		case Goto:
			c.Instrs[i] = Goto{Target: resolveLabel(in.Target, jumpTargets)}
		case If:
			in.Then = resolveLabel(in.Then, jumpTargets)
			c.Instrs[i] = in
		}
	}
}

// resolveLabel follows a jump chain to its ultimate target.
// Handles cycles by returning the label where a cycle is detected.
func resolveLabel(lbl ssa.BlockID, jumpTargets map[ssa.BlockID]ssa.BlockID) ssa.BlockID {
	visited := make(map[ssa.BlockID]bool)
	current := lbl
	for {
		if visited[current] {
			return current
		}
		visited[current] = true
		target, ok := jumpTargets[current]
		if !ok {
			return current
		}
		current = target
	}
}

// RemoveFallthroughGotos drops a goto whose target label follows it
// directly (possibly after other labels).
func RemoveFallthroughGotos(c *Code) {
	out := make([]Instruction, 0, len(c.Instrs))
	for i, inst := range c.Instrs {
		if gt, ok := inst.(Goto); ok && fallsInto(c.Instrs[i+1:], gt.Target) {
			continue
		}
		out = append(out, inst)
	}
	c.Instrs = out
}

func fallsInto(rest []Instruction, target ssa.BlockID) bool {
	for _, inst := range rest {
		lbl, ok := inst.(Label)
		if !ok {
			return false
		}
		if lbl.Block == target {
			return true
		}
	}
	return false
}

// RemoveDeadCode removes instructions between an unconditional control
// transfer and the next referenced label.
func RemoveDeadCode(c *Code) {
	used := c.Targets()
	out := make([]Instruction, 0, len(c.Instrs))
	dead := false
	for i, inst := range c.Instrs {
		if lbl, ok := inst.(Label); ok && (used[lbl.Block] || i == 0) {
			dead = false
		}
		if dead {
			continue
		}
		out = append(out, inst)
		if EndsBlock(inst) {
			dead = true
		}
	}
	c.Instrs = out
}

// CleanupLabels removes labels that are not referenced by any branch.
// The first label (entry point) is always preserved.
func CleanupLabels(c *Code) {
	if len(c.Instrs) == 0 {
		return
	}
	used := c.Targets()
	if lbl, ok := c.Instrs[0].(Label); ok {
		used[lbl.Block] = true
	}

	out := make([]Instruction, 0, len(c.Instrs))
	for _, inst := range c.Instrs {
		if lbl, ok := inst.(Label); ok && !used[lbl.Block] {
			continue
		}
		out = append(out, inst)
	}
	c.Instrs = out
}
