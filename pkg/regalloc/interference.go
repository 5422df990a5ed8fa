package regalloc

import (
	"sort"

	"github.com/raymyers/ralph-cf/pkg/diag"
	"github.com/raymyers/ralph-cf/pkg/liveness"
	"github.com/raymyers/ralph-cf/pkg/ssa"
)

// InterferenceGraph records which values are live at the same time.
// Two values interfere if their live intervals overlap.
type InterferenceGraph struct {
	// Nodes are the values that were given an interval
	Nodes liveness.ValueSet
	// Edges maps each value to its interfering neighbors
	Edges map[ssa.ValueID]liveness.ValueSet
}

// NewInterferenceGraph creates an empty interference graph
func NewInterferenceGraph() *InterferenceGraph {
	return &InterferenceGraph{
		Nodes: liveness.NewValueSet(),
		Edges: make(map[ssa.ValueID]liveness.ValueSet),
	}
}

// AddNode adds a value to the graph
func (g *InterferenceGraph) AddNode(v ssa.ValueID) {
	g.Nodes.Add(v)
	if g.Edges[v] == nil {
		g.Edges[v] = liveness.NewValueSet()
	}
}

// AddEdge adds an interference edge between two values
func (g *InterferenceGraph) AddEdge(v1, v2 ssa.ValueID) {
	if v1 == v2 {
		return // No self-edges
	}
	g.AddNode(v1)
	g.AddNode(v2)
	g.Edges[v1].Add(v2)
	g.Edges[v2].Add(v1)
}

// BuildInterferenceGraph constructs the interference graph of a set of
// intervals. Intervals are swept by start point so only intervals that
// have not ended are compared.
func BuildInterferenceGraph(intervals []*liveness.Interval) *InterferenceGraph {
	g := NewInterferenceGraph()
	sorted := append([]*liveness.Interval(nil), intervals...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start() < sorted[j].Start() })

	var open []*liveness.Interval
	for _, it := range sorted {
		g.AddNode(it.Value)
		kept := open[:0]
		for _, o := range open {
			if o.End() <= it.Start() {
				continue
			}
			kept = append(kept, o)
			if o.Overlaps(it) {
				g.AddEdge(o.Value, it.Value)
			}
		}
		open = append(kept, it)
	}
	return g
}

// Verify checks an allocation against the intervals it was computed from:
// every interval has a slot that fits in SlotCount, arguments sit in their
// calling convention slots, and no two interfering values share a slot
// (counting both slots of wide values).
func Verify(intervals []*liveness.Interval, res *Result) error {
	width := make(map[ssa.ValueID]int, len(intervals))
	for _, it := range intervals {
		slot, ok := res.Slots[it.Value]
		if !ok {
			return diag.Internalf("regalloc", "v%d has no slot", it.Value)
		}
		if slot < 0 || slot+it.Width > res.SlotCount {
			return diag.Internalf("regalloc", "v%d in slot %d exceeds %d slots", it.Value, slot, res.SlotCount)
		}
		if it.IsArgument() && slot != it.ArgSlot {
			return diag.Internalf("regalloc", "argument %d in slot %d, caller passes it in %d", it.Arg, slot, it.ArgSlot)
		}
		width[it.Value] = it.Width
	}

	g := BuildInterferenceGraph(intervals)
	for _, v := range g.Nodes.Slice() {
		for _, w := range g.Edges[v].Slice() {
			if w < v {
				continue
			}
			if intersects(res.Slots[v], width[v], res.Slots[w], width[w]) {
				return diag.Internalf("regalloc", "v%d and v%d are live together in slot %d",
					v, w, max(res.Slots[v], res.Slots[w]))
			}
		}
	}
	return nil
}
