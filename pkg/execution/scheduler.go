// Package execution runs a mapped process against a live API, one step per task.
package execution

import (
	"github.com/dukex/flowprobe/pkg/models"
)

// Schedule orders the process tasks and the virtual dependency tasks so that
// every sequence flow and data-flow edge points forward. Cycles are broken by
// releasing the first remaining virtual task, then the first remaining process
// task. The result contains every node exactly once.
func Schedule(process *models.ProcessModel, mapping *models.MappingResult) []string {
	var nodes []string

	known := map[string]bool{}

	add := func(id string) {
		if id != "" && !known[id] {
			known[id] = true
			nodes = append(nodes, id)
		}
	}

	if process != nil {
		for _, t := range process.Tasks {
			add(t.ID)
		}
	}

	var virtual []string
	if mapping != nil {
		virtual = mapping.VirtualTaskIDs()
		for _, id := range virtual {
			add(id)
		}
	}

	g := newGraph(nodes)

	if process != nil {
		for _, f := range process.SequenceFlows {
			if known[f.SourceID] && known[f.TargetID] {
				g.link(f.SourceID, f.TargetID)
			}
		}
	}

	if mapping != nil {
		for _, e := range mapping.DataFlowEdges {
			if known[e.SourceTaskID] && known[e.TargetTaskID] {
				g.link(e.SourceTaskID, e.TargetTaskID)
			}
		}
	}

	return g.sort(append(virtual, nodes...))
}

type graph struct {
	nodes    []string
	next     map[string][]string
	linked   map[[2]string]bool
	inDegree map[string]int
}

func newGraph(nodes []string) *graph {
	g := &graph{
		nodes:    nodes,
		next:     map[string][]string{},
		linked:   map[[2]string]bool{},
		inDegree: map[string]int{},
	}

	for _, n := range nodes {
		g.inDegree[n] = 0
	}

	return g
}

func (g *graph) link(from, to string) {
	if from == to || g.linked[[2]string{from, to}] {
		return
	}

	g.linked[[2]string{from, to}] = true
	g.next[from] = append(g.next[from], to)
	g.inDegree[to]++
}

// sort runs Kahn's algorithm. breakOrder lists the candidates released when
// the queue drains with nodes left.
func (g *graph) sort(breakOrder []string) []string {
	order := make([]string, 0, len(g.nodes))
	done := map[string]bool{}

	var queue []string

	for _, n := range g.nodes {
		if g.inDegree[n] == 0 {
			queue = append(queue, n)
		}
	}

	for len(order) < len(g.nodes) {
		if len(queue) == 0 {
			for _, n := range breakOrder {
				if !done[n] {
					queue = append(queue, n)

					break
				}
			}
		}

		n := queue[0]
		queue = queue[1:]

		if done[n] {
			continue
		}

		done[n] = true
		order = append(order, n)

		for _, m := range g.next[n] {
			g.inDegree[m]--
			if g.inDegree[m] == 0 && !done[m] {
				queue = append(queue, m)
			}
		}
	}

	return order
}
