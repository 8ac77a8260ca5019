package depgraph

import "container/heap"

// reaches reports whether to is reachable from from by following successor
// edges. One shared visited set and an explicit stack keep it O(V+E).
func (s *Store) reaches(from, to TaskID) bool {
	if from == to {
		return true
	}
	visited := map[TaskID]bool{from: true}
	stack := []TaskID{from}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, next := range s.successors[n] {
			if next == to {
				return true
			}
			if visited[next] {
				continue
			}
			visited[next] = true
			stack = append(stack, next)
		}
	}
	return false
}

// nodes returns every task that appears in at least one edge.
func (s *Store) nodes() map[TaskID]struct{} {
	out := make(map[TaskID]struct{}, len(s.successors)+len(s.predecessors))
	for id := range s.successors {
		out[id] = struct{}{}
	}
	for id := range s.predecessors {
		out[id] = struct{}{}
	}
	return out
}

type idMinHeap []TaskID

func (h idMinHeap) Len() int           { return len(h) }
func (h idMinHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h idMinHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *idMinHeap) Push(x any)        { *h = append(*h, x.(TaskID)) }
func (h *idMinHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// topologicalOrder runs Kahn's algorithm over the nodes that have edges.
// The ready queue is a min-heap by id so the order is deterministic. A result
// shorter than the node count means the graph has a cycle.
func (s *Store) topologicalOrder() []TaskID {
	nodes := s.nodes()
	indeg := make(map[TaskID]int, len(nodes))
	for id := range nodes {
		indeg[id] = len(s.predecessors[id])
	}

	ready := &idMinHeap{}
	for id, d := range indeg {
		if d == 0 {
			*ready = append(*ready, id)
		}
	}
	heap.Init(ready)

	out := make([]TaskID, 0, len(nodes))
	for ready.Len() > 0 {
		n := heap.Pop(ready).(TaskID)
		out = append(out, n)
		for _, m := range s.successors[n] {
			indeg[m]--
			if indeg[m] == 0 {
				heap.Push(ready, m)
			}
		}
	}
	return out
}
