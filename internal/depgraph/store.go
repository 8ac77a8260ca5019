package depgraph

import (
	"fmt"
	"sort"
)

type edgeKey struct {
	pred TaskID
	succ TaskID
}

// Store is the adjacency-list edge set. It is not safe for concurrent use;
// Service serialises access to it.
type Store struct {
	edges        map[edgeKey]Edge
	successors   map[TaskID][]TaskID
	predecessors map[TaskID][]TaskID
}

// NewStore creates an empty edge set.
func NewStore() *Store {
	return &Store{
		edges:        make(map[edgeKey]Edge),
		successors:   make(map[TaskID][]TaskID),
		predecessors: make(map[TaskID][]TaskID),
	}
}

// Has reports whether the edge pred -> succ exists.
func (s *Store) Has(pred, succ TaskID) bool {
	_, ok := s.edges[edgeKey{pred, succ}]
	return ok
}

// Insert adds e. It returns false if the pair is already present.
func (s *Store) Insert(e Edge) bool {
	k := edgeKey{e.Predecessor, e.Successor}
	if _, ok := s.edges[k]; ok {
		return false
	}
	s.edges[k] = e
	s.successors[e.Predecessor] = append(s.successors[e.Predecessor], e.Successor)
	s.predecessors[e.Successor] = append(s.predecessors[e.Successor], e.Predecessor)
	return true
}

// Delete removes pred -> succ and returns the removed edge.
func (s *Store) Delete(pred, succ TaskID) (Edge, bool) {
	k := edgeKey{pred, succ}
	e, ok := s.edges[k]
	if !ok {
		return Edge{}, false
	}
	delete(s.edges, k)
	s.successors[pred] = removeID(s.successors[pred], succ)
	if len(s.successors[pred]) == 0 {
		delete(s.successors, pred)
	}
	s.predecessors[succ] = removeID(s.predecessors[succ], pred)
	if len(s.predecessors[succ]) == 0 {
		delete(s.predecessors, succ)
	}
	return e, true
}

// RemoveTask deletes every edge in which id takes part, in either role.
func (s *Store) RemoveTask(id TaskID) []Edge {
	var removed []Edge
	for _, succ := range append([]TaskID(nil), s.successors[id]...) {
		if e, ok := s.Delete(id, succ); ok {
			removed = append(removed, e)
		}
	}
	for _, pred := range append([]TaskID(nil), s.predecessors[id]...) {
		if e, ok := s.Delete(pred, id); ok {
			removed = append(removed, e)
		}
	}
	return removed
}

// Successors returns the tasks waiting on id, in insertion order.
func (s *Store) Successors(id TaskID) []TaskID {
	return append([]TaskID(nil), s.successors[id]...)
}

// Predecessors returns the tasks id waits on, in insertion order.
func (s *Store) Predecessors(id TaskID) []TaskID {
	return append([]TaskID(nil), s.predecessors[id]...)
}

// Len returns the number of edges.
func (s *Store) Len() int { return len(s.edges) }

// Edges returns every edge ordered by creation time, then by ids.
func (s *Store) Edges() []Edge {
	out := make([]Edge, 0, len(s.edges))
	for _, e := range s.edges {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		if out[i].Predecessor != out[j].Predecessor {
			return out[i].Predecessor < out[j].Predecessor
		}
		return out[i].Successor < out[j].Successor
	})
	return out
}

// Load bulk-inserts edges into an empty store. Self-loops, duplicates and
// cycles are rejected and leave the store empty.
func (s *Store) Load(edges []Edge) error {
	if len(s.edges) != 0 {
		return fmt.Errorf("load edges: store is not empty")
	}
	for _, e := range edges {
		if e.Predecessor == e.Successor {
			s.reset()
			return rejectf(ErrSelfDependency, e.Successor, e.Predecessor)
		}
		if !s.Insert(e) {
			s.reset()
			return rejectf(ErrDuplicateDependency, e.Successor, e.Predecessor)
		}
	}
	if order := s.topologicalOrder(); len(order) != len(s.nodes()) {
		s.reset()
		return fmt.Errorf("load edges: %w", ErrCircularDependency)
	}
	return nil
}

func (s *Store) reset() {
	*s = *NewStore()
}

func removeID(ids []TaskID, id TaskID) []TaskID {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
