package depgraph

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Directory resolves task ids to tasks the actor may touch. It returns
// ErrTaskNotFound or ErrAccessDenied (possibly wrapped) on rejection.
type Directory interface {
	Resolve(ctx context.Context, actor UserID, id TaskID) (Task, error)
}

// Action names a graph mutation. The values double as activity-log actions.
type Action string

const (
	ActionAdded        Action = "added_dependency"
	ActionRemoved      Action = "removed_dependency"
	ActionTaskDetached Action = "detached_task"
)

// Change describes a committed mutation.
type Change struct {
	Action Action
	Actor  UserID
	// Task is the dependent task for add/remove and the detached task for
	// ActionTaskDetached.
	Task  Task
	Edges []Edge
}

// Observer is told about every committed mutation, after the graph lock has
// been released. Changes are delivered one at a time in commit order.
// Observers must not call back into the Service synchronously.
type Observer interface {
	DependencyChanged(ctx context.Context, c Change)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, c Change)

func (f ObserverFunc) DependencyChanged(ctx context.Context, c Change) { f(ctx, c) }

// Service guards a Store with a single RWMutex. The cycle check and the
// insertion in AddDependency happen under the same write lock.
type Service struct {
	mu        sync.RWMutex
	store     *Store
	deleted   map[TaskID]struct{}
	dir       Directory
	observers []Observer
	now       func() time.Time

	outbox outbox
}

// NewService creates a service over an empty edge set.
func NewService(dir Directory, observers ...Observer) *Service {
	return &Service{
		store:     NewStore(),
		deleted:   make(map[TaskID]struct{}),
		dir:       dir,
		observers: observers,
		now:       time.Now,
	}
}

// Observe registers another observer. It is meant for startup wiring only.
func (s *Service) Observe(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// Load replaces the edge set with a previously persisted snapshot.
func (s *Service) Load(edges []Edge) error {
	store := NewStore()
	if err := store.Load(edges); err != nil {
		return err
	}
	s.mu.Lock()
	s.store = store
	s.mu.Unlock()
	return nil
}

// AddDependency records that taskID depends on dependsOnID.
func (s *Service) AddDependency(ctx context.Context, actor UserID, taskID, dependsOnID TaskID) error {
	if taskID == dependsOnID {
		return rejectf(ErrSelfDependency, taskID, dependsOnID)
	}
	task, err := s.resolve(ctx, actor, taskID, dependsOnID, taskID)
	if err != nil {
		return err
	}
	if _, err := s.resolve(ctx, actor, taskID, dependsOnID, dependsOnID); err != nil {
		return err
	}

	s.mu.Lock()
	// Either task may have been deleted while it was being resolved.
	if s.isDeleted(taskID) || s.isDeleted(dependsOnID) {
		s.mu.Unlock()
		return rejectf(ErrTaskNotFound, taskID, dependsOnID)
	}
	if s.store.Has(dependsOnID, taskID) {
		s.mu.Unlock()
		return rejectf(ErrDuplicateDependency, taskID, dependsOnID)
	}
	// The new edge dependsOn -> task closes a cycle iff task already reaches dependsOn.
	if s.store.reaches(taskID, dependsOnID) {
		s.mu.Unlock()
		return rejectf(ErrCircularDependency, taskID, dependsOnID)
	}
	e := Edge{Predecessor: dependsOnID, Successor: taskID, CreatedAt: s.now().UTC()}
	s.store.Insert(e)
	seq := s.outbox.push(ctx, s.observers, Change{Action: ActionAdded, Actor: actor, Task: task, Edges: []Edge{e}})
	s.mu.Unlock()

	s.outbox.flush(seq)
	return nil
}

// RemoveDependency deletes the edge recorded by AddDependency(taskID, dependsOnID).
func (s *Service) RemoveDependency(ctx context.Context, actor UserID, taskID, dependsOnID TaskID) error {
	task, err := s.resolve(ctx, actor, taskID, dependsOnID, taskID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	e, ok := s.store.Delete(dependsOnID, taskID)
	if !ok {
		s.mu.Unlock()
		return rejectf(ErrDependencyNotFound, taskID, dependsOnID)
	}
	seq := s.outbox.push(ctx, s.observers, Change{Action: ActionRemoved, Actor: actor, Task: task, Edges: []Edge{e}})
	s.mu.Unlock()

	s.outbox.flush(seq)
	return nil
}

// RemoveAllEdgesForTask drops every edge that references taskID and refuses
// new edges to it from then on. The task deletion path calls it after the
// task row is gone; it never fails.
func (s *Service) RemoveAllEdgesForTask(ctx context.Context, actor UserID, taskID TaskID) []Edge {
	s.mu.Lock()
	s.deleted[taskID] = struct{}{}
	removed := s.store.RemoveTask(taskID)
	if len(removed) == 0 {
		s.mu.Unlock()
		return nil
	}
	seq := s.outbox.push(ctx, s.observers, Change{Action: ActionTaskDetached, Actor: actor, Task: Task{ID: taskID}, Edges: removed})
	s.mu.Unlock()

	s.outbox.flush(seq)
	return removed
}

func (s *Service) isDeleted(id TaskID) bool {
	_, ok := s.deleted[id]
	return ok
}

// GetDependencies returns the tasks taskID waits on.
func (s *Service) GetDependencies(taskID TaskID) []TaskID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.Predecessors(taskID)
}

// GetBlocking returns the tasks waiting on taskID.
func (s *Service) GetBlocking(taskID TaskID) []TaskID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.Successors(taskID)
}

// Edges returns a snapshot of every edge.
func (s *Service) Edges() []Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.Edges()
}

// Len returns the number of edges.
func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.Len()
}

// TopologicalOrder returns the tasks that have edges, predecessors first.
// It fails with ErrCircularDependency if the edge set is cyclic, which the
// service never allows.
func (s *Service) TopologicalOrder() ([]TaskID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	order := s.store.topologicalOrder()
	if len(order) != len(s.store.nodes()) {
		return nil, ErrCircularDependency
	}
	return order, nil
}

func (s *Service) resolve(ctx context.Context, actor UserID, taskID, dependsOnID, id TaskID) (Task, error) {
	if s.dir == nil {
		return Task{ID: id}, nil
	}
	t, err := s.dir.Resolve(ctx, actor, id)
	switch {
	case err == nil:
		return t, nil
	case errors.Is(err, ErrTaskNotFound):
		return Task{}, rejectf(ErrTaskNotFound, taskID, dependsOnID)
	case errors.Is(err, ErrAccessDenied):
		return Task{}, rejectf(ErrAccessDenied, taskID, dependsOnID)
	default:
		return Task{}, fmt.Errorf("resolve task %d: %w", id, err)
	}
}
