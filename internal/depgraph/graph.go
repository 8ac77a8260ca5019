// Package depgraph maintains the "task X depends on task Y" graph and keeps it
// acyclic on every mutation.
package depgraph

import "time"

// TaskID identifies a task. The graph never inspects task content.
type TaskID int64

// UserID identifies the caller performing a mutation.
type UserID int64

// Task is what the graph needs to know about a resolved task.
type Task struct {
	ID         TaskID  `json:"id"`
	ProjectID  int64   `json:"project_id"`
	AssigneeID *UserID `json:"assignee_id,omitempty"`
}

// Edge is a dependency between two tasks: Successor depends on Predecessor.
type Edge struct {
	Predecessor TaskID    `json:"predecessor_id"`
	Successor   TaskID    `json:"successor_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// TaskID returns the dependent task, in the task_id/depends_on_id framing.
func (e Edge) TaskID() TaskID { return e.Successor }

// DependsOnID returns the task that must complete first.
func (e Edge) DependsOnID() TaskID { return e.Predecessor }
