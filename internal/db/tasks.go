package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/affanhamid/editor/taskhub/internal/depgraph"
)

// Resolve loads a task and checks that actor owns or belongs to its project.
// It implements depgraph.Directory.
func (q *Queries) Resolve(ctx context.Context, actor depgraph.UserID, id depgraph.TaskID) (depgraph.Task, error) {
	var (
		task     depgraph.Task
		assignee *int64
		allowed  bool
	)
	err := q.Pool.QueryRow(ctx, `
		SELECT t.id, t.project_id, t.assignee_id,
		       (p.owner_id = $2 OR EXISTS (
		           SELECT 1 FROM project_members m
		           WHERE m.project_id = p.id AND m.user_id = $2
		       ))
		FROM tasks t
		JOIN projects p ON p.id = t.project_id
		WHERE t.id = $1`, int64(id), int64(actor),
	).Scan((*int64)(&task.ID), &task.ProjectID, &assignee, &allowed)
	if errors.Is(err, pgx.ErrNoRows) {
		return depgraph.Task{}, depgraph.ErrTaskNotFound
	}
	if err != nil {
		return depgraph.Task{}, fmt.Errorf("query task %d: %w", id, err)
	}
	if !allowed {
		return depgraph.Task{}, depgraph.ErrAccessDenied
	}
	if assignee != nil {
		uid := depgraph.UserID(*assignee)
		task.AssigneeID = &uid
	}
	return task, nil
}

// DeleteTask removes a task the actor can access and returns what was removed.
// Dependency rows go with it through ON DELETE CASCADE.
func (q *Queries) DeleteTask(ctx context.Context, actor depgraph.UserID, id depgraph.TaskID) (depgraph.Task, error) {
	task, err := q.Resolve(ctx, actor, id)
	if err != nil {
		return depgraph.Task{}, err
	}
	tag, err := q.Pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, int64(id))
	if err != nil {
		return depgraph.Task{}, fmt.Errorf("delete task %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return depgraph.Task{}, depgraph.ErrTaskNotFound
	}
	return task, nil
}
