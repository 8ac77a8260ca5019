package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/affanhamid/editor/taskhub/internal/depgraph"
)

// LoadEdges reads every persisted dependency, oldest first.
func (q *Queries) LoadEdges(ctx context.Context) ([]depgraph.Edge, error) {
	rows, err := q.Pool.Query(ctx, `
		SELECT depends_on_id, task_id, created_at
		FROM task_dependencies
		ORDER BY created_at, depends_on_id, task_id`)
	if err != nil {
		return nil, fmt.Errorf("query dependencies: %w", err)
	}
	defer rows.Close()

	var edges []depgraph.Edge
	for rows.Next() {
		var e depgraph.Edge
		if err := rows.Scan((*int64)(&e.Predecessor), (*int64)(&e.Successor), &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan dependency: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// InsertEdge persists e. Re-inserting an existing pair is a no-op.
func (q *Queries) InsertEdge(ctx context.Context, e depgraph.Edge) error {
	_, err := q.Pool.Exec(ctx, `
		INSERT INTO task_dependencies (task_id, depends_on_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (task_id, depends_on_id) DO NOTHING`,
		int64(e.Successor), int64(e.Predecessor), e.CreatedAt,
	)
	return err
}

// DeleteEdge removes a persisted dependency.
func (q *Queries) DeleteEdge(ctx context.Context, e depgraph.Edge) error {
	_, err := q.Pool.Exec(ctx,
		`DELETE FROM task_dependencies WHERE task_id = $1 AND depends_on_id = $2`,
		int64(e.Successor), int64(e.Predecessor),
	)
	return err
}

// DeleteEdgesForTask removes every persisted dependency touching id.
func (q *Queries) DeleteEdgesForTask(ctx context.Context, id depgraph.TaskID) error {
	_, err := q.Pool.Exec(ctx,
		`DELETE FROM task_dependencies WHERE task_id = $1 OR depends_on_id = $1`,
		int64(id),
	)
	return err
}

// Journal mirrors committed graph mutations into task_dependencies so the
// graph can be reloaded on restart.
type Journal struct {
	Queries *Queries
	Log     *slog.Logger
}

// DependencyChanged implements depgraph.Observer. Write failures are logged.
// The write outlives the request: the graph has already changed.
func (j *Journal) DependencyChanged(ctx context.Context, c depgraph.Change) {
	ctx = context.WithoutCancel(ctx)
	var err error
	switch c.Action {
	case depgraph.ActionAdded:
		for _, e := range c.Edges {
			if err = j.Queries.InsertEdge(ctx, e); err != nil {
				break
			}
		}
	case depgraph.ActionRemoved:
		for _, e := range c.Edges {
			if err = j.Queries.DeleteEdge(ctx, e); err != nil {
				break
			}
		}
	case depgraph.ActionTaskDetached:
		err = j.Queries.DeleteEdgesForTask(ctx, c.Task.ID)
	}
	if err != nil {
		j.Log.Error("journal dependency change", "action", c.Action, "task", c.Task.ID, "err", err)
	}
}
