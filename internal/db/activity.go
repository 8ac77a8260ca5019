package db

import (
	"context"
	"log/slog"
	"time"

	"github.com/affanhamid/editor/taskhub/internal/depgraph"
)

// Activity is one audit trail entry.
type Activity struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   int64     `json:"entity_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// RecordActivity appends an audit entry.
func (q *Queries) RecordActivity(ctx context.Context, actor depgraph.UserID, action, entityType string, entityID int64) error {
	_, err := q.Pool.Exec(ctx, `
		INSERT INTO activity_logs (user_id, action, entity_type, entity_id)
		VALUES ($1, $2, $3, $4)`,
		int64(actor), action, entityType, entityID,
	)
	return err
}

// RecentActivity returns the newest entries for an entity.
func (q *Queries) RecentActivity(ctx context.Context, entityType string, entityID int64, limit int) ([]Activity, error) {
	rows, err := q.Pool.Query(ctx, `
		SELECT id, user_id, action, entity_type, entity_id, created_at
		FROM activity_logs
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3`, entityType, entityID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Activity
	for rows.Next() {
		var a Activity
		if err := rows.Scan(&a.ID, &a.UserID, &a.Action, &a.EntityType, &a.EntityID, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ActivityLog records dependency additions and removals against the
// dependent task.
type ActivityLog struct {
	Queries *Queries
	Log     *slog.Logger
}

// DependencyChanged implements depgraph.Observer.
func (a *ActivityLog) DependencyChanged(ctx context.Context, c depgraph.Change) {
	if c.Action != depgraph.ActionAdded && c.Action != depgraph.ActionRemoved {
		return
	}
	if err := a.Queries.RecordActivity(context.WithoutCancel(ctx), c.Actor, string(c.Action), "task", int64(c.Task.ID)); err != nil {
		a.Log.Error("record activity", "action", c.Action, "task", c.Task.ID, "err", err)
	}
}
