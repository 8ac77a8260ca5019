package db

import (
	"context"
	"fmt"

	"github.com/affanhamid/editor/taskhub/internal/depgraph"
)

// Notification is an inbox entry for one user.
type Notification struct {
	UserID     depgraph.UserID
	Title      string
	Message    string
	EntityType string
	EntityID   int64
	Link       string
}

// CreateNotification stores n and returns its id. The notification trigger
// pushes it to the user's room.
func (q *Queries) CreateNotification(ctx context.Context, n Notification) (int64, error) {
	var id int64
	err := q.Pool.QueryRow(ctx, `
		INSERT INTO notifications (user_id, title, message, entity_type, entity_id, link)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, NULLIF($6, ''))
		RETURNING id`,
		int64(n.UserID), n.Title, n.Message, n.EntityType, n.EntityID, n.Link,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert notification: %w", err)
	}
	return id, nil
}
