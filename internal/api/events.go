package api

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/affanhamid/editor/taskhub/internal/broadcast"
	"github.com/affanhamid/editor/taskhub/internal/db"
	"github.com/affanhamid/editor/taskhub/internal/depgraph"
)

// Notifier stores inbox notifications.
type Notifier interface {
	CreateNotification(ctx context.Context, n db.Notification) (int64, error)
}

type dependencyData struct {
	TaskID      depgraph.TaskID `json:"task_id"`
	DependsOnID depgraph.TaskID `json:"depends_on_id"`
	ProjectID   int64           `json:"project_id"`
}

// DependencyEvents fans graph mutations out to the project room and notifies
// the assignee of a newly blocked task. Notifier may be nil.
type DependencyEvents struct {
	Publisher broadcast.Publisher
	Notifier  Notifier
	Log       *slog.Logger
}

func (d *DependencyEvents) DependencyChanged(ctx context.Context, c depgraph.Change) {
	var typ string
	switch c.Action {
	case depgraph.ActionAdded:
		typ = broadcast.TypeDependencyAdded
	case depgraph.ActionRemoved:
		typ = broadcast.TypeDependencyRemoved
	default:
		// Task deletion is announced by the task trigger.
		return
	}

	room := broadcast.ProjectRoom(c.Task.ProjectID)
	for _, e := range c.Edges {
		ev := broadcast.Event{Type: typ, Data: dependencyData{
			TaskID:      e.TaskID(),
			DependsOnID: e.DependsOnID(),
			ProjectID:   c.Task.ProjectID,
		}}
		if err := d.Publisher.Publish(room, ev); err != nil {
			d.Log.Warn("publish dependency event", "room", room, "type", typ, "err", err)
		}
	}

	if c.Action != depgraph.ActionAdded || d.Notifier == nil {
		return
	}
	assignee := c.Task.AssigneeID
	if assignee == nil || *assignee == c.Actor {
		return
	}
	for _, e := range c.Edges {
		_, err := d.Notifier.CreateNotification(context.WithoutCancel(ctx), db.Notification{
			UserID:     *assignee,
			Title:      "Task blocked",
			Message:    fmt.Sprintf("Task #%d now depends on task #%d", e.TaskID(), e.DependsOnID()),
			EntityType: "task",
			EntityID:   int64(e.TaskID()),
			Link:       fmt.Sprintf("/project/%d?task=%d", c.Task.ProjectID, e.TaskID()),
		})
		if err != nil {
			d.Log.Warn("create notification", "user", *assignee, "task", e.TaskID(), "err", err)
		}
	}
}
