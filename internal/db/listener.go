package db

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/affanhamid/editor/taskhub/internal/broadcast"
)

// EventsChannel is the NOTIFY channel the triggers publish on.
const EventsChannel = "taskhub_events"

const reconnectDelay = 2 * time.Second

// notifyPayload is what the triggers put on EventsChannel.
type notifyPayload struct {
	Room string          `json:"room"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// StartListener forwards every EventsChannel notification to pub until ctx is
// cancelled, reconnecting when the connection drops.
func StartListener(ctx context.Context, connStr string, pub broadcast.Publisher, log *slog.Logger) {
	for {
		if ctx.Err() != nil {
			return
		}
		err := listenLoop(ctx, connStr, pub, log)
		if err == nil || ctx.Err() != nil {
			return
		}
		log.Warn("listener: connection lost, reconnecting", "err", err, "delay", reconnectDelay)
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func listenLoop(ctx context.Context, connStr string, pub broadcast.Publisher, log *slog.Logger) error {
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		return fmt.Errorf("listener connect: %w", err)
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+EventsChannel); err != nil {
		return fmt.Errorf("listen %s: %w", EventsChannel, err)
	}
	log.Info("listener: listening", "channel", EventsChannel)

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("wait for notification: %w", err)
		}
		key, ev, err := notificationToEvent(notification)
		if err != nil {
			log.Warn("listener: dropping notification", "err", err)
			continue
		}
		if err := pub.Publish(key, ev); err != nil {
			log.Warn("listener: publish failed", "room", key, "type", ev.Type, "err", err)
		}
	}
}

func notificationToEvent(n *pgconn.Notification) (broadcast.RoomKey, broadcast.Event, error) {
	var p notifyPayload
	if err := json.Unmarshal([]byte(n.Payload), &p); err != nil {
		return "", broadcast.Event{}, fmt.Errorf("decode %s payload: %w", n.Channel, err)
	}
	if p.Room == "" || p.Type == "" {
		return "", broadcast.Event{}, fmt.Errorf("%s payload missing room or type", n.Channel)
	}
	var data any
	if len(p.Data) > 0 {
		data = p.Data
	}
	return broadcast.RoomKey(p.Room), broadcast.Event{Type: p.Type, Data: data}, nil
}
