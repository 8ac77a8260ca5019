package wsconn

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/affanhamid/editor/taskhub/internal/broadcast"
)

const (
	defaultHeartbeat = 30 * time.Second
	maxInboundFrame  = 64 * 1024
)

// Config tunes Serve.
type Config struct {
	Heartbeat   time.Duration
	SendTimeout time.Duration
	Logger      *slog.Logger
}

// Serve joins c to room and keeps it alive until the peer disconnects or ctx
// is cancelled. On return c is closed and has left every room it joined.
func Serve(ctx context.Context, hub *broadcast.Hub, c *Conn, room broadcast.RoomKey, cfg Config) error {
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = defaultHeartbeat
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = defaultWriteTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("conn", c.ID(), "room", room)

	if err := hub.Connect(c, room); err != nil {
		c.Close()
		return fmt.Errorf("join room: %w", err)
	}
	c.markConnected()
	defer func() {
		hub.DisconnectAll(c)
		c.Close()
		log.Debug("connection closed")
	}()
	log.Debug("connection joined")

	go c.readLoop()

	heartbeat, err := json.Marshal(broadcast.Event{Type: broadcast.TypeHeartbeat})
	if err != nil {
		return fmt.Errorf("marshal heartbeat: %w", err)
	}

	ticker := time.NewTicker(cfg.Heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.Done():
			return nil
		case <-ticker.C:
			sendCtx, cancel := context.WithTimeout(ctx, cfg.SendTimeout)
			err := c.Send(sendCtx, heartbeat)
			cancel()
			if err != nil {
				log.Debug("heartbeat failed", "err", err)
				return nil
			}
		}
	}
}

// readLoop drains inbound frames; clients only listen. A read error means the
// peer is gone.
func (c *Conn) readLoop() {
	c.ws.SetReadLimit(maxInboundFrame)
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			c.Close()
			return
		}
	}
}
