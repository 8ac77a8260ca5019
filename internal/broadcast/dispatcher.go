package broadcast

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

type publishJob struct {
	key RoomKey
	ev  Event
}

// Dispatcher runs hub deliveries on a fixed pool of workers so that request
// handlers never wait on slow subscribers.
type Dispatcher struct {
	hub   *Hub
	log   *slog.Logger
	queue chan publishJob
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts workers goroutines draining a queue of queueSize jobs.
func NewDispatcher(hub *Hub, workers, queueSize int, logger *slog.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	d := &Dispatcher{
		hub:   hub,
		log:   logger,
		queue: make(chan publishJob, queueSize),
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
	return d
}

// Publish queues ev for key without blocking. It fails only for an empty key,
// a full queue, or a closed dispatcher.
func (d *Dispatcher) Publish(key RoomKey, ev Event) error {
	if key == "" {
		return ErrInvalidRoomKey
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	select {
	case d.queue <- publishJob{key: key, ev: ev}:
		return nil
	default:
		d.log.Warn("dispatch queue full, dropping event", "room", key, "type", ev.Type)
		return ErrQueueFull
	}
}

// Close stops accepting events, delivers what is queued, and waits for the
// workers to exit.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for job := range d.queue {
		if err := d.deliver(job); err != nil {
			d.log.Error("broadcast failed", "room", job.key, "type", job.ev.Type, "err", err)
		}
	}
}

func (d *Dispatcher) deliver(job publishJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during delivery: %v", r)
		}
	}()
	n, err := d.hub.Publish(context.Background(), job.key, job.ev)
	if err != nil {
		return err
	}
	d.log.Debug("broadcast", "room", job.key, "type", job.ev.Type, "delivered", n)
	return nil
}
