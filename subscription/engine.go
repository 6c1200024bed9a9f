package subscription

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/c360/vssbroker/pkg/buffer"
	"github.com/c360/vssbroker/pkg/worker"
)

// DefaultQueueCapacity is the default bound on buffered, not-yet-delivered
// notifications (signals.queue_capacity).
const DefaultQueueCapacity = 10_000

// SendFunc delivers an encoded notification payload to one connection. It is
// supplied by the transport (gateway/websocket) that owns the live socket.
type SendFunc func(connID uint32, payload []byte) error

// Notification is one signal update destined for one subscriber.
type Notification struct {
	WireSubID uint32
	ConnID    uint32
	Value     any
	Timestamp int64
}

// Engine is the subscription fan-out: an Index of who's subscribed to what,
// plus a single-worker delivery pump fed by a bounded, drop-oldest queue so
// a burst of writes never grows memory unbounded and never blocks the
// signal tree's writer.
type Engine struct {
	Index *Index

	buf  buffer.Buffer[Notification]
	pool *worker.Pool[Notification]
	send SendFunc

	wake    chan struct{}
	stop    chan struct{}
	wg      sync.WaitGroup
	started bool
}

// NewEngine builds an Engine. mask configures sub-id packing; queueCapacity
// <= 0 selects DefaultQueueCapacity.
func NewEngine(mask uint32, queueCapacity int, send SendFunc) (*Engine, error) {
	if queueCapacity <= 0 {
		queueCapacity = DefaultQueueCapacity
	}

	e := &Engine{
		Index: NewIndex(mask),
		send:  send,
		wake:  make(chan struct{}, 1),
		stop:  make(chan struct{}),
	}

	buf, err := buffer.NewCircularBuffer[Notification](queueCapacity, buffer.WithOverflowPolicy[Notification](buffer.DropOldest))
	if err != nil {
		return nil, err
	}
	e.buf = buf
	e.pool = worker.NewPool[Notification](1, queueCapacity, e.deliver)
	return e, nil
}

// Start launches the delivery worker and the pump loop that drains the
// queue into it.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.pool.Start(ctx); err != nil {
		return err
	}
	e.started = true
	e.wg.Add(1)
	go e.pumpLoop(ctx)
	return nil
}

// Stop drains any remaining buffered notifications and stops the worker.
func (e *Engine) Stop(timeout time.Duration) error {
	if !e.started {
		return nil
	}
	close(e.stop)
	e.wg.Wait()
	return e.pool.Stop(timeout)
}

// Publish is the callback signaltree.Store invokes, after releasing its
// write lock, for every successful leaf write. It never blocks on delivery:
// entries are buffered and the pump drains them asynchronously.
func (e *Engine) Publish(signalUUID string, value any, timestamp int64) {
	subs := e.Index.Subscribers(signalUUID)
	if len(subs) == 0 {
		return
	}
	for wire, connID := range subs {
		_ = e.buf.Write(Notification{WireSubID: wire, ConnID: connID, Value: value, Timestamp: timestamp})
	}
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *Engine) pumpLoop(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-e.stop:
			e.drain()
			return
		case <-ctx.Done():
			return
		case <-e.wake:
			e.drain()
		case <-ticker.C:
			e.drain()
		}
	}
}

func (e *Engine) drain() {
	for {
		n, ok := e.buf.Read()
		if !ok {
			return
		}
		if err := e.pool.Submit(n); err != nil {
			// Worker's own queue is full; the notification is lost rather
			// than risk blocking the pump against a stalled connection.
			continue
		}
	}
}

func (e *Engine) deliver(_ context.Context, n Notification) error {
	payload, err := json.Marshal(map[string]any{
		"action":         "subscription",
		"subscriptionId": n.WireSubID,
		"value":          n.Value,
		"timestamp":      n.Timestamp,
	})
	if err != nil {
		return err
	}
	return e.send(n.ConnID, payload)
}
