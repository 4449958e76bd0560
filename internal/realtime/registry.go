// Package realtime keeps the live WebSocket connections of one audience and
// pushes messages to them.
//
// A Registry has two rooms. The personal room holds at most one connection
// per owner id. The broadcast room holds any number of connections, each
// under an opaque connection id.
//
// Every entry is replaced or removed atomically on its own key; there is no
// registry-wide lock. A connection that turns out to be closed is dropped
// lazily by the operation that notices it, and by Sweep.
package realtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"orderflow/internal/pkg/metrics"
)

// ReasonReplaced is sent with the close frame when Register closes the
// previous socket of an id.
const ReasonReplaced = "another session was opened"

// Socket is a client connection as the registry sees it. WriteText must send
// data as one text frame and be safe for concurrent use. Close performs a
// normal closure. Implementations must be comparable, Release compares them
// with ==.
type Socket interface {
	IsOpen() bool
	WriteText(data []byte) error
	Close(reason string) error
}

type entry struct {
	socket      Socket
	connectedAt time.Time
}

// Registry is the connection table of one audience.
type Registry struct {
	audience  string
	personal  sync.Map // owner id -> *entry
	broadcast sync.Map // connection id -> *entry

	logger  *slog.Logger
	metrics metrics.Sink
	now     func() time.Time
}

type Option func(*Registry)

func WithMetrics(sink metrics.Sink) Option {
	return func(r *Registry) { r.metrics = sink }
}

// WithClock replaces time.Now for message timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

func NewRegistry(audience string, logger *slog.Logger, opts ...Option) *Registry {
	r := &Registry{
		audience: audience,
		logger:   logger.With("component", "registry", "audience", audience),
		metrics:  metrics.Noop{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) Audience() string { return r.audience }

// Register makes socket the connection of id. A previous socket for id is
// closed with a normal closure.
func (r *Registry) Register(id string, socket Socket) {
	previous, loaded := r.personal.Swap(id, &entry{socket: socket, connectedAt: r.now()})
	if !loaded {
		return
	}
	old := previous.(*entry)
	if old.socket == socket {
		return
	}
	if err := old.socket.Close(ReasonReplaced); err != nil {
		r.logger.Debug("Closing replaced connection failed", "id", id, "error", err)
	}
	r.logger.Info("Connection replaced", "id", id, "reason", ReasonReplaced)
}

// Remove drops the entry for id, whatever socket it holds.
func (r *Registry) Remove(id string) {
	r.personal.Delete(id)
}

// Release drops the entry for id only if it still holds socket. A closing
// connection calls it so it never evicts the session that replaced it.
func (r *Registry) Release(id string, socket Socket) bool {
	v, ok := r.personal.Load(id)
	if !ok {
		return false
	}
	e := v.(*entry)
	if e.socket != socket {
		return false
	}
	return r.personal.CompareAndDelete(id, e)
}

// IsConnected reports whether id has a registered socket that is open.
func (r *Registry) IsConnected(id string) bool {
	v, ok := r.personal.Load(id)
	return ok && v.(*entry).socket.IsOpen()
}

// SendTo pushes one message to the connection of id. Errors wrapping
// ErrNotConnected mean nobody received it; any other error is an encoding
// failure.
func (r *Registry) SendTo(ctx context.Context, id, eventType string, payload any) error {
	v, ok := r.personal.Load(id)
	if !ok {
		r.metrics.PushAttempted(ctx, r.audience, eventType, metrics.OutcomeNotConnected)
		return &ConnectionNotFoundError{Audience: r.audience, ID: id}
	}
	e := v.(*entry)

	if !e.socket.IsOpen() {
		r.personal.CompareAndDelete(id, e)
		r.metrics.PushAttempted(ctx, r.audience, eventType, metrics.OutcomeNotConnected)
		return &SocketNotOpenError{Audience: r.audience, ID: id}
	}

	data, err := encode(eventType, payload, r.now())
	if err != nil {
		return err
	}

	if err = e.socket.WriteText(data); err != nil {
		r.personal.CompareAndDelete(id, e)
		r.metrics.PushAttempted(ctx, r.audience, eventType, metrics.OutcomeNotConnected)
		return &SocketNotOpenError{Audience: r.audience, ID: id, Cause: err}
	}

	r.metrics.PushAttempted(ctx, r.audience, eventType, metrics.OutcomeOK)
	return nil
}

// Join adds socket to the broadcast room.
func (r *Registry) Join(connID string, socket Socket) {
	r.broadcast.Store(connID, &entry{socket: socket, connectedAt: r.now()})
}

func (r *Registry) Leave(connID string) {
	r.broadcast.Delete(connID)
}

// BroadcastResult counts the outcome of one BroadcastAll.
type BroadcastResult struct {
	Delivered int
	Removed   int
}

type member struct {
	id string
	e  *entry
}

// BroadcastAll writes one message to every connection of the broadcast
// room. Connections that are closed or fail the write are removed once every
// other connection has been written to. One push outcome is recorded per
// connection, or a single not_connected for an empty room.
func (r *Registry) BroadcastAll(ctx context.Context, eventType string, payload any) (BroadcastResult, error) {
	data, err := encode(eventType, payload, r.now())
	if err != nil {
		return BroadcastResult{}, err
	}

	var members []member
	r.broadcast.Range(func(k, v any) bool {
		members = append(members, member{id: k.(string), e: v.(*entry)})
		return true
	})

	var result BroadcastResult
	var dead []member
	for _, m := range members {
		if !m.e.socket.IsOpen() {
			dead = append(dead, m)
			continue
		}
		if err = m.e.socket.WriteText(data); err != nil {
			r.logger.DebugContext(ctx, "Broadcast write failed", "connection", m.id, "error", err)
			dead = append(dead, m)
			continue
		}
		result.Delivered++
	}

	for _, m := range dead {
		if r.broadcast.CompareAndDelete(m.id, m.e) {
			result.Removed++
		}
	}

	for range result.Delivered {
		r.metrics.PushAttempted(ctx, r.audience, eventType, metrics.OutcomeOK)
	}
	for range dead {
		r.metrics.PushAttempted(ctx, r.audience, eventType, metrics.OutcomeNotConnected)
	}
	if len(members) == 0 {
		r.metrics.PushAttempted(ctx, r.audience, eventType, metrics.OutcomeNotConnected)
	}
	return result, nil
}

// Sweep removes every entry whose socket is no longer open and returns how
// many were removed.
func (r *Registry) Sweep(ctx context.Context) int {
	removed := sweep(&r.personal) + sweep(&r.broadcast)
	r.metrics.ConnectionsSwept(ctx, r.audience, removed)
	return removed
}

func sweep(room *sync.Map) int {
	removed := 0
	room.Range(func(k, v any) bool {
		if !v.(*entry).socket.IsOpen() && room.CompareAndDelete(k, v) {
			removed++
		}
		return true
	})
	return removed
}

// Counts returns the number of entries in the personal and broadcast rooms,
// open or not.
func (r *Registry) Counts() (personal, broadcast int) {
	r.personal.Range(func(any, any) bool { personal++; return true })
	r.broadcast.Range(func(any, any) bool { broadcast++; return true })
	return personal, broadcast
}
