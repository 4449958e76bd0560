package ws

import (
	"encoding/binary"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/websocket"

	"orderflow/internal/realtime"
)

var errSocketClosed = errors.New("socket is closed")

const (
	closeNormal = 1000
	closeGrace  = 2 * time.Second
)

// socket adapts a server-side websocket.Conn to realtime.Socket. Writes are
// serialized so concurrent pushes never interleave frames.
type socket struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	mu     sync.Mutex
	closed atomic.Bool
}

var _ realtime.Socket = (*socket)(nil)

func newSocket(conn *websocket.Conn, writeTimeout time.Duration) *socket {
	return &socket{conn: conn, writeTimeout: writeTimeout}
}

func (s *socket) IsOpen() bool { return !s.closed.Load() }

func (s *socket) WriteText(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return errSocketClosed
	}
	if s.writeTimeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
	if err := websocket.Message.Send(s.conn, string(data)); err != nil {
		s.closed.Store(true)
		return err
	}
	return nil
}

// Close sends a normal closure frame carrying reason. The handler's read
// loop ends once the peer answers or after closeGrace, and the server then
// drops the transport.
//
// A write stuck on a slow peer holds the write lock. Close does not wait
// for it: the expired deadline fails the write and the transport is
// dropped once the write returned.
func (s *socket) Close(reason string) error {
	if s.closed.Swap(true) {
		return nil
	}
	if !s.mu.TryLock() {
		_ = s.conn.SetWriteDeadline(time.Now())
		go func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			_ = s.conn.Close()
		}()
		return nil
	}
	defer s.mu.Unlock()

	_ = s.conn.SetWriteDeadline(time.Now().Add(closeGrace))
	if err := writeCloseFrame(s.conn, reason); err != nil {
		return errors.Join(err, s.conn.Close())
	}
	return s.conn.SetReadDeadline(time.Now().Add(closeGrace))
}

func writeCloseFrame(conn *websocket.Conn, reason string) error {
	payload := make([]byte, 2, 2+len(reason))
	binary.BigEndian.PutUint16(payload, closeNormal)
	// control frame payloads are limited to 125 bytes
	payload = append(payload, reason[:min(len(reason), 123)]...)

	conn.PayloadType = websocket.CloseFrame
	_, err := conn.Write(payload)
	return err
}

// markClosed records that the peer went away.
func (s *socket) markClosed() {
	s.closed.Store(true)
}
