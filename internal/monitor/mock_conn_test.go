package monitor

import (
	"errors"
	"io"
	"net"
	"sync"
	"time"
)

// mockConn is a net.Conn whose Read blocks until the conn is closed or a
// read error is injected, like an idle subscriber.
type mockConn struct {
	mu         sync.Mutex
	localAddr  net.Addr
	remoteAddr net.Addr
	writeData  [][]byte
	writeErr   error
	closed     bool
	done       chan struct{}
	readErr    chan error
}

func newMockConn(port int) *mockConn {
	return &mockConn{
		localAddr:  &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 7400},
		remoteAddr: &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port},
		done:       make(chan struct{}),
		readErr:    make(chan error, 1),
	}
}

func (m *mockConn) Read(b []byte) (int, error) {
	select {
	case <-m.done:
		return 0, io.EOF
	case err := <-m.readErr:
		return 0, err
	}
}

func (m *mockConn) Write(b []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, errors.New("connection closed")
	}
	if m.writeErr != nil {
		return 0, m.writeErr
	}
	m.writeData = append(m.writeData, append([]byte(nil), b...))
	return len(b), nil
}

func (m *mockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.done)
	}
	return nil
}

func (m *mockConn) LocalAddr() net.Addr                { return m.localAddr }
func (m *mockConn) RemoteAddr() net.Addr               { return m.remoteAddr }
func (m *mockConn) SetDeadline(t time.Time) error      { return nil }
func (m *mockConn) SetReadDeadline(t time.Time) error  { return nil }
func (m *mockConn) SetWriteDeadline(t time.Time) error { return nil }

func (m *mockConn) setWriteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

func (m *mockConn) failRead(err error) {
	m.readErr <- err
}

func (m *mockConn) writes() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.writeData...)
}

func (m *mockConn) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
