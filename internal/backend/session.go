// Package backend owns backend subprocess lifecycles and their socket
// sessions, and fans polling out over the set of active backends.
package backend

import (
	"bytes"
	"fmt"
	"net"
	"os"
	"slices"
	"time"

	"go.uber.org/zap"
)

// State is a session lifecycle state.
type State string

const (
	Idle       State = "IDLE"
	Starting   State = "STARTING"
	Connecting State = "CONNECTING"
	Connected  State = "CONNECTED"
	Stopped    State = "STOPPED"
)

// validTransitions defines allowed session state transitions.
var validTransitions = map[State][]State{
	Idle:       {Starting, Connecting, Stopped},
	Starting:   {Connecting, Stopped},
	Connecting: {Connected, Stopped},
	Connected:  {Stopped},
	Stopped:    {},
}

const (
	// connectAttempts bounds the connect-retry loop after a backend
	// subprocess is launched.
	connectAttempts = 40
	connectInterval = 250 * time.Millisecond

	// readChunk is the size of one non-blocking socket read.
	readChunk = 4096
)

// terminator frames every wire protocol line.
var terminator = []byte("\r\n")

// Session is the socket client half of a backend: connect-with-retry,
// non-blocking framed reads, outbound command writes.
type Session struct {
	backend string
	network string // "unix" or "tcp"
	addr    string

	state  State
	conn   net.Conn
	buf    []byte
	logger *zap.Logger
}

// NewSession creates an idle session for the named backend.
func NewSession(backend, network, addr string, logger *zap.Logger) *Session {
	return &Session{
		backend: backend,
		network: network,
		addr:    addr,
		state:   Idle,
		logger:  logger,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return s.state
}

// Connected reports whether the session has a live socket.
func (s *Session) Connected() bool {
	return s.state == Connected
}

func (s *Session) transition(to State) error {
	if !slices.Contains(validTransitions[s.state], to) {
		return fmt.Errorf("invalid session transition from %s to %s", s.state, to)
	}
	s.state = to
	return nil
}

// MarkStarting records that the backend subprocess has been launched.
func (s *Session) MarkStarting() {
	_ = s.transition(Starting)
}

// Connect dials the backend socket, retrying a bounded number of times to
// give the freshly launched subprocess time to create it. Exhausting the
// retries stops the session.
func (s *Session) Connect() error {
	if s.state == Idle || s.state == Starting {
		_ = s.transition(Connecting)
	}
	if s.state != Connecting {
		return fmt.Errorf("backend %s: connect in state %s", s.backend, s.state)
	}

	var lastErr error
	for i := 0; i < connectAttempts; i++ {
		conn, err := net.DialTimeout(s.network, s.addr, connectInterval)
		if err == nil {
			s.conn = conn
			_ = s.transition(Connected)
			s.logger.Info("backend connected",
				zap.String("backend", s.backend),
				zap.String("addr", s.addr))
			return nil
		}
		lastErr = err
		time.Sleep(connectInterval)
	}
	_ = s.transition(Stopped)
	return fmt.Errorf("backend %s: could not connect to %s: %w", s.backend, s.addr, lastErr)
}

// Read returns the next framed line, without its terminator, or "" if no
// complete line is buffered. It never blocks: available socket data is
// appended to the session buffer and the buffer is scanned for the first
// terminator. Any socket error other than a read timeout stops the
// session and is returned.
func (s *Session) Read() (string, error) {
	if s.state != Connected {
		return "", nil
	}

	if line, ok := s.takeLine(); ok {
		return line, nil
	}

	if err := s.conn.SetReadDeadline(time.Now().Add(time.Millisecond)); err != nil {
		return "", s.fail(err)
	}
	chunk := make([]byte, readChunk)
	n, err := s.conn.Read(chunk)
	if n > 0 {
		s.buf = append(s.buf, chunk[:n]...)
	}
	if err != nil && !isTimeout(err) {
		return "", s.fail(err)
	}

	line, _ := s.takeLine()
	return line, nil
}

// takeLine removes and returns the first framed line from the buffer.
func (s *Session) takeLine() (string, bool) {
	i := bytes.Index(s.buf, terminator)
	if i < 0 {
		return "", false
	}
	line := string(s.buf[:i])
	s.buf = s.buf[i+len(terminator):]
	return line, true
}

// Send encodes nothing itself: it writes an already encoded command plus
// the framing terminator. A short write or broken pipe is fatal to the
// session.
func (s *Session) Send(cmd string) error {
	if s.state != Connected {
		return fmt.Errorf("backend %s: send in state %s", s.backend, s.state)
	}
	if _, err := s.conn.Write(append([]byte(cmd), terminator...)); err != nil {
		return s.fail(err)
	}
	return nil
}

// fail closes the socket and stops the session. Post-connect failures are
// not retried: the whole backend is torn down and must be restarted
// explicitly.
func (s *Session) fail(err error) error {
	s.logger.Warn("backend session error",
		zap.String("backend", s.backend),
		zap.Error(err))
	s.Close()
	return fmt.Errorf("backend %s: %w", s.backend, err)
}

// Close shuts the socket down and stops the session. Idempotent.
func (s *Session) Close() {
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	if s.state != Stopped {
		_ = s.transition(Stopped)
	}
}

func isTimeout(err error) bool {
	if os.IsTimeout(err) {
		return true
	}
	nerr, ok := err.(net.Error)
	return ok && nerr.Timeout()
}
