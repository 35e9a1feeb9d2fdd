package backend

import (
	"net"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
)

// testServer listens on a unix socket in a temp dir and exposes the
// accepted connection.
func testServer(t *testing.T) (string, <-chan net.Conn) {
	t.Helper()
	sock := filepath.Join(t.TempDir(), "srv.sock")
	ln, err := net.Listen("unix", sock)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		accepted <- conn
	}()
	return sock, accepted
}

func connect(t *testing.T, sock string, accepted <-chan net.Conn) (*Session, net.Conn) {
	t.Helper()
	s := NewSession("testd", "unix", sock, zap.NewNop())
	if err := s.Connect(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Close)

	select {
	case conn := <-accepted:
		t.Cleanup(func() { _ = conn.Close() })
		return s, conn
	case <-time.After(time.Second):
		t.Fatal("server never accepted")
		return nil, nil
	}
}

func TestSessionConnectAndState(t *testing.T) {
	sock, accepted := testServer(t)
	s, _ := connect(t, sock, accepted)
	if s.State() != Connected {
		t.Errorf("state = %s, want %s", s.State(), Connected)
	}
	s.Close()
	if s.State() != Stopped {
		t.Errorf("state after close = %s, want %s", s.State(), Stopped)
	}
}

func TestSessionReadFramedLines(t *testing.T) {
	sock, accepted := testServer(t)
	s, server := connect(t, sock, accepted)

	if _, err := server.Write([]byte("info: one\r\ninfo: two\r\ninfo: par")); err != nil {
		t.Fatal(err)
	}

	// One complete line per poll; the partial line stays buffered.
	want := []string{"info: one", "info: two"}
	for _, w := range want {
		got := pollLine(t, s)
		if got != w {
			t.Errorf("line = %q, want %q", got, w)
		}
	}
	if line, err := s.Read(); err != nil || line != "" {
		t.Errorf("partial line returned %q, %v", line, err)
	}

	if _, err := server.Write([]byte("tial\r\n")); err != nil {
		t.Fatal(err)
	}
	if got := pollLine(t, s); got != "info: partial" {
		t.Errorf("completed line = %q", got)
	}
}

// pollLine reads until a line shows up, bounded by a deadline.
func pollLine(t *testing.T, s *Session) string {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		line, err := s.Read()
		if err != nil {
			t.Fatal(err)
		}
		if line != "" {
			return line
		}
	}
	t.Fatal("no line before deadline")
	return ""
}

func TestSessionReadNeverBlocks(t *testing.T) {
	sock, accepted := testServer(t)
	s, _ := connect(t, sock, accepted)

	start := time.Now()
	if line, err := s.Read(); err != nil || line != "" {
		t.Errorf("idle read returned %q, %v", line, err)
	}
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Errorf("idle read took %v", elapsed)
	}
}

func TestSessionSendAppendsTerminator(t *testing.T) {
	sock, accepted := testServer(t)
	s, server := connect(t, sock, accepted)

	if err := s.Send("account 0 buddies"); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 64)
	_ = server.SetReadDeadline(time.Now().Add(time.Second))
	n, err := server.Read(buf)
	if err != nil {
		t.Fatal(err)
	}
	if got := string(buf[:n]); got != "account 0 buddies\r\n" {
		t.Errorf("wire bytes = %q", got)
	}
}

func TestSessionPeerCloseStopsSession(t *testing.T) {
	sock, accepted := testServer(t)
	s, server := connect(t, sock, accepted)
	_ = server.Close()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, err := s.Read(); err != nil {
			if s.State() != Stopped {
				t.Errorf("state after read error = %s, want %s", s.State(), Stopped)
			}
			return
		}
	}
	t.Fatal("read never failed after peer close")
}

func TestSessionSendWhenStopped(t *testing.T) {
	s := NewSession("testd", "unix", "/nonexistent", zap.NewNop())
	s.Close()
	if err := s.Send("cmd"); err == nil {
		t.Error("send on stopped session did not error")
	}
	if line, err := s.Read(); err != nil || line != "" {
		t.Errorf("read on stopped session returned %q, %v", line, err)
	}
}

func TestSessionStateTransitions(t *testing.T) {
	tests := []struct {
		from, to State
		ok       bool
	}{
		{Idle, Starting, true},
		{Idle, Connecting, true},
		{Starting, Connecting, true},
		{Connecting, Connected, true},
		{Connected, Stopped, true},
		{Idle, Connected, false},
		{Stopped, Connecting, false},
		{Connected, Connecting, false},
	}
	for _, tt := range tests {
		s := &Session{state: tt.from, logger: zap.NewNop()}
		err := s.transition(tt.to)
		if tt.ok && err != nil {
			t.Errorf("transition %s -> %s: %v", tt.from, tt.to, err)
		}
		if !tt.ok && err == nil {
			t.Errorf("transition %s -> %s should fail", tt.from, tt.to)
		}
	}
}
