package backend

import (
	"net"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/nuqql/nuqql/internal/history"
	"github.com/nuqql/nuqql/internal/paths"
	"github.com/nuqql/nuqql/internal/roster"
)

// startGraceDelay gives a freshly spawned backend time to create its
// socket before the first connect attempt.
const startGraceDelay = time.Second

// SelfName is the name of the synthetic backend handling client-local
// commands.
const SelfName = "nuqql"

// ControlLog receives messages for a backend's control conversation.
// Implemented by the conversation layer; kept narrow to avoid a
// dependency cycle.
type ControlLog interface {
	LogMessage(*history.Message)
}

// Backend is one external messaging backend: an optional subprocess, an
// optional socket session and the accounts it exposes.
type Backend struct {
	Name string
	// Accounts maps usernames to accounts.
	Accounts map[string]*roster.Account

	network  string
	addr     string
	execPath string

	proc    *Process
	sess    *Session
	control ControlLog
	logger  *zap.Logger
}

// New creates a backend for a discovered executable. Self backends pass
// an empty execPath and never get a process or session.
func New(d Discovered, logger *zap.Logger) *Backend {
	return &Backend{
		Name:     d.Name,
		Accounts: make(map[string]*roster.Account),
		network:  d.Network,
		addr:     d.Addr,
		execPath: d.Path,
		logger:   logger,
	}
}

// NewSelf creates the synthetic self backend.
func NewSelf(logger *zap.Logger) *Backend {
	return &Backend{
		Name:     SelfName,
		Accounts: make(map[string]*roster.Account),
		logger:   logger,
	}
}

// SetControl binds the backend's control conversation log sink.
func (b *Backend) SetControl(c ControlLog) {
	b.control = c
}

// Session returns the backend's socket session, or nil for the self
// backend.
func (b *Backend) Session() *Session {
	return b.sess
}

// Self reports whether this is the synthetic client-local backend.
func (b *Backend) Self() bool {
	return b.execPath == "" && b.addr == ""
}

// Start launches the backend subprocess (if any), waits the settle grace
// delay and runs the bounded connect-retry. A connect failure stops the
// backend and is reported to its control conversation.
func (b *Backend) Start() error {
	if b.Self() {
		return nil
	}

	b.sess = NewSession(b.Name, b.network, b.addr, b.logger)

	if b.execPath != "" {
		if err := paths.EnsureBackendDir(b.Name); err != nil {
			return err
		}
		dir := paths.BackendDir(b.Name)
		args := []string{"--af", "unix", "--dir", dir, "--sockfile", filepath.Base(b.addr)}
		if b.network == "tcp" {
			host, port, _ := net.SplitHostPort(b.addr)
			args = []string{"--af", "inet", "--address", host, "--port", port}
		}
		proc, err := StartProcess(b.Name, b.execPath, args, dir, b.logger)
		if err != nil {
			return err
		}
		b.proc = proc
		b.sess.MarkStarting()
		time.Sleep(startGraceDelay)
	}

	if err := b.sess.Connect(); err != nil {
		b.LogControl("could not connect: " + err.Error())
		b.Stop()
		return err
	}
	return nil
}

// Connected reports whether the backend has a live session.
func (b *Backend) Connected() bool {
	return b.sess != nil && b.sess.Connected()
}

// Send writes one encoded command to the backend. On failure the backend
// is stopped and the error reported to its control conversation.
func (b *Backend) Send(cmd string) {
	if !b.Connected() {
		return
	}
	if err := b.sess.Send(cmd); err != nil {
		b.LogControl("send failed: " + err.Error())
		b.Stop()
	}
}

// AccountByID finds an account by its backend-assigned id.
func (b *Backend) AccountByID(id string) *roster.Account {
	for _, acc := range b.Accounts {
		if acc.ID == id {
			return acc
		}
	}
	return nil
}

// LogControl surfaces a backend-level message in the backend's control
// conversation, falling back to the diagnostic log.
func (b *Backend) LogControl(text string) {
	msg := history.NewMessage(time.Now(), b.Name, text, false)
	msg.IsRead = false
	if b.control != nil {
		b.control.LogMessage(msg)
		return
	}
	b.logger.Info("backend message",
		zap.String("backend", b.Name),
		zap.String("text", text))
}

// Stop tears the backend down: close the socket, terminate the
// subprocess, drop the accounts. Idempotent.
func (b *Backend) Stop() {
	if b.sess != nil {
		b.sess.Close()
	}
	if b.proc != nil {
		b.proc.Stop()
		b.proc = nil
	}
	b.Accounts = make(map[string]*roster.Account)
}
