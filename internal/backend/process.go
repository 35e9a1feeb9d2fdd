package backend

import (
	"bufio"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"
)

// drainJoinTimeout bounds how long Stop waits for the output drain task.
const drainJoinTimeout = 2 * time.Second

// Process wraps one backend subprocess. Its combined stdout/stderr is
// drained by a background task into the diagnostic log so the subprocess
// never blocks on a full pipe; the drain task touches no shared state.
type Process struct {
	name   string
	cmd    *exec.Cmd
	pw     *io.PipeWriter
	done   chan struct{}
	logger *zap.Logger

	stopOnce sync.Once
}

// StartProcess launches a backend executable with the given arguments and
// working directory and starts the output drain task.
func StartProcess(name, execPath string, args []string, workDir string, logger *zap.Logger) (*Process, error) {
	cmd := exec.Command(execPath, args...)
	cmd.Dir = workDir

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		_ = pw.Close()
		_ = pr.Close()
		return nil, fmt.Errorf("start backend %s: %w", name, err)
	}

	p := &Process{
		name:   name,
		cmd:    cmd,
		pw:     pw,
		done:   make(chan struct{}),
		logger: logger,
	}
	go p.drain(pr)

	logger.Info("backend process started",
		zap.String("backend", name),
		zap.String("path", execPath),
		zap.Int("pid", cmd.Process.Pid))
	return p, nil
}

// drain forwards subprocess output lines to the diagnostic log until the
// pipe closes.
func (p *Process) drain(r *io.PipeReader) {
	defer close(p.done)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		p.logger.Info("backend output",
			zap.String("backend", p.name),
			zap.String("line", scanner.Text()))
	}
	_ = r.Close()
}

// Stop terminates the subprocess and joins the drain task, best effort.
// Idempotent and safe if the drain task already exited.
func (p *Process) Stop() {
	p.stopOnce.Do(func() {
		if p.cmd.Process != nil {
			_ = p.cmd.Process.Kill()
		}
		_ = p.cmd.Wait()
		// The process is gone; closing the write end unblocks the
		// drain task if it is still running.
		_ = p.pw.Close()
		select {
		case <-p.done:
		case <-time.After(drainJoinTimeout):
			p.logger.Warn("backend drain task did not stop",
				zap.String("backend", p.name))
		}
		p.logger.Info("backend process stopped", zap.String("backend", p.name))
	})
}
