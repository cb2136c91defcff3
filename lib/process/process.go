// Package process launches a host executable and exposes its stdio as a byte stream.
package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
)

// Process is a running host executable.
type Process struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser

	termOnce sync.Once
	termErr  error
	waitOnce sync.Once
	waitErr  error
}

// Spawn starts path with args. The child's stderr is passed through to ours so it never
// mixes with the framed protocol on stdout.
func Spawn(ctx context.Context, path string, args ...string) (*Process, error) {
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start process: %w", err)
	}

	return &Process{
		cmd:    cmd,
		stdin:  stdin,
		stdout: stdout,
	}, nil
}

// Stdin returns the pipe connected to the child's standard input.
func (p *Process) Stdin() io.Writer {
	return p.stdin
}

// Stdout returns the pipe connected to the child's standard output.
func (p *Process) Stdout() io.Reader {
	return p.stdout
}

// PID returns the child's process id.
func (p *Process) PID() int {
	return p.cmd.Process.Pid
}

// Wait blocks until the child exits. It is safe to call more than once.
func (p *Process) Wait() error {
	p.waitOnce.Do(func() {
		if err := p.cmd.Wait(); err != nil {
			p.waitErr = fmt.Errorf("process exited with error: %w", err)
		}
	})
	return p.waitErr
}

// Terminate closes stdin, which a well-behaved host treats as end of session, then
// kills the child. It does not reap the child: once every read from Stdout has
// returned, call Wait.
func (p *Process) Terminate() error {
	p.termOnce.Do(func() {
		if err := p.stdin.Close(); err != nil {
			p.termErr = fmt.Errorf("failed to close stdin: %w", err)
		}
		if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) && p.termErr == nil {
			p.termErr = fmt.Errorf("failed to kill process: %w", err)
		}
	})
	return p.termErr
}

// Close terminates the child and reaps it. Use it only when nothing is reading Stdout.
func (p *Process) Close() error {
	err := p.Terminate()
	_ = p.Wait()
	return err
}
