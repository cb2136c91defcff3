package transport

import (
	"context"
	"fmt"

	"github.com/snowmerak/upbridge/lib/process"
)

// ProcessChannel is a StreamChannel over the stdio of a spawned host executable.
type ProcessChannel struct {
	*StreamChannel
	proc *process.Process
}

// NewProcessChannel spawns the host at path and frames the protocol over its stdio.
// Closing the channel terminates the host.
func NewProcessChannel(ctx context.Context, path string, args []string, opts ...ChannelOption) (*ProcessChannel, error) {
	proc, err := process.Spawn(ctx, path, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to launch host %s: %w", path, err)
	}

	opts = append(opts, WithCloser(closerFunc(proc.Terminate)))
	return &ProcessChannel{
		StreamChannel: NewStreamChannel(proc.Stdout(), proc.Stdin(), opts...),
		proc:          proc,
	}, nil
}

// PID returns the host process id.
func (p *ProcessChannel) PID() int {
	return p.proc.PID()
}

// Close implements Channel. The host is killed first so the reader sees end of stream,
// and reaped only after the reader has stopped touching its stdout.
func (p *ProcessChannel) Close() error {
	err := p.StreamChannel.Close()

	select {
	case <-p.reader.done():
		_ = p.proc.Wait()
	default:
		go func() {
			<-p.reader.done()
			_ = p.proc.Wait()
		}()
	}
	return err
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
