package transport

import (
	"context"
	"sync"
	"sync/atomic"
)

// readerLoop tracks the single goroutine a channel runs to call deliver. Subscribers of
// the bridge's store run on that goroutine, so a Close issued from one of them must not
// wait for the goroutine to exit. The zero value is ready to use.
type readerLoop struct {
	wg         sync.WaitGroup
	delivering atomic.Bool

	initOnce sync.Once
	stopOnce sync.Once
	stopped  chan struct{}
}

// start runs loop on a new goroutine.
func (l *readerLoop) start(loop func()) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer l.markStopped()
		loop()
	}()
}

func (l *readerLoop) deliver(ctx context.Context, deliver DeliverFunc, msg Message) error {
	l.delivering.Store(true)
	defer l.delivering.Store(false)
	return deliver(ctx, msg)
}

// wait blocks until the goroutine exits, unless a delivery is in progress. In that case
// the goroutine exits on its own once deliver returns.
func (l *readerLoop) wait() {
	if l.delivering.Load() {
		return
	}
	l.wg.Wait()
}

// markStopped closes done. Channels call it from Close when no goroutine was started.
func (l *readerLoop) markStopped() {
	ch := l.stoppedCh()
	l.stopOnce.Do(func() { close(ch) })
}

// done is closed once the goroutine has exited, or at Close when none was started.
func (l *readerLoop) done() <-chan struct{} {
	return l.stoppedCh()
}

func (l *readerLoop) stoppedCh() chan struct{} {
	l.initOnce.Do(func() { l.stopped = make(chan struct{}) })
	return l.stopped
}
