package observer

import (
	"context"
	"sync"
	"time"
)

// firing is a debounce timer that ran out for path.
type firing struct {
	path string
	seq  uint64
}

type pendingFile struct {
	timer *time.Timer
	seq   uint64
}

// debouncer delays work on a file until no event has touched it for delay.
// It is used from a single goroutine; only the timer callbacks run apart.
type debouncer struct {
	delay   time.Duration
	ctx     context.Context
	cancel  context.CancelFunc
	pending map[string]pendingFile
	seq     uint64
	ready   chan firing
	wg      sync.WaitGroup
}

func newDebouncer(ctx context.Context, delay time.Duration) *debouncer {
	ctx, cancel := context.WithCancel(ctx)
	return &debouncer{
		delay:   delay,
		ctx:     ctx,
		cancel:  cancel,
		pending: make(map[string]pendingFile),
		ready:   make(chan firing),
	}
}

// touch restarts the wait for path and reports whether path was not pending.
func (d *debouncer) touch(path string) bool {
	p, ok := d.pending[path]
	if ok && p.timer.Stop() {
		p.timer.Reset(d.delay)
		return false
	}
	// A timer that already fired is replaced; accept drops its delivery.
	d.seq++
	seq := d.seq
	d.wg.Add(1)
	timer := time.AfterFunc(d.delay, func() {
		defer d.wg.Done()
		select {
		case d.ready <- firing{path: path, seq: seq}:
		case <-d.ctx.Done():
		}
	})
	d.pending[path] = pendingFile{timer: timer, seq: seq}
	return !ok
}

// accept reports whether f is the current timer of its path and, if so,
// forgets the path.
func (d *debouncer) accept(f firing) bool {
	p, ok := d.pending[f.path]
	if !ok || p.seq != f.seq {
		return false
	}
	delete(d.pending, f.path)
	return true
}

// stop cancels every pending timer and waits for running callbacks to return.
func (d *debouncer) stop() {
	for path, p := range d.pending {
		if p.timer.Stop() {
			d.wg.Done()
		}
		delete(d.pending, path)
	}
	d.cancel()
	d.wg.Wait()
}
