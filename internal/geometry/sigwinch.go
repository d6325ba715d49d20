package geometry

import (
	"os"
	"os/signal"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// ResizeWatcher turns SIGWINCH delivery into an async-signal-safe flag
// that a single consumer goroutine can poll/drain via Changed, instead of
// doing work inside the signal handler itself.
type ResizeWatcher struct {
	sig     chan os.Signal
	pending atomic.Bool
	done    chan struct{}
}

// NewResizeWatcher registers for SIGWINCH and returns a watcher. Call
// Stop to unregister.
func NewResizeWatcher() *ResizeWatcher {
	w := &ResizeWatcher{
		sig:  make(chan os.Signal, 1),
		done: make(chan struct{}),
	}
	signal.Notify(w.sig, unix.SIGWINCH)
	go w.run()
	return w
}

func (w *ResizeWatcher) run() {
	for {
		select {
		case <-w.sig:
			w.pending.Store(true)
		case <-w.done:
			return
		}
	}
}

// Changed reports and clears the pending-resize flag. The event loop
// should poll this once per select iteration (or whenever a dedicated
// notify channel wakes it) rather than acting on every raw signal.
func (w *ResizeWatcher) Changed() bool {
	return w.pending.Swap(false)
}

// Stop unregisters the signal handler and stops the internal goroutine.
func (w *ResizeWatcher) Stop() {
	signal.Stop(w.sig)
	close(w.done)
}
