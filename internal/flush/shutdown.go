package flush

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/covmap/covmap/internal/logger"
)

// HookTimeout bounds how long shutdown hooks may run when a termination
// signal arrives, so the process still honors the signal promptly.
const HookTimeout = 2 * time.Second

// Hook is a shutdown callback. Hooks run at most once each, in
// registration order, however shutdown is triggered.
type Hook func()

// Hooks is an ordered shutdown-hook registry with single-invocation
// semantics per hook.
type Hooks struct {
	mu    sync.Mutex
	hooks []*registered
	sigCh chan os.Signal
}

type registered struct {
	once sync.Once
	fn   Hook
}

// NewHooks returns an empty hook registry.
func NewHooks() *Hooks {
	return &Hooks{}
}

// Register appends a hook.
func (h *Hooks) Register(fn Hook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, &registered{fn: fn})
}

// Run fires every hook once, in registration order. Safe to call multiple
// times and from multiple paths (deferred exit, signal handler); each hook
// still runs at most once.
func (h *Hooks) Run() {
	h.mu.Lock()
	hooks := make([]*registered, len(h.hooks))
	copy(hooks, h.hooks)
	h.mu.Unlock()

	for _, r := range hooks {
		r.once.Do(r.fn)
	}
}

// HandleSignals arranges for hooks to run when one of sigs arrives, then
// restores the default disposition and re-delivers the signal so the
// process terminates with the semantics a process manager expects. With no
// signals given it watches SIGINT, SIGTERM and SIGHUP.
func (h *Hooks) HandleSignals(sigs ...os.Signal) {
	if len(sigs) == 0 {
		sigs = []os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP}
	}

	h.mu.Lock()
	if h.sigCh != nil {
		h.mu.Unlock()
		return
	}
	h.sigCh = make(chan os.Signal, 1)
	h.mu.Unlock()

	signal.Notify(h.sigCh, sigs...)
	go func() {
		sig, ok := <-h.sigCh
		if !ok {
			return
		}

		// Hooks must not stall termination. Run them in a goroutine and
		// give up after the timeout; an atomic partial flush beats hanging.
		done := make(chan struct{})
		go func() {
			h.Run()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(HookTimeout):
			logger.Warn("shutdown hooks timed out after %v on %v", HookTimeout, sig)
		}

		signal.Reset(sig)
		if p, err := os.FindProcess(os.Getpid()); err == nil {
			_ = p.Signal(sig)
		}
	}()
}

// StopSignals detaches the signal handler, for embedders that tear the
// engine down mid-process.
func (h *Hooks) StopSignals() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sigCh != nil {
		signal.Stop(h.sigCh)
		close(h.sigCh)
		h.sigCh = nil
	}
}
