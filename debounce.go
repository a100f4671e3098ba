package social

import (
	"sync"
	"time"
)

// Named trailing-debounce windows.
const (
	WindowCacheRefresh = 80 * time.Millisecond
	WindowSearch       = 300 * time.Millisecond
	WindowGroupDetail  = 500 * time.Millisecond
)

// Debouncer collapses a burst of Trigger calls into one call of fn, run
// after window has elapsed since the last Trigger.
type Debouncer struct {
	window time.Duration
	fn     func()

	mu      sync.Mutex
	timer   *time.Timer
	seq     uint64
	stopped bool
}

// NewDebouncer creates a trailing debouncer.
func NewDebouncer(window time.Duration, fn func()) *Debouncer {
	return &Debouncer{window: window, fn: fn}
}

// Trigger (re)starts the quiet period.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.seq++
	seq := d.seq
	d.timer = time.AfterFunc(d.window, func() { d.fire(seq) })
}

func (d *Debouncer) fire(seq uint64) {
	d.mu.Lock()
	// A timer that lost the Stop race must not run on behalf of a newer burst.
	if d.stopped || seq != d.seq {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()
	d.fn()
}

// Pending reports whether a call is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Stop cancels any scheduled call and disables further triggers.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// KeyedDebouncer runs one independent trailing debounce per key.
type KeyedDebouncer struct {
	window time.Duration
	fn     func(key string)

	mu      sync.Mutex
	byKey   map[string]*Debouncer
	stopped bool
}

// NewKeyedDebouncer creates a per-key trailing debouncer.
func NewKeyedDebouncer(window time.Duration, fn func(key string)) *KeyedDebouncer {
	return &KeyedDebouncer{window: window, fn: fn, byKey: make(map[string]*Debouncer)}
}

// Trigger restarts the quiet period for key.
func (k *KeyedDebouncer) Trigger(key string) {
	k.mu.Lock()
	if k.stopped {
		k.mu.Unlock()
		return
	}
	d, ok := k.byKey[key]
	if !ok {
		d = NewDebouncer(k.window, func() { k.fn(key) })
		k.byKey[key] = d
	}
	k.mu.Unlock()
	d.Trigger()
}

// Stop cancels every scheduled call.
func (k *KeyedDebouncer) Stop() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.stopped = true
	for _, d := range k.byKey {
		d.Stop()
	}
}
