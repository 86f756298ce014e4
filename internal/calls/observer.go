package calls

import (
	"log/slog"
	"sync"
)

// Observer receives transitions in order on a single goroutine.
// Implementations must not call back into the Coordinator synchronously.
type Observer interface {
	Observe(t Transition)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(t Transition)

func (f ObserverFunc) Observe(t Transition) { f(t) }

const dispatchBuffer = 256

// dispatcher fans transitions out to observers without ever blocking the
// state machine. When the buffer is full the transition is dropped.
type dispatcher struct {
	observers []Observer
	log       *slog.Logger
	onDrop    func()

	ch   chan Transition
	done chan struct{}

	mu     sync.Mutex
	closed bool
}

func newDispatcher(observers []Observer, log *slog.Logger, onDrop func()) *dispatcher {
	d := &dispatcher{
		observers: observers,
		log:       log,
		onDrop:    onDrop,
		ch:        make(chan Transition, dispatchBuffer),
		done:      make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *dispatcher) run() {
	defer close(d.done)
	for t := range d.ch {
		for _, o := range d.observers {
			d.deliver(o, t)
		}
	}
}

func (d *dispatcher) deliver(o Observer, t Transition) {
	defer func() {
		if p := recover(); p != nil {
			d.log.Error("observer panicked", "panic", p, "to", t.To)
		}
	}()
	o.Observe(t)
}

func (d *dispatcher) publish(t Transition) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	select {
	case d.ch <- t:
	default:
		d.log.Warn("transition dropped, observers too slow", "from", t.From, "to", t.To, "tick", t.Tick)
		if d.onDrop != nil {
			d.onDrop()
		}
	}
}

// close drains pending transitions and stops the goroutine.
func (d *dispatcher) close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.ch)
	d.mu.Unlock()
	<-d.done
}
