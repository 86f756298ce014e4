package telephony

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"levlyfy/pkg/logger"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"
)

// TokenFetcher supplies softphone session tokens.
type TokenFetcher interface {
	FetchToken(ctx context.Context) (string, error)
}

type BindingOptions struct {
	// ReadyFallback bounds how long to wait for a ready/registered event
	// after Register before trusting IsRegistered. Defaults to 3s.
	ReadyFallback time.Duration
	Clock         clockwork.Clock
	Logger        *slog.Logger
}

// Binding owns the lifecycle of the single SDK device: acquire on
// InitializeDevice, use for any number of calls, release on Destroy.
// It is an event source only; call state lives in the sink.
type Binding struct {
	tokens  TokenFetcher
	factory DeviceFactory
	sink    func(Event)
	clock   clockwork.Clock
	wait    time.Duration
	log     *slog.Logger

	init singleflight.Group

	mu       sync.Mutex
	device   Device
	ready    bool
	lost     bool
	epoch    uint64
	fallback clockwork.Timer
}

func NewBinding(tokens TokenFetcher, factory DeviceFactory, sink func(Event), opts BindingOptions) *Binding {
	if opts.ReadyFallback <= 0 {
		opts.ReadyFallback = 3 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if sink == nil {
		sink = func(Event) {}
	}
	return &Binding{
		tokens:  tokens,
		factory: factory,
		sink:    sink,
		clock:   opts.Clock,
		wait:    opts.ReadyFallback,
		log:     logger.OrDiscard(opts.Logger),
	}
}

// Ready reports whether the device is registered and usable.
func (b *Binding) Ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.device != nil && b.ready
}

// Initialized reports whether a device instance exists (ready or not).
func (b *Binding) Initialized() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.device != nil
}

// InitializeDevice fetches a token, builds and registers the device.
// It returns immediately when a device already exists, and concurrent
// callers share one attempt. A device that lost its registration is
// released and rebuilt. Failures are also emitted as EventDeviceError,
// and no device is retained so the next call retries.
func (b *Binding) InitializeDevice(ctx context.Context) error {
	b.dropLost()
	if b.Initialized() {
		return nil
	}
	_, err, _ := b.init.Do("device", func() (any, error) {
		return nil, b.initialize(ctx)
	})
	return err
}

func (b *Binding) initialize(ctx context.Context) error {
	b.mu.Lock()
	if b.device != nil {
		b.mu.Unlock()
		return nil
	}
	epoch := b.epoch
	b.mu.Unlock()

	token, err := b.tokens.FetchToken(ctx)
	if err != nil {
		err = fmt.Errorf("telephony: fetch token: %w", err)
		b.log.Error("device token fetch failed", "err", err)
		b.sink(Event{Type: EventDeviceError, Err: err})
		return err
	}

	dev, err := b.factory(ctx, token)
	if err != nil {
		err = fmt.Errorf("telephony: create device: %w", err)
		b.log.Error("device construction failed", "err", err)
		b.sink(Event{Type: EventDeviceError, Err: err})
		return err
	}

	// Handlers go on before Register so nothing fired during registration is lost.
	dev.Listen(func(e DeviceEvent) { b.handle(dev, e) })

	b.mu.Lock()
	if b.epoch != epoch {
		b.mu.Unlock()
		dev.Destroy()
		return ErrDestroyed
	}
	b.device = dev
	b.ready = false
	b.mu.Unlock()

	if err := dev.Register(ctx); err != nil {
		b.mu.Lock()
		if b.device == dev {
			b.device = nil
		}
		b.mu.Unlock()
		dev.Destroy()
		err = fmt.Errorf("telephony: register device: %w", err)
		b.log.Error("device registration failed", "err", err)
		b.sink(Event{Type: EventDeviceError, Err: err})
		return err
	}

	b.mu.Lock()
	if b.device == dev && !b.ready {
		b.fallback = b.clock.AfterFunc(b.wait, func() { b.forceReady(dev) })
	}
	b.mu.Unlock()
	b.log.Debug("device registered, waiting for ready")
	return nil
}

// dropLost releases a device that went unregistered so the next
// initialization builds a fresh one.
func (b *Binding) dropLost() {
	b.mu.Lock()
	dev := b.device
	if dev == nil || !b.lost {
		b.mu.Unlock()
		return
	}
	b.device = nil
	b.ready = false
	b.lost = false
	b.epoch++
	if b.fallback != nil {
		b.fallback.Stop()
		b.fallback = nil
	}
	b.mu.Unlock()

	dev.Destroy()
	b.log.Info("replacing unregistered device")
}

// forceReady covers SDK builds that never emit a ready event.
func (b *Binding) forceReady(dev Device) {
	b.mu.Lock()
	current := b.device == dev && !b.ready
	b.mu.Unlock()
	if !current {
		return
	}
	if !dev.IsRegistered() {
		b.log.Warn("device not registered after ready fallback")
		return
	}
	b.log.Info("device ready by fallback")
	b.markReady(dev)
}

func (b *Binding) markReady(dev Device) {
	b.mu.Lock()
	if b.device != dev || b.ready {
		b.mu.Unlock()
		return
	}
	b.ready = true
	b.lost = false
	if b.fallback != nil {
		b.fallback.Stop()
		b.fallback = nil
	}
	b.mu.Unlock()
	b.sink(Event{Type: EventDeviceReady})
}

func (b *Binding) handle(dev Device, e DeviceEvent) {
	b.mu.Lock()
	stale := b.device != dev
	b.mu.Unlock()
	if stale {
		return
	}

	switch e.Kind {
	case DeviceReady, DeviceRegistered:
		b.markReady(dev)
	case DeviceUnregistered:
		b.mu.Lock()
		b.ready = false
		b.lost = true
		if b.fallback != nil {
			b.fallback.Stop()
			b.fallback = nil
		}
		b.mu.Unlock()
		b.log.Warn("device unregistered")
		b.sink(Event{Type: EventDeviceLost, Err: e.Err})
	case DeviceError:
		b.sink(Event{Type: EventDeviceError, Err: e.Err, Handle: e.Call, SessionID: handleSID(e.Call)})
	case DeviceIncoming:
		b.sink(Event{Type: EventIncoming, Handle: e.Call, SessionID: handleSID(e.Call)})
	case CallRinging:
		b.sink(Event{Type: EventRinging, Handle: e.Call, SessionID: handleSID(e.Call)})
	case CallAccepted:
		b.sink(Event{Type: EventConnected, Handle: e.Call, SessionID: handleSID(e.Call)})
	case CallDisconnected, CallCanceled:
		b.sink(Event{Type: EventDisconnected, Handle: e.Call, SessionID: handleSID(e.Call)})
	case CallFailed:
		b.sink(Event{Type: EventCallError, Handle: e.Call, SessionID: handleSID(e.Call), Err: e.Err})
	default:
		b.log.Debug("ignoring device event", "kind", e.Kind)
	}
}

// PlaceCall connects an outbound leg to destination.
func (b *Binding) PlaceCall(ctx context.Context, destination string) (Call, error) {
	b.mu.Lock()
	dev, ready := b.device, b.ready
	b.mu.Unlock()
	if dev == nil {
		return nil, ErrDeviceNotInitialized
	}
	if !ready {
		return nil, ErrDeviceNotReady
	}
	return dev.Connect(ctx, map[string]string{"To": destination})
}

// Answer accepts an inbound leg.
func (b *Binding) Answer(h Call) error {
	if h == nil {
		return nil
	}
	return h.Accept()
}

// HangUp disconnects every leg on the device. Safe without a device.
func (b *Binding) HangUp() {
	b.mu.Lock()
	dev := b.device
	b.mu.Unlock()
	if dev != nil {
		dev.DisconnectAll()
	}
}

// SetMute is a no-op for a nil handle.
func (b *Binding) SetMute(h Call, muted bool) {
	if h == nil {
		return
	}
	h.Mute(muted)
}

// SendDigits plays DTMF tones on h.
func (b *Binding) SendDigits(h Call, digits string) error {
	if h == nil || digits == "" {
		return nil
	}
	return h.SendDigits(digits)
}

// SetHold holds or resumes h when its provider supports it.
func (b *Binding) SetHold(h Call, on bool) error {
	if h == nil {
		return nil
	}
	holder, ok := h.(Holder)
	if !ok {
		return ErrHoldUnsupported
	}
	return holder.Hold(on)
}

// Destroy releases the device. Safe to call repeatedly; an initialization
// still in flight discards its device instead of installing it.
func (b *Binding) Destroy() {
	b.mu.Lock()
	dev := b.device
	b.device = nil
	b.ready = false
	b.lost = false
	b.epoch++
	if b.fallback != nil {
		b.fallback.Stop()
		b.fallback = nil
	}
	b.mu.Unlock()

	if dev != nil {
		dev.DisconnectAll()
		dev.Destroy()
		b.log.Info("device destroyed")
	}
}
