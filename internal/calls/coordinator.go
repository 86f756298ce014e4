package calls

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"levlyfy/internal/telephony"
	"levlyfy/pkg/logger"

	"github.com/jonboulle/clockwork"
)

var (
	ErrSessionActive      = errors.New("calls: a call is already in progress")
	ErrDeviceNotReady     = errors.New("calls: phone device not ready")
	ErrInvalidDestination = errors.New("calls: enter a phone number")
	ErrPlacementFailed    = errors.New("calls: could not initiate the call")
	ErrNotConnected       = errors.New("calls: no connected call")
	ErrInvalidDigits      = errors.New("calls: digits must be 0-9, * or #")
	ErrCallCanceled       = errors.New("calls: call canceled")
	ErrClosed             = errors.New("calls: coordinator closed")
)

// UserMessage maps coordinator errors to the short strings shown in the dialer.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSessionActive):
		return "A call is already in progress"
	case errors.Is(err, ErrDeviceNotReady):
		return "Phone device not ready"
	case errors.Is(err, ErrInvalidDestination):
		return "Enter a phone number"
	case errors.Is(err, ErrNotConnected):
		return "No active call"
	case errors.Is(err, ErrInvalidDigits):
		return "Invalid keypad input"
	case errors.Is(err, telephony.ErrHoldUnsupported):
		return "Hold is not supported for this call"
	default:
		return "Could not initiate the call"
	}
}

const (
	DialModeDevice = "device"
	DialModeBridge = "bridge"
)

// Backend is the telephony REST surface the coordinator depends on.
type Backend interface {
	telephony.TokenFetcher
	StartCall(ctx context.Context, to string) error
	CallStarted(ctx context.Context, sessionID, phoneNumber string) error
}

type Options struct {
	// DialMode is DialModeDevice (SDK connect) or DialModeBridge
	// (backend originates, device auto-accepts the bridged leg).
	DialMode           string
	DefaultCountryCode string

	RingTimeout     time.Duration
	ReadyFallback   time.Duration
	MetadataTimeout time.Duration

	Clock  clockwork.Clock
	Logger *slog.Logger

	// Guard, when set, holds a cross-process slot for UserID while a
	// session is active.
	Guard  SessionGuard
	UserID func() string

	Observers []Observer
	// OnDrop is called each time a transition is dropped on a full buffer.
	OnDrop func()
}

// bridgeGrace is how long past the ring timeout a backend-originated leg
// may still show up after its session was abandoned.
const bridgeGrace = 10 * time.Second

func (o *Options) defaults() {
	if o.DialMode == "" {
		o.DialMode = DialModeDevice
	}
	if o.DefaultCountryCode == "" {
		o.DefaultCountryCode = "+1"
	}
	if o.RingTimeout <= 0 {
		o.RingTimeout = 15 * time.Second
	}
	if o.MetadataTimeout <= 0 {
		o.MetadataTimeout = 10 * time.Second
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.UserID == nil {
		o.UserID = func() string { return "" }
	}
}

// Coordinator is the single call-session state machine. Every method is
// safe for concurrent use; SDK callbacks, timers and user actions all go
// through the same mutex and blocking work runs outside it.
type Coordinator struct {
	api      Backend
	binding  *telephony.Binding
	opts     Options
	clock    clockwork.Clock
	log      *slog.Logger
	dispatch *dispatcher

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	state       SessionState
	direction   Direction
	target      string
	sessionID   string
	handle      telephony.Call
	startedAt   time.Time
	connectedAt time.Time
	muted       bool
	held        bool
	lastError   string
	persisted   bool
	guarded     string
	gen         uint64
	watchdog    clockwork.Timer
	tickStop    chan struct{}
	closed      bool

	// abandonedUntil is set when a bridge-mode session ends before its
	// leg arrived; a leg showing up before then is hung up.
	abandonedUntil time.Time
}

// NewCoordinator builds the coordinator and the device binding it owns.
func NewCoordinator(api Backend, factory telephony.DeviceFactory, opts Options) *Coordinator {
	opts.defaults()
	log := logger.OrDiscard(opts.Logger).With("component", "calls")
	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		api:    api,
		opts:   opts,
		clock:  opts.Clock,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
		state:  StateIdle,
	}
	c.dispatch = newDispatcher(opts.Observers, log, opts.OnDrop)
	c.binding = telephony.NewBinding(api, factory, c.OnSessionEvent, telephony.BindingOptions{
		ReadyFallback: opts.ReadyFallback,
		Clock:         opts.Clock,
		Logger:        opts.Logger,
	})
	return c
}

// Snapshot returns the current session state.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Coordinator) snapshotLocked() Snapshot {
	s := Snapshot{
		State:             c.state,
		Direction:         c.direction,
		TargetAddress:     c.target,
		ProviderSessionID: c.sessionID,
		LastError:         c.lastError,
		DeviceReady:       c.binding.Ready(),
	}
	if !c.startedAt.IsZero() {
		t := c.startedAt
		s.StartedAt = &t
	}
	if c.state == StateConnected {
		t := c.connectedAt
		s.ConnectedAt = &t
		s.DurationSeconds = int(c.clock.Since(c.connectedAt) / time.Second)
		s.Muted = c.muted
		s.Held = c.held
	}
	return s
}

// InitializeDevice brings up the softphone device. Idempotent.
func (c *Coordinator) InitializeDevice(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.binding.Ready() {
		if c.state == StateIdle || c.state == StateInitializing {
			c.transitionLocked(StateReady, "")
		}
		c.mu.Unlock()
		return nil
	}
	switch c.state {
	case StateIdle:
		c.transitionLocked(StateInitializing, "")
	case StateError:
		c.clearSessionLocked()
		c.transitionLocked(StateInitializing, "")
	}
	c.mu.Unlock()

	err := c.binding.InitializeDevice(ctx)
	if err != nil {
		return err
	}
	// The ready event may have fired before we got here, or the device
	// already existed and is waiting on the ready fallback.
	if c.binding.Ready() {
		c.mu.Lock()
		if c.state == StateInitializing {
			c.transitionLocked(StateReady, "")
		}
		c.mu.Unlock()
	}
	return nil
}

// StartCall normalizes destination and places an outbound call.
// It rejects synchronously when the destination is empty, a session is
// already active, or the device is not ready; no state changes then.
func (c *Coordinator) StartCall(ctx context.Context, destination string) error {
	dest, err := NormalizeNumber(destination, c.opts.DefaultCountryCode)
	if err != nil {
		return err
	}

	c.mu.Lock()
	err = c.admitLocked()
	c.mu.Unlock()
	if err != nil {
		return err
	}

	uid := ""
	if c.opts.Guard != nil {
		uid = c.opts.UserID()
	}
	if uid != "" {
		ok, err := c.opts.Guard.Acquire(ctx, uid)
		if err != nil {
			c.log.Error("session guard unavailable", "user_id", uid, "err", err)
			return fmt.Errorf("%w: %v", ErrPlacementFailed, err)
		}
		if !ok {
			c.log.Warn("call already active for user elsewhere", "user_id", uid)
			return ErrSessionActive
		}
	}

	c.mu.Lock()
	if err := c.admitLocked(); err != nil {
		// Lost a race to another StartCall; release only if nobody holds it.
		if uid != "" && c.guarded == "" {
			c.releaseGuardAsync(uid)
		}
		c.mu.Unlock()
		return err
	}
	c.gen++
	gen := c.gen
	c.clearSessionLocked()
	c.abandonedUntil = time.Time{}
	c.direction = DirectionOutbound
	c.target = dest
	c.startedAt = c.clock.Now()
	c.guarded = uid
	c.transitionLocked(StatePlacing, "")
	c.mu.Unlock()

	c.log.Info("placing call", "to", dest, "mode", c.opts.DialMode)

	var h telephony.Call
	if c.opts.DialMode == DialModeBridge {
		err = c.api.StartCall(ctx, dest)
	} else {
		h, err = c.binding.PlaceCall(ctx, dest)
	}

	c.mu.Lock()
	if gen != c.gen || c.closed {
		c.mu.Unlock()
		// EndCall (or a newer session) won; the late leg must not linger.
		if h != nil {
			if derr := h.Disconnect(); derr != nil {
				c.log.Warn("disconnect late call leg failed", "err", derr)
			}
		}
		return ErrCallCanceled
	}
	if err != nil {
		c.log.Error("place call failed", "to", dest, "err", err)
		c.transitionLocked(StateError, UserMessage(ErrPlacementFailed))
		// The backend never originated anything.
		c.abandonedUntil = time.Time{}
		c.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrPlacementFailed, err)
	}
	if h != nil && c.handle == nil {
		c.handle = h
		if sid := h.SID(); sid != "" && c.sessionID == "" {
			c.sessionID = sid
		}
	}
	if c.state == StatePlacing {
		// No ringing signal yet; assume the far end is alerting.
		c.transitionLocked(StateRinging, "")
	}
	c.mu.Unlock()
	return nil
}

func (c *Coordinator) admitLocked() error {
	switch {
	case c.closed:
		return ErrClosed
	case c.state.Active():
		return ErrSessionActive
	case !c.state.Dialable() || !c.binding.Ready():
		return ErrDeviceNotReady
	}
	return nil
}

// EndCall hangs up and returns to Idle from any state. It never fails.
func (c *Coordinator) EndCall(ctx context.Context) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	active := c.state.Active()
	c.gen++
	if active {
		c.transitionLocked(StateDisconnected, "")
	}
	if c.state == StateDisconnected || c.state == StateError {
		c.clearSessionLocked()
		c.transitionLocked(StateIdle, "")
	}
	c.mu.Unlock()

	if active {
		c.log.Info("call ended by user")
		c.binding.HangUp()
	}
}

// Reset dismisses a finished or failed session.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateDisconnected && c.state != StateError {
		return
	}
	c.clearSessionLocked()
	c.transitionLocked(StateIdle, "")
}

// ToggleMute flips mute on the connected call and returns the new value.
func (c *Coordinator) ToggleMute() (bool, error) {
	c.mu.Lock()
	if c.state != StateConnected {
		c.mu.Unlock()
		return false, ErrNotConnected
	}
	c.muted = !c.muted
	muted, h := c.muted, c.handle
	c.publishLocked(StateConnected, StateConnected, false)
	c.mu.Unlock()

	c.binding.SetMute(h, muted)
	return muted, nil
}

// ToggleHold holds or resumes the connected call.
func (c *Coordinator) ToggleHold() (bool, error) {
	c.mu.Lock()
	if c.state != StateConnected {
		c.mu.Unlock()
		return false, ErrNotConnected
	}
	want, h, gen := !c.held, c.handle, c.gen
	c.mu.Unlock()

	if err := c.binding.SetHold(h, want); err != nil {
		c.log.Warn("hold failed", "hold", want, "err", err)
		return !want, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || c.state != StateConnected {
		return false, ErrNotConnected
	}
	c.held = want
	c.publishLocked(StateConnected, StateConnected, false)
	return want, nil
}

// SendDigits plays DTMF tones on the connected call.
func (c *Coordinator) SendDigits(digits string) error {
	if !ValidDigits(digits) {
		return ErrInvalidDigits
	}
	c.mu.Lock()
	if c.state != StateConnected {
		c.mu.Unlock()
		return ErrNotConnected
	}
	h := c.handle
	c.mu.Unlock()
	return c.binding.SendDigits(h, digits)
}

// OnSessionEvent applies a binding event. It is the binding's sink.
func (c *Coordinator) OnSessionEvent(e telephony.Event) {
	if e.Type == telephony.EventIncoming {
		c.onIncoming(e)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	switch e.Type {
	case telephony.EventDeviceReady:
		switch {
		case c.state == StateInitializing, c.state == StateIdle:
			c.transitionLocked(StateReady, "")
		case c.state == StateError && c.target == "":
			c.transitionLocked(StateReady, "")
		}

	case telephony.EventDeviceError:
		msg := "Phone device error"
		if e.Err != nil {
			msg = fmt.Sprintf("Phone device error: %v", e.Err)
		}
		c.log.Error("device error", "err", e.Err, "state", c.state)
		if c.state.Active() {
			c.gen++
			c.transitionLocked(StateError, msg)
			return
		}
		if c.state != StateError {
			c.transitionLocked(StateError, msg)
		}

	case telephony.EventDeviceLost:
		c.log.Warn("device lost registration", "state", c.state, "err", e.Err)
		switch c.state {
		case StateIdle, StateInitializing, StateReady:
			c.transitionLocked(StateError, "Phone device disconnected")
		}

	case telephony.EventRinging:
		if !c.ownsLocked(e) {
			return
		}
		c.adoptLocked(e)
		if c.state == StatePlacing {
			c.transitionLocked(StateRinging, "")
		}

	case telephony.EventConnected:
		if !c.ownsLocked(e) {
			return
		}
		c.adoptLocked(e)
		if c.state == StatePlacing || c.state == StateRinging {
			c.transitionLocked(StateConnected, "")
		}

	case telephony.EventDisconnected:
		if !c.ownsLocked(e) {
			return
		}
		c.log.Info("call disconnected by provider", "call_sid", c.sessionID)
		c.gen++
		c.transitionLocked(StateDisconnected, "")

	case telephony.EventCallError:
		if !c.ownsLocked(e) {
			return
		}
		msg := "Call failed"
		if e.Err != nil {
			msg = fmt.Sprintf("Call failed: %v", e.Err)
		}
		c.log.Error("call error", "call_sid", c.sessionID, "err", e.Err)
		c.gen++
		c.transitionLocked(StateError, msg)
	}
}

// ownsLocked reports whether a call event belongs to the active session.
// Events for other legs and events outside a session are dropped.
func (c *Coordinator) ownsLocked(e telephony.Event) bool {
	if !c.state.Active() {
		return false
	}
	if e.Handle == nil || c.handle == nil {
		return true
	}
	return e.Handle == c.handle
}

func (c *Coordinator) adoptLocked(e telephony.Event) {
	if c.handle == nil && e.Handle != nil {
		c.handle = e.Handle
	}
	if c.sessionID == "" && e.SessionID != "" {
		c.sessionID = e.SessionID
	}
}

// onIncoming auto-accepts inbound legs. A bridged leg joins the pending
// outbound session; otherwise it opens an inbound session. It is turned
// away while a call is up, or when it is the late leg of a bridged call
// the user already gave up on.
func (c *Coordinator) onIncoming(e telephony.Event) {
	if e.Handle == nil {
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	accept, reason := true, "line busy"
	switch {
	case c.opts.DialMode == DialModeBridge && (c.state == StatePlacing || c.state == StateRinging) && c.handle == nil:
		c.handle = e.Handle
		if c.sessionID == "" {
			c.sessionID = e.SessionID
		}
		c.log.Info("bridged leg arrived", "call_sid", e.SessionID)
	case c.state.Active():
		accept = false
	case c.opts.DialMode == DialModeBridge && c.clock.Now().Before(c.abandonedUntil):
		accept, reason = false, "bridged call was abandoned"
		c.abandonedUntil = time.Time{}
	case !c.binding.Ready():
		accept, reason = false, "device not ready"
	default:
		c.gen++
		c.clearSessionLocked()
		c.direction = DirectionInbound
		c.handle = e.Handle
		c.sessionID = e.SessionID
		c.startedAt = c.clock.Now()
		c.transitionLocked(StatePlacing, "")
		c.transitionLocked(StateRinging, "")
		c.log.Info("inbound call", "call_sid", e.SessionID)
	}
	gen := c.gen
	c.mu.Unlock()

	if !accept {
		c.log.Info("rejecting inbound leg", "reason", reason, "call_sid", e.SessionID)
		if err := e.Handle.Disconnect(); err != nil {
			c.log.Warn("reject inbound leg failed", "err", err)
		}
		return
	}
	if err := c.binding.Answer(e.Handle); err != nil {
		c.log.Error("accept inbound leg failed", "call_sid", e.SessionID, "err", err)
		c.mu.Lock()
		if gen == c.gen && c.state.Active() {
			c.gen++
			c.transitionLocked(StateError, "Could not answer the call")
		}
		c.mu.Unlock()
	}
}

// Close tears down the device and stops background work. Idempotent.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.gen++
	c.stopWatchdogLocked()
	c.stopTickerLocked()
	if c.guarded != "" {
		c.releaseGuardAsync(c.guarded)
		c.guarded = ""
	}
	c.closed = true
	c.mu.Unlock()

	c.binding.Destroy()
	c.cancel()
	c.wg.Wait()
	c.dispatch.close()
}

// transitionLocked moves to `to`, stopping the timers of the state being
// left and starting those of the state being entered, then notifies.
func (c *Coordinator) transitionLocked(to SessionState, lastError string) {
	from := c.state
	if from == to {
		return
	}
	c.state = to
	c.lastError = lastError

	if from == StateRinging {
		c.stopWatchdogLocked()
	}
	talk := 0
	if from == StateConnected {
		c.stopTickerLocked()
		talk = int(c.clock.Since(c.connectedAt) / time.Second)
		c.connectedAt = time.Time{}
	}
	if to != StateConnected {
		c.muted = false
		c.held = false
	}
	if from.Active() && !to.Active() {
		if c.opts.DialMode == DialModeBridge && c.direction == DirectionOutbound && c.handle == nil {
			c.abandonedUntil = c.clock.Now().Add(c.opts.RingTimeout + bridgeGrace)
		}
		c.handle = nil
		if c.guarded != "" {
			c.releaseGuardAsync(c.guarded)
			c.guarded = ""
		}
	}

	switch to {
	case StateRinging:
		c.startWatchdogLocked()
	case StateConnected:
		c.connectedAt = c.clock.Now()
		c.startTickerLocked()
		c.persistLocked()
	}

	c.log.Debug("call state", "from", from, "to", to)
	t := c.transitionFor(from, to, false)
	t.TalkSeconds = talk
	c.dispatch.publish(t)
}

func (c *Coordinator) clearSessionLocked() {
	c.direction = ""
	c.target = ""
	c.sessionID = ""
	c.handle = nil
	c.startedAt = time.Time{}
	c.connectedAt = time.Time{}
	c.persisted = false
	c.lastError = ""
}

func (c *Coordinator) publishLocked(from, to SessionState, tick bool) {
	c.dispatch.publish(c.transitionFor(from, to, tick))
}

func (c *Coordinator) transitionFor(from, to SessionState, tick bool) Transition {
	return Transition{
		From:     from,
		To:       to,
		Tick:     tick,
		Snapshot: c.snapshotLocked(),
		At:       c.clock.Now(),
	}
}

func (c *Coordinator) startWatchdogLocked() {
	c.stopWatchdogLocked()
	gen := c.gen
	c.watchdog = c.clock.AfterFunc(c.opts.RingTimeout, func() { c.ringTimeout(gen) })
}

func (c *Coordinator) stopWatchdogLocked() {
	if c.watchdog != nil {
		c.watchdog.Stop()
		c.watchdog = nil
	}
}

func (c *Coordinator) ringTimeout(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.gen || c.state != StateRinging {
		c.mu.Unlock()
		return
	}
	c.log.Warn("no answer, hanging up", "to", c.target, "after", c.opts.RingTimeout)
	c.gen++
	c.target = ""
	c.transitionLocked(StateDisconnected, "No answer")
	c.mu.Unlock()

	c.binding.HangUp()
}

func (c *Coordinator) startTickerLocked() {
	c.stopTickerLocked()
	stop := make(chan struct{})
	c.tickStop = stop
	gen := c.gen
	t := c.clock.NewTicker(time.Second)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.Chan():
				c.tick(gen)
			}
		}
	}()
}

func (c *Coordinator) stopTickerLocked() {
	if c.tickStop != nil {
		close(c.tickStop)
		c.tickStop = nil
	}
}

func (c *Coordinator) tick(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.gen || c.state != StateConnected {
		return
	}
	c.publishLocked(StateConnected, StateConnected, true)
}

// persistLocked records call metadata once per session. Without a
// provider session id there is nothing to key it on, so it is skipped.
func (c *Coordinator) persistLocked() {
	if c.persisted {
		return
	}
	if c.sessionID == "" {
		c.log.Warn("connected without provider session id, metadata not recorded", "to", c.target)
		return
	}
	c.persisted = true
	sid, phone := c.sessionID, c.target
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(c.ctx, c.opts.MetadataTimeout)
		defer cancel()
		if err := c.api.CallStarted(ctx, sid, phone); err != nil {
			c.log.Error("record call metadata failed", "call_sid", sid, "err", err)
			return
		}
		c.log.Info("call metadata recorded", "call_sid", sid)
	}()
}

func (c *Coordinator) releaseGuardAsync(uid string) {
	guard := c.opts.Guard
	if guard == nil {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := guard.Release(ctx, uid); err != nil {
			c.log.Warn("release session guard failed", "user_id", uid, "err", err)
		}
	}()
}
