// Package telephonytest provides an in-memory softphone device for tests.
package telephonytest

import (
	"context"
	"fmt"
	"sync"

	"levlyfy/internal/telephony"
)

// Device is a scriptable telephony.Device. Tests drive it with Fire and
// inspect what the binding asked of it.
type Device struct {
	mu sync.Mutex

	listener func(telephony.DeviceEvent)

	// RegisterErr is returned by Register when set.
	RegisterErr error
	// ConnectErr is returned by Connect when set.
	ConnectErr error
	// FireRegistered emits DeviceRegistered from inside Register.
	FireRegistered bool
	// Registered is what IsRegistered reports once Register succeeded.
	Registered bool

	// ConnectGate, when set, blocks Connect until it is closed.
	ConnectGate chan struct{}

	registered     bool
	destroyed      bool
	disconnectAlls int
	calls          []*Call
	lastParams     map[string]string
	seq            int
}

func (d *Device) Listen(fn func(telephony.DeviceEvent)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listener = fn
}

func (d *Device) Register(ctx context.Context) error {
	d.mu.Lock()
	if d.RegisterErr != nil {
		d.mu.Unlock()
		return d.RegisterErr
	}
	d.registered = d.Registered
	fire := d.FireRegistered
	d.mu.Unlock()
	if fire {
		d.Fire(telephony.DeviceEvent{Kind: telephony.DeviceRegistered})
	}
	return nil
}

func (d *Device) IsRegistered() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.registered
}

func (d *Device) Connect(ctx context.Context, params map[string]string) (telephony.Call, error) {
	d.mu.Lock()
	gate := d.ConnectGate
	d.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ConnectErr != nil {
		return nil, d.ConnectErr
	}
	d.seq++
	c := &Call{sid: fmt.Sprintf("CA%d", d.seq), To: params["To"]}
	d.calls = append(d.calls, c)
	d.lastParams = params
	return c, nil
}

func (d *Device) DisconnectAll() {
	d.mu.Lock()
	d.disconnectAlls++
	calls := append([]*Call(nil), d.calls...)
	d.mu.Unlock()
	for _, c := range calls {
		_ = c.Disconnect()
	}
}

func (d *Device) Destroy() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroyed = true
	d.registered = false
}

// Fire delivers e to the registered listener.
func (d *Device) Fire(e telephony.DeviceEvent) {
	d.mu.Lock()
	fn := d.listener
	d.mu.Unlock()
	if fn != nil {
		fn(e)
	}
}

// SetRegistered flips what IsRegistered reports.
func (d *Device) SetRegistered(v bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.registered = v
}

func (d *Device) Destroyed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.destroyed
}

func (d *Device) DisconnectAllCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.disconnectAlls
}

// LastCall returns the most recent outbound call, or nil.
func (d *Device) LastCall() *Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.calls) == 0 {
		return nil
	}
	return d.calls[len(d.calls)-1]
}

func (d *Device) LastParams() map[string]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastParams
}

// Call is a scriptable telephony.Call.
type Call struct {
	mu sync.Mutex

	sid string
	To  string

	muted        bool
	held         bool
	accepted     bool
	disconnected bool
	digits       string

	// NoHold makes the call behave like a provider without hold.
	NoHold bool
}

// NewCall builds a call with the given provider session id, e.g. for
// inbound legs.
func NewCall(sid string) *Call { return &Call{sid: sid} }

func (c *Call) SID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sid
}

func (c *Call) SetSID(sid string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sid = sid
}

func (c *Call) Mute(m bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.muted = m
}

func (c *Call) SendDigits(d string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.digits += d
	return nil
}

func (c *Call) Accept() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accepted = true
	return nil
}

func (c *Call) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected = true
	return nil
}

func (c *Call) Hold(on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.NoHold {
		return telephony.ErrHoldUnsupported
	}
	c.held = on
	return nil
}

func (c *Call) Muted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.muted
}

func (c *Call) Held() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.held
}

func (c *Call) Accepted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accepted
}

func (c *Call) Disconnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnected
}

func (c *Call) Digits() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.digits
}

// Factory returns a DeviceFactory that always hands out d and counts
// constructions.
func Factory(d *Device, built *int32) telephony.DeviceFactory {
	var mu sync.Mutex
	return func(ctx context.Context, token string) (telephony.Device, error) {
		mu.Lock()
		defer mu.Unlock()
		if built != nil {
			*built++
		}
		return d, nil
	}
}

// Tokens is a static TokenFetcher.
type Tokens struct {
	Token string
	Err   error

	// Gate, when set, blocks FetchToken until closed.
	Gate chan struct{}

	mu      sync.Mutex
	fetches int
}

func (t *Tokens) FetchToken(ctx context.Context) (string, error) {
	t.mu.Lock()
	t.fetches++
	gate := t.Gate
	t.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return t.Token, t.Err
}

func (t *Tokens) Fetches() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fetches
}
