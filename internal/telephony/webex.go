package telephony

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"levlyfy/pkg/logger"

	webex "github.com/WebexCommunity/webex-go-sdk/v2"
	"github.com/WebexCommunity/webex-go-sdk/v2/calling"
)

// ErrAnswerUnsupported is returned when an inbound Webex leg cannot be
// answered headlessly (answering needs the remote SDP offer).
var ErrAnswerUnsupported = errors.New("telephony: webex inbound answer needs a media offer")

// WebexDevice adapts the Webex Calling client to Device. The session token
// from the backend is used as the Webex access token.
type WebexDevice struct {
	client *webex.WebexClient
	cc     *calling.CallingClient
	log    *slog.Logger

	mu       sync.Mutex
	line     *calling.Line
	listener func(DeviceEvent)
}

// NewWebexDeviceFactory returns a DeviceFactory backed by Webex Calling.
func NewWebexDeviceFactory(log *slog.Logger) DeviceFactory {
	log = logger.OrDiscard(log)
	return func(ctx context.Context, token string) (Device, error) {
		client, err := webex.NewClient(token, nil)
		if err != nil {
			return nil, fmt.Errorf("webex client: %w", err)
		}
		cc := calling.NewCallingClient(client.Core(), nil, &calling.CallingClientConfig{})
		return &WebexDevice{client: client, cc: cc, log: log.With("provider", "webex")}, nil
	}
}

func (d *WebexDevice) Listen(fn func(DeviceEvent)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listener = fn
}

func (d *WebexDevice) emit(e DeviceEvent) {
	d.mu.Lock()
	fn := d.listener
	d.mu.Unlock()
	if fn != nil {
		fn(e)
	}
}

// Register discovers Mobius, creates (and registers) a line, and connects
// Mercury for inbound call signaling.
func (d *WebexDevice) Register(ctx context.Context) error {
	if err := d.cc.DiscoverMobiusServers(); err != nil {
		return fmt.Errorf("discover mobius: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	line, err := d.cc.CreateLine()
	if err != nil {
		return fmt.Errorf("create line: %w", err)
	}

	d.mu.Lock()
	d.line = line
	d.mu.Unlock()

	line.Emitter.On(string(calling.LineEventRegistered), func(any) {
		d.emit(DeviceEvent{Kind: DeviceRegistered})
	})
	line.Emitter.On(string(calling.LineEventUnregistered), func(any) {
		d.emit(DeviceEvent{Kind: DeviceUnregistered})
	})
	line.Emitter.On(string(calling.LineEventError), func(data any) {
		d.emit(DeviceEvent{Kind: DeviceError, Err: asError(data, "line error")})
	})
	d.cc.Emitter.On(string(calling.LineEventIncomingCall), func(data any) {
		call, ok := data.(*calling.Call)
		if !ok {
			return
		}
		wc := d.wrap(call)
		d.emit(DeviceEvent{Kind: DeviceIncoming, Call: wc})
	})

	merc := d.client.Mercury()
	go func() {
		if err := d.cc.ConnectMercury(merc); err != nil {
			d.log.Warn("mercury connect failed, inbound calls unavailable", "err", err)
		}
	}()

	// CreateLine registers synchronously, before our listener existed.
	if line.IsRegistered() {
		d.emit(DeviceEvent{Kind: DeviceRegistered})
	}
	return nil
}

func (d *WebexDevice) IsRegistered() bool {
	d.mu.Lock()
	line := d.line
	d.mu.Unlock()
	return line != nil && line.IsRegistered()
}

// Connect dials params["To"] as a PSTN number.
func (d *WebexDevice) Connect(ctx context.Context, params map[string]string) (Call, error) {
	d.mu.Lock()
	line := d.line
	d.mu.Unlock()
	if line == nil {
		return nil, ErrDeviceNotInitialized
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	call, err := d.cc.MakeCall(line, &calling.CallDetails{Type: calling.CallTypeTEL, Address: params["To"]})
	if err != nil {
		return nil, err
	}
	return d.wrap(call), nil
}

func (d *WebexDevice) wrap(call *calling.Call) *webexCall {
	wc := &webexCall{call: call}
	on := func(key calling.CallEventKey, kind DeviceEventKind) {
		call.Emitter.On(string(key), func(any) { d.emit(DeviceEvent{Kind: kind, Call: wc}) })
	}
	on(calling.CallEventAlerting, CallRinging)
	on(calling.CallEventProgress, CallRinging)
	// The SDK fires connect and established back to back; duplicates are
	// absorbed downstream.
	on(calling.CallEventConnect, CallAccepted)
	on(calling.CallEventEstablished, CallAccepted)
	on(calling.CallEventDisconnect, CallDisconnected)
	call.Emitter.On(string(calling.CallEventError), func(data any) {
		d.emit(DeviceEvent{Kind: CallFailed, Call: wc, Err: asError(data, "call error")})
	})
	return wc
}

func (d *WebexDevice) DisconnectAll() {
	for _, call := range d.cc.GetActiveCalls() {
		if err := call.End(); err != nil {
			d.log.Warn("end call failed", "call_id", call.GetCallID(), "err", err)
		}
	}
}

func (d *WebexDevice) Destroy() {
	if err := d.cc.Shutdown(); err != nil {
		d.log.Warn("webex shutdown failed", "err", err)
	}
}

type webexCall struct {
	call *calling.Call
}

func (c *webexCall) SID() string { return c.call.GetCallID() }

func (c *webexCall) Mute(muted bool) {
	if muted {
		c.call.Mute()
		return
	}
	c.call.Unmute()
}

func (c *webexCall) SendDigits(digits string) error {
	for _, r := range digits {
		if err := c.call.SendDigit(string(r)); err != nil {
			return err
		}
	}
	return nil
}

func (c *webexCall) Accept() error { return ErrAnswerUnsupported }

func (c *webexCall) Disconnect() error { return c.call.End() }

func (c *webexCall) Hold(on bool) error {
	if on {
		return c.call.Hold()
	}
	return c.call.Resume()
}

func asError(data any, fallback string) error {
	if err, ok := data.(error); ok {
		return err
	}
	if s, ok := data.(string); ok && s != "" {
		return errors.New(s)
	}
	return errors.New(fallback)
}
