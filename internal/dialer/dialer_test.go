package dialer

import (
	"context"
	"sync"
	"testing"

	"levlyfy/internal/calls"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeController struct {
	mu       sync.Mutex
	snap     calls.Snapshot
	startErr error
	dialed   []string
	digits   []string
	ended    int
	resets   int
	muted    bool
}

func newFakeController(state calls.SessionState) *fakeController {
	return &fakeController{snap: calls.Snapshot{State: state, DeviceReady: true}}
}

func (f *fakeController) set(s calls.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snap = s
}

func (f *fakeController) Snapshot() calls.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeController) StartCall(_ context.Context, destination string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dialed = append(f.dialed, destination)
	return f.startErr
}

func (f *fakeController) EndCall(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ended++
}

func (f *fakeController) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
}

func (f *fakeController) ToggleMute() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.snap.State != calls.StateConnected {
		return false, calls.ErrNotConnected
	}
	f.muted = !f.muted
	return f.muted, nil
}

func (f *fakeController) ToggleHold() (bool, error) {
	return false, calls.ErrNotConnected
}

func (f *fakeController) SendDigits(d string) error {
	if !calls.ValidDigits(d) {
		return calls.ErrInvalidDigits
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.digits = append(f.digits, d)
	return nil
}

func (f *fakeController) dialedNumbers() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.dialed...)
}

func TestFormatDisplay(t *testing.T) {
	cases := map[string]string{
		"":               "",
		"415":            "415",
		"4155550100":     "(415) 555-0100",
		"14155550100":    "+1 (415) 555-0100",
		"+14155550100":   "+1 (415) 555-0100",
		"+923001234567":  "+923001234567",
		"03001234567":    "03001234567",
		"415-555-0100":   "(415) 555-0100",
		"*72":            "*72",
		"415555010#":     "415555010#",
		"++1 415":        "+1415",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatDisplay(in), "input %q", in)
	}
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "00:00", FormatDuration(0))
	assert.Equal(t, "00:09", FormatDuration(9))
	assert.Equal(t, "01:05", FormatDuration(65))
	assert.Equal(t, "61:01", FormatDuration(3661))
	assert.Equal(t, "00:00", FormatDuration(-4))
}

func TestPresent_LabelsAndControls(t *testing.T) {
	v := Present(calls.Snapshot{State: calls.StateIdle})
	assert.Equal(t, "Offline", v.Label)
	assert.False(t, v.Controls.Call)
	assert.True(t, v.Controls.Keypad)

	v = Present(calls.Snapshot{State: calls.StateReady, DeviceReady: true})
	assert.Equal(t, "Ready", v.Label)
	assert.Equal(t, Controls{Call: true, Keypad: true}, v.Controls)

	v = Present(calls.Snapshot{State: calls.StatePlacing, DeviceReady: true, TargetAddress: "+14155550100"})
	assert.Equal(t, "Calling...", v.Label)
	assert.Equal(t, "+1 (415) 555-0100", v.Display)
	assert.Equal(t, Controls{Hangup: true}, v.Controls)

	v = Present(calls.Snapshot{State: calls.StateRinging, Direction: calls.DirectionInbound, DeviceReady: true})
	assert.Equal(t, "Incoming call", v.Label)

	v = Present(calls.Snapshot{State: calls.StateConnected, DeviceReady: true, DurationSeconds: 65, Held: true})
	assert.Equal(t, "On hold", v.Label)
	assert.Equal(t, "01:05", v.Duration)
	assert.Equal(t, Controls{Hangup: true, Mute: true, Hold: true, Keypad: true}, v.Controls)

	v = Present(calls.Snapshot{State: calls.StateError, DeviceReady: true, LastError: "No answer"})
	assert.Equal(t, "Error", v.Label)
	assert.Equal(t, "No answer", v.Error)
	assert.True(t, v.Controls.Reset)
	assert.True(t, v.Controls.Call)
	assert.False(t, v.Controls.Hangup)
}

func TestPad_EditsBuffer(t *testing.T) {
	p := NewPad(newFakeController(calls.StateReady))

	require.NoError(t, p.Press("+"))
	for _, d := range []string{"1", "4", "1", "5"} {
		require.NoError(t, p.Press(d))
	}
	assert.ErrorIs(t, p.Press("+"), calls.ErrInvalidDigits)
	assert.ErrorIs(t, p.Press("12"), calls.ErrInvalidDigits)
	assert.ErrorIs(t, p.Press("a"), calls.ErrInvalidDigits)
	assert.Equal(t, "+1415", p.Number())

	p.Backspace()
	assert.Equal(t, "+141", p.Number())
	p.Clear()
	assert.Equal(t, "", p.Number())
	p.Backspace()
	assert.Equal(t, "", p.Number())

	p.Set("(415) 555-0100 ext")
	assert.Equal(t, "4155550100", p.Number())
	assert.Equal(t, "(415) 555-0100", p.View().Display)

	p.Set("123456789012345678901234")
	assert.Len(t, p.Number(), maxPadDigits)
	require.NoError(t, p.Press("9"))
	assert.Len(t, p.Number(), maxPadDigits)
}

func TestPad_PressSendsDTMFWhileConnected(t *testing.T) {
	ctl := newFakeController(calls.StateConnected)
	p := NewPad(ctl)

	require.NoError(t, p.Press("5"))
	require.NoError(t, p.Press("#"))
	assert.ErrorIs(t, p.Press("x"), calls.ErrInvalidDigits)
	assert.Equal(t, "", p.Number())
	assert.Equal(t, []string{"5", "#"}, ctl.digits)
}

func TestPad_Dial(t *testing.T) {
	ctl := newFakeController(calls.StateReady)
	p := NewPad(ctl)

	assert.ErrorIs(t, p.Dial(context.Background()), calls.ErrInvalidDestination)
	require.NoError(t, p.Press("+"))
	assert.ErrorIs(t, p.Dial(context.Background()), calls.ErrInvalidDestination)

	p.Set("03001234567")
	require.NoError(t, p.Dial(context.Background()))
	assert.Equal(t, []string{"03001234567"}, ctl.dialedNumbers())
	assert.Equal(t, "03001234567", p.Number())

	ctl.startErr = calls.ErrSessionActive
	assert.ErrorIs(t, p.Dial(context.Background()), calls.ErrSessionActive)
}

func TestPad_ViewShowsTargetDuringCall(t *testing.T) {
	ctl := newFakeController(calls.StateReady)
	p := NewPad(ctl)
	p.Set("5551234")

	assert.Equal(t, "5551234", p.View().Number)

	ctl.set(calls.Snapshot{State: calls.StateRinging, TargetAddress: "+15551234", DeviceReady: true})
	assert.Equal(t, "+15551234", p.View().Number)
}
