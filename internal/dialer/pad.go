package dialer

import (
	"context"
	"strings"
	"sync"

	"levlyfy/internal/calls"
)

const maxPadDigits = 20

// Controller is the coordinator surface the dialer drives.
type Controller interface {
	Snapshot() calls.Snapshot
	StartCall(ctx context.Context, destination string) error
	EndCall(ctx context.Context)
	Reset()
	ToggleMute() (bool, error)
	ToggleHold() (bool, error)
	SendDigits(digits string) error
}

// Pad is the number entry buffer of one dialer view. While a call is
// connected key presses become DTMF tones instead.
type Pad struct {
	ctl Controller

	mu  sync.Mutex
	buf string
}

func NewPad(ctl Controller) *Pad {
	return &Pad{ctl: ctl}
}

// Press handles a single keypad symbol. "+" is accepted only as the
// first character of the buffer.
func (p *Pad) Press(digit string) error {
	if p.ctl.Snapshot().State == calls.StateConnected {
		return p.ctl.SendDigits(digit)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if digit == "+" && p.buf == "" {
		p.buf = "+"
		return nil
	}
	if len(digit) != 1 || !calls.ValidDigits(digit) {
		return calls.ErrInvalidDigits
	}
	if len(p.buf) >= maxPadDigits {
		return nil
	}
	p.buf += digit
	return nil
}

func (p *Pad) Backspace() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.buf != "" {
		p.buf = p.buf[:len(p.buf)-1]
	}
}

func (p *Pad) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.buf = ""
}

// Set replaces the buffer, keeping only keypad symbols.
func (p *Pad) Set(number string) {
	var b strings.Builder
	for _, r := range number {
		if (r >= '0' && r <= '9') || r == '*' || r == '#' || (r == '+' && b.Len() == 0) {
			b.WriteRune(r)
		}
	}
	s := b.String()
	if len(s) > maxPadDigits {
		s = s[:maxPadDigits]
	}
	p.mu.Lock()
	p.buf = s
	p.mu.Unlock()
}

func (p *Pad) Number() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf
}

// Dial starts a call to the buffered number. The buffer is kept.
func (p *Pad) Dial(ctx context.Context) error {
	number := p.Number()
	if number == "" || number == "+" {
		return calls.ErrInvalidDestination
	}
	return p.ctl.StartCall(ctx, number)
}

// View presents the coordinator state with the pad buffer overlaid.
func (p *Pad) View() View {
	return p.viewOf(p.ctl.Snapshot())
}

func (p *Pad) viewOf(s calls.Snapshot) View {
	v := Present(s)
	if n := p.Number(); n != "" && !v.State.Active() {
		v.Number = n
		v.Display = FormatDisplay(n)
	}
	return v
}
