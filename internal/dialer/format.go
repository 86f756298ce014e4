package dialer

import (
	"fmt"
	"strings"
)

// FormatDisplay renders a number for the dialer display. Ten-digit NANP
// numbers become (AAA) BBB-CCCC, with a +1 prefix when the country code
// was typed. Anything else is shown as typed, minus stray characters.
func FormatDisplay(number string) string {
	var b strings.Builder
	for _, r := range number {
		if (r >= '0' && r <= '9') || r == '*' || r == '#' || (r == '+' && b.Len() == 0) {
			b.WriteRune(r)
		}
	}
	s := b.String()

	digits := strings.TrimPrefix(s, "+")
	if strings.ContainsAny(digits, "*#") {
		return s
	}
	switch {
	case len(digits) == 10 && !strings.HasPrefix(s, "+"):
		return fmt.Sprintf("(%s) %s-%s", digits[:3], digits[3:6], digits[6:])
	case len(digits) == 11 && digits[0] == '1':
		return fmt.Sprintf("+1 (%s) %s-%s", digits[1:4], digits[4:7], digits[7:])
	}
	return s
}

// FormatDuration renders seconds as mm:ss. Minutes keep counting past 59.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
