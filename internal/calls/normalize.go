package calls

import "strings"

// NormalizeNumber turns user input into a dialable E.164-style string.
//
// Formatting characters are dropped. Numbers already starting with "+" are
// kept. "00" is the international prefix, a single leading "0" is a trunk
// prefix replaced by defaultCountryCode, and for NANP (+1) an 11-digit
// number starting with 1 already carries its country code. Everything else
// gets defaultCountryCode prefixed. No further validation is done.
func NormalizeNumber(raw, defaultCountryCode string) (string, error) {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && b.Len() == 0:
			b.WriteRune(r)
		}
	}
	s := b.String()
	if s == "" || s == "+" {
		return "", ErrInvalidDestination
	}
	if s[0] == '+' {
		return s, nil
	}

	switch {
	case strings.HasPrefix(s, "00") && len(s) > 2:
		return "+" + s[2:], nil
	case s[0] == '0' && len(s) > 1:
		return defaultCountryCode + s[1:], nil
	case defaultCountryCode == "+1" && len(s) == 11 && s[0] == '1':
		return "+" + s, nil
	}
	return defaultCountryCode + s, nil
}

// ValidDigits reports whether s contains only DTMF keypad symbols.
func ValidDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r >= '0' && r <= '9') && r != '*' && r != '#' {
			return false
		}
	}
	return true
}
