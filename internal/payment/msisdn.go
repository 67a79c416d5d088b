package payment

import (
	"errors"
	"strings"
)

var ErrInvalidMSISDN = errors.New("invalid phone number")

// NormalizeMSISDN canonicalizes a Kenyan subscriber number to the 254XXXXXXXXX
// form the provider expects. Accepted inputs: +254..., 254..., and the local
// 07.../01... forms, with spaces and dashes tolerated.
func NormalizeMSISDN(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "-", "")
	s = strings.TrimPrefix(s, "+")

	switch {
	case strings.HasPrefix(s, "254"):
		// already international
	case strings.HasPrefix(s, "0"):
		s = "254" + s[1:]
	default:
		return "", ErrInvalidMSISDN
	}

	if len(s) != 12 {
		return "", ErrInvalidMSISDN
	}
	// mobile (7xx) and the newer 1xx ranges only
	if s[3] != '7' && s[3] != '1' {
		return "", ErrInvalidMSISDN
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return "", ErrInvalidMSISDN
		}
	}
	return s, nil
}
