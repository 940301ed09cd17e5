package production

import (
	"fmt"
	"strings"
)

// NormalizePhone strips formatting characters and rewrites a leading
// national trunk prefix 8 into country code 7, so "+7 (900) 123-45-67" and
// "89001234567" both become "79001234567".
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		switch {
		case r == '+' || r == '(' || r == ')' || r == '-' || r == ' ':
			continue
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			return "", fmt.Errorf("%w: unexpected %q", ErrInvalidPhone, r)
		}
	}
	phone := b.String()
	if strings.HasPrefix(phone, "8") {
		phone = "7" + phone[1:]
	}
	if len(phone) < 11 || len(phone) > 13 {
		return "", fmt.Errorf("%w: %d digits", ErrInvalidPhone, len(phone))
	}
	return phone, nil
}
