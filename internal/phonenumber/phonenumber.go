// Package phonenumber canonicalizes phone strings to a single
// E.164-without-plus form (254XXXXXXXXX) and validates the subscriber
// portion against the operator prefix rules. The normalized form is the
// identity used everywhere else in ticketbot: user id lookup, session
// key, lock owner tag.
package phonenumber

import (
	"regexp"
	"strings"

	"ticketbot/internal/status"
)

// operatorPrefix matches the 9-digit subscriber portion of a Kenyan
// mobile number across the Safaricom/Airtel/Telkom ranges.
var operatorPrefix = regexp.MustCompile(`^(7(0[0-9]|1[0-9]|2[0-9]|3[0-5]|4[0-3]|5[0-9]|6[0-9]|7[0-9]|8[0-9]|9[0-9])|1(0[0-2]|1[0-5]))\d{6}$`)

// Normalize strips whitespace and hyphens, drops a leading '+', and
// rewrites the remainder into the 254-prefixed canonical form.
func Normalize(raw string) (string, error) {
	s := strings.Join(strings.Fields(raw), "")
	s = strings.ReplaceAll(s, "-", "")
	s = strings.TrimPrefix(s, "+")

	if s == "" {
		return "", status.New(status.InvalidPhone, nil)
	}

	var candidate string
	switch {
	case strings.HasPrefix(s, "254"):
		candidate = s
	case strings.HasPrefix(s, "0"):
		candidate = "254" + s[1:]
	case len(s) == 9:
		candidate = "254" + s
	default:
		return "", status.New(status.InvalidPhone, nil)
	}

	subscriber := strings.TrimPrefix(candidate, "254")
	if !operatorPrefix.MatchString(subscriber) {
		return "", status.New(status.InvalidPhone, nil)
	}

	return candidate, nil
}

// Validate reports whether raw normalizes successfully.
func Validate(raw string) bool {
	_, err := Normalize(raw)
	return err == nil
}
