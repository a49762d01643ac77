package validation

import "regexp"

const (
	MinUsernameLen = 3
	MaxUsernameLen = 100
	MinPasswordLen = 6
)

var usernameRe = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// IsValidUsername allows letters, digits, dot, underscore and hyphen.
func IsValidUsername(username string) bool {
	return len(username) >= MinUsernameLen &&
		len(username) <= MaxUsernameLen &&
		usernameRe.MatchString(username)
}

func IsValidPassword(password string) bool {
	return len(password) >= MinPasswordLen
}
