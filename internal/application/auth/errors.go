package auth

import "errors"

var (
	ErrCredentialsRequired = errors.New("Username and password required")
	ErrUsernameTooShort    = errors.New("Username must be at least 3 characters")
	ErrUsernameInvalid     = errors.New("Username may only contain letters, digits, '.', '_' and '-'")
	ErrPasswordTooShort    = errors.New("Password must be at least 6 characters")
	ErrUsernameTaken       = errors.New("Username already exists")
	ErrInvalidCredentials  = errors.New("Invalid username or password")
	ErrNotAuthenticated    = errors.New("Not authenticated")
)
