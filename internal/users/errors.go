package users

import "errors"

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrInvalidCredentials   = errors.New("invalid username or password")
	ErrInvalidUsername      = errors.New("username must not contain '@'")
	ErrUsernameTaken        = errors.New("username already in use")
	ErrEmailRegistered      = errors.New("email already in use")
	ErrEmailAlreadyVerified = errors.New("email already verified")
)
