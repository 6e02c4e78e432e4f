package joseutil

import "errors"

var (
	ErrTokenInvalid  = errors.New("invalid token")
	ErrDecryptFailed = errors.New("token decryption failed")
	ErrInvalidKey    = errors.New("invalid key")
	ErrEmptyKey      = errors.New("empty key material")
)
