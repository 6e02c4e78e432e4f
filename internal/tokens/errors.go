package tokens

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRefreshToken covers every refresh failure: undecryptable
	// token, missing record, revoked or expired record and missing user.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrStorePersistence    = errors.New("token store persistence failure")
	ErrTokenInvalid        = errors.New("invalid access token")
	ErrTokenNotFound       = errors.New("access token not found")
)

func storeError(err error) error {
	return fmt.Errorf("%w: %w", ErrStorePersistence, err)
}
