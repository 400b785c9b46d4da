package tokens

import (
	"errors"
	"fmt"
)

var (
	ErrTokenInvalid          = errors.New("invalid token")
	ErrTokenExpired          = errors.New("token is expired")
	ErrTokenKindMismatch     = fmt.Errorf("%w: unexpected token type", ErrTokenInvalid)
	ErrMissingSubject        = errors.New("token subject is required")
	ErrMissingExpiry         = errors.New("token expiry is required")
	ErrUnknownKind           = errors.New("unknown token type")
	ErrEmptySecret           = errors.New("signing secret must not be empty")
	ErrUnsupportedSignMethod = errors.New("signing algorithm must be HMAC")
)
