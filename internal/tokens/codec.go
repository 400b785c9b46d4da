package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Kind string

const (
	KindAccess            Kind = "access"
	KindRefresh           Kind = "refresh"
	KindAuthorizationCode Kind = "authorization_code"
)

func (k Kind) Valid() bool {
	switch k {
	case KindAccess, KindRefresh, KindAuthorizationCode:
		return true
	}
	return false
}

// RequiresID reports whether tokens of this kind always carry a jti.
func (k Kind) RequiresID() bool {
	return k == KindRefresh || k == KindAuthorizationCode
}

// Claims is the payload of every token issued by the codec. Subject, ExpiresAt
// and ID (jti) come from the registered claims.
type Claims struct {
	Kind        Kind     `json:"type"`
	Scopes      []string `json:"scopes,omitempty"`
	ClientID    string   `json:"client_id,omitempty"`
	RedirectURI string   `json:"redirect_uri,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

type Config struct {
	SecretKey []byte
	Algorithm string
}

type Option func(*Codec)

// WithClock overrides the time source used to check expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		c.now = now
	}
}

// Codec signs and verifies tokens with a single shared secret. It holds no
// mutable state and is safe for concurrent use.
type Codec struct {
	secret []byte
	method jwt.SigningMethod
	now    func() time.Time
	parser *jwt.Parser
}

// Encode signs claims into a compact token. A fresh jti is generated for
// refresh tokens and authorization codes when claims.ID is empty; the generated
// value is written back to claims.
func (c *Codec) Encode(claims *Claims) (string, error) {
	if !claims.Kind.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, claims.Kind)
	}
	if claims.Subject == "" {
		return "", ErrMissingSubject
	}
	if claims.ExpiresAt == nil {
		return "", ErrMissingExpiry
	}
	if claims.Kind.RequiresID() && claims.ID == "" {
		claims.ID = uuid.NewString()
	}
	token := jwt.NewWithClaims(c.method, claims)
	return token.SignedString(c.secret)
}

// Decode verifies the signature and expiry of a token and returns its claims.
// Signature and structural failures yield ErrTokenInvalid; a well-signed token
// at or past its expiry yields ErrTokenExpired.
func (c *Codec) Decode(tokenStr string) (*Claims, error) {
	var claims Claims
	_, err := c.parser.ParseWithClaims(tokenStr, &claims, func(token *jwt.Token) (interface{}, error) {
		return c.secret, nil
	})
	if err != nil {
		// signature is verified before claims, so an expired error implies a valid signature
		if errors.Is(err, jwt.ErrTokenExpired) && !errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if claims.Subject == "" || !claims.Kind.Valid() {
		return nil, ErrTokenInvalid
	}
	if claims.Kind.RequiresID() && claims.ID == "" {
		return nil, ErrTokenInvalid
	}
	return &claims, nil
}

// Verify decodes a token and requires it to be of the given kind.
func (c *Codec) Verify(tokenStr string, kind Kind) (*Claims, error) {
	claims, err := c.Decode(tokenStr)
	if err != nil {
		return nil, err
	}
	if claims.Kind != kind {
		return nil, ErrTokenKindMismatch
	}
	return claims, nil
}

func NewCodec(config Config, opts ...Option) (*Codec, error) {
	if len(config.SecretKey) == 0 {
		return nil, ErrEmptySecret
	}
	method, ok := jwt.GetSigningMethod(config.Algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedSignMethod, config.Algorithm)
	}
	c := &Codec{
		secret: config.SecretKey,
		method: method,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	return c, nil
}
