package credentials

import (
	"errors"
	"fmt"
	"unicode"

	"github.com/khanghh/tokenauth/params"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrWeakPassword     = errors.New("password does not meet the strength policy")
	ErrPasswordTooShort = fmt.Errorf("%w: must be at least %d characters", ErrWeakPassword, params.PasswordMinLength)
	ErrPasswordTooLong  = fmt.Errorf("%w: must be at most %d bytes", ErrWeakPassword, params.PasswordMaxLength)
	ErrPasswordNoDigit  = fmt.Errorf("%w: must contain at least one digit", ErrWeakPassword)
	ErrPasswordNoUpper  = fmt.Errorf("%w: must contain at least one uppercase letter", ErrWeakPassword)
	ErrPasswordNoLower  = fmt.Errorf("%w: must contain at least one lowercase letter", ErrWeakPassword)
)

// HashPassword returns the bcrypt hash of a plaintext password.
func HashPassword(password string) (string, error) {
	if len(password) > params.PasswordMaxLength {
		return "", ErrPasswordTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches the stored bcrypt hash.
func VerifyPassword(password string, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidatePasswordStrength checks the registration policy: minimum length and
// at least one digit, one uppercase and one lowercase letter.
func ValidatePasswordStrength(password string) error {
	if len([]rune(password)) < params.PasswordMinLength {
		return ErrPasswordTooShort
	}
	if len(password) > params.PasswordMaxLength {
		return ErrPasswordTooLong
	}
	var hasDigit, hasUpper, hasLower bool
	for _, r := range password {
		switch {
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		}
	}
	if !hasDigit {
		return ErrPasswordNoDigit
	}
	if !hasUpper {
		return ErrPasswordNoUpper
	}
	if !hasLower {
		return ErrPasswordNoLower
	}
	return nil
}
