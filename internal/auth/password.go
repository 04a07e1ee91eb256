package auth

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"github.com/netadmind/netadmind/internal/shared"
)

// PasswordPolicy holds the complexity requirements applied to directory
// passwords at create and reset time.
type PasswordPolicy struct {
	MinLength      int
	RequireUpper   bool
	RequireLower   bool
	RequireNumber  bool
	RequireSpecial bool
}

// Validate checks a candidate password against the policy.
func (p PasswordPolicy) Validate(password string) error {
	if len(password) < p.MinLength {
		return fmt.Errorf("%w: password must be at least %d characters", shared.ErrValidation, p.MinLength)
	}
	var upper, lower, number, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			number = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special = true
		}
	}
	if p.RequireUpper && !upper {
		return fmt.Errorf("%w: password must contain an uppercase letter", shared.ErrValidation)
	}
	if p.RequireLower && !lower {
		return fmt.Errorf("%w: password must contain a lowercase letter", shared.ErrValidation)
	}
	if p.RequireNumber && !number {
		return fmt.Errorf("%w: password must contain a number", shared.ErrValidation)
	}
	if p.RequireSpecial && !special {
		return fmt.Errorf("%w: password must contain a special character", shared.ErrValidation)
	}
	return nil
}

// HashPassword produces a {CRYPT}-tagged bcrypt hash suitable for the
// userPassword attribute.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return "{CRYPT}" + string(hash), nil
}

// VerifyPassword checks a plaintext password against a stored hash.
func VerifyPassword(password, stored string) bool {
	hash := strings.TrimPrefix(stored, "{CRYPT}")
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
