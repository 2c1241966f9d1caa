package auth

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	minPINLength = 4
	maxPINLength = 8

	// bcrypt reads at most this many bytes of the key.
	maxHashedLength = 72
)

var (
	ErrWeakPIN = errors.New("PIN must be 4 to 8 digits")
)

// ValidatePIN checks if the PIN meets minimum requirements.
func ValidatePIN(pin string) error {
	if len(pin) < minPINLength || len(pin) > maxPINLength {
		return ErrWeakPIN
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return ErrWeakPIN
		}
	}
	return nil
}

// HashPIN returns a bcrypt hash of pin. A cost of 0 uses bcrypt.DefaultCost.
func HashPIN(pin string, cost int) ([]byte, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash PIN: %w", err)
	}
	return hash, nil
}

// ComparePIN reports whether candidate matches hash. Candidates bcrypt would
// truncate or cut at a NUL byte never match.
func ComparePIN(hash []byte, candidate string) bool {
	if len(candidate) > maxHashedLength || strings.IndexByte(candidate, 0) >= 0 {
		return false
	}
	return bcrypt.CompareHashAndPassword(hash, []byte(candidate)) == nil
}
