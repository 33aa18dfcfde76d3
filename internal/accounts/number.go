package accounts

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	accountNumberLength = 10
	accountNumberMin    = 1_000_000_000
	accountNumberSpan   = 9_000_000_000
)

// GenerateAccountNumber returns a random 10-digit number that never starts
// with zero.
func GenerateAccountNumber() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(accountNumberSpan))
	if err != nil {
		return "", fmt.Errorf("generate account number: %w", err)
	}
	return fmt.Sprintf("%d", n.Int64()+accountNumberMin), nil
}

// IsAccountNumber reports whether s has the shape of an account number.
func IsAccountNumber(s string) bool {
	if len(s) != accountNumberLength {
		return false
	}

	for _, ch := range s {
		if ch < '0' || ch > '9' {
			return false
		}
	}

	return true
}
