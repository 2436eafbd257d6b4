// Package otpcode generates numeric one-time codes and their salted digests.
package otpcode

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
)

const (
	MinDigits = 6
	MaxDigits = 10
	saltBytes = 16
)

// Generate returns a zero-padded code drawn uniformly from [0, 10^digits).
// rand.Int samples by rejection, so every code is equally likely.
func Generate(digits int) (string, error) {
	if digits < MinDigits || digits > MaxDigits {
		return "", errors.New("invalid otp digits")
	}
	space := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(rand.Reader, space)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%0*d", digits, n), nil
}

// NewSalt returns a random hex-encoded per-challenge salt.
func NewSalt() (string, error) {
	b := make([]byte, saltBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate otp salt: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Hash digests code with the challenge salt and the server-wide pepper.
func Hash(code, salt, pepper string) string {
	sum := sha256.Sum256([]byte(pepper + ":" + salt + ":" + code))
	return hex.EncodeToString(sum[:])
}

// Equal reports whether code hashes to storedHash, in constant time.
func Equal(code, salt, pepper, storedHash string) bool {
	return subtle.ConstantTimeCompare([]byte(Hash(code, salt, pepper)), []byte(storedHash)) == 1
}

// WellFormed reports whether code consists of exactly digits ASCII digits.
func WellFormed(code string, digits int) bool {
	if len(code) != digits {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
