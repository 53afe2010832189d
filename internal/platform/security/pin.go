// Package security hashes and verifies wallet PINs.
package security

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"golang.org/x/crypto/bcrypt"
)

var pinPattern = regexp.MustCompile(`^[0-9]{6}$`)

// ErrInvalidPinFormat is returned for anything but exactly six digits
var ErrInvalidPinFormat = errors.New("pin must be exactly 6 digits")

// PinHasher hashes PINs with bcrypt
type PinHasher struct {
	cost int
}

// NewPinHasher returns a hasher using cost, or bcrypt.DefaultCost when cost is out of range
func NewPinHasher(cost int) *PinHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &PinHasher{cost: cost}
}

// ValidateFormat checks the PIN shape without hashing it
func ValidateFormat(pin string) error {
	if !pinPattern.MatchString(pin) {
		return ErrInvalidPinFormat
	}
	return nil
}

// Hash returns the bcrypt hash of pin
func (h *PinHasher) Hash(pin string) (string, error) {
	if err := ValidateFormat(pin); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash pin: %w", err)
	}
	return string(hash), nil
}

// Compare reports whether pin matches hash. The bcrypt work runs off the caller's
// goroutine so ctx can bound it; a cancelled ctx returns ctx.Err().
func (h *PinHasher) Compare(ctx context.Context, hash, pin string) (bool, error) {
	done := make(chan error, 1)
	go func() {
		done <- bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin))
	}()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case err := <-done:
		if err == nil {
			return true, nil
		}
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, fmt.Errorf("failed to compare pin: %w", err)
	}
}
