// Package idgen builds human-readable references such as TXN20250610143015A1B2C3.
package idgen

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"
)

const (
	layout      = "20060102150405"
	suffixBytes = 3
)

// New returns prefix + the UTC timestamp of now + six random hex characters.
// Uniqueness is enforced by the storage layer; callers retry on a clash.
func New(prefix string, now time.Time) string {
	return prefix + now.UTC().Format(layout) + suffix()
}

func suffix() string {
	b := make([]byte, suffixBytes)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand does not fail on supported platforms
		panic(err)
	}
	return strings.ToUpper(hex.EncodeToString(b))
}
