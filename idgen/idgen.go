// Package idgen provides the identifier strategies used across carrousel:
// time-sortable UUIDv7 for batches and slides, short base-36 tokens for
// output filenames.
package idgen

import (
	"crypto/rand"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// NanoID returns a Generator of base-36 IDs of the given length. Filenames
// use it because a full UUID makes slide names unreadable.
func NanoID(length int) Generator {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	return func() string {
		buf := make([]byte, length)
		if _, err := rand.Read(buf); err != nil {
			panic("idgen: crypto/rand failed: " + err.Error())
		}
		for i := range buf {
			buf[i] = alphabet[int(buf[i])%len(alphabet)]
		}
		return string(buf)
	}
}

// UUIDv7 returns a Generator of RFC 9562 UUID v7 strings.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed prepends a fixed prefix to every ID ("sld_", "bat_").
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Default is UUIDv7.
var Default Generator = UUIDv7()

// Slide generates slide identifiers.
var Slide Generator = Prefixed("sld_", NanoID(10))

// Batch generates batch identifiers.
var Batch Generator = Prefixed("bat_", Default)

// New produces an ID using the Default generator.
func New() string {
	return Default()
}
