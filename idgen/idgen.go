// Package idgen provides pluggable ID generation for navkeeper.
//
// Restoration ids need to be unique within one browsing session (tens to
// low thousands of history entries), not globally. NanoID covers that with
// short URL-safe strings; UUIDv7 is for session- and page-scoped ids that
// may end up in logs or databases.
package idgen

import (
	"crypto/rand"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// NanoID returns a Generator that produces base-36 IDs of the given length.
// Collision probability at length 16 is negligible for session-scale counts.
func NanoID(length int) Generator {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	return func() string {
		b := make([]byte, length)
		buf := make([]byte, length)
		if _, err := rand.Read(buf); err != nil {
			panic("idgen: crypto/rand failed: " + err.Error())
		}
		for i := range b {
			b[i] = alphabet[int(buf[i])%len(alphabet)]
		}
		return string(b)
	}
}

// UUIDv7 returns a Generator that produces RFC 9562 UUID v7 strings.
// Time-sortable, globally unique.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed wraps a Generator and prepends a fixed prefix to every ID.
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Restoration is the generator for navigation-entry restoration ids.
var Restoration Generator = NanoID(16)

// Default is the generator for everything else: UUIDv7.
var Default Generator = UUIDv7()
