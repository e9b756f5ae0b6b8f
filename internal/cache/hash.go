package cache

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Hasher turns a cache key into the identifier used in its filename.
// Implementations must be deterministic and collision resistant.
type Hasher interface {
	Hash(key string) string
}

// IdentifierMatcher is implemented by hashers whose output has a fixed shape.
// Clear uses it to tell this store's files from those of a store whose
// prefix merely starts with the same characters.
type IdentifierMatcher interface {
	Owns(id string) bool
}

// HashFunc adapts an ordinary function to Hasher.
type HashFunc func(key string) string

func (f HashFunc) Hash(key string) string { return f(key) }

// Blake2bHasher hex-encodes the BLAKE2b-256 digest of the key.
type Blake2bHasher struct{}

func (Blake2bHasher) Hash(key string) string {
	sum := blake2b.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// Owns reports whether id is 64 lowercase hex characters.
func (Blake2bHasher) Owns(id string) bool {
	if len(id) != 2*blake2b.Size256 {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

var (
	_ Hasher            = HashFunc(nil)
	_ Hasher            = Blake2bHasher{}
	_ IdentifierMatcher = Blake2bHasher{}
)
