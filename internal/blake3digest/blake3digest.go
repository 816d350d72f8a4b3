// Package blake3digest wraps the BLAKE3 hasher used for manifest digests.
package blake3digest

import (
	"encoding/hex"

	"lukechampine.com/blake3"
)

// Size is the digest length in bytes (256 bits), giving a 64-hex-char digest.
const Size = 32

// HexLen is the length of a digest once hex-encoded.
const HexLen = Size * 2

// Hasher accumulates bytes in the order they are written and produces a
// lowercase-hex digest. Writes must happen in ascending file-offset order;
// the hasher itself does not track offsets.
type Hasher struct {
	h *blake3.Hasher
}

// New returns a ready-to-use Hasher.
func New() *Hasher {
	return &Hasher{h: blake3.New(Size, nil)}
}

// Write feeds bytes into the running digest. Never returns an error.
func (d *Hasher) Write(p []byte) {
	_, _ = d.h.Write(p)
}

// Sum returns the lowercase-hex digest of everything written so far.
func (d *Hasher) Sum() string {
	return hex.EncodeToString(d.h.Sum(nil))
}

// Of returns the hex digest of a single byte slice, for small in-memory inputs.
func Of(b []byte) string {
	h := New()
	h.Write(b)
	return h.Sum()
}

// Valid reports whether s has the shape of a BLAKE3 digest: 64 lowercase hex characters.
func Valid(s string) bool {
	if len(s) != HexLen {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
