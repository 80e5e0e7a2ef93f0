// Package checksum fingerprints index entries so unchanged ones can be skipped.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fields digests parts in order. Each part is length-prefixed so that
// ("ab", "c") and ("a", "bc") differ.
func Fields(parts ...string) string {
	h := sha256.New()
	var n [8]byte
	for _, p := range parts {
		l := uint64(len(p))
		for i := range n {
			n[i] = byte(l >> (8 * i))
		}
		h.Write(n[:])
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}
