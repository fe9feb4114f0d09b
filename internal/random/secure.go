// Package random provides cryptographically secure randomization for DNS
// query identifiers.
package random

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
)

// TransactionID generates a cryptographically random 16-bit transaction ID.
// NEVER use math/rand for DNS transaction IDs - it's predictable and makes
// off-path response spoofing trivial.
func TransactionID() uint16 {
	var buf [2]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	return binary.BigEndian.Uint16(buf[:])
}

// Secret returns a fresh 128-bit secret suitable for keying a SipHash
// instance, such as the one backing the resolver's caches.
func Secret() (k0, k1 uint64) {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	k0 = binary.BigEndian.Uint64(buf[0:8])
	k1 = binary.BigEndian.Uint64(buf[8:16])
	return k0, k1
}
