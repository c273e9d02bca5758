package engine

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	mrand "math/rand/v2"
)

// NewPCG returns a fast generator for bulk sampling. Two 64-bit words of
// state come from the supplied seed so distinct seeds give distinct streams.
func NewPCG(seed uint64) *mrand.Rand {
	return mrand.New(mrand.NewPCG(seed, splitmix64(seed)))
}

// DeriveSeed returns a 64-bit seed for the stream identified by label and the
// two indices. The same inputs always give the same seed, and changing any of
// them gives an unrelated one.
func DeriveSeed(seeds Seeds, label string, a, b uint64) uint64 {
	h := hmac.New(sha256.New, []byte(seeds.Server))
	var idx [16]byte
	binary.BigEndian.PutUint64(idx[:8], a)
	binary.BigEndian.PutUint64(idx[8:], b)

	h.Write([]byte(seeds.Client))
	h.Write([]byte{0})
	h.Write([]byte(label))
	h.Write([]byte{0})
	h.Write(idx[:])

	sum := h.Sum(nil)
	return binary.BigEndian.Uint64(sum[:8])
}

// RandomSeeds draws fresh seed material from the OS entropy pool.
func RandomSeeds() (Seeds, error) {
	var buf [32]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return Seeds{}, fmt.Errorf("read entropy: %w", err)
	}
	return Seeds{
		Server: hex.EncodeToString(buf[:16]),
		Client: hex.EncodeToString(buf[16:]),
	}, nil
}

// HashSeed returns the hex SHA-256 of a seed, suitable for storage and logs.
func HashSeed(seed string) string {
	if seed == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])
}

func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
