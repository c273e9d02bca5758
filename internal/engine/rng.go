package engine

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"hash"
	"math"
	"strconv"
)

// ByteGenerator streams bytes from HMAC-SHA256(server, "client:nonce:round").
// It is slow compared to NewPCG but lets a single trial be replayed and
// verified by anyone holding the seeds.
type ByteGenerator struct {
	mac          hash.Hash
	clientSeed   string
	nonce        uint64
	currentRound uint64
	currentPos   int
	buffer       [32]byte
	msg          []byte
}

// NewByteGenerator creates a new byte generator positioned at cursor.
func NewByteGenerator(seeds Seeds, nonce uint64, cursor uint64) *ByteGenerator {
	bg := &ByteGenerator{
		mac:          hmac.New(sha256.New, []byte(seeds.Server)),
		clientSeed:   seeds.Client,
		nonce:        nonce,
		currentRound: cursor / 32,
		currentPos:   int(cursor % 32),
	}

	// Always generate the initial round
	bg.generateRound()

	return bg
}

// Next returns the next byte from the generator.
func (bg *ByteGenerator) Next() byte {
	if bg.currentPos >= 32 {
		bg.currentRound++
		bg.currentPos = 0
		bg.generateRound()
	}

	b := bg.buffer[bg.currentPos]
	bg.currentPos++
	return b
}

// NextFloat generates the next float in [0, 1) from exactly 4 bytes.
func (bg *ByteGenerator) NextFloat() float64 {
	return bytesToFloat([4]byte{bg.Next(), bg.Next(), bg.Next(), bg.Next()})
}

// Uint64 consumes 8 bytes, big-endian.
func (bg *ByteGenerator) Uint64() uint64 {
	var b [8]byte
	for i := range b {
		b[i] = bg.Next()
	}
	return binary.BigEndian.Uint64(b[:])
}

// IntN scales one float draw onto [0, n).
func (bg *ByteGenerator) IntN(n int) int {
	if n <= 0 {
		panic("engine: IntN called with non-positive n")
	}
	idx := int(bg.NextFloat() * float64(n))
	if idx >= n {
		idx = n - 1
	}
	return idx
}

// Cursor returns the number of bytes consumed relative to round 0.
func (bg *ByteGenerator) Cursor() uint64 {
	return bg.currentRound*32 + uint64(bg.currentPos)
}

func (bg *ByteGenerator) generateRound() {
	bg.msg = bg.msg[:0]
	bg.msg = append(bg.msg, bg.clientSeed...)
	bg.msg = append(bg.msg, ':')
	bg.msg = strconv.AppendUint(bg.msg, bg.nonce, 10)
	bg.msg = append(bg.msg, ':')
	bg.msg = strconv.AppendUint(bg.msg, bg.currentRound, 10)

	bg.mac.Reset()
	bg.mac.Write(bg.msg)
	bg.mac.Sum(bg.buffer[:0])
}

// bytesToFloat computes sum(b[i] / 256^(i+1)).
func bytesToFloat(bytes [4]byte) float64 {
	result := 0.0
	for i, b := range bytes {
		divider := math.Pow(256, float64(i+1))
		result += float64(b) / divider
	}
	return result
}
