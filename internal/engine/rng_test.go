package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ Source = (*ByteGenerator)(nil)
	_ Source = NewPCG(0)
)

var testSeeds = Seeds{Server: "test_server_seed", Client: "test_client_seed"}

func TestNextFloat(t *testing.T) {
	tests := []struct {
		name    string
		nonce   uint64
		cursor  uint64
		count   int
		wantLen int
	}{
		{"basic float generation", 1, 0, 1, 1},
		{"multiple floats", 1, 0, 8, 8},
		{"cursor boundary test", 1, 31, 2, 2},
		{"spans several rounds", 7, 0, 40, 40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bg := NewByteGenerator(testSeeds, tt.nonce, tt.cursor)
			floats := make([]float64, tt.count)
			for i := range floats {
				floats[i] = bg.NextFloat()
			}
			require.Len(t, floats, tt.wantLen)
			assert.Equal(t, tt.cursor+uint64(4*tt.count), bg.Cursor())

			for i, f := range floats {
				if f < 0 || f >= 1 {
					t.Errorf("Float %d is out of range [0, 1): %f", i, f)
				}
			}
		})
	}
}

func TestByteGeneratorDeterministic(t *testing.T) {
	a := NewByteGenerator(testSeeds, 42, 0)
	b := NewByteGenerator(testSeeds, 42, 0)

	for i := 0; i < 100; i++ {
		require.Equal(t, a.Uint64(), b.Uint64(), "draw %d", i)
	}
	assert.Equal(t, uint64(800), a.Cursor())
}

func TestByteGeneratorCursorResumesStream(t *testing.T) {
	full := NewByteGenerator(testSeeds, 3, 0)
	var bytes []byte
	for i := 0; i < 70; i++ {
		bytes = append(bytes, full.Next())
	}

	resumed := NewByteGenerator(testSeeds, 3, 33)
	for i := 33; i < 70; i++ {
		assert.Equal(t, bytes[i], resumed.Next(), "byte %d", i)
	}
}

func TestByteGeneratorNonceChangesStream(t *testing.T) {
	a := NewByteGenerator(testSeeds, 1, 0)
	b := NewByteGenerator(testSeeds, 2, 0)
	assert.NotEqual(t, a.Uint64(), b.Uint64())
}

func TestByteGeneratorIntNRange(t *testing.T) {
	bg := NewByteGenerator(testSeeds, 9, 0)
	counts := make([]int, 4)
	for i := 0; i < 4000; i++ {
		v := bg.IntN(4)
		require.GreaterOrEqual(t, v, 0)
		require.Less(t, v, 4)
		counts[v]++
	}
	for d, c := range counts {
		assert.InDelta(t, 1000, c, 200, "direction %d drawn %d times", d, c)
	}

	assert.Panics(t, func() { bg.IntN(0) })
}

func TestBytesToFloat(t *testing.T) {
	assert.Equal(t, 0.0, bytesToFloat([4]byte{0, 0, 0, 0}))
	assert.Equal(t, 0.5, bytesToFloat([4]byte{128, 0, 0, 0}))
	assert.Less(t, bytesToFloat([4]byte{255, 255, 255, 255}), 1.0)
}
