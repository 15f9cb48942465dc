package tunnel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextBufferSizeGrowsOnFullRead(t *testing.T) {
	tests := []struct {
		name    string
		current int
		n       int
		want    int
	}{
		{"full read at initial grows", 1024, 1024, 2048},
		{"full read doubles again", 2048, 2048, 4096},
		{"full read caps at max", 32768, 32768, 65536},
		{"full read at max stays at max", 65536, 65536, 65536},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, nextBufferSize(tt.current, tt.n))
		})
	}
}

func TestNextBufferSizeShrinksOnSmallRead(t *testing.T) {
	tests := []struct {
		name    string
		current int
		n       int
		want    int
	}{
		{"well under quarter shrinks", 4096, 100, 2048},
		{"shrink never goes below initial", 2048, 10, 1024},
		{"already at initial stays", 1024, 10, 1024},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, nextBufferSize(tt.current, tt.n))
		})
	}
}

func TestNextBufferSizeUnchangedInBetween(t *testing.T) {
	// A read that's neither a full fill nor well under the quarter
	// mark leaves the size alone.
	assert.Equal(t, 4096, nextBufferSize(4096, 3000))
}

// TestAdaptiveBufferBounds is property P6: INITIAL <= size <= MAX always,
// for any sequence of read sizes.
func TestAdaptiveBufferBounds(t *testing.T) {
	sess := NewSession("p6")
	reads := []int{1024, 1024, 1024, 2048, 4096, 1, 2, 3, 65536, 65536, 10}
	for _, n := range reads {
		size := sess.AdjustBuffer(n)
		assert.GreaterOrEqual(t, size, InitialBufferSize)
		assert.LessOrEqual(t, size, MaxBufferSize)
	}
}

func TestAdjustBufferNeverGrowsOnStrictlySmallerRead(t *testing.T) {
	sess := NewSession("s1")
	before := sess.BufferSize()
	sess.AdjustBuffer(before - 1)
	assert.LessOrEqual(t, sess.BufferSize(), before)
}

func TestBufferGrowthReachesMaxWithinBoundedReads(t *testing.T) {
	sess := NewSession("growth")
	reads := 0
	for sess.BufferSize() < MaxBufferSize {
		sess.AdjustBuffer(sess.BufferSize())
		reads++
		if reads > 32 {
			t.Fatalf("buffer did not reach MAX within a bounded number of reads")
		}
	}
	assert.Equal(t, MaxBufferSize, sess.BufferSize())
}
