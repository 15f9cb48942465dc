package tunnel

// Adaptive buffer parameters (spec.md §4.2).
const (
	InitialBufferSize = 1024
	MaxBufferSize     = 65536
	BufferGrowth      = 2
)

// nextBufferSize implements the adaptive sizing rule: a read that fills
// the buffer completely suggests the peer has more to give, so the
// buffer grows; a read that comes back well under capacity suggests the
// buffer is oversized, so it shrinks. Reads in between leave it alone.
func nextBufferSize(current, n int) int {
	switch {
	case n == current && current < MaxBufferSize:
		next := current * BufferGrowth
		if next > MaxBufferSize {
			next = MaxBufferSize
		}
		return next
	case n < current/(BufferGrowth*2) && current > InitialBufferSize:
		next := current / BufferGrowth
		if next < InitialBufferSize {
			next = InitialBufferSize
		}
		return next
	default:
		return current
	}
}

// AdjustBuffer updates the session's adaptive buffer size given the
// byte count of the most recent read and returns the new size to use
// for the next read.
func (s *Session) AdjustBuffer(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bufSize = nextBufferSize(s.bufSize, n)
	return s.bufSize
}
