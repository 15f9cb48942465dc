package tunnel

import "net"

// ChunkFunc is invoked once per successful read with the bytes read.
// Returning a non-nil error aborts the loop.
type ChunkFunc func(chunk []byte) error

// RunReadLoop repeatedly reads from conn using the session's adaptive
// buffer size, invoking onChunk for every non-empty read, until the
// connection reaches EOF, a read error occurs, or onChunk returns an
// error. It is used identically by the ingress read loop (against the
// application socket) and the egress response pump (against the target
// socket) — the same algorithm, driven by whichever session belongs to
// that side of the relay.
func RunReadLoop(conn net.Conn, sess *Session, onChunk ChunkFunc) error {
	for {
		buf := make([]byte, sess.BufferSize())
		n, err := conn.Read(buf)
		if n > 0 {
			sess.AdjustBuffer(n)
			if cbErr := onChunk(buf[:n]); cbErr != nil {
				return cbErr
			}
		}
		if err != nil {
			return err
		}
	}
}
