package tunnel

import (
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunReadLoopDeliversInOrder(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	chunks := [][]byte{[]byte("one"), []byte("two"), []byte("three")}
	go func() {
		for _, c := range chunks {
			_, _ = client.Write(c)
		}
		client.Close()
	}()

	sess := NewSession("readloop")
	var got []byte
	err := RunReadLoop(server, sess, func(chunk []byte) error {
		got = append(got, chunk...)
		return nil
	})

	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "onetwothree", string(got))
}

func TestRunReadLoopStopsOnCallbackError(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		_, _ = client.Write([]byte("data"))
	}()

	sess := NewSession("readloop-err")
	boom := assert.AnError
	err := RunReadLoop(server, sess, func(chunk []byte) error {
		return boom
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}
