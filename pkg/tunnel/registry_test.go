package tunnel

import (
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryInsertRejectsDuplicate(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Insert("a", &Entry{Session: NewSession("a")}))

	err := r.Insert("a", &Entry{Session: NewSession("a")})
	assert.Error(t, err)
}

func TestRegistryGetMissing(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Get("missing")
	assert.False(t, ok)
}

func TestRegistryRemoveAndTakeUnlinksBeforeReturning(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Insert("a", &Entry{Session: NewSession("a")}))

	e, ok := r.RemoveAndTake("a")
	require.True(t, ok)
	assert.Equal(t, "a", e.Session.ID)

	_, ok = r.Get("a")
	assert.False(t, ok, "session must be gone from the map once removed")

	_, ok = r.RemoveAndTake("a")
	assert.False(t, ok, "removing twice is a no-op, not an error")
}

func TestRegistryIterateForShutdownEmptiesRegistry(t *testing.T) {
	r := NewRegistry()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, r.Insert(id, &Entry{Session: NewSession(id)}))
	}

	var seen []string
	r.IterateForShutdown(func(id string, e *Entry) {
		seen = append(seen, id)
	})

	assert.Len(t, seen, 3)
	assert.Equal(t, 0, r.Len())
}

// TestRegistryConcurrentAccess exercises the registry the way both
// relays do: many goroutines inserting, looking up, and removing
// distinct sessions at once.
func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	const n = 200

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			id := NewSessionID()
			assert.NoError(t, r.Insert(id, &Entry{Session: NewSession(id)}))
			_, ok := r.Get(id)
			assert.True(t, ok)
			_, ok = r.RemoveAndTake(id)
			assert.True(t, ok)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, r.Len())
}

func TestEntryConnIsNilSafeForIngressOnlySessions(t *testing.T) {
	var conn net.Conn
	e := &Entry{Session: NewSession("x"), Conn: conn}
	assert.Nil(t, e.Conn)
}
