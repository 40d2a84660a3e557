// ABOUTME: Tests for the key-value sinks
// ABOUTME: Shared contract suite run against Memory, Dir, SQLite and Async

package kv

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runSinkContract(t *testing.T, s Sink) {
	t.Helper()

	_, ok, err := s.Get("missing")
	require.NoError(t, err)
	assert.False(t, ok, "absent key must report ok=false")

	require.NoError(t, s.Set("doc", `{"v":1}`))
	v, ok, err := s.Get("doc")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"v":1}`, v)

	require.NoError(t, s.Set("doc", `{"v":2}`))
	v, _, err = s.Get("doc")
	require.NoError(t, err)
	assert.Equal(t, `{"v":2}`, v, "Set must overwrite")

	require.NoError(t, s.Set("with/slash key", "x"))
	v, ok, err = s.Get("with/slash key")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "x", v)
}

func TestMemory_Contract(t *testing.T) {
	t.Parallel()
	m := NewMemory()
	runSinkContract(t, m)
	assert.Equal(t, 2, m.Keys())
}

func TestDir_Contract(t *testing.T) {
	t.Parallel()
	d, err := NewDir(filepath.Join(t.TempDir(), "store"))
	require.NoError(t, err)
	runSinkContract(t, d)
}

func TestDir_NoTempFileLeft(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	d, err := NewDir(root)
	require.NoError(t, err)
	require.NoError(t, d.Set("k", "v"))

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "k.json", entries[0].Name())
}

func TestSQLite_Contract(t *testing.T) {
	t.Parallel()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "nested", "history.db"), WithMkdirAll())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	runSinkContract(t, s)

	keys, err := s.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"doc", "with/slash key"}, keys)
}

func TestSQLite_PersistsAcrossOpen(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "history.db")

	s, err := OpenSQLite(path, WithBusyTimeout(1000))
	require.NoError(t, err)
	require.NoError(t, s.Set("canvas", "payload"))
	require.NoError(t, s.Close())

	s2, err := OpenSQLite(path)
	require.NoError(t, err)
	defer s2.Close()
	v, ok, err := s2.Get("canvas")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "payload", v)
}

func TestAsync_Contract(t *testing.T) {
	t.Parallel()
	a := NewAsync(NewMemory())
	runSinkContract(t, a)
	require.NoError(t, a.Close())
}

func TestAsync_FlushWritesThrough(t *testing.T) {
	t.Parallel()
	mem := NewMemory()
	a := NewAsync(mem)
	defer a.Close()

	for i := range 50 {
		require.NoError(t, a.Set("k", string(rune('a'+i%26))))
	}
	a.Flush()

	v, ok, err := mem.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, string(rune('a'+49%26)), v, "latest value must win")
}

type failingSink struct {
	mu    sync.Mutex
	calls int
}

func (f *failingSink) Get(string) (string, bool, error) { return "", false, nil }
func (f *failingSink) Set(string, string) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return errors.New("disk full")
}

func TestAsync_CloseReportsErrors(t *testing.T) {
	t.Parallel()
	a := NewAsync(&failingSink{})
	require.NoError(t, a.Set("k", "v"))

	err := a.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	assert.ErrorIs(t, a.Set("k", "v2"), ErrClosed)
	assert.NoError(t, a.Close(), "second Close is a no-op")
}

// slowSink holds every write until release is closed.
type slowSink struct {
	*Memory
	started chan struct{}
	release chan struct{}
}

func (s *slowSink) Set(key, value string) error {
	select {
	case s.started <- struct{}{}:
	default:
	}
	<-s.release
	return s.Memory.Set(key, value)
}

func TestAsync_GetDuringWrite(t *testing.T) {
	t.Parallel()
	mem := NewMemory()
	require.NoError(t, mem.Set("k", "old"))
	slow := &slowSink{Memory: mem, started: make(chan struct{}, 1), release: make(chan struct{})}
	a := NewAsync(slow)

	require.NoError(t, a.Set("k", "new"))
	<-slow.started

	v, ok, err := a.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "new", v, "value being written must shadow the stored one")

	close(slow.release)
	require.NoError(t, a.Close())
	v, _, err = mem.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "new", v)
}
