package sink

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_ResolvesBackends(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name     string
		location string
		check    func(t *testing.T, s Sink)
	}{
		{"bare path", filepath.Join(dir, "main.log"), func(t *testing.T, s Sink) {
			assert.IsType(t, &File{}, s)
		}},
		{"file scheme", "file://" + filepath.Join(dir, "log_1.log"), func(t *testing.T, s Sink) {
			f, ok := s.(*File)
			require.True(t, ok)
			assert.Equal(t, filepath.Join(dir, "log_1.log"), f.Path())
		}},
		{"sqlite", "sqlite://" + filepath.Join(dir, "calls.db"), func(t *testing.T, s Sink) {
			sq, ok := s.(*SQL)
			require.True(t, ok)
			assert.Equal(t, DialectSQLite, sq.Dialect())
		}},
		{"memory", "memory://open-test", func(t *testing.T, s Sink) {
			assert.Same(t, NamedMemory("open-test"), s)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Open(tt.location)
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			tt.check(t, s)
		})
	}
}

func TestOpen_Rejects(t *testing.T) {
	for _, loc := range []string{"", "ftp://example.com/log", "file://"} {
		_, err := Open(loc)
		assert.Error(t, err, "location %q", loc)
	}
}

func TestMemory_AppendAndRead(t *testing.T) {
	m := NewMemory("t")
	ctx := context.Background()

	require.NoError(t, m.Append(ctx, testEntry(t, "div", 1)))
	require.NoError(t, m.Append(ctx, testEntry(t, "div", 2)))
	assert.Equal(t, 2, m.Len())
	assert.Equal(t, "memory://t", m.Location())

	records, err := ReadRecords(ctx, m)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "call-002", records[1].CallID)
}

func TestMemory_CopiesLines(t *testing.T) {
	m := NewMemory("t")
	entry := testEntry(t, "div", 1)
	require.NoError(t, m.Append(context.Background(), entry))

	entry.Line[0] = 'X'

	lines, err := m.ReadLines(context.Background())
	require.NoError(t, err)
	assert.Equal(t, byte('{'), lines[0][0])
}

func TestMemory_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := NewMemory("t")
	assert.ErrorIs(t, m.Append(ctx, testEntry(t, "div", 1)), context.Canceled)
	assert.Equal(t, 0, m.Len())
}

func TestReadRecords_WriteOnlySink(t *testing.T) {
	j := &Journal{identifier: "calltrace"}
	_, err := ReadRecords(context.Background(), j)
	assert.ErrorIs(t, err, ErrNotReadable)
}
