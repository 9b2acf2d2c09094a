package sink

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRedisLocation(t *testing.T) {
	tests := []struct {
		location string
		addr     string
		db       int
		stream   string
	}{
		{"redis://localhost:6379", "localhost:6379", 0, DefaultStream},
		{"redis://localhost:6379/2?stream=calls", "localhost:6379", 2, "calls"},
		{"redis://:secret@cache:6380/1?stream=find_articles&dial_timeout=3s", "cache:6380", 1, "find_articles"},
	}

	for _, tt := range tests {
		t.Run(tt.location, func(t *testing.T) {
			opts, stream, err := parseRedisLocation(tt.location)
			require.NoError(t, err)
			assert.Equal(t, tt.addr, opts.Addr)
			assert.Equal(t, tt.db, opts.DB)
			assert.Equal(t, tt.stream, stream)
		})
	}
}

func TestParseRedisLocation_Invalid(t *testing.T) {
	_, _, err := parseRedisLocation("redis://localhost:6379/notadb")
	assert.Error(t, err)
}

func TestRedis_Integration(t *testing.T) {
	addr := os.Getenv("CALLTRACE_REDIS_URL")
	if addr == "" {
		t.Skip("CALLTRACE_REDIS_URL not set")
	}

	s, err := OpenRedis(addr + "?stream=calltrace-test-" + t.Name())
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	before, err := s.ReadLines(ctx)
	require.NoError(t, err)

	require.NoError(t, s.Append(ctx, testEntry(t, "div", 1)))

	after, err := ReadRecords(ctx, s)
	require.NoError(t, err)
	assert.Len(t, after, len(before)+1)
	assert.Equal(t, "div", after[len(after)-1].FunctionName)
}
