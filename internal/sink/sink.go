package sink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/calltrace/internal/ir"
)

// ErrNotReadable is returned by ReadRecords for write-only backends.
var ErrNotReadable = errors.New("sink is write-only")

// Entry is one record ready to append: the record itself plus its encoded
// line. Backends store Line verbatim; table backends also index Record fields.
type Entry struct {
	Record ir.InvocationRecord
	Line   []byte
}

// NewEntry encodes rec and pairs it with its line.
func NewEntry(rec ir.InvocationRecord) (Entry, error) {
	line, err := ir.EncodeRecord(rec)
	if err != nil {
		return Entry{}, err
	}
	return Entry{Record: rec, Line: line}, nil
}

// Sink is an append-only destination for invocation records.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Atomicity: an Append either stores the whole line or nothing.
//   - Ownership: Append must not retain or modify entry.Line after returning.
type Sink interface {
	// Append stores one entry at the end of the sink.
	Append(ctx context.Context, entry Entry) error

	// Location returns the location string the sink was opened with.
	Location() string

	// Close releases any connection held by the sink.
	Close() error
}

// LineReader is implemented by sinks whose contents can be read back.
type LineReader interface {
	// ReadLines returns every stored line in append order.
	ReadLines(ctx context.Context) ([][]byte, error)
}

// Scheme prefixes recognised by Open.
const (
	SchemeFile       = "file://"
	SchemeSQLite     = "sqlite://"
	SchemePostgres   = "postgres://"
	SchemePostgreSQL = "postgresql://"
	SchemeRedis      = "redis://"
	SchemeRedisTLS   = "rediss://"
	SchemeJournal    = "journald://"
	SchemeMemory     = "memory://"
)

// Open resolves a location string to a sink. A location without a scheme
// is a file path.
func Open(location string) (Sink, error) {
	switch {
	case location == "":
		return nil, fmt.Errorf("open sink: empty location")
	case strings.HasPrefix(location, SchemeFile):
		return NewFile(strings.TrimPrefix(location, SchemeFile))
	case strings.HasPrefix(location, SchemeSQLite):
		return OpenSQLite(strings.TrimPrefix(location, SchemeSQLite))
	case strings.HasPrefix(location, SchemePostgres), strings.HasPrefix(location, SchemePostgreSQL):
		return OpenPostgres(location)
	case strings.HasPrefix(location, SchemeRedis), strings.HasPrefix(location, SchemeRedisTLS):
		return OpenRedis(location)
	case strings.HasPrefix(location, SchemeJournal):
		return NewJournal(strings.TrimPrefix(location, SchemeJournal))
	case strings.HasPrefix(location, SchemeMemory):
		return NamedMemory(strings.TrimPrefix(location, SchemeMemory)), nil
	case strings.Contains(location, "://"):
		return nil, fmt.Errorf("open sink %q: unsupported scheme", location)
	default:
		return NewFile(location)
	}
}

// ReadRecords reads and decodes every record stored in s.
// Returns ErrNotReadable if s cannot be read back.
func ReadRecords(ctx context.Context, s Sink) ([]ir.InvocationRecord, error) {
	r, ok := s.(LineReader)
	if !ok {
		return nil, fmt.Errorf("read %s: %w", s.Location(), ErrNotReadable)
	}

	lines, err := r.ReadLines(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]ir.InvocationRecord, 0, len(lines))
	for i, line := range lines {
		rec, err := ir.DecodeRecord(line)
		if err != nil {
			return nil, fmt.Errorf("read %s: entry %d: %w", s.Location(), i+1, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// checkLine verifies that line is exactly one newline-terminated record.
func checkLine(line []byte) error {
	if len(line) == 0 || line[len(line)-1] != '\n' {
		return fmt.Errorf("line is not newline-terminated")
	}
	if bytes.IndexByte(line, '\n') != len(line)-1 {
		return fmt.Errorf("line contains an embedded newline")
	}
	return nil
}
