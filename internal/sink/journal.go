package sink

import (
	"bytes"
	"context"
	"fmt"

	"github.com/coreos/go-systemd/v22/journal"
)

// Journal sends each record to the systemd journal as one message.
// The journal is write-only from this package's point of view.
type Journal struct {
	identifier string
}

// NewJournal returns a journal sink tagging messages with identifier
// (SYSLOG_IDENTIFIER). An empty identifier defaults to "calltrace".
func NewJournal(identifier string) (*Journal, error) {
	if identifier == "" {
		identifier = "calltrace"
	}
	if !journal.Enabled() {
		return nil, fmt.Errorf("journald sink: journal socket not available")
	}
	return &Journal{identifier: identifier}, nil
}

// Location implements Sink.
func (j *Journal) Location() string {
	return SchemeJournal + j.identifier
}

// Append sends one datagram carrying the line as MESSAGE.
func (j *Journal) Append(ctx context.Context, entry Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkLine(entry.Line); err != nil {
		return fmt.Errorf("append record: %w", err)
	}

	priority := journal.PriInfo
	if entry.Record.Failed() {
		priority = journal.PriWarning
	}

	vars := map[string]string{
		"SYSLOG_IDENTIFIER":  j.identifier,
		"CALLTRACE_FUNCTION": entry.Record.FunctionName,
	}
	if entry.Record.CallID != "" {
		vars["CALLTRACE_CALL_ID"] = entry.Record.CallID
	}

	if err := journal.Send(string(bytes.TrimSuffix(entry.Line, []byte("\n"))), priority, vars); err != nil {
		return fmt.Errorf("append record to journal: %w", err)
	}
	return nil
}

// Close implements Sink.
func (j *Journal) Close() error {
	return nil
}
