package intercept

import "github.com/google/uuid"

// IDGenerator produces the call_id of each record.
// Implementations must be safe for concurrent use.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 call ids.
//
// UUIDv7 embeds a millisecond timestamp in the most significant bits, so
// ids of calls recorded in the same second still sort in call order.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// NoIDs leaves call_id empty, producing records with the five base fields.
type NoIDs struct{}

// Generate returns "".
func (NoIDs) Generate() string {
	return ""
}
