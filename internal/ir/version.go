package ir

// FormatVersion is the record line format version, stored by table-backed
// sinks alongside each line.
const FormatVersion = "1"
