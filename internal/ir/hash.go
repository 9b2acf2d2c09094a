package ir

import (
	"crypto/sha256"
	"encoding/hex"
)

// DomainRecordLine prefixes record line digests.
// Version suffix enables future algorithm migration.
const DomainRecordLine = "calltrace/record-line/v1"

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// LineDigest returns the digest of an encoded record line.
// Sinks that store lines in tables keep it beside the line so readers can
// detect rows altered after they were appended.
func LineDigest(line []byte) string {
	return hashWithDomain(DomainRecordLine, line)
}
