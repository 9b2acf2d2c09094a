package ir

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// NewIRInt creates an IRNumber from an int64.
func NewIRInt(n int64) IRNumber {
	return IRNumber(strconv.FormatInt(n, 10))
}

// NewIRUint creates an IRNumber from a uint64.
func NewIRUint(n uint64) IRNumber {
	return IRNumber(strconv.FormatUint(n, 10))
}

// NewIRFloat creates an IRNumber holding the shortest decimal text that
// round-trips to f. NaN and infinities have no JSON form and are rejected.
func NewIRFloat(f float64) (IRNumber, error) {
	return formatFloat(f, 64)
}

// MustIRFloat is like NewIRFloat but panics on error.
// Use only in tests or when inputs are known to be finite.
func MustIRFloat(f float64) IRNumber {
	n, err := NewIRFloat(f)
	if err != nil {
		panic(err)
	}
	return n
}

// ParseIRNumber validates s as a JSON number literal and returns it
// unchanged as an IRNumber.
func ParseIRNumber(s string) (IRNumber, error) {
	if err := validateNumber(s); err != nil {
		return "", err
	}
	return IRNumber(s), nil
}

// IsInteger reports whether the literal has no fraction or exponent part.
func (n IRNumber) IsInteger() bool {
	return !strings.ContainsAny(string(n), ".eE")
}

// Int64 parses the literal as an int64.
func (n IRNumber) Int64() (int64, error) {
	return strconv.ParseInt(string(n), 10, 64)
}

// Float64 parses the literal as a float64.
func (n IRNumber) Float64() (float64, error) {
	return strconv.ParseFloat(string(n), 64)
}

// formatFloat follows encoding/json: plain notation for magnitudes in
// [1e-6, 1e21), exponent notation otherwise.
func formatFloat(f float64, bits int) (IRNumber, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("number %v has no JSON representation", f)
	}

	format := byte('f')
	if abs := math.Abs(f); abs != 0 {
		if bits == 64 && (abs < 1e-6 || abs >= 1e21) || bits == 32 && (float32(abs) < 1e-6 || float32(abs) >= 1e21) {
			format = 'e'
		}
	}

	s := strconv.FormatFloat(f, format, -1, bits)
	if format == 'e' {
		// clean up e-09 to e-9
		n := len(s)
		if n >= 4 && s[n-4] == 'e' && s[n-3] == '-' && s[n-2] == '0' {
			s = s[:n-2] + s[n-1:]
		}
	}
	return IRNumber(s), nil
}
