// Package ir provides the value model and line format for invocation records.
//
// This package imports nothing internal. Every other internal package
// builds on it.
//
// Key design constraints:
//   - Captured values are a closed set of tagged types (IRValue)
//   - Numbers are carried as literal text (IRNumber), never re-rounded
//   - Object keys are encoded in RFC 8785 (UTF-16 code unit) order
//   - An encoded record is exactly one line: control characters inside
//     strings are always escaped
//   - All JSON keys use snake_case
package ir
