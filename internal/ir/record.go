package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// TimestampLayout is the second-resolution timestamp format of a record.
const TimestampLayout = "2006-01-02 15:04:05"

// Record field names, in the order EncodeRecord writes them.
const (
	FieldTimestamp        = "timestamp"
	FieldCallID           = "call_id"
	FieldFunctionName     = "function_name"
	FieldArguments        = "arguments"
	FieldKeywordArguments = "keyword_arguments"
	FieldReturnValue      = "return_value"
	FieldError            = "error"
)

// InvocationRecord is the metadata captured for one call of a wrapped
// function. It is built fresh per call and never mutated after encoding.
type InvocationRecord struct {
	Timestamp        string   `json:"timestamp"`          // TimestampLayout, second resolution
	CallID           string   `json:"call_id,omitempty"`  // UUIDv7
	FunctionName     string   `json:"function_name"`
	Arguments        IRArray  `json:"arguments"`
	KeywordArguments IRObject `json:"keyword_arguments"`
	ReturnValue      IRValue  `json:"return_value,omitempty"` // nil when the call failed
	Error            string   `json:"error,omitempty"`        // set when the call failed
}

// FormatTimestamp truncates t to the second and formats it with TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.Truncate(time.Second).Format(TimestampLayout)
}

// Time parses the record's timestamp in the given location.
func (r InvocationRecord) Time(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(TimestampLayout, r.Timestamp, loc)
}

// Failed reports whether the record marks a failed call.
func (r InvocationRecord) Failed() bool {
	return r.ReturnValue == nil
}

// EncodeRecord serializes a record as one newline-terminated JSON object.
//
// Keys are written in a fixed order: timestamp, call_id, function_name,
// arguments, keyword_arguments, return_value, error. call_id and error are
// omitted when empty, return_value when nil. The only newline byte in the
// output is the terminator. Records DecodeRecord would refuse (a timestamp
// not in TimestampLayout, invalid UTF-8 in any string) are rejected.
func EncodeRecord(r InvocationRecord) ([]byte, error) {
	if r.FunctionName == "" {
		return nil, fmt.Errorf("encode record: function name is required")
	}
	if r.ReturnValue == nil && r.Error == "" {
		return nil, fmt.Errorf("encode record %s: either return value or error is required", r.FunctionName)
	}
	if _, err := time.Parse(TimestampLayout, r.Timestamp); err != nil {
		return nil, fmt.Errorf("encode record %s: %s: %w", r.FunctionName, FieldTimestamp, err)
	}

	var buf bytes.Buffer
	buf.WriteByte('{')

	field := func(name string, first bool) {
		if !first {
			buf.WriteByte(',')
		}
		buf.WriteByte('"')
		buf.WriteString(name)
		buf.WriteString(`":`)
	}

	field(FieldTimestamp, true)
	if err := writeCanonicalString(&buf, r.Timestamp); err != nil {
		return nil, fmt.Errorf("encode record %s: timestamp: %w", r.FunctionName, err)
	}

	if r.CallID != "" {
		field(FieldCallID, false)
		if err := writeCanonicalString(&buf, r.CallID); err != nil {
			return nil, fmt.Errorf("encode record %s: call_id: %w", r.FunctionName, err)
		}
	}

	field(FieldFunctionName, false)
	if err := writeCanonicalString(&buf, r.FunctionName); err != nil {
		return nil, fmt.Errorf("encode record %s: function_name: %w", r.FunctionName, err)
	}

	args := r.Arguments
	if args == nil {
		args = IRArray{}
	}
	field(FieldArguments, false)
	if err := writeCanonicalArray(&buf, args); err != nil {
		return nil, fmt.Errorf("encode record %s: arguments: %w", r.FunctionName, err)
	}

	kwargs := r.KeywordArguments
	if kwargs == nil {
		kwargs = IRObject{}
	}
	field(FieldKeywordArguments, false)
	if err := writeCanonicalObject(&buf, kwargs); err != nil {
		return nil, fmt.Errorf("encode record %s: keyword_arguments: %w", r.FunctionName, err)
	}

	if r.ReturnValue != nil {
		field(FieldReturnValue, false)
		if err := writeCanonical(&buf, r.ReturnValue); err != nil {
			return nil, fmt.Errorf("encode record %s: return_value: %w", r.FunctionName, err)
		}
	}

	if r.Error != "" {
		field(FieldError, false)
		if err := writeCanonicalString(&buf, r.Error); err != nil {
			return nil, fmt.Errorf("encode record %s: error: %w", r.FunctionName, err)
		}
	}

	buf.WriteString("}\n")
	return buf.Bytes(), nil
}

// DecodeRecord parses one line produced by EncodeRecord. A trailing newline
// is optional. Unknown keys are rejected.
func DecodeRecord(line []byte) (InvocationRecord, error) {
	line = bytes.TrimSuffix(line, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(line, &raw); err != nil {
		return InvocationRecord{}, fmt.Errorf("decode record: %w", err)
	}

	var rec InvocationRecord
	for key, val := range raw {
		var err error
		switch key {
		case FieldTimestamp:
			err = json.Unmarshal(val, &rec.Timestamp)
		case FieldCallID:
			err = json.Unmarshal(val, &rec.CallID)
		case FieldFunctionName:
			err = json.Unmarshal(val, &rec.FunctionName)
		case FieldArguments:
			err = json.Unmarshal(val, &rec.Arguments)
		case FieldKeywordArguments:
			err = json.Unmarshal(val, &rec.KeywordArguments)
		case FieldReturnValue:
			rec.ReturnValue, err = UnmarshalIRValue(val)
		case FieldError:
			err = json.Unmarshal(val, &rec.Error)
		default:
			err = fmt.Errorf("unknown field")
		}
		if err != nil {
			return InvocationRecord{}, fmt.Errorf("decode record: %s: %w", key, err)
		}
	}

	if rec.FunctionName == "" {
		return InvocationRecord{}, fmt.Errorf("decode record: missing %s", FieldFunctionName)
	}
	if _, err := time.Parse(TimestampLayout, rec.Timestamp); err != nil {
		return InvocationRecord{}, fmt.Errorf("decode record: %s: %w", FieldTimestamp, err)
	}
	if rec.Arguments == nil {
		return InvocationRecord{}, fmt.Errorf("decode record: missing %s", FieldArguments)
	}
	if rec.KeywordArguments == nil {
		return InvocationRecord{}, fmt.Errorf("decode record: missing %s", FieldKeywordArguments)
	}
	if rec.ReturnValue == nil && rec.Error == "" {
		return InvocationRecord{}, fmt.Errorf("decode record: missing %s", FieldReturnValue)
	}

	return rec, nil
}
