package sink

import (
	"fmt"
	"testing"

	"github.com/roach88/calltrace/internal/ir"
)

// testEntry builds an encoded entry for a successful call of name.
func testEntry(t *testing.T, name string, n int) Entry {
	t.Helper()
	entry, err := NewEntry(ir.InvocationRecord{
		Timestamp:        "2024-03-01 12:30:45",
		CallID:           fmt.Sprintf("call-%03d", n),
		FunctionName:     name,
		Arguments:        ir.IRArray{ir.NewIRInt(int64(n))},
		KeywordArguments: ir.IRObject{},
		ReturnValue:      ir.IRString("ok"),
	})
	if err != nil {
		t.Fatalf("NewEntry() failed: %v", err)
	}
	return entry
}
