package iso7816

import (
	"bytes"
	"strings"
	"testing"

	"github.com/gregLibert/pivcard/pkg/tlv"
)

func TestSelectResult_Describe(t *testing.T) {
	aid := tlv.Hex("A000000308")
	cmdSelect := SelectByAID(Class{}, aid)

	trace := Trace{
		{
			Command:  cmdSelect,
			Response: &ResponseAPDU{Data: tlv.Hex("61 11 4F 06 000010000100"), Status: NewStatusWord(0x61, 0x09)},
		},
		{
			Command: NewCommandAPDU(Class{}, NewInstructionMust(INS_GET_RESPONSE), 0, 0, nil, 9),
			Response: &ResponseAPDU{
				Data:   tlv.Hex("79 07 4F 05 A000000308"),
				Status: SW_NO_ERROR,
			},
		},
	}

	res, err := NewSelectResult(trace)
	if err != nil {
		t.Fatalf("NewSelectResult failed: %v", err)
	}

	payload, err := res.Payload()
	if err != nil {
		t.Fatalf("Payload failed: %v", err)
	}
	if want := tlv.Hex("6111 4F06000010000100 7907 4F05A000000308"); !bytes.Equal(payload, want) {
		t.Errorf("Payload = %X, want %X", payload, want)
	}

	report := res.Describe()
	expectedLines := []string{
		"=== SELECT COMMAND REPORT ===",
		"[1] Command: SELECT FILE (Initial Request)",
		"    + Method:  04 -> Select by DF Name (AID)",
		"    + Control: 00 -> First/Only | Return FCI",
		`    + Data:    A000000308 (".....")`,
		"    + Result:  [61 09] [OK] 09 (9) bytes still available",
		"    + Payload: 10 bytes received directly",
		"[2] Protocol: Auto-handling (Sequence of 2 steps)",
		"    + Action:  Sending GET RESPONSE",
		"    + Result:  [9000] Final Status",
		"[=] FINAL OUTCOME:",
		"    - Payload: 19 bytes",
		"    61:",
		"      4F: 000010000100",
		"      79:",
		"        4F: A000000308",
	}

	for _, line := range expectedLines {
		if !strings.Contains(report, line) {
			t.Errorf("Report missing line: %q\n%s", line, report)
		}
	}
}

func TestSelectResult_Failure(t *testing.T) {
	trace := Trace{{
		Command:  SelectByAID(Class{}, tlv.Hex("A000000308")),
		Response: &ResponseAPDU{Status: SW_ERR_FILE_NOT_FOUND},
	}}

	res, _ := NewSelectResult(trace)
	if _, err := res.Payload(); err == nil {
		t.Error("expected error on failed selection")
	}
	if report := res.Describe(); !strings.Contains(report, "[6A 82] [!!]") {
		t.Errorf("report does not flag failure:\n%s", report)
	}
}

func TestNewSelectResult_Invalid(t *testing.T) {
	if _, err := NewSelectResult(nil); err == nil {
		t.Error("expected error for empty trace")
	}

	trace := Trace{{
		Command:  NewCommandAPDU(Class{}, NewInstructionMust(INS_VERIFY), 0, 0x80, nil, 0),
		Response: &ResponseAPDU{Status: SW_NO_ERROR},
	}}
	if _, err := NewSelectResult(trace); err == nil {
		t.Error("expected error for non-SELECT trace")
	}
}

func NewInstructionMust(code InsCode) Instruction {
	i, _ := NewInstruction(code)
	return i
}
