package iso7816

import (
	"fmt"
	"strings"

	"github.com/gregLibert/pivcard/pkg/tlv"
)

// SELECT RESULT ANALYSIS:
// This file provides a high-level wrapper to analyze the execution of a SELECT command.
// It abstracts the complexity of the trace (retries, Get Response) to provide
// direct access to the returned template and a human-readable report.

// SelectResult represents the outcome of a SELECT command execution.
type SelectResult struct {
	Trace
}

// NewSelectResult creates a SelectResult from a raw transaction trace.
// It validates that the trace is not empty and that the logical operation
// started with a SELECT command (INS 0xA4).
func NewSelectResult(t Trace) (*SelectResult, error) {
	if len(t) == 0 {
		return nil, fmt.Errorf("cannot create result from empty trace")
	}

	if t[0].Command.Instruction.Raw != INS_SELECT {
		return nil, fmt.Errorf("trace must start with SELECT command (got %02X)", byte(t[0].Command.Instruction.Raw))
	}

	return &SelectResult{Trace: t}, nil
}

// Payload returns the data returned by the selected application, reassembled
// across GET RESPONSE exchanges.
func (r *SelectResult) Payload() ([]byte, error) {
	if !r.IsSuccess() {
		return nil, fmt.Errorf("selection failed: %s", r.Last().Response.Status.Verbose())
	}

	data := r.Response().Data
	if len(data) == 0 {
		return nil, fmt.Errorf("no response data found")
	}
	return data, nil
}

// Describe generates an ASCII-formatted report of the selection process: the initial
// request, protocol auto-handling (like GET RESPONSE) and a tree of the returned TLVs.
func (r *SelectResult) Describe() string {
	var sb strings.Builder

	sb.WriteString("=== SELECT COMMAND REPORT ===\n")

	tx0 := r.Trace[0]
	cmd := tx0.Command

	method := SelectionMethod(cmd.P1)
	occ := FileOccurrence(cmd.P2 & 0x03)
	ctrl := SelectionControl(cmd.P2 & 0x0C)

	sb.WriteString("[1] Command: SELECT FILE (Initial Request)\n")
	fmt.Fprintf(&sb, "    + Method:  %02X -> %s\n", cmd.P1, method)
	fmt.Fprintf(&sb, "    + Control: %02X -> %s | %s\n", cmd.P2, occ, ctrl)

	if len(cmd.Data) > 0 {
		fmt.Fprintf(&sb, "    + Data:    %X (%q)\n", cmd.Data, tlv.MakeSafeASCII(cmd.Data))
	}

	status := tx0.Response.Status
	resultMsg := "[OK]"
	resultDesc := "SW_NO_ERROR"

	switch {
	case status.SW1() == 0x61:
		resultDesc = fmt.Sprintf("%02X (%d) bytes still available", status.SW2(), status.SW2())
	case status.SW1() == 0x6C:
		resultMsg = "[!!]"
		resultDesc = fmt.Sprintf("Wrong length, correct is %02X (%d)", status.SW2(), status.SW2())
	case status != SW_NO_ERROR:
		resultMsg = "[!!]"
		resultDesc = status.Verbose()
	}

	fmt.Fprintf(&sb, "    + Result:  [%02X %02X] %s %s\n", status.SW1(), status.SW2(), resultMsg, resultDesc)

	if len(tx0.Response.Data) > 0 {
		fmt.Fprintf(&sb, "    + Payload: %d bytes received directly\n", len(tx0.Response.Data))
	}
	sb.WriteString("\n")

	if len(r.Trace) > 1 {
		fmt.Fprintf(&sb, "[2] Protocol: Auto-handling (Sequence of %d steps)\n", len(r.Trace))

		lastTx := r.Last()

		opName := "Unknown"
		switch lastTx.Command.Instruction.Raw {
		case INS_GET_RESPONSE:
			opName = "GET RESPONSE"
		case INS_SELECT:
			opName = "RE-SELECT (Correction)"
		}

		fmt.Fprintf(&sb, "    + Action:  Sending %s\n", opName)
		fmt.Fprintf(&sb, "    + Result:  [%04X] Final Status\n", uint16(lastTx.Response.Status))
		sb.WriteString("\n")
	}

	sb.WriteString("[=] FINAL OUTCOME:\n")

	payload, err := r.Payload()
	if err != nil {
		fmt.Fprintf(&sb, "    - %v\n", err)
		return sb.String()
	}

	fmt.Fprintf(&sb, "    - Payload: %d bytes\n", len(payload))
	objs, err := tlv.Decode(payload)
	if err != nil {
		fmt.Fprintf(&sb, "    - TLV Parsing Failed: %v\n", err)
		return sb.String()
	}
	writeTree(&sb, objs, 1)

	return sb.String()
}

// writeTree prints constructed objects (bit 6 of the leading tag byte) recursively.
func writeTree(sb *strings.Builder, objs []tlv.Object, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, o := range objs {
		leading := tlv.EncodeTag(o.Tag)[0]
		if leading&0x20 != 0 {
			fmt.Fprintf(sb, "  %s%X:\n", indent, o.Tag)
			if children, err := o.Children(); err == nil {
				writeTree(sb, children, depth+1)
				continue
			}
		}
		fmt.Fprintf(sb, "  %s%X: %X\n", indent, o.Tag, o.Value)
	}
}
