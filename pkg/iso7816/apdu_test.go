package iso7816

import (
	"encoding/hex"
	"strings"
	"testing"
)

func TestCommandAPDU_Encoding(t *testing.T) {
	cls, _ := NewClass(0x00)
	insVerify, _ := NewInstruction(INS_VERIFY)
	insGetData, _ := NewInstruction(INS_GET_DATA_BER)
	insRead, _ := NewInstruction(INS_READ_BINARY)

	tests := []struct {
		name     string
		cmd      *CommandAPDU
		expected string
	}{
		{
			name:     "Case 1: Header Only (No Data, No Le)",
			cmd:      NewCommandAPDU(cls, insVerify, 0x00, 0x80, nil, 0),
			expected: "00200080",
		},
		{
			name:     "Case 3 Short: Data, No Le",
			cmd:      NewCommandAPDU(cls, insVerify, 0x00, 0x80, []byte{0x31, 0x32, 0x33, 0x34, 0x35, 0x36, 0xFF, 0xFF}, 0),
			expected: "0020008008313233343536FFFF",
		},
		{
			name:     "Case 2 Short: No Data, Le=MaxShortLe (256)",
			cmd:      NewCommandAPDU(cls, insRead, 0x00, 0x00, nil, MaxShortLe),
			expected: "00B0000000",
		},
		{
			name:     "Case 4 Short: Data and Le",
			cmd:      NewCommandAPDU(cls, insGetData, 0x3F, 0xFF, []byte{0x5C, 0x01, 0x7E}, MaxShortLe),
			expected: "00CB3FFF035C017E00",
		},
		{
			name: "Case 3 Extended: Data > MaxShortLc",
			cmd: func() *CommandAPDU {
				return NewCommandAPDU(cls, insVerify, 0x00, 0x00, make([]byte, 260), 0)
			}(),
			expected: "00200000000104" + hex.EncodeToString(make([]byte, 260)),
		},
		{
			name:     "Case 2 Extended: No Data, Le=MaxExtendedLe (65536)",
			cmd:      NewCommandAPDU(cls, insRead, 0x00, 0x00, nil, MaxExtendedLe),
			expected: "00B00000000000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotBytes, err := tt.cmd.Bytes()
			if err != nil {
				t.Fatalf("Encoding failed: %v", err)
			}
			gotHex := strings.ToUpper(hex.EncodeToString(gotBytes))
			expectedHex := strings.ToUpper(tt.expected)

			if gotHex != expectedHex {
				dispGot := gotHex
				dispExp := expectedHex
				if len(dispGot) > 50 {
					dispGot = dispGot[:20] + "..." + dispGot[len(dispGot)-10:]
					dispExp = dispExp[:20] + "..." + dispExp[len(dispExp)-10:]
				}
				t.Errorf("Mismatch\nExpected: %s\nGot:      %s", dispExp, dispGot)
			}
		})
	}
}

func TestCommandAPDU_InvalidLengths(t *testing.T) {
	ins, _ := NewInstruction(INS_VERIFY)

	if _, err := NewCommandAPDU(Class{}, ins, 0, 0, nil, -1).Bytes(); err == nil {
		t.Error("Expected error for negative Ne")
	}
	if _, err := NewCommandAPDU(Class{}, ins, 0, 0, make([]byte, MaxExtendedLc+1), 0).Bytes(); err == nil {
		t.Error("Expected error for oversized data")
	}
}

func TestCommandAPDU_Clear(t *testing.T) {
	ins, _ := NewInstruction(INS_VERIFY)
	pin := []byte("123456")
	cmd := NewCommandAPDU(Class{}, ins, 0x00, 0x80, pin, 0)

	cmd.Clear()

	for i, b := range pin {
		if b != 0 {
			t.Fatalf("byte %d not cleared: %02X", i, b)
		}
	}
	if strings.Contains(cmd.String(), "123456") {
		t.Error("String() must not expose the data field")
	}
}

func TestParseResponseAPDU(t *testing.T) {
	raw, _ := hex.DecodeString("0102039000")
	resp, err := ParseResponseAPDU(raw)

	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if len(resp.Data) != 3 {
		t.Errorf("Wrong data length: got %d, want 3", len(resp.Data))
	}
	if resp.Status != SW_NO_ERROR {
		t.Errorf("Wrong status: got %04X, want %04X", uint16(resp.Status), uint16(SW_NO_ERROR))
	}
}

func TestParseResponseAPDU_StatusOnly(t *testing.T) {
	resp, err := ParseResponseAPDU([]byte{0x63, 0xC2})
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if len(resp.Data) != 0 || resp.Status != 0x63C2 {
		t.Errorf("got %s", resp)
	}
}

func TestParseResponseAPDU_TooShort(t *testing.T) {
	for _, raw := range [][]byte{nil, {0x90}} {
		if _, err := ParseResponseAPDU(raw); err == nil {
			t.Errorf("Expected error for short response %X, got nil", raw)
		}
	}
}
