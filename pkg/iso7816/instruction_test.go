package iso7816

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNewInstruction(t *testing.T) {
	tests := []struct {
		ins     InsCode
		want    Instruction
		wantErr bool
	}{
		{ins: INS_VERIFY, want: Instruction{Raw: INS_VERIFY}},
		{ins: INS_GENERAL_AUTHENTICATE_BER, want: Instruction{Raw: INS_GENERAL_AUTHENTICATE_BER, IsBERTLV: true}},
		{ins: INS_GET_DATA_BER, want: Instruction{Raw: INS_GET_DATA_BER, IsBERTLV: true}},
		{ins: 0xF7, want: Instruction{Raw: 0xF7, IsBERTLV: true}},
		{ins: 0x6A, wantErr: true},
		{ins: 0x90, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.ins.String(), func(t *testing.T) {
			got, err := NewInstruction(tt.ins)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("NewInstruction(%02X) should fail", byte(tt.ins))
				}
				return
			}
			if err != nil {
				t.Fatalf("NewInstruction(%02X) error: %v", byte(tt.ins), err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("NewInstruction(%02X) mismatch (-want +got):\n%s", byte(tt.ins), diff)
			}
		})
	}
}

func TestInstruction_Names(t *testing.T) {
	tests := []struct {
		ins  InsCode
		want string
	}{
		{INS_CHANGE_REFERENCE_DATA, "INS_CHANGE_REFERENCE_DATA"},
		{INS_RESET_RETRY_COUNTER, "INS_RESET_RETRY_COUNTER"},
		{INS_GENERATE_ASYMMETRIC_KEY_BER, "INS_GENERATE_ASYMMETRIC_KEY_BER"},
		{0xFD, "InsCode(0xFD)"},
	}
	for _, tt := range tests {
		if got := tt.ins.String(); got != tt.want {
			t.Errorf("InsCode(%02X).String() = %q, want %q", byte(tt.ins), got, tt.want)
		}
	}

	i, _ := NewInstruction(INS_PUT_DATA_BER)
	if got, want := i.Verbose(), "INS: 0xDB | Command: INS_PUT_DATA_BER | Format: BER-TLV"; got != want {
		t.Errorf("Verbose() = %q, want %q", got, want)
	}
}
