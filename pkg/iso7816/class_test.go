package iso7816

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNewClass(t *testing.T) {
	tests := []struct {
		name string
		cla  byte
		want Class
	}{
		{"Plain", 0x00, Class{}},
		{"Chained", 0x10, Class{Raw: 0x10, IsChained: true}},
		{"First Channel 3 With SM", 0x1F, Class{Raw: 0x1F, IsChained: true, SecureMessaging: SMHeaderAuth, Channel: 3}},
		{"First Channel 1 Proprietary SM", 0x05, Class{Raw: 0x05, SecureMessaging: SMProprietary, Channel: 1}},
		{"Further Channel 4", 0x40, Class{Raw: 0x40, Channel: 4}},
		{"Further Channel 19 SM Chained", 0x7F, Class{Raw: 0x7F, IsChained: true, SecureMessaging: SMHeaderNoProc, Channel: 19}},
		{"Proprietary", 0x80, Class{Raw: 0x80, IsProprietary: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewClass(tt.cla)
			if err != nil {
				t.Fatalf("NewClass(%02X) error: %v", tt.cla, err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("NewClass(%02X) mismatch (-want +got):\n%s", tt.cla, diff)
			}

			raw, err := got.Encode()
			if err != nil {
				t.Fatalf("Encode error: %v", err)
			}
			if raw != tt.cla {
				t.Errorf("Encode() = %02X, want %02X", raw, tt.cla)
			}
		})
	}

	if _, err := NewClass(0xFF); err == nil {
		t.Error("NewClass(FF) should be rejected")
	}
}

func TestNewInterindustryClass(t *testing.T) {
	tests := []struct {
		name    string
		chained bool
		sm      SecureMessaging
		channel uint8
		want    byte
		wantErr bool
	}{
		{name: "Channel 0", want: 0x00},
		{name: "Chained Channel 0", chained: true, want: 0x10},
		{name: "Channel 2 ISO SM", sm: SMHeaderNoProc, channel: 2, want: 0x0A},
		{name: "Channel 5", channel: 5, want: 0x41},
		{name: "Channel 12 ISO SM Chained", chained: true, sm: SMHeaderNoProc, channel: 12, want: 0x78},
		{name: "Channel Too High", channel: 20, wantErr: true},
		{name: "Header Auth On Further Range", sm: SMHeaderAuth, channel: 4, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewInterindustryClass(tt.chained, tt.sm, tt.channel)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %02X", got.Raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Raw != tt.want {
				t.Errorf("Raw = %02X, want %02X", got.Raw, tt.want)
			}
		})
	}
}

func TestClass_String(t *testing.T) {
	tests := []struct {
		cla  byte
		want string
	}{
		{0x00, "Interindustry (channel 0)"},
		{0x10, "Interindustry (channel 0, chained)"},
		{0x4C, "Interindustry (channel 16)"},
		{0x0D, "Interindustry (channel 1, SM ISO (Header authenticated))"},
		{0x90, "Proprietary (0x90)"},
	}

	for _, tt := range tests {
		c, _ := NewClass(tt.cla)
		if got := c.String(); got != tt.want {
			t.Errorf("Class(%02X).String() = %q, want %q", tt.cla, got, tt.want)
		}
	}
}
