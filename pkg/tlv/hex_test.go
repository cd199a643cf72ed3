package tlv

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestHex(t *testing.T) {
	tests := []struct {
		name      string
		inputs    []string
		want      []byte
		wantPanic bool
	}{
		{name: "Parts Are Joined", inputs: []string{"00", "CB", "3FFF"}, want: []byte{0x00, 0xCB, 0x3F, 0xFF}},
		{name: "Whitespace", inputs: []string{"5C 03\t5F C1", "\n05 "}, want: []byte{0x5C, 0x03, 0x5F, 0xC1, 0x05}},
		{name: "Colon Separators", inputs: []string{"5F:C1:05"}, want: []byte{0x5F, 0xC1, 0x05}},
		{name: "Byte Split Across Parts", inputs: []string{"9", "000"}, want: []byte{0x90, 0x00}},
		{name: "Empty", inputs: nil, want: []byte{}},
		{name: "Invalid Digit", inputs: []string{"7C 0G"}, wantPanic: true},
		{name: "Odd Length", inputs: []string{"63C"}, wantPanic: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if r := recover(); (r != nil) != tt.wantPanic {
					t.Errorf("Hex() panic = %v, wantPanic %v", r, tt.wantPanic)
				}
			}()

			got := Hex(tt.inputs...)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Hex() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
