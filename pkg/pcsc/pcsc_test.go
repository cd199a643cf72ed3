package pcsc

import (
	"errors"
	"testing"
)

func TestSelectReader(t *testing.T) {
	readers := []string{
		"Generic USB Reader 00 00",
		"Yubico YubiKey OTP+FIDO+CCID 01 00",
	}

	tests := []struct {
		name    string
		readers []string
		index   int
		match   string
		want    string
		wantErr bool
	}{
		{name: "First By Default", readers: readers, want: readers[0]},
		{name: "By Index", readers: readers, index: 1, want: readers[1]},
		{name: "By Name Case Insensitive", readers: readers, match: "yubikey", want: readers[1]},
		{name: "Name Wins Over Index", readers: readers, index: 0, match: "Yubico", want: readers[1]},
		{name: "Unknown Name", readers: readers, match: "Gemalto", wantErr: true},
		{name: "Index Out Of Range", readers: readers, index: 2, wantErr: true},
		{name: "Negative Index", readers: readers, index: -1, wantErr: true},
		{name: "No Readers", readers: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := selectReader(tt.readers, tt.index, tt.match)
			if tt.wantErr {
				if !errors.Is(err, ErrNoReader) {
					t.Fatalf("selectReader() error = %v, want ErrNoReader", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("selectReader() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("selectReader() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConnection_NotEstablished(t *testing.T) {
	var c *Connection
	if _, err := c.Transmit([]byte{0x00, 0xA4, 0x04, 0x00}); err == nil {
		t.Error("Transmit on nil connection should fail")
	}
	if err := c.WithTransaction(func() error { return nil }); err == nil {
		t.Error("WithTransaction on nil connection should fail")
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close on nil connection = %v", err)
	}
}
