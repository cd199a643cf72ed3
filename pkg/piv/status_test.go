package piv

import (
	"errors"
	"testing"

	"github.com/gregLibert/pivcard/pkg/iso7816"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		sw   iso7816.StatusWord
		want ResponseStatus
	}{
		{0x9000, StatusSuccess},
		{0x63C3, StatusAuthenticationRequired},
		{0x63C0, StatusAuthenticationRequired},
		{0x6983, StatusAuthenticationRequired},
		{0x6982, StatusAuthenticationRequired},
		{0x6A88, StatusNoData},
		{0x6985, StatusConditionsNotSatisfied},
		{0x6A80, StatusFailed},
		{0x6D00, StatusFailed},
		{0x6300, StatusFailed},
	}

	for _, tt := range tests {
		if got := StatusOf(tt.sw); got != tt.want {
			t.Errorf("StatusOf(%04X) = %s, want %s", uint16(tt.sw), got, tt.want)
		}
	}
}

func TestRetriesRemaining(t *testing.T) {
	tests := []struct {
		name    string
		sw      iso7816.StatusWord
		wantN   int
		wantOK  bool
		wantErr error
	}{
		{"Ten Left", 0x63CA, 10, true, nil},
		{"None Left", 0x63C0, 0, true, nil},
		{"Blocked", 0x6983, 0, true, nil},
		{"Verified", 0x9000, 0, false, nil},
		{"Unrelated Error", 0x6A80, 0, false, ErrInvalidOperation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, ok, err := RetriesRemaining(tt.sw)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if n != tt.wantN || ok != tt.wantOK {
				t.Errorf("RetriesRemaining(%04X) = %d, %v; want %d, %v", uint16(tt.sw), n, ok, tt.wantN, tt.wantOK)
			}
		})
	}
}

func TestResponse_StatusMessage(t *testing.T) {
	tests := []struct {
		sw   iso7816.StatusWord
		want string
	}{
		{0x9000, "Success"},
		{0x63C2, "Authentication required, 2 retries remaining"},
		{0x6983, "Authentication required, 0 retries remaining"},
		{0x6982, "Authentication required"},
		{0x6A88, "Data object or key not found"},
	}

	for _, tt := range tests {
		resp, err := newResponse(iso7816.NewResponseAPDU(nil, tt.sw))
		if err != nil {
			t.Fatalf("newResponse failed: %v", err)
		}
		if got := resp.StatusMessage(); got != tt.want {
			t.Errorf("StatusMessage(%04X) = %q, want %q", uint16(tt.sw), got, tt.want)
		}
	}
}

func TestResponse_PayloadRequiresSuccess(t *testing.T) {
	cmd := NewGetSerialNumberCommand()
	resp, err := cmd.NewResponse(iso7816.NewResponseAPDU(nil, iso7816.SW_ERR_REF_DATA_NOT_FOUND))
	if err != nil {
		t.Fatalf("NewResponse failed: %v", err)
	}
	if resp.Status() != StatusNoData {
		t.Errorf("Status = %s, want NoData", resp.Status())
	}
	if _, err := resp.SerialNumber(); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("SerialNumber error = %v, want ErrInvalidOperation", err)
	}
}

func TestNewResponse_Nil(t *testing.T) {
	if _, err := NewGetVersionCommand().NewResponse(nil); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("error = %v, want ErrInvalidArgument", err)
	}
}
