package piv

import (
	"bytes"

	"github.com/gregLibert/pivcard/pkg/iso7816"
)

// VerifyPinCommand presents the PIN (VERIFY, INS 20, P2 80). Built without a PIN,
// it queries the retry counter instead.
type VerifyPinCommand struct {
	pin   []byte
	query bool
}

// NewVerifyPinCommand creates a VERIFY command for a 6 to 8 byte PIN.
func NewVerifyPinCommand(pin []byte) (*VerifyPinCommand, error) {
	padded, err := padPIN("PIN", pin)
	if err != nil {
		return nil, err
	}
	return &VerifyPinCommand{pin: padded}, nil
}

// NewPinRetriesQuery creates a VERIFY command with an empty data field. The card answers
// 9000 if the PIN is already verified, or 63CX with the remaining attempts.
func NewPinRetriesQuery() *VerifyPinCommand {
	return &VerifyPinCommand{query: true}
}

func (c *VerifyPinCommand) CommandAPDU() (*iso7816.CommandAPDU, error) {
	if c == nil || (c.pin == nil && !c.query) {
		return nil, uninitialized("VerifyPinCommand")
	}
	return newAPDU(iso7816.INS_VERIFY, 0x00, byte(SlotPIN), bytes.Clone(c.pin), 0), nil
}

func (c *VerifyPinCommand) NewResponse(r *iso7816.ResponseAPDU) (*VerifyPinResponse, error) {
	base, err := newResponse(r)
	if err != nil {
		return nil, err
	}
	return &VerifyPinResponse{retryResponse{base}}, nil
}

// Clear wipes the PIN.
func (c *VerifyPinCommand) Clear() {
	clear(c.pin)
}

// VerifyPinResponse reports the verification outcome and the remaining attempts.
type VerifyPinResponse struct {
	retryResponse
}
