package piv

import (
	"bytes"

	"github.com/gregLibert/pivcard/pkg/iso7816"
)

// ResetRetryCommand unblocks the PIN with the PUK and sets a new PIN
// (RESET RETRY COUNTER, INS 2C, P2 80).
type ResetRetryCommand struct {
	data []byte
}

// NewResetRetryCommand creates the command. The data field holds the PUK then the new PIN,
// each right-padded to 8 bytes with FF.
func NewResetRetryCommand(puk, newPIN []byte) (*ResetRetryCommand, error) {
	data, err := padPINPair("PUK", puk, "new PIN", newPIN)
	if err != nil {
		return nil, err
	}
	return &ResetRetryCommand{data: data}, nil
}

func (c *ResetRetryCommand) CommandAPDU() (*iso7816.CommandAPDU, error) {
	if c == nil || c.data == nil {
		return nil, uninitialized("ResetRetryCommand")
	}
	return newAPDU(iso7816.INS_RESET_RETRY_COUNTER, 0x00, byte(SlotPIN), bytes.Clone(c.data), 0), nil
}

func (c *ResetRetryCommand) NewResponse(r *iso7816.ResponseAPDU) (*ResetRetryResponse, error) {
	base, err := newResponse(r)
	if err != nil {
		return nil, err
	}
	return &ResetRetryResponse{retryResponse{base}}, nil
}

// Clear wipes the PUK and the new PIN.
func (c *ResetRetryCommand) Clear() {
	clear(c.data)
}

// ResetRetryResponse reports the outcome and, on failure, the remaining PUK attempts.
type ResetRetryResponse struct {
	retryResponse
}
