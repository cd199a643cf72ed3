package piv

import (
	"bytes"

	"github.com/gregLibert/pivcard/pkg/iso7816"
)

// ChangeReferenceDataCommand replaces the PIN or the PUK (CHANGE REFERENCE DATA, INS 24).
type ChangeReferenceDataCommand struct {
	ref  Slot
	data []byte
}

// NewChangeReferenceDataCommand creates the command for ref (SlotPIN or SlotPUK). The data
// field holds the current then the new value, each right-padded to 8 bytes with FF.
func NewChangeReferenceDataCommand(ref Slot, current, replacement []byte) (*ChangeReferenceDataCommand, error) {
	if ref != SlotPIN && ref != SlotPUK {
		return nil, invalidArgument("slot %02X is not a PIN or PUK reference", byte(ref))
	}

	data, err := padPINPair("current "+ref.String(), current, "new "+ref.String(), replacement)
	if err != nil {
		return nil, err
	}
	return &ChangeReferenceDataCommand{ref: ref, data: data}, nil
}

func (c *ChangeReferenceDataCommand) CommandAPDU() (*iso7816.CommandAPDU, error) {
	if c == nil || c.data == nil {
		return nil, uninitialized("ChangeReferenceDataCommand")
	}
	return newAPDU(iso7816.INS_CHANGE_REFERENCE_DATA, 0x00, byte(c.ref), bytes.Clone(c.data), 0), nil
}

func (c *ChangeReferenceDataCommand) NewResponse(r *iso7816.ResponseAPDU) (*ChangeReferenceDataResponse, error) {
	base, err := newResponse(r)
	if err != nil {
		return nil, err
	}
	return &ChangeReferenceDataResponse{retryResponse{base}}, nil
}

// Clear wipes both values.
func (c *ChangeReferenceDataCommand) Clear() {
	clear(c.data)
}

// ChangeReferenceDataResponse reports the outcome and, on failure, the remaining attempts.
type ChangeReferenceDataResponse struct {
	retryResponse
}
