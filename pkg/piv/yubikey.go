package piv

import (
	"crypto/x509"
	"encoding/binary"
	"fmt"

	"github.com/gregLibert/pivcard/pkg/iso7816"
)

// GetVersionCommand reads the firmware version (YubiKey INS FD).
type GetVersionCommand struct{}

func NewGetVersionCommand() GetVersionCommand { return GetVersionCommand{} }

func (GetVersionCommand) CommandAPDU() (*iso7816.CommandAPDU, error) {
	return newAPDU(insGetVersion, 0x00, 0x00, nil, expectData), nil
}

func (GetVersionCommand) NewResponse(r *iso7816.ResponseAPDU) (*GetVersionResponse, error) {
	base, err := newResponse(r)
	if err != nil {
		return nil, err
	}
	return &GetVersionResponse{Response: base}, nil
}

// Version is a firmware version.
type Version struct {
	Major, Minor, Patch byte
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// AtLeast reports whether v is equal to or newer than major.minor.patch.
func (v Version) AtLeast(major, minor, patch byte) bool {
	if v.Major != major {
		return v.Major > major
	}
	if v.Minor != minor {
		return v.Minor > minor
	}
	return v.Patch >= patch
}

// GetVersionResponse carries the firmware version.
type GetVersionResponse struct {
	Response
}

// Version decodes the three version bytes.
func (r *GetVersionResponse) Version() (Version, error) {
	data, err := r.payload()
	if err != nil {
		return Version{}, err
	}
	if len(data) != 3 {
		return Version{}, malformed("version is %d bytes, want 3", len(data))
	}
	return Version{Major: data[0], Minor: data[1], Patch: data[2]}, nil
}

// GetSerialNumberCommand reads the device serial number (YubiKey INS F8).
type GetSerialNumberCommand struct{}

func NewGetSerialNumberCommand() GetSerialNumberCommand { return GetSerialNumberCommand{} }

func (GetSerialNumberCommand) CommandAPDU() (*iso7816.CommandAPDU, error) {
	return newAPDU(insGetSerial, 0x00, 0x00, nil, expectData), nil
}

func (GetSerialNumberCommand) NewResponse(r *iso7816.ResponseAPDU) (*GetSerialNumberResponse, error) {
	base, err := newResponse(r)
	if err != nil {
		return nil, err
	}
	return &GetSerialNumberResponse{Response: base}, nil
}

// GetSerialNumberResponse carries the serial number.
type GetSerialNumberResponse struct {
	Response
}

// SerialNumber decodes the big-endian serial number.
func (r *GetSerialNumberResponse) SerialNumber() (uint32, error) {
	data, err := r.payload()
	if err != nil {
		return 0, err
	}
	if len(data) != 4 {
		return 0, malformed("serial number is %d bytes, want 4", len(data))
	}
	return binary.BigEndian.Uint32(data), nil
}

// CreateAttestationStatementCommand asks the card to certify the key of a slot
// with the attestation key (YubiKey INS F9).
type CreateAttestationStatementCommand struct {
	slot Slot
}

// NewCreateAttestationStatementCommand creates the command for an asymmetric slot.
func NewCreateAttestationStatementCommand(slot Slot) (*CreateAttestationStatementCommand, error) {
	if err := requireAsymmetricSlot(slot); err != nil {
		return nil, err
	}
	return &CreateAttestationStatementCommand{slot: slot}, nil
}

func (c *CreateAttestationStatementCommand) CommandAPDU() (*iso7816.CommandAPDU, error) {
	if c == nil || c.slot == 0 {
		return nil, uninitialized("CreateAttestationStatementCommand")
	}
	return newAPDU(insAttest, byte(c.slot), 0x00, nil, expectData), nil
}

func (c *CreateAttestationStatementCommand) NewResponse(r *iso7816.ResponseAPDU) (*CreateAttestationStatementResponse, error) {
	base, err := newResponse(r)
	if err != nil {
		return nil, err
	}
	return &CreateAttestationStatementResponse{Response: base}, nil
}

// CreateAttestationStatementResponse carries the attestation certificate.
type CreateAttestationStatementResponse struct {
	Response
}

// DER returns the raw certificate.
func (r *CreateAttestationStatementResponse) DER() ([]byte, error) {
	data, err := r.payload()
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, malformed("empty attestation statement")
	}
	return data, nil
}

// Certificate parses the attestation certificate.
func (r *CreateAttestationStatementResponse) Certificate() (*x509.Certificate, error) {
	der, err := r.DER()
	if err != nil {
		return nil, err
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, malformed("attestation certificate: %v", err)
	}
	return cert, nil
}

// ResetApplicationCommand resets the PIV application to factory state (YubiKey INS FB).
// The card accepts it only once both PIN and PUK are blocked.
type ResetApplicationCommand struct{}

func NewResetApplicationCommand() ResetApplicationCommand { return ResetApplicationCommand{} }

func (ResetApplicationCommand) CommandAPDU() (*iso7816.CommandAPDU, error) {
	return newAPDU(insReset, 0x00, 0x00, nil, 0), nil
}

func (ResetApplicationCommand) NewResponse(r *iso7816.ResponseAPDU) (*StatusResponse, error) {
	return newStatusResponse(r)
}

// SetPinRetriesCommand sets the PIN and PUK retry limits (YubiKey INS FA).
// Both counters are reset to their default value.
type SetPinRetriesCommand struct {
	pinRetries byte
	pukRetries byte
}

// NewSetPinRetriesCommand creates the command. Both counts must be between 1 and 255.
func NewSetPinRetriesCommand(pinRetries, pukRetries int) (*SetPinRetriesCommand, error) {
	for _, n := range []int{pinRetries, pukRetries} {
		if n < 1 || n > 255 {
			return nil, invalidArgument("retry count %d out of range (1-255)", n)
		}
	}
	return &SetPinRetriesCommand{pinRetries: byte(pinRetries), pukRetries: byte(pukRetries)}, nil
}

func (c *SetPinRetriesCommand) CommandAPDU() (*iso7816.CommandAPDU, error) {
	if c == nil || c.pinRetries == 0 || c.pukRetries == 0 {
		return nil, uninitialized("SetPinRetriesCommand")
	}
	return newAPDU(insSetPinRetries, c.pinRetries, c.pukRetries, nil, 0), nil
}

func (c *SetPinRetriesCommand) NewResponse(r *iso7816.ResponseAPDU) (*StatusResponse, error) {
	return newStatusResponse(r)
}

const slotDelete = 0xFF

// MoveKeyCommand moves a key between slots or deletes it (YubiKey INS F6, firmware 5.7+).
type MoveKeyCommand struct {
	destination byte
	source      Slot
}

// NewMoveKeyCommand moves the key of source into destination.
func NewMoveKeyCommand(source, destination Slot) (*MoveKeyCommand, error) {
	if err := requireAsymmetricSlot(source); err != nil {
		return nil, err
	}
	if err := requireAsymmetricSlot(destination); err != nil {
		return nil, err
	}
	if source == destination {
		return nil, invalidArgument("source and destination are both %s", source)
	}
	return &MoveKeyCommand{destination: byte(destination), source: source}, nil
}

// NewDeleteKeyCommand deletes the key of slot.
func NewDeleteKeyCommand(slot Slot) (*MoveKeyCommand, error) {
	if !slot.IsAsymmetric() && slot != SlotAttestation {
		return nil, invalidArgument("slot %02X holds no deletable key", byte(slot))
	}
	return &MoveKeyCommand{destination: slotDelete, source: slot}, nil
}

func (c *MoveKeyCommand) CommandAPDU() (*iso7816.CommandAPDU, error) {
	if c == nil || c.source == 0 || c.destination == 0 {
		return nil, uninitialized("MoveKeyCommand")
	}
	return newAPDU(insMoveKey, c.destination, byte(c.source), nil, 0), nil
}

func (c *MoveKeyCommand) NewResponse(r *iso7816.ResponseAPDU) (*StatusResponse, error) {
	return newStatusResponse(r)
}
