package piv

import (
	"fmt"

	"github.com/gregLibert/pivcard/pkg/iso7816"
	"github.com/gregLibert/pivcard/pkg/tlv"
)

const (
	tagGenerateTemplate = 0xAC
	tagGenerateAlg      = 0x80
)

// GenerateKeyPairCommand generates a key pair in a slot (GENERATE ASYMMETRIC KEY PAIR, INS 47).
type GenerateKeyPairCommand struct {
	slot    Slot
	keyType KeyType
	pin     PinPolicy
	touch   TouchPolicy
}

// NewGenerateKeyPairCommand creates the command. Policies equal to None or Default
// are left to the card.
func NewGenerateKeyPairCommand(slot Slot, keyType KeyType, pin PinPolicy, touch TouchPolicy) (*GenerateKeyPairCommand, error) {
	if err := requireAsymmetricSlot(slot); err != nil {
		return nil, err
	}
	if err := requireKeyFor(slot, keyType); err != nil {
		return nil, err
	}
	if _, err := policyObjects(pin, touch); err != nil {
		return nil, err
	}
	return &GenerateKeyPairCommand{slot: slot, keyType: keyType, pin: pin, touch: touch}, nil
}

func (c *GenerateKeyPairCommand) CommandAPDU() (*iso7816.CommandAPDU, error) {
	if c == nil || c.slot == 0 || c.keyType == KeyTypeNone {
		return nil, uninitialized("GenerateKeyPairCommand")
	}

	policies, err := policyObjects(c.pin, c.touch)
	if err != nil {
		return nil, err
	}

	children := append([]tlv.Object{tlv.New(tagGenerateAlg, []byte{byte(c.keyType.Algorithm())})}, policies...)
	data := tlv.NewConstructed(tagGenerateTemplate, children...).Bytes()

	return newAPDU(iso7816.INS_GENERATE_ASYMMETRIC_KEY_BER, 0x00, byte(c.slot), data, expectData), nil
}

func (c *GenerateKeyPairCommand) NewResponse(r *iso7816.ResponseAPDU) (*GenerateKeyPairResponse, error) {
	return NewGenerateKeyPairResponse(r, c.slot, c.keyType)
}

// GenerateKeyPairResponse carries the public half of the generated key.
type GenerateKeyPairResponse struct {
	Response
	slot    Slot
	keyType KeyType
}

// NewGenerateKeyPairResponse wraps a reply to GENERATE for the given slot and key type.
func NewGenerateKeyPairResponse(r *iso7816.ResponseAPDU, slot Slot, keyType KeyType) (*GenerateKeyPairResponse, error) {
	if err := requireAsymmetricSlot(slot); err != nil {
		return nil, err
	}
	if err := requireKeyFor(slot, keyType); err != nil {
		return nil, err
	}
	base, err := newResponse(r)
	if err != nil {
		return nil, err
	}
	return &GenerateKeyPairResponse{Response: base, slot: slot, keyType: keyType}, nil
}

// Slot returns the slot holding the new key.
func (r *GenerateKeyPairResponse) Slot() Slot { return r.slot }

// PublicKey decodes the '7F49' template returned by the card.
func (r *GenerateKeyPairResponse) PublicKey() (*PublicKey, error) {
	data, err := r.payload()
	if err != nil {
		return nil, err
	}
	pub, err := DecodePublicKey(data, r.keyType)
	if err != nil {
		return nil, fmt.Errorf("slot %s: %w", r.slot, err)
	}
	return pub, nil
}
