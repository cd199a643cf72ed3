package piv

import (
	"github.com/gregLibert/pivcard/pkg/iso7816"
	"github.com/gregLibert/pivcard/pkg/tlv"
)

// ImportAsymmetricKeyCommand loads a private key into a slot (INS FE, P1 algorithm, P2 slot).
type ImportAsymmetricKeyCommand struct {
	slot  Slot
	key   *PrivateKey
	pin   PinPolicy
	touch TouchPolicy
}

// NewImportAsymmetricKeyCommand creates the command. The key is copied; the caller
// remains responsible for clearing its own copy.
func NewImportAsymmetricKeyCommand(slot Slot, key *PrivateKey, pin PinPolicy, touch TouchPolicy) (*ImportAsymmetricKeyCommand, error) {
	if !slot.IsAsymmetric() && slot != SlotAttestation {
		return nil, invalidArgument("slot %02X cannot receive an imported key", byte(slot))
	}
	if key == nil || len(key.encoded) == 0 {
		return nil, invalidArgument("missing private key")
	}
	if err := requireKeyFor(slot, key.keyType); err != nil {
		return nil, err
	}
	if _, err := policyObjects(pin, touch); err != nil {
		return nil, err
	}

	return &ImportAsymmetricKeyCommand{
		slot:  slot,
		key:   &PrivateKey{keyType: key.keyType, encoded: key.Encode()},
		pin:   pin,
		touch: touch,
	}, nil
}

func (c *ImportAsymmetricKeyCommand) CommandAPDU() (*iso7816.CommandAPDU, error) {
	if c == nil || c.key == nil || c.slot == 0 {
		return nil, uninitialized("ImportAsymmetricKeyCommand")
	}

	policies, err := policyObjects(c.pin, c.touch)
	if err != nil {
		return nil, err
	}

	data := append(c.key.Encode(), tlv.Encode(policies...)...)
	return newAPDU(insImportKey, byte(c.key.keyType.Algorithm()), byte(c.slot), data, 0), nil
}

func (c *ImportAsymmetricKeyCommand) NewResponse(r *iso7816.ResponseAPDU) (*StatusResponse, error) {
	return newStatusResponse(r)
}

// Clear wipes the copied key.
func (c *ImportAsymmetricKeyCommand) Clear() {
	if c.key != nil {
		c.key.Clear()
	}
}
