package piv

import (
	"github.com/gregLibert/pivcard/pkg/iso7816"
)

// SetManagementKeyCommand replaces the management key (INS FF). Requires a prior
// management key authentication.
type SetManagementKeyCommand struct {
	keyType      KeyType
	key          []byte
	requireTouch bool
}

// NewSetManagementKeyCommand creates the command. The key length must match keyType:
// 24 bytes for TripleDES, 16/24/32 bytes for AES.
func NewSetManagementKeyCommand(keyType KeyType, key []byte, requireTouch bool) (*SetManagementKeyCommand, error) {
	if err := checkManagementKey(keyType, key); err != nil {
		return nil, err
	}
	return &SetManagementKeyCommand{
		keyType:      keyType,
		key:          append([]byte(nil), key...),
		requireTouch: requireTouch,
	}, nil
}

func checkManagementKey(keyType KeyType, key []byte) error {
	info, ok := keyType.info()
	if !ok || !keyType.IsSymmetric() {
		return invalidArgument("%s is not a management key type", keyType)
	}
	if len(key) != info.size {
		return invalidArgument("%s management key must be %d bytes, got %d", keyType, info.size, len(key))
	}
	return nil
}

func (c *SetManagementKeyCommand) CommandAPDU() (*iso7816.CommandAPDU, error) {
	if c == nil || c.key == nil {
		return nil, uninitialized("SetManagementKeyCommand")
	}

	p2 := byte(0xFF)
	if c.requireTouch {
		p2 = 0xFE
	}

	data := make([]byte, 0, 3+len(c.key))
	data = append(data, byte(c.keyType.Algorithm()), byte(SlotManagement), byte(len(c.key)))
	data = append(data, c.key...)

	return newAPDU(insSetManagementKey, 0xFF, p2, data, 0), nil
}

func (c *SetManagementKeyCommand) NewResponse(r *iso7816.ResponseAPDU) (*StatusResponse, error) {
	return newStatusResponse(r)
}

// Clear wipes the key.
func (c *SetManagementKeyCommand) Clear() {
	clear(c.key)
}
