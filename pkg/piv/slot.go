package piv

import "fmt"

// Slot is a key reference on the card.
type Slot byte

const (
	SlotPIN                Slot = 0x80
	SlotPUK                Slot = 0x81
	SlotManagement         Slot = 0x9B
	SlotAuthentication     Slot = 0x9A
	SlotSignature          Slot = 0x9C
	SlotKeyManagement      Slot = 0x9D
	SlotCardAuthentication Slot = 0x9E
	SlotAttestation        Slot = 0xF9

	slotRetiredFirst Slot = 0x82
	slotRetiredLast  Slot = 0x95
)

// RetiredSlot returns the retired key management slot n (1 to 20).
func RetiredSlot(n int) (Slot, error) {
	if n < 1 || n > 20 {
		return 0, invalidArgument("retired slot %d out of range (1-20)", n)
	}
	return slotRetiredFirst + Slot(n-1), nil
}

// IsRetired reports whether s is one of the 20 retired key management slots.
func (s Slot) IsRetired() bool {
	return s >= slotRetiredFirst && s <= slotRetiredLast
}

// IsAsymmetric reports whether s holds an asymmetric key usable by the PIV commands.
func (s Slot) IsAsymmetric() bool {
	switch s {
	case SlotAuthentication, SlotSignature, SlotKeyManagement, SlotCardAuthentication:
		return true
	}
	return s.IsRetired()
}

func (s Slot) String() string {
	switch s {
	case SlotPIN:
		return "PIN"
	case SlotPUK:
		return "PUK"
	case SlotManagement:
		return "Management"
	case SlotAuthentication:
		return "Authentication"
	case SlotSignature:
		return "Signature"
	case SlotKeyManagement:
		return "KeyManagement"
	case SlotCardAuthentication:
		return "CardAuthentication"
	case SlotAttestation:
		return "Attestation"
	}
	if s.IsRetired() {
		return fmt.Sprintf("Retired%d", int(s-slotRetiredFirst)+1)
	}
	return fmt.Sprintf("Slot(%02X)", byte(s))
}

func requireAsymmetricSlot(s Slot) error {
	if !s.IsAsymmetric() {
		return invalidArgument("slot %02X is not an asymmetric key slot", byte(s))
	}
	return nil
}

// requireKeyFor checks that kt can be used in slot s.
func requireKeyFor(s Slot, kt KeyType) error {
	switch s {
	case SlotPIN:
		if kt != KeyTypePIN {
			return invalidArgument("slot %s requires key type PIN, got %s", s, kt)
		}
	case SlotPUK:
		if kt != KeyTypePUK {
			return invalidArgument("slot %s requires key type PUK, got %s", s, kt)
		}
	case SlotManagement:
		if !kt.IsSymmetric() {
			return invalidArgument("slot %s requires a symmetric key type, got %s", s, kt)
		}
	default:
		if !kt.IsAsymmetric() {
			return invalidArgument("slot %s requires an asymmetric key type, got %s", s, kt)
		}
	}
	return nil
}
