package piv

import (
	"errors"
	"testing"
)

func TestKeyType_Algorithm(t *testing.T) {
	tests := []struct {
		kt    KeyType
		alg   Algorithm
		bits  int
		block int
	}{
		{KeyTypeRSA1024, 0x06, 1024, 0},
		{KeyTypeRSA2048, 0x07, 2048, 0},
		{KeyTypeRSA3072, 0x05, 3072, 0},
		{KeyTypeRSA4096, 0x16, 4096, 0},
		{KeyTypeECCP256, 0x11, 256, 0},
		{KeyTypeECCP384, 0x14, 384, 0},
		{KeyTypeEd25519, 0xE0, 255, 0},
		{KeyTypeX25519, 0xE1, 255, 0},
		{KeyTypeTripleDES, 0x03, 192, 8},
		{KeyTypeAES128, 0x08, 128, 16},
		{KeyTypeAES192, 0x0A, 192, 16},
		{KeyTypeAES256, 0x0C, 256, 16},
		{KeyTypePIN, 0xFF, 64, 0},
		{KeyTypePUK, 0xFE, 64, 0},
	}

	for _, tt := range tests {
		t.Run(tt.kt.String(), func(t *testing.T) {
			if got := tt.kt.Algorithm(); got != tt.alg {
				t.Errorf("Algorithm = %02X, want %02X", byte(got), byte(tt.alg))
			}
			if got := tt.kt.KeySize(); got != tt.bits {
				t.Errorf("KeySize = %d, want %d", got, tt.bits)
			}
			if got := tt.kt.BlockSize(); got != tt.block {
				t.Errorf("BlockSize = %d, want %d", got, tt.block)
			}

			back, err := KeyTypeFromAlgorithm(tt.alg)
			if err != nil || back != tt.kt {
				t.Errorf("KeyTypeFromAlgorithm(%02X) = %s, %v", byte(tt.alg), back, err)
			}
		})
	}
}

func TestKeyTypeFromAlgorithm_Unknown(t *testing.T) {
	if _, err := KeyTypeFromAlgorithm(0x42); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("error = %v, want ErrInvalidArgument", err)
	}
}

func TestKeyType_Families(t *testing.T) {
	if !KeyTypeEd25519.IsCurve25519() || KeyTypeEd25519.IsECC() {
		t.Error("Ed25519 must be a Curve25519 key and not a NIST curve")
	}
	if KeyTypeAES192.IsAsymmetric() || !KeyTypeAES192.IsSymmetric() {
		t.Error("AES192 must be symmetric")
	}
	if KeyTypePIN.IsAsymmetric() || KeyTypePIN.IsSymmetric() {
		t.Error("PIN is neither asymmetric nor symmetric")
	}
	if KeyTypeECCP384.Curve() == nil || KeyTypeRSA2048.Curve() != nil {
		t.Error("Curve is only defined for NIST curves")
	}
}

func TestSlot(t *testing.T) {
	first, err := RetiredSlot(1)
	if err != nil || first != 0x82 {
		t.Fatalf("RetiredSlot(1) = %02X, %v", byte(first), err)
	}
	last, err := RetiredSlot(20)
	if err != nil || last != 0x95 {
		t.Fatalf("RetiredSlot(20) = %02X, %v", byte(last), err)
	}
	if _, err := RetiredSlot(21); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("RetiredSlot(21) error = %v", err)
	}

	tests := []struct {
		slot       Slot
		asymmetric bool
		name       string
	}{
		{SlotPIN, false, "PIN"},
		{SlotPUK, false, "PUK"},
		{SlotManagement, false, "Management"},
		{SlotAuthentication, true, "Authentication"},
		{SlotCardAuthentication, true, "CardAuthentication"},
		{SlotAttestation, false, "Attestation"},
		{0x8C, true, "Retired11"},
		{0x96, false, "Slot(96)"},
	}
	for _, tt := range tests {
		if got := tt.slot.IsAsymmetric(); got != tt.asymmetric {
			t.Errorf("%02X IsAsymmetric = %v, want %v", byte(tt.slot), got, tt.asymmetric)
		}
		if got := tt.slot.String(); got != tt.name {
			t.Errorf("%02X String = %q, want %q", byte(tt.slot), got, tt.name)
		}
	}
}
