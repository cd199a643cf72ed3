package piv

import (
	"crypto/elliptic"
	"fmt"
)

// Algorithm is the wire byte identifying a key algorithm in PIV commands
// (P1 of GENERAL AUTHENTICATE, tag 80 of GENERATE, tag 01 of metadata).
type Algorithm byte

// KeyType is the canonical key model. Every wire value is derived from keyTypes.
type KeyType int

const (
	KeyTypeNone KeyType = iota
	KeyTypeRSA1024
	KeyTypeRSA2048
	KeyTypeRSA3072
	KeyTypeRSA4096
	KeyTypeECCP256
	KeyTypeECCP384
	KeyTypeEd25519
	KeyTypeX25519
	KeyTypeTripleDES
	KeyTypeAES128
	KeyTypeAES192
	KeyTypeAES256
	KeyTypePIN
	KeyTypePUK
)

type keyFamily int

const (
	familyRSA keyFamily = iota + 1
	familyECC
	familyEd25519
	familyX25519
	familySymmetric
	familyReference
)

// keyTypeInfo holds the fixed wire properties of a key type.
//   - size: modulus bytes (RSA), field bytes (ECC, Curve25519), key bytes (symmetric).
//   - point: public point length inside tag 86.
//   - privateTag: tag holding the private scalar or seed (RSA uses 01..05).
//   - block: cipher block size for management keys.
type keyTypeInfo struct {
	name       string
	algorithm  Algorithm
	family     keyFamily
	size       int
	point      int
	privateTag uint32
	block      int
}

var keyTypes = map[KeyType]keyTypeInfo{
	KeyTypeRSA1024:   {name: "RSA1024", algorithm: 0x06, family: familyRSA, size: 128},
	KeyTypeRSA2048:   {name: "RSA2048", algorithm: 0x07, family: familyRSA, size: 256},
	KeyTypeRSA3072:   {name: "RSA3072", algorithm: 0x05, family: familyRSA, size: 384},
	KeyTypeRSA4096:   {name: "RSA4096", algorithm: 0x16, family: familyRSA, size: 512},
	KeyTypeECCP256:   {name: "ECCP256", algorithm: 0x11, family: familyECC, size: 32, point: 65, privateTag: 0x06},
	KeyTypeECCP384:   {name: "ECCP384", algorithm: 0x14, family: familyECC, size: 48, point: 97, privateTag: 0x06},
	KeyTypeEd25519:   {name: "Ed25519", algorithm: 0xE0, family: familyEd25519, size: 32, point: 32, privateTag: 0x07},
	KeyTypeX25519:    {name: "X25519", algorithm: 0xE1, family: familyX25519, size: 32, point: 32, privateTag: 0x08},
	KeyTypeTripleDES: {name: "TripleDES", algorithm: 0x03, family: familySymmetric, size: 24, block: 8},
	KeyTypeAES128:    {name: "AES128", algorithm: 0x08, family: familySymmetric, size: 16, block: 16},
	KeyTypeAES192:    {name: "AES192", algorithm: 0x0A, family: familySymmetric, size: 24, block: 16},
	KeyTypeAES256:    {name: "AES256", algorithm: 0x0C, family: familySymmetric, size: 32, block: 16},
	KeyTypePIN:       {name: "PIN", algorithm: 0xFF, family: familyReference, size: 8},
	KeyTypePUK:       {name: "PUK", algorithm: 0xFE, family: familyReference, size: 8},
}

// KeyTypeFromAlgorithm returns the key type carried by an algorithm byte.
func KeyTypeFromAlgorithm(a Algorithm) (KeyType, error) {
	for kt, info := range keyTypes {
		if info.algorithm == a {
			return kt, nil
		}
	}
	return KeyTypeNone, invalidArgument("unknown algorithm %02X", byte(a))
}

func (k KeyType) info() (keyTypeInfo, bool) {
	info, ok := keyTypes[k]
	return info, ok
}

func (k KeyType) String() string {
	if info, ok := k.info(); ok {
		return info.name
	}
	return fmt.Sprintf("KeyType(%d)", int(k))
}

// Algorithm returns the wire byte of the key type, or 0 for KeyTypeNone.
func (k KeyType) Algorithm() Algorithm {
	info, _ := k.info()
	return info.algorithm
}

func (k KeyType) family() keyFamily {
	info, _ := k.info()
	return info.family
}

// IsRSA reports whether k is one of the RSA modulus sizes.
func (k KeyType) IsRSA() bool { return k.family() == familyRSA }

// IsECC reports whether k is a NIST curve.
func (k KeyType) IsECC() bool { return k.family() == familyECC }

// IsCurve25519 reports whether k is Ed25519 or X25519.
func (k KeyType) IsCurve25519() bool {
	return k.family() == familyEd25519 || k.family() == familyX25519
}

// IsAsymmetric reports whether k can live in an asymmetric key slot.
func (k KeyType) IsAsymmetric() bool {
	return k.IsRSA() || k.IsECC() || k.IsCurve25519()
}

// IsSymmetric reports whether k is a management key algorithm.
func (k KeyType) IsSymmetric() bool { return k.family() == familySymmetric }

// KeySize returns the key size in bits.
func (k KeyType) KeySize() int {
	info, _ := k.info()
	if k.IsCurve25519() {
		return 255
	}
	return info.size * 8
}

// BlockSize returns the cipher block size of a management key type, 0 otherwise.
func (k KeyType) BlockSize() int {
	info, _ := k.info()
	return info.block
}

// Curve returns the NIST curve of an ECC key type.
func (k KeyType) Curve() elliptic.Curve {
	switch k {
	case KeyTypeECCP256:
		return elliptic.P256()
	case KeyTypeECCP384:
		return elliptic.P384()
	default:
		return nil
	}
}

// inputLength is the exact size of a digest or ciphertext processed by the key,
// or 0 when any length is accepted.
func (k KeyType) inputLength() int {
	info, _ := k.info()
	if k.IsRSA() || k.IsECC() {
		return info.size
	}
	return 0
}
