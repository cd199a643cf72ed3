package piv

import (
	"bytes"
	"fmt"

	"github.com/gregLibert/pivcard/pkg/iso7816"
	"github.com/gregLibert/pivcard/pkg/tlv"
)

// GENERAL AUTHENTICATE (INS 87) with a private key:
//
//	P1 = algorithm, P2 = slot
//	Data:  7C { 82 00, 81 challenge }      (sign, decrypt)
//	       7C { 82 00, 85 peer point }     (key agreement)
//	Reply: 7C { 82 result }

const (
	tagDynamicAuth  = 0x7C
	tagAuthWitness  = 0x80
	tagAuthChallenge = 0x81
	tagAuthResponse = 0x82
	tagAuthExponent = 0x85
)

type privateOperation struct {
	slot    Slot
	keyType KeyType
	input   []byte
	inTag   uint32
}

func (o *privateOperation) apdu() (*iso7816.CommandAPDU, error) {
	data := tlv.NewConstructed(tagDynamicAuth,
		tlv.New(tagAuthResponse, nil),
		tlv.New(o.inTag, o.input),
	).Bytes()
	return newAPDU(iso7816.INS_GENERAL_AUTHENTICATE_BER, byte(o.keyType.Algorithm()), byte(o.slot), data, expectData), nil
}

func newPrivateOperation(slot Slot, keyType KeyType) (privateOperation, error) {
	if err := requireAsymmetricSlot(slot); err != nil {
		return privateOperation{}, err
	}
	if err := requireKeyFor(slot, keyType); err != nil {
		return privateOperation{}, err
	}
	return privateOperation{slot: slot, keyType: keyType}, nil
}

// authResult extracts the '82' object of a 7C reply.
func authResult(data []byte) ([]byte, error) {
	outer, err := tlv.DecodeSingle(data, tagDynamicAuth)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	inner, err := tlv.DecodeSingle(outer.Value, tagAuthResponse)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return inner.Value, nil
}

// SignCommand signs a digest with the key of a slot.
type SignCommand struct {
	op privateOperation
}

// NewSignCommand creates the command. RSA keys expect a padded digest of exactly the
// modulus size, ECC keys a digest of exactly the field size. Ed25519 keys sign
// any non-empty message.
func NewSignCommand(slot Slot, keyType KeyType, digest []byte) (*SignCommand, error) {
	op, err := newPrivateOperation(slot, keyType)
	if err != nil {
		return nil, err
	}
	if keyType == KeyTypeX25519 {
		return nil, invalidArgument("%s keys cannot sign", keyType)
	}
	if err := checkInputLength("digest", keyType, digest); err != nil {
		return nil, err
	}

	op.input = bytes.Clone(digest)
	op.inTag = tagAuthChallenge
	return &SignCommand{op: op}, nil
}

func checkInputLength(name string, keyType KeyType, input []byte) error {
	want := keyType.inputLength()
	if want == 0 && len(input) == 0 {
		return invalidArgument("%s must not be empty", name)
	}
	if want != 0 && len(input) != want {
		return invalidArgument("%s for %s must be %d bytes, got %d", name, keyType, want, len(input))
	}
	return nil
}

func (c *SignCommand) CommandAPDU() (*iso7816.CommandAPDU, error) {
	if c == nil || c.op.slot == 0 {
		return nil, uninitialized("SignCommand")
	}
	return c.op.apdu()
}

func (c *SignCommand) NewResponse(r *iso7816.ResponseAPDU) (*SignResponse, error) {
	return NewSignResponse(r, c.op.slot, c.op.keyType)
}

// SignResponse carries a signature.
type SignResponse struct {
	Response
	keyType KeyType
}

// NewSignResponse wraps a reply to a signing request made with the given slot and key type.
func NewSignResponse(r *iso7816.ResponseAPDU, slot Slot, keyType KeyType) (*SignResponse, error) {
	op, err := newPrivateOperation(slot, keyType)
	if err != nil {
		return nil, err
	}
	base, err := newResponse(r)
	if err != nil {
		return nil, err
	}
	return &SignResponse{Response: base, keyType: op.keyType}, nil
}

// Signature returns the signature: PKCS#1 block for RSA, DER sequence for ECDSA,
// 64 raw bytes for Ed25519.
func (r *SignResponse) Signature() ([]byte, error) {
	data, err := r.payload()
	if err != nil {
		return nil, err
	}
	sig, err := authResult(data)
	if err != nil {
		return nil, err
	}
	if r.keyType.IsRSA() && len(sig) != r.keyType.inputLength() {
		return nil, malformed("RSA signature is %d bytes, want %d", len(sig), r.keyType.inputLength())
	}
	return sig, nil
}

// DecryptCommand decrypts an RSA ciphertext with the key of a slot.
type DecryptCommand struct {
	op privateOperation
}

// NewDecryptCommand creates the command. The ciphertext must be exactly the modulus size.
func NewDecryptCommand(slot Slot, keyType KeyType, ciphertext []byte) (*DecryptCommand, error) {
	op, err := newPrivateOperation(slot, keyType)
	if err != nil {
		return nil, err
	}
	if !keyType.IsRSA() {
		return nil, invalidArgument("%s keys cannot decrypt", keyType)
	}
	if err := checkInputLength("ciphertext", keyType, ciphertext); err != nil {
		return nil, err
	}

	op.input = bytes.Clone(ciphertext)
	op.inTag = tagAuthChallenge
	return &DecryptCommand{op: op}, nil
}

func (c *DecryptCommand) CommandAPDU() (*iso7816.CommandAPDU, error) {
	if c == nil || c.op.slot == 0 {
		return nil, uninitialized("DecryptCommand")
	}
	return c.op.apdu()
}

func (c *DecryptCommand) NewResponse(r *iso7816.ResponseAPDU) (*DecryptResponse, error) {
	return NewDecryptResponse(r, c.op.slot, c.op.keyType)
}

// DecryptResponse carries the raw decrypted block, padding included.
type DecryptResponse struct {
	Response
}

// NewDecryptResponse wraps a reply to a decryption request made with the given slot and key type.
func NewDecryptResponse(r *iso7816.ResponseAPDU, slot Slot, keyType KeyType) (*DecryptResponse, error) {
	if _, err := newPrivateOperation(slot, keyType); err != nil {
		return nil, err
	}
	if !keyType.IsRSA() {
		return nil, invalidArgument("%s keys cannot decrypt", keyType)
	}
	base, err := newResponse(r)
	if err != nil {
		return nil, err
	}
	return &DecryptResponse{Response: base}, nil
}

// Plaintext returns the decrypted block.
func (r *DecryptResponse) Plaintext() ([]byte, error) {
	data, err := r.payload()
	if err != nil {
		return nil, err
	}
	return authResult(data)
}

// KeyAgreeCommand computes an ECDH shared secret with the key of a slot.
type KeyAgreeCommand struct {
	op privateOperation
}

// NewKeyAgreeCommand creates the command. The peer point is uncompressed
// (65 bytes for P-256, 97 bytes for P-384) or 32 raw bytes for X25519.
func NewKeyAgreeCommand(slot Slot, keyType KeyType, peerPoint []byte) (*KeyAgreeCommand, error) {
	op, err := newPrivateOperation(slot, keyType)
	if err != nil {
		return nil, err
	}
	if !keyType.IsECC() && keyType != KeyTypeX25519 {
		return nil, invalidArgument("%s keys cannot agree on a secret", keyType)
	}

	info, _ := keyType.info()
	if len(peerPoint) != info.point {
		return nil, invalidArgument("peer point for %s must be %d bytes, got %d", keyType, info.point, len(peerPoint))
	}
	if keyType.IsECC() && peerPoint[0] != uncompressedFlag {
		return nil, invalidArgument("peer point must be uncompressed")
	}

	op.input = bytes.Clone(peerPoint)
	op.inTag = tagAuthExponent
	return &KeyAgreeCommand{op: op}, nil
}

func (c *KeyAgreeCommand) CommandAPDU() (*iso7816.CommandAPDU, error) {
	if c == nil || c.op.slot == 0 {
		return nil, uninitialized("KeyAgreeCommand")
	}
	return c.op.apdu()
}

func (c *KeyAgreeCommand) NewResponse(r *iso7816.ResponseAPDU) (*KeyAgreeResponse, error) {
	return NewKeyAgreeResponse(r, c.op.slot, c.op.keyType)
}

// KeyAgreeResponse carries the shared secret.
type KeyAgreeResponse struct {
	Response
	keyType KeyType
}

// NewKeyAgreeResponse wraps a reply to a key agreement made with the given slot and key type.
func NewKeyAgreeResponse(r *iso7816.ResponseAPDU, slot Slot, keyType KeyType) (*KeyAgreeResponse, error) {
	if _, err := newPrivateOperation(slot, keyType); err != nil {
		return nil, err
	}
	if !keyType.IsECC() && keyType != KeyTypeX25519 {
		return nil, invalidArgument("%s keys cannot agree on a secret", keyType)
	}
	base, err := newResponse(r)
	if err != nil {
		return nil, err
	}
	return &KeyAgreeResponse{Response: base, keyType: keyType}, nil
}

// SharedSecret returns the X coordinate (ECC) or the X25519 output.
func (r *KeyAgreeResponse) SharedSecret() ([]byte, error) {
	data, err := r.payload()
	if err != nil {
		return nil, err
	}
	secret, err := authResult(data)
	if err != nil {
		return nil, err
	}
	info, _ := r.keyType.info()
	if len(secret) != info.size {
		return nil, malformed("shared secret is %d bytes, want %d", len(secret), info.size)
	}
	return secret, nil
}
