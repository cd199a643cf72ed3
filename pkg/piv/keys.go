package piv

import (
	"bytes"
	"crypto"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"math/big"

	"filippo.io/edwards25519"
	"golang.org/x/crypto/curve25519"

	"github.com/gregLibert/pivcard/pkg/tlv"
)

// PIV KEY ENCODINGS:
//
// Public keys are carried in a '7F49' template:
//   - RSA:        7F49 { 81 modulus, 82 public exponent }
//   - ECC:        7F49 { 86 04 || X || Y }   (65 bytes for P-256, 97 bytes for P-384)
//   - Curve25519: 7F49 { 86 raw key }        (32 bytes, no point format prefix)
//
// Private keys are imported as a flat sequence of primitive objects:
//   - RSA:     01 P, 02 Q, 03 DP, 04 DQ, 05 QInv (each half the modulus size)
//   - ECC:     06 scalar
//   - Ed25519: 07 seed
//   - X25519:  08 scalar

const (
	tagPublicKey     = 0x7F49
	tagRSAModulus    = 0x81
	tagRSAExponent   = 0x82
	tagPoint         = 0x86
	tagRSAPrime1     = 0x01
	uncompressedFlag = 0x04
)

// PublicKey is a public key in its PIV encoding.
type PublicKey struct {
	keyType KeyType
	encoded []byte
}

// DecodePublicKey parses a '7F49' template holding a key of type kt.
func DecodePublicKey(data []byte, kt KeyType) (*PublicKey, error) {
	if !kt.IsAsymmetric() {
		return nil, invalidArgument("%s is not an asymmetric key type", kt)
	}

	outer, err := tlv.DecodeSingle(data, tagPublicKey)
	if err != nil {
		return nil, badKeyEncoding("%v", err)
	}
	children, err := outer.Children()
	if err != nil {
		return nil, badKeyEncoding("%v", err)
	}

	if kt.IsRSA() {
		err = checkRSAPublic(children, kt)
	} else {
		err = checkPointPublic(children, kt)
	}
	if err != nil {
		return nil, err
	}

	return &PublicKey{keyType: kt, encoded: bytes.Clone(data)}, nil
}

func checkRSAPublic(children []tlv.Object, kt KeyType) error {
	if len(children) != 2 || children[0].Tag != tagRSAModulus || children[1].Tag != tagRSAExponent {
		return badKeyEncoding("RSA public key must hold exactly 81 then 82")
	}

	modulus := new(big.Int).SetBytes(children[0].Value)
	if modulus.BitLen() != kt.KeySize() {
		return badKeyEncoding("modulus is %d bits, %s expects %d", modulus.BitLen(), kt, kt.KeySize())
	}
	if !minimalInteger(children[0].Value) {
		return badKeyEncoding("modulus has superfluous leading zeros")
	}

	exponent := children[1].Value
	if len(exponent) == 0 || len(exponent) > 4 || !minimalInteger(exponent) {
		return badKeyEncoding("invalid public exponent %X", exponent)
	}
	if e := new(big.Int).SetBytes(exponent); e.Cmp(big.NewInt(3)) < 0 || e.Bit(0) == 0 {
		return badKeyEncoding("invalid public exponent %s", e)
	}
	return nil
}

// minimalInteger accepts a single leading zero only when the next byte has its top bit set.
func minimalInteger(b []byte) bool {
	if len(b) < 2 || b[0] != 0 {
		return true
	}
	return b[1]&0x80 != 0
}

func checkPointPublic(children []tlv.Object, kt KeyType) error {
	info, _ := kt.info()
	if len(children) != 1 || children[0].Tag != tagPoint {
		return badKeyEncoding("%s public key must hold exactly one 86 object", kt)
	}

	point := children[0].Value
	if len(point) != info.point {
		return badKeyEncoding("%s point must be %d bytes, got %d", kt, info.point, len(point))
	}

	switch kt {
	case KeyTypeECCP256, KeyTypeECCP384:
		if point[0] != uncompressedFlag {
			return badKeyEncoding("point is not in uncompressed form")
		}
		if _, err := ecdhCurve(kt).NewPublicKey(point); err != nil {
			return badKeyEncoding("point is not on %s: %v", kt, err)
		}
	case KeyTypeEd25519:
		if _, err := new(edwards25519.Point).SetBytes(point); err != nil {
			return badKeyEncoding("invalid Ed25519 point: %v", err)
		}
	}
	return nil
}

// NewPublicKey encodes a crypto public key. Supported types are *rsa.PublicKey,
// *ecdsa.PublicKey, ed25519.PublicKey and *ecdh.PublicKey (P-256, P-384, X25519).
func NewPublicKey(pub crypto.PublicKey) (*PublicKey, error) {
	var (
		kt    KeyType
		inner []tlv.Object
	)

	switch k := pub.(type) {
	case *rsa.PublicKey:
		var err error
		if kt, err = rsaKeyType(k.N); err != nil {
			return nil, err
		}
		inner = []tlv.Object{
			tlv.New(tagRSAModulus, k.N.Bytes()),
			tlv.New(tagRSAExponent, big.NewInt(int64(k.E)).Bytes()),
		}
	case *ecdsa.PublicKey:
		ek, err := k.ECDH()
		if err != nil {
			return nil, invalidArgument("unsupported ECDSA key: %v", err)
		}
		return NewPublicKey(ek)
	case *ecdh.PublicKey:
		var err error
		if kt, err = ecdhKeyType(k.Curve()); err != nil {
			return nil, err
		}
		inner = []tlv.Object{tlv.New(tagPoint, k.Bytes())}
	case ed25519.PublicKey:
		if len(k) != ed25519.PublicKeySize {
			return nil, invalidArgument("Ed25519 public key must be %d bytes", ed25519.PublicKeySize)
		}
		kt = KeyTypeEd25519
		inner = []tlv.Object{tlv.New(tagPoint, bytes.Clone(k))}
	default:
		return nil, invalidArgument("unsupported public key type %T", pub)
	}

	return &PublicKey{keyType: kt, encoded: tlv.NewConstructed(tagPublicKey, inner...).Bytes()}, nil
}

// KeyType returns the key type of the key.
func (p *PublicKey) KeyType() KeyType { return p.keyType }

// Encode returns the '7F49' template.
func (p *PublicKey) Encode() []byte { return bytes.Clone(p.encoded) }

// CryptoPublicKey converts the key to *rsa.PublicKey, *ecdsa.PublicKey,
// ed25519.PublicKey or *ecdh.PublicKey (X25519).
func (p *PublicKey) CryptoPublicKey() (crypto.PublicKey, error) {
	outer, err := tlv.DecodeSingle(p.encoded, tagPublicKey)
	if err != nil {
		return nil, badKeyEncoding("%v", err)
	}
	children, err := outer.Children()
	if err != nil {
		return nil, badKeyEncoding("%v", err)
	}

	switch {
	case p.keyType.IsRSA():
		return &rsa.PublicKey{
			N: new(big.Int).SetBytes(children[0].Value),
			E: int(new(big.Int).SetBytes(children[1].Value).Int64()),
		}, nil
	case p.keyType.IsECC():
		point := children[0].Value
		size := (len(point) - 1) / 2
		return &ecdsa.PublicKey{
			Curve: p.keyType.Curve(),
			X:     new(big.Int).SetBytes(point[1 : 1+size]),
			Y:     new(big.Int).SetBytes(point[1+size:]),
		}, nil
	case p.keyType == KeyTypeEd25519:
		return ed25519.PublicKey(bytes.Clone(children[0].Value)), nil
	case p.keyType == KeyTypeX25519:
		return ecdh.X25519().NewPublicKey(children[0].Value)
	default:
		return nil, invalidArgument("%s is not an asymmetric key type", p.keyType)
	}
}

// PrivateKey is a private key in its PIV import encoding.
type PrivateKey struct {
	keyType KeyType
	encoded []byte
}

// DecodePrivateKey parses the private key objects of a key of type kt.
func DecodePrivateKey(data []byte, kt KeyType) (*PrivateKey, error) {
	info, ok := kt.info()
	if !ok || !kt.IsAsymmetric() {
		return nil, invalidArgument("%s is not an asymmetric key type", kt)
	}

	objs, err := tlv.Decode(data)
	if err != nil {
		return nil, badKeyEncoding("%v", err)
	}

	if kt.IsRSA() {
		if len(objs) != 5 {
			return nil, badKeyEncoding("RSA private key must hold 5 objects, got %d", len(objs))
		}
		for i, o := range objs {
			if o.Tag != uint32(tagRSAPrime1+i) {
				return nil, badKeyEncoding("RSA private key object %d has tag %X, want %02X", i, o.Tag, tagRSAPrime1+i)
			}
			if len(o.Value) != info.size/2 {
				return nil, badKeyEncoding("RSA component %02X must be %d bytes, got %d", o.Tag, info.size/2, len(o.Value))
			}
		}
	} else {
		if len(objs) != 1 || objs[0].Tag != info.privateTag {
			return nil, badKeyEncoding("%s private key must hold exactly one %02X object", kt, info.privateTag)
		}
		if len(objs[0].Value) != info.size {
			return nil, badKeyEncoding("%s private key must be %d bytes, got %d", kt, info.size, len(objs[0].Value))
		}
	}

	return &PrivateKey{keyType: kt, encoded: bytes.Clone(data)}, nil
}

// NewPrivateKey encodes a crypto private key. Supported types are *rsa.PrivateKey
// (two primes), *ecdsa.PrivateKey, ed25519.PrivateKey and *ecdh.PrivateKey.
func NewPrivateKey(priv crypto.PrivateKey) (*PrivateKey, error) {
	switch k := priv.(type) {
	case *rsa.PrivateKey:
		return newRSAPrivateKey(k)
	case *ecdsa.PrivateKey:
		ek, err := k.ECDH()
		if err != nil {
			return nil, invalidArgument("unsupported ECDSA key: %v", err)
		}
		return NewPrivateKey(ek)
	case *ecdh.PrivateKey:
		kt, err := ecdhKeyType(k.Curve())
		if err != nil {
			return nil, err
		}
		info, _ := kt.info()
		return &PrivateKey{keyType: kt, encoded: tlv.New(info.privateTag, k.Bytes()).Bytes()}, nil
	case ed25519.PrivateKey:
		if len(k) != ed25519.PrivateKeySize {
			return nil, invalidArgument("Ed25519 private key must be %d bytes", ed25519.PrivateKeySize)
		}
		info, _ := KeyTypeEd25519.info()
		return &PrivateKey{keyType: KeyTypeEd25519, encoded: tlv.New(info.privateTag, k.Seed()).Bytes()}, nil
	default:
		return nil, invalidArgument("unsupported private key type %T", priv)
	}
}

func newRSAPrivateKey(k *rsa.PrivateKey) (*PrivateKey, error) {
	kt, err := rsaKeyType(k.N)
	if err != nil {
		return nil, err
	}
	if len(k.Primes) != 2 {
		return nil, invalidArgument("multi-prime RSA keys are not supported")
	}
	k.Precompute()

	half := k.N.BitLen() / 16
	values := []*big.Int{k.Primes[0], k.Primes[1], k.Precomputed.Dp, k.Precomputed.Dq, k.Precomputed.Qinv}

	objs := make([]tlv.Object, 0, len(values))
	for i, v := range values {
		if (v.BitLen()+7)/8 > half {
			return nil, invalidArgument("RSA component %d exceeds %d bytes", i+1, half)
		}
		objs = append(objs, tlv.New(uint32(tagRSAPrime1+i), v.FillBytes(make([]byte, half))))
	}

	encoded := tlv.Encode(objs...)
	for _, o := range objs {
		clear(o.Value)
	}
	return &PrivateKey{keyType: kt, encoded: encoded}, nil
}

// KeyType returns the key type of the key.
func (p *PrivateKey) KeyType() KeyType { return p.keyType }

// Encode returns a copy of the private key objects.
func (p *PrivateKey) Encode() []byte { return bytes.Clone(p.encoded) }

// Clear wipes the key material. The key is unusable afterwards.
func (p *PrivateKey) Clear() {
	clear(p.encoded)
	p.encoded = nil
}

// CryptoPrivateKey converts the key to *rsa.PrivateKey, *ecdsa.PrivateKey,
// ed25519.PrivateKey or *ecdh.PrivateKey (X25519).
func (p *PrivateKey) CryptoPrivateKey() (crypto.PrivateKey, error) {
	objs, err := tlv.Decode(p.encoded)
	if err != nil || len(objs) == 0 {
		return nil, badKeyEncoding("private key is empty or cleared")
	}

	switch {
	case p.keyType.IsRSA():
		return rsaFromCRT(objs)
	case p.keyType.IsECC():
		ek, err := ecdhCurve(p.keyType).NewPrivateKey(objs[0].Value)
		if err != nil {
			return nil, badKeyEncoding("invalid %s scalar: %v", p.keyType, err)
		}
		pub := ek.PublicKey().Bytes()
		size := (len(pub) - 1) / 2
		return &ecdsa.PrivateKey{
			PublicKey: ecdsa.PublicKey{
				Curve: p.keyType.Curve(),
				X:     new(big.Int).SetBytes(pub[1 : 1+size]),
				Y:     new(big.Int).SetBytes(pub[1+size:]),
			},
			D: new(big.Int).SetBytes(objs[0].Value),
		}, nil
	case p.keyType == KeyTypeEd25519:
		return ed25519.NewKeyFromSeed(objs[0].Value), nil
	case p.keyType == KeyTypeX25519:
		return ecdh.X25519().NewPrivateKey(objs[0].Value)
	default:
		return nil, invalidArgument("%s is not an asymmetric key type", p.keyType)
	}
}

// Public derives the public key.
func (p *PrivateKey) Public() (*PublicKey, error) {
	if p.keyType == KeyTypeX25519 {
		info, _ := p.keyType.info()
		objs, err := tlv.Decode(p.encoded)
		if err != nil || len(objs) != 1 {
			return nil, badKeyEncoding("private key is empty or cleared")
		}
		point, err := curve25519.X25519(objs[0].Value, curve25519.Basepoint)
		if err != nil {
			return nil, badKeyEncoding("invalid X25519 scalar: %v", err)
		}
		inner := tlv.New(tagPoint, point[:info.point])
		return &PublicKey{keyType: p.keyType, encoded: tlv.NewConstructed(tagPublicKey, inner).Bytes()}, nil
	}

	priv, err := p.CryptoPrivateKey()
	if err != nil {
		return nil, err
	}
	signer, ok := priv.(crypto.Signer)
	if !ok {
		return nil, invalidArgument("%T has no public key", priv)
	}
	return NewPublicKey(signer.Public())
}

// rsaFromCRT rebuilds a full RSA key from its CRT components. The public exponent is
// recovered as DP^-1 mod (P-1).
func rsaFromCRT(objs []tlv.Object) (*rsa.PrivateKey, error) {
	p := new(big.Int).SetBytes(objs[0].Value)
	q := new(big.Int).SetBytes(objs[1].Value)
	dp := new(big.Int).SetBytes(objs[2].Value)

	one := big.NewInt(1)
	pMinus1 := new(big.Int).Sub(p, one)
	qMinus1 := new(big.Int).Sub(q, one)

	e := new(big.Int).ModInverse(dp, pMinus1)
	if e == nil || !e.IsInt64() {
		return nil, badKeyEncoding("cannot recover the public exponent")
	}

	phi := new(big.Int).Mul(pMinus1, qMinus1)
	d := new(big.Int).ModInverse(e, phi)
	if d == nil {
		return nil, badKeyEncoding("cannot recover the private exponent")
	}

	key := &rsa.PrivateKey{
		PublicKey: rsa.PublicKey{N: new(big.Int).Mul(p, q), E: int(e.Int64())},
		D:         d,
		Primes:    []*big.Int{p, q},
	}
	key.Precompute()
	if err := key.Validate(); err != nil {
		return nil, badKeyEncoding("inconsistent RSA components: %v", err)
	}
	return key, nil
}

func rsaKeyType(n *big.Int) (KeyType, error) {
	switch n.BitLen() {
	case 1024:
		return KeyTypeRSA1024, nil
	case 2048:
		return KeyTypeRSA2048, nil
	case 3072:
		return KeyTypeRSA3072, nil
	case 4096:
		return KeyTypeRSA4096, nil
	default:
		return KeyTypeNone, invalidArgument("unsupported RSA modulus size %d", n.BitLen())
	}
}

func ecdhKeyType(c ecdh.Curve) (KeyType, error) {
	switch c {
	case ecdh.P256():
		return KeyTypeECCP256, nil
	case ecdh.P384():
		return KeyTypeECCP384, nil
	case ecdh.X25519():
		return KeyTypeX25519, nil
	default:
		return KeyTypeNone, invalidArgument("unsupported curve %v", c)
	}
}

func ecdhCurve(kt KeyType) ecdh.Curve {
	if kt == KeyTypeECCP384 {
		return ecdh.P384()
	}
	return ecdh.P256()
}
