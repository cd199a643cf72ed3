package tlv

import (
	"bytes"
	"errors"
	"fmt"
)

// BER-TLV WIRE CODEC (ISO/IEC 7816-4 Section 5.2):
//
// TAG FIELD:
//   - Single byte tags: bits 5-1 of the leading byte are NOT all set (e.g. '7C', '53').
//   - Multi-byte tags: bits 5-1 of the leading byte are all set ('1F' mask). Each subsequent
//     byte has bit 8 set except the last one (e.g. '7F49', '5FC105').
//
// LENGTH FIELD:
//   - Short form: one byte, 0x00 to 0x7F.
//   - Long form:  '81' + 1 byte, '82' + 2 bytes, '83' + 3 bytes.
//   - The indefinite form ('80') is not allowed in card data objects.
//
// Tags are carried as an integer holding the big-endian value of the tag bytes, so
// the PIV public key template is 0x7F49 and the CHUID object id is 0x5FC102.

// ErrMalformed is returned when a byte buffer is not a valid TLV encoding.
var ErrMalformed = errors.New("tlv: malformed encoding")

const (
	maxTagBytes    = 4
	maxLengthValue = 0xFFFFFF
)

// Object is a single tag-length-value data object. A constructed object holds the
// encoding of its children in Value; use Children to decode them.
type Object struct {
	Tag   uint32
	Value []byte
}

// New creates a primitive object. A nil value encodes as an empty object ('82 00').
func New(tag uint32, value []byte) Object {
	return Object{Tag: tag, Value: value}
}

// NewConstructed creates an object whose value is the concatenated encoding of children.
func NewConstructed(tag uint32, children ...Object) Object {
	return Object{Tag: tag, Value: Encode(children...)}
}

// Bytes encodes the object into its wire representation.
func (o Object) Bytes() []byte {
	buf := new(bytes.Buffer)
	o.writeTo(buf)
	return buf.Bytes()
}

func (o Object) writeTo(buf *bytes.Buffer) {
	buf.Write(EncodeTag(o.Tag))
	buf.Write(EncodeLength(len(o.Value)))
	buf.Write(o.Value)
}

// Children decodes the value of a constructed object. Any nested length running past
// the enclosing value is reported as ErrMalformed.
func (o Object) Children() ([]Object, error) {
	children, err := Decode(o.Value)
	if err != nil {
		return nil, fmt.Errorf("tag %X: %w", o.Tag, err)
	}
	return children, nil
}

// String returns a short description of the object.
func (o Object) String() string {
	return fmt.Sprintf("%X (%d bytes)", o.Tag, len(o.Value))
}

// Encode concatenates the encodings of the given objects.
func Encode(objs ...Object) []byte {
	buf := new(bytes.Buffer)
	for _, o := range objs {
		o.writeTo(buf)
	}
	return buf.Bytes()
}

// EncodeTag returns the minimal big-endian byte representation of a tag.
func EncodeTag(tag uint32) []byte {
	switch {
	case tag > 0xFFFFFF:
		return []byte{byte(tag >> 24), byte(tag >> 16), byte(tag >> 8), byte(tag)}
	case tag > 0xFFFF:
		return []byte{byte(tag >> 16), byte(tag >> 8), byte(tag)}
	case tag > 0xFF:
		return []byte{byte(tag >> 8), byte(tag)}
	default:
		return []byte{byte(tag)}
	}
}

// EncodeLength returns the BER length field for n.
func EncodeLength(n int) []byte {
	switch {
	case n < 0x80:
		return []byte{byte(n)}
	case n <= 0xFF:
		return []byte{0x81, byte(n)}
	case n <= 0xFFFF:
		return []byte{0x82, byte(n >> 8), byte(n)}
	default:
		return []byte{0x83, byte(n >> 16), byte(n >> 8), byte(n)}
	}
}

// Decode parses a sequence of sibling objects. Nested objects are not decoded.
func Decode(data []byte) ([]Object, error) {
	var objs []Object
	for len(data) > 0 {
		obj, rest, err := ReadObject(data)
		if err != nil {
			return nil, err
		}
		objs = append(objs, obj)
		data = rest
	}
	return objs, nil
}

// ReadObject parses the first object of data and returns the remaining bytes.
func ReadObject(data []byte) (Object, []byte, error) {
	tag, n, err := readTag(data)
	if err != nil {
		return Object{}, nil, err
	}
	data = data[n:]

	length, n, err := readLength(data)
	if err != nil {
		return Object{}, nil, fmt.Errorf("tag %X: %w", tag, err)
	}
	data = data[n:]

	if length > len(data) {
		return Object{}, nil, fmt.Errorf("%w: tag %X declares %d bytes, %d remaining", ErrMalformed, tag, length, len(data))
	}

	return Object{Tag: tag, Value: data[:length]}, data[length:], nil
}

func readTag(data []byte) (uint32, int, error) {
	if len(data) == 0 {
		return 0, 0, fmt.Errorf("%w: missing tag", ErrMalformed)
	}

	tag := uint32(data[0])
	if data[0]&0x1F != 0x1F {
		return tag, 1, nil
	}

	for i := 1; i < len(data); i++ {
		if i >= maxTagBytes {
			return 0, 0, fmt.Errorf("%w: tag longer than %d bytes", ErrMalformed, maxTagBytes)
		}
		tag = tag<<8 | uint32(data[i])
		if data[i]&0x80 == 0 {
			return tag, i + 1, nil
		}
	}
	return 0, 0, fmt.Errorf("%w: truncated tag", ErrMalformed)
}

func readLength(data []byte) (int, int, error) {
	if len(data) == 0 {
		return 0, 0, fmt.Errorf("%w: missing length", ErrMalformed)
	}

	first := data[0]
	if first < 0x80 {
		return int(first), 1, nil
	}

	count := int(first & 0x7F)
	if count == 0 || count > 3 {
		return 0, 0, fmt.Errorf("%w: unsupported length form %02X", ErrMalformed, first)
	}
	if len(data) < 1+count {
		return 0, 0, fmt.Errorf("%w: truncated length", ErrMalformed)
	}

	length := 0
	for _, b := range data[1 : 1+count] {
		length = length<<8 | int(b)
	}
	if length > maxLengthValue {
		return 0, 0, fmt.Errorf("%w: length %d too large", ErrMalformed, length)
	}
	return length, 1 + count, nil
}

// Find returns the first object carrying tag.
func Find(objs []Object, tag uint32) (Object, bool) {
	for _, o := range objs {
		if o.Tag == tag {
			return o, true
		}
	}
	return Object{}, false
}

// DecodeSingle parses data that must hold exactly one object with the expected tag.
func DecodeSingle(data []byte, tag uint32) (Object, error) {
	obj, rest, err := ReadObject(data)
	if err != nil {
		return Object{}, err
	}
	if obj.Tag != tag {
		return Object{}, fmt.Errorf("%w: expected tag %X, got %X", ErrMalformed, tag, obj.Tag)
	}
	if len(rest) != 0 {
		return Object{}, fmt.Errorf("%w: %d trailing bytes after tag %X", ErrMalformed, len(rest), tag)
	}
	return obj, nil
}
