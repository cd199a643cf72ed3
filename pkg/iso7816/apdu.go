package iso7816

import (
	"bytes"
	"fmt"
)

// APDU (Application Protocol Data Unit) encodings according to ISO/IEC 7816-3 and 7816-4.
//
// COMMAND APDU (C-APDU):
//
//	CLA | INS | P1 | P2 | [Lc | Data] | [Le]
//
//   - Lc is present only when the data field is not empty.
//   - Le is present only when a response is expected (Ne > 0).
//
// ENCODING CASES (ISO 7816-3):
// - Case 1: Header only.
// - Case 2: Header + Le.
// - Case 3: Header + Lc + Data.
// - Case 4: Header + Lc + Data + Le.
//
// LENGTH MODES:
//   - Short: Lc/Le on 1 byte. Le '00' stands for 256.
//   - Extended: triggered when Nc > 255 or Ne > 256. PIV payloads larger than 255 bytes
//     are sent with command chaining by the Client instead, so they stay in short form.
//
// RESPONSE APDU (R-APDU):
//
//	[Data] | SW1 | SW2

// APDU Limits according to ISO 7816-3.
const (
	// MaxShortLc is the maximum data length (Nc) encodable in Short Length mode.
	MaxShortLc = 255

	// MaxShortLe is the maximum expected response length (Ne) in Short Length mode ('00').
	MaxShortLe = 256

	// MaxExtendedLc is the limit for Lc in Extended mode (16-bit unsigned).
	MaxExtendedLc = 65535

	// MaxExtendedLe is the maximum Ne in Extended mode ('0000').
	MaxExtendedLe = 65536
)

// CommandAPDU represents a command sent to the card.
type CommandAPDU struct {
	Class       Class
	Instruction Instruction
	P1, P2      byte
	Data        []byte
	Ne          int // Expected response length (0 means none)
}

// NewCommandAPDU creates a basic command.
func NewCommandAPDU(cla Class, ins Instruction, p1, p2 byte, data []byte, ne int) *CommandAPDU {
	return &CommandAPDU{
		Class:       cla,
		Instruction: ins,
		P1:          p1,
		P2:          p2,
		Data:        data,
		Ne:          ne,
	}
}

// Bytes encodes the CommandAPDU into its byte representation (C-APDU).
func (c *CommandAPDU) Bytes() ([]byte, error) {
	nc := len(c.Data)
	ne := c.Ne

	if nc > MaxExtendedLc {
		return nil, fmt.Errorf("data field too long: %d bytes", nc)
	}
	if ne < 0 || ne > MaxExtendedLe {
		return nil, fmt.Errorf("invalid expected length: %d", ne)
	}

	class, err := c.Class.Encode()
	if err != nil {
		return nil, fmt.Errorf("failed to encode Class: %w", err)
	}

	buf := new(bytes.Buffer)
	buf.Write([]byte{class, byte(c.Instruction.Raw), c.P1, c.P2})

	extended := nc > MaxShortLc || ne > MaxShortLe

	if nc > 0 {
		if extended {
			buf.Write([]byte{0x00, byte(nc >> 8), byte(nc)})
		} else {
			buf.WriteByte(byte(nc))
		}
		buf.Write(c.Data)
	}

	if ne > 0 {
		switch {
		case !extended:
			// 256 wraps to 0x00
			buf.WriteByte(byte(ne))
		case nc == 0:
			// Case 2 Extended: a leading 00 distinguishes Le from Lc.
			buf.Write([]byte{0x00, byte(ne >> 8), byte(ne)})
		default:
			buf.Write([]byte{byte(ne >> 8), byte(ne)})
		}
	}

	return buf.Bytes(), nil
}

// Header returns the four header bytes, using the class exactly as configured.
func (c *CommandAPDU) Header() [4]byte {
	cla, _ := c.Class.Encode()
	return [4]byte{cla, byte(c.Instruction.Raw), c.P1, c.P2}
}

// Clear overwrites the data field. Used for commands carrying PINs or key material.
func (c *CommandAPDU) Clear() {
	clear(c.Data)
}

// String returns a readable representation of the command meta-data.
// The data field is never printed.
func (c *CommandAPDU) String() string {
	return fmt.Sprintf("%s | P1: %02X, P2: %02X | Lc: %d | Le: %d",
		c.Instruction.Verbose(), c.P1, c.P2, len(c.Data), c.Ne)
}

// ResponseAPDU represents the reply from the card (R-APDU).
type ResponseAPDU struct {
	Data   []byte
	Status StatusWord
}

// NewResponseAPDU creates a response from its parts.
func NewResponseAPDU(data []byte, sw StatusWord) *ResponseAPDU {
	return &ResponseAPDU{Data: data, Status: sw}
}

// ParseResponseAPDU parses raw bytes received from the card into a ResponseAPDU.
// The input must contain at least 2 bytes (SW1, SW2).
func ParseResponseAPDU(raw []byte) (*ResponseAPDU, error) {
	if len(raw) < 2 {
		return nil, fmt.Errorf("response too short: length %d", len(raw))
	}

	indexSW1 := len(raw) - 2
	return &ResponseAPDU{
		Data:   raw[:indexSW1],
		Status: NewStatusWord(raw[indexSW1], raw[indexSW1+1]),
	}, nil
}

// String returns a readable representation of the response.
func (r *ResponseAPDU) String() string {
	return fmt.Sprintf("Data (%d bytes) | Status: %s", len(r.Data), r.Status.Verbose())
}
