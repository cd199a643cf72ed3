package iso7816

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// CLIENT & PROTOCOL LOGIC:
// The Client acts as a high-level driver over the physical connection.
// It implements the automatic handling of ISO 7816-3/4 transport behaviors that are
// often exposed to the application layer:
//
// 1. "61 XX" (Response Available):
//    The card indicates that XX bytes are waiting. The client automatically generates
//    and sends a GET RESPONSE command to retrieve them, until the card answers 9000.
//
// 2. "6C XX" (Wrong Length):
//    The card indicates that the expected length (Le) was incorrect and suggests XX.
//    The client automatically re-sends the original command with Le = XX.
//
// 3. Command chaining (CLA bit 5):
//    A data field longer than MaxShortLc is split into fragments of MaxShortLc bytes.
//    Every fragment but the last is sent with the chaining bit set. The exchange stops at
//    the first fragment the card does not acknowledge with 9000.
//
// The Send() method returns a Trace, which is a log of all atomic transactions
// occurred to fulfill the logical request.

// Transmitter abstracts the physical card connection.
type Transmitter interface {
	Transmit(cmd []byte) ([]byte, error)
}

// Client manages the high-level communication with the card.
type Client struct {
	Card Transmitter
	Log  logrus.FieldLogger

	// ExtendedLength disables command chaining and encodes long data fields
	// with extended Lc instead.
	ExtendedLength bool
}

// NewClient creates a new Client instance logging through the logrus standard logger.
func NewClient(card Transmitter) *Client {
	return &Client{Card: card, Log: logrus.StandardLogger()}
}

// WithLogger replaces the logger used for exchange traces.
func (c *Client) WithLogger(log logrus.FieldLogger) *Client {
	c.Log = log
	return c
}

// Send transmits a command and handles protocol logic (chaining, 61xx, 6Cxx).
func (c *Client) Send(cmd *CommandAPDU) (Trace, error) {
	if len(cmd.Data) > MaxShortLc && !c.ExtendedLength {
		return c.sendChained(cmd)
	}
	return c.exchange(cmd)
}

func (c *Client) sendChained(cmd *CommandAPDU) (Trace, error) {
	var trace Trace
	data := cmd.Data

	for len(data) > MaxShortLc {
		fragment := *cmd
		fragment.Class.IsChained = true
		fragment.Data = data[:MaxShortLc]
		fragment.Ne = 0

		subTrace, err := c.exchange(&fragment)
		trace = append(trace, subTrace...)
		if err != nil {
			return trace, err
		}

		if sw := trace.Last().Response.Status; sw != SW_NO_ERROR {
			c.logger().WithField("sw", fmt.Sprintf("%04X", uint16(sw))).Debug("chaining aborted by card")
			return trace, nil
		}
		data = data[MaxShortLc:]
	}

	final := *cmd
	final.Class.IsChained = false
	final.Data = data

	subTrace, err := c.exchange(&final)
	trace = append(trace, subTrace...)
	return trace, err
}

func (c *Client) exchange(cmd *CommandAPDU) (Trace, error) {
	rawCmd, err := cmd.Bytes()
	if err != nil {
		return nil, fmt.Errorf("encoding error: %w", err)
	}

	rawResp, err := c.Card.Transmit(rawCmd)
	if err != nil {
		return nil, fmt.Errorf("transmission error: %w", err)
	}

	resp, err := ParseResponseAPDU(rawResp)
	if err != nil {
		return nil, err
	}

	c.logger().WithFields(logrus.Fields{
		"cla": fmt.Sprintf("%02X", rawCmd[0]),
		"ins": fmt.Sprintf("%02X", byte(cmd.Instruction.Raw)),
		"p1":  fmt.Sprintf("%02X", cmd.P1),
		"p2":  fmt.Sprintf("%02X", cmd.P2),
		"nc":  len(cmd.Data),
		"ne":  cmd.Ne,
		"nr":  len(resp.Data),
		"sw":  fmt.Sprintf("%04X", uint16(resp.Status)),
	}).Debug("apdu exchange")

	trace := Trace{{Command: cmd, Response: resp}}

	sw1 := resp.Status.SW1()
	sw2 := resp.Status.SW2()

	// Case 61XX: More data available -> Issue GET RESPONSE
	if sw1 == 0x61 {
		// ISO 7816-4: GET RESPONSE must use the same logical channel as the original command.
		respCls := cmd.Class
		respCls.IsChained = false

		ins, _ := NewInstruction(INS_GET_RESPONSE)

		// Le = sw2 (number of bytes available, 00 meaning 256 or more)
		ne := int(sw2)
		if ne == 0 {
			ne = MaxShortLe
		}
		getRespCmd := NewCommandAPDU(respCls, ins, 0x00, 0x00, nil, ne)

		subTrace, err := c.exchange(getRespCmd)
		trace = append(trace, subTrace...)
		return trace, err
	}

	// Case 6CXX: Wrong Length -> Re-issue original command with correct Le
	if sw1 == 0x6C {
		// Clone command to update Le without mutating the original pointer
		newCmd := *cmd
		newCmd.Ne = int(sw2)
		if newCmd.Ne == 0 {
			newCmd.Ne = MaxShortLe
		}

		subTrace, err := c.exchange(&newCmd)
		trace = append(trace, subTrace...)
		return trace, err
	}

	return trace, nil
}

func (c *Client) logger() logrus.FieldLogger {
	if c.Log == nil {
		return logrus.StandardLogger()
	}
	return c.Log
}
