package iso7816

import (
	"fmt"
	"strings"
)

// CLA byte layout (ISO/IEC 7816-4, 5.4.1):
//
//	first interindustry   000x SSCC  x chaining, SS secure messaging, CC channel 0-3
//	further interindustry 01Sx CCCC  x chaining, S secure messaging, CCCC channel 4-19
//	proprietary           1xxx xxxx  passed through untouched
//
// PIV commands use channel 0 without secure messaging, so the chaining bit is
// the only one the client flips.
const (
	claProprietary = 0x80
	claFurther     = 0x40
	claFurtherSM   = 0x20
	claChaining    = 0x10
	claFirstSM     = 0x0C
	claFirstCh     = 0x03
	claFurtherCh   = 0x0F

	maxChannel = 19
)

// SecureMessaging is the secure messaging indication carried by the CLA byte.
type SecureMessaging int

const (
	SMNone SecureMessaging = iota
	SMProprietary
	SMHeaderNoProc
	SMHeaderAuth
)

var smNames = [...]string{
	SMNone:         "None",
	SMProprietary:  "Proprietary",
	SMHeaderNoProc: "ISO (Header not processed)",
	SMHeaderAuth:   "ISO (Header authenticated)",
}

func (s SecureMessaging) String() string {
	if s < 0 || int(s) >= len(smNames) {
		return fmt.Sprintf("SecureMessaging(%d)", int(s))
	}
	return smNames[s]
}

// Class is a decoded CLA byte. The zero value is CLA 00.
type Class struct {
	Raw             byte
	IsProprietary   bool
	IsChained       bool
	SecureMessaging SecureMessaging
	Channel         uint8
}

// NewClass decodes a raw CLA byte. 0xFF is reserved for PPS and rejected.
func NewClass(cla byte) (Class, error) {
	if cla == 0xFF {
		return Class{}, fmt.Errorf("invalid CLA value: 0xFF is reserved")
	}

	c := Class{Raw: cla}
	if cla&claProprietary != 0 {
		c.IsProprietary = true
		return c, nil
	}

	c.IsChained = cla&claChaining != 0
	if cla&claFurther == 0 {
		c.SecureMessaging = SecureMessaging((cla & claFirstSM) >> 2)
		c.Channel = cla & claFirstCh
		return c, nil
	}

	if cla&claFurtherSM != 0 {
		c.SecureMessaging = SMHeaderNoProc
	}
	c.Channel = cla&claFurtherCh + 4
	return c, nil
}

// NewInterindustryClass builds an interindustry class. Channels 4 to 19 use the
// further interindustry coding, which can only signal SMNone or SMHeaderNoProc.
func NewInterindustryClass(isChained bool, sm SecureMessaging, channel uint8) (Class, error) {
	if channel > maxChannel {
		return Class{}, fmt.Errorf("channel %d out of range (max %d)", channel, maxChannel)
	}
	if channel >= 4 && sm != SMNone && sm != SMHeaderNoProc {
		return Class{}, fmt.Errorf("secure messaging %s cannot be coded on channel %d", sm, channel)
	}

	c := Class{IsChained: isChained, SecureMessaging: sm, Channel: channel}
	raw, err := c.Encode()
	if err != nil {
		return Class{}, err
	}
	c.Raw = raw
	return c, nil
}

// Encode returns the CLA byte. Proprietary classes return Raw unchanged.
func (c *Class) Encode() (byte, error) {
	if c.IsProprietary {
		return c.Raw, nil
	}
	if c.Channel > maxChannel {
		return 0, fmt.Errorf("channel %d out of range (max %d)", c.Channel, maxChannel)
	}

	var cla byte
	if c.IsChained {
		cla |= claChaining
	}

	if c.Channel < 4 {
		return cla | byte(c.SecureMessaging)<<2&claFirstSM | c.Channel, nil
	}

	cla |= claFurther | (c.Channel - 4)
	if c.SecureMessaging != SMNone {
		cla |= claFurtherSM
	}
	return cla, nil
}

func (c Class) String() string {
	if c.IsProprietary {
		return fmt.Sprintf("Proprietary (0x%02X)", c.Raw)
	}

	parts := []string{fmt.Sprintf("channel %d", c.Channel)}
	if c.SecureMessaging != SMNone {
		parts = append(parts, "SM "+c.SecureMessaging.String())
	}
	if c.IsChained {
		parts = append(parts, "chained")
	}
	return "Interindustry (" + strings.Join(parts, ", ") + ")"
}
