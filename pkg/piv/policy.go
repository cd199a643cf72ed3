package piv

import (
	"fmt"

	"github.com/gregLibert/pivcard/pkg/tlv"
)

// PinPolicy controls when the PIN must be verified before a key is used.
// None and Default leave the choice to the card and are never serialized.
type PinPolicy byte

const (
	PinPolicyNone        PinPolicy = 0x00
	PinPolicyNever       PinPolicy = 0x01
	PinPolicyOnce        PinPolicy = 0x02
	PinPolicyAlways      PinPolicy = 0x03
	PinPolicyMatchOnce   PinPolicy = 0x04
	PinPolicyMatchAlways PinPolicy = 0x05
	PinPolicyDefault     PinPolicy = 0xFF
)

// TouchPolicy controls whether a touch of the device is required before a key is used.
// None and Default leave the choice to the card and are never serialized.
type TouchPolicy byte

const (
	TouchPolicyNone    TouchPolicy = 0x00
	TouchPolicyNever   TouchPolicy = 0x01
	TouchPolicyAlways  TouchPolicy = 0x02
	TouchPolicyCached  TouchPolicy = 0x03
	TouchPolicyDefault TouchPolicy = 0xFF
)

const (
	tagPinPolicy   = 0xAA
	tagTouchPolicy = 0xAB
)

func (p PinPolicy) String() string {
	switch p {
	case PinPolicyNone:
		return "None"
	case PinPolicyNever:
		return "Never"
	case PinPolicyOnce:
		return "Once"
	case PinPolicyAlways:
		return "Always"
	case PinPolicyMatchOnce:
		return "MatchOnce"
	case PinPolicyMatchAlways:
		return "MatchAlways"
	case PinPolicyDefault:
		return "Default"
	default:
		return fmt.Sprintf("PinPolicy(%02X)", byte(p))
	}
}

func (p PinPolicy) valid() bool {
	return p <= PinPolicyMatchAlways || p == PinPolicyDefault
}

func (t TouchPolicy) String() string {
	switch t {
	case TouchPolicyNone:
		return "None"
	case TouchPolicyNever:
		return "Never"
	case TouchPolicyAlways:
		return "Always"
	case TouchPolicyCached:
		return "Cached"
	case TouchPolicyDefault:
		return "Default"
	default:
		return fmt.Sprintf("TouchPolicy(%02X)", byte(t))
	}
}

func (t TouchPolicy) valid() bool {
	return t <= TouchPolicyCached || t == TouchPolicyDefault
}

// policyObjects returns the policy TLVs in pin then touch order, omitting defaults.
func policyObjects(pin PinPolicy, touch TouchPolicy) ([]tlv.Object, error) {
	if !pin.valid() {
		return nil, invalidArgument("unknown pin policy %02X", byte(pin))
	}
	if !touch.valid() {
		return nil, invalidArgument("unknown touch policy %02X", byte(touch))
	}

	var objs []tlv.Object
	if pin != PinPolicyNone && pin != PinPolicyDefault {
		objs = append(objs, tlv.New(tagPinPolicy, []byte{byte(pin)}))
	}
	if touch != TouchPolicyNone && touch != TouchPolicyDefault {
		objs = append(objs, tlv.New(tagTouchPolicy, []byte{byte(touch)}))
	}
	return objs, nil
}
