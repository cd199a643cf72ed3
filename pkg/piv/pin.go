package piv

const (
	minPINLength = 6
	maxPINLength = 8
	pinPadding   = 0xFF
)

// padPIN copies a PIN or PUK into an 8 byte buffer right-padded with FF.
func padPIN(name string, pin []byte) ([]byte, error) {
	if len(pin) < minPINLength || len(pin) > maxPINLength {
		return nil, invalidArgument("%s must be %d to %d bytes, got %d", name, minPINLength, maxPINLength, len(pin))
	}

	buf := make([]byte, maxPINLength)
	n := copy(buf, pin)
	for i := n; i < maxPINLength; i++ {
		buf[i] = pinPadding
	}
	return buf, nil
}

// padPINPair concatenates two padded references, as CHANGE REFERENCE DATA and
// RESET RETRY COUNTER expect.
func padPINPair(firstName string, first []byte, secondName string, second []byte) ([]byte, error) {
	a, err := padPIN(firstName, first)
	if err != nil {
		return nil, err
	}
	defer clear(a)

	b, err := padPIN(secondName, second)
	if err != nil {
		return nil, err
	}
	defer clear(b)

	return append(append(make([]byte, 0, 2*maxPINLength), a...), b...), nil
}
