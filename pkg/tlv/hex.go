package tlv

import (
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"
)

// Hex decodes the concatenation of parts into bytes, ignoring whitespace and ':'
// separators so fixtures can be written as "5C 03 5F:C1:05". It panics on invalid
// input and is meant for tests and constant tables.
func Hex(parts ...string) []byte {
	clean := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == ':' {
			return -1
		}
		return r
	}, strings.Join(parts, ""))

	data, err := hex.DecodeString(clean)
	if err != nil {
		panic(fmt.Sprintf("tlv.Hex(%q): %v", clean, err))
	}
	return data
}
