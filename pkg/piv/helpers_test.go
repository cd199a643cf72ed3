package piv

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/gregLibert/pivcard/pkg/iso7816"
	"github.com/gregLibert/pivcard/pkg/tlv"
)

// scriptedCard replays canned responses and records every command it receives.
type scriptedCard struct {
	responses [][]byte
	sent      [][]byte
}

func (s *scriptedCard) Transmit(cmd []byte) ([]byte, error) {
	s.sent = append(s.sent, append([]byte(nil), cmd...))
	if len(s.responses) == 0 {
		return nil, fmt.Errorf("unexpected command %X", cmd)
	}
	resp := s.responses[0]
	s.responses = s.responses[1:]
	return resp, nil
}

func newTestClient(responses ...string) (*iso7816.Client, *scriptedCard) {
	card := &scriptedCard{}
	for _, r := range responses {
		card.responses = append(card.responses, tlv.Hex(r))
	}
	log := logrus.New()
	log.SetOutput(io.Discard)
	return iso7816.NewClient(card).WithLogger(log), card
}

// encode returns the hex encoding of the APDU built by cmd.
func encode(t *testing.T, cmd apduBuilder) string {
	t.Helper()
	apdu, err := cmd.CommandAPDU()
	if err != nil {
		t.Fatalf("CommandAPDU failed: %v", err)
	}
	raw, err := apdu.Bytes()
	if err != nil {
		t.Fatalf("Bytes failed: %v", err)
	}
	return fmt.Sprintf("%X", raw)
}

// reply parses a hex response APDU (data followed by SW1 SW2).
func reply(t *testing.T, parts ...string) *iso7816.ResponseAPDU {
	t.Helper()
	r, err := iso7816.ParseResponseAPDU(tlv.Hex(parts...))
	if err != nil {
		t.Fatalf("ParseResponseAPDU failed: %v", err)
	}
	return r
}

func hexOf(parts ...string) string {
	return strings.ToUpper(strings.Join(strings.Fields(strings.Join(parts, " ")), ""))
}
