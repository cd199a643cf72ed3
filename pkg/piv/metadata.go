package piv

import (
	"fmt"
	"strings"

	"github.com/moov-io/bertlv"

	"github.com/gregLibert/pivcard/pkg/iso7816"
	"github.com/gregLibert/pivcard/pkg/tlv"
)

// GetMetadataCommand reads the metadata of a slot (YubiKey INS F7, firmware 5.3+).
type GetMetadataCommand struct {
	slot Slot
}

// NewGetMetadataCommand creates the command. Accepted slots are PIN, PUK,
// management, attestation and every asymmetric key slot.
func NewGetMetadataCommand(slot Slot) (*GetMetadataCommand, error) {
	switch {
	case slot == SlotPIN, slot == SlotPUK, slot == SlotManagement, slot == SlotAttestation:
	case slot.IsAsymmetric():
	default:
		return nil, invalidArgument("slot %02X has no metadata", byte(slot))
	}
	return &GetMetadataCommand{slot: slot}, nil
}

func (c *GetMetadataCommand) CommandAPDU() (*iso7816.CommandAPDU, error) {
	if c == nil || c.slot == 0 {
		return nil, uninitialized("GetMetadataCommand")
	}
	return newAPDU(insGetMetadata, 0x00, byte(c.slot), nil, expectData), nil
}

func (c *GetMetadataCommand) NewResponse(r *iso7816.ResponseAPDU) (*GetMetadataResponse, error) {
	base, err := newResponse(r)
	if err != nil {
		return nil, err
	}
	return &GetMetadataResponse{Response: base, slot: c.slot}, nil
}

// GetMetadataResponse carries the slot metadata.
type GetMetadataResponse struct {
	Response
	slot Slot
}

// MetadataTemplate is the raw metadata reply.
type MetadataTemplate struct {
	Algorithm uint8        `tlv:"01"`
	Policy    []byte       `tlv:"02"`
	Origin    uint8        `tlv:"03"`
	PublicKey []byte       `tlv:"04"`
	Default   uint8        `tlv:"05"`
	Retries   []byte       `tlv:"06"`
	Unknown   []bertlv.TLV `tlv:",unknown"`
}

// KeyOrigin tells whether a key was generated on the card or imported.
type KeyOrigin byte

const (
	OriginUnknown   KeyOrigin = 0x00
	OriginGenerated KeyOrigin = 0x01
	OriginImported  KeyOrigin = 0x02
)

func (o KeyOrigin) String() string {
	switch o {
	case OriginGenerated:
		return "Generated"
	case OriginImported:
		return "Imported"
	default:
		return "Unknown"
	}
}

// Metadata is the decoded metadata of a slot. Fields not reported by the card
// keep their zero value.
type Metadata struct {
	Slot        Slot
	KeyType     KeyType
	PinPolicy   PinPolicy
	TouchPolicy TouchPolicy
	Origin      KeyOrigin
	PublicKey   *PublicKey
	IsDefault   bool

	// PIN and PUK only.
	TotalRetries     int
	RetriesRemaining int

	Raw MetadataTemplate
}

// Metadata decodes the reply.
func (r *GetMetadataResponse) Metadata() (*Metadata, error) {
	data, err := r.payload()
	if err != nil {
		return nil, err
	}

	raw := MetadataTemplate{}
	if err := tlv.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	kt, err := KeyTypeFromAlgorithm(Algorithm(raw.Algorithm))
	if err != nil {
		return nil, malformed("metadata algorithm %02X is unknown", raw.Algorithm)
	}
	if err := requireKeyFor(r.slot, kt); err != nil {
		return nil, malformed("metadata of slot %s reports key type %s", r.slot, kt)
	}

	md := &Metadata{
		Slot:      r.slot,
		KeyType:   kt,
		Origin:    KeyOrigin(raw.Origin),
		IsDefault: raw.Default == 0x01,
		Raw:       raw,
	}

	if raw.Policy != nil {
		if len(raw.Policy) != 2 {
			return nil, malformed("policy is %d bytes, want 2", len(raw.Policy))
		}
		md.PinPolicy = PinPolicy(raw.Policy[0])
		md.TouchPolicy = TouchPolicy(raw.Policy[1])
	}

	if raw.Retries != nil {
		if len(raw.Retries) != 2 {
			return nil, malformed("retries are %d bytes, want 2", len(raw.Retries))
		}
		md.TotalRetries = int(raw.Retries[0])
		md.RetriesRemaining = int(raw.Retries[1])
	}

	if raw.PublicKey != nil {
		if !kt.IsAsymmetric() {
			return nil, malformed("%s key carries a public key", kt)
		}
		pub, err := DecodePublicKey(tlv.New(tagPublicKey, raw.PublicKey).Bytes(), kt)
		if err != nil {
			return nil, err
		}
		md.PublicKey = pub
	}

	return md, nil
}

// Describe returns a report of the metadata.
func (m *Metadata) Describe() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "=== METADATA %s (%02X) ===\n", m.Slot, byte(m.Slot))
	fmt.Fprintf(&sb, "    - Key Type: %s\n", m.KeyType)
	if m.Raw.Policy != nil {
		fmt.Fprintf(&sb, "    - Policy:   PIN %s, Touch %s\n", m.PinPolicy, m.TouchPolicy)
	}
	if m.Raw.Origin != 0 {
		fmt.Fprintf(&sb, "    - Origin:   %s\n", m.Origin)
	}
	if m.Raw.Retries != nil {
		fmt.Fprintf(&sb, "    - Retries:  %d of %d\n", m.RetriesRemaining, m.TotalRetries)
	}
	fmt.Fprintf(&sb, "    - Default:  %t", m.IsDefault)
	tlv.WriteStructFields(&sb, "Raw", &m.Raw)
	return sb.String()
}
