package piv

import (
	"fmt"
	"strings"

	"github.com/moov-io/bertlv"

	"github.com/gregLibert/pivcard/pkg/iso7816"
	"github.com/gregLibert/pivcard/pkg/tlv"
)

// AID is the truncated PIV application identifier used for selection.
var AID = []byte{0xA0, 0x00, 0x00, 0x03, 0x08}

const tagApplicationProperty = 0x61

// SelectApplicationCommand selects the PIV application.
type SelectApplicationCommand struct{}

// NewSelectApplicationCommand creates the SELECT command for the PIV AID.
func NewSelectApplicationCommand() SelectApplicationCommand {
	return SelectApplicationCommand{}
}

func (SelectApplicationCommand) CommandAPDU() (*iso7816.CommandAPDU, error) {
	return iso7816.SelectByAID(iso7816.Class{}, AID), nil
}

func (SelectApplicationCommand) NewResponse(r *iso7816.ResponseAPDU) (*SelectApplicationResponse, error) {
	base, err := newResponse(r)
	if err != nil {
		return nil, err
	}
	return &SelectApplicationResponse{Response: base}, nil
}

// SelectApplicationResponse carries the Application Property Template.
type SelectApplicationResponse struct {
	Response
}

// ApplicationPropertyTemplate is the '61' template returned on selection (SP 800-73-4 Part 2, 3.1.1).
type ApplicationPropertyTemplate struct {
	ApplicationID []byte       `tlv:"4F"`
	Authority     []byte       `tlv:"79"`
	Label         []byte       `tlv:"50" fmt:"ascii"`
	URL           []byte       `tlv:"5F50" fmt:"ascii"`
	Algorithms    []byte       `tlv:"AC"`
	Unknown       []bertlv.TLV `tlv:",unknown"`
}

// Properties parses the Application Property Template.
func (r *SelectApplicationResponse) Properties() (*ApplicationPropertyTemplate, error) {
	data, err := r.payload()
	if err != nil {
		return nil, err
	}

	outer, err := tlv.DecodeSingle(data, tagApplicationProperty)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	apt := &ApplicationPropertyTemplate{}
	if err := tlv.Unmarshal(outer.Value, apt); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return apt, nil
}

// Describe returns a field by field report of the template.
func (a *ApplicationPropertyTemplate) Describe() string {
	var sb strings.Builder
	sb.WriteString("=== APPLICATION PROPERTY TEMPLATE ===")
	tlv.WriteStructFields(&sb, "APT", a)
	return sb.String()
}
