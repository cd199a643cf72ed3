package piv

import (
	"bytes"
	"compress/gzip"
	"crypto/x509"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/moov-io/bertlv"

	"github.com/gregLibert/pivcard/pkg/iso7816"
	"github.com/gregLibert/pivcard/pkg/tlv"
)

// DATA OBJECTS (SP 800-73-4 Part 1, Table 3):
// GET DATA and PUT DATA address objects through a tag list '5C'. Objects are
// stored inside a '53' container, except Discovery ('7E') and the Biometric
// Group Template ('7F61') which the card returns under their own tag.
//
//	GET DATA: 00 CB 3F FF | 5C len tag
//	PUT DATA: 00 DB 3F FF | 5C len tag 53 len data

const (
	tagTagList   = 0x5C
	tagContainer = 0x53

	tagCertificate     = 0x70
	tagCertInfo        = 0x71
	tagErrorDetection  = 0xFE
	certInfoCompressed = 0x01
)

// DataTag identifies a PIV data object.
type DataTag uint32

const (
	DataTagDiscovery                DataTag = 0x7E
	DataTagBiometricGroup           DataTag = 0x7F61
	DataTagCardAuthenticationCert   DataTag = 0x5FC101
	DataTagCHUID                    DataTag = 0x5FC102
	DataTagFingerprints             DataTag = 0x5FC103
	DataTagAuthenticationCert       DataTag = 0x5FC105
	DataTagSecurityObject           DataTag = 0x5FC106
	DataTagCapabilityContainer      DataTag = 0x5FC107
	DataTagFacialImage              DataTag = 0x5FC108
	DataTagPrintedInformation       DataTag = 0x5FC109
	DataTagSignatureCert            DataTag = 0x5FC10A
	DataTagKeyManagementCert        DataTag = 0x5FC10B
	DataTagKeyHistory               DataTag = 0x5FC10C
	DataTagIrisImages               DataTag = 0x5FC121
	DataTagSecureMessagingSigner    DataTag = 0x5FC122
	DataTagPairingCodeReferenceData DataTag = 0x5FC123

	// YubiKey objects.
	DataTagAdminData       DataTag = 0x5FFF00
	DataTagAttestationCert DataTag = 0x5FFF01
	DataTagMSCMAP          DataTag = 0x5FFF10
	DataTagMSRoots1        DataTag = 0x5FFF11

	dataTagRetiredCertFirst DataTag = 0x5FC10D
	dataTagRetiredCertLast  DataTag = 0x5FC120
	dataTagMSRootsLast      DataTag = 0x5FFF15
)

var dataTagNames = map[DataTag]string{
	DataTagDiscovery:                "Discovery",
	DataTagBiometricGroup:           "BiometricGroupTemplate",
	DataTagCardAuthenticationCert:   "CardAuthenticationCert",
	DataTagCHUID:                    "CHUID",
	DataTagFingerprints:             "Fingerprints",
	DataTagAuthenticationCert:       "AuthenticationCert",
	DataTagSecurityObject:           "SecurityObject",
	DataTagCapabilityContainer:      "CapabilityContainer",
	DataTagFacialImage:              "FacialImage",
	DataTagPrintedInformation:       "PrintedInformation",
	DataTagSignatureCert:            "SignatureCert",
	DataTagKeyManagementCert:        "KeyManagementCert",
	DataTagKeyHistory:               "KeyHistory",
	DataTagIrisImages:               "IrisImages",
	DataTagSecureMessagingSigner:    "SecureMessagingSigner",
	DataTagPairingCodeReferenceData: "PairingCodeReferenceData",
	DataTagAdminData:                "AdminData",
	DataTagAttestationCert:          "AttestationCert",
	DataTagMSCMAP:                   "MSCMAP",
}

// RetiredCertTag returns the certificate object of retired slot n (1 to 20).
func RetiredCertTag(n int) (DataTag, error) {
	if n < 1 || n > 20 {
		return 0, invalidArgument("retired certificate %d out of range (1-20)", n)
	}
	return dataTagRetiredCertFirst + DataTag(n-1), nil
}

// IsKnown reports whether t is on the data object allow-list.
func (t DataTag) IsKnown() bool {
	if _, ok := dataTagNames[t]; ok {
		return true
	}
	return (t >= dataTagRetiredCertFirst && t <= dataTagRetiredCertLast) ||
		(t >= DataTagMSRoots1 && t <= dataTagMSRootsLast)
}

// IsWritable reports whether PUT DATA may target t.
func (t DataTag) IsWritable() bool {
	return t.IsKnown() && t != DataTagDiscovery && t != DataTagBiometricGroup
}

func (t DataTag) String() string {
	if name, ok := dataTagNames[t]; ok {
		return name
	}
	switch {
	case t >= dataTagRetiredCertFirst && t <= dataTagRetiredCertLast:
		return fmt.Sprintf("RetiredCert%d", int(t-dataTagRetiredCertFirst)+1)
	case t >= DataTagMSRoots1 && t <= dataTagMSRootsLast:
		return fmt.Sprintf("MSRoots%d", int(t-DataTagMSRoots1)+1)
	}
	return fmt.Sprintf("DataTag(%X)", uint32(t))
}

// container returns the tag wrapping the object in a GET DATA reply.
func (t DataTag) container() uint32 {
	if t == DataTagDiscovery || t == DataTagBiometricGroup {
		return uint32(t)
	}
	return tagContainer
}

func tagList(t DataTag) []byte {
	return tlv.New(tagTagList, tlv.EncodeTag(uint32(t))).Bytes()
}

func checkRawTag(tag uint32) error {
	if tag == 0 || tag > 0xFFFFFF {
		return invalidArgument("data tag %X must be one to three bytes", tag)
	}
	return nil
}

// CertificateTag returns the data object holding the certificate of slot s.
func CertificateTag(s Slot) (DataTag, error) {
	switch s {
	case SlotAuthentication:
		return DataTagAuthenticationCert, nil
	case SlotSignature:
		return DataTagSignatureCert, nil
	case SlotKeyManagement:
		return DataTagKeyManagementCert, nil
	case SlotCardAuthentication:
		return DataTagCardAuthenticationCert, nil
	case SlotAttestation:
		return DataTagAttestationCert, nil
	}
	if s.IsRetired() {
		return RetiredCertTag(int(s-slotRetiredFirst) + 1)
	}
	return 0, invalidArgument("slot %s has no certificate object", s)
}

// GetDataCommand reads a data object (GET DATA, INS CB).
type GetDataCommand struct {
	tag DataTag
}

// NewGetDataCommand creates the command for an allow-listed object.
func NewGetDataCommand(tag DataTag) (*GetDataCommand, error) {
	if !tag.IsKnown() {
		return nil, invalidArgument("data tag %X is not a PIV data object", uint32(tag))
	}
	return &GetDataCommand{tag: tag}, nil
}

// NewGetDataCommandForTag creates the command for any one to three byte tag,
// bypassing the allow-list.
func NewGetDataCommandForTag(tag uint32) (*GetDataCommand, error) {
	if err := checkRawTag(tag); err != nil {
		return nil, err
	}
	return &GetDataCommand{tag: DataTag(tag)}, nil
}

func (c *GetDataCommand) CommandAPDU() (*iso7816.CommandAPDU, error) {
	if c == nil || c.tag == 0 {
		return nil, uninitialized("GetDataCommand")
	}
	return newAPDU(iso7816.INS_GET_DATA_BER, 0x3F, 0xFF, tagList(c.tag), expectData), nil
}

func (c *GetDataCommand) NewResponse(r *iso7816.ResponseAPDU) (*GetDataResponse, error) {
	base, err := newResponse(r)
	if err != nil {
		return nil, err
	}
	return &GetDataResponse{Response: base, tag: c.tag}, nil
}

// GetDataResponse carries a data object.
type GetDataResponse struct {
	Response
	tag DataTag
}

// Tag returns the requested object.
func (r *GetDataResponse) Tag() DataTag { return r.tag }

// Data returns the content of the object, without its '53' container.
// Discovery and BGT are returned as the value of their own template.
func (r *GetDataResponse) Data() ([]byte, error) {
	data, err := r.payload()
	if err != nil {
		return nil, err
	}
	obj, err := tlv.DecodeSingle(data, r.tag.container())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformedResponse, r.tag, err)
	}
	return obj.Value, nil
}

// Certificate parses a certificate object.
func (r *GetDataResponse) Certificate() (*x509.Certificate, error) {
	data, err := r.Data()
	if err != nil {
		return nil, err
	}
	return ParseCertificateObject(data)
}

// Discovery parses the Discovery object.
func (r *GetDataResponse) Discovery() (*DiscoveryObject, error) {
	if r.tag != DataTagDiscovery {
		return nil, wrapOp("object %s is not the discovery object", r.tag)
	}
	data, err := r.Data()
	if err != nil {
		return nil, err
	}
	d := &DiscoveryObject{}
	if err := tlv.Unmarshal(data, d); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return d, nil
}

// CardHolderUniqueID parses the CHUID object.
func (r *GetDataResponse) CardHolderUniqueID() (*CardHolderUniqueID, error) {
	if r.tag != DataTagCHUID {
		return nil, wrapOp("object %s is not the CHUID", r.tag)
	}
	data, err := r.Data()
	if err != nil {
		return nil, err
	}
	id := &CardHolderUniqueID{}
	if err := tlv.UnmarshalFlat(data, id); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return id, nil
}

// PutDataCommand writes a data object (PUT DATA, INS DB).
type PutDataCommand struct {
	tag  DataTag
	data []byte
}

// NewPutDataCommand creates the command for a writable allow-listed object.
// data is the object content; the '53' container is added by the command.
func NewPutDataCommand(tag DataTag, data []byte) (*PutDataCommand, error) {
	if !tag.IsKnown() {
		return nil, invalidArgument("data tag %X is not a PIV data object", uint32(tag))
	}
	if !tag.IsWritable() {
		return nil, invalidArgument("data object %s is read-only", tag)
	}
	return &PutDataCommand{tag: tag, data: bytes.Clone(data)}, nil
}

// NewPutDataCommandForTag creates the command for any one to three byte tag,
// bypassing the allow-list.
func NewPutDataCommandForTag(tag uint32, data []byte) (*PutDataCommand, error) {
	if err := checkRawTag(tag); err != nil {
		return nil, err
	}
	return &PutDataCommand{tag: DataTag(tag), data: bytes.Clone(data)}, nil
}

// NewPutCertificateCommand stores a certificate in the object of slot s.
func NewPutCertificateCommand(s Slot, cert *x509.Certificate) (*PutDataCommand, error) {
	if cert == nil {
		return nil, invalidArgument("missing certificate")
	}
	tag, err := CertificateTag(s)
	if err != nil {
		return nil, err
	}
	return NewPutDataCommand(tag, CertificateObject(cert.Raw))
}

func (c *PutDataCommand) CommandAPDU() (*iso7816.CommandAPDU, error) {
	if c == nil || c.tag == 0 {
		return nil, uninitialized("PutDataCommand")
	}
	data := append(tagList(c.tag), tlv.New(tagContainer, c.data).Bytes()...)
	return newAPDU(iso7816.INS_PUT_DATA_BER, 0x3F, 0xFF, data, 0), nil
}

func (c *PutDataCommand) NewResponse(r *iso7816.ResponseAPDU) (*StatusResponse, error) {
	return newStatusResponse(r)
}

// CertificateObject builds the content of a certificate object: 70 der, 71 00, FE 00.
func CertificateObject(der []byte) []byte {
	return tlv.Encode(
		tlv.New(tagCertificate, der),
		tlv.New(tagCertInfo, []byte{0x00}),
		tlv.New(tagErrorDetection, nil),
	)
}

// ParseCertificateObject extracts and parses the certificate of a certificate object.
// Gzip compressed certificates (71 01) are inflated.
func ParseCertificateObject(data []byte) (*x509.Certificate, error) {
	objs, err := tlv.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	certObj, ok := tlv.Find(objs, tagCertificate)
	if !ok {
		return nil, malformed("certificate object has no '70' entry")
	}

	der := certObj.Value
	if info, ok := tlv.Find(objs, tagCertInfo); ok && len(info.Value) == 1 && info.Value[0] == certInfoCompressed {
		if der, err = gunzip(der); err != nil {
			return nil, malformed("compressed certificate: %v", err)
		}
	}

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, malformed("certificate: %v", err)
	}
	return cert, nil
}

func gunzip(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

// DiscoveryObject is the '7E' template (SP 800-73-4 Part 1, 3.3.2).
type DiscoveryObject struct {
	ApplicationID  []byte       `tlv:"4F"`
	PinUsagePolicy []byte       `tlv:"5F2F"`
	Unknown        []bertlv.TLV `tlv:",unknown"`
}

// GlobalPINSatisfies reports whether the policy allows the global PIN to
// satisfy PIV access conditions.
func (d *DiscoveryObject) GlobalPINSatisfies() bool {
	return len(d.PinUsagePolicy) > 0 && d.PinUsagePolicy[0]&0x20 != 0
}

// Describe returns a field by field report of the object.
func (d *DiscoveryObject) Describe() string {
	var sb strings.Builder
	sb.WriteString("=== DISCOVERY OBJECT ===")
	tlv.WriteStructFields(&sb, "Discovery", d)
	return sb.String()
}

// CardHolderUniqueID is the CHUID object (SP 800-73-4 Part 1, 3.1.2).
type CardHolderUniqueID struct {
	FASCN          []byte       `tlv:"30"`
	OrganizationID []byte       `tlv:"32"`
	DUNS           []byte       `tlv:"33"`
	GUID           []byte       `tlv:"34" fmt:"uuid"`
	Expiration     []byte       `tlv:"35" fmt:"ascii"`
	CardholderUUID []byte       `tlv:"36" fmt:"uuid"`
	Signature      []byte       `tlv:"3E"`
	ErrorDetection []byte       `tlv:"FE"`
	Unknown        []bertlv.TLV `tlv:",unknown"`
}

// CardUUID returns the GUID field as a UUID.
func (c *CardHolderUniqueID) CardUUID() (uuid.UUID, error) {
	id, err := uuid.FromBytes(c.GUID)
	if err != nil {
		return uuid.Nil, malformed("CHUID GUID: %v", err)
	}
	return id, nil
}

// Describe returns a field by field report of the object.
func (c *CardHolderUniqueID) Describe() string {
	var sb strings.Builder
	sb.WriteString("=== CARDHOLDER UNIQUE IDENTIFIER ===")
	tlv.WriteStructFields(&sb, "CHUID", c)
	return sb.String()
}
