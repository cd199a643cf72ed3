package piv

import (
	"bytes"
	"compress/gzip"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/gregLibert/pivcard/pkg/tlv"
)

func selfSignedCert(t *testing.T) *x509.Certificate {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(42),
		Subject:      pkix.Name{CommonName: "PIV Test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, key.Public(), key)
	if err != nil {
		t.Fatal(err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatal(err)
	}
	return cert
}

func TestDataTag(t *testing.T) {
	tests := []struct {
		tag      DataTag
		known    bool
		writable bool
		name     string
	}{
		{DataTagDiscovery, true, false, "Discovery"},
		{DataTagBiometricGroup, true, false, "BiometricGroupTemplate"},
		{DataTagCHUID, true, true, "CHUID"},
		{0x5FC10D, true, true, "RetiredCert1"},
		{0x5FC120, true, true, "RetiredCert20"},
		{DataTagPairingCodeReferenceData, true, true, "PairingCodeReferenceData"},
		{DataTagAdminData, true, true, "AdminData"},
		{0x5FFF15, true, true, "MSRoots5"},
		{0x5FFF16, false, false, "DataTag(5FFF16)"},
		{0x5FC124, false, false, "DataTag(5FC124)"},
	}

	for _, tt := range tests {
		if got := tt.tag.IsKnown(); got != tt.known {
			t.Errorf("%s IsKnown = %v, want %v", tt.name, got, tt.known)
		}
		if got := tt.tag.IsWritable(); got != tt.writable {
			t.Errorf("%s IsWritable = %v, want %v", tt.name, got, tt.writable)
		}
		if got := tt.tag.String(); got != tt.name {
			t.Errorf("String = %q, want %q", got, tt.name)
		}
	}
}

func TestCertificateTag(t *testing.T) {
	tests := []struct {
		slot Slot
		want DataTag
	}{
		{SlotAuthentication, DataTagAuthenticationCert},
		{SlotSignature, DataTagSignatureCert},
		{SlotKeyManagement, DataTagKeyManagementCert},
		{SlotCardAuthentication, DataTagCardAuthenticationCert},
		{SlotAttestation, DataTagAttestationCert},
		{0x82, 0x5FC10D},
		{0x95, 0x5FC120},
	}
	for _, tt := range tests {
		got, err := CertificateTag(tt.slot)
		if err != nil || got != tt.want {
			t.Errorf("CertificateTag(%s) = %X, %v; want %X", tt.slot, uint32(got), err, uint32(tt.want))
		}
	}

	if _, err := CertificateTag(SlotPIN); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("CertificateTag(PIN) error = %v", err)
	}
}

func TestGetDataResponse_Data(t *testing.T) {
	tests := []struct {
		name    string
		tag     DataTag
		reply   string
		want    []byte
		wantErr error
	}{
		{"Container Unwrapped", DataTagCHUID, "5303 300100 9000", tlv.Hex("300100"), nil},
		{"Discovery Template", DataTagDiscovery, "7E05 4F03A00000 9000", tlv.Hex("4F03A00000"), nil},
		{"Missing Container", DataTagCHUID, "7003 010203 9000", nil, ErrMalformedResponse},
		{"Trailing Bytes", DataTagCHUID, "5301 00 FF 9000", nil, ErrMalformedResponse},
		{"Not Found", DataTagCHUID, "6A82", nil, ErrInvalidOperation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := must(NewGetDataCommand(tt.tag))
			resp := must(cmd.NewResponse(reply(t, tt.reply)))
			got, err := resp.Data()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, got); tt.wantErr == nil && diff != "" {
				t.Errorf("Data mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCertificateObject_RoundTrip(t *testing.T) {
	cert := selfSignedCert(t)

	obj := CertificateObject(cert.Raw)
	if !bytes.HasSuffix(obj, tlv.Hex("710100 FE00")) {
		t.Errorf("certificate object does not end with 71 01 00 FE 00: %X", obj[len(obj)-5:])
	}

	put := must(NewPutCertificateCommand(SlotSignature, cert))
	apdu, err := put.CommandAPDU()
	if err != nil {
		t.Fatalf("CommandAPDU failed: %v", err)
	}
	if !bytes.HasPrefix(apdu.Data, tlv.Hex("5C035FC10A 53")) {
		t.Errorf("PUT DATA field starts with %X", apdu.Data[:6])
	}

	client, card := newTestClient(fmt.Sprintf("%X9000", tlv.New(tagContainer, obj).Bytes()))
	get := must(NewGetDataCommand(DataTagSignatureCert))
	resp, err := Transmit[*GetDataResponse](client, get)
	if err != nil {
		t.Fatalf("Transmit failed: %v", err)
	}
	parsed, err := resp.Certificate()
	if err != nil {
		t.Fatalf("Certificate failed: %v", err)
	}
	if !parsed.Equal(cert) {
		t.Error("parsed certificate differs from the stored one")
	}
	if got := fmt.Sprintf("%X", card.sent[0]); got != "00CB3FFF055C035FC10A00" {
		t.Errorf("GET DATA = %s", got)
	}
}

func TestParseCertificateObject_Compressed(t *testing.T) {
	cert := selfSignedCert(t)

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(cert.Raw); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	obj := tlv.Encode(tlv.New(tagCertificate, buf.Bytes()), tlv.New(tagCertInfo, []byte{0x01}), tlv.New(tagErrorDetection, nil))
	parsed, err := ParseCertificateObject(obj)
	if err != nil {
		t.Fatalf("ParseCertificateObject failed: %v", err)
	}
	if !parsed.Equal(cert) {
		t.Error("inflated certificate differs from the original")
	}
}

func TestParseCertificateObject_Invalid(t *testing.T) {
	for _, data := range []string{"710100FE00", "7003010203710100", "7081"} {
		if _, err := ParseCertificateObject(tlv.Hex(data)); !errors.Is(err, ErrMalformedResponse) {
			t.Errorf("%s: error = %v, want ErrMalformedResponse", data, err)
		}
	}
}

func TestGetDataResponse_Discovery(t *testing.T) {
	cmd := must(NewGetDataCommand(DataTagDiscovery))
	resp := must(cmd.NewResponse(reply(t, "7E12 4F0BA000000308000010000100 5F2F024010 9000")))

	d, err := resp.Discovery()
	if err != nil {
		t.Fatalf("Discovery failed: %v", err)
	}
	if diff := cmp.Diff(tlv.Hex("A000000308000010000100"), d.ApplicationID); diff != "" {
		t.Errorf("ApplicationID mismatch (-want +got):\n%s", diff)
	}
	if d.GlobalPINSatisfies() {
		t.Error("policy 4010 does not allow the global PIN")
	}

	report := d.Describe()
	for _, line := range []string{
		"=== DISCOVERY OBJECT ===",
		"    - Discovery.ApplicationID (4F): A000000308000010000100",
		"    - Discovery.PinUsagePolicy (5F2F): 4010",
	} {
		if !strings.Contains(report, line) {
			t.Errorf("report missing %q:\n%s", line, report)
		}
	}

	if _, err := resp.CardHolderUniqueID(); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("CardHolderUniqueID on discovery: error = %v", err)
	}
}

func TestGetDataResponse_CHUID(t *testing.T) {
	cmd := must(NewGetDataCommand(DataTagCHUID))
	resp := must(cmd.NewResponse(reply(t,
		"531C",
		"3402 0102",
		"3508 3230333031323331",
		"3E00",
		"FE00",
		"CE02 ABCD",
		"3302 0304",
		"3000",
		"9000",
	)))

	id, err := resp.CardHolderUniqueID()
	if err != nil {
		t.Fatalf("CardHolderUniqueID failed: %v", err)
	}
	if string(id.Expiration) != "20301231" {
		t.Errorf("Expiration = %q", id.Expiration)
	}
	if diff := cmp.Diff([]byte{0x01, 0x02}, id.GUID); diff != "" {
		t.Errorf("GUID mismatch (-want +got):\n%s", diff)
	}
	if _, err := id.CardUUID(); !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("CardUUID on a 2 byte GUID: error = %v", err)
	}
	if len(id.Unknown) != 1 || id.Unknown[0].Tag != "CE" {
		t.Errorf("Unknown = %v, want a single CE entry", id.Unknown)
	}
	if report := id.Describe(); !strings.Contains(report, `CHUID.Expiration (35): 3230333031323331 ("20301231")`) {
		t.Errorf("report missing expiration:\n%s", report)
	}
}

func TestCardHolderUniqueID_CardUUID(t *testing.T) {
	id := &CardHolderUniqueID{GUID: tlv.Hex("3A0E6E6B 2C3F 4C5A 9D1E 0123456789AB")}

	got, err := id.CardUUID()
	if err != nil {
		t.Fatalf("CardUUID failed: %v", err)
	}
	if want := "3a0e6e6b-2c3f-4c5a-9d1e-0123456789ab"; got.String() != want {
		t.Errorf("CardUUID() = %s, want %s", got, want)
	}
	if report := id.Describe(); !strings.Contains(report, "CHUID.GUID (34): 3A0E6E6B2C3F4C5A9D1E0123456789AB (3a0e6e6b-2c3f-4c5a-9d1e-0123456789ab)") {
		t.Errorf("report missing GUID:\n%s", report)
	}
}
