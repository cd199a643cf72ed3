package piv

import (
	"bytes"
	"crypto/aes"
	"errors"
	"fmt"
	"testing"

	"github.com/gregLibert/pivcard/pkg/tlv"
)

var (
	testTripleDESKey = tlv.Hex("8A98F110D3497B022100B774DF0EF99B53EF4B8E3B918604")
	testWitness      = "39A0A8E9F5288775"
	testHostChal     = "A4C4D92374597F64"
	testCardAnswer   = "AC29A45E1F428A23"
)

func TestAuthenticateManagementKey_Mutual(t *testing.T) {
	client, card := newTestClient(
		"7C0A 8008"+testWitness+" 9000",
		"7C0A 8208"+testCardAnswer+" 9000",
	)

	result, err := AuthenticateManagementKey(client, KeyTypeTripleDES, testTripleDESKey, true, bytes.NewReader(tlv.Hex(testHostChal)))
	if err != nil {
		t.Fatalf("AuthenticateManagementKey failed: %v", err)
	}
	if result != MutualFullyAuthenticated {
		t.Errorf("result = %s, want MutualFullyAuthenticated", result)
	}

	want := []string{
		"0087039B047C028000 00",
		"0087039B18 7C16 8008D0FE1A35A4E940F8 8108" + testHostChal + " 8200 00",
	}
	for i, w := range want {
		if got := fmt.Sprintf("%X", card.sent[i]); got != hexOf(w) {
			t.Errorf("command %d = %s, want %s", i, got, hexOf(w))
		}
	}
}

func TestCompleteAuthenticateManagementKey_MutualResults(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  AuthenticationResult
	}{
		{"Card Authenticated", "7C0A 8208" + testCardAnswer + " 9000", MutualFullyAuthenticated},
		{"Card Answer Mismatch", "7C0A 8208 0000000000000000 9000", MutualYubiKeyAuthenticationFailed},
		{"Host Rejected", "6982", MutualOffCardAuthenticationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := completeMutual(t)
			resp, err := cmd.NewResponse(reply(t, tt.reply))
			if err != nil {
				t.Fatalf("NewResponse failed: %v", err)
			}
			got, err := resp.Result()
			if err != nil {
				t.Fatalf("Result failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Result = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCompleteAuthenticateManagementKey_MutualMalformed(t *testing.T) {
	for _, r := range []string{"7C0A 8108" + testCardAnswer + " 9000", "7C06 8204 00000000 9000", "9000"} {
		resp, err := completeMutual(t).NewResponse(reply(t, r))
		if err != nil {
			t.Fatalf("NewResponse failed: %v", err)
		}
		if _, err := resp.Result(); !errors.Is(err, ErrMalformedResponse) {
			t.Errorf("reply %s: error = %v, want ErrMalformedResponse", r, err)
		}
	}
}

func completeMutual(t *testing.T) *CompleteAuthenticateManagementKeyCommand {
	t.Helper()
	initCmd := must(NewInitializeAuthenticateManagementKeyCommand(KeyTypeTripleDES, true))
	initResp := must(initCmd.NewResponse(reply(t, "7C0A 8008"+testWitness+" 9000")))
	return must(NewCompleteAuthenticateManagementKeyCommand(initResp, testTripleDESKey, bytes.NewReader(tlv.Hex(testHostChal))))
}

func TestCompleteAuthenticateManagementKey_Single(t *testing.T) {
	key := tlv.Hex("000102030405060708090A0B0C0D0E0F")
	challenge := tlv.Hex("00112233445566778899AABBCCDDEEFF")

	block, err := aes.NewCipher(key)
	if err != nil {
		t.Fatal(err)
	}
	encrypted := make([]byte, 16)
	block.Encrypt(encrypted, challenge)

	initCmd := must(NewInitializeAuthenticateManagementKeyCommand(KeyTypeAES128, false))
	initResp := must(initCmd.NewResponse(reply(t, fmt.Sprintf("7C12 8110 %X 9000", challenge))))
	cmd := must(NewCompleteAuthenticateManagementKeyCommand(initResp, key, nil))

	if got, want := encode(t, cmd), hexOf(fmt.Sprintf("0087089B14 7C12 8210 %X", encrypted)); got != want {
		t.Errorf("APDU = %s, want %s", got, want)
	}

	tests := []struct {
		reply   string
		want    AuthenticationResult
		wantErr error
	}{
		{"9000", SingleAuthenticated, nil},
		{"7C02 8200 9000", SingleAuthenticated, nil},
		{"6982", SingleAuthenticationFailed, nil},
		{"7C04 8202 0102 9000", AuthenticationIncomplete, ErrMalformedResponse},
	}
	for _, tt := range tests {
		resp := must(cmd.NewResponse(reply(t, tt.reply)))
		got, err := resp.Result()
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("reply %s: error = %v, want %v", tt.reply, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("reply %s: result = %s, want %s", tt.reply, got, tt.want)
		}
	}
}

func TestInitializeAuthenticateManagementKey_Challenge(t *testing.T) {
	initCmd := must(NewInitializeAuthenticateManagementKeyCommand(KeyTypeAES256, true))

	tests := []struct {
		name    string
		reply   string
		wantErr error
	}{
		{"Block Sized Witness", "7C12 8010 00112233445566778899AABBCCDDEEFF 9000", nil},
		{"Short Witness", "7C0A 8008 0011223344556677 9000", ErrMalformedResponse},
		{"Challenge Instead Of Witness", "7C12 8110 00112233445566778899AABBCCDDEEFF 9000", ErrMalformedResponse},
		{"Card Refused", "6A80", ErrInvalidOperation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := must(initCmd.NewResponse(reply(t, tt.reply)))
			if _, err := resp.Challenge(); !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestManagementKeyAuthentication_Order(t *testing.T) {
	auth, err := NewManagementKeyAuthentication(KeyTypeTripleDES, true)
	if err != nil {
		t.Fatalf("NewManagementKeyAuthentication failed: %v", err)
	}

	if err := auth.Challenge(reply(t, "7C0A 8008"+testWitness+" 9000")); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("Challenge before Initialize: error = %v", err)
	}
	if _, err := auth.Complete(testTripleDESKey, nil); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("Complete before Challenge: error = %v", err)
	}

	if _, err := auth.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if _, err := auth.Initialize(); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("second Initialize: error = %v", err)
	}
	if _, err := auth.Finish(reply(t, "9000")); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("Finish before Complete: error = %v", err)
	}

	if err := auth.Challenge(reply(t, "7C0A 8008"+testWitness+" 9000")); err != nil {
		t.Fatalf("Challenge failed: %v", err)
	}
	if _, err := auth.Complete(testTripleDESKey, bytes.NewReader(tlv.Hex(testHostChal))); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	result, err := auth.Finish(reply(t, "7C0A 8208"+testCardAnswer+" 9000"))
	if err != nil || result != MutualFullyAuthenticated {
		t.Fatalf("Finish = %s, %v", result, err)
	}
	if auth.Result() != MutualFullyAuthenticated {
		t.Errorf("Result = %s", auth.Result())
	}

	auth.Reset()
	if auth.Result() != AuthenticationIncomplete {
		t.Errorf("Result after Reset = %s", auth.Result())
	}
	if _, err := auth.Initialize(); err != nil {
		t.Errorf("Initialize after Reset failed: %v", err)
	}
}

func TestCompleteAuthenticateManagementKey_Invalid(t *testing.T) {
	initCmd := must(NewInitializeAuthenticateManagementKeyCommand(KeyTypeTripleDES, true))
	initResp := must(initCmd.NewResponse(reply(t, "7C0A 8008"+testWitness+" 9000")))

	if _, err := NewCompleteAuthenticateManagementKeyCommand(initResp, testTripleDESKey[:16], nil); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("short key: error = %v, want ErrInvalidArgument", err)
	}
	if _, err := NewCompleteAuthenticateManagementKeyCommand(initResp, testTripleDESKey, bytes.NewReader(nil)); err == nil {
		t.Error("expected an error when the challenge source is empty")
	}
	if _, err := NewCompleteAuthenticateManagementKeyCommand(nil, testTripleDESKey, nil); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("nil init: error = %v, want ErrInvalidArgument", err)
	}
}
