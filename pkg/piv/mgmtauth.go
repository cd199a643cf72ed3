package piv

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/des"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"io"

	"github.com/gregLibert/pivcard/pkg/iso7816"
	"github.com/gregLibert/pivcard/pkg/tlv"
)

// MANAGEMENT KEY AUTHENTICATION (GENERAL AUTHENTICATE, P1 algorithm, P2 9B):
//
// Mutual:
//
//	-> 7C { 80 00 }                       <- 7C { 80 witness }
//	-> 7C { 80 D(witness), 81 c2, 82 00 } <- 7C { 82 r2 }    r2 must equal D(c2)
//
// Single:
//
//	-> 7C { 81 00 }                       <- 7C { 81 challenge }
//	-> 7C { 82 E(challenge) }             <- 9000
//
// D and E are one block of the management key cipher (TripleDES or AES).

// AuthenticationResult is the outcome of a management key authentication.
type AuthenticationResult int

const (
	AuthenticationIncomplete AuthenticationResult = iota
	MutualFullyAuthenticated
	MutualYubiKeyAuthenticationFailed
	MutualOffCardAuthenticationFailed
	SingleAuthenticated
	SingleAuthenticationFailed
)

func (a AuthenticationResult) String() string {
	switch a {
	case AuthenticationIncomplete:
		return "Incomplete"
	case MutualFullyAuthenticated:
		return "MutualFullyAuthenticated"
	case MutualYubiKeyAuthenticationFailed:
		return "MutualYubiKeyAuthenticationFailed"
	case MutualOffCardAuthenticationFailed:
		return "MutualOffCardAuthenticationFailed"
	case SingleAuthenticated:
		return "SingleAuthenticated"
	case SingleAuthenticationFailed:
		return "SingleAuthenticationFailed"
	default:
		return fmt.Sprintf("AuthenticationResult(%d)", int(a))
	}
}

// Succeeded reports whether the card now considers the management key authenticated
// and, for mutual authentication, the card itself was authenticated.
func (a AuthenticationResult) Succeeded() bool {
	return a == MutualFullyAuthenticated || a == SingleAuthenticated
}

func newBlockCipher(keyType KeyType, key []byte) (cipher.Block, error) {
	if err := checkManagementKey(keyType, key); err != nil {
		return nil, err
	}
	if keyType == KeyTypeTripleDES {
		return des.NewTripleDESCipher(key)
	}
	return aes.NewCipher(key)
}

func authTemplate(objs ...tlv.Object) []byte {
	return tlv.NewConstructed(tagDynamicAuth, objs...).Bytes()
}

// InitializeAuthenticateManagementKeyCommand requests a challenge from the card.
type InitializeAuthenticateManagementKeyCommand struct {
	keyType KeyType
	mutual  bool
}

// NewInitializeAuthenticateManagementKeyCommand creates the first round command.
func NewInitializeAuthenticateManagementKeyCommand(keyType KeyType, mutual bool) (*InitializeAuthenticateManagementKeyCommand, error) {
	if !keyType.IsSymmetric() {
		return nil, invalidArgument("%s is not a management key type", keyType)
	}
	return &InitializeAuthenticateManagementKeyCommand{keyType: keyType, mutual: mutual}, nil
}

func (c *InitializeAuthenticateManagementKeyCommand) CommandAPDU() (*iso7816.CommandAPDU, error) {
	if c == nil || c.keyType == KeyTypeNone {
		return nil, uninitialized("InitializeAuthenticateManagementKeyCommand")
	}

	tag := uint32(tagAuthChallenge)
	if c.mutual {
		tag = tagAuthWitness
	}
	data := authTemplate(tlv.New(tag, nil))
	return newAPDU(iso7816.INS_GENERAL_AUTHENTICATE_BER, byte(c.keyType.Algorithm()), byte(SlotManagement), data, expectData), nil
}

func (c *InitializeAuthenticateManagementKeyCommand) NewResponse(r *iso7816.ResponseAPDU) (*InitializeAuthenticateManagementKeyResponse, error) {
	base, err := newResponse(r)
	if err != nil {
		return nil, err
	}
	return &InitializeAuthenticateManagementKeyResponse{Response: base, keyType: c.keyType, mutual: c.mutual}, nil
}

// InitializeAuthenticateManagementKeyResponse carries the card challenge.
type InitializeAuthenticateManagementKeyResponse struct {
	Response
	keyType KeyType
	mutual  bool
}

// Challenge returns the witness (mutual) or challenge (single), one cipher block long.
func (r *InitializeAuthenticateManagementKeyResponse) Challenge() ([]byte, error) {
	data, err := r.payload()
	if err != nil {
		return nil, err
	}

	outer, err := tlv.DecodeSingle(data, tagDynamicAuth)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	tag := uint32(tagAuthChallenge)
	if r.mutual {
		tag = tagAuthWitness
	}
	inner, err := tlv.DecodeSingle(outer.Value, tag)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	if block := r.keyType.BlockSize(); len(inner.Value) != block {
		return nil, malformed("challenge is %d bytes, want %d", len(inner.Value), block)
	}
	return inner.Value, nil
}

// CompleteAuthenticateManagementKeyCommand answers the card challenge.
type CompleteAuthenticateManagementKeyCommand struct {
	keyType  KeyType
	mutual   bool
	data     []byte
	expected []byte
}

// NewCompleteAuthenticateManagementKeyCommand computes the second round from the card
// challenge and the management key. For mutual authentication, the host challenge
// is read from random (crypto/rand when nil).
func NewCompleteAuthenticateManagementKeyCommand(init *InitializeAuthenticateManagementKeyResponse, key []byte, random io.Reader) (*CompleteAuthenticateManagementKeyCommand, error) {
	if init == nil {
		return nil, invalidArgument("missing initialization response")
	}
	challenge, err := init.Challenge()
	if err != nil {
		return nil, err
	}

	block, err := newBlockCipher(init.keyType, key)
	if err != nil {
		return nil, err
	}

	c := &CompleteAuthenticateManagementKeyCommand{keyType: init.keyType, mutual: init.mutual}
	size := block.BlockSize()

	if !init.mutual {
		response := make([]byte, size)
		block.Encrypt(response, challenge)
		c.data = authTemplate(tlv.New(tagAuthResponse, response))
		clear(response)
		return c, nil
	}

	if random == nil {
		random = rand.Reader
	}
	hostChallenge := make([]byte, size)
	if _, err := io.ReadFull(random, hostChallenge); err != nil {
		return nil, fmt.Errorf("reading host challenge: %w", err)
	}

	witness := make([]byte, size)
	block.Decrypt(witness, challenge)

	c.expected = make([]byte, size)
	block.Decrypt(c.expected, hostChallenge)

	c.data = authTemplate(
		tlv.New(tagAuthWitness, witness),
		tlv.New(tagAuthChallenge, hostChallenge),
		tlv.New(tagAuthResponse, nil),
	)
	clear(witness)
	return c, nil
}

func (c *CompleteAuthenticateManagementKeyCommand) CommandAPDU() (*iso7816.CommandAPDU, error) {
	if c == nil || c.data == nil {
		return nil, uninitialized("CompleteAuthenticateManagementKeyCommand")
	}
	ne := 0
	if c.mutual {
		ne = expectData
	}
	return newAPDU(iso7816.INS_GENERAL_AUTHENTICATE_BER, byte(c.keyType.Algorithm()), byte(SlotManagement), bytes.Clone(c.data), ne), nil
}

func (c *CompleteAuthenticateManagementKeyCommand) NewResponse(r *iso7816.ResponseAPDU) (*CompleteAuthenticateManagementKeyResponse, error) {
	if c == nil || c.data == nil {
		return nil, uninitialized("CompleteAuthenticateManagementKeyCommand")
	}
	base, err := newResponse(r)
	if err != nil {
		return nil, err
	}
	return &CompleteAuthenticateManagementKeyResponse{
		Response: base,
		keyType:  c.keyType,
		mutual:   c.mutual,
		expected: bytes.Clone(c.expected),
	}, nil
}

// Clear wipes the computed response and the expected card answer.
func (c *CompleteAuthenticateManagementKeyCommand) Clear() {
	clear(c.data)
	clear(c.expected)
}

// CompleteAuthenticateManagementKeyResponse carries the card answer.
type CompleteAuthenticateManagementKeyResponse struct {
	Response
	keyType  KeyType
	mutual   bool
	expected []byte
}

// Result evaluates the outcome of the authentication.
func (r *CompleteAuthenticateManagementKeyResponse) Result() (AuthenticationResult, error) {
	sw := r.StatusWord()

	if !r.mutual {
		if r.Status() != StatusSuccess {
			return SingleAuthenticationFailed, nil
		}
		if err := checkEmptyAuthResponse(r.raw.Data); err != nil {
			return AuthenticationIncomplete, err
		}
		return SingleAuthenticated, nil
	}

	if sw == iso7816.SW_ERR_SECURITY_STATUS_NOT_SAT {
		return MutualOffCardAuthenticationFailed, nil
	}

	data, err := r.payload()
	if err != nil {
		return AuthenticationIncomplete, err
	}
	got, err := authResult(data)
	if err != nil {
		return AuthenticationIncomplete, err
	}
	if len(got) != r.keyType.BlockSize() {
		return AuthenticationIncomplete, malformed("card response is %d bytes, want %d", len(got), r.keyType.BlockSize())
	}

	if subtle.ConstantTimeCompare(got, r.expected) != 1 {
		return MutualYubiKeyAuthenticationFailed, nil
	}
	return MutualFullyAuthenticated, nil
}

// checkEmptyAuthResponse accepts an empty reply or a 7C template whose '82' is empty.
func checkEmptyAuthResponse(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	outer, err := tlv.DecodeSingle(data, tagDynamicAuth)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	children, err := outer.Children()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if resp, ok := tlv.Find(children, tagAuthResponse); ok && len(resp.Value) > 0 {
		return malformed("single authentication reply carries a response")
	}
	return nil
}

type authState int

const (
	authIdle authState = iota
	authInitSent
	authChallenged
	authCompleteSent
	authDone
)

// ManagementKeyAuthentication drives the two rounds of a management key authentication.
// Steps must be called in order: Initialize, Challenge, Complete, Finish.
// It is not safe for concurrent use.
type ManagementKeyAuthentication struct {
	keyType KeyType
	mutual  bool

	state    authState
	initCmd  *InitializeAuthenticateManagementKeyCommand
	init     *InitializeAuthenticateManagementKeyResponse
	complete *CompleteAuthenticateManagementKeyCommand
	result   AuthenticationResult
}

// NewManagementKeyAuthentication creates an idle authentication for keyType.
func NewManagementKeyAuthentication(keyType KeyType, mutual bool) (*ManagementKeyAuthentication, error) {
	cmd, err := NewInitializeAuthenticateManagementKeyCommand(keyType, mutual)
	if err != nil {
		return nil, err
	}
	return &ManagementKeyAuthentication{keyType: keyType, mutual: mutual, initCmd: cmd}, nil
}

func (a *ManagementKeyAuthentication) expect(step string, state authState) error {
	if a.state != state {
		return wrapOp("%s called out of order", step)
	}
	return nil
}

// Initialize returns the first round command.
func (a *ManagementKeyAuthentication) Initialize() (*InitializeAuthenticateManagementKeyCommand, error) {
	if err := a.expect("Initialize", authIdle); err != nil {
		return nil, err
	}
	a.state = authInitSent
	return a.initCmd, nil
}

// Challenge records the reply to the first round.
func (a *ManagementKeyAuthentication) Challenge(r *iso7816.ResponseAPDU) error {
	if err := a.expect("Challenge", authInitSent); err != nil {
		return err
	}
	init, err := a.initCmd.NewResponse(r)
	if err != nil {
		return err
	}
	if _, err := init.Challenge(); err != nil {
		return err
	}
	a.init = init
	a.state = authChallenged
	return nil
}

// Complete returns the second round command.
func (a *ManagementKeyAuthentication) Complete(key []byte, random io.Reader) (*CompleteAuthenticateManagementKeyCommand, error) {
	if err := a.expect("Complete", authChallenged); err != nil {
		return nil, err
	}
	cmd, err := NewCompleteAuthenticateManagementKeyCommand(a.init, key, random)
	if err != nil {
		return nil, err
	}
	a.complete = cmd
	a.state = authCompleteSent
	return cmd, nil
}

// Finish evaluates the reply to the second round.
func (a *ManagementKeyAuthentication) Finish(r *iso7816.ResponseAPDU) (AuthenticationResult, error) {
	if err := a.expect("Finish", authCompleteSent); err != nil {
		return AuthenticationIncomplete, err
	}
	resp, err := a.complete.NewResponse(r)
	if err != nil {
		return AuthenticationIncomplete, err
	}
	result, err := resp.Result()
	if err != nil {
		return AuthenticationIncomplete, err
	}

	a.complete.Clear()
	a.result = result
	a.state = authDone
	return result, nil
}

// Result returns the terminal result, or AuthenticationIncomplete.
func (a *ManagementKeyAuthentication) Result() AuthenticationResult {
	return a.result
}

// Reset abandons the current attempt and wipes the challenges.
func (a *ManagementKeyAuthentication) Reset() {
	if a.complete != nil {
		a.complete.Clear()
	}
	if a.init != nil && a.init.raw != nil {
		clear(a.init.raw.Data)
	}
	a.init = nil
	a.complete = nil
	a.result = AuthenticationIncomplete
	a.state = authIdle
}

// AuthenticateManagementKey runs both rounds against the card.
func AuthenticateManagementKey(client *iso7816.Client, keyType KeyType, key []byte, mutual bool, random io.Reader) (AuthenticationResult, error) {
	auth, err := NewManagementKeyAuthentication(keyType, mutual)
	if err != nil {
		return AuthenticationIncomplete, err
	}
	defer auth.Reset()

	initCmd, err := auth.Initialize()
	if err != nil {
		return AuthenticationIncomplete, err
	}
	resp, err := exchange(client, initCmd)
	if err != nil {
		return AuthenticationIncomplete, err
	}
	if err := auth.Challenge(resp); err != nil {
		return AuthenticationIncomplete, err
	}

	completeCmd, err := auth.Complete(key, random)
	if err != nil {
		return AuthenticationIncomplete, err
	}
	resp, err = exchange(client, completeCmd)
	if err != nil {
		return AuthenticationIncomplete, err
	}
	return auth.Finish(resp)
}

type apduBuilder interface {
	CommandAPDU() (*iso7816.CommandAPDU, error)
}

func exchange(client *iso7816.Client, cmd apduBuilder) (*iso7816.ResponseAPDU, error) {
	apdu, err := cmd.CommandAPDU()
	if err != nil {
		return nil, err
	}
	defer apdu.Clear()

	trace, err := client.Send(apdu)
	if err != nil {
		return nil, err
	}
	return trace.Response(), nil
}
