package piv

import (
	"fmt"

	"github.com/gregLibert/pivcard/pkg/iso7816"
)

// ResponseStatus is the outcome of a command, derived from the status word.
type ResponseStatus int

const (
	StatusSuccess ResponseStatus = iota
	StatusAuthenticationRequired
	StatusNoData
	StatusConditionsNotSatisfied
	StatusFailed
)

func (s ResponseStatus) String() string {
	switch s {
	case StatusSuccess:
		return "Success"
	case StatusAuthenticationRequired:
		return "AuthenticationRequired"
	case StatusNoData:
		return "NoData"
	case StatusConditionsNotSatisfied:
		return "ConditionsNotSatisfied"
	case StatusFailed:
		return "Failed"
	default:
		return fmt.Sprintf("ResponseStatus(%d)", int(s))
	}
}

// StatusOf classifies a status word.
//
//	9000        Success
//	63CX        AuthenticationRequired (X retries left)
//	6983        AuthenticationRequired (blocked)
//	6982        AuthenticationRequired
//	6A88        NoData
//	6985        ConditionsNotSatisfied
//	other       Failed
func StatusOf(sw iso7816.StatusWord) ResponseStatus {
	switch {
	case sw == iso7816.SW_NO_ERROR:
		return StatusSuccess
	case sw.IsCounter(),
		sw == iso7816.SW_ERR_AUTH_METHOD_BLOCKED,
		sw == iso7816.SW_ERR_SECURITY_STATUS_NOT_SAT:
		return StatusAuthenticationRequired
	case sw == iso7816.SW_ERR_REF_DATA_NOT_FOUND:
		return StatusNoData
	case sw == iso7816.SW_ERR_COND_OF_USE_NOT_SAT:
		return StatusConditionsNotSatisfied
	default:
		return StatusFailed
	}
}

// RetriesRemaining decodes the retry counter carried by a PIN or PUK verification reply.
// ok is false on success, where the card reports no counter. A blocked reference
// reports 0. Any other status word is an ErrInvalidOperation.
func RetriesRemaining(sw iso7816.StatusWord) (n int, ok bool, err error) {
	if sw == iso7816.SW_NO_ERROR {
		return 0, false, nil
	}
	if n, ok := sw.Counter(); ok {
		return n, true, nil
	}
	if sw == iso7816.SW_ERR_AUTH_METHOD_BLOCKED {
		return 0, true, nil
	}
	return 0, false, fmt.Errorf("%w: status %04X carries no retry count", ErrInvalidOperation, uint16(sw))
}

// Response holds the parts common to every PIV reply.
type Response struct {
	raw *iso7816.ResponseAPDU
}

func newResponse(r *iso7816.ResponseAPDU) (Response, error) {
	if r == nil {
		return Response{}, fmt.Errorf("%w: nil response", ErrInvalidArgument)
	}
	return Response{raw: r}, nil
}

// StatusWord returns the raw status word.
func (r Response) StatusWord() iso7816.StatusWord {
	if r.raw == nil {
		return 0
	}
	return r.raw.Status
}

// Status returns the classified outcome.
func (r Response) Status() ResponseStatus {
	return StatusOf(r.StatusWord())
}

// StatusMessage returns a human-readable description of the outcome.
func (r Response) StatusMessage() string {
	sw := r.StatusWord()
	switch r.Status() {
	case StatusSuccess:
		return "Success"
	case StatusAuthenticationRequired:
		if n, ok, _ := RetriesRemaining(sw); ok {
			return fmt.Sprintf("Authentication required, %d retries remaining", n)
		}
		return "Authentication required"
	case StatusNoData:
		return "Data object or key not found"
	case StatusConditionsNotSatisfied:
		return "Conditions of use not satisfied"
	default:
		return sw.Verbose()
	}
}

// payload returns the data field once the outcome is Success.
func (r Response) payload() ([]byte, error) {
	if r.raw == nil {
		return nil, fmt.Errorf("%w: empty response", ErrInvalidOperation)
	}
	if r.Status() != StatusSuccess {
		return nil, fmt.Errorf("%w: status is %s (%04X)", ErrInvalidOperation, r.Status(), uint16(r.raw.Status))
	}
	return r.raw.Data, nil
}

// retryResponse is embedded by replies to PIN/PUK commands.
type retryResponse struct {
	Response
}

// RetriesRemaining returns the retry counter of the referenced PIN or PUK.
// See the package level RetriesRemaining for the decoding rules.
func (r retryResponse) RetriesRemaining() (int, bool, error) {
	return RetriesRemaining(r.StatusWord())
}

// StatusResponse is the reply of commands that return no data.
type StatusResponse struct {
	Response
}

func newStatusResponse(r *iso7816.ResponseAPDU) (*StatusResponse, error) {
	base, err := newResponse(r)
	if err != nil {
		return nil, err
	}
	return &StatusResponse{Response: base}, nil
}
