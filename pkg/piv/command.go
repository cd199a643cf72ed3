package piv

import (
	"github.com/gregLibert/pivcard/pkg/iso7816"
)

// YubiKey extensions to the PIV instruction set.
const (
	insSetManagementKey iso7816.InsCode = 0xFF
	insImportKey        iso7816.InsCode = 0xFE
	insGetVersion       iso7816.InsCode = 0xFD
	insReset            iso7816.InsCode = 0xFB
	insSetPinRetries    iso7816.InsCode = 0xFA
	insAttest           iso7816.InsCode = 0xF9
	insGetSerial        iso7816.InsCode = 0xF8
	insGetMetadata      iso7816.InsCode = 0xF7
	insMoveKey          iso7816.InsCode = 0xF6
)

// expectData requests up to 256 bytes; longer replies arrive through GET RESPONSE.
const expectData = iso7816.MaxShortLe

// Command is implemented by every PIV command. R is the typed reply.
type Command[R any] interface {
	CommandAPDU() (*iso7816.CommandAPDU, error)
	NewResponse(*iso7816.ResponseAPDU) (R, error)
}

// Secret is implemented by commands holding PINs or key material.
type Secret interface {
	Clear()
}

// Transmit sends cmd through client and builds its typed reply from the reassembled
// response. Secret commands and their APDU buffers are wiped once the exchange is over.
func Transmit[R any](client *iso7816.Client, cmd Command[R]) (R, error) {
	var zero R

	secret, isSecret := cmd.(Secret)
	if isSecret {
		defer secret.Clear()
	}

	apdu, err := cmd.CommandAPDU()
	if err != nil {
		return zero, err
	}
	if isSecret {
		defer apdu.Clear()
	}

	trace, err := client.Send(apdu)
	if err != nil {
		return zero, err
	}

	return cmd.NewResponse(trace.Response())
}

func newAPDU(ins iso7816.InsCode, p1, p2 byte, data []byte, ne int) *iso7816.CommandAPDU {
	instruction, _ := iso7816.NewInstruction(ins)
	return iso7816.NewCommandAPDU(iso7816.Class{}, instruction, p1, p2, data, ne)
}

func uninitialized(name string) error {
	return wrapOp("%s was not built by its constructor", name)
}
