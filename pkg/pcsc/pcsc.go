// Package pcsc connects the iso7816 client to a card through the PC/SC daemon.
package pcsc

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ebfe/scard"
)

// ErrNoReader is returned when no reader matches the requested selection.
var ErrNoReader = errors.New("no matching smart card reader")

// Connection wraps a PC/SC context and the card connected in one of its readers.
// It implements iso7816.Transmitter.
type Connection struct {
	ctx    *scard.Context
	Card   *scard.Card
	Reader string
}

// ListReaders returns the names of the readers currently known to the PC/SC daemon.
func ListReaders() ([]string, error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, fmt.Errorf("establish context: %w", err)
	}
	defer ctx.Release()

	readers, err := ctx.ListReaders()
	if err != nil {
		return nil, fmt.Errorf("list readers: %w", err)
	}
	return readers, nil
}

// Connect opens a shared connection to the card in the selected reader.
// A non-empty name selects the first reader whose name contains it, otherwise
// index picks the reader by position.
func Connect(index int, name string) (*Connection, error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, fmt.Errorf("establish context: %w", err)
	}

	readers, err := ctx.ListReaders()
	if err != nil {
		ctx.Release()
		return nil, fmt.Errorf("list readers: %w", err)
	}

	reader, err := selectReader(readers, index, name)
	if err != nil {
		ctx.Release()
		return nil, err
	}

	// T=0 or T=1 only, ProtocolAny makes some drivers fail with "Parameter Incorrect".
	card, err := ctx.Connect(reader, scard.ShareShared, scard.ProtocolT0|scard.ProtocolT1)
	if err != nil {
		ctx.Release()
		return nil, fmt.Errorf("connect to %q: %w", reader, err)
	}

	return &Connection{ctx: ctx, Card: card, Reader: reader}, nil
}

func selectReader(readers []string, index int, name string) (string, error) {
	if len(readers) == 0 {
		return "", ErrNoReader
	}
	if name != "" {
		for _, r := range readers {
			if strings.Contains(strings.ToLower(r), strings.ToLower(name)) {
				return r, nil
			}
		}
		return "", fmt.Errorf("%w: no reader name contains %q", ErrNoReader, name)
	}
	if index < 0 || index >= len(readers) {
		return "", fmt.Errorf("%w: index %d out of range (0..%d)", ErrNoReader, index, len(readers)-1)
	}
	return readers[index], nil
}

// Transmit sends a raw APDU to the card.
func (c *Connection) Transmit(apdu []byte) ([]byte, error) {
	if c == nil || c.Card == nil {
		return nil, errors.New("connection not established")
	}
	return c.Card.Transmit(apdu)
}

// WithTransaction runs fn inside an exclusive PC/SC transaction so that no other
// application can interleave commands, e.g. between the two rounds of a
// management key authentication.
func (c *Connection) WithTransaction(fn func() error) (err error) {
	if c == nil || c.Card == nil {
		return errors.New("connection not established")
	}
	if err := c.Card.BeginTransaction(); err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if endErr := c.Card.EndTransaction(scard.LeaveCard); endErr != nil {
			err = errors.Join(err, fmt.Errorf("end transaction: %w", endErr))
		}
	}()
	return fn()
}

// Close disconnects the card and releases the PC/SC context.
func (c *Connection) Close() error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.Card != nil {
		if err := c.Card.Disconnect(scard.LeaveCard); err != nil {
			errs = append(errs, fmt.Errorf("disconnect: %w", err))
		}
	}
	if c.ctx != nil {
		if err := c.ctx.Release(); err != nil {
			errs = append(errs, fmt.Errorf("release context: %w", err))
		}
	}
	return errors.Join(errs...)
}
