/*
Package piv implements the command/response layer of the PIV application (NIST SP 800-73)
with the YubiKey extensions.

Every command is a value built by a validating constructor. Constructors reject invalid
slots, key types, lengths and data tags before any byte is produced. A command turns into
an ISO 7816-4 APDU with CommandAPDU() and interprets the card reply with NewResponse():

	cmd, err := piv.NewSignCommand(piv.SlotSignature, piv.KeyTypeECCP256, digest)
	if err != nil {
	    return err
	}

	resp, err := piv.Transmit[*piv.SignResponse](client, cmd)
	if err != nil {
	    return err
	}

	sig, err := resp.Signature()

# Outcomes

The status word of every reply is classified into a ResponseStatus. Device refusals are
not Go errors: callers branch on Status() and, for PIN and PUK verification, on the
remaining retry count. Typed accessors such as Signature() fail with ErrInvalidOperation
when the outcome was not Success, and with ErrMalformedResponse when a successful reply
does not have the expected structure.

# Management key authentication

ManagementKeyAuthentication drives the two round GENERAL AUTHENTICATE exchange unlocking
administrative commands. AuthenticateManagementKey runs it end to end over a Client.
*/
package piv
