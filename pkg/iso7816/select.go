package iso7816

import "fmt"

// SELECT (INS A4): P1 names the selection method, P2 combines the response
// type (bits 4-3) and the file occurrence (bits 2-1).

// SelectionMethod is the P1 byte of SELECT.
type SelectionMethod byte

const (
	SelectByFileID          SelectionMethod = 0x00
	SelectChildDF           SelectionMethod = 0x01
	SelectEFUnderCurrentDF  SelectionMethod = 0x02
	SelectParentDF          SelectionMethod = 0x03
	SelectByDFName          SelectionMethod = 0x04
	SelectPathFromMF        SelectionMethod = 0x08
	SelectPathFromCurrentDF SelectionMethod = 0x09
)

var selectionMethodNames = map[SelectionMethod]string{
	SelectByFileID:          "Select by File ID",
	SelectChildDF:           "Select Child DF",
	SelectEFUnderCurrentDF:  "Select EF under current DF",
	SelectParentDF:          "Select Parent DF",
	SelectByDFName:          "Select by DF Name (AID)",
	SelectPathFromMF:        "Select Path from MF",
	SelectPathFromCurrentDF: "Select Path from Current DF",
}

func (s SelectionMethod) String() string {
	if name, ok := selectionMethodNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Unknown Method (0x%02X)", byte(s))
}

// FileOccurrence is carried by bits 2-1 of P2.
type FileOccurrence byte

const (
	FirstOrOnlyOccurrence FileOccurrence = iota
	LastOccurrence
	NextOccurrence
	PreviousOccurrence
)

func (f FileOccurrence) String() string {
	return [...]string{"First/Only", "Last", "Next", "Previous"}[f&0x03]
}

// SelectionControl is carried by bits 4-3 of P2.
type SelectionControl byte

const (
	ReturnFCI    SelectionControl = 0x00
	ReturnFCP    SelectionControl = 0x04
	ReturnFMD    SelectionControl = 0x08
	ReturnNoData SelectionControl = 0x0C
)

func (s SelectionControl) String() string {
	return [...]string{"Return FCI", "Return FCP", "Return FMD", "No Response Data"}[(s&0x0C)>>2]
}

// NewSelectCommand builds a SELECT command. Le is only sent when the command has
// no data field: T=0 cannot carry both, and the reply of a case 4 command comes
// back through 61xx and GET RESPONSE.
func NewSelectCommand(cla Class, method SelectionMethod, occurrence FileOccurrence, ctrl SelectionControl, data []byte) *CommandAPDU {
	ins, _ := NewInstruction(INS_SELECT)

	ne := 0
	if len(data) == 0 && ctrl != ReturnNoData {
		ne = MaxShortLe
	}
	return NewCommandAPDU(cla, ins, byte(method), byte(ctrl)|byte(occurrence), data, ne)
}

// SelectByAID selects an application by its (possibly truncated) AID.
func SelectByAID(cla Class, aid []byte) *CommandAPDU {
	return NewSelectCommand(cla, SelectByDFName, FirstOrOnlyOccurrence, ReturnFCI, aid)
}
