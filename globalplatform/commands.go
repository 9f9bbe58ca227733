package globalplatform

import "github.com/imkey/imkey-go/apdu"

const (
	ClaISO7816    = 0x00
	ClaGp         = 0x80
	InsSelect     = 0xA4
	InsGetData    = 0xCA
	InsGetSEID    = 0xCB
	P1SelectByAID = 0x04
	P1GetSEID     = 0x80
	P2GetSN       = 0x44
	P1GetCert     = 0xBF
	P2GetCert     = 0x21
)

var (
	seidQuery = []byte{0xDF, 0xFF, 0x02, 0x81, 0x01}
	certQuery = []byte{0xA6, 0x04, 0x83, 0x02, 0x15, 0x18}
)

// NewCommandSelectISD selects the issuer security domain (00A4040000).
func NewCommandSelectISD() *apdu.Command {
	cmd := apdu.NewCommand(ClaISO7816, InsSelect, P1SelectByAID, 0x00, nil)
	cmd.SetLe(0)
	return cmd
}

// NewCommandGetSEID reads the secure element identifier (80CB800005DFFF028101).
func NewCommandGetSEID() *apdu.Command {
	return apdu.NewCommand(ClaGp, InsGetSEID, P1GetSEID, 0x00, seidQuery)
}

// NewCommandGetSN reads the device serial number (80CA004400).
func NewCommandGetSN() *apdu.Command {
	cmd := apdu.NewCommand(ClaGp, InsGetData, 0x00, P2GetSN, nil)
	cmd.SetLe(0)
	return cmd
}

// NewCommandGetCert reads the device certificate (80CABF2106A6048302151800).
func NewCommandGetCert() *apdu.Command {
	cmd := apdu.NewCommand(ClaGp, InsGetData, P1GetCert, P2GetCert, certQuery)
	cmd.SetLe(0)
	return cmd
}
