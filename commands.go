package imkey

import (
	"github.com/imkey/imkey-go/apdu"
)

const (
	ClaIMK = 0x80

	InsSelect           = 0xA4
	InsBindCheck        = 0x71
	InsGenerateAuthCode = 0x72
	InsIdentityVerify   = 0x73

	P1SelectByAID = 0x04
)

// IMKAID is the identifier of the binding applet ("i_imk").
var IMKAID = []byte{0x69, 0x5F, 0x69, 0x6D, 0x6B}

func NewCommandSelect(aid []byte) *apdu.Command {
	return apdu.NewCommand(0x00, InsSelect, P1SelectByAID, 0x00, aid)
}

// NewCommandBindCheck asks the applet whether hostPubKey is bound.
func NewCommandBindCheck(hostPubKey []byte) *apdu.Command {
	return apdu.NewCommand(ClaIMK, InsBindCheck, 0x00, 0x00, hostPubKey)
}

// NewCommandIdentityVerify submits the host key followed by the encrypted
// identity proof.
func NewCommandIdentityVerify(hostPubKey, proof []byte) *apdu.Command {
	data := make([]byte, 0, len(hostPubKey)+len(proof))
	data = append(data, hostPubKey...)
	data = append(data, proof...)

	return apdu.NewCommand(ClaIMK, InsIdentityVerify, 0x00, 0x00, data)
}

// NewCommandGenerateAuthCode makes the device show a new binding code.
func NewCommandGenerateAuthCode() *apdu.Command {
	cmd := apdu.NewCommand(ClaIMK, InsGenerateAuthCode, 0x00, 0x00, nil)
	cmd.SetLe(0)
	return cmd
}
