package imkey

import (
	"github.com/imkey/imkey-go/apdu"
	"github.com/imkey/imkey-go/types"
)

// CommandSet drives the IMK binding applet.
type CommandSet struct {
	c types.Channel
}

func NewCommandSet(c types.Channel) *CommandSet {
	return &CommandSet{
		c: c,
	}
}

func (cs *CommandSet) Select() error {
	resp, err := cs.c.Send(NewCommandSelect(IMKAID))
	return cs.checkOK(resp, err)
}

// BindCheck returns the binding status code and the secure element
// certificate, both as upper-case hex.
func (cs *CommandSet) BindCheck(hostPubKey []byte) (string, string, error) {
	if err := cs.Select(); err != nil {
		return "", "", err
	}

	resp, err := cs.c.Send(NewCommandBindCheck(hostPubKey))
	if err = cs.checkOK(resp, err); err != nil {
		return "", "", err
	}

	return types.ParseBindCheckResponse(resp.DataHex())
}

// IdentityVerify returns the binding result code.
func (cs *CommandSet) IdentityVerify(hostPubKey, proof []byte) (string, error) {
	if err := cs.Select(); err != nil {
		return "", err
	}

	resp, err := cs.c.Send(NewCommandIdentityVerify(hostPubKey, proof))
	if err = cs.checkOK(resp, err); err != nil {
		return "", err
	}

	return resp.DataHex(), nil
}

func (cs *CommandSet) GenerateAuthCode() error {
	if err := cs.Select(); err != nil {
		return err
	}

	resp, err := cs.c.Send(NewCommandGenerateAuthCode())
	return cs.checkOK(resp, err)
}

func (cs *CommandSet) checkOK(resp *apdu.Response, err error) error {
	if err != nil {
		return err
	}

	return apdu.CheckResponse(resp)
}
