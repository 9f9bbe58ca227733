// Package globalplatform queries the issuer security domain of the imKey
// secure element.
package globalplatform

import (
	"errors"
	"unicode/utf8"

	"github.com/imkey/imkey-go/apdu"
	"github.com/imkey/imkey-go/types"
)

var ErrInvalidSerialNumber = errors.New("globalplatform: serial number is not valid UTF-8")

type CommandSet struct {
	c types.Channel
}

func NewCommandSet(c types.Channel) *CommandSet {
	return &CommandSet{
		c: c,
	}
}

// SelectISD selects the issuer security domain and returns its response data.
func (cs *CommandSet) SelectISD() ([]byte, error) {
	resp, err := cs.c.Send(NewCommandSelectISD())
	if err = cs.checkOK(resp, err); err != nil {
		return nil, err
	}

	return resp.Data, nil
}

// GetSEID returns the secure element identifier as upper-case hex.
func (cs *CommandSet) GetSEID() (string, error) {
	resp, err := cs.query(NewCommandGetSEID())
	if err != nil {
		return "", err
	}

	return resp.DataHex(), nil
}

// GetSN returns the device serial number.
func (cs *CommandSet) GetSN() (string, error) {
	resp, err := cs.query(NewCommandGetSN())
	if err != nil {
		return "", err
	}

	if !utf8.Valid(resp.Data) {
		return "", ErrInvalidSerialNumber
	}

	return string(resp.Data), nil
}

// GetCert returns the device certificate as upper-case hex.
func (cs *CommandSet) GetCert() (string, error) {
	resp, err := cs.query(NewCommandGetCert())
	if err != nil {
		return "", err
	}

	return resp.DataHex(), nil
}

func (cs *CommandSet) query(cmd *apdu.Command) (*apdu.Response, error) {
	if _, err := cs.SelectISD(); err != nil {
		return nil, err
	}

	resp, err := cs.c.Send(cmd)
	if err = cs.checkOK(resp, err); err != nil {
		return nil, err
	}

	return resp, nil
}

func (cs *CommandSet) checkOK(resp *apdu.Response, err error) error {
	if err != nil {
		return err
	}

	return apdu.CheckResponse(resp)
}
