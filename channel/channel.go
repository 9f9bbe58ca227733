// Package channel sends APDUs to the secure element, either as structured
// commands or as hex strings.
package channel

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"github.com/imkey/imkey-go/apdu"
	"github.com/imkey/imkey-go/metrics"
)

var logger = log.New("package", "imkey/channel")

var ErrInvalidHex = errors.New("channel: invalid hex command")

// Transmitter exchanges raw APDU bytes with the device.
type Transmitter interface {
	Exchange(payload []byte) ([]byte, error)
}

// HexChannel is the APDU channel used by the command sets. It is not safe for
// concurrent use on its own; the transport serializes exchanges.
type HexChannel struct {
	t Transmitter
}

func NewHexChannel(t Transmitter) *HexChannel {
	return &HexChannel{t: t}
}

// Exchange sends the hex encoded command and returns the response, status
// word included, as upper-case hex.
func (c *HexChannel) Exchange(commandHex string) (string, error) {
	raw, err := hex.DecodeString(commandHex)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidHex, err)
	}

	resp, err := c.exchange(raw)
	if err != nil {
		return "", err
	}

	return strings.ToUpper(hex.EncodeToString(resp)), nil
}

// Send serializes cmd and parses the device answer. The status word is not
// checked.
func (c *HexChannel) Send(cmd *apdu.Command) (*apdu.Response, error) {
	raw, err := cmd.Serialize()
	if err != nil {
		return nil, err
	}

	resp, err := c.exchange(raw)
	if err != nil {
		return nil, err
	}

	return apdu.ParseResponse(resp)
}

// SendBatch sends commands in order and stops at the first failure. It
// returns every response received and the status word of the last one. A
// cancel command has no response, so a batch ending with one has no status
// word.
func (c *HexChannel) SendBatch(commands []string) ([]string, string, error) {
	responses := make([]string, 0, len(commands))
	for _, command := range commands {
		resp, err := c.Exchange(command)
		if err != nil {
			return responses, "", err
		}
		responses = append(responses, resp)
	}

	if len(responses) == 0 {
		return responses, "", nil
	}

	last := responses[len(responses)-1]
	if last == "" {
		return responses, "", nil
	}
	if len(last) < 4 {
		return responses, "", apdu.ErrBadRawResponse
	}

	return responses, last[len(last)-4:], nil
}

// SelectApplet selects the applet identified by aid.
func (c *HexChannel) SelectApplet(aid []byte) error {
	cmd := apdu.NewCommand(0x00, 0xA4, 0x04, 0x00, aid)
	resp, err := c.Send(cmd)
	if err != nil {
		return err
	}

	return apdu.CheckResponse(resp)
}

func (c *HexChannel) exchange(raw []byte) ([]byte, error) {
	logger.Debug("sending apdu", "apdu", fmt.Sprintf("%X", raw))
	resp, err := c.t.Exchange(raw)
	metrics.RecordAPDU(err)
	if err != nil {
		logger.Debug("apdu exchange failed", "error", err)
		return nil, err
	}
	logger.Debug("apdu response", "response", fmt.Sprintf("%X", resp))

	return resp, nil
}
