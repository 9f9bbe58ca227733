package apdu

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"strings"
)

// ErrDataTooLong is returned when a command payload does not fit in a short APDU.
var ErrDataTooLong = errors.New("apdu: command data longer than 255 bytes")

// Command struct represent the data sent as an APDU command with CLA, Ins, P1, P2, Lc, Data, and Le.
type Command struct {
	cla        uint8
	ins        uint8
	p1         uint8
	p2         uint8
	data       []byte
	le         uint8
	requiresLe bool
}

// NewCommand returns a new apdu Command.
func NewCommand(cla, ins, p1, p2 uint8, data []byte) *Command {
	return &Command{
		cla:  cla,
		ins:  ins,
		p1:   p1,
		p2:   p2,
		data: data,
	}
}

// SetLe sets the expected length of the response.
func (c *Command) SetLe(le uint8) {
	c.requiresLe = true
	c.le = le
}

// Le returns if the command requires an expected length and the expected length value.
func (c *Command) Le() (bool, uint8) {
	return c.requiresLe, c.le
}

func (c *Command) Cla() uint8 {
	return c.cla
}

func (c *Command) Ins() uint8 {
	return c.ins
}

func (c *Command) P1() uint8 {
	return c.p1
}

func (c *Command) P2() uint8 {
	return c.p2
}

func (c *Command) Data() []byte {
	return c.data
}

// Serialize serializes the command into a raw slice of bytes.
func (c *Command) Serialize() ([]byte, error) {
	if len(c.data) > 0xFF {
		return nil, ErrDataTooLong
	}

	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.BigEndian, [4]uint8{c.cla, c.ins, c.p1, c.p2}); err != nil {
		return nil, err
	}

	if len(c.data) > 0 {
		buf.WriteByte(uint8(len(c.data)))
		buf.Write(c.data)
	}

	if c.requiresLe {
		buf.WriteByte(c.le)
	}

	return buf.Bytes(), nil
}

// Hex returns the serialized command as an upper-case hex string.
func (c *Command) Hex() (string, error) {
	raw, err := c.Serialize()
	if err != nil {
		return "", err
	}

	return strings.ToUpper(hex.EncodeToString(raw)), nil
}
