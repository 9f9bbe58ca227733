package types

import "github.com/imkey/imkey-go/apdu"

// Channel carries command APDUs to a device applet. channel.HexChannel is the
// implementation used over USB.
type Channel interface {
	Send(*apdu.Command) (*apdu.Response, error)
}
