package transport

import (
	"github.com/karalabe/usb"
)

// OpenUSB opens the first raw USB device matching vendorID and productID.
func OpenUSB(vendorID, productID uint16) (Device, error) {
	if !usb.Supported() {
		return nil, ErrUSBUnsupported
	}

	infos, err := usb.EnumerateRaw(vendorID, productID)
	if err != nil {
		return nil, &Error{Op: "enumerate", Err: err}
	}

	if len(infos) == 0 {
		return nil, ErrNoDevice
	}

	logger.Debug("opening usb device", "path", infos[0].Path, "product", infos[0].Product)
	device, err := infos[0].Open()
	if err != nil {
		return nil, &Error{Op: "open", Err: err}
	}

	return device, nil
}
