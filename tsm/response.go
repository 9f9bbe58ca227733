package tsm

import (
	"errors"
	"fmt"
)

const ReturnCodeSuccess = "000000"

var (
	ErrDeviceIllegal      = errors.New("tsm: device illegal")
	ErrDeviceNotActivated = errors.New("tsm: device not activated")
	ErrOceCertCheckFail   = errors.New("tsm: oce certificate check failed")
	ErrDeviceStopUsing    = errors.New("tsm: device stopped")
	ErrReceiptCheckFail   = errors.New("tsm: receipt check failed")
	ErrAppDownloadFail    = errors.New("tsm: applet download failed")
	ErrAppDeleteFail      = errors.New("tsm: applet delete failed")
	ErrServer             = errors.New("tsm: server error")
)

var returnCodes = map[string]error{
	"BSE0007":  ErrDeviceIllegal,
	"BSE0008":  ErrDeviceNotActivated,
	"BSE0009":  ErrOceCertCheckFail,
	"BSE0010":  ErrDeviceStopUsing,
	"BSE0015":  ErrReceiptCheckFail,
	"BAPP0006": ErrAppDownloadFail,
	"BAPP0011": ErrAppDeleteFail,
}

// ServiceResponse is the envelope of every trust service answer.
type ServiceResponse struct {
	ReturnCode string      `json:"_ReturnCode"`
	ReturnMsg  string      `json:"_ReturnMsg"`
	ReturnData interface{} `json:"_ReturnData"`
}

// CheckReturnCode maps a non-success return code to an error.
func (r *ServiceResponse) CheckReturnCode() error {
	if r.ReturnCode == ReturnCodeSuccess {
		return nil
	}

	err, ok := returnCodes[r.ReturnCode]
	if !ok {
		err = ErrServer
	}

	return fmt.Errorf("%w (%s: %s)", err, r.ReturnCode, r.ReturnMsg)
}
