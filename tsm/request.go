package tsm

import (
	"encoding/hex"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/imkey/imkey-go/types"
)

const (
	PathAuthCodeStorage = "/authCode/addAuthCode"
	PathDeviceCertCheck = "/seInfo/deviceCertCheck"
)

// Envelope carries the fields shared by every request. Signature and RecID
// are computed over the request serialized without them.
type Envelope struct {
	RequestID string `json:"requestId"`
	Signature string `json:"signature,omitempty"`
	RecID     *byte  `json:"recId,omitempty"`
}

func (e *Envelope) envelope() *Envelope {
	return e
}

// Request is a trust service event.
type Request interface {
	Path() string
	envelope() *Envelope
}

// AuthCodeStorageRequest stores the wrapped binding code of a device.
type AuthCodeStorageRequest struct {
	Envelope
	SEID     string `json:"seid"`
	AuthCode string `json:"authCode"`
}

func NewAuthCodeStorageRequest(seid, authCode string) *AuthCodeStorageRequest {
	return &AuthCodeStorageRequest{
		Envelope: Envelope{RequestID: uuid.NewString()},
		SEID:     seid,
		AuthCode: authCode,
	}
}

func (r *AuthCodeStorageRequest) Path() string {
	return PathAuthCodeStorage
}

// DeviceCertCheckRequest asks the trust service to verify a device certificate.
type DeviceCertCheckRequest struct {
	Envelope
	SEID       string `json:"seid"`
	SN         string `json:"sn"`
	DeviceCert string `json:"deviceCert"`
}

func NewDeviceCertCheckRequest(seid, sn, deviceCert string) *DeviceCertCheckRequest {
	return &DeviceCertCheckRequest{
		Envelope:   Envelope{RequestID: uuid.NewString()},
		SEID:       seid,
		SN:         sn,
		DeviceCert: deviceCert,
	}
}

func (r *DeviceCertCheckRequest) Path() string {
	return PathDeviceCertCheck
}

// Sign signs req with the host key pair.
func Sign(req Request, kp *types.KeyPair) error {
	env := req.envelope()
	env.Signature = ""
	env.RecID = nil

	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}

	sig, err := types.SignMessage(kp, payload)
	if err != nil {
		return err
	}

	v := sig.V()
	env.Signature = hex.EncodeToString(sig.DER())
	env.RecID = &v

	return nil
}
