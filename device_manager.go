// Package imkey binds a host to an imKey hardware wallet and exposes the
// device queries used around the binding flow.
package imkey

import (
	"bytes"
	"context"
	"crypto/rsa"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"github.com/imkey/imkey-go/channel"
	"github.com/imkey/imkey-go/crypto"
	"github.com/imkey/imkey-go/globalplatform"
	"github.com/imkey/imkey-go/keymanager"
	"github.com/imkey/imkey-go/metrics"
	"github.com/imkey/imkey-go/storage"
	"github.com/imkey/imkey-go/transport"
	"github.com/imkey/imkey-go/tsm"
	"github.com/imkey/imkey-go/types"
)

var logger = log.New("package", "imkey")

// StoreFactory opens the vault store rooted at path.
type StoreFactory func(path string) storage.Store

type Option func(*DeviceManager)

// WithNotifier sets the trust service notifier. Without one no event is sent.
func WithNotifier(n tsm.Notifier) Option {
	return func(dm *DeviceManager) {
		dm.notifier = n
	}
}

// WithAuthCodeKey replaces the key used to wrap binding codes for the trust
// service.
func WithAuthCodeKey(key *rsa.PublicKey) Option {
	return func(dm *DeviceManager) {
		dm.authCodeKey = key
	}
}

func WithStoreFactory(f StoreFactory) Option {
	return func(dm *DeviceManager) {
		dm.storeFactory = f
	}
}

// DeviceManager runs the binding protocol against one device. All operations
// are serialized.
type DeviceManager struct {
	mu           sync.Mutex
	transport    transport.Transport
	channel      *channel.HexChannel
	gp           *globalplatform.CommandSet
	imk          *CommandSet
	km           *keymanager.KeyManager
	notifier     tsm.Notifier
	authCodeKey  *rsa.PublicKey
	storeFactory StoreFactory
}

func NewDeviceManager(t transport.Transport, km *keymanager.KeyManager, opts ...Option) *DeviceManager {
	c := channel.NewHexChannel(t)
	dm := &DeviceManager{
		transport: t,
		channel:   c,
		gp:        globalplatform.NewCommandSet(c),
		imk:       NewCommandSet(c),
		km:        km,
	}

	for _, opt := range opts {
		opt(dm)
	}

	if dm.km == nil {
		dm.km = keymanager.New()
	}
	if dm.authCodeKey == nil {
		dm.authCodeKey = crypto.DefaultAuthCodeKey()
	}
	if dm.storeFactory == nil {
		dm.storeFactory = func(path string) storage.Store {
			return storage.NewOsFileStore(path)
		}
	}

	return dm
}

// BindCheck asks the device whether the identity stored under path is bound
// to it. For an unbound device, or one bound to another host, the session key
// is derived and the vault updated. The identity becomes active only when the
// whole check succeeds.
func (dm *DeviceManager) BindCheck(path string) (types.BindingStatus, error) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	status, err := dm.bindCheck(path)
	metrics.RecordBinding(metrics.OpBindCheck, status.String(), err)
	if err != nil {
		return types.BindingStatusUnknown, err
	}

	return status, nil
}

func (dm *DeviceManager) bindCheck(path string) (types.BindingStatus, error) {
	seid, err := dm.gp.GetSEID()
	if err != nil {
		return types.BindingStatusUnknown, err
	}

	sn, err := dm.gp.GetSN()
	if err != nil {
		return types.BindingStatusUnknown, err
	}

	store := dm.storeFactory(path)
	id, regenerated, err := dm.km.Open(store, seid, sn)
	if err != nil {
		return types.BindingStatusUnknown, err
	}

	code, certHex, err := dm.imk.BindCheck(id.KeyPair.PubKey())
	if err != nil {
		return types.BindingStatusUnknown, err
	}

	status, err := types.ParseBindingStatus(code)
	if err != nil {
		return types.BindingStatusUnknown, err
	}
	logger.Debug("bind check", "seid", seid, "status", status)

	if status == types.BindingStatusUnbound || status == types.BindingStatusBoundOther {
		sePub, err := types.ParseSEPublicKey(certHex)
		if err != nil {
			return types.BindingStatusUnknown, err
		}

		sessionKey, err := crypto.SessionKey(id.KeyPair.ECDSA(), sePub)
		if err != nil {
			return types.BindingStatusUnknown, err
		}

		changed := !bytes.Equal(id.SEPubKey, sePub) || !bytes.Equal(id.SessionKey, sessionKey)
		id.SEPubKey = sePub
		id.SessionKey = sessionKey

		if regenerated || changed {
			if err := dm.km.Persist(store, seid, id); err != nil {
				return types.BindingStatusUnknown, err
			}
		}

		dm.notify(tsm.NewDeviceCertCheckRequest(seid, sn, certHex), id)
	}

	dm.km.Activate(seid, id)

	return status, nil
}

// BindAcquire proves knowledge of the binding code shown on the device.
// Malformed codes are rejected before any device I/O. The vault is not
// modified.
func (dm *DeviceManager) BindAcquire(code string) (types.BindingStatus, error) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	status, err := dm.bindAcquire(code)
	metrics.RecordBinding(metrics.OpBindAcquire, status.String(), err)

	return status, err
}

func (dm *DeviceManager) bindAcquire(code string) (types.BindingStatus, error) {
	normalized, err := ValidateBindingCode(code)
	if err != nil {
		return types.BindingStatusUnknown, err
	}

	seid, id, ok := dm.km.Active()
	if !ok || !id.HasSession() {
		return types.BindingStatusUnknown, ErrBindCheckRequired
	}

	current, err := dm.gp.GetSEID()
	if err != nil {
		return types.BindingStatusUnknown, err
	}
	if current != seid {
		logger.Warn("device changed since bind check", "expected", seid, "current", current)
		return types.BindingStatusUnknown, ErrBindCheckRequired
	}

	wrapped, err := crypto.EncryptAuthCode(normalized, dm.authCodeKey)
	if err != nil {
		return types.BindingStatusUnknown, err
	}
	dm.notify(tsm.NewAuthCodeStorageRequest(seid, wrapped), id)

	hostPub := id.KeyPair.PubKey()
	proof, err := crypto.IdentityProof(normalized, hostPub, id.SEPubKey, id.SessionKey)
	if err != nil {
		return types.BindingStatusUnknown, err
	}

	result, err := dm.imk.IdentityVerify(hostPub, proof)
	if err != nil {
		return types.BindingStatusUnknown, err
	}

	status, err := types.ParseBindingStatus(result)
	if err != nil {
		return types.BindingStatusUnknown, err
	}

	if status == types.BindingStatusAuthCodeError {
		return status, ErrAuthCodeMismatch
	}

	return status, nil
}

// DisplayBindCode makes the device generate and show a new binding code.
func (dm *DeviceManager) DisplayBindCode() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	err := dm.imk.GenerateAuthCode()
	metrics.RecordBinding(metrics.OpDisplayBindCode, metrics.ResultSuccess, err)

	return err
}

func (dm *DeviceManager) GetSEID() (string, error) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	return dm.gp.GetSEID()
}

func (dm *DeviceManager) GetSN() (string, error) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	return dm.gp.GetSN()
}

func (dm *DeviceManager) GetCert() (string, error) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	return dm.gp.GetCert()
}

// SendBatch sends raw hex APDUs in order and returns every response and the
// status word of the last one.
func (dm *DeviceManager) SendBatch(commands []string) ([]string, string, error) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	return dm.channel.SendBatch(commands)
}

// Cancel aborts the exchange in progress.
func (dm *DeviceManager) Cancel() error {
	return dm.transport.Cancel()
}

func (dm *DeviceManager) Close() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	return dm.transport.Close()
}

func (dm *DeviceManager) notify(req tsm.Request, id *keymanager.Identity) {
	if dm.notifier == nil {
		return
	}

	if err := tsm.Sign(req, id.KeyPair); err != nil {
		logger.Warn("failed to sign trust service request", "path", req.Path(), "err", err)
		return
	}

	if err := dm.notifier.Notify(context.Background(), req); err != nil {
		logger.Warn("trust service notification failed", "path", req.Path(), "err", err)
	}
}
