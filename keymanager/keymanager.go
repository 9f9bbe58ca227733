// Package keymanager holds the host identity used to bind an imKey device and
// persists it, encrypted, in the identity vault.
package keymanager

import (
	"bytes"
	"crypto/aes"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"github.com/fxamacker/cbor/v2"
	"github.com/imkey/imkey-go/crypto"
	"github.com/imkey/imkey-go/storage"
	"github.com/imkey/imkey-go/types"
)

var logger = log.New("package", "imkey/keymanager")

const vaultVersion = 1

const (
	ivSize  = aes.BlockSize
	macSize = sha256.Size
)

var (
	ErrVaultCorrupt  = errors.New("keymanager: identity vault corrupt")
	ErrNoEncryptKey  = errors.New("keymanager: vault key not derived")
	ErrEmptyIdentity = errors.New("keymanager: identity has no key pair")
)

// Identity is the host key pair and the secrets it shares with one device.
type Identity struct {
	KeyPair    *types.KeyPair
	SEPubKey   []byte
	SessionKey []byte
}

// HasSession reports whether a session key has been agreed with the device.
func (id *Identity) HasSession() bool {
	return id != nil && id.KeyPair != nil && len(id.SessionKey) > 0 && len(id.SEPubKey) > 0
}

func (id *Identity) clone() *Identity {
	return &Identity{
		KeyPair:    id.KeyPair,
		SEPubKey:   append([]byte(nil), id.SEPubKey...),
		SessionKey: append([]byte(nil), id.SessionKey...),
	}
}

type record struct {
	Version    uint8  `cbor:"v"`
	PubKey     []byte `cbor:"pub"`
	PrivKey    []byte `cbor:"priv"`
	SEPubKey   []byte `cbor:"sePub,omitempty"`
	SessionKey []byte `cbor:"session,omitempty"`
}

// KeyManager derives the vault keys for a device and tracks the identity
// activated by the last successful bind check.
type KeyManager struct {
	mu         sync.Mutex
	encKey     []byte
	macKey     []byte
	activeSEID string
	active     *Identity
}

func New() *KeyManager {
	return &KeyManager{}
}

// GenEncryptKey derives the vault keys of the device identified by seid and sn.
func (km *KeyManager) GenEncryptKey(seid, sn string) error {
	encKey, macKey, err := crypto.DeriveVaultKeys(seid, sn)
	if err != nil {
		return err
	}

	km.mu.Lock()
	defer km.mu.Unlock()

	km.encKey = encKey
	km.macKey = macKey

	return nil
}

// GenLocalKeys returns a fresh identity with a new key pair and no session.
func (km *KeyManager) GenLocalKeys() (*Identity, error) {
	kp, err := types.GenerateKeyPair()
	if err != nil {
		return nil, err
	}

	return &Identity{KeyPair: kp}, nil
}

// EncryptData seals id into a vault blob:
// version(1) || iv(16) || AES-CBC(cbor record) || HMAC-SHA256.
func (km *KeyManager) EncryptData(id *Identity) ([]byte, error) {
	if id == nil || id.KeyPair == nil {
		return nil, ErrEmptyIdentity
	}

	encKey, macKey, err := km.keys()
	if err != nil {
		return nil, err
	}

	plaintext, err := cbor.Marshal(&record{
		Version:    vaultVersion,
		PubKey:     id.KeyPair.PubKey(),
		PrivKey:    id.KeyPair.PrivKey(),
		SEPubKey:   id.SEPubKey,
		SessionKey: id.SessionKey,
	})
	if err != nil {
		return nil, err
	}

	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, err
	}

	ciphertext, err := crypto.EncryptPKCS7(plaintext, encKey, iv)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, 1+ivSize+len(ciphertext)+macSize)
	out = append(out, vaultVersion)
	out = append(out, iv...)
	out = append(out, ciphertext...)

	return append(out, crypto.MAC(macKey, out)...), nil
}

// DecryptKeys opens a vault blob. Every failure is reported as ErrVaultCorrupt.
func (km *KeyManager) DecryptKeys(ciphertext []byte) (*Identity, error) {
	encKey, macKey, err := km.keys()
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < 1+ivSize+aes.BlockSize+macSize {
		return nil, corrupt("blob too short")
	}

	if ciphertext[0] != vaultVersion {
		return nil, corrupt("unsupported version %d", ciphertext[0])
	}

	body := ciphertext[:len(ciphertext)-macSize]
	if !hmac.Equal(crypto.MAC(macKey, body), ciphertext[len(body):]) {
		return nil, corrupt("mac mismatch")
	}

	plaintext, err := crypto.DecryptPKCS7(body[1+ivSize:], encKey, body[1:1+ivSize])
	if err != nil {
		return nil, corrupt("%v", err)
	}

	var rec record
	if err := cbor.Unmarshal(plaintext, &rec); err != nil {
		return nil, corrupt("%v", err)
	}

	if rec.Version != vaultVersion {
		return nil, corrupt("unsupported record version %d", rec.Version)
	}

	kp, err := types.NewKeyPair(rec.PrivKey)
	if err != nil {
		return nil, corrupt("%v", err)
	}

	if !bytes.Equal(kp.PubKey(), rec.PubKey) {
		return nil, corrupt("public key does not match private key")
	}

	return &Identity{
		KeyPair:    kp,
		SEPubKey:   rec.SEPubKey,
		SessionKey: rec.SessionKey,
	}, nil
}

// Open loads the identity stored for seid. A missing or corrupt vault is
// replaced by a fresh identity and regenerated is true.
func (km *KeyManager) Open(store storage.Store, seid, sn string) (id *Identity, regenerated bool, err error) {
	if err := km.GenEncryptKey(seid, sn); err != nil {
		return nil, false, err
	}

	data, err := store.Get(seid)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		logger.Debug("no identity vault, generating keys", "seid", seid)
	case err != nil:
		return nil, false, err
	default:
		id, err = km.DecryptKeys(data)
		if err == nil {
			return id, false, nil
		}
		logger.Warn("identity vault unreadable, generating keys", "seid", seid, "err", err)
	}

	id, err = km.GenLocalKeys()
	if err != nil {
		return nil, false, err
	}

	return id, true, nil
}

// Persist overwrites the vault of seid with id.
func (km *KeyManager) Persist(store storage.Store, seid string, id *Identity) error {
	data, err := km.EncryptData(id)
	if err != nil {
		return err
	}

	return store.Put(seid, data)
}

// Activate makes id the identity used by later bind acquire calls.
func (km *KeyManager) Activate(seid string, id *Identity) {
	km.mu.Lock()
	defer km.mu.Unlock()

	km.activeSEID = seid
	km.active = id.clone()
}

// Active returns the identity activated last, if any.
func (km *KeyManager) Active() (string, *Identity, bool) {
	km.mu.Lock()
	defer km.mu.Unlock()

	if km.active == nil {
		return "", nil, false
	}

	return km.activeSEID, km.active.clone(), true
}

// Reset forgets the active identity and the derived vault keys.
func (km *KeyManager) Reset() {
	km.mu.Lock()
	defer km.mu.Unlock()

	km.encKey = nil
	km.macKey = nil
	km.activeSEID = ""
	km.active = nil
}

func (km *KeyManager) keys() ([]byte, []byte, error) {
	km.mu.Lock()
	defer km.mu.Unlock()

	if km.encKey == nil || km.macKey == nil {
		return nil, nil, ErrNoEncryptKey
	}

	return km.encKey, km.macKey, nil
}

func corrupt(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrVaultCorrupt, fmt.Sprintf(format, args...))
}
