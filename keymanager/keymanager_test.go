package keymanager

import (
	"errors"
	"testing"

	"github.com/imkey/imkey-go/storage"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	seid = "19060000000200860001010000000014"
	sn   = "imKey01191200001"
)

func newIdentity(t *testing.T, km *KeyManager) *Identity {
	id, err := km.GenLocalKeys()
	require.NoError(t, err)
	id.SEPubKey = append([]byte{0x04}, make([]byte, 64)...)
	id.SessionKey = []byte("0123456789abcdef")
	return id
}

func TestEncryptDecrypt(t *testing.T) {
	km := New()
	require.NoError(t, km.GenEncryptKey(seid, sn))

	id := newIdentity(t, km)
	blob, err := km.EncryptData(id)
	require.NoError(t, err)
	assert.Equal(t, byte(vaultVersion), blob[0])

	out, err := km.DecryptKeys(blob)
	require.NoError(t, err)
	assert.Equal(t, id.KeyPair.PrivKey(), out.KeyPair.PrivKey())
	assert.Equal(t, id.KeyPair.PubKey(), out.KeyPair.PubKey())
	assert.Equal(t, id.SEPubKey, out.SEPubKey)
	assert.Equal(t, id.SessionKey, out.SessionKey)
	assert.True(t, out.HasSession())
}

func TestDecryptWithOtherDeviceFails(t *testing.T) {
	km := New()
	require.NoError(t, km.GenEncryptKey(seid, sn))
	blob, err := km.EncryptData(newIdentity(t, km))
	require.NoError(t, err)

	other := New()
	require.NoError(t, other.GenEncryptKey(seid, "imKey01191200002"))
	_, err = other.DecryptKeys(blob)
	assert.ErrorIs(t, err, ErrVaultCorrupt)

	require.NoError(t, other.GenEncryptKey("19060000000200860001010000000015", sn))
	_, err = other.DecryptKeys(blob)
	assert.ErrorIs(t, err, ErrVaultCorrupt)
}

func TestDecryptCorruptBlobs(t *testing.T) {
	km := New()
	require.NoError(t, km.GenEncryptKey(seid, sn))
	blob, err := km.EncryptData(newIdentity(t, km))
	require.NoError(t, err)

	flipped := append([]byte(nil), blob...)
	flipped[20] ^= 0x01

	badVersion := append([]byte(nil), blob...)
	badVersion[0] = 0x02

	for name, data := range map[string][]byte{
		"empty":       {},
		"short":       blob[:40],
		"flipped":     flipped,
		"bad version": badVersion,
		"truncated":   blob[:len(blob)-1],
	} {
		_, err := km.DecryptKeys(data)
		assert.ErrorIs(t, err, ErrVaultCorrupt, name)
	}
}

func TestEncryptWithoutKey(t *testing.T) {
	km := New()
	id, err := km.GenLocalKeys()
	require.NoError(t, err)

	_, err = km.EncryptData(id)
	assert.ErrorIs(t, err, ErrNoEncryptKey)

	_, err = km.DecryptKeys([]byte{0x01})
	assert.ErrorIs(t, err, ErrNoEncryptKey)
}

func TestOpenAbsentVault(t *testing.T) {
	store := storage.NewFileStore(afero.NewMemMapFs(), "/vault")
	km := New()

	id, regenerated, err := km.Open(store, seid, sn)
	require.NoError(t, err)
	assert.True(t, regenerated)
	assert.NotNil(t, id.KeyPair)
	assert.False(t, id.HasSession())

	exists, err := store.Exists(seid)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestOpenPersistedVault(t *testing.T) {
	store := storage.NewFileStore(afero.NewMemMapFs(), "/vault")
	km := New()

	id, _, err := km.Open(store, seid, sn)
	require.NoError(t, err)
	id.SEPubKey = []byte{0x04, 0x01}
	id.SessionKey = []byte("0123456789abcdef")
	require.NoError(t, km.Persist(store, seid, id))

	reopened, regenerated, err := New().Open(store, seid, sn)
	require.NoError(t, err)
	assert.False(t, regenerated)
	assert.Equal(t, id.KeyPair.PrivKey(), reopened.KeyPair.PrivKey())
	assert.Equal(t, id.SessionKey, reopened.SessionKey)
}

func TestOpenCorruptVaultRegenerates(t *testing.T) {
	store := storage.NewFileStore(afero.NewMemMapFs(), "/vault")
	require.NoError(t, store.Put(seid, []byte("garbage that is not a vault blob at all, not even close")))

	id, regenerated, err := New().Open(store, seid, sn)
	require.NoError(t, err)
	assert.True(t, regenerated)
	assert.NotNil(t, id.KeyPair)
}

type failingStore struct {
	storage.Store
}

func (failingStore) Get(string) ([]byte, error) {
	return nil, errors.New("disk on fire")
}

func TestOpenStorageError(t *testing.T) {
	_, _, err := New().Open(failingStore{}, seid, sn)
	assert.EqualError(t, err, "disk on fire")
}

func TestActivate(t *testing.T) {
	km := New()
	_, _, ok := km.Active()
	assert.False(t, ok)

	require.NoError(t, km.GenEncryptKey(seid, sn))
	id := newIdentity(t, km)
	km.Activate(seid, id)

	id.SessionKey[0] = 'X'

	activeSEID, active, ok := km.Active()
	require.True(t, ok)
	assert.Equal(t, seid, activeSEID)
	assert.Equal(t, []byte("0123456789abcdef"), active.SessionKey)

	km.Reset()
	_, _, ok = km.Active()
	assert.False(t, ok)
}
