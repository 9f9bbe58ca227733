package transport_test

import (
	"errors"
	"testing"
	"time"

	"github.com/imkey/imkey-go/transport"
	"github.com/imkey/imkey-go/transport/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echo(apdu []byte) []byte {
	return append(append([]byte(nil), apdu...), 0x90, 0x00)
}

func TestExchange(t *testing.T) {
	device := mocks.NewDevice(echo)
	tr := transport.NewHIDTransport(device, nil)

	for _, size := range []int{1, 5, 60, 300} {
		payload := make([]byte, size)
		payload[0] = byte(size)

		resp, err := tr.Exchange(payload)
		require.NoError(t, err)
		assert.Equal(t, echo(payload), resp)
	}

	assert.Equal(t, 4, device.CommandCount())
}

func TestExchangeSkipsKeepalives(t *testing.T) {
	device := mocks.NewDevice(mocks.Static([]byte{0x90, 0x00}))
	device.Keepalives = 3
	tr := transport.NewHIDTransport(device, nil)

	resp, err := tr.Exchange([]byte{0x00, 0xA4, 0x04, 0x00, 0x00})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x90, 0x00}, resp)
}

func TestExchangeBusyFrameIsReturned(t *testing.T) {
	device := mocks.NewDevice(mocks.Static([]byte{0x90, 0x00}))
	device.Queue(mocks.ErrorFrame(transport.PacketSize, transport.ErrCodeDeviceBusy))
	tr := transport.NewHIDTransport(device, nil)

	resp, err := tr.Exchange([]byte{0x00, 0xA4, 0x04, 0x00, 0x00})
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, transport.ErrDeviceBusy)

	var terr *transport.Error
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, byte(transport.ErrCodeDeviceBusy), terr.Code)
}

func TestExchangeOtherFramesAreStalls(t *testing.T) {
	device := mocks.NewDevice(mocks.Static([]byte{0x90, 0x00}))
	device.Queue(mocks.ErrorFrame(transport.PacketSize, transport.ErrCodeOther))
	tr := transport.NewHIDTransport(device, nil)

	resp, err := tr.Exchange([]byte{0x00, 0xA4, 0x04, 0x00, 0x00})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x90, 0x00}, resp)
}

func TestExchangeStallLimit(t *testing.T) {
	device := mocks.NewDevice(mocks.Static([]byte{0x90, 0x00}))
	device.Keepalives = 5
	tr := transport.NewHIDTransport(device, &transport.Config{MaxStallFrames: 4})

	_, err := tr.Exchange([]byte{0x00, 0xA4, 0x04, 0x00, 0x00})
	assert.ErrorIs(t, err, transport.ErrStalled)
}

func TestExchangeErrorFrame(t *testing.T) {
	device := mocks.NewDevice(mocks.Static([]byte{0x90, 0x00}))
	device.Queue(mocks.ErrorFrame(transport.PacketSize, transport.ErrCodeInvalidLength))
	tr := transport.NewHIDTransport(device, nil)

	_, err := tr.Exchange([]byte{0x00, 0xA4, 0x04, 0x00, 0x00})
	var terr *transport.Error
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, byte(transport.ErrCodeInvalidLength), terr.Code)
	assert.ErrorIs(t, err, transport.ErrInvalidLength)
}

func TestExchangeWriteError(t *testing.T) {
	device := mocks.NewDevice(echo)
	device.WriteErr = errors.New("unplugged")
	tr := transport.NewHIDTransport(device, nil)

	_, err := tr.Exchange([]byte{0x01})
	var terr *transport.Error
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, "write", terr.Op)
}

func TestCancel(t *testing.T) {
	device := mocks.NewDevice(echo)
	tr := transport.NewHIDTransport(device, nil)

	require.NoError(t, tr.Cancel())
	assert.Equal(t, 1, device.Cancelled)
	assert.Len(t, device.Written, 1)

	resp, err := tr.Exchange([]byte{0x00, 0x00})
	require.NoError(t, err)
	assert.Nil(t, resp)
	assert.Equal(t, 2, device.Cancelled)
	assert.Equal(t, 0, device.CommandCount())
}

type blockingDevice struct {
	release chan struct{}
}

func (d *blockingDevice) Write(p []byte) (int, error) { return len(p), nil }

func (d *blockingDevice) Read(p []byte) (int, error) {
	<-d.release
	return 0, errors.New("released")
}

func (d *blockingDevice) Close() error { return nil }

func TestExchangeTimeoutDisablesTransport(t *testing.T) {
	device := &blockingDevice{release: make(chan struct{})}
	defer close(device.release)

	tr := transport.NewHIDTransport(device, &transport.Config{ExchangeTimeout: 20 * time.Millisecond})

	_, err := tr.Exchange([]byte{0x01})
	assert.ErrorIs(t, err, transport.ErrTimeout)

	_, err = tr.Exchange([]byte{0x01})
	assert.ErrorIs(t, err, transport.ErrTimeout)
}

func TestClose(t *testing.T) {
	device := mocks.NewDevice(echo)
	tr := transport.NewHIDTransport(device, nil)

	require.NoError(t, tr.Close())
	assert.True(t, device.Closed)

	_, err := tr.Exchange([]byte{0x01})
	assert.ErrorIs(t, err, transport.ErrClosed)
}
