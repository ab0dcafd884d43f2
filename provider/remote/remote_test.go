package remote

import (
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dotside-studios/davi-nfc-bridge/eventbus"
	"github.com/dotside-studios/davi-nfc-bridge/ndef"
	"github.com/dotside-studios/davi-nfc-bridge/nfc"
	"github.com/dotside-studios/davi-nfc-bridge/protocol"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	mu  sync.Mutex
	got []*nfc.Discovery
}

func (c *collector) add(d *nfc.Discovery) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, d)
}

func (c *collector) all() []*nfc.Discovery {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*nfc.Discovery(nil), c.got...)
}

func (c *collector) waitFor(t *testing.T, n int) []*nfc.Discovery {
	t.Helper()
	require.Eventually(t, func() bool { return len(c.all()) >= n }, 2*time.Second, 5*time.Millisecond)
	return c.all()
}

type fixture struct {
	provider *Provider
	events   *collector
	server   *httptest.Server
	offset   atomic.Int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	bus := eventbus.New(zerolog.Nop())
	f := &fixture{events: &collector{}}
	bus.AddListener(nfc.EventDiscovered, f.events.add)

	f.provider = New(Config{Emitter: bus, Logger: zerolog.Nop(), DeviceTimeout: time.Minute})
	f.provider.now = func() time.Time { return time.Now().Add(time.Duration(f.offset.Load())) }
	f.server = httptest.NewServer(f.provider)
	t.Cleanup(func() {
		f.provider.Stop()
		f.server.Close()
	})
	return f
}

func (f *fixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{"id": "1", "type": msgType, "payload": payload}))
}

func register(t *testing.T, conn *websocket.Conn, nfcEnabled bool) string {
	t.Helper()
	send(t, conn, protocol.TypeRegisterDevice, protocol.DeviceRegistrationRequest{
		DeviceName:   "Pixel",
		Platform:     "android",
		Capabilities: protocol.DeviceCapabilities{CanRead: true, NFCEnabled: nfcEnabled},
	})

	var resp struct {
		Type    string                              `json:"type"`
		Success bool                                `json:"success"`
		Payload protocol.DeviceRegistrationResponse `json:"payload"`
	}
	require.NoError(t, conn.ReadJSON(&resp))
	require.Equal(t, protocol.TypeRegisterDeviceResponse, resp.Type)
	require.True(t, resp.Success)
	_, err := uuid.Parse(resp.Payload.DeviceID)
	require.NoError(t, err)
	return resp.Payload.DeviceID
}

func hasNFC(p *Provider) bool {
	var available bool
	p.HasNFC(func(b bool) { available = b })
	return available
}

func TestRemote_RegisterAndScan(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)
	deviceID := register(t, conn, true)

	got := f.events.waitFor(t, 1)
	assert.Equal(t, nfc.StatusAdapterReady, got[0].Status.Message)
	assert.True(t, hasNFC(f.provider))
	assert.Equal(t, 1, f.provider.DeviceCount())

	send(t, conn, protocol.TypeTagScanned, protocol.TagScanned{
		DeviceID:     deviceID,
		UID:          "04:ab:cd:ef",
		NDEFMessages: [][]byte{ndef.EncodeText("hello", "en")},
	})
	got = f.events.waitFor(t, 2)
	assert.Equal(t, nfc.DataTypeNDEF, got[1].Type)
	assert.Equal(t, "hello", got[1].Messages[0][0].Data)
	assert.Equal(t, Source, got[1].Source)

	send(t, conn, protocol.TypeTagScanned, protocol.TagScanned{UID: "04:ab:cd:ef", Type: "NTAG215"})
	got = f.events.waitFor(t, 3)
	assert.Equal(t, nfc.DataTypeTag, got[2].Type)
	assert.Equal(t, "04ABCDEF", got[2].ID())
	assert.Equal(t, []string{"ISO14443A"}, got[2].Tag.TechList)
}

func TestRemote_NFCStateTogglesAvailability(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)
	register(t, conn, false)
	assert.False(t, hasNFC(f.provider))

	send(t, conn, protocol.TypeNFCState, protocol.NFCState{Enabled: true})
	got := f.events.waitFor(t, 1)
	assert.Equal(t, nfc.StatusAdapterReady, got[0].Status.Message)

	send(t, conn, protocol.TypeNFCState, protocol.NFCState{Enabled: false})
	got = f.events.waitFor(t, 2)
	assert.Equal(t, nfc.StatusNoAdapter, got[1].Status.Message)
	assert.False(t, hasNFC(f.provider))
}

func TestRemote_DisconnectUnregisters(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)
	register(t, conn, true)
	f.events.waitFor(t, 1)

	conn.Close()

	require.Eventually(t, func() bool { return f.provider.DeviceCount() == 0 }, 2*time.Second, 5*time.Millisecond)
	got := f.events.waitFor(t, 2)
	assert.Equal(t, nfc.StatusNoAdapter, got[1].Status.Message)
}

func TestRemote_RequiresRegistrationFirst(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)
	send(t, conn, protocol.TypeTagScanned, protocol.TagScanned{UID: "01"})

	var resp protocol.Response
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, protocol.TypeError, resp.Type)
	assert.False(t, resp.Success)
	assert.Equal(t, 0, f.provider.DeviceCount())
}

func TestRemote_RejectsBadMessages(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)
	register(t, conn, true)

	send(t, conn, protocol.TypeTagScanned, protocol.TagScanned{UID: "not hex"})
	var resp protocol.Response
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, protocol.TypeError, resp.Type)

	send(t, conn, protocol.TypeTagScanned, protocol.TagScanned{DeviceID: "someone-else", UID: "01"})
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, map[string]any{"code": protocol.ErrCodeInvalidDevice}, resp.Payload)

	send(t, conn, "bogus", nil)
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, map[string]any{"code": protocol.ErrCodeUnknownType}, resp.Payload)

	// Only the adapter status made it through.
	assert.Len(t, f.events.all(), 1)
}

func TestRemote_PrunesInactiveDevices(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)
	register(t, conn, true)
	f.events.waitFor(t, 1)

	f.provider.pruneInactive()
	assert.Equal(t, 1, f.provider.DeviceCount(), "fresh device kept")

	f.offset.Store(int64(2 * time.Minute))
	f.provider.pruneInactive()
	assert.Equal(t, 0, f.provider.DeviceCount())
	assert.False(t, hasNFC(f.provider))

	// The connection was closed by the bridge.
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func TestRemote_StartupDataOnce(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)
	register(t, conn, true)
	send(t, conn, protocol.TypeTagScanned, protocol.TagScanned{UID: "CAFE"})
	f.events.waitFor(t, 2)

	var first, second *nfc.Discovery
	f.provider.GetStartUpNfcData(func(d *nfc.Discovery) { first = d })
	f.provider.GetStartUpNfcData(func(d *nfc.Discovery) { second = d })

	require.NotNil(t, first)
	assert.Equal(t, "CAFE", first.ID())
	assert.Nil(t, second)
}
