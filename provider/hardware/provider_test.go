package hardware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dotside-studios/davi-nfc-bridge/eventbus"
	"github.com/dotside-studios/davi-nfc-bridge/ndef"
	"github.com/dotside-studios/davi-nfc-bridge/nfc"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeScanner returns queued scan results in order and repeats the last one.
type fakeScanner struct {
	mu      sync.Mutex
	results [][]Target
	err     error
	closed  bool
}

func (f *fakeScanner) Scan() ([]Target, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if len(f.results) == 0 {
		return nil, nil
	}
	r := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	return r, nil
}

func (f *fakeScanner) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeScanner) String() string { return "fake" }

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

func newTestProvider(open Opener) (*Provider, *collector) {
	bus := eventbus.New(zerolog.Nop())
	c := &collector{}
	bus.AddListener(nfc.EventDiscovered, c.add)
	p := New(Config{Open: open, Emitter: bus, Logger: zerolog.Nop(), PollInterval: time.Hour})
	return p, c
}

func openWith(s Scanner) Opener {
	return func(string) (Scanner, error) { return s, nil }
}

func TestProvider_PublishesReadyThenTag(t *testing.T) {
	scanner := &fakeScanner{results: [][]Target{{{UID: "04AABB", Type: "MIFARE Classic", SAK: "08"}}}}
	p, c := newTestProvider(openWith(scanner))

	p.poll()

	got := c.all()
	require.Len(t, got, 2)
	assert.Equal(t, nfc.StatusAdapterReady, got[0].Status.Message)
	assert.Equal(t, nfc.DataTypeTag, got[1].Type)
	assert.Equal(t, "04AABB", got[1].ID())
	assert.Equal(t, "08", got[1].Tag.SAK)
	assert.Equal(t, Source, got[1].Source)

	var available bool
	p.HasNFC(func(b bool) { available = b })
	assert.True(t, available)
}

func TestProvider_DeduplicatesWhileInField(t *testing.T) {
	tag := Target{UID: "01"}
	scanner := &fakeScanner{results: [][]Target{{tag}, {tag}, {}, {tag}}}
	p, c := newTestProvider(openWith(scanner))

	for i := 0; i < 4; i++ {
		p.poll()
	}

	var ids []string
	for _, d := range c.all() {
		if !d.IsStatus() {
			ids = append(ids, d.ID())
		}
	}
	assert.Equal(t, []string{"01", "01"}, ids, "published on entry and on re-entry only")
}

func TestProvider_NDEFTarget(t *testing.T) {
	target := Target{UID: "01", NDEF: [][]byte{ndef.EncodeText("hello", "en")}}
	p, c := newTestProvider(openWith(&fakeScanner{results: [][]Target{{target}}}))

	p.poll()

	got := c.all()
	require.Len(t, got, 2)
	assert.Equal(t, nfc.DataTypeNDEF, got[1].Type)
	assert.Equal(t, "hello", got[1].Messages[0][0].Data)
	assert.Equal(t, Source, got[1].Source)
}

func TestProvider_UndecodableNDEFFallsBackToTag(t *testing.T) {
	target := Target{UID: "01", NDEF: [][]byte{{0xFF}}}
	p, c := newTestProvider(openWith(&fakeScanner{results: [][]Target{{target}}}))

	p.poll()

	got := c.all()
	require.Len(t, got, 2)
	assert.Equal(t, nfc.DataTypeTag, got[1].Type)
}

func TestProvider_NoAdapterReportedOnce(t *testing.T) {
	p, c := newTestProvider(func(string) (Scanner, error) { return nil, errors.New("no device") })

	p.poll()
	p.poll()

	got := c.all()
	require.Len(t, got, 1)
	assert.Equal(t, nfc.StatusNoAdapter, got[0].Status.Message)

	var available = true
	p.HasNFC(func(b bool) { available = b })
	assert.False(t, available)
}

func TestProvider_ScanErrorClosesReader(t *testing.T) {
	scanner := &fakeScanner{}
	p, c := newTestProvider(openWith(scanner))

	p.poll()
	scanner.mu.Lock()
	scanner.err = errors.New("usb unplugged")
	scanner.mu.Unlock()
	p.poll()

	assert.True(t, scanner.closed)
	got := c.all()
	require.Len(t, got, 2)
	assert.Equal(t, nfc.StatusAdapterReady, got[0].Status.Message)
	assert.Equal(t, nfc.StatusNoAdapter, got[1].Status.Message)

	// Reconnect once the reader is back.
	scanner.mu.Lock()
	scanner.err = nil
	scanner.mu.Unlock()
	p.poll()
	got = c.all()
	require.Len(t, got, 3)
	assert.Equal(t, nfc.StatusAdapterReady, got[2].Status.Message)
}

func TestProvider_StartupDataOnce(t *testing.T) {
	scanner := &fakeScanner{results: [][]Target{{{UID: "CAFE"}}}}
	p, _ := newTestProvider(openWith(scanner))
	p.poll()

	var first, second *nfc.Discovery
	p.GetStartUpNfcData(func(d *nfc.Discovery) { first = d })
	p.GetStartUpNfcData(func(d *nfc.Discovery) { second = d })

	require.NotNil(t, first)
	assert.Equal(t, "CAFE", first.ID())
	assert.Nil(t, second)
}

func TestProvider_StartStop(t *testing.T) {
	scanner := &fakeScanner{}
	bus := eventbus.New(zerolog.Nop())
	p := New(Config{Open: openWith(scanner), Emitter: bus, Logger: zerolog.Nop(), PollInterval: 5 * time.Millisecond})

	require.NoError(t, p.Start(context.Background()))
	assert.ErrorIs(t, p.Start(context.Background()), ErrAlreadyStarted)

	p.Stop()
	assert.True(t, scanner.closed)

	var available = true
	p.HasNFC(func(b bool) { available = b })
	assert.False(t, available)

	// Stop is idempotent.
	p.Stop()
}

func TestProvider_FeedsRegistry(t *testing.T) {
	bus := eventbus.New(zerolog.Nop())
	scanner := &fakeScanner{results: [][]Target{{{UID: "01"}}, {{UID: "01"}, {UID: "02"}}}}
	p := New(Config{Open: openWith(scanner), Emitter: bus, Logger: zerolog.Nop()})

	// Tag 01 arrives before anyone subscribed.
	p.poll()

	registry := nfc.New(p, bus)
	var ids []string
	registry.AddListener(func(d *nfc.Discovery) {
		if !d.IsStatus() {
			ids = append(ids, d.ID())
		}
	})

	p.poll()
	assert.Equal(t, []string{"01", "02"}, ids)
}

func TestTarget_TagInfo(t *testing.T) {
	target := Target{UID: "01", Type: "ISO14443A", TechList: []string{"ISO14443A"}, ATQA: "0044", SAK: "00"}
	assert.Equal(t, nfc.TagInfo{ID: "01", Type: "ISO14443A", TechList: []string{"ISO14443A"}, ATQA: "0044", SAK: "00"}, target.TagInfo())
}
