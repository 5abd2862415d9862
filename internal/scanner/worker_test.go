package scanner

import (
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grossrc/DigiKey-Organizer/internal/decode"
	"github.com/grossrc/DigiKey-Organizer/internal/mh10"
	"github.com/grossrc/DigiKey-Organizer/internal/preprocess"
)

const (
	completeLabel = "[)>\x1e06\x1d30P296-1234-ND\x1d1PNE555P\x1dQ25\x1e\x04"
	partialLabel  = "[)>\x1e06\x1d30P296-1234-ND\x1e\x04"
)

// stubBackend scripts decode outcomes per call.
type stubBackend struct {
	mu    sync.Mutex
	calls int
	delay time.Duration
	fn    func(call int) ([]decode.Symbol, error)
}

func (b *stubBackend) Decode(img image.Image, maxSymbols int) ([]decode.Symbol, error) {
	b.mu.Lock()
	b.calls++
	call := b.calls
	b.mu.Unlock()
	if b.delay > 0 {
		time.Sleep(b.delay)
	}
	return b.fn(call)
}

func (b *stubBackend) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

func testGray() *image.Gray {
	return image.NewGray(image.Rect(0, 0, 32, 32))
}

func awaitResult(t *testing.T, w *decodeWorker) *hit {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if h, ok := w.drain(); ok {
			return h
		}
		select {
		case <-deadline:
			t.Fatal("worker produced no result")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestWorkerAcceptsFirstCompleteSymbol(t *testing.T) {
	backend := &stubBackend{fn: func(int) ([]decode.Symbol, error) {
		return []decode.Symbol{
			{Bytes: []byte(partialLabel), Rect: image.Rect(1, 1, 5, 5)},
			{Bytes: []byte(completeLabel), Rect: image.Rect(10, 10, 30, 30)},
		}, nil
	}}
	w := newDecodeWorker(backend, mh10.DefaultPolicy(), 30*time.Millisecond, 6, 5*time.Millisecond)
	w.start()
	defer w.shutdown(time.Second)

	require.True(t, w.submit(workItem{gray: testGray(), offset: image.Pt(100, 50)}))

	h := awaitResult(t, w)
	require.NotNil(t, h)
	assert.Equal(t, []byte(completeLabel), h.raw)
	assert.Equal(t, image.Rect(110, 60, 130, 80), h.rect, "rect translated by ROI offset")
}

func TestWorkerReportsNoHitOnBackendError(t *testing.T) {
	backend := &stubBackend{fn: func(int) ([]decode.Symbol, error) {
		return nil, errors.New("decode blew up")
	}}
	w := newDecodeWorker(backend, mh10.DefaultPolicy(), 30*time.Millisecond, 6, 5*time.Millisecond)
	w.start()
	defer w.shutdown(time.Second)

	require.True(t, w.submit(workItem{gray: testGray()}))

	h := awaitResult(t, w)
	assert.Nil(t, h)

	// The worker survives backend errors and keeps serving items.
	require.True(t, w.submit(workItem{gray: testGray()}))
	assert.Nil(t, awaitResult(t, w))
}

func TestWorkerRejectsIncompletePayloads(t *testing.T) {
	backend := &stubBackend{fn: func(int) ([]decode.Symbol, error) {
		return []decode.Symbol{{Bytes: []byte(partialLabel), Rect: image.Rect(0, 0, 4, 4)}}, nil
	}}
	w := newDecodeWorker(backend, mh10.DefaultPolicy(), 30*time.Millisecond, 6, 5*time.Millisecond)
	w.start()
	defer w.shutdown(time.Second)

	require.True(t, w.submit(workItem{gray: testGray()}))
	assert.Nil(t, awaitResult(t, w))
}

func TestWorkerBudgetAborts(t *testing.T) {
	backend := &stubBackend{
		delay: 20 * time.Millisecond,
		fn:    func(int) ([]decode.Symbol, error) { return nil, nil },
	}
	// Budget shorter than a single decode: exactly one candidate attempted
	// even at the highest effort level.
	w := newDecodeWorker(backend, mh10.DefaultPolicy(), time.Millisecond, 100, 5*time.Millisecond)
	w.start()
	defer w.shutdown(time.Second)

	require.True(t, w.submit(workItem{gray: testGray(), level: preprocess.MaxLevel}))
	assert.Nil(t, awaitResult(t, w))
	assert.Equal(t, 1, backend.callCount())
}

func TestSubmitNeverBlocksAndNewestWins(t *testing.T) {
	backend := &stubBackend{fn: func(int) ([]decode.Symbol, error) { return nil, nil }}
	w := newDecodeWorker(backend, mh10.DefaultPolicy(), time.Millisecond, 6, 5*time.Millisecond)
	// Worker intentionally not started: the slot stays occupied.

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			w.submit(workItem{gray: testGray(), level: preprocess.Level(i % 6)})
		}
		w.submit(workItem{gray: testGray(), level: preprocess.MaxLevel, poison: false})
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("submit blocked")
	}

	// Exactly one item pending, and it is the newest.
	item := <-w.in
	assert.Equal(t, preprocess.MaxLevel, item.level)
	select {
	case <-w.in:
		t.Fatal("more than one item queued")
	default:
	}
}

func TestOutboundDropsWhenNotDrained(t *testing.T) {
	backend := &stubBackend{fn: func(int) ([]decode.Symbol, error) { return nil, nil }}
	w := newDecodeWorker(backend, mh10.DefaultPolicy(), time.Millisecond, 6, 5*time.Millisecond)

	first := &hit{raw: []byte("first")}
	w.push(first)
	w.push(&hit{raw: []byte("second")})

	h, ok := w.drain()
	require.True(t, ok)
	assert.Same(t, first, h)

	_, ok = w.drain()
	assert.False(t, ok, "second result should have been dropped")
}

func TestShutdownWithinPollInterval(t *testing.T) {
	backend := &stubBackend{fn: func(int) ([]decode.Symbol, error) { return nil, nil }}
	poll := 20 * time.Millisecond
	w := newDecodeWorker(backend, mh10.DefaultPolicy(), time.Millisecond, 6, poll)
	w.start()

	start := time.Now()
	w.shutdown(time.Second)
	elapsed := time.Since(start)

	select {
	case <-w.done:
	default:
		t.Fatal("worker did not terminate")
	}
	assert.Less(t, elapsed, poll+100*time.Millisecond)
}
