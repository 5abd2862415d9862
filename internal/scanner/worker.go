package scanner

import (
	"image"
	"sync/atomic"
	"time"

	"github.com/grossrc/DigiKey-Organizer/internal/decode"
	"github.com/grossrc/DigiKey-Organizer/internal/mh10"
	"github.com/grossrc/DigiKey-Organizer/internal/preprocess"
)

// maxSymbolsPerCandidate asks the backend for several symbols per image so
// an incomplete label next to the real one cannot mask it.
const maxSymbolsPerCandidate = 6

// workItem is one decode request. It is created at most once per decode
// interval, handed to the worker through a single-slot channel, and
// discarded after processing.
type workItem struct {
	gray   *image.Gray
	offset image.Point
	level  preprocess.Level
	poison bool
}

// hit is an accepted decode: raw payload bytes and the symbol rectangle in
// full-frame coordinates.
type hit struct {
	raw  []byte
	rect image.Rectangle
}

// decodeWorker runs decode attempts off the capture loop. Both channels are
// single-slot and every operation from the orchestrator's side is
// non-blocking: excess submissions are dropped rather than queued, which
// bounds memory and end-to-end latency.
type decodeWorker struct {
	backend       decode.Backend
	policy        mh10.Policy
	budget        time.Duration
	maxCandidates int
	poll          time.Duration

	in   chan workItem
	out  chan *hit
	stop atomic.Bool
	done chan struct{}
}

func newDecodeWorker(backend decode.Backend, policy mh10.Policy, budget time.Duration, maxCandidates int, poll time.Duration) *decodeWorker {
	return &decodeWorker{
		backend:       backend,
		policy:        policy,
		budget:        budget,
		maxCandidates: maxCandidates,
		poll:          poll,
		in:            make(chan workItem, 1),
		out:           make(chan *hit, 1),
		done:          make(chan struct{}),
	}
}

func (w *decodeWorker) start() {
	go w.run()
}

// run is the worker loop. The poll timeout bounds cancellation latency: the
// stop flag is rechecked at least once per interval.
func (w *decodeWorker) run() {
	defer close(w.done)
	for !w.stop.Load() {
		select {
		case item := <-w.in:
			if item.poison || item.gray == nil {
				continue
			}
			w.push(w.process(item))
		case <-time.After(w.poll):
		}
	}
}

// process tries candidates at the item's effort level until a symbol parses
// complete or the time budget runs out. Backend errors and malformed
// symbols count as "no symbol" for that candidate.
func (w *decodeWorker) process(item workItem) *hit {
	start := time.Now()
	for candidate := range preprocess.Candidates(item.gray, item.level, w.maxCandidates) {
		symbols, err := w.backend.Decode(candidate.Image, maxSymbolsPerCandidate)
		if err == nil {
			for _, sym := range symbols {
				if len(sym.Bytes) == 0 {
					continue
				}
				if !w.policy.Complete(mh10.Parse(sym.Bytes)) {
					continue // partial or digits-only: keep scanning
				}
				return &hit{raw: sym.Bytes, rect: sym.Rect.Add(item.offset)}
			}
		}
		if time.Since(start) > w.budget {
			break
		}
	}
	return nil
}

// push delivers the outcome without blocking; if the previous result was
// never drained the new one is dropped.
func (w *decodeWorker) push(h *hit) {
	select {
	case w.out <- h:
	default:
	}
}

// submit enqueues an item without ever blocking the caller. When the slot
// is occupied the stale item is displaced so the newest submission wins.
func (w *decodeWorker) submit(item workItem) bool {
	select {
	case w.in <- item:
		return true
	default:
	}
	select {
	case <-w.in:
	default:
	}
	select {
	case w.in <- item:
		return true
	default:
		return false
	}
}

// drain removes at most one pending result without blocking.
func (w *decodeWorker) drain() (*hit, bool) {
	select {
	case h := <-w.out:
		return h, true
	default:
		return nil, false
	}
}

// shutdown stops the worker: set the flag, nudge a pending wait with a
// poison item, and join with a deadline. Session teardown must never block
// on the worker, so an overrun is tolerated.
func (w *decodeWorker) shutdown(timeout time.Duration) {
	w.stop.Store(true)
	w.submit(workItem{poison: true})
	select {
	case <-w.done:
	case <-time.After(timeout):
	}
}
