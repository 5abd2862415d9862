// Package scanner implements the progressive decode pipeline: a capture
// loop feeding a background decode worker through drop-semantics channels,
// an effort scheduler that escalates preprocessing over time, and the
// session orchestration that turns it all into a single ScanResult.
package scanner

import (
	"context"
	"image"
	"log/slog"
	"time"

	"github.com/grossrc/DigiKey-Organizer/internal/capture"
	"github.com/grossrc/DigiKey-Organizer/internal/decode"
	"github.com/grossrc/DigiKey-Organizer/internal/mh10"
	"github.com/grossrc/DigiKey-Organizer/internal/preprocess"
)

// Outcome is the terminal state of a scan session.
type Outcome string

const (
	OutcomeSuccess        Outcome = "success"
	OutcomeTimeout        Outcome = "timeout"
	OutcomeCaptureFailure Outcome = "capture_failure"
	OutcomeCancelled      Outcome = "cancelled"
)

// Result is the single terminal value of a session. It is never mutated
// after construction.
type Result struct {
	Success bool          `json:"success"`
	Outcome Outcome       `json:"outcome"`
	Message string        `json:"message"`
	Backend string        `json:"backend,omitempty"`
	Data    *mh10.Payload `json:"data,omitempty"`
	Raw     []byte        `json:"-"`
}

// Config carries the per-session knobs. Zero values are replaced by the
// defaults below.
type Config struct {
	Timeout         time.Duration
	ROIOnly         bool
	DecodeInterval  time.Duration
	DecodeBudget    time.Duration
	MaxCandidates   int
	Mode            Mode
	Policy          mh10.Policy
	PollInterval    time.Duration
	SnapshotSuccess string
	SnapshotFail    string
	BackendName     string
}

const (
	defaultDecodeInterval = 80 * time.Millisecond
	defaultDecodeBudget   = 30 * time.Millisecond
	defaultMaxCandidates  = 6
	defaultPollInterval   = 50 * time.Millisecond
	shutdownJoinTimeout   = 500 * time.Millisecond
	roiFraction           = 2 // ROI covers 1/roiFraction of each dimension
)

func (c Config) withDefaults() Config {
	if c.DecodeInterval <= 0 {
		c.DecodeInterval = defaultDecodeInterval
	}
	if c.DecodeBudget <= 0 {
		c.DecodeBudget = defaultDecodeBudget
	}
	if c.MaxCandidates <= 0 {
		c.MaxCandidates = defaultMaxCandidates
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.Mode == "" {
		c.Mode = ModeBalanced
	}
	if len(c.Policy.RequiredDIs) == 0 {
		c.Policy = mh10.DefaultPolicy()
	}
	return c
}

// Session owns one scan attempt: the capture device, the display, and one
// background decode worker.
type Session struct {
	src     capture.Source
	display capture.Display
	backend decode.Backend
	cfg     Config
}

// NewSession takes ownership of src; Run releases it on every exit path.
// display may be nil for headless operation.
func NewSession(src capture.Source, display capture.Display, backend decode.Backend, cfg Config) *Session {
	return &Session{src: src, display: display, backend: backend, cfg: cfg.withDefaults()}
}

// Run captures frames until a payload is accepted, the session times out,
// the device fails, or the user cancels. The capture device never waits on
// the worker: submissions and drains are non-blocking and excess frames
// are dropped.
func (s *Session) Run(ctx context.Context) Result {
	worker := newDecodeWorker(s.backend, s.cfg.Policy, s.cfg.DecodeBudget, s.cfg.MaxCandidates, s.cfg.PollInterval)
	worker.start()
	defer worker.shutdown(shutdownJoinTimeout)
	defer func() {
		if err := s.src.Close(); err != nil {
			slog.Warn("error releasing capture device", "error", err)
		}
	}()

	escalator := NewEscalator(s.cfg.Mode)
	start := time.Now()
	var lastSubmit time.Time
	var found *hit

	for {
		select {
		case <-ctx.Done():
			return s.failure(OutcomeCancelled, "Cancelled.")
		default:
		}

		if s.cfg.Timeout > 0 && time.Since(start) > s.cfg.Timeout {
			if s.cfg.SnapshotFail != "" {
				if frame, err := s.src.Read(); err == nil {
					capture.SaveSnapshot(s.cfg.SnapshotFail, frame)
				}
			}
			return s.failure(OutcomeTimeout, "Timed out without detecting a DataMatrix code.")
		}

		frame, err := s.src.Read()
		if err != nil {
			slog.Error("capture read failed", "error", err)
			return s.failure(OutcomeCaptureFailure, "Failed to read from camera.")
		}

		roi := centeredROI(frame.Bounds())

		if time.Since(lastSubmit) >= s.cfg.DecodeInterval {
			lastSubmit = time.Now()
			gray := preprocess.Grayscale(frame, roi, s.cfg.ROIOnly)
			offset := image.Point{}
			if s.cfg.ROIOnly {
				offset = roi.Min
			}
			// Dropped silently if the worker is still busy; capture rate is
			// decoupled from decode rate.
			worker.submit(workItem{gray: gray, offset: offset, level: escalator.Level()})
		}

		if h, ok := worker.drain(); ok && h != nil {
			found = h
			if s.cfg.SnapshotSuccess != "" {
				capture.SaveSnapshot(s.cfg.SnapshotSuccess, frame)
			}
		}

		if found == nil {
			escalator.Advance()
		}

		if s.display != nil {
			overlay := capture.Overlay{}
			if s.cfg.ROIOnly {
				overlay.ROI = roi
			}
			if found != nil {
				overlay.Found = found.rect
				overlay.Message = "Decoded! Parsing..."
			}
			if cancelled := s.display.Show(frame, overlay); cancelled {
				return s.failure(OutcomeCancelled, "Cancelled by user.")
			}
		}

		if found != nil {
			payload := mh10.Parse(found.raw)
			return Result{
				Success: true,
				Outcome: OutcomeSuccess,
				Message: "OK",
				Backend: s.cfg.BackendName,
				Data:    &payload,
				Raw:     found.raw,
			}
		}
	}
}

func (s *Session) failure(outcome Outcome, message string) Result {
	return Result{
		Outcome: outcome,
		Message: message,
		Backend: s.cfg.BackendName,
	}
}

// centeredROI returns the centered rectangle covering half the frame in
// each dimension.
func centeredROI(b image.Rectangle) image.Rectangle {
	w, h := b.Dx()/roiFraction, b.Dy()/roiFraction
	x0 := b.Min.X + (b.Dx()-w)/2
	y0 := b.Min.Y + (b.Dy()-h)/2
	return image.Rect(x0, y0, x0+w, y0+h)
}
