// Package capture defines the camera and overlay-display capabilities the
// scanner depends on. The concrete OpenCV-backed implementations live in
// the gocvcam subpackage; everything here is pure Go so the scanner core
// can be tested with fakes.
package capture

import (
	"image"
	"log/slog"

	"github.com/disintegration/imaging"
)

// Source delivers frames from an opened capture device.
type Source interface {
	// Read returns the next frame. An error is a hard capture failure and
	// ends the scan session.
	Read() (image.Image, error)
	Close() error
}

// Properties are best-effort camera adjustments. Nil fields are left at the
// device default; unsupported properties are silently ignored by the
// device adapter.
type Properties struct {
	AutoFocus     *bool
	Focus         *float64
	AutoExposure  *bool
	Exposure      *float64
	AutoWB        *bool
	WBTemperature *float64
}

// Overlay is the minimal per-frame drawing contract: the ROI guide box, the
// detection box once a symbol is accepted, and a status line.
type Overlay struct {
	ROI     image.Rectangle
	Found   image.Rectangle
	Message string
}

// Display renders frames with an overlay and reports user cancellation
// (escape key or on-screen control).
type Display interface {
	Show(frame image.Image, overlay Overlay) (cancelled bool)
	Close() error
}

// SaveSnapshot writes a frame to disk for debugging; failures are logged
// and ignored so snapshots never interfere with a scan.
func SaveSnapshot(path string, frame image.Image) {
	if path == "" || frame == nil {
		return
	}
	if err := imaging.Save(frame, path); err != nil {
		slog.Warn("failed to save snapshot", "path", path, "error", err)
	}
}
