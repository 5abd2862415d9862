// Package gocvcam implements the capture interfaces on top of OpenCV via
// gocv: a V4L2/DirectShow camera source and a preview window with ROI and
// detection overlays.
package gocvcam

import (
	"fmt"
	"image"
	"image/color"
	"runtime"

	"gocv.io/x/gocv"

	"github.com/grossrc/DigiKey-Organizer/internal/capture"
)

// Camera wraps a gocv VideoCapture as a capture.Source.
type Camera struct {
	cap *gocv.VideoCapture
	mat gocv.Mat
}

// Open opens the device at index with the requested resolution (zero keeps
// the device default) and applies the property overrides best-effort.
func Open(index, width, height int, props capture.Properties) (*Camera, error) {
	api := gocv.VideoCaptureV4L2
	if runtime.GOOS == "windows" {
		api = gocv.VideoCaptureDshow
	}

	cap, err := gocv.OpenVideoCaptureWithAPI(index, api)
	if err != nil {
		return nil, fmt.Errorf("unable to open camera index %d: %w", index, err)
	}
	if !cap.IsOpened() {
		cap.Close()
		return nil, fmt.Errorf("unable to open camera index %d", index)
	}

	if width > 0 {
		cap.Set(gocv.VideoCaptureFrameWidth, float64(width))
	}
	if height > 0 {
		cap.Set(gocv.VideoCaptureFrameHeight, float64(height))
	}
	applyProperties(cap, props)

	return &Camera{cap: cap, mat: gocv.NewMat()}, nil
}

// applyProperties sets each requested camera property; devices that do not
// support a property just ignore the set call.
func applyProperties(cap *gocv.VideoCapture, props capture.Properties) {
	if props.AutoFocus != nil {
		v := 0.0
		if *props.AutoFocus {
			v = 1.0
		}
		cap.Set(gocv.VideoCaptureAutoFocus, v)
	}
	if props.Focus != nil {
		cap.Set(gocv.VideoCaptureFocus, *props.Focus)
	}
	if props.AutoExposure != nil {
		// 0.25/0.75 is the V4L2 convention for manual/auto exposure.
		v := 0.25
		if *props.AutoExposure {
			v = 0.75
		}
		cap.Set(gocv.VideoCaptureAutoExposure, v)
	}
	if props.Exposure != nil {
		cap.Set(gocv.VideoCaptureExposure, *props.Exposure)
	}
	if props.AutoWB != nil {
		v := 0.0
		if *props.AutoWB {
			v = 1.0
		}
		cap.Set(gocv.VideoCaptureAutoWB, v)
	}
	if props.WBTemperature != nil {
		cap.Set(gocv.VideoCaptureWBTemperature, *props.WBTemperature)
	}
	// Keep the driver buffer shallow so decode works on fresh frames.
	cap.Set(gocv.VideoCaptureBufferSize, 1)
}

func (c *Camera) Read() (image.Image, error) {
	if ok := c.cap.Read(&c.mat); !ok || c.mat.Empty() {
		return nil, fmt.Errorf("failed to read from camera")
	}
	img, err := c.mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("failed to convert frame: %w", err)
	}
	return img, nil
}

func (c *Camera) Close() error {
	c.mat.Close()
	return c.cap.Close()
}

// Window shows the live preview with overlays and watches for cancel keys.
type Window struct {
	win *gocv.Window
}

const windowTitle = "Digi-Key DataMatrix Scanner"

func NewWindow(fullscreen bool) *Window {
	win := gocv.NewWindow(windowTitle)
	if fullscreen {
		win.SetWindowProperty(gocv.WindowPropertyFullscreen, gocv.WindowFullscreen)
	}
	return &Window{win: win}
}

var (
	roiColor   = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	foundColor = color.RGBA{G: 255, A: 255}
)

func (w *Window) Show(frame image.Image, overlay capture.Overlay) bool {
	mat, err := gocv.ImageToMatRGB(frame)
	if err != nil {
		return false
	}
	defer mat.Close()

	if !overlay.ROI.Empty() {
		gocv.Rectangle(&mat, overlay.ROI, roiColor, 1)
	}
	if !overlay.Found.Empty() {
		gocv.Rectangle(&mat, overlay.Found, foundColor, 2)
	}
	if overlay.Message != "" {
		pt := image.Pt(10, frame.Bounds().Dy()-18)
		gocv.PutText(&mat, overlay.Message, pt, gocv.FontHersheySimplex, 0.7, foundColor, 2)
	}

	w.win.IMShow(mat)
	key := w.win.WaitKey(1)
	return key == 27 || key == 'q' || key == 'c'
}

func (w *Window) Close() error {
	return w.win.Close()
}
