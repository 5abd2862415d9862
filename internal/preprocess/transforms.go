// Package preprocess produces the image variants fed to the decode backend.
// Variants are ordered cheapest-first so early effort levels stay fast on
// small hardware.
package preprocess

import (
	"image"
	"image/draw"

	"github.com/disintegration/imaging"
)

// Grayscale converts a frame to 8-bit grayscale, cropped to roi when
// roiOnly is set. The returned image always has its origin at (0,0).
func Grayscale(frame image.Image, roi image.Rectangle, roiOnly bool) *image.Gray {
	src := frame.Bounds()
	if roiOnly {
		src = roi.Intersect(src)
	}
	gray := image.NewGray(image.Rect(0, 0, src.Dx(), src.Dy()))
	draw.Draw(gray, gray.Bounds(), frame, src.Min, draw.Src)
	return gray
}

// FastContrast applies the linear stretch y = 1.6x + 5, clipped to [0,255].
func FastContrast(gray *image.Gray) *image.Gray {
	var lut [256]uint8
	for i := range lut {
		v := int(float64(i)*1.6 + 5)
		if v > 255 {
			v = 255
		}
		lut[i] = uint8(v)
	}
	out := image.NewGray(gray.Bounds())
	for i, p := range gray.Pix {
		out.Pix[i] = lut[p]
	}
	return out
}

// Sharpen applies an unsharp mask; it helps labels that are slightly out of
// focus.
func Sharpen(gray *image.Gray) *image.Gray {
	return toGray(imaging.Sharpen(gray, 1.2))
}

// Invert flips the photometric polarity for white-on-black symbols.
func Invert(gray *image.Gray) *image.Gray {
	return toGray(imaging.Invert(gray))
}

// Upscale resizes by the given factor with bicubic resampling; upscaling
// helps when the symbol modules are only a pixel or two wide.
func Upscale(gray *image.Gray, factor float64) *image.Gray {
	b := gray.Bounds()
	w := int(float64(b.Dx()) * factor)
	h := int(float64(b.Dy()) * factor)
	return toGray(imaging.Resize(gray, w, h, imaging.CatmullRom))
}

type rotation struct {
	img *image.Gray
	tag string
}

// rotations yields the image at 0, 90, 180, and 270 degrees.
func rotations(gray *image.Gray) []rotation {
	return []rotation{
		{gray, "r0"},
		{toGray(imaging.Rotate270(gray)), "r90"}, // Rotate270 is 90 degrees clockwise
		{toGray(imaging.Rotate180(gray)), "r180"},
		{toGray(imaging.Rotate90(gray)), "r270"},
	}
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(g, g.Bounds(), img, b.Min, draw.Src)
	return g
}
