package preprocess

import "image"

// CLAHE parameters matching the defaults used for label enhancement.
const (
	claheClipLimit = 2.0
	claheGridSize  = 8
)

// CLAHE performs contrast-limited adaptive histogram equalization over an
// 8x8 tile grid. Each tile gets its own clipped equalization mapping and
// pixels are bilinearly interpolated between the four surrounding tile
// mappings to avoid visible tile seams.
func CLAHE(gray *image.Gray) *image.Gray {
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	if w == 0 || h == 0 {
		return out
	}

	tilesX, tilesY := claheGridSize, claheGridSize
	if tilesX > w {
		tilesX = w
	}
	if tilesY > h {
		tilesY = h
	}
	tileW := (w + tilesX - 1) / tilesX
	tileH := (h + tilesY - 1) / tilesY

	// Per-tile clipped equalization lookup tables.
	luts := make([][256]uint8, tilesX*tilesY)
	for ty := 0; ty < tilesY; ty++ {
		for tx := 0; tx < tilesX; tx++ {
			x0, y0 := tx*tileW, ty*tileH
			x1, y1 := min(x0+tileW, w), min(y0+tileH, h)

			var hist [256]int
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					hist[gray.GrayAt(b.Min.X+x, b.Min.Y+y).Y]++
				}
			}

			area := (x1 - x0) * (y1 - y0)
			clip := int(claheClipLimit * float64(area) / 256)
			if clip < 1 {
				clip = 1
			}

			// Clip the histogram and spread the excess uniformly.
			excess := 0
			for i := range hist {
				if hist[i] > clip {
					excess += hist[i] - clip
					hist[i] = clip
				}
			}
			bonus := excess / 256
			rem := excess % 256
			for i := range hist {
				hist[i] += bonus
				if i < rem {
					hist[i]++
				}
			}

			lut := &luts[ty*tilesX+tx]
			cdf := 0
			scale := 255.0 / float64(area)
			for i := 0; i < 256; i++ {
				cdf += hist[i]
				v := int(float64(cdf)*scale + 0.5)
				if v > 255 {
					v = 255
				}
				lut[i] = uint8(v)
			}
		}
	}

	// Bilinear interpolation between the four nearest tile mappings,
	// anchored at tile centers.
	for y := 0; y < h; y++ {
		fy := (float64(y)+0.5)/float64(tileH) - 0.5
		ty0 := int(fy)
		if fy < 0 {
			ty0 = 0
			fy = 0
		}
		ty1 := min(ty0+1, tilesY-1)
		if ty0 > tilesY-1 {
			ty0 = tilesY - 1
		}
		wy := fy - float64(ty0)
		if wy < 0 {
			wy = 0
		} else if wy > 1 {
			wy = 1
		}

		for x := 0; x < w; x++ {
			fx := (float64(x)+0.5)/float64(tileW) - 0.5
			tx0 := int(fx)
			if fx < 0 {
				tx0 = 0
				fx = 0
			}
			tx1 := min(tx0+1, tilesX-1)
			if tx0 > tilesX-1 {
				tx0 = tilesX - 1
			}
			wx := fx - float64(tx0)
			if wx < 0 {
				wx = 0
			} else if wx > 1 {
				wx = 1
			}

			v := gray.GrayAt(b.Min.X+x, b.Min.Y+y).Y
			top := (1-wx)*float64(luts[ty0*tilesX+tx0][v]) + wx*float64(luts[ty0*tilesX+tx1][v])
			bot := (1-wx)*float64(luts[ty1*tilesX+tx0][v]) + wx*float64(luts[ty1*tilesX+tx1][v])
			out.Pix[y*out.Stride+x] = uint8((1-wy)*top + wy*bot + 0.5)
		}
	}
	return out
}
