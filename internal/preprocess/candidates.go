package preprocess

import (
	"fmt"
	"image"
	"iter"
)

// Level is the effort ordinal controlling how many image variants are
// attempted per decode cycle. Higher levels add progressively more
// expensive transforms.
type Level int

// MaxLevel is the highest effort level.
const MaxLevel Level = 5

// Candidate is one preprocessed variant of a captured frame.
type Candidate struct {
	Image *image.Gray
	Tag   string
}

// Candidates yields preprocessed variants of gray for the given effort
// level, cheapest first, capped at maxCandidates regardless of level. The
// sequence is lazy: a variant is only computed when the consumer reaches it.
//
//	level 0: grayscale as-is
//	level 1: + linear contrast stretch
//	level 2: + CLAHE and unsharp mask
//	level 3: + inverted gray and contrast-stretched variants
//	level 4: + one 1.5x bicubic upscale
//	level 5: + rotations of the gray and contrast-stretched variants
//
// Rotations deliberately cover only the level-0/1 variants; rotating the
// heavier transforms would blow the per-item time budget.
func Candidates(gray *image.Gray, level Level, maxCandidates int) iter.Seq[Candidate] {
	return func(yield func(Candidate) bool) {
		count := 0
		emit := func(img *image.Gray, tag string) bool {
			if count >= maxCandidates {
				return false
			}
			count++
			return yield(Candidate{Image: img, Tag: tag})
		}

		if !emit(gray, "gray") {
			return
		}

		var fastc *image.Gray
		if level >= 1 {
			fastc = FastContrast(gray)
			if !emit(fastc, "fastc") {
				return
			}
		}

		if level >= 2 {
			if !emit(CLAHE(gray), "clahe") {
				return
			}
			if !emit(Sharpen(gray), "sharp") {
				return
			}
		}

		if level >= 3 {
			if fastc == nil {
				fastc = FastContrast(gray)
			}
			if !emit(Invert(gray), "gray+inv") {
				return
			}
			if !emit(Invert(fastc), "fastc+inv") {
				return
			}
		}

		if level >= 4 {
			if !emit(Upscale(gray, 1.5), "up1.5") {
				return
			}
		}

		if level >= 5 {
			if fastc == nil {
				fastc = FastContrast(gray)
			}
			for _, base := range []Candidate{{gray, "gray"}, {fastc, "fastc"}} {
				for _, rot := range rotations(base.Image) {
					if !emit(rot.img, fmt.Sprintf("%s:%s", base.Tag, rot.tag)) {
						return
					}
				}
			}
		}
	}
}
