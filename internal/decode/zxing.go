package decode

import (
	"image"
	"math"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/datamatrix"
)

// Registered backend names, in preference order.
const (
	BackendZXing      = "zxing"
	BackendZXingSweep = "zxing-multi"
)

// zxingBackend decodes DataMatrix symbols with the dedicated reader.
// TryHarder is on; rotation is left to the candidate generator. The reader
// locates at most one symbol per image, so the result has length zero or
// one regardless of maxSymbols.
type zxingBackend struct {
	hints map[gozxing.DecodeHintType]interface{}
}

func NewZXingBackend() Backend {
	return &zxingBackend{
		hints: map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_TRY_HARDER: true,
		},
	}
}

func (b *zxingBackend) Decode(img image.Image, maxSymbols int) ([]Symbol, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, err
	}

	result, err := datamatrix.NewDataMatrixReader().Decode(bmp, b.hints)
	if err != nil {
		return nil, err
	}
	return []Symbol{symbolFromResult(result)}, nil
}

// zxingSweepBackend runs the DataMatrix reader across a small parameter
// sweep: normal luminance first, then inverted. It is the slower fallback
// for white-on-black labels, analogous to the shrink/threshold sweeps the
// libdmtx-based decoders perform.
type zxingSweepBackend struct {
	hints map[gozxing.DecodeHintType]interface{}
}

func NewZXingSweepBackend() Backend {
	return &zxingSweepBackend{
		hints: map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_TRY_HARDER: true,
		},
	}
}

func (b *zxingSweepBackend) Decode(img image.Image, maxSymbols int) ([]Symbol, error) {
	reader := datamatrix.NewDataMatrixReader()
	var lastErr error
	for _, inverted := range []bool{false, true} {
		var src gozxing.LuminanceSource = gozxing.NewLuminanceSourceFromImage(img)
		if inverted {
			src = gozxing.NewInvertedLuminanceSource(src)
		}
		bmp, err := gozxing.NewBinaryBitmap(gozxing.NewHybridBinarizer(src))
		if err != nil {
			lastErr = err
			continue
		}
		result, err := reader.Decode(bmp, b.hints)
		if err != nil {
			lastErr = err
			continue
		}
		return []Symbol{symbolFromResult(result)}, nil
	}
	return nil, lastErr
}

// symbolFromResult extracts payload bytes and a bounding rectangle. Byte
// segments are preferred over the text rendering so control bytes survive
// untouched.
func symbolFromResult(res *gozxing.Result) Symbol {
	var raw []byte
	if md, ok := res.GetResultMetadata()[gozxing.ResultMetadataType_BYTE_SEGMENTS]; ok {
		if segments, ok := md.([][]byte); ok {
			for _, seg := range segments {
				raw = append(raw, seg...)
			}
		}
	}
	if len(raw) == 0 {
		raw = latin1Bytes(res.GetText())
	}
	return Symbol{Bytes: raw, Rect: boundingRect(res.GetResultPoints())}
}

// latin1Bytes converts a decoded string back to its byte values; symbol
// text is ISO-8859-1 so every rune fits one byte.
func latin1Bytes(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if r > 0xFF {
			out = append(out, '?')
			continue
		}
		out = append(out, byte(r))
	}
	return out
}

func boundingRect(points []gozxing.ResultPoint) image.Rectangle {
	if len(points) == 0 {
		return image.Rectangle{}
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range points {
		minX = math.Min(minX, p.GetX())
		minY = math.Min(minY, p.GetY())
		maxX = math.Max(maxX, p.GetX())
		maxY = math.Max(maxY, p.GetY())
	}
	return image.Rect(int(minX), int(minY), int(math.Ceil(maxX)), int(math.Ceil(maxY)))
}
