package embedding

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
)

// ImageSize is the square input resolution of the CLIP vision encoder.
const ImageSize = 224

var (
	clipMean = [3]float32{0.48145466, 0.4578275, 0.40821073}
	clipStd  = [3]float32{0.26862954, 0.26130258, 0.27577711}
)

// PreprocessImage decodes a JPEG or PNG payload, resizes its shorter side to ImageSize,
// center-crops to ImageSize x ImageSize and returns normalized CHW pixel values.
func PreprocessImage(data []byte) ([]float32, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("decode image: empty image")
	}

	// Resize-then-crop equals scaling the centered square of the source.
	side := min(w, h)
	x0 := b.Min.X + (w-side)/2
	y0 := b.Min.Y + (h-side)/2
	src := image.Rect(x0, y0, x0+side, y0+side)
	dst := image.NewRGBA(image.Rect(0, 0, ImageSize, ImageSize))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, src, draw.Src, nil)

	const plane = ImageSize * ImageSize
	out := make([]float32, 3*plane)
	for y := 0; y < ImageSize; y++ {
		row := dst.Pix[y*dst.Stride:]
		for x := 0; x < ImageSize; x++ {
			px := row[x*4 : x*4+3]
			i := y*ImageSize + x
			for ch := 0; ch < 3; ch++ {
				out[ch*plane+i] = (float32(px[ch])/255 - clipMean[ch]) / clipStd[ch]
			}
		}
	}
	return out, nil
}
