package embedding

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"
)

func encodePNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestPreprocessImage_ShapeAndNormalization(t *testing.T) {
	data := encodePNG(t, 320, 180, color.RGBA{R: 255, G: 0, B: 0, A: 255})
	out, err := PreprocessImage(data)
	if err != nil {
		t.Fatalf("PreprocessImage: %v", err)
	}
	if len(out) != 3*ImageSize*ImageSize {
		t.Fatalf("len = %d, want %d", len(out), 3*ImageSize*ImageSize)
	}
	plane := ImageSize * ImageSize
	wantR := (1 - clipMean[0]) / clipStd[0]
	wantG := (0 - clipMean[1]) / clipStd[1]
	for _, i := range []int{0, plane / 2, plane - 1} {
		if math.Abs(float64(out[i]-wantR)) > 1e-4 {
			t.Errorf("red[%d] = %v, want %v", i, out[i], wantR)
		}
		if math.Abs(float64(out[plane+i]-wantG)) > 1e-4 {
			t.Errorf("green[%d] = %v, want %v", i, out[plane+i], wantG)
		}
	}
}

func TestPreprocessImage_CentreCropsWideFrames(t *testing.T) {
	// Four vertical bands: green | red | blue | green. The centre square keeps red and blue.
	img := image.NewRGBA(image.Rect(0, 0, 2*ImageSize, ImageSize))
	bands := []color.RGBA{
		{G: 255, A: 255},
		{R: 255, A: 255},
		{B: 255, A: 255},
		{G: 255, A: 255},
	}
	for y := 0; y < ImageSize; y++ {
		for x := 0; x < 2*ImageSize; x++ {
			img.Set(x, y, bands[x/(ImageSize/2)])
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	out, err := PreprocessImage(buf.Bytes())
	if err != nil {
		t.Fatalf("PreprocessImage: %v", err)
	}

	plane := ImageSize * ImageSize
	channel := func(ch, x, y int) float32 {
		return out[ch*plane+y*ImageSize+x]*clipStd[ch] + clipMean[ch]
	}
	const tol = 0.01
	left, right, mid := 10, ImageSize-10, ImageSize/2
	if r := channel(0, left, mid); math.Abs(float64(r-1)) > tol {
		t.Errorf("left side red = %v, want 1", r)
	}
	if b := channel(2, right, mid); math.Abs(float64(b-1)) > tol {
		t.Errorf("right side blue = %v, want 1", b)
	}
	for _, x := range []int{0, ImageSize - 1} {
		if g := channel(1, x, mid); math.Abs(float64(g)) > tol {
			t.Errorf("green at x=%d = %v, want 0 (cropped away)", x, g)
		}
	}
}

func TestPreprocessImage_SmallImageUpscales(t *testing.T) {
	out, err := PreprocessImage(encodePNG(t, 8, 8, color.Gray{Y: 128}))
	if err != nil {
		t.Fatalf("PreprocessImage: %v", err)
	}
	if len(out) != 3*ImageSize*ImageSize {
		t.Fatalf("len = %d", len(out))
	}
}

func TestPreprocessImage_InvalidData(t *testing.T) {
	if _, err := PreprocessImage([]byte("not an image")); err == nil {
		t.Fatal("expected decode error")
	}
}
