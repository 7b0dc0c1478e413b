package embedding

import (
	"context"
	"math"
	"testing"
)

func TestMockEmbedder_Deterministic(t *testing.T) {
	e := NewMockEmbedder(64)
	ctx := context.Background()
	a, err := e.EmbedText(ctx, "a red car")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := e.EmbedText(ctx, "a red car")
	c, _ := e.EmbedText(ctx, "a blue boat")
	if len(a) != 64 {
		t.Fatalf("len = %d", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("same text should produce identical embeddings")
		}
	}
	same := true
	for i := range a {
		if a[i] != c[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different text should produce different embeddings")
	}
}

func TestMockEmbedder_UnitNorm(t *testing.T) {
	e := NewMockEmbedder(32)
	embs, err := e.EmbedImages(context.Background(), [][]byte{[]byte("frame-1"), []byte("frame-2")})
	if err != nil {
		t.Fatal(err)
	}
	for _, emb := range embs {
		var sum float64
		for _, v := range emb {
			sum += float64(v) * float64(v)
		}
		if math.Abs(math.Sqrt(sum)-1) > 1e-5 {
			t.Errorf("norm = %v, want 1", math.Sqrt(sum))
		}
	}
}

func TestMockEmbedder_TextAndImageShareSpace(t *testing.T) {
	e := NewMockEmbedder(16)
	ctx := context.Background()
	text, _ := e.EmbedText(ctx, "sunset")
	imgs, _ := e.EmbedImages(ctx, [][]byte{[]byte("sunset")})
	for i := range text {
		if text[i] != imgs[0][i] {
			t.Fatal("identical bytes should map to the same vector")
		}
	}
}

func TestMockEmbedder_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := NewMockEmbedder(8)
	if _, err := e.EmbedText(ctx, "x"); err == nil {
		t.Error("expected context error")
	}
	if _, err := e.EmbedImages(ctx, [][]byte{{1}}); err == nil {
		t.Error("expected context error")
	}
}

func TestMockEmbedder_DefaultDimensions(t *testing.T) {
	if NewMockEmbedder(0).Dimensions() != 512 {
		t.Error("default dimensions should be 512")
	}
}

func TestNormalizeL2Slice_Zero(t *testing.T) {
	x := []float32{0, 0, 0}
	NormalizeL2Slice(x)
	for _, v := range x {
		if v != 0 {
			t.Fatal("zero vector should stay zero")
		}
	}
}

func BenchmarkMockEmbedder_EmbedText(b *testing.B) {
	e := NewMockEmbedder(512)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = e.EmbedText(ctx, "a dog catching a frisbee on the beach")
	}
}
