//go:build cgo
// +build cgo

package embedding

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNXConfig describes the CLIP model files used by ONNXEmbedder.
type ONNXConfig struct {
	LibraryPath    string // onnxruntime shared library; empty uses the platform default
	ImageModelPath string // vision encoder: pixel_values -> image_embeds
	TextModelPath  string // text encoder: input_ids, attention_mask -> text_embeds
	Dimensions     int
	MaxTokens      int
	CacheSize      int
}

// ONNXEmbedder runs the CLIP vision and text encoders through ONNX Runtime.
// It requires CGO and the onnxruntime shared library.
type ONNXEmbedder struct {
	dimensions int
	maxTokens  int
	cache      *queryCache
	tokenizer  Tokenizer

	textSession         *ort.AdvancedSession
	inputIDsTensor      *ort.Tensor[int64]
	attentionMaskTensor *ort.Tensor[int64]
	textOutputTensor    *ort.Tensor[float32]
	textMu              sync.Mutex

	imageSession      *ort.AdvancedSession
	pixelTensor       *ort.Tensor[float32]
	imageOutputTensor *ort.Tensor[float32]
	imageMu           sync.Mutex
}

// NewONNXEmbedder creates the vision and text sessions. tok may be nil, in which case a
// SimpleTokenizer without vocabulary is used.
func NewONNXEmbedder(cfg ONNXConfig, tok Tokenizer) (*ONNXEmbedder, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("invalid embedding dimensions %d", cfg.Dimensions)
	}
	if cfg.MaxTokens <= 2 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if tok == nil {
		tok = NewSimpleTokenizer(nil)
	}
	if !ort.IsInitialized() {
		if cfg.LibraryPath != "" {
			ort.SetSharedLibraryPath(cfg.LibraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
		}
	}

	e := &ONNXEmbedder{
		dimensions: cfg.Dimensions,
		maxTokens:  cfg.MaxTokens,
		cache:      newQueryCache(cfg.CacheSize),
		tokenizer:  tok,
	}
	if err := e.initText(cfg.TextModelPath); err != nil {
		_ = e.Close()
		return nil, err
	}
	if err := e.initImage(cfg.ImageModelPath); err != nil {
		_ = e.Close()
		return nil, err
	}
	return e, nil
}

func (e *ONNXEmbedder) initText(modelPath string) error {
	tokenShape := ort.NewShape(1, int64(e.maxTokens))
	var err error
	if e.inputIDsTensor, err = ort.NewEmptyTensor[int64](tokenShape); err != nil {
		return fmt.Errorf("failed to create input_ids tensor: %w", err)
	}
	if e.attentionMaskTensor, err = ort.NewEmptyTensor[int64](tokenShape); err != nil {
		return fmt.Errorf("failed to create attention_mask tensor: %w", err)
	}
	if e.textOutputTensor, err = ort.NewEmptyTensor[float32](ort.NewShape(1, int64(e.dimensions))); err != nil {
		return fmt.Errorf("failed to create text output tensor: %w", err)
	}
	e.textSession, err = ort.NewAdvancedSession(
		modelPath,
		[]string{"input_ids", "attention_mask"},
		[]string{"text_embeds"},
		[]ort.ArbitraryTensor{e.inputIDsTensor, e.attentionMaskTensor},
		[]ort.ArbitraryTensor{e.textOutputTensor},
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to create text session: %w", err)
	}
	return nil
}

func (e *ONNXEmbedder) initImage(modelPath string) error {
	var err error
	if e.pixelTensor, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 3, ImageSize, ImageSize)); err != nil {
		return fmt.Errorf("failed to create pixel_values tensor: %w", err)
	}
	if e.imageOutputTensor, err = ort.NewEmptyTensor[float32](ort.NewShape(1, int64(e.dimensions))); err != nil {
		return fmt.Errorf("failed to create image output tensor: %w", err)
	}
	e.imageSession, err = ort.NewAdvancedSession(
		modelPath,
		[]string{"pixel_values"},
		[]string{"image_embeds"},
		[]ort.ArbitraryTensor{e.pixelTensor},
		[]ort.ArbitraryTensor{e.imageOutputTensor},
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to create image session: %w", err)
	}
	return nil
}

// EmbedText returns the unit-norm text embedding, using the cache when available.
func (e *ONNXEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cached, ok := e.cache.lookup(text); ok {
		return cached, nil
	}

	inputIDs, attentionMask := e.tokenizer.Tokenize(text, e.maxTokens)

	e.textMu.Lock()
	copy(e.inputIDsTensor.GetData(), inputIDs)
	copy(e.attentionMaskTensor.GetData(), attentionMask)
	if err := e.textSession.Run(); err != nil {
		e.textMu.Unlock()
		return nil, fmt.Errorf("text inference failed: %w", err)
	}
	emb := make([]float32, e.dimensions)
	copy(emb, e.textOutputTensor.GetData())
	e.textMu.Unlock()

	NormalizeL2Slice(emb)
	e.cache.remember(text, emb)
	return emb, nil
}

// EmbedImages runs the vision encoder once per image and returns unit-norm embeddings.
func (e *ONNXEmbedder) EmbedImages(ctx context.Context, images [][]byte) ([][]float32, error) {
	out := make([][]float32, len(images))
	for i, img := range images {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pixels, err := PreprocessImage(img)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", i, err)
		}
		e.imageMu.Lock()
		copy(e.pixelTensor.GetData(), pixels)
		if err := e.imageSession.Run(); err != nil {
			e.imageMu.Unlock()
			return nil, fmt.Errorf("image inference failed: %w", err)
		}
		emb := make([]float32, e.dimensions)
		copy(emb, e.imageOutputTensor.GetData())
		e.imageMu.Unlock()

		NormalizeL2Slice(emb)
		out[i] = emb
	}
	return out, nil
}

// Dimensions returns the embedding dimension.
func (e *ONNXEmbedder) Dimensions() int {
	return e.dimensions
}

// Close destroys the sessions and tensors.
func (e *ONNXEmbedder) Close() error {
	var err error
	if e.textSession != nil {
		err = e.textSession.Destroy()
		e.textSession = nil
	}
	if e.imageSession != nil {
		if destroyErr := e.imageSession.Destroy(); err == nil {
			err = destroyErr
		}
		e.imageSession = nil
	}
	destroyTensor(&e.inputIDsTensor)
	destroyTensor(&e.attentionMaskTensor)
	destroyTensor(&e.textOutputTensor)
	destroyTensor(&e.pixelTensor)
	destroyTensor(&e.imageOutputTensor)
	return err
}

func destroyTensor[T ort.TensorData](t **ort.Tensor[T]) {
	if *t != nil {
		_ = (*t).Destroy()
		*t = nil
	}
}
