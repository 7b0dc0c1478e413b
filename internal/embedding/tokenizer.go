package embedding

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode"
)

// CLIP special tokens and sequence length.
const (
	clipStartToken   = 49406 // <|startoftext|>
	clipEndToken     = 49407 // <|endoftext|>, also used as padding
	DefaultMaxTokens = 77
)

// Tokenizer produces token IDs and attention mask for CLIP-style text encoders.
type Tokenizer interface {
	Tokenize(text string, maxTokens int) (inputIDs, attentionMask []int64)
}

// SimpleTokenizer is a word-level tokenizer. Words found in the vocabulary (as "word</w>")
// use their vocabulary ID; other words get a stable hash-based ID. Without a vocabulary
// every word is hashed, which keeps tests and model-less runs deterministic.
type SimpleTokenizer struct {
	vocab map[string]int64
}

// NewSimpleTokenizer returns a tokenizer using vocab, which may be nil.
func NewSimpleTokenizer(vocab map[string]int64) *SimpleTokenizer {
	return &SimpleTokenizer{vocab: vocab}
}

// LoadVocab reads a vocab.json mapping tokens to IDs.
func LoadVocab(path string) (map[string]int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocab: %w", err)
	}
	var vocab map[string]int64
	if err := json.Unmarshal(data, &vocab); err != nil {
		return nil, fmt.Errorf("parse vocab: %w", err)
	}
	return vocab, nil
}

// Tokenize lowercases and splits text, then produces start/end-delimited IDs padded to maxTokens.
func (t *SimpleTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask []int64) {
	if maxTokens <= 2 {
		maxTokens = DefaultMaxTokens
	}
	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)
	for i := range inputIDs {
		inputIDs[i] = clipEndToken
	}

	inputIDs[0] = clipStartToken
	attentionMask[0] = 1
	pos := 1
	for _, word := range SplitWords(strings.ToLower(text)) {
		if pos >= maxTokens-1 {
			break
		}
		inputIDs[pos] = t.tokenID(word)
		attentionMask[pos] = 1
		pos++
	}
	inputIDs[pos] = clipEndToken
	attentionMask[pos] = 1
	return inputIDs, attentionMask
}

func (t *SimpleTokenizer) tokenID(word string) int64 {
	if id, ok := t.vocab[word+"</w>"]; ok {
		return id
	}
	// Keep hashed IDs clear of byte tokens and the special tokens.
	return int64(256 + HashString(word)%(clipStartToken-256))
}

// SplitWords splits text on anything that is not a letter or digit and drops empty words.
func SplitWords(text string) []string {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	if len(words) == 0 {
		return nil
	}
	return words
}

// HashString returns a deterministic non-negative hash for use as a fallback token ID.
func HashString(s string) int {
	h := 0
	for _, c := range s {
		h = 31*h + int(c)
	}
	if h < 0 {
		h = -h
	}
	if h < 0 { // math.MinInt
		h = 0
	}
	return h
}
