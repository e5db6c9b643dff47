package embedding

import (
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// BERT special token ids.
const (
	clsToken = 101
	sepToken = 102

	// Word ids are hashed into [wordIDBase, wordIDBase+wordIDRange).
	wordIDBase  = 1000
	wordIDRange = 29000
)

// Tokenizer produces model inputs for BERT-style encoders.
type Tokenizer interface {
	Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64)
}

// SimpleTokenizer hashes lower-cased words and punctuation marks to vocabulary ids.
// It has no vocabulary file, so it suits local models trained with the same scheme and tests.
type SimpleTokenizer struct{}

// Tokenize returns [CLS] words... [SEP], padded with zeros to maxTokens (256 when <= 0).
// Words past maxTokens-2 are dropped.
func (t *SimpleTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	if maxTokens <= 0 {
		maxTokens = 256
	}
	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)
	tokenTypeIDs = make([]int64, maxTokens)

	inputIDs[0] = clsToken
	attentionMask[0] = 1
	pos := 1
	for _, word := range Words(text) {
		if pos >= maxTokens-1 {
			break
		}
		inputIDs[pos] = int64(HashString(word)%wordIDRange) + wordIDBase
		attentionMask[pos] = 1
		pos++
	}
	if pos < maxTokens {
		inputIDs[pos] = sepToken
		attentionMask[pos] = 1
	}
	return inputIDs, attentionMask, tokenTypeIDs
}

// Words lower-cases text and splits it into runs of letters and digits. Every other
// non-space rune is a word of its own, as BERT's basic tokenizer does with punctuation.
func Words(text string) []string {
	var (
		words []string
		cur   strings.Builder
	)
	flush := func() {
		if cur.Len() > 0 {
			words = append(words, cur.String())
			cur.Reset()
		}
	}
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			cur.WriteRune(r)
		case unicode.IsSpace(r):
			flush()
		default:
			flush()
			words = append(words, string(r))
		}
	}
	flush()
	return words
}

// HashString returns a deterministic non-negative hash of s.
func HashString(s string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return int(h.Sum32() & math.MaxInt32)
}
