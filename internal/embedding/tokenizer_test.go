package embedding

import (
	"reflect"
	"testing"
)

func TestSimpleTokenizer_Tokenize(t *testing.T) {
	tok := &SimpleTokenizer{}
	ids, attn, types := tok.Tokenize("Chlorophyll absorbs light.", 10)
	if len(ids) != 10 || len(attn) != 10 || len(types) != 10 {
		t.Fatalf("lengths = %d,%d,%d", len(ids), len(attn), len(types))
	}
	if ids[0] != clsToken {
		t.Errorf("expected CLS, got %d", ids[0])
	}
	// three words and the full stop
	if ids[5] != sepToken {
		t.Errorf("expected SEP at 5, got %d", ids[5])
	}
	if attn[5] != 1 || attn[6] != 0 {
		t.Errorf("attention mask = %v", attn)
	}
	lower, _, _ := tok.Tokenize("chlorophyll ABSORBS light.", 10)
	if !reflect.DeepEqual(lower, ids) {
		t.Error("tokenization should be case-insensitive")
	}
}

func TestSimpleTokenizer_truncates(t *testing.T) {
	tok := &SimpleTokenizer{}
	ids, attn, _ := tok.Tokenize("a b c d e f g h i j k l", 5)
	if len(ids) != 5 {
		t.Fatalf("len = %d", len(ids))
	}
	for _, id := range ids[1:4] {
		if id < wordIDBase || id >= wordIDBase+wordIDRange {
			t.Errorf("word token out of range: %d", id)
		}
	}
	if ids[4] != sepToken || attn[4] != 1 {
		t.Errorf("last position should hold SEP, got %v", ids)
	}
}

func TestWords(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"  a \t b\n c  ", []string{"a", "b", "c"}},
		{"CO2 isn't O2!", []string{"co2", "isn", "'", "t", "o2", "!"}},
		{"", nil},
		{"   ", nil},
	}
	for _, tt := range tests {
		if got := Words(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Words(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHashString(t *testing.T) {
	if HashString("abc") != HashString("abc") {
		t.Error("hash should be deterministic")
	}
	if HashString("abc") == HashString("abd") {
		t.Error("different strings should usually hash differently")
	}
	if HashString("some long string that could overflow") < 0 {
		t.Error("hash must be non-negative")
	}
}
