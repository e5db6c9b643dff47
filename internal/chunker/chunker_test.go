package chunker

import (
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/hyperjump/mcqgen/internal/models"
)

func mustChunker(t *testing.T, size, overlap int) *Chunker {
	t.Helper()
	c, err := NewChunker(size, overlap)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestNewChunker_invalid(t *testing.T) {
	for _, tt := range []struct{ size, overlap int }{{0, 0}, {-1, 0}, {10, 11}, {10, -1}} {
		if _, err := NewChunker(tt.size, tt.overlap); err == nil {
			t.Errorf("NewChunker(%d, %d) should fail", tt.size, tt.overlap)
		}
	}
}

func TestSplitText(t *testing.T) {
	tests := []struct {
		name          string
		size, overlap int
		text          string
		want          []string
	}{
		{"words with overlap", 10, 4, "one two three four five six seven",
			[]string{"one two", "two three", "four five", "six seven"}},
		{"paragraphs split", 12, 0, "Para one.\n\nPara two.",
			[]string{"Para one.", "Para two."}},
		{"paragraphs merged", 100, 0, "Para one.\n\nPara two.",
			[]string{"Para one.\n\nPara two."}},
		{"long word falls back to characters", 5, 0, "abcdefgh ij",
			[]string{"abcde", "fgh", "ij"}},
		{"whitespace only", 10, 0, "   ", nil},
		{"empty", 10, 0, "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mustChunker(t, tt.size, tt.overlap).SplitText(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSplitText_respectsSize(t *testing.T) {
	text := strings.Repeat("Cells divide by mitosis. Le cycle cellulaire est régulé.\n", 80)
	c := mustChunker(t, 120, 30)
	chunks := c.SplitText(text)
	if len(chunks) < 10 {
		t.Fatalf("expected many chunks, got %d", len(chunks))
	}
	for i, ch := range chunks {
		if n := utf8.RuneCountInString(ch); n > 120 {
			t.Errorf("chunk %d has %d runes", i, n)
		}
	}
	if !reflect.DeepEqual(chunks, c.SplitText(text)) {
		t.Error("splitting is not deterministic")
	}
}

func TestSplitDocuments_rowIDs(t *testing.T) {
	c := mustChunker(t, 10, 0)
	docs := []models.Document{
		{Content: "alpha beta gamma", Metadata: map[string]interface{}{"source": "a.pdf", "page": 0}},
		{Content: "delta epsilon", Metadata: map[string]interface{}{"source": "b.txt"}},
		{Content: "zeta eta", Metadata: map[string]interface{}{"source": "a.pdf", "page": 1}},
	}
	chunks := c.SplitDocuments(docs)

	type row struct {
		source string
		row    int
		page   interface{}
	}
	var got []row
	for _, ch := range chunks {
		got = append(got, row{ch.Source(), ch.Metadata[models.MetaRowID].(int), ch.Metadata["page"]})
	}
	want := []row{
		{"a.pdf", 0, 0}, {"a.pdf", 1, 0},
		{"b.txt", 0, nil}, {"b.txt", 1, nil},
		{"a.pdf", 2, 1},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v\nwant %+v", got, want)
	}
	if _, ok := docs[0].Metadata[models.MetaRowID]; ok {
		t.Error("document metadata must not be modified")
	}
}

func TestPreprocess(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  a  b  ", "a b"},
		{"a\r\nb", "a\nb"},
		{"a \t\n  b", "a\nb"},
		{"p1\n\n\n\n p2", "p1\n\np2"},
		{"x\x00y", "xy"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Preprocess(tt.in); got != tt.want {
			t.Errorf("Preprocess(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
