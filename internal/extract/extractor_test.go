package extract

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/hyperjump/mcqgen/internal/models"
	"github.com/xuri/excelize/v2"
)

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, body := range files {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func wordXML(text string) string {
	return `<w:document><w:body><w:p w:rsidR="00A1"><w:r><w:t xml:space="preserve">` + text + `</w:t></w:r></w:p></w:body></w:document>`
}

func slideXML(text string) string {
	return `<p:sld><p:cSld><p:spTree><p:sp><p:txBody><a:p><a:r><a:t>` + text + `</a:t></a:r></a:p></p:txBody></p:sp></p:spTree></p:cSld></p:sld>`
}

func contentTypes(attrs string) string {
	return `<Types><Override ` + attrs + `/></Types>`
}

func text(t *testing.T, docs []models.Document) string {
	t.Helper()
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
	return docs[0].Content
}

func TestExtractBytes_formats(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		content []byte
		want    string
	}{
		{"plain", "notes.txt", []byte("Hello world\nLine 2"), "Hello world\nLine 2"},
		{"markdown utf8", "notes.md", []byte("caf\xc3\xa9"), "café"},
		{"invalid utf8", "notes.rst", []byte("hello\x80world"), "hello\uFFFDworld"},
		{"upper case extension", "NOTES.TXT", []byte("shout"), "shout"},
		{"docx", "a.docx", zipBytes(t, map[string]string{"word/document.xml": wordXML("Mitosis has four phases")}), "Mitosis has four phases"},
		{"docx custom part", "a.docx", zipBytes(t, map[string]string{
			"[Content_Types].xml": contentTypes(`PartName="/word/document2.xml" ContentType="` + docxMainContentType + `"`),
			"word/document2.xml":  wordXML("From document2"),
		}), "From document2"},
		{"docx reversed attributes", "a.docx", zipBytes(t, map[string]string{
			"[Content_Types].xml": contentTypes(`ContentType="` + docxMainContentType + `" PartName="/word/document3.xml"`),
			"word/document3.xml":  wordXML("Reversed order"),
		}), "Reversed order"},
		{"pptx slide order", "deck.pptx", zipBytes(t, map[string]string{
			"ppt/slides/slide10.xml": slideXML("Tenth"),
			"ppt/slides/slide2.xml":  slideXML("Second"),
			"ppt/slides/slide1.xml":  slideXML("First"),
		}), "First Second Tenth"},
		{"pptx without slides", "deck.pptx", zipBytes(t, map[string]string{"docProps/core.xml": ""}), ""},
		{"odp document order", "pres.odp", zipBytes(t, map[string]string{
			"content.xml": `<office:document><draw:page><text:h>Slide title</text:h><text:p>Body text</text:p></draw:page></office:document>`,
		}), "Slide title Body text"},
		{"ods cells", "sheet.ods", zipBytes(t, map[string]string{
			"content.xml": `<table:table-row><table:table-cell><text:p>Cell A</text:p></table:table-cell><table:table-cell><text:span>Cell B</text:span></table:table-cell></table:table-row>`,
		}), "Cell A Cell B"},
	}
	e := NewExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := e.ExtractBytes(tt.content, tt.source)
			if err != nil {
				t.Fatalf("ExtractBytes: %v", err)
			}
			if got := text(t, docs); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
			if docs[0].Metadata[models.MetaSource] != tt.source {
				t.Errorf("source = %v", docs[0].Metadata[models.MetaSource])
			}
		})
	}
}

func TestExtractBytes_errors(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		content []byte
	}{
		{"unsupported", "image.png", []byte("png")},
		{"no extension", "README", []byte("text")},
		{"docx not zip", "a.docx", []byte("not a zip")},
		{"docx missing body", "a.docx", zipBytes(t, map[string]string{"other.xml": ""})},
		{"odp missing content", "a.odp", zipBytes(t, map[string]string{"other.xml": ""})},
		{"ods missing content", "a.ods", zipBytes(t, map[string]string{"other.xml": ""})},
		{"pdf garbage", "a.pdf", []byte("%PDF-garbage")},
	}
	e := NewExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := e.ExtractBytes(tt.content, tt.source); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestExtractBytes_excelSheets(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	f.SetCellValue("Sheet1", "A1", "Title")
	f.SetCellValue("Sheet1", "A2", "Value 1")
	f.SetCellValue("Sheet1", "B2", "Value 2")
	if _, err := f.NewSheet("Empty"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.NewSheet("Glossary"); err != nil {
		t.Fatal(err)
	}
	f.SetCellValue("Glossary", "A1", "Cell")
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	docs, err := NewExtractor().ExtractBytes(buf.Bytes(), "book.xlsx")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 non-empty sheets, got %d", len(docs))
	}
	if docs[0].Content != "Title\nValue 1\tValue 2" || docs[0].Metadata["sheet"] != "Sheet1" {
		t.Errorf("sheet 1 = %q %v", docs[0].Content, docs[0].Metadata)
	}
	if docs[1].Content != "Cell" || docs[1].Metadata["sheet"] != "Glossary" {
		t.Errorf("sheet 2 = %q %v", docs[1].Content, docs[1].Metadata)
	}
}

func TestExtract_file(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.txt")
	if err := os.WriteFile(path, []byte("File content"), 0600); err != nil {
		t.Fatal(err)
	}
	docs, err := NewExtractor().Extract(path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got := text(t, docs); got != "File content" {
		t.Errorf("got %q", got)
	}
	if docs[0].Metadata[models.MetaSource] != path {
		t.Errorf("source = %v, want %s", docs[0].Metadata[models.MetaSource], path)
	}
}

func TestExtract_nonexistent(t *testing.T) {
	if _, err := NewExtractor().Extract("/nonexistent/path/file.txt"); err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestSupported(t *testing.T) {
	for _, p := range []string{"a.pdf", "a.DOCX", "a.txt", "dir/a.md", "a.xlsx", "a.odt", "a.rtf"} {
		if !Supported(p) {
			t.Errorf("Supported(%q) = false", p)
		}
	}
	for _, p := range []string{"a.png", "a", "a.doc", "a.pdf.bak"} {
		if Supported(p) {
			t.Errorf("Supported(%q) = true", p)
		}
	}
	exts := SupportedExtensions()
	if !sort.StringsAreSorted(exts) || exts[0] != ".docx" {
		t.Errorf("SupportedExtensions not sorted: %v", exts)
	}
}
