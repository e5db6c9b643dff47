// Package e2e provides end-to-end tests; this file builds minimal upload files for supported types.
package e2e

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

// SupportedFileExtensions lists the upload types the fixtures can produce: plain text
// (.txt, .md, .rst), OOXML (.docx, .xlsx, .pptx) and OpenDocument (.odp, .ods). PDF, .odt
// and .rtf are loadable too but have no minimal generator here.
var SupportedFileExtensions = []string{
	".txt", ".md", ".rst",
	".docx", ".xlsx", ".pptx", ".odp", ".ods",
}

// WriteFixture writes a minimal file named name under dir whose extracted text is text,
// and returns its path.
func WriteFixture(dir, name, text string) (string, error) {
	content, err := MinimalFile(filepath.Ext(name), text)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0644); err != nil {
		return "", err
	}
	return path, nil
}

// MinimalFile returns the bytes of a minimal file of type ext holding text. Plain types
// are the raw text.
func MinimalFile(ext, text string) ([]byte, error) {
	switch ext {
	case ".txt", ".md", ".rst":
		return []byte(text), nil
	case ".docx":
		return minimalDocx(text), nil
	case ".pptx":
		return minimalPptx(text), nil
	case ".odp":
		return minimalOdp(text), nil
	case ".ods":
		return minimalOds(text), nil
	case ".xlsx":
		return minimalXlsx(text), nil
	default:
		return []byte(text), nil
	}
}

// zipWith returns a zip archive holding one entry.
func zipWith(name, body string) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, _ := w.Create(name)
	_, _ = fw.Write([]byte(body))
	_ = w.Close()
	return buf.Bytes()
}

func minimalDocx(text string) []byte {
	return zipWith("word/document.xml",
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p><w:r><w:t>`+text+`</w:t></w:r></w:p></w:body></w:document>`)
}

func minimalPptx(text string) []byte {
	return zipWith("ppt/slides/slide1.xml",
		`<p:sld xmlns:p="a" xmlns:a="b"><p:cSld><p:spTree><p:sp><p:txBody><a:p><a:r><a:t>`+text+`</a:t></a:r></a:p></p:txBody></p:sp></p:spTree></p:cSld></p:sld>`)
}

func minimalOdp(text string) []byte {
	return zipWith("content.xml",
		`<office:document><office:body><draw:page><draw:text-box><text:p>`+text+`</text:p></draw:text-box></draw:page></office:body></office:document>`)
}

func minimalOds(text string) []byte {
	return zipWith("content.xml",
		`<office:document><office:body><table:table><table:table-row><table:table-cell><text:p>`+text+`</text:p></table:table-cell></table:table-row></table:table></office:body></office:document>`)
}

func minimalXlsx(text string) []byte {
	f := excelize.NewFile()
	defer f.Close()
	_ = f.SetCellValue("Sheet1", "A1", text)
	var buf bytes.Buffer
	_, _ = f.WriteTo(&buf)
	return buf.Bytes()
}
