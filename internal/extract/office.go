package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const (
	contentTypesPath    = "[Content_Types].xml"
	docxDefaultPath     = "word/document.xml"
	docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
	pptxSlidePrefix     = "ppt/slides/slide"
	openDocContentPath  = "content.xml"
)

var (
	// Attributes on the text elements are allowed, e.g. <w:t xml:space="preserve">.
	wordTextTag  = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)
	slideTextTag = regexp.MustCompile(`<a:t[^>]*>([^<]*)</a:t>`)
	odfTextTag   = regexp.MustCompile(`<text:(?:p|h|span)[^>]*>([^<]*)</text:(?:p|h|span)>`)

	// Either attribute order appears in the wild.
	docxPartName    = regexp.MustCompile(`<Override[^>]+PartName="([^"]+)"[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"`)
	docxPartNameRev = regexp.MustCompile(`<Override[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"[^>]+PartName="([^"]+)"`)

	slideNumber = regexp.MustCompile(`slide(\d+)\.xml$`)
)

// zipPackage is an opened OOXML or OpenDocument container.
type zipPackage struct {
	kind string
	zr   *zip.Reader
}

func openPackage(kind string, content []byte) (*zipPackage, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("extract %s: not a zip: %w", kind, err)
	}
	return &zipPackage{kind: kind, zr: zr}, nil
}

// read returns the named part, or nil when absent.
func (p *zipPackage) read(name string) ([]byte, error) {
	for _, f := range p.zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("extract %s: open %s: %w", p.kind, name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("extract %s: read %s: %w", p.kind, name, err)
		}
		return data, nil
	}
	return nil, nil
}

func (p *zipPackage) mustRead(name string) ([]byte, error) {
	data, err := p.read(name)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("extract %s: %s not found", p.kind, name)
	}
	return data, nil
}

// joinMatches joins the first capture group of every match with single spaces.
func joinMatches(re *regexp.Regexp, xml []byte, b *strings.Builder) {
	for _, m := range re.FindAllSubmatch(xml, -1) {
		text := strings.TrimSpace(string(m[1]))
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(text)
	}
}

// extractDOCX reads the main document part named in [Content_Types].xml, falling back to
// word/document.xml. Paragraph elements often carry attributes, so text runs are matched
// directly.
func extractDOCX(content []byte) (string, error) {
	pkg, err := openPackage("DOCX", content)
	if err != nil {
		return "", err
	}
	docPath := docxDefaultPath
	types, err := pkg.read(contentTypesPath)
	if err != nil {
		return "", err
	}
	for _, re := range []*regexp.Regexp{docxPartName, docxPartNameRev} {
		if m := re.FindSubmatch(types); len(m) > 1 {
			docPath = strings.TrimPrefix(string(m[1]), "/")
			break
		}
	}
	xml, err := pkg.mustRead(docPath)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	joinMatches(wordTextTag, xml, &b)
	return b.String(), nil
}

// extractPPTX reads every slide in slide-number order.
func extractPPTX(content []byte) (string, error) {
	pkg, err := openPackage("PPTX", content)
	if err != nil {
		return "", err
	}
	type slide struct {
		n    int
		name string
	}
	var slides []slide
	for _, f := range pkg.zr.File {
		if !strings.HasPrefix(f.Name, pptxSlidePrefix) {
			continue
		}
		m := slideNumber.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		slides = append(slides, slide{n: n, name: f.Name})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].n < slides[j].n })

	var b strings.Builder
	for _, s := range slides {
		xml, err := pkg.mustRead(s.name)
		if err != nil {
			return "", err
		}
		joinMatches(slideTextTag, xml, &b)
	}
	return b.String(), nil
}

func extractODP(content []byte) (string, error) { return extractOpenDocument("ODP", content) }
func extractODS(content []byte) (string, error) { return extractOpenDocument("ODS", content) }

// extractOpenDocument reads content.xml and keeps paragraph, heading and span text in
// document order.
func extractOpenDocument(kind string, content []byte) (string, error) {
	pkg, err := openPackage(kind, content)
	if err != nil {
		return "", err
	}
	xml, err := pkg.mustRead(openDocContentPath)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	joinMatches(odfTextTag, xml, &b)
	return b.String(), nil
}
