package docload

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/xuri/excelize/v2"
	"golang.org/x/net/html"
)

// extractPDF returns one string per page.
func extractPDF(data []byte) ([]string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("opening pdf: %w", err)
	}

	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			// Skip pages with unparseable content streams rather than
			// failing the whole document.
			continue
		}
		pages = append(pages, strings.TrimSpace(text))
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("pdf contains no extractable text")
	}
	return pages, nil
}

var (
	docxParaRe = regexp.MustCompile(`</w:p>`)
	docxTagRe  = regexp.MustCompile(`<[^>]+>`)
)

// extractDocx returns the document body as a single string with paragraph
// breaks preserved.
func extractDocx(data []byte) ([]string, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("opening docx: %w", err)
	}
	defer r.Close()

	raw := r.Editable().GetContent()
	text := docxParaRe.ReplaceAllString(raw, "\n")
	text = docxTagRe.ReplaceAllString(text, "")
	text = html.UnescapeString(text)
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("docx contains no text")
	}
	return []string{text}, nil
}

// extractXlsx returns one tab-separated string per sheet.
func extractXlsx(data []byte) ([]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("opening xlsx: %w", err)
	}
	defer f.Close()

	var sheets []string
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			continue
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Sheet: %s\n", name)
		for _, row := range rows {
			b.WriteString(strings.Join(row, "\t"))
			b.WriteString("\n")
		}
		sheets = append(sheets, strings.TrimSpace(b.String()))
	}
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook contains no sheets")
	}
	return sheets, nil
}

// extractZipContainer disambiguates a generic zip payload: OOXML documents
// carry well-known member paths.
func extractZipContainer(data []byte) ([]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	for _, f := range zr.File {
		switch f.Name {
		case "word/document.xml":
			return extractDocx(data)
		case "xl/workbook.xml":
			return extractXlsx(data)
		}
	}
	return nil, fmt.Errorf("unrecognized zip document")
}

// extractHTML walks the parse tree collecting visible text.
func extractHTML(r io.Reader) ([]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "head":
				return
			}
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				b.WriteString(t)
				b.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode {
			switch n.Data {
			case "p", "div", "br", "li", "h1", "h2", "h3", "h4", "h5", "h6", "tr":
				b.WriteString("\n")
			}
		}
	}
	walk(doc)

	text := strings.TrimSpace(b.String())
	if text == "" {
		return nil, fmt.Errorf("page contains no text")
	}
	return []string{text}, nil
}
