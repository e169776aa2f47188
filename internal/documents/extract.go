package documents

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
	"golang.org/x/text/encoding/charmap"
)

// Format is the extraction strategy chosen for a file.
type Format string

const (
	FormatPDF      Format = "pdf"
	FormatDOCX     Format = "docx"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
)

const pageSeparator = "\n\n"

var blankRuns = regexp.MustCompile(`\n{3,}`)

// DetectFormat picks a format from the file suffix, falling back to the
// content type.
func DetectFormat(path, contentType string) Format {
	ct := strings.ToLower(contentType)
	switch ext := strings.ToLower(filepath.Ext(path)); {
	case ext == ".pdf" || strings.Contains(ct, "pdf"):
		return FormatPDF
	case ext == ".docx" || strings.Contains(ct, "wordprocessingml"):
		return FormatDOCX
	case ext == ".md" || ext == ".markdown" || strings.Contains(ct, "markdown"):
		return FormatMarkdown
	default:
		return FormatText
	}
}

// ExtractText returns the trimmed plain text of the file at path. Unknown
// formats are read as UTF-8, or as Latin-1 when the bytes are not valid UTF-8.
func ExtractText(path, contentType string) (string, error) {
	var (
		out string
		err error
	)
	switch DetectFormat(path, contentType) {
	case FormatPDF:
		out, err = extractPDF(path)
	case FormatDOCX:
		out, err = extractDOCX(path)
	case FormatMarkdown:
		var data []byte
		if data, err = os.ReadFile(path); err == nil {
			out, err = MarkdownText(decodeText(data))
		}
	default:
		var data []byte
		if data, err = os.ReadFile(path); err == nil {
			out = decodeText(data)
		}
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func decodeText(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	// ISO-8859-1 maps every byte, so decoding cannot fail.
	out, _ := charmap.ISO8859_1.NewDecoder().Bytes(data)
	return string(out)
}

func extractPDF(path string) (out string, err error) {
	// ledongthuc/pdf panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reading pdf %s: %v", filepath.Base(path), r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("reading pdf page %d: %w", i, err)
		}
		pages = append(pages, content)
	}
	return strings.Join(pages, pageSeparator), nil
}

func extractDOCX(path string) (string, error) {
	r, err := docx.ReadDocxFile(path)
	if err != nil {
		return "", fmt.Errorf("opening docx %s: %w", filepath.Base(path), err)
	}
	defer r.Close()
	return wordXMLText(r.Editable().GetContent())
}

// wordXMLText flattens WordprocessingML into text, one blank line between
// paragraphs.
func wordXMLText(content string) (string, error) {
	dec := xml.NewDecoder(strings.NewReader(content))
	dec.Strict = false

	var (
		b      strings.Builder
		inText bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parsing docx body: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				b.WriteByte('\t')
			case "br", "cr":
				b.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				b.WriteString("\n\n")
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return blankRuns.ReplaceAllString(b.String(), "\n\n"), nil
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// MarkdownText renders Markdown source as plain text. Block elements are
// separated by blank lines; list items by single newlines.
func MarkdownText(src string) (string, error) {
	source := []byte(src)
	doc := markdown.Parser().Parse(text.NewReader(source))

	var b bytes.Buffer
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			switch n.Kind() {
			case ast.KindParagraph, ast.KindHeading, ast.KindFencedCodeBlock, ast.KindCodeBlock:
				b.WriteString("\n\n")
			case ast.KindTextBlock:
				b.WriteByte('\n')
			}
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Text:
			b.Write(node.Segment.Value(source))
			if node.SoftLineBreak() || node.HardLineBreak() {
				b.WriteByte('\n')
			}
		case *ast.String:
			b.Write(node.Value)
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				b.Write(seg.Value(source))
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return strings.TrimSpace(blankRuns.ReplaceAllString(b.String(), "\n\n")), nil
}
