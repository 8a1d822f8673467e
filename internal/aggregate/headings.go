package aggregate

import (
	"bytes"
	"fmt"
	"strings"
	"unicode"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxHeadingLevel is the deepest heading level indexed in a table of contents.
const MaxHeadingLevel = 3

// Heading is one table-of-contents entry of a markdown document.
type Heading struct {
	Level int
	Text  string
	ID    string
}

// Headings lists the level 1 to 3 headings of a markdown document in
// document order. Headings with identical text get identical ids.
func Headings(markdown []byte) []Heading {
	doc := goldmark.DefaultParser().Parse(text.NewReader(markdown))
	return indexHeadings(doc, markdown)
}

// RenderRules renders a markdown document to HTML, stamping each indexed
// heading with the id returned alongside it so that anchors resolve.
func RenderRules(markdown []byte) (string, []Heading, error) {
	md := goldmark.New(
		goldmark.WithExtensions(extension.Table),
		goldmark.WithRendererOptions(goldmarkHTML.WithHardWraps()),
	)
	doc := md.Parser().Parse(text.NewReader(markdown))
	headings := indexHeadings(doc, markdown)

	var buf bytes.Buffer
	if err := md.Renderer().Render(&buf, markdown, doc); err != nil {
		return "", nil, fmt.Errorf("render rules: %w", err)
	}
	return buf.String(), headings, nil
}

func indexHeadings(doc ast.Node, source []byte) []Heading {
	var out []Heading
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		h, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		if h.Level > MaxHeadingLevel {
			return ast.WalkSkipChildren, nil
		}
		var b strings.Builder
		plainText(h, source, &b)
		label := strings.TrimSpace(b.String())
		id := Slug(label)
		h.SetAttributeString("id", []byte(id))
		out = append(out, Heading{Level: h.Level, Text: label, ID: id})
		return ast.WalkSkipChildren, nil
	})
	return out
}

func plainText(n ast.Node, source []byte, b *strings.Builder) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		default:
			plainText(c, source, b)
		}
	}
}

// Slug derives an anchor id from heading text: lowercase, diacritics
// stripped, anything but ASCII letters and digits dropped, whitespace and
// hyphen runs joined by a single hyphen, no leading or trailing hyphen.
//
//	Slug("Artículo 1: Objeto") -> "articulo-1-objeto"
func Slug(s string) string {
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))
	folded, _, err := transform.String(stripMarks, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	gap := false
	for _, r := range folded {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if gap && b.Len() > 0 {
				b.WriteByte('-')
			}
			gap = false
			b.WriteRune(r)
		case r == '-' || unicode.IsSpace(r):
			gap = true
		}
	}
	return b.String()
}
