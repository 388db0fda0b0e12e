package normalisers

import (
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// htmlSkipped elements are dropped with their content
var htmlSkipped = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Nav:      true,
	atom.Header:   true,
	atom.Footer:   true,
	atom.Template: true,
}

// htmlBlocks start a new line
var htmlBlocks = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true, atom.Ul: true, atom.Ol: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Tr: true, atom.Table: true, atom.Section: true, atom.Article: true, atom.Blockquote: true,
	atom.Pre: true, atom.Dt: true, atom.Dd: true,
}

// htmlInline elements are joined to their neighbours without a space
var htmlInline = map[atom.Atom]bool{
	atom.A: true, atom.B: true, atom.I: true, atom.Em: true, atom.Strong: true,
	atom.Span: true, atom.Code: true, atom.Sub: true, atom.Sup: true, atom.Small: true,
}

// HTMLNormaliser extracts readable text from HTML pages.
// Scripts, styles and page chrome (nav, header, footer) are removed.
type HTMLNormaliser struct{}

func (n *HTMLNormaliser) Normalise(content string, mimeType string) string {
	return collapseBlankLines(normaliseLineEndings(ExtractText(strings.NewReader(content))))
}

func (n *HTMLNormaliser) SupportedTypes() []string {
	return []string{"text/html", "application/xhtml+xml"}
}

func (n *HTMLNormaliser) Priority() int {
	return 50
}

// ExtractText tokenises HTML and returns its visible text with block
// elements on their own lines. Entities are decoded; comments are dropped.
func ExtractText(r io.Reader) string {
	var b strings.Builder
	z := html.NewTokenizer(r)
	skipDepth := 0

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			if skipDepth == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if htmlSkipped[a] {
				if tt == html.StartTagToken {
					skipDepth++
				}
				continue
			}
			writeTagBreak(&b, a, skipDepth)
		case html.EndTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if htmlSkipped[a] {
				if skipDepth > 0 {
					skipDepth--
				}
				continue
			}
			writeTagBreak(&b, a, skipDepth)
		}
	}
}

func writeTagBreak(b *strings.Builder, a atom.Atom, skipDepth int) {
	if skipDepth > 0 || htmlInline[a] {
		return
	}
	if htmlBlocks[a] {
		b.WriteByte('\n')
		return
	}
	b.WriteByte(' ')
}
