package normalisers

import "regexp"

var (
	mdFence    = regexp.MustCompile("(?m)^\\s*```.*$")
	mdHeading  = regexp.MustCompile(`(?m)^\s{0,3}#{1,6}\s+`)
	mdImage    = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	mdLink     = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	mdEmphasis = regexp.MustCompile(`(\*\*|__|\*|_|~~)([^*_~\n]+)(\*\*|__|\*|_|~~)`)
	mdCode     = regexp.MustCompile("`([^`]+)`")
	mdQuote    = regexp.MustCompile(`(?m)^\s*>\s?`)
	mdRule     = regexp.MustCompile(`(?m)^\s*([-*_]\s*){3,}$`)
)

// MarkdownNormaliser strips Markdown syntax and keeps the text.
// Link and image labels survive; their targets are dropped.
type MarkdownNormaliser struct{}

func (n *MarkdownNormaliser) Normalise(content string, mimeType string) string {
	content = normaliseLineEndings(content)
	content = mdFence.ReplaceAllString(content, "")
	content = mdRule.ReplaceAllString(content, "")
	content = mdHeading.ReplaceAllString(content, "")
	content = mdQuote.ReplaceAllString(content, "")
	content = mdImage.ReplaceAllString(content, "$1")
	content = mdLink.ReplaceAllString(content, "$1")
	content = mdEmphasis.ReplaceAllString(content, "$2")
	content = mdCode.ReplaceAllString(content, "$1")
	return collapseBlankLines(content)
}

func (n *MarkdownNormaliser) SupportedTypes() []string {
	return []string{"text/markdown", "text/x-markdown"}
}

func (n *MarkdownNormaliser) Priority() int {
	return 50
}
