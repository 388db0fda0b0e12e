package websearch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/custodia-labs/agrisearch-core/internal/core/domain"
	"github.com/custodia-labs/agrisearch-core/internal/core/ports/driven"
)

// Ensure DuckDuckGo implements WebSearchProvider
var _ driven.WebSearchProvider = (*DuckDuckGo)(nil)

const duckDuckGoLiteURL = "https://lite.duckduckgo.com/lite/"

const (
	ddgResultLinkClass    = "result-link"
	ddgResultSnippetClass = "result-snippet"
)

// DuckDuckGo scrapes the DuckDuckGo lite HTML interface. It needs no key;
// requests are limited to one per second across the process by default.
type DuckDuckGo struct {
	cfg *config
}

// NewDuckDuckGo creates a DuckDuckGo provider
func NewDuckDuckGo(opts ...Option) *DuckDuckGo {
	return &DuckDuckGo{cfg: newConfig(duckDuckGoLiteURL, 1, opts)}
}

// Name returns the provider name
func (d *DuckDuckGo) Name() string {
	return string(domain.WebSearchDuckDuckGo)
}

// Search returns up to k results
func (d *DuckDuckGo) Search(ctx context.Context, query string, k int) ([]domain.WebResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}

	form := url.Values{}
	form.Set("q", query)
	resp, err := d.cfg.do(ctx, d.Name(), func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: duckduckgo read: %v", domain.ErrRetrieval, err)
	}
	return d.cfg.limit(parseLiteResults(string(body)), k), nil
}

type liteLink struct {
	href  string
	title string
}

// parseLiteResults extracts result links and snippets from the lite page.
// Links and snippets appear in the same order, one snippet per result.
func parseLiteResults(page string) []domain.WebResult {
	links, snippets := scanLitePage(page)

	results := make([]domain.WebResult, 0, len(links))
	seen := make(map[string]bool)
	for i, l := range links {
		target := resolveRedirect(strings.TrimSpace(l.href))
		title := cleanFragment(l.title)
		if target == "" || title == "" || seen[target] || isAdLink(target) {
			continue
		}
		seen[target] = true

		var snippet string
		if i < len(snippets) {
			snippet = cleanFragment(snippets[i])
		}
		results = append(results, domain.WebResult{
			Title:   title,
			URL:     target,
			Snippet: snippet,
		})
	}
	return results
}

// scanLitePage tokenises the page, collecting the text of result-link anchors
// and result-snippet cells. Entities in text and attributes are decoded.
func scanLitePage(page string) ([]liteLink, []string) {
	var (
		links    []liteLink
		snippets []string
		inLink   bool
		inCell   bool
		text     strings.Builder
		href     string
	)

	z := html.NewTokenizer(strings.NewReader(page))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return links, snippets
		case html.TextToken:
			if inLink || inCell {
				text.Write(z.Text())
			}
		case html.StartTagToken:
			tok := z.Token()
			switch {
			case tok.DataAtom == atom.A && hasClass(tok, ddgResultLinkClass):
				inLink, href = true, attr(tok, "href")
				text.Reset()
			case tok.DataAtom == atom.Td && hasClass(tok, ddgResultSnippetClass):
				inCell = true
				text.Reset()
			}
		case html.EndTagToken:
			tok := z.Token()
			switch {
			case inLink && tok.DataAtom == atom.A:
				links = append(links, liteLink{href: href, title: text.String()})
				inLink = false
			case inCell && tok.DataAtom == atom.Td:
				snippets = append(snippets, text.String())
				inCell = false
			}
		}
	}
}

func attr(tok html.Token, key string) string {
	for _, a := range tok.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(tok html.Token, class string) bool {
	for _, c := range strings.Fields(attr(tok, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

// resolveRedirect unwraps DuckDuckGo's /l/?uddg= redirect links
func resolveRedirect(link string) string {
	if strings.HasPrefix(link, "//") {
		link = "https:" + link
	}
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	if strings.HasSuffix(u.Host, "duckduckgo.com") && strings.HasPrefix(u.Path, "/l/") {
		if target := u.Query().Get("uddg"); target != "" {
			return target
		}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return link
}

// isAdLink filters sponsored results that point back to DuckDuckGo
func isAdLink(link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return true
	}
	return strings.HasSuffix(u.Host, "duckduckgo.com") || strings.Contains(u.RawQuery, "ad_provider")
}

func cleanFragment(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
