package domain

import (
	"strings"
)

// SourceKind identifies where an evidence item came from
type SourceKind string

const (
	// SourceKindDatabase is the local vector-indexed collection
	SourceKindDatabase SourceKind = "database"
	// SourceKindWeb is live web search
	SourceKindWeb SourceKind = "web"
)

// IsValid checks if the source kind is known
func (k SourceKind) IsValid() bool {
	return k == SourceKindDatabase || k == SourceKindWeb
}

// rank orders database items before web items
func (k SourceKind) rank() int {
	if k == SourceKindDatabase {
		return 0
	}
	return 1
}

// ScoredChunk is one vector store hit
type ScoredChunk struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// WebResult is one web search hit, optionally with extracted page content
type WebResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	Content string `json:"content,omitempty"`
}

// Domain returns the lowercased host of the result URL
func (r WebResult) Domain() string {
	host := r.URL
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	if i := strings.IndexAny(host, "/?#"); i >= 0 {
		host = host[:i]
	}
	return strings.ToLower(host)
}

// EvidenceItem represents one retrieved unit of information
type EvidenceItem struct {
	SourceKind     SourceKind        `json:"source_kind"`
	OriginSubQuery string            `json:"origin_sub_query"`
	SubQueryIndex  int               `json:"sub_query_index"`
	Content        string            `json:"content"`
	Title          string            `json:"title,omitempty"`
	URL            string            `json:"url,omitempty"`
	Score          float64           `json:"score"`
	CitationIndex  int               `json:"citation_index"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Label returns the title, falling back to the URL or the source metadata
func (e EvidenceItem) Label() string {
	if e.Title != "" {
		return e.Title
	}
	if e.URL != "" {
		return e.URL
	}
	if src := e.Metadata["source"]; src != "" {
		return src
	}
	return "Local knowledge base"
}

// NormalizedContent collapses all whitespace runs to single spaces
func (e EvidenceItem) NormalizedContent() string {
	return NormalizeWhitespace(e.Content)
}

// NormalizeWhitespace collapses whitespace runs and trims the result
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// RetrievalFailure records one failed or timed-out retrieval call
type RetrievalFailure struct {
	Source   SourceKind `json:"source"`
	SubQuery string     `json:"sub_query"`
	Error    string     `json:"error"`
}

// EvidenceReport owns the numbered evidence for a single request
type EvidenceReport struct {
	SubQueries []string           `json:"sub_queries"`
	Items      []EvidenceItem     `json:"items"`
	Failures   []RetrievalFailure `json:"failures,omitempty"`
}

// IsEmpty returns true if no evidence was gathered
func (r *EvidenceReport) IsEmpty() bool {
	return r == nil || len(r.Items) == 0
}

// Item returns the item with the given citation index
func (r *EvidenceReport) Item(index int) (EvidenceItem, bool) {
	if r == nil || index < 1 || index > len(r.Items) {
		return EvidenceItem{}, false
	}
	item := r.Items[index-1]
	return item, item.CitationIndex == index
}

// HasIndex checks whether index is a valid citation index in the report
func (r *EvidenceReport) HasIndex(index int) bool {
	_, ok := r.Item(index)
	return ok
}

// CountByKind returns the number of items from the given source
func (r *EvidenceReport) CountByKind(kind SourceKind) int {
	if r == nil {
		return 0
	}
	n := 0
	for _, item := range r.Items {
		if item.SourceKind == kind {
			n++
		}
	}
	return n
}

// ItemsFor returns the items produced by one sub-query and source, in citation order
func (r *EvidenceReport) ItemsFor(subQuery string, kind SourceKind) []EvidenceItem {
	if r == nil {
		return nil
	}
	var items []EvidenceItem
	for _, item := range r.Items {
		if item.OriginSubQuery == subQuery && item.SourceKind == kind {
			items = append(items, item)
		}
	}
	return items
}

// Citations converts the given citation indices into citations
func (r *EvidenceReport) Citations(indices []int) []Citation {
	citations := make([]Citation, 0, len(indices))
	for _, idx := range indices {
		item, ok := r.Item(idx)
		if !ok {
			continue
		}
		citations = append(citations, Citation{
			Index: idx,
			Title: item.Label(),
			URL:   item.URL,
			Kind:  item.SourceKind,
		})
	}
	return citations
}

// Citation is a user-facing reference to an evidence item
type Citation struct {
	Index int        `json:"index"`
	Title string     `json:"title"`
	URL   string     `json:"url,omitempty"`
	Kind  SourceKind `json:"kind"`
}
