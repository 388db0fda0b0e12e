package normalisers

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/agrisearch-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.NormaliserRegistry = (*Registry)(nil)

// Registry selects a normaliser by MIME type.
// When several match, the highest priority one wins.
type Registry struct {
	mu          sync.RWMutex
	normalisers []driven.Normaliser
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// DefaultRegistry returns a registry with the plain text, Markdown and HTML normalisers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&PlaintextNormaliser{})
	r.Register(&MarkdownNormaliser{})
	r.Register(&HTMLNormaliser{})
	return r
}

// Register adds a normaliser.
func (r *Registry) Register(normaliser driven.Normaliser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.normalisers = append(r.normalisers, normaliser)
}

// Get returns the best-matching normaliser, or nil.
func (r *Registry) Get(mimeType string) driven.Normaliser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best driven.Normaliser
	for _, n := range r.normalisers {
		if !matchesMIMEType(n.SupportedTypes(), mimeType) {
			continue
		}
		if best == nil || n.Priority() > best.Priority() {
			best = n
		}
	}
	return best
}

// List returns all registered MIME types, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := make(map[string]struct{})
	for _, n := range r.normalisers {
		for _, t := range n.SupportedTypes() {
			set[t] = struct{}{}
		}
	}
	types := make([]string, 0, len(set))
	for t := range set {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Normalise runs the best-matching normaliser over content.
// Content is returned trimmed when nothing matches.
func (r *Registry) Normalise(content, mimeType string) string {
	if n := r.Get(mimeType); n != nil {
		return n.Normalise(content, mimeType)
	}
	return strings.TrimSpace(content)
}

// mimeByExtension maps the file types accepted for ingestion.
var mimeByExtension = map[string]string{
	".txt":      "text/plain",
	".text":     "text/plain",
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".html":     "text/html",
	".htm":      "text/html",
}

// MIMETypeForPath returns the MIME type for an ingestable file.
// The second result is false for unsupported extensions.
func MIMETypeForPath(path string) (string, bool) {
	mimeType, ok := mimeByExtension[strings.ToLower(filepath.Ext(path))]
	return mimeType, ok
}

// baseMIMEType lowercases and strips parameters such as charset.
func baseMIMEType(mimeType string) string {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if idx := strings.Index(mimeType, ";"); idx != -1 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	return mimeType
}

// matchesMIMEType supports exact types, "text/*" and "*/*".
func matchesMIMEType(supportedTypes []string, mimeType string) bool {
	mimeType = baseMIMEType(mimeType)

	for _, supported := range supportedTypes {
		supported = strings.ToLower(strings.TrimSpace(supported))
		switch {
		case supported == mimeType, supported == "*/*":
			return true
		case strings.HasSuffix(supported, "/*") && strings.HasPrefix(mimeType, supported[:len(supported)-1]):
			return true
		}
	}
	return false
}
