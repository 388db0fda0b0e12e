package domain

import "sync"

// RuntimeConfig tracks which backends are available at runtime.
// Static flags are set at startup; the generator flag follows the
// runtime registry. Thread-safe for concurrent access.
type RuntimeConfig struct {
	mu sync.RWMutex

	// Static (set at startup, read-only)
	QueueBackend string // "redis" or "postgres"

	// Dynamic capability flags
	generatorAvailable   bool
	vectorStoreAvailable bool
	webSearchAvailable   bool
}

// NewRuntimeConfig creates a new RuntimeConfig with initial values
func NewRuntimeConfig(queueBackend string) *RuntimeConfig {
	return &RuntimeConfig{
		QueueBackend: queueBackend,
	}
}

// GeneratorAvailable returns whether a primary text generator is configured
func (c *RuntimeConfig) GeneratorAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generatorAvailable
}

// VectorStoreAvailable returns whether the local store is loaded
func (c *RuntimeConfig) VectorStoreAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vectorStoreAvailable
}

// WebSearchAvailable returns whether a web search provider is configured
func (c *RuntimeConfig) WebSearchAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.webSearchAvailable
}

// SetGeneratorAvailable updates the generator availability flag
func (c *RuntimeConfig) SetGeneratorAvailable(available bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generatorAvailable = available
}

// SetVectorStoreAvailable updates the vector store availability flag
func (c *RuntimeConfig) SetVectorStoreAvailable(available bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vectorStoreAvailable = available
}

// SetWebSearchAvailable updates the web search availability flag
func (c *RuntimeConfig) SetWebSearchAvailable(available bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.webSearchAvailable = available
}

// EffectiveOptions disables sources that are not available.
// If that would disable every source the options are returned unchanged,
// so the retrievers can report the failure per call.
func (c *RuntimeConfig) EffectiveOptions(opts AnswerOptions) AnswerOptions {
	adjusted := opts
	if adjusted.EnableDB && !c.VectorStoreAvailable() {
		adjusted.EnableDB = false
	}
	if adjusted.EnableWeb && !c.WebSearchAvailable() {
		adjusted.EnableWeb = false
	}
	if !adjusted.EnableDB && !adjusted.EnableWeb {
		return opts
	}
	return adjusted
}
