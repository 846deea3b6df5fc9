package embedding

import (
	"context"
	"fmt"
)

// CachedEmbedder serves single-text embeddings from a shared LRU cache and
// delegates misses to the wrapped embedder. Keys are namespaced by model so
// one cache can sit in front of per-request embedders.
type CachedEmbedder struct {
	inner     Embedder
	cache     *EmbeddingCache
	namespace string
}

// NewCachedEmbedder wraps inner with cache. namespace is usually the model name.
func NewCachedEmbedder(inner Embedder, cache *EmbeddingCache, namespace string) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, cache: cache, namespace: namespace}
}

func (c *CachedEmbedder) key(text string) string {
	return c.namespace + "\x00" + text
}

// Embed returns the cached vector for text, embedding and caching it on a miss.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.cache.Get(c.key(text)); ok {
		return v, nil
	}
	v, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Set(c.key(text), v)
	return v, nil
}

// EmbedBatch embeds only the texts missing from the cache, in one inner call.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int
	for i, t := range texts {
		if v, ok := c.cache.Get(c.key(t)); ok {
			out[i] = v
			continue
		}
		missing = append(missing, t)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return out, nil
	}
	vecs, err := c.inner.EmbedBatch(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missing) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrProvider, len(vecs), len(missing))
	}
	for j, v := range vecs {
		out[missingIdx[j]] = v
		c.cache.Set(c.key(missing[j]), v)
	}
	return out, nil
}

// Dimensions returns the wrapped embedder's dimension.
func (c *CachedEmbedder) Dimensions() int {
	return c.inner.Dimensions()
}

// Close closes the wrapped embedder. The shared cache is left intact.
func (c *CachedEmbedder) Close() error {
	return c.inner.Close()
}
