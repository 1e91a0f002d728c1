package ports

import (
	"context"

	"PmcReader/internal/domain"
)

// ArticleFetcher pulls raw article markup bytes from the upstream
// repository, honoring its rate limit and retry policy.
type ArticleFetcher interface {
	FetchArticle(ctx context.Context, pmcid string) ([]byte, error)
}

// DocumentParser converts raw article markup into the document model.
type DocumentParser interface {
	Parse(data []byte, pmcid string) (*domain.Document, error)
}

// DocumentLoader produces a document for a cache miss.
type DocumentLoader func(ctx context.Context) (*domain.Document, error)

// DocumentCache maps an identifier (+ parse profile) to a parsed
// document, coalescing concurrent misses onto one loader execution.
type DocumentCache interface {
	GetOrLoad(ctx context.Context, key string, load DocumentLoader) (*domain.Document, error)
	Invalidate(key string)
}

// BundleExtractor downloads and unpacks the supplementary bundle for an
// article, validating each entry.
type BundleExtractor interface {
	Extract(ctx context.Context, pmcid string, destDir string) (*domain.ExtractResult, error)
}

// DocumentStore is an optional persistent second level beneath the
// in-memory cache.
type DocumentStore interface {
	Get(ctx context.Context, key string) (*domain.Document, error)
	Put(ctx context.Context, key string, doc *domain.Document) error
	Delete(ctx context.Context, key string) error
	Purge(ctx context.Context) error
}
