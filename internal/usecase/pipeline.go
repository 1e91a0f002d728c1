// Package usecase composes fetch, cache, parse, render and bundle
// extraction into the application-facing pipeline.
package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"PmcReader/internal/domain"
	"PmcReader/internal/infrastructure/render"
	"PmcReader/internal/ports"
)

// parseProfile tags cache keys with the parser generation so a parser
// change never serves documents shaped by the previous one.
const parseProfile = "jats/v1"

// Pipeline is the orchestration facade over the ports.
type Pipeline struct {
	fetcher   ports.ArticleFetcher
	parser    ports.DocumentParser
	cache     ports.DocumentCache
	extractor ports.BundleExtractor
	logger    *slog.Logger
}

// New wires a pipeline. extractor may be nil when bundle extraction is
// not needed; a nil logger disables diagnostics.
func New(fetcher ports.ArticleFetcher, parser ports.DocumentParser, cache ports.DocumentCache, extractor ports.BundleExtractor, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Pipeline{
		fetcher:   fetcher,
		parser:    parser,
		cache:     cache,
		extractor: extractor,
		logger:    logger,
	}
}

// FetchDocument returns the parsed document for an article id in any
// accepted spelling. Concurrent calls for one article share a single
// fetch+parse.
func (p *Pipeline) FetchDocument(ctx context.Context, id string) (*domain.Document, error) {
	pmcid, err := domain.NormalizeID(id)
	if err != nil {
		return nil, err
	}

	key := pmcid + "/" + parseProfile
	return p.cache.GetOrLoad(ctx, key, func(ctx context.Context) (*domain.Document, error) {
		p.logger.Info("fetching article", "pmcid", pmcid)
		raw, err := p.fetcher.FetchArticle(ctx, pmcid)
		if err != nil {
			return nil, err
		}
		return p.parser.Parse(raw, pmcid)
	})
}

// RenderMarkdown fetches (or reuses) the document and renders it.
func (p *Pipeline) RenderMarkdown(ctx context.Context, id string, opts render.Options) (string, error) {
	doc, err := p.FetchDocument(ctx, id)
	if err != nil {
		return "", err
	}
	return render.Render(doc, opts), nil
}

// ExtractBundle fetches the document and unpacks the article's
// supplementary bundle into destDir. The cached document is never
// mutated: the returned copy carries the local paths, with extracted
// files matched to declared supplementary materials and figures.
func (p *Pipeline) ExtractBundle(ctx context.Context, id string, destDir string) (*domain.Document, *domain.ExtractResult, error) {
	if p.extractor == nil {
		return nil, nil, &domain.BundleError{ID: id, Err: errors.New("no bundle extractor configured")}
	}

	doc, err := p.FetchDocument(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	result, err := p.extractor.Extract(ctx, doc.ID, destDir)
	if err != nil {
		return nil, nil, err
	}

	annotated := *doc
	annotated.Supplementary = append([]domain.SupplementaryMaterial(nil), doc.Supplementary...)
	annotated.Figures = append([]domain.Figure(nil), doc.Figures...)

	keyed := make(map[string]string, len(result.Files))
	for name, path := range result.Files {
		keyed[name] = path
	}
	names := sortedNames(result.Files)

	for i := range annotated.Supplementary {
		s := &annotated.Supplementary[i]
		name, ok := matchFile(names, baseName(s.Href))
		if !ok {
			continue
		}
		s.LocalPath = result.Files[name]
		delete(keyed, name)
		keyed[s.ID] = s.LocalPath
	}

	for i := range annotated.Figures {
		f := &annotated.Figures[i]
		name, ok := matchImage(names, baseName(f.FileRef), f.ID, condenseLabel(f.Label))
		if !ok {
			continue
		}
		f.LocalPath = result.Files[name]
		delete(keyed, name)
		keyed[f.ID] = f.LocalPath
	}

	result.Files = keyed
	return &annotated, result, nil
}

// Invalidate drops the cached document for an article id.
func (p *Pipeline) Invalidate(id string) error {
	pmcid, err := domain.NormalizeID(id)
	if err != nil {
		return err
	}
	p.cache.Invalidate(pmcid + "/" + parseProfile)
	return nil
}

func baseName(href string) string {
	for i := len(href) - 1; i >= 0; i-- {
		if href[i] == '/' {
			return href[i+1:]
		}
	}
	return href
}
