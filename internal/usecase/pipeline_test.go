package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"PmcReader/internal/domain"
	"PmcReader/internal/infrastructure/render"
	"PmcReader/internal/ports"
)

type fakeFetcher struct {
	calls int
	data  []byte
	err   error
}

func (f *fakeFetcher) FetchArticle(ctx context.Context, pmcid string) ([]byte, error) {
	f.calls++
	return f.data, f.err
}

type fakeParser struct {
	doc *domain.Document
	err error
}

func (p *fakeParser) Parse(data []byte, pmcid string) (*domain.Document, error) {
	if p.err != nil {
		return nil, p.err
	}
	doc := *p.doc
	doc.ID = pmcid
	return &doc, nil
}

// passthroughCache records keys and always invokes the loader.
type passthroughCache struct {
	keys        []string
	invalidated []string
}

func (c *passthroughCache) GetOrLoad(ctx context.Context, key string, load ports.DocumentLoader) (*domain.Document, error) {
	c.keys = append(c.keys, key)
	return load(ctx)
}

func (c *passthroughCache) Invalidate(key string) {
	c.invalidated = append(c.invalidated, key)
}

type fakeExtractor struct {
	result *domain.ExtractResult
	err    error
}

func (e *fakeExtractor) Extract(ctx context.Context, pmcid string, destDir string) (*domain.ExtractResult, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.result, nil
}

func testDoc() *domain.Document {
	return &domain.Document{
		Title: "T",
		Supplementary: []domain.SupplementaryMaterial{
			{ID: "supp1", Href: "ftp://host/pub/data.csv"},
			{ID: "supp2", Href: "other.pdf"},
		},
	}
}

func TestFetchDocumentNormalizesAndKeysCache(t *testing.T) {
	t.Parallel()

	cache := &passthroughCache{}
	p := New(&fakeFetcher{data: []byte("<xml/>")}, &fakeParser{doc: testDoc()}, cache, nil, nil)

	doc, err := p.FetchDocument(context.Background(), "7096066")
	if err != nil {
		t.Fatalf("FetchDocument: %v", err)
	}
	if doc.ID != "PMC7096066" {
		t.Fatalf("doc id = %q", doc.ID)
	}
	if len(cache.keys) != 1 || cache.keys[0] != "PMC7096066/jats/v1" {
		t.Fatalf("cache keys = %v", cache.keys)
	}
}

func TestFetchDocumentRejectsInvalidID(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{}
	p := New(fetcher, &fakeParser{doc: testDoc()}, &passthroughCache{}, nil, nil)

	if _, err := p.FetchDocument(context.Background(), "bogus id"); !errors.Is(err, domain.ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
	if fetcher.calls != 0 {
		t.Fatal("fetcher called for invalid id")
	}
}

func TestFetchDocumentPropagatesFetchError(t *testing.T) {
	t.Parallel()

	boom := errors.New("upstream down")
	p := New(&fakeFetcher{err: boom}, &fakeParser{doc: testDoc()}, &passthroughCache{}, nil, nil)

	if _, err := p.FetchDocument(context.Background(), "PMC1"); !errors.Is(err, boom) {
		t.Fatalf("expected fetch error, got %v", err)
	}
}

func TestRenderMarkdown(t *testing.T) {
	t.Parallel()

	p := New(&fakeFetcher{data: []byte("<xml/>")}, &fakeParser{doc: testDoc()}, &passthroughCache{}, nil, nil)

	md, err := p.RenderMarkdown(context.Background(), "PMC1", render.Options{})
	if err != nil {
		t.Fatalf("RenderMarkdown: %v", err)
	}
	if !strings.HasPrefix(md, "# T\n") {
		t.Fatalf("markdown = %.40q", md)
	}
}

func TestExtractBundleAnnotatesCopy(t *testing.T) {
	t.Parallel()

	cache := &passthroughCache{}
	extractor := &fakeExtractor{result: &domain.ExtractResult{
		Files: map[string]string{
			"data.csv":  "/tmp/out/data.csv",
			"extra.xml": "/tmp/out/extra.xml",
		},
	}}
	p := New(&fakeFetcher{data: []byte("<xml/>")}, &fakeParser{doc: testDoc()}, cache, extractor, nil)

	annotated, result, err := p.ExtractBundle(context.Background(), "PMC1", "/tmp/out")
	if err != nil {
		t.Fatalf("ExtractBundle: %v", err)
	}

	if annotated.Supplementary[0].LocalPath != "/tmp/out/data.csv" {
		t.Fatalf("matched material = %+v", annotated.Supplementary[0])
	}
	if annotated.Supplementary[1].LocalPath != "" {
		t.Fatalf("unmatched material annotated: %+v", annotated.Supplementary[1])
	}

	// Matched files are re-keyed by material id; unmatched keep the
	// archive file name.
	if result.Files["supp1"] != "/tmp/out/data.csv" {
		t.Fatalf("result files = %v", result.Files)
	}
	if result.Files["extra.xml"] != "/tmp/out/extra.xml" {
		t.Fatalf("result files = %v", result.Files)
	}
	if _, ok := result.Files["data.csv"]; ok {
		t.Fatalf("matched file kept its name key: %v", result.Files)
	}
}

func TestExtractBundleMatchesStemsAndFigures(t *testing.T) {
	t.Parallel()

	doc := &domain.Document{
		Title: "T",
		Figures: []domain.Figure{
			{ID: "f1", Label: "Figure 1", FileRef: "fig1"},
			{ID: "f2", Label: "Figure 2"},
			{ID: "f3", Label: "Figure 3", FileRef: "absent"},
		},
		Supplementary: []domain.SupplementaryMaterial{
			{ID: "supp1", Href: "raw-data"},
		},
	}
	extractor := &fakeExtractor{result: &domain.ExtractResult{
		Files: map[string]string{
			"fig1.jpg":     "/tmp/out/fig1.jpg",
			"figure2.png":  "/tmp/out/figure2.png",
			"raw-data.csv": "/tmp/out/raw-data.csv",
		},
	}}
	p := New(&fakeFetcher{data: []byte("<xml/>")}, &fakeParser{doc: doc}, &passthroughCache{}, extractor, nil)

	annotated, result, err := p.ExtractBundle(context.Background(), "PMC1", "/tmp/out")
	if err != nil {
		t.Fatalf("ExtractBundle: %v", err)
	}

	// Graphic stem without an extension still finds its image.
	if annotated.Figures[0].LocalPath != "/tmp/out/fig1.jpg" {
		t.Fatalf("figure by file ref = %+v", annotated.Figures[0])
	}
	// No graphic reference falls back to the condensed label.
	if annotated.Figures[1].LocalPath != "/tmp/out/figure2.png" {
		t.Fatalf("figure by label = %+v", annotated.Figures[1])
	}
	if annotated.Figures[2].LocalPath != "" {
		t.Fatalf("unmatched figure annotated: %+v", annotated.Figures[2])
	}
	// Extension-less href matches the archive file by stem.
	if annotated.Supplementary[0].LocalPath != "/tmp/out/raw-data.csv" {
		t.Fatalf("supplementary by stem = %+v", annotated.Supplementary[0])
	}

	want := map[string]string{
		"supp1": "/tmp/out/raw-data.csv",
		"f1":    "/tmp/out/fig1.jpg",
		"f2":    "/tmp/out/figure2.png",
	}
	for key, path := range want {
		if result.Files[key] != path {
			t.Fatalf("result files missing %s: %v", key, result.Files)
		}
	}
	for _, raw := range []string{"fig1.jpg", "figure2.png", "raw-data.csv"} {
		if _, ok := result.Files[raw]; ok {
			t.Fatalf("matched file kept its name key: %v", result.Files)
		}
	}
}

func TestExtractBundleFiguresIgnoreNonImages(t *testing.T) {
	t.Parallel()

	doc := &domain.Document{
		Title:   "T",
		Figures: []domain.Figure{{ID: "f1", Label: "Figure 1", FileRef: "fig1"}},
	}
	extractor := &fakeExtractor{result: &domain.ExtractResult{
		Files: map[string]string{"fig1.csv": "/tmp/out/fig1.csv"},
	}}
	p := New(&fakeFetcher{data: []byte("<xml/>")}, &fakeParser{doc: doc}, &passthroughCache{}, extractor, nil)

	annotated, _, err := p.ExtractBundle(context.Background(), "PMC1", "/tmp/out")
	if err != nil {
		t.Fatalf("ExtractBundle: %v", err)
	}
	if annotated.Figures[0].LocalPath != "" {
		t.Fatalf("figure matched a non-image entry: %+v", annotated.Figures[0])
	}
}

func TestExtractBundleWithoutExtractor(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{data: []byte("<xml/>")}
	p := New(fetcher, &fakeParser{doc: testDoc()}, &passthroughCache{}, nil, nil)

	_, _, err := p.ExtractBundle(context.Background(), "PMC1", "/tmp/out")
	var be *domain.BundleError
	if !errors.As(err, &be) {
		t.Fatalf("expected BundleError, got %v", err)
	}
	if fetcher.calls != 0 {
		t.Fatal("fetch attempted without an extractor")
	}
}

func TestInvalidate(t *testing.T) {
	t.Parallel()

	cache := &passthroughCache{}
	p := New(&fakeFetcher{}, &fakeParser{doc: testDoc()}, cache, nil, nil)

	if err := p.Invalidate("pmc42"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if len(cache.invalidated) != 1 || cache.invalidated[0] != "PMC42/jats/v1" {
		t.Fatalf("invalidated = %v", cache.invalidated)
	}
	if err := p.Invalidate("nope!"); !errors.Is(err, domain.ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
}
