// Package bundle resolves and unpacks the open-access supplementary
// archive for an article. Container-level failures are fatal; entry
// validation failures only skip the entry.
package bundle

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"PmcReader/internal/config"
	"PmcReader/internal/domain"
	"PmcReader/internal/ports"
)

// Downloader is the slice of the upstream client the extractor needs.
type Downloader interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
	Download(ctx context.Context, rawURL, path string) error
}

// Extractor downloads an article's tar.gz bundle via the OA service and
// extracts validated entries into a destination directory.
type Extractor struct {
	client Downloader
	oaURL  string
	cfg    config.BundleConfig
	logger *slog.Logger

	allowed map[string]bool
}

var _ ports.BundleExtractor = (*Extractor)(nil)

// NewExtractor wires the extractor. A nil logger disables diagnostics.
func NewExtractor(client Downloader, oaURL string, cfg config.BundleConfig, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	allowed := make(map[string]bool, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		allowed[strings.ToLower(strings.TrimPrefix(ext, "."))] = true
	}
	return &Extractor{client: client, oaURL: oaURL, cfg: cfg, logger: logger, allowed: allowed}
}

// oaResponse is the envelope the OA service returns.
type oaResponse struct {
	Error *struct {
		Code string `xml:"code,attr"`
		Text string `xml:",chardata"`
	} `xml:"error"`
	Records struct {
		Record []struct {
			Links []struct {
				Format string `xml:"format,attr"`
				Href   string `xml:"href,attr"`
			} `xml:"link"`
		} `xml:"record"`
	} `xml:"records"`
}

// Extract resolves, downloads and unpacks the bundle for pmcid into
// destDir. Articles outside the open-access subset surface
// ErrNotOpenAccess; a corrupt archive surfaces BundleError.
func (e *Extractor) Extract(ctx context.Context, pmcid string, destDir string) (*domain.ExtractResult, error) {
	id, err := domain.NormalizeID(pmcid)
	if err != nil {
		return nil, err
	}

	bundleURL, err := e.resolveBundleURL(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", destDir, err)
	}

	tmp := filepath.Join(os.TempDir(), "pmc-bundle-"+uuid.NewString()+".tar.gz")
	defer os.Remove(tmp)

	e.logger.Debug("downloading bundle", "pmcid", id, "url", bundleURL)
	if err := e.client.Download(ctx, bundleURL, tmp); err != nil {
		return nil, &domain.BundleError{ID: id, Err: err}
	}

	result, err := e.unpack(tmp, destDir)
	if err != nil {
		return nil, &domain.BundleError{ID: id, Err: err}
	}
	e.logger.Info("bundle extracted",
		"pmcid", id, "files", len(result.Files), "skipped", len(result.Skipped))
	return result, nil
}

// resolveBundleURL asks the OA service for the tgz link of id.
func (e *Extractor) resolveBundleURL(ctx context.Context, id string) (string, error) {
	endpoint := fmt.Sprintf("%s?id=%s&format=tgz", e.oaURL, url.QueryEscape(id))
	raw, err := e.client.Fetch(ctx, endpoint)
	if err != nil {
		return "", err
	}

	var resp oaResponse
	if err := xml.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("decode oa response: %w", err)
	}
	if resp.Error != nil {
		if resp.Error.Code == "idIsNotOpenAccess" {
			return "", fmt.Errorf("%w: %s", domain.ErrNotOpenAccess, id)
		}
		return "", &domain.BundleError{ID: id, Err: errors.New(resp.Error.Text)}
	}

	for _, rec := range resp.Records.Record {
		for _, link := range rec.Links {
			if link.Format == "tgz" && link.Href != "" {
				return rewriteFTP(link.Href), nil
			}
		}
	}
	return "", &domain.BundleError{ID: id, Err: errors.New("no tgz link in oa response")}
}

// rewriteFTP maps the ftp:// hrefs the OA service still hands out onto
// the equivalent https endpoint.
func rewriteFTP(href string) string {
	return strings.Replace(href, "ftp://ftp.ncbi.nlm.nih.gov", "https://ftp.ncbi.nlm.nih.gov", 1)
}

// unpack streams the archive, validating each entry. Invalid entries
// are recorded in Skipped with the reason; a malformed container aborts.
func (e *Extractor) unpack(archivePath, destDir string) (*domain.ExtractResult, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("read gzip stream: %w", err)
	}
	defer gz.Close()

	result := &domain.ExtractResult{Files: map[string]string{}}
	tr := tar.NewReader(gz)

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read archive: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		name := filepath.Base(hdr.Name)
		reason := e.validateEntry(hdr, name)
		if reason == "" {
			// Entries flatten to their base name; a second entry with
			// the same name would silently overwrite the first.
			if _, taken := result.Files[name]; taken {
				reason = "duplicate file name"
			}
		}
		if reason != "" {
			e.logger.Debug("skipping bundle entry", "entry", hdr.Name, "reason", reason)
			result.Skipped = append(result.Skipped, fmt.Sprintf("%s: %s", hdr.Name, reason))
			continue
		}

		dest := filepath.Join(destDir, name)
		if err := writeEntry(dest, tr, hdr.Size); err != nil {
			return nil, fmt.Errorf("extract %s: %w", hdr.Name, err)
		}
		result.Files[name] = dest
	}

	return result, nil
}

// validateEntry returns a skip reason, or "" when the entry is safe.
func (e *Extractor) validateEntry(hdr *tar.Header, name string) string {
	if name == "." || name == ".." || name == "" {
		return "invalid file name"
	}
	if strings.Contains(hdr.Name, "..") {
		return "path traversal"
	}
	if e.cfg.MaxEntryBytes > 0 && hdr.Size > e.cfg.MaxEntryBytes {
		return fmt.Sprintf("exceeds size limit (%d bytes)", hdr.Size)
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if len(e.allowed) > 0 && !e.allowed[ext] {
		return "extension not allowed: " + ext
	}
	return ""
}

// writeEntry copies at most size bytes, guarding against a header that
// understates the entry length.
func writeEntry(dest string, r io.Reader, size int64) error {
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, io.LimitReader(r, size)); err != nil {
		out.Close()
		os.Remove(dest)
		return err
	}
	return out.Close()
}
