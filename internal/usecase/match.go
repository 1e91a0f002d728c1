package usecase

import (
	"path/filepath"
	"sort"
	"strings"
)

var imageExtensions = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "gif": true,
	"tif": true, "tiff": true, "svg": true,
}

// matchFile finds the extracted entry a declared href points at: the
// exact archive name first, then a stem match for hrefs that omit the
// extension the archive carries.
func matchFile(names []string, want string) (string, bool) {
	if want == "" {
		return "", false
	}
	for _, n := range names {
		if n == want {
			return n, true
		}
	}
	wantStem := stem(want)
	for _, n := range names {
		if stem(n) == wantStem {
			return n, true
		}
	}
	return "", false
}

// matchImage resolves a figure against the extracted image files.
// Candidates are tried in order (graphic stem, figure id, condensed
// label); each matches on stem equality or containment either way,
// case-insensitively. Non-image entries never match a figure.
func matchImage(names []string, candidates ...string) (string, bool) {
	for _, cand := range candidates {
		cand = strings.ToLower(stem(cand))
		if cand == "" {
			continue
		}
		for _, n := range names {
			if !isImageName(n) {
				continue
			}
			s := strings.ToLower(stem(n))
			if s == cand || strings.Contains(s, cand) || strings.Contains(cand, s) {
				return n, true
			}
		}
	}
	return "", false
}

func isImageName(name string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	return imageExtensions[ext]
}

func stem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// condenseLabel turns a display label like "Figure 1" into a
// name-matching token like "figure1".
func condenseLabel(label string) string {
	return strings.ToLower(strings.ReplaceAll(label, " ", ""))
}

// sortedNames fixes the iteration order so matching is deterministic.
func sortedNames(files map[string]string) []string {
	names := make([]string, 0, len(files))
	for n := range files {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
