package domain

// RunKind enumerates the closed set of inline markup variants.
type RunKind string

const (
	RunText        RunKind = "text"
	RunEmphasis    RunKind = "emphasis"
	RunStrong      RunKind = "strong"
	RunSuperscript RunKind = "superscript"
	RunSubscript   RunKind = "subscript"
	RunCrossRef    RunKind = "xref"
)

// RefTarget names what a cross-reference run points at.
type RefTarget string

const (
	RefFigure   RefTarget = "figure"
	RefTable    RefTarget = "table"
	RefCitation RefTarget = "citation"
)

// Run is a single inline span inside a paragraph or caption.
// RefID and Target are populated only for RunCrossRef.
type Run struct {
	Kind   RunKind   `json:"kind"`
	Text   string    `json:"text"`
	RefID  string    `json:"refId,omitempty"`
	Target RefTarget `json:"target,omitempty"`
}

// Paragraph is an ordered sequence of inline runs.
type Paragraph struct {
	Runs []Run `json:"runs"`
}

// Section is one node of the article body tree. Children are owned
// directly; the tree has no back-edges.
type Section struct {
	ID         string      `json:"id"`
	Title      string      `json:"title"`
	Paragraphs []Paragraph `json:"paragraphs"`
	Children   []Section   `json:"children,omitempty"`
}

// Author describes one contributor from the article front matter.
type Author struct {
	GivenNames    string `json:"givenNames"`
	Surname       string `json:"surname"`
	Corresponding bool   `json:"corresponding,omitempty"`
}

// FullName joins given names and surname in display order.
func (a Author) FullName() string {
	switch {
	case a.GivenNames == "":
		return a.Surname
	case a.Surname == "":
		return a.GivenNames
	default:
		return a.GivenNames + " " + a.Surname
	}
}

// Journal groups publication metadata extracted from journal-meta.
type Journal struct {
	Title     string `json:"title"`
	Volume    string `json:"volume,omitempty"`
	Issue     string `json:"issue,omitempty"`
	Publisher string `json:"publisher,omitempty"`
}

// Figure is a doc-level figure entry. Label is explicit from the markup
// or assigned sequentially in document order. LocalPath is populated
// only after bundle extraction matches FileRef to an extracted image.
type Figure struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	Caption   []Run  `json:"caption"`
	FileRef   string `json:"fileRef,omitempty"`
	LocalPath string `json:"localPath,omitempty"`
}

// Table is a doc-level table entry. RawBody keeps the inner XHTML table
// markup for downstream rendering.
type Table struct {
	ID        string   `json:"id"`
	Label     string   `json:"label"`
	Caption   []Run    `json:"caption"`
	RawBody   string   `json:"rawBody,omitempty"`
	Footnotes []string `json:"footnotes,omitempty"`
}

// Reference is one entry of the article reference list.
type Reference struct {
	ID           string `json:"id"`
	CitationText string `json:"citationText"`
	DOI          string `json:"doi,omitempty"`
	PMID         string `json:"pmid,omitempty"`
}

// SupplementaryMaterial describes a file the article declares as
// supplementary. LocalPath is populated only after bundle extraction.
type SupplementaryMaterial struct {
	ID        string `json:"id"`
	Title     string `json:"title,omitempty"`
	MimeType  string `json:"mimeType,omitempty"`
	Href      string `json:"href"`
	LocalPath string `json:"localPath,omitempty"`
}

// Document is the parsed article. It is built once by the parser and
// never mutated afterward; section ids are unique per document and every
// surviving cross-reference resolves to a figure, table, or reference id.
type Document struct {
	ID            string                  `json:"id"`
	Title         string                  `json:"title"`
	Authors       []Author                `json:"authors"`
	Journal       Journal                 `json:"journal"`
	PubDate       string                  `json:"pubDate,omitempty"`
	DOI           string                  `json:"doi,omitempty"`
	PMID          string                  `json:"pmid,omitempty"`
	ArticleType   string                  `json:"articleType,omitempty"`
	Keywords      []string                `json:"keywords,omitempty"`
	Sections      []Section               `json:"sections"`
	Figures       []Figure                `json:"figures,omitempty"`
	Tables        []Table                 `json:"tables,omitempty"`
	References    []Reference             `json:"references,omitempty"`
	Supplementary []SupplementaryMaterial `json:"supplementary,omitempty"`
}

// ExtractResult reports one bundle extraction: validated entries keyed
// by the matched figure or supplementary-material id (falling back to
// the archive file name when nothing in the document matches) and the
// per-entry validation failures that were skipped.
type ExtractResult struct {
	Files   map[string]string
	Skipped []string
}
