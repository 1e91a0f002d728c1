// Package render turns a parsed document into Markdown. Rendering is
// pure: the same document and options always produce the same bytes,
// and the document is never mutated.
package render

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"PmcReader/internal/domain"
)

// Options selects the optional blocks of the output.
type Options struct {
	// IncludeMetadata emits authors, journal, date and identifiers after
	// the title.
	IncludeMetadata bool
	// UseYAMLFrontmatter replaces the metadata block with a YAML
	// frontmatter document. Implies the metadata content.
	UseYAMLFrontmatter bool
	// IncludeToc emits a table of contents for the top-level sections.
	IncludeToc bool
	// IncludeFigureCaptions emits the Figures and Tables blocks.
	IncludeFigureCaptions bool
}

// Render produces the Markdown for doc.
func Render(doc *domain.Document, opts Options) string {
	var sb strings.Builder

	if opts.UseYAMLFrontmatter {
		writeFrontmatter(&sb, doc)
	}

	sb.WriteString("# " + doc.Title + "\n")

	if opts.IncludeMetadata && !opts.UseYAMLFrontmatter {
		writeMetadata(&sb, doc)
	}

	if opts.IncludeToc && len(doc.Sections) > 0 {
		writeToc(&sb, doc.Sections)
	}

	for _, sec := range doc.Sections {
		writeSection(&sb, sec, 1)
	}

	if opts.IncludeFigureCaptions {
		writeFigures(&sb, doc.Figures)
	}
	writeTables(&sb, doc, opts)
	writeReferences(&sb, doc.References)
	writeSupplementary(&sb, doc.Supplementary)

	return sb.String()
}

// frontmatter mirrors the metadata block in YAML form. Field order is
// fixed by the struct, keeping output deterministic.
type frontmatter struct {
	Title    string   `yaml:"title"`
	Authors  []string `yaml:"authors,omitempty"`
	Journal  string   `yaml:"journal,omitempty"`
	PubDate  string   `yaml:"date,omitempty"`
	DOI      string   `yaml:"doi,omitempty"`
	PMID     string   `yaml:"pmid,omitempty"`
	PMCID    string   `yaml:"pmcid,omitempty"`
	Keywords []string `yaml:"keywords,omitempty"`
}

func writeFrontmatter(sb *strings.Builder, doc *domain.Document) {
	fm := frontmatter{
		Title:    doc.Title,
		Journal:  doc.Journal.Title,
		PubDate:  doc.PubDate,
		DOI:      doc.DOI,
		PMID:     doc.PMID,
		PMCID:    doc.ID,
		Keywords: doc.Keywords,
	}
	for _, a := range doc.Authors {
		fm.Authors = append(fm.Authors, a.FullName())
	}

	raw, err := yaml.Marshal(fm)
	if err != nil {
		// Marshaling a plain struct of strings cannot fail in practice.
		return
	}
	sb.WriteString("---\n")
	sb.Write(raw)
	sb.WriteString("---\n\n")
}

func writeMetadata(sb *strings.Builder, doc *domain.Document) {
	sb.WriteString("\n")
	if len(doc.Authors) > 0 {
		names := make([]string, 0, len(doc.Authors))
		for _, a := range doc.Authors {
			names = append(names, a.FullName())
		}
		sb.WriteString("**Authors:** " + strings.Join(names, ", ") + "\n\n")
	}
	if doc.Journal.Title != "" {
		line := doc.Journal.Title
		if doc.Journal.Volume != "" {
			line += " " + doc.Journal.Volume
			if doc.Journal.Issue != "" {
				line += "(" + doc.Journal.Issue + ")"
			}
		}
		sb.WriteString("**Journal:** " + line + "\n\n")
	}
	if doc.PubDate != "" {
		sb.WriteString("**Published:** " + doc.PubDate + "\n\n")
	}
	if doc.DOI != "" {
		sb.WriteString("**DOI:** [" + doc.DOI + "](https://doi.org/" + doc.DOI + ")\n\n")
	}
	if doc.PMID != "" {
		sb.WriteString("**PMID:** " + doc.PMID + "\n\n")
	}
	if len(doc.Keywords) > 0 {
		sb.WriteString("**Keywords:** " + strings.Join(doc.Keywords, ", ") + "\n\n")
	}
}

func writeToc(sb *strings.Builder, secs []domain.Section) {
	sb.WriteString("\n## Contents\n\n")
	for i, sec := range secs {
		fmt.Fprintf(sb, "%d. [%s](#%s)\n", i+1, sec.Title, anchor(sec.Title))
		for _, child := range sec.Children {
			if child.Title == "" {
				continue
			}
			fmt.Fprintf(sb, "   - [%s](#%s)\n", child.Title, anchor(child.Title))
		}
	}
}

// anchor builds a GitHub-style heading anchor: lowercase, spaces to
// hyphens, punctuation dropped.
func anchor(title string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == ' ' || r == '-':
			sb.WriteByte('-')
		}
	}
	return sb.String()
}

func writeSection(sb *strings.Builder, sec domain.Section, depth int) {
	level := min(depth+1, 6)
	sb.WriteString("\n" + strings.Repeat("#", level))
	if sec.Title != "" {
		sb.WriteString(" " + sec.Title + "\n")
	} else {
		sb.WriteString(" \n")
	}
	for _, p := range sec.Paragraphs {
		sb.WriteString("\n" + renderRuns(p.Runs) + "\n")
	}
	for _, child := range sec.Children {
		writeSection(sb, child, depth+1)
	}
}

func renderRuns(runs []domain.Run) string {
	var sb strings.Builder
	for _, r := range runs {
		switch r.Kind {
		case domain.RunEmphasis:
			sb.WriteString("*" + r.Text + "*")
		case domain.RunStrong:
			sb.WriteString("**" + r.Text + "**")
		case domain.RunSuperscript:
			sb.WriteString("<sup>" + r.Text + "</sup>")
		case domain.RunSubscript:
			sb.WriteString("<sub>" + r.Text + "</sub>")
		default:
			// Resolved cross-references render as their visible text;
			// the document guarantees their targets exist in the same
			// output.
			sb.WriteString(r.Text)
		}
	}
	return sb.String()
}

func writeFigures(sb *strings.Builder, figs []domain.Figure) {
	if len(figs) == 0 {
		return
	}
	sb.WriteString("\n## Figures\n")
	for _, f := range figs {
		sb.WriteString("\n**" + f.Label + ".** " + renderRuns(f.Caption) + "\n")
		if f.FileRef != "" {
			sb.WriteString("\n> File: `" + f.FileRef + "`\n")
		}
	}
}

func writeTables(sb *strings.Builder, doc *domain.Document, opts Options) {
	if len(doc.Tables) == 0 {
		return
	}
	sb.WriteString("\n## Tables\n")
	for _, t := range doc.Tables {
		if opts.IncludeFigureCaptions {
			sb.WriteString("\n**" + t.Label + ".** " + renderRuns(t.Caption) + "\n")
		} else {
			sb.WriteString("\n**" + t.Label + "**\n")
		}
		if t.RawBody != "" {
			if md, err := tableMarkdown(t.RawBody); err == nil && md != "" {
				sb.WriteString("\n" + md)
			}
		}
		for _, fn := range t.Footnotes {
			sb.WriteString("\n> " + fn + "\n")
		}
	}
}

func writeReferences(sb *strings.Builder, refs []domain.Reference) {
	if len(refs) == 0 {
		return
	}
	sb.WriteString("\n## References\n\n")
	for i, r := range refs {
		line := fmt.Sprintf("%d. %s", i+1, r.CitationText)
		if r.DOI != "" {
			line += " [doi:" + r.DOI + "](https://doi.org/" + r.DOI + ")"
		}
		if r.PMID != "" {
			line += " [PMID:" + r.PMID + "](https://pubmed.ncbi.nlm.nih.gov/" + r.PMID + "/)"
		}
		sb.WriteString(line + "\n")
	}
}

func writeSupplementary(sb *strings.Builder, supp []domain.SupplementaryMaterial) {
	if len(supp) == 0 {
		return
	}
	sb.WriteString("\n## Supplementary Material\n\n")
	for _, s := range supp {
		line := "- "
		if s.Title != "" {
			line += s.Title + " "
		}
		line += "(`" + s.Href + "`"
		if s.MimeType != "" {
			line += ", " + s.MimeType
		}
		line += ")"
		if s.LocalPath != "" {
			line += " extracted to `" + s.LocalPath + "`"
		}
		sb.WriteString(line + "\n")
	}
}
