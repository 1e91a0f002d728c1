// Package parser converts tag-suite article XML into the document
// model. It is deliberately forgiving: optional or out-of-order
// elements degrade to diagnostics, and only non-well-formed input or a
// missing article title abort a parse.
package parser

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"PmcReader/internal/domain"
	"PmcReader/internal/ports"
)

// sectionDepthCap bounds recursive <sec> descent; content below the cap
// is dropped with a diagnostic instead of failing the document.
const sectionDepthCap = 64

// JatsParser builds Documents from raw article markup. Safe for
// concurrent use; per-parse state lives in a docBuilder.
type JatsParser struct {
	logger *slog.Logger
}

var _ ports.DocumentParser = (*JatsParser)(nil)

// NewJatsParser wires a parser; a nil logger disables diagnostics.
func NewJatsParser(logger *slog.Logger) *JatsParser {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &JatsParser{logger: logger}
}

// Parse converts data into an immutable Document for pmcid. Identical
// input bytes always yield a structurally identical Document.
func (p *JatsParser) Parse(data []byte, pmcid string) (*domain.Document, error) {
	root, err := buildTree(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedXML, err)
	}

	article := root.find("article")
	if article == nil {
		article = root
	}

	b := &docBuilder{logger: p.logger, sectionIDs: map[string]int{}}
	doc := &domain.Document{ID: pmcid}

	if err := b.buildFront(article, doc); err != nil {
		return nil, err
	}
	b.buildBody(article, doc)
	b.buildObjects(article, doc)
	b.buildReferences(article, doc)
	b.resolveCrossRefs(doc)

	return doc, nil
}

// docBuilder carries the mutable state of one parse.
type docBuilder struct {
	logger     *slog.Logger
	sectionIDs map[string]int
	sectionSeq int
}

func (b *docBuilder) diag(msg string, args ...any) {
	b.logger.Debug(msg, args...)
}

func (b *docBuilder) buildFront(article *node, doc *domain.Document) error {
	meta := article.child("front")
	if meta == nil {
		b.diag("article has no front matter, scanning whole tree")
		meta = article
	}

	title := ""
	if tg := meta.find("title-group"); tg != nil {
		if t := tg.find("article-title"); t != nil {
			title = t.innerText()
		}
	}
	if title == "" {
		if t := meta.find("article-title"); t != nil {
			title = t.innerText()
		}
	}
	if title == "" {
		return fmt.Errorf("%w: article-title", domain.ErrMissingField)
	}
	doc.Title = title

	doc.ArticleType = article.attr("article-type")
	doc.Authors = b.extractAuthors(meta)
	doc.Journal = extractJournal(meta)
	doc.PubDate = extractPubDate(meta)

	for _, id := range meta.findAll("article-id") {
		switch id.attr("pub-id-type") {
		case "doi":
			doc.DOI = id.innerText()
		case "pmid":
			doc.PMID = id.innerText()
		}
	}

	if kg := meta.find("kwd-group"); kg != nil {
		for _, kwd := range kg.findAll("kwd") {
			if text := kwd.innerText(); text != "" {
				doc.Keywords = append(doc.Keywords, text)
			}
		}
	}

	if abs := meta.find("abstract"); abs != nil {
		sec := domain.Section{ID: b.uniqueSectionID("abstract"), Title: "Abstract"}
		for _, p := range abs.findAll("p") {
			if para := b.paragraph(p); len(para.Runs) > 0 {
				sec.Paragraphs = append(sec.Paragraphs, para)
			}
		}
		if len(sec.Paragraphs) > 0 {
			doc.Sections = append(doc.Sections, sec)
		}
	}

	return nil
}

func (b *docBuilder) extractAuthors(meta *node) []domain.Author {
	var authors []domain.Author
	for _, group := range meta.findAll("contrib-group") {
		for _, contrib := range group.children("contrib") {
			if ct := contrib.attr("contrib-type"); ct != "" && ct != "author" {
				continue
			}
			name := contrib.child("name")
			if name == nil {
				name = contrib
			}
			author := domain.Author{Corresponding: contrib.attr("corresp") == "yes"}
			if sn := name.child("surname"); sn != nil {
				author.Surname = sn.innerText()
			}
			if gn := name.child("given-names"); gn != nil {
				author.GivenNames = gn.innerText()
			}
			if author.Surname == "" && author.GivenNames == "" {
				b.diag("skipping contributor without a name")
				continue
			}
			authors = append(authors, author)
		}
	}
	return authors
}

func extractJournal(meta *node) domain.Journal {
	var j domain.Journal
	if jm := meta.find("journal-meta"); jm != nil {
		if t := jm.find("journal-title"); t != nil {
			j.Title = t.innerText()
		}
		if p := jm.find("publisher-name"); p != nil {
			j.Publisher = p.innerText()
		}
	}
	if am := meta.find("article-meta"); am != nil {
		if v := am.child("volume"); v != nil {
			j.Volume = v.innerText()
		}
		if i := am.child("issue"); i != nil {
			j.Issue = i.innerText()
		}
	}
	return j
}

// extractPubDate returns ISO-ish "2023-12-25", degrading to year-month
// or bare year when components are missing.
func extractPubDate(meta *node) string {
	pd := meta.find("pub-date")
	if pd == nil {
		return ""
	}
	year := childText(pd, "year")
	if year == "" {
		return ""
	}
	month := childText(pd, "month")
	if month == "" {
		return year
	}
	out := fmt.Sprintf("%s-%02d", year, atoiOr(month, 1))
	if day := childText(pd, "day"); day != "" {
		out = fmt.Sprintf("%s-%02d", out, atoiOr(day, 1))
	}
	return out
}

func (b *docBuilder) buildBody(article *node, doc *domain.Document) {
	body := article.child("body")
	if body == nil {
		b.diag("article has no body")
		return
	}

	// Paragraphs sitting directly in the body, outside any section,
	// become one synthetic leading section.
	var loose []domain.Paragraph
	for _, k := range body.children("p") {
		if para := b.paragraph(k); len(para.Runs) > 0 {
			loose = append(loose, para)
		}
	}
	if len(loose) > 0 {
		doc.Sections = append(doc.Sections, domain.Section{
			ID:         b.uniqueSectionID("body"),
			Title:      "Main Content",
			Paragraphs: loose,
		})
	}

	for _, sec := range body.children("sec") {
		if parsed, ok := b.parseSection(sec, 0); ok {
			doc.Sections = append(doc.Sections, parsed)
		}
	}
}

func (b *docBuilder) parseSection(n *node, depth int) (domain.Section, bool) {
	if depth >= sectionDepthCap {
		b.diag("section nesting exceeds cap, dropping subtree", "depth", depth)
		return domain.Section{}, false
	}

	sec := domain.Section{ID: b.uniqueSectionID(n.attr("id"))}
	if t := n.child("title"); t != nil {
		sec.Title = t.innerText()
	}

	for _, k := range n.kids {
		switch k.name {
		case "p":
			if para := b.paragraph(k); len(para.Runs) > 0 {
				sec.Paragraphs = append(sec.Paragraphs, para)
			}
		case "sec":
			if child, ok := b.parseSection(k, depth+1); ok {
				sec.Children = append(sec.Children, child)
			}
		case "title", "fig", "table-wrap", "supplementary-material", "":
			// Titles are consumed above; objects are collected at
			// document level; text between block elements is noise.
		default:
			b.diag("skipping unrecognized section child", "element", k.name)
		}
	}

	return sec, true
}

func (b *docBuilder) paragraph(n *node) domain.Paragraph {
	return domain.Paragraph{Runs: b.runsFromNode(n)}
}

// uniqueSectionID keeps the section-id invariant: empty ids get a
// sequential fallback, duplicates a numeric suffix.
func (b *docBuilder) uniqueSectionID(id string) string {
	if id == "" {
		b.sectionSeq++
		id = "sec-" + strconv.Itoa(b.sectionSeq)
	}
	n := b.sectionIDs[id]
	b.sectionIDs[id] = n + 1
	if n > 0 {
		b.diag("duplicate section id", "id", id)
		return fmt.Sprintf("%s-%d", id, n+1)
	}
	return id
}

func childText(n *node, name string) string {
	if c := n.child(name); c != nil {
		return c.innerText()
	}
	return ""
}

func atoiOr(s string, fallback int) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return v
}
