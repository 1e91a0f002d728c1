package parser

import (
	"fmt"

	"PmcReader/internal/domain"
)

// buildObjects collects figures, tables and supplementary material in
// document order from the whole article, wherever they are nested.
func (b *docBuilder) buildObjects(article *node, doc *domain.Document) {
	for i, fig := range article.findAll("fig") {
		f := domain.Figure{ID: fig.attr("id")}
		if l := fig.child("label"); l != nil {
			f.Label = l.innerText()
		}
		if f.Label == "" {
			f.Label = fmt.Sprintf("Figure %d", i+1)
		}
		if c := fig.child("caption"); c != nil {
			f.Caption = b.runsFromNode(c)
		}
		if g := fig.find("graphic"); g != nil {
			f.FileRef = g.attr("href")
		}
		doc.Figures = append(doc.Figures, f)
	}

	for i, tw := range article.findAll("table-wrap") {
		t := domain.Table{ID: tw.attr("id")}
		if l := tw.child("label"); l != nil {
			t.Label = l.innerText()
		}
		if t.Label == "" {
			t.Label = fmt.Sprintf("Table %d", i+1)
		}
		if c := tw.child("caption"); c != nil {
			t.Caption = b.runsFromNode(c)
		}
		if tbl := tw.find("table"); tbl != nil {
			t.RawBody = tbl.rawMarkup()
		} else {
			b.diag("table-wrap without table body", "id", t.ID)
		}
		if foot := tw.child("table-wrap-foot"); foot != nil {
			for _, fn := range foot.findAll("p") {
				if text := fn.innerText(); text != "" {
					t.Footnotes = append(t.Footnotes, text)
				}
			}
		}
		doc.Tables = append(doc.Tables, t)
	}

	for i, sm := range article.findAll("supplementary-material") {
		s := domain.SupplementaryMaterial{
			ID:       sm.attr("id"),
			MimeType: sm.attr("mimetype"),
		}
		if sub := sm.attr("mime-subtype"); sub != "" && s.MimeType != "" {
			s.MimeType += "/" + sub
		}
		if s.ID == "" {
			s.ID = fmt.Sprintf("supp-%d", i+1)
		}
		if c := sm.child("caption"); c != nil {
			if t := c.child("title"); t != nil {
				s.Title = t.innerText()
			} else {
				s.Title = c.innerText()
			}
		}
		if m := sm.find("media"); m != nil {
			s.Href = m.attr("href")
			if s.MimeType == "" {
				s.MimeType = m.attr("mimetype")
				if sub := m.attr("mime-subtype"); sub != "" && s.MimeType != "" {
					s.MimeType += "/" + sub
				}
			}
		}
		if s.Href == "" {
			b.diag("supplementary material without file reference", "id", s.ID)
			continue
		}
		doc.Supplementary = append(doc.Supplementary, s)
	}
}

// buildReferences flattens the back-matter reference list. Citation
// text is the whole mixed citation normalized; structured citations get
// an assembled author-year-title line instead.
func (b *docBuilder) buildReferences(article *node, doc *domain.Document) {
	back := article.child("back")
	if back == nil {
		return
	}
	list := back.find("ref-list")
	if list == nil {
		return
	}

	for i, ref := range list.findAll("ref") {
		r := domain.Reference{ID: ref.attr("id")}
		if r.ID == "" {
			r.ID = fmt.Sprintf("ref-%d", i+1)
		}

		cit := ref.child("mixed-citation")
		if cit == nil {
			cit = ref.child("element-citation")
		}
		if cit == nil {
			cit = ref.child("citation")
		}
		if cit != nil {
			r.CitationText = citationText(cit)
			for _, id := range cit.findAll("pub-id") {
				switch id.attr("pub-id-type") {
				case "doi":
					r.DOI = id.innerText()
				case "pmid":
					r.PMID = id.innerText()
				}
			}
		}
		if r.CitationText == "" {
			b.diag("reference without citation text", "id", r.ID)
			r.CitationText = r.ID
		}

		doc.References = append(doc.References, r)
	}
}

// citationText renders a citation as one line. Mixed citations carry
// their own punctuation; element citations need it put back.
func citationText(cit *node) string {
	if cit.name == "mixed-citation" {
		return textWithoutPubIDs(cit)
	}

	var parts []string
	for _, pg := range cit.findAll("person-group") {
		for _, name := range pg.findAll("name") {
			sn := childText(name, "surname")
			gn := childText(name, "given-names")
			switch {
			case sn != "" && gn != "":
				parts = append(parts, sn+" "+gn)
			case sn != "":
				parts = append(parts, sn)
			}
		}
	}
	for _, field := range []string{"article-title", "source", "year", "volume", "fpage"} {
		if v := childText(cit, field); v != "" {
			parts = append(parts, v)
		}
	}
	if len(parts) == 0 {
		return cit.innerText()
	}
	out := parts[0]
	for _, p := range parts[1:] {
		out += ". " + p
	}
	return out + "."
}

// textWithoutPubIDs flattens a citation's text, leaving out the pub-id
// elements that carry identifiers rather than prose.
func textWithoutPubIDs(n *node) string {
	var sb []byte
	var walk func(*node)
	walk = func(n *node) {
		if n.isText() {
			sb = append(sb, n.text...)
			return
		}
		if n.name == "pub-id" {
			return
		}
		for _, k := range n.kids {
			walk(k)
		}
	}
	for _, k := range n.kids {
		walk(k)
	}
	return normalizeSpace(string(sb))
}

// resolveCrossRefs validates every cross-reference run against the ids
// the document actually defines. Unresolvable runs demote to plain text
// so rendering never emits dangling links; the target kind is corrected
// from the defining object, not trusted from the markup.
func (b *docBuilder) resolveCrossRefs(doc *domain.Document) {
	targets := map[string]domain.RefTarget{}
	for _, f := range doc.Figures {
		if f.ID != "" {
			targets[f.ID] = domain.RefFigure
		}
	}
	for _, t := range doc.Tables {
		if t.ID != "" {
			targets[t.ID] = domain.RefTable
		}
	}
	for _, r := range doc.References {
		targets[r.ID] = domain.RefCitation
	}

	var walk func(secs []domain.Section)
	walk = func(secs []domain.Section) {
		for i := range secs {
			for j := range secs[i].Paragraphs {
				b.resolveRuns(secs[i].Paragraphs[j].Runs, targets)
			}
			walk(secs[i].Children)
		}
	}
	walk(doc.Sections)

	for i := range doc.Figures {
		b.resolveRuns(doc.Figures[i].Caption, targets)
	}
	for i := range doc.Tables {
		b.resolveRuns(doc.Tables[i].Caption, targets)
	}
}

func (b *docBuilder) resolveRuns(runs []domain.Run, targets map[string]domain.RefTarget) {
	for i := range runs {
		if runs[i].Kind != domain.RunCrossRef {
			continue
		}
		target, ok := targets[runs[i].RefID]
		if !ok {
			b.diag("dropping unresolved cross-reference", "rid", runs[i].RefID)
			runs[i] = domain.Run{Kind: domain.RunText, Text: runs[i].Text}
			continue
		}
		runs[i].Target = target
	}
}
