package parser

import (
	"strings"

	"PmcReader/internal/domain"
)

// refTargetFromType maps the xref ref-type attribute onto the run
// target vocabulary. Unknown types default to citation; resolution
// against collected ids decides whether the run survives either way.
func refTargetFromType(refType string) domain.RefTarget {
	switch refType {
	case "fig":
		return domain.RefFigure
	case "table":
		return domain.RefTable
	default:
		return domain.RefCitation
	}
}

// runsFromNode flattens the mixed inline content of n into typed runs.
// Styling nests in real articles (bold inside italic and so on); runs
// are flat, so the outermost recognized style wins and inner markup
// contributes its text only.
func (b *docBuilder) runsFromNode(n *node) []domain.Run {
	var runs []domain.Run
	for _, k := range n.kids {
		runs = b.appendRuns(runs, k)
	}
	return mergeTextRuns(runs)
}

func (b *docBuilder) appendRuns(runs []domain.Run, n *node) []domain.Run {
	if n.isText() {
		return append(runs, domain.Run{Kind: domain.RunText, Text: n.text})
	}

	switch n.name {
	case "italic", "em", "i":
		if text := n.innerText(); text != "" {
			runs = append(runs, domain.Run{Kind: domain.RunEmphasis, Text: text})
		}
	case "bold", "b", "strong":
		if text := n.innerText(); text != "" {
			runs = append(runs, domain.Run{Kind: domain.RunStrong, Text: text})
		}
	case "sup":
		if text := n.innerText(); text != "" {
			runs = append(runs, domain.Run{Kind: domain.RunSuperscript, Text: text})
		}
	case "sub":
		if text := n.innerText(); text != "" {
			runs = append(runs, domain.Run{Kind: domain.RunSubscript, Text: text})
		}
	case "xref":
		runs = append(runs, domain.Run{
			Kind:   domain.RunCrossRef,
			Text:   n.innerText(),
			RefID:  n.attr("rid"),
			Target: refTargetFromType(n.attr("ref-type")),
		})
	case "fig", "table-wrap", "supplementary-material", "disp-formula":
		// Collected at document level; nothing inline to keep.
	default:
		// Unrecognized inline element: keep its text, note the skip.
		b.diag("skipping unrecognized inline element", "element", n.name)
		for _, k := range n.kids {
			runs = b.appendRuns(runs, k)
		}
	}
	return runs
}

// mergeTextRuns joins adjacent plain-text runs and normalizes their
// whitespace so identical input bytes always produce identical runs.
// Interior whitespace collapses to single spaces; a space touching a
// styled neighbor survives so words do not fuse across run boundaries.
func mergeTextRuns(runs []domain.Run) []domain.Run {
	var out []domain.Run
	for _, r := range runs {
		if r.Kind == domain.RunText && len(out) > 0 && out[len(out)-1].Kind == domain.RunText {
			out[len(out)-1].Text += r.Text
			continue
		}
		out = append(out, r)
	}

	for i := range out {
		if out[i].Kind == domain.RunText {
			out[i].Text = collapseKeepEdges(out[i].Text)
		}
	}

	// Edge runs never need boundary spaces.
	if len(out) > 0 && out[0].Kind == domain.RunText {
		out[0].Text = strings.TrimLeft(out[0].Text, " ")
	}
	if last := len(out) - 1; last >= 0 && out[last].Kind == domain.RunText {
		out[last].Text = strings.TrimRight(out[last].Text, " ")
	}

	filtered := out[:0]
	for _, r := range out {
		if r.Kind == domain.RunText && r.Text == "" {
			continue
		}
		filtered = append(filtered, r)
	}
	return filtered
}

// collapseKeepEdges squeezes runs of whitespace to single spaces while
// remembering whether the span touched its neighbors with whitespace.
func collapseKeepEdges(s string) string {
	core := strings.Join(strings.Fields(s), " ")
	if core == "" {
		if s == "" {
			return ""
		}
		return " "
	}
	if strings.TrimLeft(s, " \t\n\r") != s {
		core = " " + core
	}
	if strings.TrimRight(s, " \t\n\r") != s {
		core += " "
	}
	return core
}
