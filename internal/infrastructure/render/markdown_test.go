package render

import (
	"strings"
	"testing"

	"PmcReader/internal/domain"
)

func sampleDoc() *domain.Document {
	return &domain.Document{
		ID:      "PMC7096066",
		Title:   "A Study of Something Important",
		PubDate: "2023-06-05",
		DOI:     "10.1000/jex.2023.42",
		PMID:    "36000001",
		Authors: []domain.Author{
			{GivenNames: "Jane", Surname: "Doe", Corresponding: true},
			{GivenNames: "John", Surname: "Smith"},
		},
		Journal:  domain.Journal{Title: "Journal of Examples", Volume: "12", Issue: "3"},
		Keywords: []string{"alpha", "beta"},
		Sections: []domain.Section{
			{
				ID:    "s1",
				Title: "Introduction",
				Paragraphs: []domain.Paragraph{
					{Runs: []domain.Run{
						{Kind: domain.RunText, Text: "Plain with "},
						{Kind: domain.RunEmphasis, Text: "style"},
						{Kind: domain.RunText, Text: " and H"},
						{Kind: domain.RunSubscript, Text: "2"},
						{Kind: domain.RunText, Text: "O."},
					}},
				},
				Children: []domain.Section{
					{ID: "s1-1", Title: "Background", Paragraphs: []domain.Paragraph{
						{Runs: []domain.Run{{Kind: domain.RunText, Text: "Nested."}}},
					}},
				},
			},
			{
				ID:    "s2",
				Title: "Results",
				Paragraphs: []domain.Paragraph{
					{Runs: []domain.Run{
						{Kind: domain.RunText, Text: "See "},
						{Kind: domain.RunCrossRef, Text: "Figure 1", RefID: "f1", Target: domain.RefFigure},
						{Kind: domain.RunText, Text: "."},
					}},
				},
			},
		},
		Figures: []domain.Figure{
			{ID: "f1", Label: "Figure 1", Caption: []domain.Run{{Kind: domain.RunText, Text: "The first figure."}}, FileRef: "fig1.jpg"},
		},
		Tables: []domain.Table{
			{
				ID: "t1", Label: "Table 1",
				Caption:   []domain.Run{{Kind: domain.RunText, Text: "Measurements."}},
				RawBody:   "<table><tr><th>k</th><th>v</th></tr><tr><td>a</td><td>1</td></tr></table>",
				Footnotes: []string{"n = 3."},
			},
		},
		References: []domain.Reference{
			{ID: "r1", CitationText: "Doe J. Prior work. 2020.", DOI: "10.1000/prior", PMID: "31000000"},
		},
		Supplementary: []domain.SupplementaryMaterial{
			{ID: "supp1", Title: "Raw data", MimeType: "text/csv", Href: "data.csv"},
		},
	}
}

func TestRenderBasicStructure(t *testing.T) {
	t.Parallel()

	md := Render(sampleDoc(), Options{IncludeMetadata: true, IncludeFigureCaptions: true})

	for _, want := range []string{
		"# A Study of Something Important",
		"**Authors:** Jane Doe, John Smith",
		"**Journal:** Journal of Examples 12(3)",
		"**DOI:** [10.1000/jex.2023.42](https://doi.org/10.1000/jex.2023.42)",
		"## Introduction",
		"### Background",
		"## Results",
		"Plain with *style* and H<sub>2</sub>O.",
		"See Figure 1.",
		"## Figures",
		"**Figure 1.** The first figure.",
		"## Tables",
		"| k | v |",
		"| a | 1 |",
		"> n = 3.",
		"## References",
		"1. Doe J. Prior work. 2020. [doi:10.1000/prior](https://doi.org/10.1000/prior)",
		"[PMID:31000000](https://pubmed.ncbi.nlm.nih.gov/31000000/)",
		"## Supplementary Material",
		"Raw data (`data.csv`, text/csv)",
	} {
		if !strings.Contains(md, want) {
			t.Fatalf("output missing %q\n---\n%s", want, md)
		}
	}
}

func TestRenderSectionOrderFollowsDocument(t *testing.T) {
	t.Parallel()

	md := Render(sampleDoc(), Options{})
	intro := strings.Index(md, "## Introduction")
	background := strings.Index(md, "### Background")
	results := strings.Index(md, "## Results")
	if intro < 0 || background < 0 || results < 0 {
		t.Fatalf("missing headings:\n%s", md)
	}
	if !(intro < background && background < results) {
		t.Fatalf("headings out of order: %d %d %d", intro, background, results)
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	t.Parallel()

	opts := Options{IncludeMetadata: true, IncludeToc: true, IncludeFigureCaptions: true}
	a := Render(sampleDoc(), opts)
	b := Render(sampleDoc(), opts)
	if a != b {
		t.Fatal("identical input produced different output")
	}
}

func TestRenderToc(t *testing.T) {
	t.Parallel()

	md := Render(sampleDoc(), Options{IncludeToc: true})
	if !strings.Contains(md, "## Contents") {
		t.Fatalf("missing contents block:\n%s", md)
	}
	for _, want := range []string{
		"1. [Introduction](#introduction)",
		"   - [Background](#background)",
		"2. [Results](#results)",
	} {
		if !strings.Contains(md, want) {
			t.Fatalf("toc missing %q\n%s", want, md)
		}
	}
}

func TestRenderFrontmatterReplacesMetadata(t *testing.T) {
	t.Parallel()

	md := Render(sampleDoc(), Options{IncludeMetadata: true, UseYAMLFrontmatter: true})

	if !strings.HasPrefix(md, "---\n") {
		t.Fatalf("output does not start with frontmatter:\n%.80s", md)
	}
	if strings.Contains(md, "**Authors:**") {
		t.Fatal("metadata block emitted alongside frontmatter")
	}
	for _, want := range []string{
		"title: A Study of Something Important",
		"- Jane Doe",
		"pmcid: PMC7096066",
		"doi: 10.1000/jex.2023.42",
	} {
		if !strings.Contains(md, want) {
			t.Fatalf("frontmatter missing %q\n%s", want, md)
		}
	}
}

func TestRenderHeadingDepthIsCapped(t *testing.T) {
	t.Parallel()

	deep := domain.Section{ID: "d7", Title: "Level Seven"}
	nest := &deep
	for i := 6; i >= 1; i-- {
		wrapped := domain.Section{
			ID:       "d" + string(rune('0'+i)),
			Title:    "Level",
			Children: []domain.Section{*nest},
		}
		nest = &wrapped
	}
	doc := &domain.Document{Title: "T", Sections: []domain.Section{*nest}}

	md := Render(doc, Options{})
	if !strings.Contains(md, "\n###### Level Seven\n") {
		t.Fatalf("deep section not capped at h6:\n%s", md)
	}
	if strings.Contains(md, "#######") {
		t.Fatalf("heading deeper than h6 emitted:\n%s", md)
	}
}

func TestRenderAnchor(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"Introduction":          "introduction",
		"Materials and Methods": "materials-and-methods",
		"Results & Discussion":  "results--discussion",
		"COVID-19 Study (2023)": "covid-19-study-2023",
	}
	for in, want := range cases {
		if got := anchor(in); got != want {
			t.Fatalf("anchor(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTableMarkdownPadsRaggedRows(t *testing.T) {
	t.Parallel()

	md, err := tableMarkdown("<table><tr><th>a</th><th>b</th><th>c</th></tr><tr><td>1</td></tr></table>")
	if err != nil {
		t.Fatalf("tableMarkdown: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(md), "\n")
	if len(lines) != 3 {
		t.Fatalf("unexpected line count:\n%s", md)
	}
	if lines[0] != "| a | b | c |" {
		t.Fatalf("header = %q", lines[0])
	}
	if lines[1] != "| --- | --- | --- |" {
		t.Fatalf("separator = %q", lines[1])
	}
	if lines[2] != "| 1 |  |  |" {
		t.Fatalf("padded row = %q", lines[2])
	}
}

func TestTableMarkdownEscapesPipes(t *testing.T) {
	t.Parallel()

	md, err := tableMarkdown("<table><tr><td>a|b</td></tr></table>")
	if err != nil {
		t.Fatalf("tableMarkdown: %v", err)
	}
	if !strings.Contains(md, `a\|b`) {
		t.Fatalf("pipe not escaped:\n%s", md)
	}
}

func TestTableMarkdownEmptyBody(t *testing.T) {
	t.Parallel()

	md, err := tableMarkdown("<table></table>")
	if err != nil {
		t.Fatalf("tableMarkdown: %v", err)
	}
	if md != "" {
		t.Fatalf("expected empty output, got %q", md)
	}
}
