package render

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// tableMarkdown converts the raw XHTML table markup kept by the parser
// into a GitHub-flavored Markdown table. Ragged rows are padded to the
// widest row so the output always forms a valid table.
func tableMarkdown(rawBody string) (string, error) {
	sel, err := goquery.NewDocumentFromReader(strings.NewReader(rawBody))
	if err != nil {
		return "", fmt.Errorf("parse table markup: %w", err)
	}

	var rows [][]string
	sel.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var cells []string
		tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, cellText(cell))
		})
		if len(cells) > 0 {
			rows = append(rows, cells)
		}
	})
	if len(rows) == 0 {
		return "", nil
	}

	width := 0
	for _, row := range rows {
		width = max(width, len(row))
	}
	for i, row := range rows {
		for len(row) < width {
			row = append(row, "")
		}
		rows[i] = row
	}

	var sb strings.Builder
	writeRow(&sb, rows[0])
	sep := make([]string, width)
	for i := range sep {
		sep[i] = "---"
	}
	writeRow(&sb, sep)
	for _, row := range rows[1:] {
		writeRow(&sb, row)
	}
	return sb.String(), nil
}

func writeRow(sb *strings.Builder, cells []string) {
	sb.WriteString("|")
	for _, c := range cells {
		sb.WriteString(" " + c + " |")
	}
	sb.WriteString("\n")
}

// cellText flattens a cell to a single line safe inside a Markdown
// table: pipes escaped, whitespace collapsed.
func cellText(cell *goquery.Selection) string {
	text := strings.Join(strings.Fields(cell.Text()), " ")
	return strings.ReplaceAll(text, "|", "\\|")
}
