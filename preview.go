package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/brettboylen/zs-parser/models"
)

const previewTextWidth = 48

var previewHeader = []string{"post_id", "creation_time", "engagement", "text"}

// printPreview writes the first n records as an aligned table. Widths are
// measured in terminal cells so CJK text lines up.
func printPreview(w io.Writer, records []models.Record, n int) {
	if n > len(records) {
		n = len(records)
	}

	rows := make([][]string, 0, n)
	for _, rec := range records[:n] {
		text := strings.Join(strings.Fields(rec.Text), " ")
		rows = append(rows, []string{
			models.IDString(rec.PostID),
			rec.CreationTime,
			strconv.Itoa(rec.Engagement()),
			runewidth.Truncate(text, previewTextWidth, "..."),
		})
	}

	fmt.Fprint(w, renderTable(previewHeader, rows))
	fmt.Fprintf(w, "(%d of %d records)\n", n, len(records))
}

func renderTable(header []string, rows [][]string) string {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if cw := runewidth.StringWidth(cell); cw > widths[i] {
				widths[i] = cw
			}
		}
	}

	var sb strings.Builder
	writeRow := func(cells []string) {
		for i, cell := range cells {
			if i > 0 {
				sb.WriteString(" | ")
			}
			if i == len(cells)-1 {
				sb.WriteString(cell)
				continue
			}
			sb.WriteString(runewidth.FillRight(cell, widths[i]))
		}
		sb.WriteByte('\n')
	}

	writeRow(header)
	sep := make([]string, len(header))
	for i := range header {
		sep[i] = strings.Repeat("-", widths[i])
	}
	writeRow(sep)
	for _, row := range rows {
		writeRow(row)
	}
	return sb.String()
}
