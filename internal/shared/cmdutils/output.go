// Package cmdutils holds small helpers shared by CLI commands.
package cmdutils

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

const logo = "🛠"

// PrintResponse writes a scenario's final answer under a bold header.
// Empty text prints nothing.
func PrintResponse(w io.Writer, scenario, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	header := color.New(color.Bold).Sprintf("%s toolcall · %s", logo, scenario)
	fmt.Fprintf(w, "\n%s\n%s\n\n", header, text)
}

// Table writes rows as fixed-width columns, truncating cells to their width.
func Table(w io.Writer, widths []int, header []string, rows [][]string) {
	line := func(cells []string) {
		var b strings.Builder
		for i, cell := range cells {
			if i < len(widths) && i < len(cells)-1 {
				fmt.Fprintf(&b, "%-*s ", widths[i], fit(cell, widths[i]))
				continue
			}
			b.WriteString(cell)
		}
		fmt.Fprintln(w, strings.TrimRight(b.String(), " "))
	}
	line(header)
	total := len(header[len(header)-1])
	for _, n := range widths {
		total += n + 1
	}
	fmt.Fprintln(w, strings.Repeat("-", total))
	for _, r := range rows {
		line(r)
	}
}

func fit(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width <= 1 {
		return string(r[:width])
	}
	return string(r[:width-1]) + "…"
}
