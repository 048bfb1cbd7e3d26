package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/henrybloomingdale/clinlit/internal/mesh"
	"github.com/henrybloomingdale/clinlit/internal/pipeline"
)

var (
	cyan       = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	bold       = lipgloss.NewStyle().Bold(true)
	dim        = lipgloss.NewStyle().Faint(true)
	green      = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	yellow     = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	red        = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	magenta    = lipgloss.NewStyle().Foreground(lipgloss.Color("5"))
	labelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4"))
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("6")).
			Padding(0, 1)
)

// truncate cuts a string to maxLen characters, appending "…" if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-1] + "…"
}

func formatResponseHuman(w io.Writer, resp *pipeline.Response, full bool) error {
	if !resp.Success {
		fmt.Fprintf(w, "%s %s\n", red.Render("✗"), resp.Message)
		return nil
	}

	header := bold.Render("🔬 "+resp.Question) + "\n" +
		labelStyle.Render("Strategy: ") + resp.CanonicalStrategy
	fmt.Fprintln(w, boxStyle.Render(header))
	if resp.ProcessAlert != "" {
		fmt.Fprintf(w, "%s %s\n", yellow.Render("⚠"), resp.ProcessAlert)
	}
	fmt.Fprintln(w)

	if len(resp.Articles) == 0 {
		fmt.Fprintln(w, "No articles found.")
		return nil
	}

	var rows [][]string
	for i, ra := range resp.Articles {
		status := ""
		switch {
		case ra.Invalid:
			status = red.Render("invalid")
		case ra.Error:
			status = red.Render("failed")
		case ra.Analyzed && ra.Retried:
			status = yellow.Render("analyzed*")
		case ra.Analyzed:
			status = green.Render("analyzed")
		}
		year := ""
		if ra.Year > 0 {
			year = fmt.Sprintf("%d", ra.Year)
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			fmt.Sprintf("%d", ra.PriorityScore),
			cyan.Render(ra.PMID),
			bold.Render(truncate(ra.Title, 50)),
			year,
			status,
		})
	}

	t := table.New().
		Headers("#", "Score", "PMID", "Title", "Year", "Status").
		Rows(rows...).
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("8"))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4"))
			}
			return lipgloss.NewStyle()
		})
	fmt.Fprintln(w, t.Render())

	if full {
		for _, ra := range resp.Articles {
			if !ra.Analyzed {
				continue
			}
			fmt.Fprintln(w)
			fmt.Fprintln(w, boxStyle.Render(bold.Render(ra.Title)))
			for _, reason := range ra.Rationale {
				fmt.Fprintf(w, "  %s %s\n", magenta.Render("·"), reason)
			}
			fmt.Fprintln(w)
			fmt.Fprintln(w, ra.Analysis)
		}
	}

	s := resp.Stats
	fmt.Fprintln(w)
	fmt.Fprintln(w, dim.Render(fmt.Sprintf(
		"%d found · %d after filter · %d with abstracts · %d analyzed · %d failed · %d invalid · %d ms",
		s.Initial, s.AfterFilter, s.WithAbstracts, s.Analyzed, s.Failed, s.Invalid, s.ProcessingMs)))
	return nil
}

func formatMeSHHuman(w io.Writer, record *mesh.Record) error {
	fmt.Fprintf(w, "🏷️  %s  %s\n\n", bold.Render(record.Name), dim.Render(record.UI))

	if len(record.TreeNumbers) > 0 {
		fmt.Fprintf(w, "  %s\n", labelStyle.Render("Tree Numbers:"))
		for _, tn := range record.TreeNumbers {
			fmt.Fprintf(w, "    %s %s\n", magenta.Render("├"), tn)
		}
		fmt.Fprintln(w)
	}

	if record.ScopeNote != "" {
		fmt.Fprintf(w, "  %s\n", labelStyle.Render("Scope Note:"))
		for _, line := range strings.Split(wordWrap(record.ScopeNote, 76), "\n") {
			fmt.Fprintf(w, "    %s\n", line)
		}
		fmt.Fprintln(w)
	}

	if len(record.EntryTerms) > 0 {
		fmt.Fprintf(w, "  %s ", labelStyle.Render("Synonyms:"))
		colored := make([]string, len(record.EntryTerms))
		for i, et := range record.EntryTerms {
			colored[i] = yellow.Render(et)
		}
		fmt.Fprintln(w, strings.Join(colored, ", "))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "  %s %s\n", labelStyle.Render("Search clause:"), green.Render(record.Clause()))
	return nil
}

// wordWrap wraps text at the given width, breaking at spaces.
func wordWrap(text string, width int) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}

	var lines []string
	current := words[0]
	for _, word := range words[1:] {
		if len(current)+1+len(word) > width {
			lines = append(lines, current)
			current = word
		} else {
			current += " " + word
		}
	}
	lines = append(lines, current)
	return strings.Join(lines, "\n")
}
