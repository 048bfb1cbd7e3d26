// Package output renders pipeline results for the terminal and exports
// them to citation formats.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/henrybloomingdale/clinlit/internal/mesh"
	"github.com/henrybloomingdale/clinlit/internal/pipeline"
)

// Config controls which output mode(s) are active.
type Config struct {
	JSON    bool   // Structured JSON
	Human   bool   // Rich terminal output with color
	Full    bool   // Show full abstracts (human mode)
	RISFile string // Export the bibliography to this RIS path
}

// FormatResponse writes a processQuery result.
func FormatResponse(w io.Writer, resp *pipeline.Response, cfg Config) error {
	if cfg.RISFile != "" {
		if err := WriteRIS(cfg.RISFile, resp.Articles); err != nil {
			return fmt.Errorf("RIS export failed: %w", err)
		}
	}
	if cfg.JSON {
		return writeJSON(w, resp)
	}
	if cfg.Human {
		return formatResponseHuman(w, resp, cfg.Full)
	}
	return formatResponsePlain(w, resp)
}

// FormatMeSH writes a MeSH descriptor record.
func FormatMeSH(w io.Writer, record *mesh.Record, cfg Config) error {
	if cfg.JSON {
		return writeJSON(w, record)
	}
	if cfg.Human {
		return formatMeSHHuman(w, record)
	}
	return formatMeSHPlain(w, record)
}

func formatResponsePlain(w io.Writer, resp *pipeline.Response) error {
	if !resp.Success {
		fmt.Fprintf(w, "Query failed: %s\n", resp.Message)
		return nil
	}

	fmt.Fprintf(w, "Question: %s\n", resp.Question)
	if resp.CanonicalStrategy != "" {
		fmt.Fprintf(w, "Strategy: %s\n", resp.CanonicalStrategy)
	}
	if resp.ProcessAlert != "" {
		fmt.Fprintf(w, "Note: %s\n", resp.ProcessAlert)
	}
	fmt.Fprintln(w)

	if len(resp.Articles) == 0 {
		fmt.Fprintln(w, "No articles found.")
		return nil
	}

	for i, ra := range resp.Articles {
		fmt.Fprintf(w, "%2d. [%3d] %s\n", i+1, ra.PriorityScore, ra.Title)
		fmt.Fprintf(w, "    PMID %s", ra.PMID)
		if ra.Year > 0 {
			fmt.Fprintf(w, " · %d", ra.Year)
		}
		if ra.Journal != "" {
			fmt.Fprintf(w, " · %s", ra.Journal)
		}
		fmt.Fprintln(w)
		if flags := articleFlags(ra); flags != "" {
			fmt.Fprintf(w, "    %s\n", flags)
		}
	}

	fmt.Fprintln(w)
	s := resp.Stats
	fmt.Fprintf(w, "Articles: %d found, %d after filter, %d with abstracts, %d analyzed, %d failed, %d invalid (%d ms)\n",
		s.Initial, s.AfterFilter, s.WithAbstracts, s.Analyzed, s.Failed, s.Invalid, s.ProcessingMs)
	return nil
}

func articleFlags(ra *pipeline.ResultArticle) string {
	var flags []string
	if ra.Analyzed {
		flags = append(flags, "analyzed")
	}
	if ra.Retried {
		flags = append(flags, "retried")
	}
	if ra.Invalid {
		flags = append(flags, "invalid")
	} else if ra.Error {
		flags = append(flags, "analysis failed")
	}
	return strings.Join(flags, ", ")
}

func formatMeSHPlain(w io.Writer, record *mesh.Record) error {
	fmt.Fprintf(w, "MeSH Term: %s\n", record.Name)
	fmt.Fprintf(w, "UI: %s\n", record.UI)

	if len(record.TreeNumbers) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Tree Numbers:")
		for _, tn := range record.TreeNumbers {
			fmt.Fprintf(w, "  %s\n", tn)
		}
	}
	if record.ScopeNote != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Scope Note:")
		fmt.Fprintf(w, "  %s\n", record.ScopeNote)
	}
	if len(record.EntryTerms) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Entry Terms (synonyms):")
		for _, et := range record.EntryTerms {
			fmt.Fprintf(w, "  - %s\n", et)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Search clause: %s\n", record.Clause())
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
