package output

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/henrybloomingdale/clinlit/internal/pipeline"
)

// WriteRIS exports the ranked bibliography to RIS format for citation
// managers. Analysis fragments are not exported; RIS has no field for them.
func WriteRIS(path string, articles []*pipeline.ResultArticle) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating RIS file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for i, ra := range articles {
		writeTag(w, "TY", "JOUR")
		writeTag(w, "TI", ra.Title)
		for _, au := range ra.Authors {
			writeTag(w, "AU", au.Name)
		}
		if ra.Year > 0 {
			writeTag(w, "PY", fmt.Sprintf("%d", ra.Year))
		}
		writeTag(w, "JO", ra.Journal)
		writeTag(w, "DO", ra.DOI)
		writeTag(w, "AB", ra.Abstract)
		for _, term := range ra.MeshTerms {
			writeTag(w, "KW", term)
		}
		if ra.PMID != "" {
			writeTag(w, "ID", "PMID:"+ra.PMID)
			writeTag(w, "UR", "https://pubmed.ncbi.nlm.nih.gov/"+ra.PMID+"/")
		}
		writeTag(w, "ER", "")

		if i < len(articles)-1 {
			if _, err := w.WriteString("\n"); err != nil {
				return fmt.Errorf("writing RIS separator: %w", err)
			}
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing RIS output: %w", err)
	}
	return nil
}

func writeTag(w *bufio.Writer, tag, value string) {
	if tag == "ER" {
		_, _ = w.WriteString("ER  -\n")
		return
	}
	if strings.TrimSpace(value) == "" {
		return
	}
	_, _ = w.WriteString(tag + "  - " + sanitizeValue(value) + "\n")
}

func sanitizeValue(v string) string {
	v = strings.ReplaceAll(v, "\r\n", " ")
	v = strings.ReplaceAll(v, "\n", " ")
	v = strings.ReplaceAll(v, "\r", " ")
	return strings.TrimSpace(v)
}
