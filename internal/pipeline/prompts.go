package pipeline

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/henrybloomingdale/clinlit/internal/article"
)

// Slice limits for the synthesis prompt.
const (
	synthesisAbstractSlice = 300
	synthesisAnalysisSlice = 500
)

func strategyPrompt(question string) string {
	return fmt.Sprintf(`Eres un bibliotecario clínico experto en PubMed.

Convierte la siguiente pregunta clínica en una estrategia de búsqueda booleana para PubMed, usando términos MeSH y etiquetas de campo ([MeSH Terms], [tiab]).

Pregunta: %s

Responde con este formato:

ESTRATEGIA PRINCIPAL:
(la expresión booleana completa)

Después estima: sensibilidad (%%), especificidad (%%), precisión (%%), NNR y saturación (%%) de la estrategia.`, question)
}

func filterPrompt(question string, articles []*article.Article, limit int) string {
	var b strings.Builder
	fmt.Fprintf(&b, `Pregunta clínica: %s

De la siguiente lista de artículos, selecciona los %d más relevantes para la pregunta.

`, question, limit)
	for _, a := range articles {
		fmt.Fprintf(&b, "%s - %s\n", a.PMID, a.Title)
	}
	b.WriteString("\nResponde únicamente con los PMID seleccionados, uno por línea, sin texto adicional.")
	return b.String()
}

func analyzePrompt(question string, a *article.Article) string {
	return fmt.Sprintf(`Eres un metodólogo clínico. Analiza críticamente este artículo en relación con la pregunta.

Pregunta: %s

Título: %s
Autores: %s
Revista: %s (%s)
PMID: %s
Resumen: %s

Genera un fragmento HTML con la estructura:
<div class="card-analysis">
  <div class="card-header"><h3>título</h3><span class="badge">calidad: estrellas</span><span class="badge">tipo: diseño</span></div>
  <div class="card-section">relevancia para la pregunta, fortalezas metodológicas, limitaciones y aplicabilidad clínica</div>
</div>

Responde solo con el fragmento HTML.`, question, a.Title, a.AuthorLine(), a.Journal, a.PublicationDate, a.PMID, a.Abstract)
}

func analyzeSimplePrompt(question string, a *article.Article) string {
	return fmt.Sprintf(`Resume en un fragmento HTML breve (<div class="card-analysis">...</div>) la relevancia de este artículo para la pregunta.

Pregunta: %s
Título: %s
Resumen: %s`, question, a.Title, a.Abstract)
}

// synthesisInput is one analyzed article as fed to the synthesis prompt.
type synthesisInput struct {
	Title    string
	Authors  string
	Date     string
	PMID     string
	Abstract string
	Analysis string
}

func synthesisPrompt(question string, items []synthesisInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, `Eres un metodólogo clínico. Redacta una síntesis narrativa de la evidencia sobre la pregunta, integrando los artículos analizados. Señala consistencias, discrepancias y vacíos.

Pregunta: %s

Artículos:
`, question)
	for i, it := range items {
		fmt.Fprintf(&b, "\n[%d] %s\n", i+1, it.Title)
		if it.Authors != "" {
			fmt.Fprintf(&b, "Autores: %s\n", it.Authors)
		}
		if it.Date != "" {
			fmt.Fprintf(&b, "Fecha: %s\n", it.Date)
		}
		if it.PMID != "" {
			fmt.Fprintf(&b, "PMID: %s\n", it.PMID)
		}
		if it.Abstract != "" {
			fmt.Fprintf(&b, "Resumen: %s\n", slice(it.Abstract, synthesisAbstractSlice))
		}
		if it.Analysis != "" {
			fmt.Fprintf(&b, "Análisis: %s\n", slice(it.Analysis, synthesisAnalysisSlice))
		}
	}
	b.WriteString("\nResponde con un fragmento HTML listo para incrustar.")
	return b.String()
}

// slice truncates to at most max bytes without splitting a rune.
func slice(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := s[:max]
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut
}
