package pipeline

import (
	"fmt"
	"html"
)

// NotSelectedNote marks articles ranked below the analysis cutoff.
const NotSelectedNote = "No seleccionado para análisis detallado"

// errorCard renders the fixed analysis-failure fragment. The frontend
// keys on the badge "tipo: Error" to switch rendering.
func errorCard(title, message string) string {
	return fmt.Sprintf(`<div class="card-analysis">
  <div class="card-header">
    <h3>%s</h3>
    <span class="badge">calidad: ★☆☆☆☆</span>
    <span class="badge">tipo: Error</span>
  </div>
  <div class="card-section">
    <strong>ERROR DE ANÁLISIS</strong>
    <p>%s</p>
  </div>
</div>`, html.EscapeString(title), html.EscapeString(message))
}
