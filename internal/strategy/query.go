package strategy

import "strings"

// CleanQuestion normalizes a clinical question into a usable PubMed query,
// used when no strategy could be extracted from the model response.
func CleanQuestion(question string) string {
	q := question

	preambles := []string{
		"According to a recent meta-analysis,",
		"According to a recent systematic review,",
		"According to recent studies,",
		"Based on recent evidence,",
		"Según la evidencia actual,",
		"Segun la evidencia actual,",
		"According to a", "Based on a", "Based on",
	}
	for _, p := range preambles {
		q = strings.Replace(q, p, "", 1)
		q = strings.Replace(q, strings.ToLower(p), "", 1)
	}

	q = strings.TrimSpace(q)

	questionWords := []string{
		"does ", "Does ", "do ", "Do ", "is ", "Is ", "can ", "Can ",
		"should ", "Should ", "what is ", "What is ",
	}
	for _, w := range questionWords {
		if strings.HasPrefix(q, w) {
			q = strings.TrimPrefix(q, w)
			break
		}
	}
	q = strings.TrimSuffix(q, "?")
	q = strings.TrimPrefix(q, "¿")

	q = strings.TrimSpace(strings.Join(strings.Fields(q), " "))

	if len(q) > 150 {
		q = q[:150]
	}
	return q
}

// Keywords splits a question into the terms used for title and abstract
// keyword matching. Terms of three characters or fewer are dropped.
func Keywords(question string) []string {
	var out []string
	for _, w := range strings.Fields(strings.ToLower(question)) {
		w = strings.Trim(w, `.,;:?!"'()¿¡`)
		if len(w) > 3 {
			out = append(out, w)
		}
	}
	return out
}
