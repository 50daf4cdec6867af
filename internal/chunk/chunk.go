package chunk

import "strings"

// Paragraph is one newline-delimited, non-blank unit of input text.
type Paragraph struct {
	Index int
	Text  string
}

// Paragraphs splits text on line breaks and drops blank lines. Text is kept as
// written; only the blank check trims. An all-whitespace input yields nil.
func Paragraphs(text string) []Paragraph {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	var out []Paragraph
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, Paragraph{
			Index: len(out),
			Text:  line,
		})
	}
	return out
}

// Join rebuilds newline-joined text from paragraphs.
func Join(paragraphs []Paragraph) string {
	parts := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		parts = append(parts, p.Text)
	}
	return strings.Join(parts, "\n")
}
