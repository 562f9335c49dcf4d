// Package sanitize strips markup from free text supplied by callers before it
// is forwarded to agents, emailed or indexed.
package sanitize

import (
	"regexp"
	"strings"
)

var (
	htmlTagRegex    = regexp.MustCompile(`<[^>]*>`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
	entityReplacer  = strings.NewReplacer(
		"&lt;", "<",
		"&gt;", ">",
		"&amp;", "&",
		"&quot;", "\"",
		"&#39;", "'",
		"&nbsp;", " ",
	)
)

// StripHTML removes HTML tags, including tags hidden behind encoded entities.
func StripHTML(s string) string {
	result := htmlTagRegex.ReplaceAllString(s, "")
	result = entityReplacer.Replace(result)
	result = htmlTagRegex.ReplaceAllString(result, "")
	return strings.TrimSpace(result)
}

// Name strips markup from a single-line value such as a person or listing
// name and collapses runs of whitespace.
func Name(s string) string {
	return whitespaceRegex.ReplaceAllString(StripHTML(s), " ")
}

// Text strips markup from multi-line text, keeping line breaks.
func Text(s string) string {
	lines := strings.Split(StripHTML(s), "\n")
	out := lines[:0]
	for _, line := range lines {
		out = append(out, strings.TrimRight(line, " \t\r"))
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
