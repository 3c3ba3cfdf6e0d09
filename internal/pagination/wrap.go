package pagination

import (
	"strings"
	"unicode/utf8"
)

// wrapText breaks s on word boundaries into lines of at most max runes.
// Words longer than max are hard-split between runes.
func wrapText(s string, max int) []string {
	return wrapMeasured(s, max, utf8.RuneCountInString)
}

// wrapMeasured is wrapText with line width reported by width, which may count
// runes or pixels.
func wrapMeasured(s string, max int, width func(string) int) []string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return nil
	}
	if max < 1 {
		max = 1
	}
	var lines []string
	current := ""
	for _, w := range words {
		if width(w) > max {
			if current != "" {
				lines = append(lines, current)
				current = ""
			}
			chunks := splitWord(w, max, width)
			lines = append(lines, chunks[:len(chunks)-1]...)
			w = chunks[len(chunks)-1]
		}
		switch {
		case current == "":
			current = w
		case width(current+" "+w) <= max:
			current += " " + w
		default:
			lines = append(lines, current)
			current = w
		}
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines
}

// splitWord cuts w into chunks no wider than max. Every chunk holds at least
// one rune, so a single glyph wider than max still makes progress.
func splitWord(w string, max int, width func(string) int) []string {
	var chunks []string
	start := 0
	for i := 0; i < len(w); {
		_, size := utf8.DecodeRuneInString(w[i:])
		if i > start && width(w[start:i+size]) > max {
			chunks = append(chunks, w[start:i])
			start = i
		}
		i += size
	}
	return append(chunks, w[start:])
}

// fitText trims s from the end, a rune at a time, until it is no wider than max.
func fitText(s string, max int, width func(string) int) string {
	for s != "" && width(s) > max {
		_, size := utf8.DecodeLastRuneInString(s)
		s = s[:len(s)-size]
	}
	return s
}
