package summarizer

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Chunk is one ordered piece of a long transcript.
type Chunk struct {
	Index int
	Text  string
}

// clean replaces control characters (newlines and tabs included) with spaces
// and trims the result.
func clean(text string) string {
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, text)
	return strings.TrimSpace(mapped)
}

// split packs whole words into chunks of at most size runes. A word longer
// than size is cut into size-rune pieces.
func split(text string, size int) []Chunk {
	var (
		chunks []Chunk
		cur    strings.Builder
		curLen int
	)

	flush := func() {
		if curLen > 0 {
			chunks = append(chunks, Chunk{Index: len(chunks), Text: cur.String()})
			cur.Reset()
			curLen = 0
		}
	}

	for _, word := range strings.Fields(text) {
		for _, piece := range cutWord(word, size) {
			n := utf8.RuneCountInString(piece)
			if curLen > 0 && curLen+1+n > size {
				flush()
			}
			if curLen > 0 {
				cur.WriteByte(' ')
				curLen++
			}
			cur.WriteString(piece)
			curLen += n
		}
	}
	flush()

	return chunks
}

func cutWord(word string, size int) []string {
	if utf8.RuneCountInString(word) <= size {
		return []string{word}
	}
	runes := []rune(word)
	var out []string
	for len(runes) > size {
		out = append(out, string(runes[:size]))
		runes = runes[size:]
	}
	if len(runes) > 0 {
		out = append(out, string(runes))
	}
	return out
}

// excerpt returns the first n runes of text, marking a cut with an ellipsis.
func excerpt(text string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:n])) + "…"
}
