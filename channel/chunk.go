package channel

import (
	"strings"
	"unicode"
)

// MaxMessageLen is the per-message character cap of the WhatsApp transport.
const MaxMessageLen = 1600

// Chunk splits text into segments of at most limit runes. A cut prefers the
// last newline inside the window, then the last space, and only splits a
// word when neither exists.
func Chunk(text string, limit int) []string {
	if limit <= 0 {
		limit = MaxMessageLen
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	rest := []rune(text)
	var chunks []string
	for len(rest) > limit {
		window := rest[:limit]
		cut, skip := hardCut(window)
		if piece := strings.TrimSpace(string(rest[:cut])); piece != "" {
			chunks = append(chunks, piece)
		}
		rest = trimLeading(rest[cut+skip:])
	}
	if piece := strings.TrimSpace(string(rest)); piece != "" {
		chunks = append(chunks, piece)
	}
	return chunks
}

func trimLeading(r []rune) []rune {
	for len(r) > 0 && unicode.IsSpace(r[0]) {
		r = r[1:]
	}
	return r
}

// hardCut returns the cut index in window and how many separator runes to
// drop after it.
func hardCut(window []rune) (int, int) {
	for _, sep := range []rune{'\n', ' '} {
		for i := len(window) - 1; i > 0; i-- {
			if window[i] == sep {
				return i, 1
			}
		}
	}
	return len(window), 0
}
