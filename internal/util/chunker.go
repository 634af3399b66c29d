package util

import (
	"strings"
	"unicode"
)

// ChunkText splits text into windows of at most chunkSize runes that overlap by
// overlap runes. A window is pulled back to the last whitespace in its final
// quarter so words are not cut in half.
func ChunkText(text string, chunkSize, overlap int) []string {
	if chunkSize <= 0 {
		chunkSize = 1200
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}
	runes := []rune(text)
	out := make([]string, 0, len(runes)/chunkSize+1)
	for i := 0; i < len(runes); {
		end := i + chunkSize
		if end >= len(runes) {
			end = len(runes)
		} else if cut := lastSpace(runes[i:end], chunkSize*3/4); cut > 0 {
			end = i + cut
		}
		if part := strings.TrimSpace(string(runes[i:end])); part != "" {
			out = append(out, part)
		}
		if end == len(runes) {
			break
		}
		next := end - overlap
		if next <= i {
			next = end
		}
		i = next
	}
	return out
}

func lastSpace(window []rune, min int) int {
	for j := len(window) - 1; j >= min; j-- {
		if unicode.IsSpace(window[j]) {
			return j
		}
	}
	return 0
}
