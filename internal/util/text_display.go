package util

import (
	"sort"
	"strings"
	"unicode"
)

// Snippet returns s cleaned for display and cut to maxRunes with an ellipsis.
func Snippet(s string, maxRunes int) string {
	return trimClean(s, maxRunes)
}

// Sentences splits text on Latin and CJK sentence terminators.
func Sentences(s string) []string {
	out := make([]string, 0, 8)
	var b strings.Builder
	for _, r := range s {
		b.WriteRune(r)
		switch r {
		case '.', '!', '?', '。', '！', '？':
			if x := strings.TrimSpace(b.String()); x != "" {
				out = append(out, x)
			}
			b.Reset()
		}
	}
	if rest := strings.TrimSpace(b.String()); rest != "" {
		out = append(out, rest)
	}
	return out
}

// KeySentence picks the sentence of text sharing the most terms with topic,
// preferring shorter sentences on ties.
func KeySentence(text, topic string, maxRunes int) string {
	text = trimClean(text, 4000)
	sentences := Sentences(text)
	if len(sentences) == 0 {
		return ""
	}
	terms := meaningfulTerms(topic)
	if len(terms) == 0 {
		return trimClean(sentences[0], maxRunes)
	}
	type scored struct {
		sentence string
		score    int
	}
	list := make([]scored, 0, len(sentences))
	for _, s := range sentences {
		low := strings.ToLower(s)
		score := 0
		for _, term := range terms {
			if strings.Contains(low, term) {
				score++
			}
		}
		list = append(list, scored{sentence: s, score: score})
	}
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].score == list[j].score {
			return len(list[i].sentence) < len(list[j].sentence)
		}
		return list[i].score > list[j].score
	})
	return trimClean(list[0].sentence, maxRunes)
}

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "was": {}, "were": {}, "what": {}, "how": {},
	"why": {}, "which": {}, "that": {}, "this": {}, "these": {}, "those": {}, "with": {}, "from": {},
}

func meaningfulTerms(s string) []string {
	seen := map[string]struct{}{}
	terms := make([]string, 0, 8)
	for _, f := range strings.Fields(strings.ToLower(s)) {
		f = strings.Trim(f, ",.;:!?()[]{}\"'`")
		if len([]rune(f)) < 3 {
			continue
		}
		if _, ok := stopWords[f]; ok {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		terms = append(terms, f)
	}
	return terms
}

func trimClean(s string, maxRunes int) string {
	if maxRunes <= 0 {
		maxRunes = 420
	}
	s = strings.Join(strings.Fields(SanitizeText(s)), " ")
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if unicode.IsPrint(r) {
			out = append(out, r)
		}
	}
	runes := []rune(strings.TrimSpace(string(out)))
	if len(runes) > maxRunes {
		return strings.TrimSpace(string(runes[:maxRunes])) + "..."
	}
	return string(runes)
}
