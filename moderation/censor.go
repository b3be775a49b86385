// Package moderation masks blocklisted words in message content before it
// is persisted. Matching is resilient to leet speak, casing, and inserted
// punctuation; spacing and length of the original text are preserved.
package moderation

import (
	"log/slog"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

// Censor holds a compiled Aho-Corasick automaton over the normalized
// blocklist. A nil *Censor is a valid no-op filter.
type Censor struct {
	machine     *goahocorasick.Machine
	replacement rune
	log         *slog.Logger
}

// textMapping links positions in the normalized text back to the original
// runes so masking can preserve the original layout.
type textMapping struct {
	normalized []rune
	originIdx  []int
}

// NewCensor compiles the blocklist. Words that normalize to nothing
// (pure punctuation, empty strings) are skipped. An empty effective
// blocklist yields a nil Censor.
func NewCensor(blocklist []string, replacement rune, log *slog.Logger) (*Censor, error) {
	patterns := make([][]rune, 0, len(blocklist))
	for _, word := range blocklist {
		normalized := normalizeRunes([]rune(word))
		if len(normalized) == 0 {
			continue
		}
		patterns = append(patterns, normalized)
	}
	if len(patterns) == 0 {
		return nil, nil
	}

	machine := new(goahocorasick.Machine)
	if err := machine.Build(patterns); err != nil {
		return nil, err
	}
	return &Censor{machine: machine, replacement: replacement, log: log}, nil
}

// Apply masks every blocklisted span in content and returns the masked
// text plus the normalized words that matched.
func (c *Censor) Apply(content string) (string, []string) {
	if c == nil {
		return content, nil
	}

	mapping := normalize(content)
	if len(mapping.normalized) == 0 {
		return content, nil
	}

	spans := c.machine.MultiPatternSearch(mapping.normalized, false)
	if len(spans) == 0 {
		return content, nil
	}

	originRunes := []rune(content)
	var matched []string
	for _, span := range spans {
		start := span.Pos
		end := start + len(span.Word)
		if start < 0 || end > len(mapping.originIdx) {
			continue
		}
		matched = append(matched, string(span.Word))

		// Mask the full original span, punctuation noise included.
		originStart := mapping.originIdx[start]
		originEnd := mapping.originIdx[end-1] + 1
		for i := originStart; i < originEnd; i++ {
			originRunes[i] = c.replacement
		}
	}
	if len(matched) > 0 {
		c.log.Debug("Censored message content", "matches", len(matched))
	}
	return string(originRunes), matched
}

// normalize lowers, de-leets, and strips noise, remembering where each
// surviving rune came from.
func normalize(input string) textMapping {
	originRunes := []rune(input)
	mapping := textMapping{
		normalized: make([]rune, 0, len(originRunes)),
		originIdx:  make([]int, 0, len(originRunes)),
	}
	for i, r := range originRunes {
		clean := deleet(r)
		if isNoise(clean) {
			continue
		}
		mapping.normalized = append(mapping.normalized, unicode.ToLower(clean))
		mapping.originIdx = append(mapping.originIdx, i)
	}
	return mapping
}

func normalizeRunes(input []rune) []rune {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		clean := deleet(r)
		if isNoise(clean) {
			continue
		}
		out = append(out, unicode.ToLower(clean))
	}
	return out
}

// deleet maps common leet speak substitutions back to letters.
func deleet(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3', '€':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	default:
		return r
	}
}

func isNoise(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
}
