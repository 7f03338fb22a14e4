// Package moderation censors forbidden words in message bodies before they
// reach the router. Matching runs on a normalized view of the text (lowered,
// leet-speak folded, punctuation stripped) so spacing and symbol tricks do
// not defeat the word list, while replacement happens on the original runes.
package moderation

import (
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

type Moderator struct {
	matcher     *goahocorasick.Machine
	replacement rune
}

// mapping ties each normalized rune back to its index in the original text.
type mapping struct {
	runes   []rune
	origIdx []int
}

// NewModerator builds the Aho-Corasick automaton over the normalized word list.
func NewModerator(words []string, replacement rune) (*Moderator, error) {
	patterns := make([][]rune, len(words))
	for i, word := range words {
		patterns[i] = normalize(word).runes
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	return &Moderator{matcher: m, replacement: replacement}, nil
}

// Censor replaces every character of each matched span with the replacement
// rune, preserving the original length and spacing.
func (m *Moderator) Censor(original string) string {
	mapped := normalize(original)
	if len(mapped.runes) == 0 {
		return original
	}

	spans := m.matcher.MultiPatternSearch(mapped.runes, false)
	if len(spans) == 0 {
		return original
	}

	origRunes := []rune(original)
	for _, span := range spans {
		start := span.Pos
		end := start + len(span.Word)
		if start < 0 || end > len(mapped.origIdx) {
			continue
		}
		for i := mapped.origIdx[start]; i <= mapped.origIdx[end-1]; i++ {
			origRunes[i] = m.replacement
		}
	}
	return string(origRunes)
}

func normalize(input string) mapping {
	origRunes := []rune(input)
	out := mapping{
		runes:   make([]rune, 0, len(origRunes)),
		origIdx: make([]int, 0, len(origRunes)),
	}
	for i, r := range origRunes {
		clean := foldLeet(r)
		if unicode.IsPunct(clean) || unicode.IsSpace(clean) || unicode.IsSymbol(clean) {
			continue
		}
		out.runes = append(out.runes, unicode.ToLower(clean))
		out.origIdx = append(out.origIdx, i)
	}
	return out
}

// foldLeet maps common leet-speak substitutions back to plain letters.
func foldLeet(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	case '7':
		return 't'
	default:
		return r
	}
}
