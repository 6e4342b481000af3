package suggestion

import (
	"fmt"
	"sort"
	"unicode/utf8"
)

// Suggestion is one text-placement proposal read from a block of the
// model's reply. It has no identity beyond its position in the list.
type Suggestion struct {
	Text      string            `json:"text"`
	Position  string            `json:"position"`
	Styling   map[string]string `json:"styling"`
	Reasoning string            `json:"reasoning"`
}

var defaultStyleKeys = []string{"size", "color", "weight"}

const headingChars = 30

// DefaultStyling returns a fresh map seeded with the values every
// suggestion starts from.
func DefaultStyling() map[string]string {
	return map[string]string{
		"size":   "default",
		"color":  "default",
		"weight": "normal",
	}
}

type StyleAttr struct {
	Key   string
	Value string
}

// StyleAttrs lists the styling entries for display: the default keys first,
// then any extra keys in lexical order.
func (s Suggestion) StyleAttrs() []StyleAttr {
	out := make([]StyleAttr, 0, len(s.Styling))
	seen := make(map[string]struct{}, len(defaultStyleKeys))
	for _, key := range defaultStyleKeys {
		if v, ok := s.Styling[key]; ok {
			out = append(out, StyleAttr{Key: key, Value: v})
		}
		seen[key] = struct{}{}
	}

	extra := make([]string, 0, len(s.Styling))
	for key := range s.Styling {
		if _, ok := seen[key]; !ok {
			extra = append(extra, key)
		}
	}
	sort.Strings(extra)
	for _, key := range extra {
		out = append(out, StyleAttr{Key: key, Value: s.Styling[key]})
	}
	return out
}

// Heading titles the i-th suggestion (1-based) in a list. The text is cut to
// its first 30 characters and always followed by "...".
func (s Suggestion) Heading(i int) string {
	text := s.Text
	if utf8.RuneCountInString(text) > headingChars {
		text = string([]rune(text)[:headingChars])
	}
	return fmt.Sprintf("Suggestion %d: %s...", i, text)
}
