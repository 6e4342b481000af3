package handlers

import (
	"strings"

	"banner-text-advisor/internal/prompt"
)

// detectTextKind maps free text like "give me a catchy headline" to the text
// element it asks for. CTA keywords are checked first since "button text"
// would otherwise match the main-text list.
func detectTextKind(text string) (prompt.TextKind, bool) {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return "", false
	}

	groups := []struct {
		kind     prompt.TextKind
		keywords []string
	}{
		{prompt.KindCTA, []string{"cta", "call to action", "call-to-action", "button"}},
		{prompt.KindHeader, []string{"header", "headline", "title"}},
		{prompt.KindMain, []string{"main text", "main promotional", "promotional text", "body text", "body copy"}},
	}

	for _, g := range groups {
		for _, kw := range g.keywords {
			if containsWord(t, kw) {
				return g.kind, true
			}
		}
	}
	return "", false
}

// containsWord reports whether kw occurs in t without letters glued to
// either side, so "cta" does not match "nectar".
func containsWord(t, kw string) bool {
	for from := 0; ; {
		i := strings.Index(t[from:], kw)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(kw)
		if !isLetter(t, start-1) && !isLetter(t, end) {
			return true
		}
		from = start + 1
	}
}

func isLetter(t string, i int) bool {
	if i < 0 || i >= len(t) {
		return false
	}
	c := t[i]
	return c >= 'a' && c <= 'z'
}
