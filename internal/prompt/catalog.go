package prompt

import "strings"

// TextKind names a banner text element the model can write variants for.
// The value is interpolated into the variants prompt as-is.
type TextKind string

const (
	KindHeader TextKind = "header"
	KindMain   TextKind = "main promotional"
	KindCTA    TextKind = "call-to-action"
)

type NamedOption struct {
	Key  string
	Kind TextKind
	Name string
}

func TextKinds() []NamedOption {
	return []NamedOption{
		{Key: "header", Kind: KindHeader, Name: "Header Options"},
		{Key: "main", Kind: KindMain, Name: "Main Text Options"},
		{Key: "cta", Kind: KindCTA, Name: "CTA Options"},
	}
}

// ParseTextKind accepts the short keys used in routes and commands as well as
// the full kind names.
func ParseTextKind(value string) (TextKind, bool) {
	value = strings.ToLower(strings.TrimSpace(value))
	for _, opt := range TextKinds() {
		if value == opt.Key || value == string(opt.Kind) {
			return opt.Kind, true
		}
	}
	switch value {
	case "headline", "title":
		return KindHeader, true
	case "body", "promo":
		return KindMain, true
	case "call to action", "button":
		return KindCTA, true
	}
	return "", false
}

// Key returns the short route key for k.
func (k TextKind) Key() string {
	for _, opt := range TextKinds() {
		if opt.Kind == k {
			return opt.Key
		}
	}
	return string(k)
}

// Title is the display heading for a block of variants.
func (k TextKind) Title() string {
	for _, opt := range TextKinds() {
		if opt.Kind == k {
			return opt.Name
		}
	}
	return string(k)
}
