package brand

import "strings"

// Info is the free-text brand metadata collected from the form or a chat
// caption. Fields are never validated beyond presence.
type Info struct {
	Name      string `json:"name"`
	Industry  string `json:"industry"`
	Audience  string `json:"audience"`
	Objective string `json:"objective"`
}

const (
	LabelName      = "Brand"
	LabelIndustry  = "Industry"
	LabelAudience  = "Target Audience"
	LabelObjective = "Campaign Objective"
)

// Field is one labelled brand value, kept in form order.
type Field struct {
	Label string
	Value string
}

func (i Info) Fields() []Field {
	return []Field{
		{Label: LabelName, Value: i.Name},
		{Label: LabelIndustry, Value: i.Industry},
		{Label: LabelAudience, Value: i.Audience},
		{Label: LabelObjective, Value: i.Objective},
	}
}

// Complete reports whether every field has a non-blank value.
func (i Info) Complete() bool {
	return len(i.Missing()) == 0
}

func (i Info) Empty() bool {
	return len(i.Missing()) == len(i.Fields())
}

// Missing lists the labels of blank fields in form order.
func (i Info) Missing() []string {
	var out []string
	for _, f := range i.Fields() {
		if strings.TrimSpace(f.Value) == "" {
			out = append(out, f.Label)
		}
	}
	return out
}

// Merge overlays the non-blank fields of other onto i.
func (i Info) Merge(other Info) Info {
	if v := strings.TrimSpace(other.Name); v != "" {
		i.Name = v
	}
	if v := strings.TrimSpace(other.Industry); v != "" {
		i.Industry = v
	}
	if v := strings.TrimSpace(other.Audience); v != "" {
		i.Audience = v
	}
	if v := strings.TrimSpace(other.Objective); v != "" {
		i.Objective = v
	}
	return i
}

var aliases = map[string]string{
	"brand":              LabelName,
	"brand name":         LabelName,
	"name":               LabelName,
	"industry":           LabelIndustry,
	"sector":             LabelIndustry,
	"audience":           LabelAudience,
	"target audience":    LabelAudience,
	"target":             LabelAudience,
	"objective":          LabelObjective,
	"campaign objective": LabelObjective,
	"campaign":           LabelObjective,
	"goal":               LabelObjective,
}

// ParseLines reads "key: value" lines such as a Telegram caption. Unknown
// keys and lines without a colon are ignored; later lines win.
func ParseLines(text string) Info {
	var info Info
	for _, line := range strings.Split(text, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		label, known := aliases[strings.ToLower(strings.TrimSpace(key))]
		if !known {
			continue
		}
		value = strings.TrimSpace(value)
		switch label {
		case LabelName:
			info.Name = value
		case LabelIndustry:
			info.Industry = value
		case LabelAudience:
			info.Audience = value
		case LabelObjective:
			info.Objective = value
		}
	}
	return info
}
