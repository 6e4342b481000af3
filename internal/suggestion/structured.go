package suggestion

import (
	"encoding/json"
	"errors"
	"strings"
)

var ErrNoJSON = errors.New("reply holds no JSON array")

// DecodeStructured reads a JSON array of suggestion objects. Code fences and
// prose around the array are tolerated. Records without text are dropped and
// missing styling keys keep their defaults.
func DecodeStructured(raw string) ([]Suggestion, error) {
	cleaned := cleanModelOutput(raw)

	var records []Suggestion
	if err := json.Unmarshal([]byte(cleaned), &records); err != nil {
		start := strings.Index(cleaned, "[")
		end := strings.LastIndex(cleaned, "]")
		if start < 0 || end <= start {
			return nil, ErrNoJSON
		}
		if err := json.Unmarshal([]byte(cleaned[start:end+1]), &records); err != nil {
			return nil, err
		}
	}

	out := make([]Suggestion, 0, len(records))
	for _, r := range records {
		text := strings.TrimSpace(r.Text)
		if text == "" {
			continue
		}
		styling := DefaultStyling()
		for k, v := range r.Styling {
			k = strings.TrimSpace(k)
			v = strings.TrimSpace(v)
			if k == "" || v == "" {
				continue
			}
			styling[k] = v
		}
		out = append(out, Suggestion{
			Text:      text,
			Position:  strings.TrimSpace(r.Position),
			Styling:   styling,
			Reasoning: strings.TrimSpace(r.Reasoning),
		})
	}
	return out, nil
}

func cleanModelOutput(text string) string {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```JSON")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	return strings.TrimSpace(cleaned)
}
