package gemini

import (
	"errors"

	"google.golang.org/genai"
)

// ImageInput is one inline image part with its declared MIME type.
type ImageInput struct {
	Data     []byte
	MimeType string
}

var (
	ErrUnauthorized  = errors.New("gemini: API key rejected")
	ErrQuota         = errors.New("gemini: quota or rate limit exceeded")
	ErrEmptyResponse = errors.New("gemini: empty response")
)

// suggestionSchema mirrors the JSON form of suggestion.Suggestion.
func suggestionSchema() *genai.Schema {
	str := func(desc string) *genai.Schema {
		return &genai.Schema{Type: genai.TypeString, Description: desc}
	}

	return &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"text":     str("the suggested copy"),
				"position": str("where to place the text on the banner"),
				"styling": {
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"size":   str("font size, e.g. large"),
						"color":  str("text color"),
						"weight": str("font weight"),
					},
					PropertyOrdering: []string{"size", "color", "weight"},
				},
				"reasoning": str("one sentence explaining the placement"),
			},
			PropertyOrdering: []string{"text", "position", "styling", "reasoning"},
			Required:         []string{"text", "position", "reasoning"},
		},
	}
}
