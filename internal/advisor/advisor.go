package advisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"banner-text-advisor/internal/brand"
	"banner-text-advisor/internal/gemini"
	"banner-text-advisor/internal/imaging"
	"banner-text-advisor/internal/logging"
	"banner-text-advisor/internal/prompt"
	"banner-text-advisor/internal/suggestion"
)

// Model is the part of the Gemini adapter the advisor uses.
type Model interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
	GenerateWithImages(ctx context.Context, prompt string, images ...gemini.ImageInput) (string, error)
	GenerateJSON(ctx context.Context, prompt string, images ...gemini.ImageInput) (string, error)
}

type Options struct {
	Model       Model
	Interpreter *suggestion.Interpreter
	// Structured asks the model for a JSON array instead of text blocks.
	Structured bool
	Logger     *slog.Logger
}

// Analysis is the outcome of one banner analysis. Raw keeps the model reply
// so a caller can show it when no suggestion could be read.
type Analysis struct {
	Suggestions []suggestion.Suggestion `json:"suggestions"`
	Raw         string                  `json:"raw"`
}

// Advisor ties the prompt builder, the model and the interpreter together.
// One advisor is bound to one API key.
type Advisor struct {
	model       Model
	interpreter *suggestion.Interpreter
	structured  bool
	logger      *slog.Logger
}

func New(opts Options) (*Advisor, error) {
	if opts.Model == nil {
		return nil, errors.New("advisor: model is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	interpreter := opts.Interpreter
	if interpreter == nil {
		interpreter = suggestion.NewInterpreter(suggestion.InterpreterOptions{Logger: logger})
	}

	return &Advisor{
		model:       opts.Model,
		interpreter: interpreter,
		structured:  opts.Structured,
		logger:      logger,
	}, nil
}

// AnalyzeBanner asks for text placement suggestions for img. Model failures
// are returned; a reply that cannot be read yields an empty list.
func (a *Advisor) AnalyzeBanner(ctx context.Context, img imaging.Image, customPrompt string, info brand.Info) (Analysis, error) {
	if len(img.Data) == 0 {
		return Analysis{}, errors.New("banner image is empty")
	}

	text := prompt.Analysis(customPrompt, info)
	input := gemini.ImageInput{Data: img.Data, MimeType: img.MimeType}

	start := time.Now()
	var (
		raw string
		err error
	)
	if a.structured {
		raw, err = a.model.GenerateJSON(ctx, prompt.Structured(text), input)
	} else {
		raw, err = a.model.GenerateWithImages(ctx, text, input)
	}
	if err != nil {
		a.logger.Error("banner analysis failed", "err", err)
		return Analysis{}, fmt.Errorf("analyze banner: %w", err)
	}

	var out []suggestion.Suggestion
	if a.structured {
		out = a.interpreter.InterpretStructured(raw)
	} else {
		out = a.interpreter.Interpret(raw)
	}

	a.logger.Info("banner analyzed",
		"suggestions", len(out),
		"custom_prompt", customPrompt != "",
		"structured", a.structured,
		"dur_ms", time.Since(start).Milliseconds(),
	)
	return Analysis{Suggestions: out, Raw: raw}, nil
}

// PlacementReport returns the model's free-text placement advice for a
// banner and brand.
func (a *Advisor) PlacementReport(ctx context.Context, img imaging.Image, info brand.Info) (string, error) {
	if len(img.Data) == 0 {
		return "", errors.New("banner image is empty")
	}

	report, err := a.model.GenerateWithImages(ctx, prompt.Placement(info), gemini.ImageInput{Data: img.Data, MimeType: img.MimeType})
	if err != nil {
		a.logger.Error("placement report failed", "brand", info.Name, "err", err)
		return "", fmt.Errorf("placement report: %w", err)
	}
	return report, nil
}

// TextVariants asks for copy options of one kind. No image is sent.
func (a *Advisor) TextVariants(ctx context.Context, kind prompt.TextKind, info brand.Info) (string, error) {
	text, err := a.model.GenerateText(ctx, prompt.Variants(kind, info))
	if err != nil {
		a.logger.Error("text variants failed", "kind", kind.Key(), "err", err)
		return "", fmt.Errorf("generate %s text: %w", kind, err)
	}
	return text, nil
}
