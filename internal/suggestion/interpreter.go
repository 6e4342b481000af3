package suggestion

import (
	"log/slog"

	"banner-text-advisor/internal/logging"
)

// Policy decides what a malformed block costs.
type Policy int

const (
	// PolicyAllOrNothing drops every suggestion of a reply when any block is
	// malformed. It is the historical behaviour and the default.
	PolicyAllOrNothing Policy = iota
	// PolicyPerBlock drops only the malformed blocks.
	PolicyPerBlock
)

func ParsePolicy(value string) Policy {
	switch value {
	case "per_block", "per-block", "perblock":
		return PolicyPerBlock
	default:
		return PolicyAllOrNothing
	}
}

func (p Policy) String() string {
	if p == PolicyPerBlock {
		return "per_block"
	}
	return "all_or_nothing"
}

type InterpreterOptions struct {
	Policy Policy
	Logger *slog.Logger
}

// Interpreter turns raw replies into suggestions and never fails: parse
// problems are logged and degrade the result according to the policy.
type Interpreter struct {
	policy Policy
	logger *slog.Logger
}

func NewInterpreter(opts InterpreterOptions) *Interpreter {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Interpreter{policy: opts.Policy, logger: logger}
}

func (in *Interpreter) Policy() Policy {
	return in.policy
}

func (in *Interpreter) Interpret(raw string) []Suggestion {
	if in.policy == PolicyPerBlock {
		out, errs := parseEach(raw)
		for _, err := range errs {
			in.logger.Warn("skipping malformed suggestion block", "err", err)
		}
		return out
	}

	out, err := Parse(raw)
	if err != nil {
		in.logger.Error("error parsing suggestions", "err", err)
		return []Suggestion{}
	}
	return out
}

// InterpretStructured decodes a JSON reply. A reply that is not valid JSON
// yields an empty list.
func (in *Interpreter) InterpretStructured(raw string) []Suggestion {
	out, err := DecodeStructured(raw)
	if err != nil {
		in.logger.Error("error decoding structured suggestions", "err", err)
		return []Suggestion{}
	}
	return out
}
