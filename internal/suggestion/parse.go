package suggestion

import (
	"errors"
	"fmt"
	"strings"
)

const minBlockLines = 3

// ErrMalformedStyle is returned when a style line holds a part that is not
// exactly one key=value pair.
var ErrMalformedStyle = errors.New("malformed style pair")

// BlockError reports the first block of a reply that could not be read.
type BlockError struct {
	Block int
	Err   error
}

func (e *BlockError) Error() string {
	return fmt.Sprintf("block %d: %v", e.Block, e.Err)
}

func (e *BlockError) Unwrap() error {
	return e.Err
}

// Parse reads the model's free-text reply into suggestions. Blocks are
// separated by a blank line; blocks with fewer than three lines are skipped.
// The first malformed block aborts the whole reply.
func Parse(raw string) ([]Suggestion, error) {
	var out []Suggestion
	for i, block := range splitBlocks(raw) {
		s, ok, err := parseBlock(block)
		if err != nil {
			return nil, &BlockError{Block: i, Err: err}
		}
		if ok {
			out = append(out, s)
		}
	}
	return out, nil
}

// parseEach reads every block independently; malformed blocks are reported
// through the returned errors and left out of the result.
func parseEach(raw string) ([]Suggestion, []error) {
	var (
		out  []Suggestion
		errs []error
	)
	for i, block := range splitBlocks(raw) {
		s, ok, err := parseBlock(block)
		if err != nil {
			errs = append(errs, &BlockError{Block: i, Err: err})
			continue
		}
		if ok {
			out = append(out, s)
		}
	}
	return out, errs
}

func splitBlocks(raw string) []string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	return strings.Split(raw, "\n\n")
}

func parseBlock(block string) (Suggestion, bool, error) {
	if strings.TrimSpace(block) == "" {
		return Suggestion{}, false, nil
	}

	lines := strings.Split(block, "\n")
	if len(lines) < minBlockLines {
		return Suggestion{}, false, nil
	}

	s := Suggestion{
		Text:      strings.TrimSpace(strings.ReplaceAll(lines[0], "Text: ", "")),
		Position:  strings.TrimSpace(strings.ReplaceAll(lines[1], "Position: ", "")),
		Styling:   DefaultStyling(),
		Reasoning: strings.TrimSpace(lines[len(lines)-1]),
	}

	for _, line := range lines {
		if !strings.Contains(strings.ToLower(line), "style:") {
			continue
		}
		if err := applyStyleLine(s.Styling, line); err != nil {
			return Suggestion{}, false, err
		}
	}

	return s, true, nil
}

// applyStyleLine reads the segment between the first and second colon as a
// comma separated list of key=value pairs.
func applyStyleLine(styling map[string]string, line string) error {
	segments := strings.Split(line, ":")
	body := strings.TrimSpace(segments[1])

	for _, part := range strings.Split(body, ",") {
		kv := strings.Split(strings.TrimSpace(part), "=")
		if len(kv) != 2 {
			return fmt.Errorf("%w: %q", ErrMalformedStyle, strings.TrimSpace(part))
		}
		styling[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
	}
	return nil
}
