package suggestion

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSingleBlockDefaults(t *testing.T) {
	raw := "Text: Shop Now\nPosition: bottom right\nGreat contrast here"

	got, err := Parse(raw)
	require.NoError(t, err)

	want := []Suggestion{{
		Text:      "Shop Now",
		Position:  "bottom right",
		Styling:   map[string]string{"size": "default", "color": "default", "weight": "normal"},
		Reasoning: "Great contrast here",
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Parse() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseStyleLineOverridesDefaults(t *testing.T) {
	raw := "Text: Shop Now\nPosition: bottom right\nStyle: size=large, color=white\nGreat contrast here"

	got, err := Parse(raw)
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, map[string]string{"size": "large", "color": "white", "weight": "normal"}, got[0].Styling)
	assert.Equal(t, "Great contrast here", got[0].Reasoning)
}

func TestParseStyleMatchIsCaseInsensitiveAndAddsKeys(t *testing.T) {
	raw := "Text: Big Sale\nPosition: top center\n  STYLE: font = Futura ,weight=bold\nClean sky area"

	got, err := Parse(raw)
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, map[string]string{
		"size":   "default",
		"color":  "default",
		"weight": "bold",
		"font":   "Futura",
	}, got[0].Styling)
}

func TestParseOnlyReadsFirstColonSegment(t *testing.T) {
	raw := "Text: Hello\nPosition: left\nStyle: color=red: ignored=yes\nWhy"

	got, err := Parse(raw)
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, "red", got[0].Styling["color"])
	assert.NotContains(t, got[0].Styling, "ignored")
}

func TestParseTwoBlocksInOrder(t *testing.T) {
	raw := "Text: First\nPosition: top\nReason one\n\nText: Second\nPosition: bottom\nReason two"

	got, err := Parse(raw)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "First", got[0].Text)
	assert.Equal(t, "Second", got[1].Text)
	assert.Equal(t, "bottom", got[1].Position)
}

func TestParseSkipsShortAndEmptyBlocks(t *testing.T) {
	cases := map[string]string{
		"empty":       "",
		"whitespace":  "   \n\n  \n",
		"two lines":   "Text: Hi\nPosition: top",
		"mixed short": "Only one line\n\nText: A\nPosition: B\n\n\n",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := Parse(raw)
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestParseKeepsPrefixlessLines(t *testing.T) {
	raw := "Summer Collection\ncentered over the sky\nthe sky is calm"

	got, err := Parse(raw)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Summer Collection", got[0].Text)
	assert.Equal(t, "centered over the sky", got[0].Position)
}

func TestParseNormalizesCRLF(t *testing.T) {
	raw := "Text: A\r\nPosition: B\r\nC\r\n\r\nText: D\r\nPosition: E\r\nF"

	got, err := Parse(raw)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "C", got[0].Reasoning)
}

func TestParseMalformedStyleFailsWholeReply(t *testing.T) {
	raw := "Text: Good\nPosition: top\nStyle: size=large\nFine\n\n" +
		"Text: Bad\nPosition: bottom\nStyle: bold\nBroken"

	got, err := Parse(raw)
	require.Error(t, err)
	assert.Nil(t, got)
	assert.True(t, errors.Is(err, ErrMalformedStyle))

	var blockErr *BlockError
	require.True(t, errors.As(err, &blockErr))
	assert.Equal(t, 1, blockErr.Block)
}

func TestParseTrailingCommaIsMalformed(t *testing.T) {
	_, err := Parse("Text: A\nPosition: B\nStyle: size=large,\nC")
	assert.ErrorIs(t, err, ErrMalformedStyle)
}

func TestInterpreterAllOrNothing(t *testing.T) {
	var logs bytes.Buffer
	in := NewInterpreter(InterpreterOptions{
		Logger: slog.New(slog.NewTextHandler(&logs, nil)),
	})

	raw := "Text: Good\nPosition: top\nFine\n\nText: Bad\nPosition: bottom\nStyle: size\nBroken"
	got := in.Interpret(raw)

	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Contains(t, logs.String(), "error parsing suggestions")
	assert.Equal(t, PolicyAllOrNothing, in.Policy())
}

func TestInterpreterPerBlock(t *testing.T) {
	var logs bytes.Buffer
	in := NewInterpreter(InterpreterOptions{
		Policy: PolicyPerBlock,
		Logger: slog.New(slog.NewTextHandler(&logs, nil)),
	})

	raw := "Text: Good\nPosition: top\nFine\n\nText: Bad\nPosition: bottom\nStyle: size\nBroken\n\nText: Also good\nPosition: left\nOk"
	got := in.Interpret(raw)

	require.Len(t, got, 2)
	assert.Equal(t, "Good", got[0].Text)
	assert.Equal(t, "Also good", got[1].Text)
	assert.Contains(t, logs.String(), "skipping malformed suggestion block")
}

func TestParsePolicy(t *testing.T) {
	assert.Equal(t, PolicyPerBlock, ParsePolicy("per_block"))
	assert.Equal(t, PolicyAllOrNothing, ParsePolicy("all_or_nothing"))
	assert.Equal(t, PolicyAllOrNothing, ParsePolicy(""))
	assert.Equal(t, "per_block", PolicyPerBlock.String())
}

func TestStyleAttrsOrder(t *testing.T) {
	s := Suggestion{Styling: map[string]string{
		"weight": "bold", "size": "large", "color": "white", "font": "Futura", "align": "left",
	}}

	assert.Equal(t, []StyleAttr{
		{Key: "size", Value: "large"},
		{Key: "color", Value: "white"},
		{Key: "weight", Value: "bold"},
		{Key: "align", Value: "left"},
		{Key: "font", Value: "Futura"},
	}, s.StyleAttrs())
}

func TestHeading(t *testing.T) {
	s := Suggestion{Text: "Summer savings on every single product in store"}

	assert.Equal(t, "Suggestion 1: Summer savings on every single...", s.Heading(1))
	assert.Equal(t, "Suggestion 2: Hi...", Suggestion{Text: "Hi"}.Heading(2))
	assert.Equal(t, "Suggestion 3: "+strings.Repeat("é", 30)+"...", Suggestion{Text: strings.Repeat("é", 40)}.Heading(3))
}
