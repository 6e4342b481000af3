package prompt

import (
	"fmt"
	"strings"

	"banner-text-advisor/internal/brand"
)

// ReplyFormat describes the block layout the suggestion interpreter reads.
// It is appended to every banner-analysis prompt.
const ReplyFormat = `Reply with one block per suggestion and separate blocks with a single blank line.
Each block uses exactly this layout:
Text: <the suggested copy>
Position: <where to place it on the banner>
Style: size=<size>, color=<color>, weight=<font weight>
<one sentence explaining why this placement works>
Do not add headings, numbering, or any text outside the blocks.`

var defaultAnalysis = []string{
	"Best locations for headlines, subheadings, and body text",
	"Recommended text styling (size, color, font weight)",
	"Areas with good contrast for text",
	"Balanced composition",
}

var placementOutputs = []string{
	"Header text (suggest text and placement - top left/center/right)",
	"Main promotional text (suggest text and placement)",
	"Footer/CTA text (suggest text and placement)",
	"Color suggestions that complement the image",
}

var placementConsiderations = []string{
	"Image composition and focal points",
	"Color balance",
	"Visual hierarchy",
	"White space availability",
}

// BrandBlock renders the four brand fields in form order. Values are
// interpolated verbatim, so unset fields leave an empty value after the label.
func BrandBlock(info brand.Info) string {
	fields := info.Fields()
	lines := make([]string, 0, len(fields))
	for _, f := range fields {
		lines = append(lines, f.Label+": "+f.Value)
	}
	return strings.Join(lines, "\n")
}

// Placement is the full-report prompt sent together with the banner image.
func Placement(info brand.Info) string {
	var b strings.Builder
	b.Grow(1024)

	b.WriteString("Analyze this banner image and suggest text placement with the following details:\n")
	writeNumbered(&b, placementOutputs)
	b.WriteString("\nBrand Information:\n")
	b.WriteString(BrandBlock(info))
	b.WriteString("\n\nProvide suggestions in a structured format considering:\n")
	writeBullets(&b, placementConsiderations)

	return strings.TrimSpace(b.String())
}

// Analysis builds the banner-analysis prompt. A non-blank custom prompt
// replaces the default instructions; the reply format and any brand context
// are always appended.
func Analysis(custom string, info brand.Info) string {
	var b strings.Builder
	b.Grow(1024)

	if custom = strings.TrimSpace(custom); custom != "" {
		b.WriteString(custom)
		b.WriteString("\n")
	} else {
		b.WriteString("Analyze this banner image and suggest optimal text placements. Consider:\n")
		writeNumbered(&b, defaultAnalysis)
		b.WriteString("Provide specific placement suggestions with reasoning.\n")
	}

	if !info.Empty() {
		b.WriteString("\nBrand Information:\n")
		b.WriteString(BrandBlock(info))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(ReplyFormat)

	return strings.TrimSpace(b.String())
}

// Variants asks for copy options of one text element, without an image.
func Variants(kind TextKind, info brand.Info) string {
	return fmt.Sprintf("Generate compelling %s text for a banner advertisement for:\n%s", kind, BrandBlock(info))
}

// Structured swaps the free-text reply format for a JSON contract. The
// response schema itself is declared on the model request.
func Structured(base string) string {
	base = strings.TrimSpace(strings.Replace(base, ReplyFormat, "", 1))

	var b strings.Builder
	b.WriteString(base)
	b.WriteString("\n\nReturn a JSON array. Each element is an object with the fields:\n")
	writeBullets(&b, []string{
		`"text": the suggested copy`,
		`"position": where to place it on the banner`,
		`"styling": an object with "size", "color" and "weight"`,
		`"reasoning": one sentence explaining the placement`,
	})
	b.WriteString("Return JSON only.")
	return b.String()
}

func writeNumbered(b *strings.Builder, lines []string) {
	for i, line := range lines {
		fmt.Fprintf(b, "%d. %s\n", i+1, line)
	}
}

func writeBullets(b *strings.Builder, lines []string) {
	for _, line := range lines {
		b.WriteString("- " + line + "\n")
	}
}
