package cleaner

import (
	"fmt"
	"strings"
)

// Cleaner turns raw HTML into the line-oriented page brief.
// It holds no per-request state and is safe for concurrent use.
type Cleaner struct {
	renderJS bool
}

// NewCleaner creates a Cleaner. renderJS records whether the fetch service
// was asked to render JavaScript; it is reported in the identity block.
func NewCleaner(renderJS bool) *Cleaner {
	return &Cleaner{renderJS: renderJS}
}

// Summarize parses rawHTML and builds the brief for sourceURL.
//
// Sections, in order: identity block, headings overview, content preview,
// links, images. Sections are separated by an empty line. Every
// page-supplied value is markup-escaped.
func (c *Cleaner) Summarize(rawHTML, sourceURL string) ([]string, error) {
	doc, err := ParseDocument(rawHTML)
	if err != nil {
		return nil, err
	}

	meta := ExtractMetadata(doc)

	jsRendering := "Disabled"
	if c.renderJS {
		jsRendering = "Enabled via service"
	}

	lines := []string{
		"*URL*: " + EscapeMarkup(sourceURL),
		"*Title*: " + EscapeMarkup(meta.Title),
		"*Canonical*: " + EscapeMarkup(meta.Canonical),
		"*Language*: " + EscapeMarkup(meta.Language),
		"*Meta Description*: " + EscapeMarkup(meta.Description),
		"*Meta Keywords*: " + EscapeMarkup(meta.Keywords),
		"*Open Graph Title*: " + EscapeMarkup(meta.OGTitle),
		"*Open Graph Description*: " + EscapeMarkup(meta.OGDescription),
		"*Robots*: " + EscapeMarkup(meta.Robots),
		"*Last Updated*: " + EscapeMarkup(meta.LastUpdated),
		fmt.Sprintf("*Word Count (approx)*: %d", meta.WordCount),
		fmt.Sprintf("*Structured Data Blocks*: %d", meta.StructuredData),
		"*JavaScript Rendering*: " + jsRendering,
		"",
		"*Headings Overview*:",
	}
	lines = append(lines, HeadingLines(ExtractHeadings(doc))...)
	lines = append(lines, "", "*Content Preview*:")
	lines = append(lines, ParagraphLines(ExtractParagraphs(doc, maxParagraphs))...)
	lines = append(lines, "", "*Links*:")
	lines = append(lines, LinkLines(ExtractLinks(doc, sourceURL))...)
	lines = append(lines, "", "*Images*:")
	lines = append(lines, ImageLines(ExtractImages(doc))...)

	return lines, nil
}

// HeadingLines renders one line per heading level, e.g.
// "- H2 (5): A | B | C (+2 more)".
func HeadingLines(levels []HeadingLevel) []string {
	out := make([]string, 0, len(levels))
	for _, lvl := range levels {
		shown := lvl.Texts
		if len(shown) > maxHeadingPreview {
			shown = shown[:maxHeadingPreview]
		}
		preview := make([]string, len(shown))
		for i, t := range shown {
			preview[i] = EscapeMarkup(Truncate(t, maxHeadingLen))
		}

		line := fmt.Sprintf("- H%d (%d): ", lvl.Level, len(lvl.Texts))
		if len(preview) == 0 {
			line += NoneDiscovered
		} else {
			line += strings.Join(preview, " | ")
		}
		if extra := len(lvl.Texts) - maxHeadingPreview; extra > 0 {
			line += fmt.Sprintf(" (+%d more)", extra)
		}
		out = append(out, line)
	}
	return out
}

// ParagraphLines numbers the preview paragraphs from 1.
func ParagraphLines(paragraphs []string) []string {
	if len(paragraphs) == 0 {
		return []string{NoParagraphs}
	}
	out := make([]string, len(paragraphs))
	for i, p := range paragraphs {
		out[i] = fmt.Sprintf("- Para %d: %s", i+1, EscapeMarkup(Truncate(p, maxParagraphLen)))
	}
	return out
}

// LinkLines renders the link totals followed by the sample lines.
func LinkLines(stats LinkStats) []string {
	out := []string{fmt.Sprintf("- Total links: %d (internal %d / external %d)",
		stats.Total, stats.Internal, stats.External)}
	if len(stats.Samples) == 0 {
		return append(out, NoCrawlableLinks)
	}
	out = append(out, "- Sample links:")
	return append(out, stats.Samples...)
}

// ImageLines renders the image counts.
func ImageLines(stats ImageStats) []string {
	return []string{
		fmt.Sprintf("- Total images: %d", stats.Total),
		fmt.Sprintf("- With alt text: %d", stats.WithAlt),
		fmt.Sprintf("- Missing alt text: %d", stats.WithoutAlt()),
	}
}
