package cleaner

import (
	"fmt"
	"strings"
	"testing"
)

const exampleHTML = `<!doctype html>
<html lang="en">
<head>
  <title>Example Domain</title>
  <meta name="description" content="An   example
    page">
</head>
<body>
  <h1>Example Domain</h1>
  <p>This domain is for use in illustrative examples in documents. You may use this domain in literature without prior coordination.</p>
  <a href="/about">About</a>
  <a href="https://www.iana.org/domains/example">More information...</a>
</body>
</html>`

func hasLine(lines []string, want string) bool {
	for _, l := range lines {
		if l == want {
			return true
		}
	}
	return false
}

func TestSummarize_ExampleDomain(t *testing.T) {
	lines, err := NewCleaner(false).Summarize(exampleHTML, "https://example.com/")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}

	for _, want := range []string{
		"*URL*: https://example.com/",
		"*Title*: Example Domain",
		"*Language*: en",
		"*Meta Description*: An example page",
		"*Meta Keywords*: No meta keywords found.",
		"*Canonical*: Not declared",
		"*JavaScript Rendering*: Disabled",
		"- H1 (1): Example Domain",
		"- H2 (0): None discovered",
		"- H3 (0): None discovered",
		"- Total links: 2 (internal 1 / external 1)",
		"- Sample links:",
		"  - About → https://example.com/about",
		"  - More information... → https://www.iana.org/domains/example",
		"- Total images: 0",
		"- With alt text: 0",
		"- Missing alt text: 0",
	} {
		if !hasLine(lines, want) {
			t.Errorf("missing line %q in:\n%s", want, strings.Join(lines, "\n"))
		}
	}

	if !strings.HasPrefix(findPrefix(lines, "- Para 1: "), "- Para 1: This domain is for use") {
		t.Errorf("expected paragraph preview, got:\n%s", strings.Join(lines, "\n"))
	}
}

func findPrefix(lines []string, prefix string) string {
	for _, l := range lines {
		if strings.HasPrefix(l, prefix) {
			return l
		}
	}
	return ""
}

func TestSummarize_SectionOrder(t *testing.T) {
	lines, err := NewCleaner(false).Summarize(exampleHTML, "https://example.com/")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}

	order := []string{"*URL*: ", "*Title*: ", "*Canonical*: ", "*Language*: ",
		"*Meta Description*: ", "*Meta Keywords*: ", "*Open Graph Title*: ",
		"*Open Graph Description*: ", "*Robots*: ", "*Last Updated*: ",
		"*Word Count (approx)*: ", "*Structured Data Blocks*: ",
		"*JavaScript Rendering*: ", "*Headings Overview*:", "*Content Preview*:",
		"*Links*:", "*Images*:"}
	pos := 0
	for _, prefix := range order {
		found := false
		for ; pos < len(lines); pos++ {
			if strings.HasPrefix(lines[pos], prefix) {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("section %q missing or out of order", prefix)
		}
	}
}

func TestSummarize_Defaults(t *testing.T) {
	lines, err := NewCleaner(false).Summarize("", "https://example.com")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	for _, want := range []string{
		"*Title*: No title found",
		"*Canonical*: Not declared",
		"*Language*: Not specified",
		"*Meta Description*: No meta description found.",
		"*Meta Keywords*: No meta keywords found.",
		"*Open Graph Title*: Not provided",
		"*Open Graph Description*: Not provided",
		"*Robots*: Not declared",
		"*Last Updated*: Not found",
		"*Word Count (approx)*: 0",
		"*Structured Data Blocks*: 0",
		"- No substantial paragraphs detected.",
		"- Total links: 0 (internal 0 / external 0)",
		"- No crawlable links discovered.",
	} {
		if !hasLine(lines, want) {
			t.Errorf("missing line %q in:\n%s", want, strings.Join(lines, "\n"))
		}
	}
}

func TestSummarize_Deterministic(t *testing.T) {
	c := NewCleaner(true)
	a, err := c.Summarize(exampleHTML, "https://example.com/")
	if err != nil {
		t.Fatal(err)
	}
	b, err := c.Summarize(exampleHTML, "https://example.com/")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(a, "\n") != strings.Join(b, "\n") {
		t.Error("same document produced different briefs")
	}
	if !hasLine(a, "*JavaScript Rendering*: Enabled via service") {
		t.Error("expected JS rendering to be reported as enabled")
	}
}

func TestSummarize_EscapesPageText(t *testing.T) {
	page := `<html><head><title>my_site *hot* [deal]</title>
	<meta property="og:title" content="under_score"></head>
	<body><h2>a_b</h2></body></html>`
	lines, err := NewCleaner(false).Summarize(page, "https://example.com/a_b")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		`*URL*: https://example.com/a\_b`,
		`*Title*: my\_site \*hot\* \[deal\]`,
		`*Open Graph Title*: under\_score`,
		`- H2 (1): a\_b`,
	} {
		if !hasLine(lines, want) {
			t.Errorf("missing line %q in:\n%s", want, strings.Join(lines, "\n"))
		}
	}
}

func TestExtractMetadata(t *testing.T) {
	page := `<html lang="de"><head>
	<title>  Spaced
	  Title </title>
	<link rel="canonical" href="https://example.com/canonical">
	<meta name="keywords" content="a, b,   c">
	<meta name="robots" content="noindex, nofollow">
	<meta property="og:description" content="OG desc">
	<meta property="og:updated_time" content="2023-01-01">
	<meta property="article:modified_time" content="2024-05-06T07:08:09Z">
	<script type="application/ld+json">{"@type":"Thing"}</script>
	<script type="application/ld+json">{"@type":"Other"}</script>
	<script>var x = 1;</script>
	</head><body>one two  three</body></html>`

	doc, err := ParseDocument(page)
	if err != nil {
		t.Fatal(err)
	}
	meta := ExtractMetadata(doc)

	if meta.Title != "Spaced Title" {
		t.Errorf("Title = %q", meta.Title)
	}
	if meta.Canonical != "https://example.com/canonical" {
		t.Errorf("Canonical = %q", meta.Canonical)
	}
	if meta.Language != "de" {
		t.Errorf("Language = %q", meta.Language)
	}
	if meta.Keywords != "a, b, c" {
		t.Errorf("Keywords = %q", meta.Keywords)
	}
	if meta.Robots != "noindex, nofollow" {
		t.Errorf("Robots = %q", meta.Robots)
	}
	if meta.OGTitle != NotProvided {
		t.Errorf("OGTitle = %q", meta.OGTitle)
	}
	if meta.OGDescription != "OG desc" {
		t.Errorf("OGDescription = %q", meta.OGDescription)
	}
	if meta.LastUpdated != "2024-05-06T07:08:09Z" {
		t.Errorf("LastUpdated = %q, want article:modified_time to win", meta.LastUpdated)
	}
	if meta.StructuredData != 2 {
		t.Errorf("StructuredData = %d, want 2", meta.StructuredData)
	}
	if meta.WordCount != 3 {
		t.Errorf("WordCount = %d, want 3", meta.WordCount)
	}
}

func TestHeadingLines_CountAndPreview(t *testing.T) {
	for n := 0; n <= 7; n++ {
		var b strings.Builder
		b.WriteString("<html><body>")
		for i := 1; i <= n; i++ {
			fmt.Fprintf(&b, "<h2>Heading %d</h2>", i)
		}
		b.WriteString("</body></html>")

		doc, err := ParseDocument(b.String())
		if err != nil {
			t.Fatal(err)
		}
		line := HeadingLines(ExtractHeadings(doc))[1]

		prefix := fmt.Sprintf("- H2 (%d): ", n)
		if !strings.HasPrefix(line, prefix) {
			t.Errorf("n=%d: line %q does not start with %q", n, line, prefix)
			continue
		}
		previewed := strings.Count(line, "Heading ")
		if previewed > 3 {
			t.Errorf("n=%d: previewed %d headings, want at most 3", n, previewed)
		}
		if n == 0 && !strings.HasSuffix(line, NoneDiscovered) {
			t.Errorf("n=0: line %q lacks placeholder", line)
		}
		if n > 3 && !strings.HasSuffix(line, fmt.Sprintf("(+%d more)", n-3)) {
			t.Errorf("n=%d: line %q lacks remainder count", n, line)
		}
	}
}

func TestHeadingLines_TruncatesLongHeadings(t *testing.T) {
	long := strings.Repeat("w", 200)
	lines := HeadingLines([]HeadingLevel{{Level: 1, Texts: []string{long}}})
	want := "- H1 (1): " + strings.Repeat("w", 117) + "..."
	if lines[0] != want {
		t.Errorf("got %q, want %q", lines[0], want)
	}
}

func TestExtractParagraphs(t *testing.T) {
	long1 := strings.Repeat("first paragraph text ", 5)
	long2 := strings.Repeat("second paragraph text ", 20)
	long3 := strings.Repeat("third paragraph text ", 5)
	page := "<html><body><p>short</p><p>" + long1 + "</p><p>" + long2 + "</p><p>" + long3 + "</p></body></html>"

	doc, err := ParseDocument(page)
	if err != nil {
		t.Fatal(err)
	}
	paras := ExtractParagraphs(doc, maxParagraphs)
	if len(paras) != 2 {
		t.Fatalf("got %d paragraphs, want 2", len(paras))
	}
	if paras[0] != NormalizeWhitespace(long1) {
		t.Errorf("first paragraph = %q", paras[0])
	}

	lines := ParagraphLines(paras)
	if !strings.HasPrefix(lines[0], "- Para 1: first paragraph") {
		t.Errorf("line 0 = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "- Para 2: second paragraph") || !strings.HasSuffix(lines[1], "...") {
		t.Errorf("line 1 = %q, want truncated second paragraph", lines[1])
	}
}

func TestExtractLinks_Classification(t *testing.T) {
	page := `<html><body>
	<a href="#top">Top</a>
	<a href="javascript:void(0)">JS</a>
	<a href="JavaScript:alert(1)">JS upper</a>
	<a href="http://[::1">Broken</a>
	<a>No href</a>
	<a href="/a">Relative</a>
	<a href="https://EXAMPLE.com/b">Same host, upper case</a>
	<a href="https://sub.example.com/">Subdomain</a>
	<a href="mailto:someone@example.com">Mail</a>
	</body></html>`

	doc, err := ParseDocument(page)
	if err != nil {
		t.Fatal(err)
	}
	stats := ExtractLinks(doc, "https://example.com/page")

	if stats.Total != 4 || stats.Internal != 2 || stats.External != 2 {
		t.Errorf("got total=%d internal=%d external=%d, want 4/2/2",
			stats.Total, stats.Internal, stats.External)
	}
	if stats.Internal+stats.External != stats.Total {
		t.Error("internal + external must equal total")
	}
}

func TestExtractLinks_SampleCapAndFallbackText(t *testing.T) {
	var b strings.Builder
	b.WriteString(`<html><body><a href="/empty_text"></a>`)
	for i := 0; i < 6; i++ {
		fmt.Fprintf(&b, `<a href="https://other.org/%d">Link %d</a>`, i, i)
	}
	b.WriteString("</body></html>")

	doc, err := ParseDocument(b.String())
	if err != nil {
		t.Fatal(err)
	}
	stats := ExtractLinks(doc, "https://example.com/")

	if stats.Total != 7 {
		t.Errorf("Total = %d, want 7", stats.Total)
	}
	if len(stats.Samples) != 5 {
		t.Errorf("got %d samples, want 5", len(stats.Samples))
	}
	want := `  - https://example.com/empty\_text → https://example.com/empty\_text`
	if stats.Samples[0] != want {
		t.Errorf("sample 0 = %q, want %q", stats.Samples[0], want)
	}
}

func TestExtractMetadata_FirstOpenGraphTagWins(t *testing.T) {
	doc, err := ParseDocument(`<html><head>
	<meta property="og:title" content="First">
	</head><body>
	<meta property="og:title" content="Second">
	<meta property="og:description" content="Body desc">
	</body></html>`)
	if err != nil {
		t.Fatal(err)
	}
	meta := ExtractMetadata(doc)
	if meta.OGTitle != "First" {
		t.Errorf("OGTitle = %q, want First", meta.OGTitle)
	}
	if meta.OGDescription != "Body desc" {
		t.Errorf("OGDescription = %q, want tag outside head to count", meta.OGDescription)
	}
}

func TestExtractLinks_SampleURLNormalised(t *testing.T) {
	tests := []struct {
		href string
		want string
	}{
		{"https://other.org", "https://other.org/"},
		{"HTTPS://Other.ORG/Path", "https://other.org/Path"},
		{"https://other.org:443", "https://other.org/"},
		{"http://other.org:8080", "http://other.org:8080/"},
		{"https://other.org?q=1", "https://other.org/?q=1"},
		{"mailto:Someone@Example.com", "mailto:Someone@Example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.href, func(t *testing.T) {
			doc, err := ParseDocument(`<a href="` + tt.href + `">x</a>`)
			if err != nil {
				t.Fatal(err)
			}
			stats := ExtractLinks(doc, "https://example.com/")
			if len(stats.Samples) != 1 {
				t.Fatalf("got %d samples", len(stats.Samples))
			}
			want := "  - x → " + EscapeMarkup(tt.want)
			if stats.Samples[0] != want {
				t.Errorf("sample = %q, want %q", stats.Samples[0], want)
			}
		})
	}
}

func TestExtractLinks_InvalidSource(t *testing.T) {
	doc, err := ParseDocument(`<a href="/x">x</a><a href="https://a.com">a</a>`)
	if err != nil {
		t.Fatal(err)
	}
	if stats := ExtractLinks(doc, "not a url"); stats.Total != 0 {
		t.Errorf("Total = %d, want 0 when the source URL cannot serve as a base", stats.Total)
	}
}

func TestExtractImages(t *testing.T) {
	page := `<html><body>
	<img src="a.png" alt="A picture">
	<img src="b.png" alt="   ">
	<img src="c.png">
	<img alt="no src">
	</body></html>`
	doc, err := ParseDocument(page)
	if err != nil {
		t.Fatal(err)
	}
	stats := ExtractImages(doc)
	if stats.Total != 4 || stats.WithAlt != 2 || stats.WithoutAlt() != 2 {
		t.Errorf("got total=%d withAlt=%d without=%d, want 4/2/2",
			stats.Total, stats.WithAlt, stats.WithoutAlt())
	}

	lines := ImageLines(stats)
	if lines[0] != "- Total images: 4" || lines[1] != "- With alt text: 2" || lines[2] != "- Missing alt text: 2" {
		t.Errorf("unexpected image lines: %v", lines)
	}
}
