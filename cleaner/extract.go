package cleaner

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/use-agent/pagebrief/models"
	"golang.org/x/net/html"
)

// Placeholders used when a field is missing from the page.
const (
	NoTitle           = "No title found"
	NoDescription     = "No meta description found."
	NoKeywords        = "No meta keywords found."
	NotProvided       = "Not provided"
	NotDeclared       = "Not declared"
	NotSpecified      = "Not specified"
	NotFound          = "Not found"
	NoneDiscovered    = "None discovered"
	NoParagraphs      = "- No substantial paragraphs detected."
	NoCrawlableLinks  = "- No crawlable links discovered."
	minParagraphRunes = 60
)

// Preview limits.
const (
	maxHeadingPreview = 3
	maxHeadingLen     = 120
	maxParagraphs     = 2
	maxParagraphLen   = 240
	maxLinkSamples    = 5
	maxLinkTextLen    = 80
)

var (
	selTitle         = cascadia.MustCompile("title")
	selHTML          = cascadia.MustCompile("html")
	selBody          = cascadia.MustCompile("body")
	selDescription   = cascadia.MustCompile(`meta[name="description"]`)
	selKeywords      = cascadia.MustCompile(`meta[name="keywords"]`)
	selOGTitle       = cascadia.MustCompile(`meta[property="og:title"]`)
	selOGDescription = cascadia.MustCompile(`meta[property="og:description"]`)
	selRobots        = cascadia.MustCompile(`meta[name="robots"]`)
	selModifiedTime  = cascadia.MustCompile(`meta[property="article:modified_time"]`)
	selUpdatedTime   = cascadia.MustCompile(`meta[property="og:updated_time"]`)
	selCanonical     = cascadia.MustCompile(`link[rel="canonical"]`)
	selJSONLD        = cascadia.MustCompile(`script[type="application/ld+json"]`)
	selParagraph     = cascadia.MustCompile("p")
	selAnchor        = cascadia.MustCompile("a[href]")
	selImage         = cascadia.MustCompile("img")
	selHeadings      = [...]cascadia.Selector{
		cascadia.MustCompile("h1"),
		cascadia.MustCompile("h2"),
		cascadia.MustCompile("h3"),
	}
)

// Metadata is the identity block of a brief. Text fields are normalised but
// not escaped; escaping happens when lines are rendered.
type Metadata struct {
	Title          string
	Canonical      string
	Language       string
	Description    string
	Keywords       string
	OGTitle        string
	OGDescription  string
	Robots         string
	LastUpdated    string
	WordCount      int
	StructuredData int
}

// HeadingLevel summarises the headings of one level.
type HeadingLevel struct {
	Level int
	Texts []string
}

// LinkStats counts the qualifying anchors of a page.
type LinkStats struct {
	Total    int
	Internal int
	External int
	Samples  []string
}

// ImageStats counts image elements and their alt text coverage.
type ImageStats struct {
	Total   int
	WithAlt int
}

// WithoutAlt is the number of images lacking usable alt text.
func (s ImageStats) WithoutAlt() int { return s.Total - s.WithAlt }

// ParseDocument parses raw HTML into a queryable document. The HTML5 parser
// recovers from almost anything; an error here means the input could not be
// read at all.
func ParseDocument(rawHTML string) (*goquery.Document, error) {
	root, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeExtraction, "failed to parse HTML document", err)
	}
	return goquery.NewDocumentFromNode(root), nil
}

// ExtractMetadata reads the identity fields of the page.
func ExtractMetadata(doc *goquery.Document) Metadata {
	lastUpdated := attrOf(doc, selModifiedTime, "content")
	if lastUpdated == "" {
		lastUpdated = attrOf(doc, selUpdatedTime, "content")
	}

	return Metadata{
		Title:          orDefault(NormalizeWhitespace(doc.FindMatcher(selTitle).First().Text()), NoTitle),
		Canonical:      orDefault(attrOf(doc, selCanonical, "href"), NotDeclared),
		Language:       orDefault(attrOf(doc, selHTML, "lang"), NotSpecified),
		Description:    orDefault(NormalizeWhitespace(attrOf(doc, selDescription, "content")), NoDescription),
		Keywords:       orDefault(NormalizeWhitespace(attrOf(doc, selKeywords, "content")), NoKeywords),
		OGTitle:        orDefault(NormalizeWhitespace(attrOf(doc, selOGTitle, "content")), NotProvided),
		OGDescription:  orDefault(NormalizeWhitespace(attrOf(doc, selOGDescription, "content")), NotProvided),
		Robots:         orDefault(NormalizeWhitespace(attrOf(doc, selRobots, "content")), NotDeclared),
		LastUpdated:    orDefault(NormalizeWhitespace(lastUpdated), NotFound),
		WordCount:      CountWords(doc.FindMatcher(selBody).Text()),
		StructuredData: doc.FindMatcher(selJSONLD).Length(),
	}
}

// CountWords approximates the number of words in text: whitespace is
// normalised and the result split on single spaces.
func CountWords(text string) int {
	n := 0
	for _, tok := range strings.Split(NormalizeWhitespace(text), " ") {
		if tok != "" {
			n++
		}
	}
	return n
}

// ExtractHeadings collects the non-empty H1 to H3 texts, in document order.
func ExtractHeadings(doc *goquery.Document) []HeadingLevel {
	levels := make([]HeadingLevel, 0, len(selHeadings))
	for i, sel := range selHeadings {
		texts := []string{}
		doc.FindMatcher(sel).Each(func(_ int, s *goquery.Selection) {
			if t := NormalizeWhitespace(s.Text()); t != "" {
				texts = append(texts, t)
			}
		})
		levels = append(levels, HeadingLevel{Level: i + 1, Texts: texts})
	}
	return levels
}

// ExtractParagraphs returns up to limit paragraph texts long enough to be
// real content rather than captions or boilerplate.
func ExtractParagraphs(doc *goquery.Document, limit int) []string {
	var out []string
	doc.FindMatcher(selParagraph).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if t := NormalizeWhitespace(s.Text()); utf8.RuneCountInString(t) >= minParagraphRunes {
			out = append(out, t)
		}
		return len(out) < limit
	})
	return out
}

// ExtractLinks classifies every anchor against the source URL's hostname.
// Fragment-only and javascript: hrefs are ignored, as are hrefs that cannot
// be resolved. Counts cover all qualifying anchors; only the first
// maxLinkSamples become formatted sample lines.
func ExtractLinks(doc *goquery.Document, sourceURL string) LinkStats {
	stats := LinkStats{}

	base, err := url.Parse(sourceURL)
	if err != nil || !base.IsAbs() {
		return stats
	}
	hostname := base.Hostname()

	doc.FindMatcher(selAnchor).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(strings.ToLower(href), "javascript") {
			return
		}

		resolved, err := base.Parse(href)
		if err != nil {
			return
		}
		absURL := canonicalHref(resolved)

		stats.Total++
		if hostname != "" && strings.EqualFold(resolved.Hostname(), hostname) {
			stats.Internal++
		} else {
			stats.External++
		}

		if len(stats.Samples) < maxLinkSamples {
			text := orDefault(NormalizeWhitespace(s.Text()), absURL)
			stats.Samples = append(stats.Samples, fmt.Sprintf("  - %s → %s",
				EscapeMarkup(Truncate(text, maxLinkTextLen)), EscapeMarkup(absURL)))
		}
	})

	return stats
}

// ExtractImages counts images and how many carry non-blank alt text.
func ExtractImages(doc *goquery.Document) ImageStats {
	images := doc.FindMatcher(selImage)
	stats := ImageStats{Total: images.Length()}
	images.Each(func(_ int, s *goquery.Selection) {
		alt, _ := s.Attr("alt")
		if NormalizeWhitespace(alt) != "" {
			stats.WithAlt++
		}
	})
	return stats
}

// canonicalHref serialises a resolved link the way browsers do. The host
// is lower-cased without its scheme's default port, and an empty
// hierarchical path becomes "/".
func canonicalHref(u *url.URL) string {
	if u.Host != "" {
		u.Host = strings.ToLower(u.Host)
		if port := u.Port(); (u.Scheme == "https" && port == "443") || (u.Scheme == "http" && port == "80") {
			u.Host = strings.TrimSuffix(u.Host, ":"+port)
		}
		if u.Path == "" && u.Opaque == "" {
			u.Path = "/"
			u.RawPath = ""
		}
	}
	return u.String()
}

// attrOf returns the attribute of the first element matching sel.
func attrOf(doc *goquery.Document, sel cascadia.Selector, attr string) string {
	v, _ := doc.FindMatcher(sel).First().Attr(attr)
	return v
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
