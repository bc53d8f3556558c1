package content

import (
	"encoding/json"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"
)

// MaxMainTextChars bounds the main text handed to the model
const MaxMainTextChars = 15000

// Extractor pulls structured pieces out of a page's markup
type Extractor struct {
	tablePolicy *bluemonday.Policy
	md          *converter.Converter
}

// NewExtractor creates an Extractor
func NewExtractor() *Extractor {
	policy := bluemonday.NewPolicy()
	policy.AllowElements("table", "thead", "tbody", "tfoot", "tr", "th", "td", "caption")
	policy.AllowAttrs("colspan", "rowspan").OnElements("td", "th")

	return &Extractor{
		tablePolicy: policy,
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

// Extract builds page content from raw markup. MainText is produced by
// Clean; when that is not valid content the readability extraction is used
// instead.
func (e *Extractor) Extract(rawHTML, pageURL string) Page {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		text := Clean(rawHTML)
		return Page{MainText: TruncateAtSentence(text, MaxMainTextChars)}
	}

	page := Page{
		Title:       ExtractTitle(doc),
		Headings:    ExtractHeadings(doc),
		Tables:      e.ExtractTables(doc, pageURL),
		PublishDate: ExtractPublishDate(doc),
	}

	text := Clean(rawHTML)
	if !IsValidContent(text) {
		if title, fallback := ReadabilityText(rawHTML, pageURL); IsValidContent(fallback) {
			text = fallback
			if page.Title == "" {
				page.Title = title
			}
		}
	}
	page.MainText = TruncateAtSentence(text, MaxMainTextChars)
	return page
}

// Page is the output of Extract
type Page struct {
	Title       string
	MainText    string
	Tables      []string
	Headings    []string
	PublishDate *time.Time
}

// ExtractTitle returns the og:title, then <title>, then the first h1
func ExtractTitle(doc *goquery.Document) string {
	if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok && strings.TrimSpace(og) != "" {
		return strings.TrimSpace(og)
	}
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		return t
	}
	return strings.TrimSpace(doc.Find("h1").First().Text())
}

// ExtractHeadings returns the non-empty h1-h3 texts in document order
func ExtractHeadings(doc *goquery.Document) []string {
	var headings []string
	doc.Find("h1, h2, h3").Each(func(_ int, s *goquery.Selection) {
		text := strings.Join(strings.Fields(s.Text()), " ")
		if text != "" {
			headings = append(headings, text)
		}
	})
	return headings
}

// ExtractTables renders each table as markdown. Tables without any cell text are skipped.
func (e *Extractor) ExtractTables(doc *goquery.Document, pageURL string) []string {
	var tables []string
	doc.Find("table").Each(func(_ int, s *goquery.Selection) {
		if s.ParentsFiltered("table").Length() > 0 {
			return
		}
		if strings.TrimSpace(s.Find("td, th").Text()) == "" {
			return
		}
		outer, err := goquery.OuterHtml(s)
		if err != nil {
			return
		}
		md, err := e.md.ConvertString(e.tablePolicy.Sanitize(outer), converter.WithDomain(pageURL))
		if err != nil {
			return
		}
		if md = strings.TrimSpace(md); md != "" {
			tables = append(tables, md)
		}
	})
	return tables
}

var publishDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
}

// ExtractPublishDate looks at article:published_time and similar meta tags,
// then JSON-LD datePublished, then the first <time datetime>.
func ExtractPublishDate(doc *goquery.Document) *time.Time {
	metaSelectors := []string{
		`meta[property="article:published_time"]`,
		`meta[name="article:published_time"]`,
		`meta[itemprop="datePublished"]`,
		`meta[name="pubdate"]`,
		`meta[name="date"]`,
		`meta[property="og:published_time"]`,
	}
	for _, sel := range metaSelectors {
		if v, ok := doc.Find(sel).Attr("content"); ok {
			if t := ParseDate(v); t != nil {
				return t
			}
		}
	}

	var found *time.Time
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		found = jsonLDDate(s.Text())
		return found == nil
	})
	if found != nil {
		return found
	}

	if v, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok {
		return ParseDate(v)
	}
	return nil
}

func jsonLDDate(raw string) *time.Time {
	var payload any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil
	}
	return findDatePublished(payload)
}

func findDatePublished(v any) *time.Time {
	switch node := v.(type) {
	case map[string]any:
		if s, ok := node["datePublished"].(string); ok {
			if t := ParseDate(s); t != nil {
				return t
			}
		}
		for _, child := range node {
			if t := findDatePublished(child); t != nil {
				return t
			}
		}
	case []any:
		for _, child := range node {
			if t := findDatePublished(child); t != nil {
				return t
			}
		}
	}
	return nil
}

// ParseDate parses the date formats seen in publish-date metadata
func ParseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range publishDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// ReadabilityText runs the readability extractor over the full document and
// returns its title and text. Both are empty when extraction fails.
func ReadabilityText(rawHTML, pageURL string) (title, text string) {
	rawHTML = strings.TrimSpace(rawHTML)
	if rawHTML == "" {
		return "", ""
	}

	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return "", ""
	}

	article, err := readability.FromReader(strings.NewReader(rawHTML), parsedURL)
	if err != nil {
		return "", ""
	}
	return strings.TrimSpace(article.Title), CleanText(article.TextContent)
}

// TruncateAtSentence shortens text to at most limit characters, cutting at
// the last sentence end when one falls past 80% of the limit.
func TruncateAtSentence(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	cut := string(runes[:limit])

	boundary := -1
	for _, end := range []string{". ", "! ", "? ", ".\n", "!\n", "?\n"} {
		if i := strings.LastIndex(cut, end); i > boundary {
			boundary = i
		}
	}
	if boundary >= 0 && utf8.RuneCountInString(cut[:boundary]) > limit*8/10 {
		return cut[:boundary+1]
	}
	return cut
}
