// Package content turns raw page markup into readable text and judges
// whether the result is worth analysing.
package content

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var (
	multiSpace   = regexp.MustCompile(`[ \t\f\v\x{00a0}]+`)
	multiNewline = regexp.MustCompile(`\n{3,}`)
)

// Clean strips scripts, styles, page chrome and non-content widgets from
// rawHTML, isolates the main content container when one can be found, and
// returns the remaining text with block elements rendered as line breaks.
func Clean(rawHTML string) string {
	if strings.TrimSpace(rawHTML) == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return CleanText(stripTagsFallback(rawHTML))
	}

	doc.Find(strings.Join(nonContentTags, ", ")).Remove()
	doc.Find(strings.Join(chromeTags, ", ")).Remove()
	removeMarkedElements(doc.Selection)

	root := mainContainer(doc)

	var b strings.Builder
	for _, n := range root.Nodes {
		renderText(&b, n)
	}
	return CleanText(b.String())
}

// mainContentHolders are never removed by a marker match on an ancestor
const mainContentHolders = "article, main, [role=main]"

// removeMarkedElements drops elements whose class or id carries a
// non-content marker, unless they wrap the main content.
func removeMarkedElements(sel *goquery.Selection) {
	sel.Find("[class], [id]").Each(func(_ int, s *goquery.Selection) {
		tag := goquery.NodeName(s)
		if tag == "html" || tag == "body" || tag == "article" || tag == "main" {
			return
		}
		class, _ := s.Attr("class")
		id, _ := s.Attr("id")
		if isNonContent(strings.ToLower(class+" "+id)) && s.Has(mainContentHolders).Length() == 0 {
			s.Remove()
		}
	})
}

func isNonContent(names string) bool {
	for _, ex := range markerExceptions {
		if strings.Contains(names, ex) {
			return false
		}
	}
	for _, marker := range nonContentMarkers {
		if strings.Contains(names, marker) {
			return true
		}
	}
	return false
}

// mainContainer returns the first prioritized content container holding
// enough text, or the body.
func mainContainer(doc *goquery.Document) *goquery.Selection {
	for _, selector := range mainContentSelectors {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}
		if len(strings.TrimSpace(sel.Text())) >= minMainContentChars {
			return sel
		}
	}
	if body := doc.Find("body"); body.Length() > 0 {
		return body
	}
	return doc.Selection
}

// renderText writes the text of n, ending a line at every block element
func renderText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.CommentNode:
		return
	case html.ElementNode:
		if n.Data == "td" || n.Data == "th" {
			b.WriteString(" ")
		}
	}

	block := n.Type == html.ElementNode && blockTags[n.Data]
	if block {
		b.WriteString("\n")
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		renderText(b, c)
	}
	if block {
		b.WriteString("\n")
	}
}

var tagPattern = regexp.MustCompile(`(?s)<[^>]*>`)

func stripTagsFallback(s string) string {
	return html.UnescapeString(tagPattern.ReplaceAllString(s, "\n"))
}

// CleanText removes residual style and script text from already extracted
// text, drops symbol-heavy lines and normalizes whitespace.
func CleanText(text string) string {
	text = html.UnescapeString(text)
	for _, p := range residualPatterns {
		text = p.ReplaceAllString(text, " ")
	}

	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(multiSpace.ReplaceAllString(line, " "))
		if line == "" {
			kept = append(kept, "")
			continue
		}
		if specialDensity(line) > maxLineSpecialDensity {
			continue
		}
		kept = append(kept, line)
	}

	out := strings.Join(kept, "\n")
	out = multiNewline.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

func specialDensity(line string) float64 {
	total := utf8.RuneCountInString(line)
	if total == 0 {
		return 0
	}
	special := 0
	for _, r := range line {
		if strings.ContainsRune(specialChars, r) {
			special++
		}
	}
	return float64(special) / float64(total)
}

// IsValidContent rejects text that is too short or where code-like
// constructs cover more than a tenth of the characters.
func IsValidContent(text string) bool {
	text = strings.TrimSpace(text)
	total := utf8.RuneCountInString(text)
	if total < minValidChars {
		return false
	}
	return CodeLikeDensity(text) <= maxCodeLikeDensity
}

// CodeLikeDensity is the fraction of characters inside code-like pattern matches
func CodeLikeDensity(text string) float64 {
	if text == "" {
		return 0
	}
	covered := make([]bool, len(text))
	for _, p := range codeLikePatterns {
		for _, loc := range p.FindAllStringIndex(text, -1) {
			for i := loc[0]; i < loc[1]; i++ {
				covered[i] = true
			}
		}
	}
	n := 0
	for _, c := range covered {
		if c {
			n++
		}
	}
	return float64(n) / float64(len(text))
}
