package content

import "regexp"

// Rule tables for the cleaner. Order matters where noted.

// nonContentTags are removed together with everything inside them
var nonContentTags = []string{
	"script", "style", "noscript", "iframe", "svg", "canvas", "object", "embed",
	"template", "form", "button", "input", "select", "textarea", "link", "meta",
}

// chromeTags are structural page chrome
var chromeTags = []string{"header", "footer", "nav", "aside"}

// nonContentMarkers are class/id substrings of elements that never hold article text
var nonContentMarkers = []string{
	"advert", "ad-", "-ad", "ads-", "adsbox", "sponsor", "promo",
	"cookie", "consent", "gdpr", "banner", "popup", "modal", "overlay",
	"newsletter", "subscribe", "signup",
	"share", "social", "sharing",
	"related", "recommend", "trending", "popular", "more-stories", "read-next",
	"sidebar", "widget", "comment", "disqus",
	"breadcrumb", "pagination", "menu", "navbar", "toolbar",
	"footer", "header", "masthead",
}

// markerExceptions protect containers whose names happen to contain a marker
var markerExceptions = []string{"article-header", "post-header", "entry-header", "content-header", "page-content", "main-content"}

// mainContentSelectors are tried in order; the first with enough text wins
var mainContentSelectors = []string{
	"article",
	"main",
	"[role='main']",
	"[itemprop='articleBody']",
	".post-content",
	".entry-content",
	".article-content",
	".article-body",
	".content-body",
	".post-body",
	".story-body",
	"#content",
	"#main-content",
	".main-content",
	".content",
}

// minMainContentChars is the least text a container needs to be chosen as main content
const minMainContentChars = 200

// residualPatterns strip style/script-looking text that survived tag removal
var residualPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?s)/\*.*?\*/`),
	regexp.MustCompile(`(?m)^[ \t]*[.#@]?[\w\-, \t.:#>\[\]="']+\{[^}]*\}`),
	regexp.MustCompile(`(?i)\b(?:function\s*\w*\s*\([^)]*\)\s*\{[^}]*\}?)`),
	regexp.MustCompile(`(?i)\b(?:var|let|const)\s+\w+\s*=\s*[^;\n]+;`),
	regexp.MustCompile(`(?i)\b(?:window|document)\.\w+(?:\.\w+)*(?:\([^)]*\))?;?`),
	regexp.MustCompile(`(?i)@(?:media|import|font-face|keyframes)[^{]*\{?`),
	regexp.MustCompile(`(?i)\b[a-z\-]+\s*:\s*[^;\n]{1,60};(?:\s*[a-z\-]+\s*:\s*[^;\n]{1,60};)+`),
}

// maxLineSpecialDensity drops lines where special characters dominate
const maxLineSpecialDensity = 0.2

// specialChars counts toward per-line density; currency symbols are
// excluded so standalone prices survive.
const specialChars = "{}[]<>;=|\\^~`#@*"

// codeLikePatterns drive the content validity check
var codeLikePatterns = []*regexp.Regexp{
	regexp.MustCompile(`[{}]`),
	regexp.MustCompile(`[.#][\w-]+\s*\{`),
	regexp.MustCompile(`\b[a-z-]+\s*:\s*[^;\s]+;`),
	regexp.MustCompile(`\bfunction\s*\(`),
	regexp.MustCompile(`=>`),
	regexp.MustCompile(`\b(?:var|let|const)\s+\w+\s*=`),
	regexp.MustCompile(`</?[a-z][a-z0-9]*[^>]*>`),
}

// Validity thresholds
const (
	minValidChars      = 100
	maxCodeLikeDensity = 0.1
)

// blockTags end a line when rendered to text
var blockTags = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "ul": true, "ol": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"tr": true, "table": true, "section": true, "article": true, "main": true,
	"blockquote": true, "pre": true, "dd": true, "dt": true, "dl": true,
	"figcaption": true, "hr": true,
}
