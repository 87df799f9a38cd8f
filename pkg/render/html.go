// Package render converts model answers written in Markdown into the HTML
// subset understood by Telegram.
package render

import (
	"html"
	"regexp"
	"strings"

	"github.com/russross/blackfriday"
)

const extensions = blackfriday.EXTENSION_NO_INTRA_EMPHASIS |
	blackfriday.EXTENSION_FENCED_CODE |
	blackfriday.EXTENSION_AUTOLINK |
	blackfriday.EXTENSION_STRIKETHROUGH

var (
	// Telegram accepts only b, i, u, s, a, code and pre.
	replacements = strings.NewReplacer(
		"<strong>", "<b>", "</strong>", "</b>",
		"<em>", "<i>", "</em>", "</i>",
		"<del>", "<s>", "</del>", "</s>",
		"<p>", "", "</p>", "\n",
		"<li>", "• ", "</li>", "",
		"<br />", "\n", "<br>", "\n",
		"<hr />", "\n", "<hr>", "\n",
	)
	headingOpen  = regexp.MustCompile(`<h[1-6][^>]*>`)
	headingClose = regexp.MustCompile(`</h[1-6]>`)
	unsupported  = regexp.MustCompile(`</?(?:ul|ol|blockquote|table|thead|tbody|tr|th|td|img|div|span)[^>]*>`)
	codeLanguage = regexp.MustCompile(`<code class="[^"]*">`)
	blankLines   = regexp.MustCompile(`\n{3,}`)
	anyTag       = regexp.MustCompile(`<[^>]+>`)
)

// ToHTML renders markdown as Telegram HTML.
func ToHTML(markdown string) string {
	renderer := blackfriday.HtmlRenderer(blackfriday.HTML_USE_XHTML, "", "")
	html := string(blackfriday.Markdown([]byte(markdown), renderer, extensions))

	html = headingOpen.ReplaceAllString(html, "<b>")
	html = headingClose.ReplaceAllString(html, "</b>\n")
	html = codeLanguage.ReplaceAllString(html, "<code>")
	html = replacements.Replace(html)
	html = unsupported.ReplaceAllString(html, "")
	html = blankLines.ReplaceAllString(html, "\n\n")

	return strings.TrimSpace(html)
}

// ToPlain strips the markup produced by ToHTML.
func ToPlain(markup string) string {
	return strings.TrimSpace(html.UnescapeString(anyTag.ReplaceAllString(markup, "")))
}
