// internal/app/system/htmlsanitize/htmlsanitize.go

// Package htmlsanitize strips unsafe HTML from admin-entered rich text such
// as coach bios. Bios may be plain text or a limited subset of HTML; either
// way the stored value is safe to render unescaped.
package htmlsanitize

import (
	"html"
	"html/template"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// policy allows user-generated-content formatting plus tables. Scripts,
// event handlers, forms, iframes, and javascript: URLs are always removed.
var policy = func() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").Globally()
	p.AllowAttrs("colspan", "rowspan").OnElements("td", "th")
	return p
}()

// tagPattern matches anything that looks like an HTML tag. A lone "<" or
// ">" in prose does not count.
var tagPattern = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)

// Sanitize returns the input with disallowed HTML removed.
func Sanitize(input string) string {
	return policy.Sanitize(input)
}

// SanitizeToHTML sanitizes and returns a template.HTML value ready for
// unescaped rendering.
func SanitizeToHTML(input string) template.HTML {
	return template.HTML(Sanitize(input))
}

// IsPlainText reports whether the input contains no HTML tags.
func IsPlainText(input string) bool {
	return !tagPattern.MatchString(input)
}

// PlainTextToHTML escapes plain text and converts it to a single paragraph
// with <br> line breaks.
func PlainTextToHTML(input string) string {
	if input == "" {
		return ""
	}
	escaped := html.EscapeString(input)
	escaped = strings.ReplaceAll(escaped, "\n", "<br>")
	return "<p>" + escaped + "</p>"
}

// PrepareForDisplay turns a stored bio into renderable HTML: plain text is
// escaped and paragraph-wrapped, HTML is sanitized.
func PrepareForDisplay(input string) template.HTML {
	if input == "" {
		return ""
	}
	if IsPlainText(input) {
		return template.HTML(PlainTextToHTML(input))
	}
	return SanitizeToHTML(input)
}
