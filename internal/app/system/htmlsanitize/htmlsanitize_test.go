package htmlsanitize_test

import (
	"html/template"
	"strings"
	"testing"

	"github.com/luminacoaching/lumina/internal/app/system/htmlsanitize"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"plain text", "Coaching since 2012.", "Coaching since 2012."},
		{"safe formatting", "<p><strong>ICF certified</strong> and <em>bilingual</em></p>", "<p><strong>ICF certified</strong> and <em>bilingual</em></p>"},
		{"script removed", "<p>Hi</p><script>alert('xss')</script>", "<p>Hi</p>"},
		{"lists preserved", "<ul><li>Leadership</li><li>Career change</li></ul>", "<ul><li>Leadership</li><li>Career change</li></ul>"},
		{"blockquote preserved", "<blockquote>A quote</blockquote>", "<blockquote>A quote</blockquote>"},
		{"table preserved", "<table><thead><tr><th>Focus</th></tr></thead><tbody><tr><td>Teams</td></tr></tbody></table>", "<table><thead><tr><th>Focus</th></tr></thead><tbody><tr><td>Teams</td></tr></tbody></table>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := htmlsanitize.Sanitize(tt.input); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitize_RemovesDangerousAttributes(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		badPart string
	}{
		{"onclick", `<button onclick="alert('xss')">Click</button>`, "onclick"},
		{"onerror", `<img src="x" onerror="alert('xss')">`, "onerror"},
		{"javascript href", `<a href="javascript:alert('xss')">Click</a>`, "javascript:"},
		{"iframe", `<p>Bio</p><iframe src="https://evil.test"></iframe>`, "iframe"},
		{"form", `<form action="/x"><input name="a"></form>`, "<form"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := htmlsanitize.Sanitize(tt.input); strings.Contains(got, tt.badPart) {
				t.Errorf("Sanitize(%q) = %q, still contains %q", tt.input, got, tt.badPart)
			}
		})
	}
}

func TestSanitize_AllowsTableAttributes(t *testing.T) {
	input := `<table><tr><td colspan="2" rowspan="2">Cell</td></tr></table>`
	got := htmlsanitize.Sanitize(input)
	if !strings.Contains(got, `colspan="2"`) || !strings.Contains(got, `rowspan="2"`) {
		t.Errorf("colspan/rowspan not preserved: %q", got)
	}
}

func TestSanitize_AllowsSafeLinks(t *testing.T) {
	got := htmlsanitize.Sanitize(`<a href="https://example.com">Book a session</a>`)
	if !strings.Contains(got, "https://example.com") {
		t.Errorf("safe link not preserved: %q", got)
	}
}

func TestIsPlainText(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"", true},
		{"Ten years of coaching.", true},
		{"5 < 10 and 5 > 3", true},
		{"<p>Hello</p>", false},
	}
	for _, tt := range tests {
		if got := htmlsanitize.IsPlainText(tt.input); got != tt.want {
			t.Errorf("IsPlainText(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestPlainTextToHTML(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", ""},
		{"Hello", "<p>Hello</p>"},
		{"Line 1\nLine 2", "<p>Line 1<br>Line 2</p>"},
		{"A & B", "<p>A &amp; B</p>"},
	}
	for _, tt := range tests {
		if got := htmlsanitize.PlainTextToHTML(tt.input); got != tt.want {
			t.Errorf("PlainTextToHTML(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestPrepareForDisplay(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  template.HTML
	}{
		{"empty", "", ""},
		{"plain text wrapped", "Hello", "<p>Hello</p>"},
		{"html sanitized", "<p>Hello</p><script>alert('xss')</script>", "<p>Hello</p>"},
		{"newlines become breaks", "Line 1\nLine 2", "<p>Line 1<br>Line 2</p>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := htmlsanitize.PrepareForDisplay(tt.input); got != tt.want {
				t.Errorf("PrepareForDisplay(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
