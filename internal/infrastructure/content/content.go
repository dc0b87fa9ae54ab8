// Package content renders the storefront's editorial copy and cleans
// shopper-entered text.
package content

import (
	"bytes"
	"embed"
	"fmt"
	"html"
	"html/template"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

//go:embed copy/*.md
var copyFS embed.FS

// Page is the rendered editorial copy of the studio page.
type Page struct {
	Hero    template.HTML
	About   template.HTML
	Contact template.HTML
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.Typographer))

// LoadPage renders the embedded Markdown copy once at startup.
func LoadPage() (Page, error) {
	policy := copyPolicy()
	render := func(name string) (template.HTML, error) {
		src, err := copyFS.ReadFile("copy/" + name)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", name, err)
		}
		return RenderMarkdown(policy, src)
	}

	var (
		page Page
		err  error
	)
	if page.Hero, err = render("hero.md"); err != nil {
		return Page{}, err
	}
	if page.About, err = render("about.md"); err != nil {
		return Page{}, err
	}
	if page.Contact, err = render("contact.md"); err != nil {
		return Page{}, err
	}
	return page, nil
}

// RenderMarkdown converts src to HTML and runs it through policy.
func RenderMarkdown(policy *bluemonday.Policy, src []byte) (template.HTML, error) {
	var buf bytes.Buffer
	if err := markdown.Convert(src, &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return template.HTML(strings.TrimSpace(policy.Sanitize(buf.String()))), nil
}

func copyPolicy() *bluemonday.Policy {
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").OnElements("h1", "h2", "p", "span")
	return policy
}

// TextSanitizer strips any markup from free text. Entities are decoded again
// so the template layer escapes them exactly once.
type TextSanitizer struct {
	policy *bluemonday.Policy
}

func NewTextSanitizer() *TextSanitizer {
	return &TextSanitizer{policy: bluemonday.StrictPolicy()}
}

func (s *TextSanitizer) Sanitize(text string) string {
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(text)))
}
