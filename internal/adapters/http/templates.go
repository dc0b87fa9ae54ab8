package httpadapter

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strings"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

func parseTemplates() (*template.Template, error) {
	t, err := template.New("_root").ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	if t.Lookup("base") == nil {
		return nil, fmt.Errorf("parse templates: base layout missing")
	}
	return t, nil
}

// render executes the base layout into a buffer first so a template error
// never leaves a half-written page behind.
func (rt *Router) render(w http.ResponseWriter, status int, data any) error {
	var buf bytes.Buffer
	if err := rt.templates.ExecuteTemplate(&buf, "base", data); err != nil {
		return fmt.Errorf("execute template: %w", err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
	return nil
}

// imageSource vets an image reference before it is placed in a src attribute.
// Only image data URIs, http(s) URLs and site-relative paths pass.
func imageSource(ref string) template.URL {
	ref = strings.TrimSpace(ref)
	lower := strings.ToLower(ref)
	switch {
	case strings.HasPrefix(lower, "data:image/"):
		return template.URL(ref)
	case strings.HasPrefix(lower, "https://"), strings.HasPrefix(lower, "http://"):
		return template.URL(ref)
	case strings.HasPrefix(ref, "/") && !strings.HasPrefix(ref, "//"):
		return template.URL(ref)
	}
	return ""
}
