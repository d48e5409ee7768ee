package notify

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"text/template"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// ErrUnknownTemplate is returned when a queue item references a
// template that is not shipped with the service. Not retryable: the
// item will fail identically on every attempt.
var ErrUnknownTemplate = errors.New("unknown email template")

// Renderer renders outgoing messages from embedded templates. Each
// template file defines a "subject" and a "body" template and is
// addressed by its base name (e.g. "order_confirmation").
type Renderer struct {
	templates map[string]*template.Template
}

// NewRenderer creates a renderer and parses all embedded templates.
func NewRenderer() (*Renderer, error) {
	funcMap := template.FuncMap{
		"title":      titleCase,
		"upper":      strings.ToUpper,
		"lower":      strings.ToLower,
		"formatDate": formatDate,
	}

	entries, err := fs.Glob(templatesFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("glob templates: %w", err)
	}

	r := &Renderer{templates: make(map[string]*template.Template)}

	for _, filename := range entries {
		name := strings.TrimSuffix(strings.TrimPrefix(filename, "templates/"), ".tmpl")

		content, err := templatesFS.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", filename, err)
		}

		tmpl, err := template.New(name).Funcs(funcMap).Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}

		if tmpl.Lookup("subject") == nil || tmpl.Lookup("body") == nil {
			return nil, fmt.Errorf("template %s must define subject and body", name)
		}

		r.templates[name] = tmpl
	}

	return r, nil
}

// Render renders the named template with the given variables.
// Returns subject and body.
func (r *Renderer) Render(templateID string, vars map[string]any) (subject, body string, err error) {
	tmpl, ok := r.templates[templateID]
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrUnknownTemplate, templateID)
	}

	var subjBuf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&subjBuf, "subject", vars); err != nil {
		return "", "", fmt.Errorf("execute subject %s: %w", templateID, err)
	}

	var bodyBuf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&bodyBuf, "body", vars); err != nil {
		return "", "", fmt.Errorf("execute body %s: %w", templateID, err)
	}

	return strings.TrimSpace(subjBuf.String()), strings.TrimSpace(bodyBuf.String()), nil
}

// Known reports whether a template is shipped with the service.
func (r *Renderer) Known(templateID string) bool {
	_, ok := r.templates[templateID]
	return ok
}

// Template functions

var titleCaser = cases.Title(language.English)

func titleCase(s string) string {
	return titleCaser.String(s)
}

func formatDate(v any) string {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format("Monday, January 2, 2006")
	case string:
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			return parsed.UTC().Format("Monday, January 2, 2006")
		}
		return t
	default:
		return fmt.Sprint(v)
	}
}
