// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package render provides HTML template rendering for the storefront UI.
// It supports full-page and HTMX partial rendering, automatically detecting
// the request type via the HX-Request header.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

// PageData holds all data passed to page templates.
type PageData struct {
	Title     string         // Page title for <title> tag
	Section   string         // Active nav section ("home", "dashboard", "profile")
	Session   *session.Data  // Current user session (nil if anonymous)
	CSRFToken string         // CSRF token for forms and fetch/HTMX headers
	Data      map[string]any // Page-specific data
	Errors    map[string]string
	Flashes   []Flash // One-time notification messages
}

// Renderer handles template parsing and execution.
type Renderer struct {
	templates map[string]*template.Template
	funcMap   template.FuncMap
}

// standaloneTemplates render as full HTML pages without the base layout.
var standaloneTemplates = map[string]bool{
	"login":     true,
	"signup":    true,
	"login_2fa": true,
	"site_view": true,
}

// partialTemplates are shared blocks parsed into every layout page.
var partialTemplates = []string{"templates/partials.html"}

// New parses all templates from the embedded filesystem. Each page
// template is paired with the base layout and the shared partials. When
// devMode is true, pages load Tailwind and HTMX from a CDN; otherwise they
// reference the embedded static files.
func New(devMode bool) (*Renderer, error) {
	r := &Renderer{
		templates: make(map[string]*template.Template),
		funcMap: template.FuncMap{
			"isDev": func() bool {
				return devMode
			},
			"add": func(a, b int) int {
				return a + b
			},
			"date": func(t time.Time) string {
				return t.Format("Jan 2, 2006")
			},
			"truncate": func(s string, n int) string {
				runes := []rune(s)
				if len(runes) <= n {
					return s
				}
				return strings.TrimSpace(string(runes[:n])) + "…"
			},
			// deref safely dereferences a string pointer.
			"deref": func(s *string) string {
				if s == nil {
					return ""
				}
				return *s
			},
			// fieldError looks up a validation message by field path.
			"fieldError": func(errs map[string]string, field string) string {
				return errs[field]
			},
			// imageSrc lets inline data-URI images through the URL filter.
			"imageSrc": func(ref string) template.URL {
				if models.IsDataURI(ref) || models.IsImageURL(ref) {
					return template.URL(ref)
				}
				return ""
			},
			// card scopes a site for the site_card partial.
			"card": func(p *PageData, site models.Site) *PageData {
				return &PageData{CSRFToken: p.CSRFToken, Data: map[string]any{"Site": &site}}
			},
			// productField builds the form path of a product field.
			"productField": func(i int, field string) string {
				return fmt.Sprintf("products[%d].%s", i, field)
			},
		},
	}

	pages, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("glob templates: %w", err)
	}

	for _, page := range pages {
		name := strings.TrimPrefix(page, "templates/")
		if name == "base.html" || name == "partials.html" {
			continue
		}
		tmplName := strings.TrimSuffix(name, ".html")

		var tmpl *template.Template
		var parseErr error
		if standaloneTemplates[tmplName] {
			files := append([]string{page}, partialTemplates...)
			tmpl, parseErr = template.New(name).Funcs(r.funcMap).ParseFS(templateFS, files...)
		} else {
			files := append([]string{"templates/base.html", page}, partialTemplates...)
			tmpl, parseErr = template.New("base.html").Funcs(r.funcMap).ParseFS(templateFS, files...)
		}
		if parseErr != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, parseErr)
		}

		r.templates[tmplName] = tmpl
	}

	return r, nil
}

// Page renders a page with status 200.
func (rn *Renderer) Page(w http.ResponseWriter, r *http.Request, name string, data *PageData) {
	rn.PageStatus(w, r, http.StatusOK, name, data)
}

// PageStatus renders a full page, or only its "content" block for HTMX
// requests. Output is buffered so a template error never produces a
// half-written page.
func (rn *Renderer) PageStatus(w http.ResponseWriter, r *http.Request, status int, name string, data *PageData) {
	tmpl, ok := rn.templates[name]
	if !ok {
		http.Error(w, fmt.Sprintf("template %q not found", name), http.StatusInternalServerError)
		return
	}

	rn.prepare(w, r, data)

	execName := "base.html"
	if standaloneTemplates[name] {
		execName = name + ".html"
	}
	if IsHTMX(r) && !standaloneTemplates[name] {
		execName = "content"
	}

	rn.execute(w, status, tmpl, execName, data)
}

// Partial renders a named block of a page template, used to answer HTMX
// requests that swap a single element.
func (rn *Renderer) Partial(w http.ResponseWriter, r *http.Request, page, block string, data *PageData) {
	tmpl, ok := rn.templates[page]
	if !ok {
		http.Error(w, fmt.Sprintf("template %q not found", page), http.StatusInternalServerError)
		return
	}
	rn.prepare(w, r, data)
	rn.execute(w, http.StatusOK, tmpl, block, data)
}

// prepare fills the request-scoped fields of data.
func (rn *Renderer) prepare(w http.ResponseWriter, r *http.Request, data *PageData) {
	data.CSRFToken = middleware.CSRFTokenFromCtx(r.Context())
	if data.Session == nil {
		data.Session = middleware.SessionFromCtx(r.Context())
	}
	if data.Data == nil {
		data.Data = map[string]any{}
	}
	data.Flashes = append(data.Flashes, PopFlashes(w, r)...)
}

func (rn *Renderer) execute(w http.ResponseWriter, status int, tmpl *template.Template, name string, data *PageData) {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		slog.Error("template render failed", "template", name, "error", err)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// IsHTMX returns true if the request was made by HTMX (has HX-Request header).
func IsHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
