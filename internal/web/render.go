// Package web serves the storefront's HTML pages.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/kuitang/stylehaven/internal/catalog"
)

//go:embed templates
var templatesFS embed.FS

// Templates returns the embedded template tree (base.html plus pages/).
func Templates() fs.FS {
	sub, err := fs.Sub(templatesFS, "templates")
	if err != nil {
		panic(err)
	}
	return sub
}

// Renderer manages HTML template rendering with caching and custom functions.
type Renderer struct {
	templates map[string]*template.Template
	funcMap   template.FuncMap
	mu        sync.RWMutex
}

// NewRenderer parses base.html and combines it with every template under
// pages/.
func NewRenderer(fsys fs.FS) (*Renderer, error) {
	r := &Renderer{
		templates: make(map[string]*template.Template),
		funcMap:   createFuncMap(),
	}
	if err := r.parseTemplates(fsys); err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return r, nil
}

// Render executes the named page with data and writes it with status.
// The name is relative to pages/, e.g. "cart.html".
func (r *Renderer) Render(w http.ResponseWriter, status int, name string, data any) error {
	r.mu.RLock()
	tmpl, ok := r.templates[name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("template %q not found", name)
	}

	var buf strings.Builder
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		return fmt.Errorf("failed to execute template %q: %w", name, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := w.Write([]byte(buf.String()))
	return err
}

// RenderError renders the error page with the given HTTP status code and message.
func (r *Renderer) RenderError(w http.ResponseWriter, code int, message string) {
	data := ErrorPageData{
		PageData:  PageData{Title: http.StatusText(code)},
		Error:     message,
		ErrorCode: code,
	}
	if err := r.Render(w, code, "error.html", data); err == nil {
		return
	}
	http.Error(w, fmt.Sprintf("Error %d: %s", code, message), code)
}

func (r *Renderer) parseTemplates(fsys fs.FS) error {
	base, err := fs.ReadFile(fsys, "base.html")
	if err != nil {
		return fmt.Errorf("failed to read base template: %w", err)
	}

	pages, err := fs.Glob(fsys, "pages/*.html")
	if err != nil {
		return err
	}
	for _, p := range pages {
		content, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("failed to read template %s: %w", p, err)
		}
		tmpl, err := template.New("base").Funcs(r.funcMap).Parse(string(base))
		if err != nil {
			return fmt.Errorf("failed to parse base template for %s: %w", p, err)
		}
		if tmpl, err = tmpl.Parse(string(content)); err != nil {
			return fmt.Errorf("failed to parse template %s: %w", p, err)
		}
		r.mu.Lock()
		r.templates[path.Base(p)] = tmpl
		r.mu.Unlock()
	}

	if len(r.templates) == 0 {
		return fmt.Errorf("no page templates found")
	}
	return nil
}

func createFuncMap() template.FuncMap {
	return template.FuncMap{
		"price":      catalog.FormatPrice,
		"formatTime": formatTime,
		"year":       func() int { return time.Now().Year() },
	}
}

// formatTime formats a time.Time as a human-readable date string.
// Example: "Jan 2, 2006"
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("Jan 2, 2006")
}
