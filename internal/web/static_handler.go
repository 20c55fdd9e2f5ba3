package web

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"sync"

	"github.com/kuitang/stylehaven/internal/catalog"
)

//go:embed content
var contentFS embed.FS

// StaticPageData contains data for static pages.
type StaticPageData struct {
	PageData
	Content template.HTML
}

// StaticHandler serves markdown pages (terms, about) rendered once and
// cached.
type StaticHandler struct {
	renderer *Renderer
	src      fs.FS
	cache    map[string]template.HTML
	cacheMu  sync.RWMutex
	page     func(r *http.Request, title string) PageData
}

// NewStaticHandler creates a static page handler over the embedded
// content. page builds the shared page chrome.
func NewStaticHandler(renderer *Renderer, page func(r *http.Request, title string) PageData) *StaticHandler {
	src, err := fs.Sub(contentFS, "content")
	if err != nil {
		panic(err)
	}
	return &StaticHandler{
		renderer: renderer,
		src:      src,
		cache:    make(map[string]template.HTML),
		page:     page,
	}
}

// RegisterRoutes registers static page routes on the given mux, each
// wrapped by wrap.
func (h *StaticHandler) RegisterRoutes(mux *http.ServeMux, wrap func(http.Handler) http.Handler) {
	mux.Handle("GET /terms", wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.servePage(w, r, "terms", "Terms and Conditions")
	})))
	mux.Handle("GET /about", wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.servePage(w, r, "about", "About")
	})))
}

func (h *StaticHandler) servePage(w http.ResponseWriter, r *http.Request, slug, title string) {
	content, err := h.render(slug)
	if err != nil {
		h.renderer.RenderError(w, http.StatusNotFound, "Page not found")
		return
	}
	data := StaticPageData{PageData: h.page(r, title), Content: content}
	if err := h.renderer.Render(w, http.StatusOK, "page.html", data); err != nil {
		h.renderer.RenderError(w, http.StatusInternalServerError, "Failed to render page")
	}
}

func (h *StaticHandler) render(slug string) (template.HTML, error) {
	h.cacheMu.RLock()
	content, ok := h.cache[slug]
	h.cacheMu.RUnlock()
	if ok {
		return content, nil
	}

	md, err := fs.ReadFile(h.src, slug+".md")
	if err != nil {
		return "", err
	}
	content = catalog.RenderMarkdown(string(md))

	h.cacheMu.Lock()
	h.cache[slug] = content
	h.cacheMu.Unlock()
	return content, nil
}
