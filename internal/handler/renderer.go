package handler

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"sync"
)

// Renderer manages template parsing and rendering for the marketing site.
// Every page shares the single "public" layout.
//
// Templates are organized as:
//   - layouts/public.html - base layout (head, header, footer)
//   - components/*.html - reusable fragments (nav, consent banner, wizard)
//   - pages/*.html - one file per page, each defining "title" and "content"
type Renderer struct {
	templates map[string]*template.Template
	fsys      fs.FS
	logger    *slog.Logger
	isDev     bool
	mu        sync.RWMutex
}

// NewRenderer creates a renderer from a template filesystem. In dev mode
// templates are reloaded on every render, so an os.DirFS over the source
// tree gives hot reload.
func NewRenderer(fsys fs.FS, logger *slog.Logger, isDev bool) (*Renderer, error) {
	r := &Renderer{
		templates: make(map[string]*template.Template),
		fsys:      fsys,
		logger:    logger,
		isDev:     isDev,
	}

	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Renderer) load() error {
	componentFiles, err := fs.Glob(r.fsys, "components/*.html")
	if err != nil {
		return fmt.Errorf("failed to glob components: %w", err)
	}

	layout := template.New("public").Funcs(TemplateFuncs())
	layout, err = layout.ParseFS(r.fsys, "layouts/public.html")
	if err != nil {
		return fmt.Errorf("failed to parse public layout: %w", err)
	}
	if len(componentFiles) > 0 {
		layout, err = layout.ParseFS(r.fsys, componentFiles...)
		if err != nil {
			return fmt.Errorf("failed to parse components: %w", err)
		}
	}

	pages, err := fs.Glob(r.fsys, "pages/*.html")
	if err != nil {
		return fmt.Errorf("failed to glob pages: %w", err)
	}

	for _, page := range pages {
		pageTmpl, err := layout.Clone()
		if err != nil {
			return fmt.Errorf("failed to clone layout for %s: %w", page, err)
		}

		pageTmpl, err = pageTmpl.ParseFS(r.fsys, page)
		if err != nil {
			return fmt.Errorf("failed to parse page %s: %w", page, err)
		}

		name := strings.TrimSuffix(path.Base(page), path.Ext(page))
		r.templates[name] = pageTmpl
	}

	r.logger.Info("templates loaded", "count", len(r.templates))
	return nil
}

// Reload reparses all templates. Useful for development.
func (r *Renderer) Reload() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.templates = make(map[string]*template.Template)
	return r.load()
}

// Render renders a page template to an io.Writer.
func (r *Renderer) Render(w io.Writer, name string, data interface{}) error {
	if r.isDev {
		if err := r.Reload(); err != nil {
			return fmt.Errorf("template reload failed: %w", err)
		}
	}

	r.mu.RLock()
	tmpl, ok := r.templates[name]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("template %q not found", name)
	}

	return tmpl.ExecuteTemplate(w, "public", data)
}

// RenderHTTP renders a page directly to an http.ResponseWriter. The page
// is rendered to a buffer first so template errors never produce a half
// written 200 response.
func (r *Renderer) RenderHTTP(w http.ResponseWriter, status int, name string, data interface{}) {
	var buf bytes.Buffer
	if err := r.Render(&buf, name, data); err != nil {
		r.logger.Error("template execution failed", "name", name, "error", err)
		http.Error(w, "Template execution failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
