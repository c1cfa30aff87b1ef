package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"incorp/pkg/domain"
	"incorp/pkg/requestcontext"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static
var staticFS embed.FS

var pageNames = []string{"home", "register", "login", "client", "admin", "error"}

var funcs = template.FuncMap{
	"statuses":      domain.RequestStatuses,
	"businessTypes": domain.BusinessTypes,
	"date": func(t time.Time) string {
		return t.Format("Jan 2, 2006")
	},
}

// page is the data every template receives. Body is the page specific view
// model.
type page struct {
	Title   string
	Session Session
	Flash   *Flash
	Alert   string
	Body    any
}

type renderer struct {
	pages  map[string]*template.Template
	logger *slog.Logger
}

func newRenderer(logger *slog.Logger) (*renderer, error) {
	r := &renderer{pages: make(map[string]*template.Template, len(pageNames)), logger: logger}
	for _, name := range pageNames {
		t, err := template.New("layout.html").Funcs(funcs).
			ParseFS(templatesFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", name, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

// render executes into a buffer first so a template failure never leaves a
// half-written page.
func (r *renderer) render(w http.ResponseWriter, req *http.Request, status int, name string, data page) {
	t, ok := r.pages[name]
	if !ok {
		http.Error(w, "unknown page", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout.html", data); err != nil {
		ctx := req.Context()
		r.logger.ErrorContext(ctx, "template render failed",
			"page", name,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func staticFiles() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}
