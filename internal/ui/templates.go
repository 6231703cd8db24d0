package ui

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/information-sharing-networks/userportal/internal/formatters"
)

//go:embed templates/*.html
var templateFiles embed.FS

//go:embed static
var staticFiles embed.FS

func staticFS() fs.FS {
	sub, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

var templateFuncs = template.FuncMap{
	"formatStatus": formatters.FormatStatus,
	"formatDate":   formatters.FormatDate,
}

// templates holds one template set per page, each combined with the shared layout
type templates struct {
	pages map[string]*template.Template
}

var pageNames = []string{"login", "register", "users", "user"}

func parseTemplates() (*templates, error) {
	t := &templates{pages: make(map[string]*template.Template)}

	for _, name := range pageNames {
		page, err := template.New("layout.html").Funcs(templateFuncs).ParseFS(templateFiles,
			"templates/layout.html",
			"templates/"+name+".html",
		)
		if err != nil {
			return nil, fmt.Errorf("could not parse %s template: %w", name, err)
		}
		t.pages[name] = page
	}
	return t, nil
}

// render executes the page into a buffer first so a template error never produces a half written page
func (t *templates) render(w http.ResponseWriter, status int, name string, data pageData) error {
	page, ok := t.pages[name]
	if !ok {
		return fmt.Errorf("unknown page %s", name)
	}

	var buf bytes.Buffer
	if err := page.ExecuteTemplate(&buf, "layout.html", data); err != nil {
		return fmt.Errorf("could not render %s: %w", name, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
