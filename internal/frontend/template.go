package frontend

import (
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/labstack/echo/v4"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const viewsPattern = "views/*.html"

//go:embed views/*.html
var templateFS embed.FS

//go:embed views/icon.svg
var assetsFS embed.FS

// Template renders pages and htmx fragments from the embedded views.
type Template struct {
	templates *template.Template
}

func (t *Template) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	return t.templates.ExecuteTemplate(w, name, data)
}

var titleCaser = cases.Title(language.English)

func newTemplate() *Template {
	funcs := template.FuncMap{
		"percent": func(v float32) string {
			return fmt.Sprintf("%.1f%%", v*100)
		},
		"title": func(s string) string {
			return titleCaser.String(s)
		},
	}
	return &Template{
		templates: template.Must(template.New("").Funcs(funcs).ParseFS(templateFS, viewsPattern)),
	}
}
