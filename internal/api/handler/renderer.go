package handler

import (
	"embed"
	"html/template"
	"io"

	"github.com/labstack/echo/v4"
)

//go:embed templates/*.html
var templateFS embed.FS

// Renderer renders the console pages for echo's c.Render.
type Renderer struct {
	pages *template.Template
}

func NewRenderer() *Renderer {
	return &Renderer{pages: template.Must(template.ParseFS(templateFS, "templates/*.html"))}
}

func (r *Renderer) Render(w io.Writer, name string, data any, _ echo.Context) error {
	return r.pages.ExecuteTemplate(w, name, data)
}
