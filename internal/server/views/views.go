// Package views holds the server rendered HTML pages.
package views

import (
	"embed"
	"html/template"

	"github.com/shopspring/decimal"

	"github.com/mamadbah2/fruitstock/internal/domain/models"
)

//go:embed templates/*.html
var files embed.FS

// Funcs are the helpers available to every page.
var Funcs = template.FuncMap{
	"quantity": models.FormatQuantity,
	"cents": func(cents int64) string {
		return decimal.New(cents, -2).StringFixed(2)
	},
}

// Templates parses every embedded page.
func Templates() (*template.Template, error) {
	return template.New("").Funcs(Funcs).ParseFS(files, "templates/*.html")
}
