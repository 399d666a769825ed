// Package webui provides the embedded pages and static files for the
// seedtext web interface.
package webui

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
)

//go:embed static/* templates/*
var files embed.FS

var pageTmpl = template.Must(template.ParseFS(files, "templates/index.html"))

// Sections of the single page. The active one is shown on load.
const (
	SectionHome  = "home"
	SectionAbout = "about"
	SectionHow   = "how"
)

// Page carries everything the template needs.
type Page struct {
	Section     string
	Model       string
	Window      int
	VocabSize   int
	Words       int
	MaxWords    int
	Temperature float64
	Version     string
}

// Render writes the page for p.Section, defaulting to the home section.
func Render(w io.Writer, p Page) error {
	switch p.Section {
	case SectionHome, SectionAbout, SectionHow:
	case "":
		p.Section = SectionHome
	default:
		return fmt.Errorf("unknown section %q", p.Section)
	}
	return pageTmpl.Execute(w, p)
}

// StaticFS returns an http.FileSystem for the embedded static files.
func StaticFS() http.FileSystem {
	sub, err := fs.Sub(files, "static")
	if err != nil {
		panic(err)
	}
	return http.FS(sub)
}
