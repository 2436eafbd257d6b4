package notify

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"text/template"
)

// Template elements every message template must define.
const (
	ElementSubject = "subject"
	ElementBody    = "body"
)

//go:embed templates/*.tmpl
var embedded embed.FS

// Defaults returns the templates shipped with the binary.
func Defaults() fs.FS {
	sub, err := fs.Sub(embedded, "templates")
	if err != nil {
		panic(err)
	}
	return sub
}

// View is a parsed message template.
type View struct {
	tmpl *template.Template
}

// ParseFS parses <name>.tmpl from fsys.
func ParseFS(fsys fs.FS, name string) (*View, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	tmpl, err := template.New(name).Option("missingkey=zero").ParseFS(fsys, name+".tmpl")
	if err != nil {
		return nil, err
	}
	return newView(tmpl)
}

// Parse parses template source text.
func Parse(name, src string) (*View, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	tmpl, err := template.New(name).Option("missingkey=zero").Parse(src)
	if err != nil {
		return nil, err
	}
	return newView(tmpl)
}

func newView(tmpl *template.Template) (*View, error) {
	for _, el := range []string{ElementSubject, ElementBody} {
		if tmpl.Lookup(el) == nil {
			return nil, fmt.Errorf("missing %s template", el)
		}
	}
	return &View{tmpl: tmpl}, nil
}

// Render executes one element of the view.
func (v *View) Render(element string, data map[string]string) (string, error) {
	var buf bytes.Buffer
	if err := v.tmpl.ExecuteTemplate(&buf, element, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// validateName keeps template names usable as file and object names.
func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("empty template name")
	}
	for _, c := range name {
		if !(c == '-' || c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')) {
			return fmt.Errorf("invalid character %q in template name: %s", c, name)
		}
	}
	return nil
}
