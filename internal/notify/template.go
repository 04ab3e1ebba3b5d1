package notify

import (
	"bytes"
	"errors"
	"text/template"
)

const DefaultTemplate = `[Panel Alert {{.Severity}}]
Panel: {{.PanelID}}
Sector: {{.SectorID}}
Type: {{.Type}}
Value: {{.Value}}
Raised: {{.RaisedAt}}
{{.Message}}
Suggestion: {{.Suggestion}}`

// TemplateData provides fields for rendering notification content.
type TemplateData struct {
	AlertID    string
	PanelID    string
	SectorID   string
	Type       string
	Severity   string
	Message    string
	Value      string
	RaisedAt   string
	Suggestion string
}

// Template renders notification content.
type Template struct {
	tpl *template.Template
}

// NewTemplate parses a notification template, falling back to DefaultTemplate.
func NewTemplate(tpl string) (*Template, error) {
	if tpl == "" {
		tpl = DefaultTemplate
	}
	parsed, err := template.New("panel-alert").Parse(tpl)
	if err != nil {
		return nil, err
	}
	return &Template{tpl: parsed}, nil
}

// Render applies the template to data.
func (t *Template) Render(data TemplateData) (string, error) {
	if t == nil || t.tpl == nil {
		return "", errors.New("alert template: nil")
	}
	var buf bytes.Buffer
	if err := t.tpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
