package export

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
	"time"
)

// SafeHTML marks an already-sanitized string as safe for inlining.
func SafeHTML(s interface{}) template.HTML {
	switch v := s.(type) {
	case string:
		return template.HTML(v)
	case template.HTML:
		return v
	default:
		return template.HTML("")
	}
}

//go:embed templates/*.html
var templateFS embed.FS

var thoughtTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"lower": strings.ToLower,
		"formatDate": func(t time.Time, layout string) string {
			return t.Format(layout)
		},
		"safeHTML": SafeHTML,
	}

	templateContent, err := templateFS.ReadFile("templates/thought.html")
	if err != nil {
		thoughtTemplate = template.Must(template.New("thought").Funcs(funcMap).Parse(fallbackTemplate))
		return
	}

	thoughtTemplate = template.Must(template.New("thought").Funcs(funcMap).Parse(string(templateContent)))
}

// TemplateData holds data for print rendering.
type TemplateData struct {
	Title         string
	ContentHTML   template.HTML
	Author        string
	IdeaName      string
	DatePublished time.Time
}

// RenderThoughtHTML renders the print template with provided data.
func RenderThoughtHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := thoughtTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// fallbackTemplate is used if the embedded template fails to load.
const fallbackTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: Georgia, serif; line-height: 1.6; max-width: 800px; margin: 2rem auto; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
  </style>
</head>
<body>
  <h1>{{.Title}}</h1>
  <div class="meta">{{.IdeaName}} | {{.Author}} | {{.DatePublished.Format "Jan 2, 2006"}}</div>
  <div>{{.ContentHTML | safeHTML}}</div>
</body>
</html>`
