package export

import (
	"bytes"
	"html/template"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var (
	markdownInstance goldmark.Markdown
	markdownOnce     sync.Once
)

func markdown() goldmark.Markdown {
	markdownOnce.Do(func() {
		markdownInstance = goldmark.New(goldmark.WithExtensions(extension.Strikethrough, extension.Linkify))
	})
	return markdownInstance
}

// markdownHTML converts one update line. Raw HTML in the input is not
// passed through.
func markdownHTML(src string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := markdown().Convert([]byte(src), &buf); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

// templateBlock is a Block with its update lines already converted.
type templateBlock struct {
	Block
	UpdateHTML []template.HTML
}

var documentTemplate = template.Must(template.New("document").Funcs(template.FuncMap{
	"kind": func(b templateBlock) string { return b.Kind.String() },
}).Parse(documentHTML))

func renderDocumentHTML(blocks []Block) (string, error) {
	data := make([]templateBlock, 0, len(blocks))
	for _, b := range blocks {
		tb := templateBlock{Block: b}
		for _, u := range b.Updates {
			h, err := markdownHTML(UpdateLine(u))
			if err != nil {
				return "", err
			}
			tb.UpdateHTML = append(tb.UpdateHTML, h)
		}
		data = append(data, tb)
	}
	var buf bytes.Buffer
	if err := documentTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const documentHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <style>
    @page { size: A4; margin: 2cm; }
    body { font-family: Helvetica, Arial, sans-serif; font-size: 11pt; line-height: 1.45; margin: 0; }
    h1 { font-size: 20pt; margin: 0 0 0.2rem; }
    h2 { font-size: 12pt; margin: 0.9rem 0 0.2rem; }
    .byline, .footer { color: #5a5a5a; font-style: italic; font-size: 9pt; }
    .update p { margin: 0 0 0.3rem; }
    p.body { white-space: pre-wrap; margin: 0; }
  </style>
</head>
<body>
{{range .}}{{$k := kind .}}
  {{if eq $k "title"}}<h1>{{.Text}}</h1>
  {{else if eq $k "byline"}}<div class="byline">{{.Text}}</div>
  {{else if eq $k "section"}}<h2>{{.Label}}</h2><p class="body">{{.Text}}</p>
  {{else if eq $k "list"}}<h2>{{.Label}}</h2>{{if .Items}}<ul>{{range .Items}}<li>{{.}}</li>{{end}}</ul>{{else}}<p class="body">-</p>{{end}}
  {{else if eq $k "updates"}}<h2>{{.Label}}</h2>{{range .UpdateHTML}}<div class="update">{{.}}</div>{{end}}
  {{else if eq $k "footer"}}<div class="footer">{{.Text}}</div>
  {{end}}
{{end}}
</body>
</html>`
