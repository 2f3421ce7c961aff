package handlers

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"html/template"
	"net/http"
	"sort"
	"strings"
)

//go:embed openapi.json
var openAPISpec []byte

// docsOperation is one row of the plain-HTML route index shown before Redoc loads.
type docsOperation struct {
	Method  string
	Path    string
	Summary string
}

type docsPage struct {
	Title       string
	Version     string
	Description string
	Operations  []docsOperation
}

var docsTemplate = template.Must(template.New("docs").Parse(`<!DOCTYPE html>
<html lang="en">
  <head>
    <meta charset="utf-8" />
    <title>{{.Title}} {{.Version}}</title>
    <meta name="description" content="{{.Description}}" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <style>
      body { margin: 0; padding: 0; font-family: sans-serif; }
      redoc { display: block; height: 100vh; }
      noscript table { margin: 1rem; border-collapse: collapse; }
      noscript td { padding: 0.2rem 0.6rem; }
    </style>
  </head>
  <body>
    <noscript>
      <h1>{{.Title}} {{.Version}}</h1>
      <p>{{.Description}}</p>
      <table>
        {{- range .Operations}}
        <tr><td>{{.Method}}</td><td><code>{{.Path}}</code></td><td>{{.Summary}}</td></tr>
        {{- end}}
      </table>
    </noscript>
    <redoc spec-url="/v1/openapi.json"></redoc>
    <script src="https://cdn.jsdelivr.net/npm/redoc@2.2.0/bundles/redoc.standalone.js"></script>
  </body>
</html>`))

var docsHTML = mustRenderDocs(openAPISpec)

func mustRenderDocs(raw []byte) []byte {
	page, err := parseDocsPage(raw)
	if err != nil {
		panic("handlers: invalid embedded openapi.json: " + err.Error())
	}
	var buf bytes.Buffer
	if err := docsTemplate.Execute(&buf, page); err != nil {
		panic("handlers: render docs: " + err.Error())
	}
	return buf.Bytes()
}

func parseDocsPage(raw []byte) (docsPage, error) {
	var doc struct {
		Info struct {
			Title       string `json:"title"`
			Version     string `json:"version"`
			Description string `json:"description"`
		} `json:"info"`
		Paths map[string]map[string]struct {
			Summary string `json:"summary"`
		} `json:"paths"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return docsPage{}, err
	}
	page := docsPage{Title: doc.Info.Title, Version: doc.Info.Version, Description: doc.Info.Description}
	for path, ops := range doc.Paths {
		for method, op := range ops {
			page.Operations = append(page.Operations, docsOperation{Method: strings.ToUpper(method), Path: path, Summary: op.Summary})
		}
	}
	sort.Slice(page.Operations, func(i, j int) bool {
		a, b := page.Operations[i], page.Operations[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		return a.Method < b.Method
	})
	return page, nil
}

func (a *App) OpenAPIJSON(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(openAPISpec)
}

func (a *App) OpenAPIDocs(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(docsHTML)
}
