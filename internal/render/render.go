package render

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/valyala/bytebufferpool"
)

//go:embed templates/*.html
var embedFS embed.FS
var embedTemplate *template.Template
var templateDir string
var globalVars map[string]any

func Initialize(gVars map[string]any, tmplDir string) error {
	globalVars = gVars
	templateDir = ""
	if tmplDir != "" {
		info, err := os.Stat(tmplDir)
		if err != nil {
			return fmt.Errorf("template directory does not exist: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("template path is not a directory: %s", tmplDir)
		}
		templateDir = tmplDir
	}

	if err := initEmbeddedTemplates(); err != nil {
		return err
	}
	return nil
}

// initEmbeddedTemplates parses the embedded templates, named by their path
// relative to the templates directory (e.g. "login.html").
func initEmbeddedTemplates() error {
	t := template.New("")
	err := fs.WalkDir(embedFS, "templates", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".html") {
			return nil
		}
		rel := strings.TrimPrefix(path, "templates/")
		content, err := embedFS.ReadFile(path)
		if err != nil {
			return err
		}
		_, err = t.New(rel).Parse(string(content))
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to parse embedded templates: %w", err)
	}
	embedTemplate = t
	return nil
}

// RenderHTML executes the named template with the global variables merged
// under vars. A template in the configured directory takes precedence over the
// embedded one; if it cannot be read, parsed or executed the embedded template
// is used.
func RenderHTML(templateName string, vars map[string]any) (string, error) {
	if embedTemplate == nil {
		if err := initEmbeddedTemplates(); err != nil {
			return "", err
		}
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	mergedVars := make(map[string]any, len(globalVars)+len(vars))
	for k, v := range globalVars {
		mergedVars[k] = v
	}
	for k, v := range vars {
		mergedVars[k] = v
	}

	if !strings.HasSuffix(templateName, ".html") {
		templateName += ".html"
	}

	if templateDir != "" {
		filePath := filepath.Join(templateDir, templateName)
		if contents, err := os.ReadFile(filePath); err == nil {
			if t, err := template.New(templateName).Parse(string(contents)); err == nil {
				if err := t.ExecuteTemplate(buf, templateName, mergedVars); err == nil {
					return buf.String(), nil
				}
				buf.Reset()
			}
		}
		slog.Debug("render template from directory failed, falling back to embedded", "path", filePath)
	}

	if err := embedTemplate.ExecuteTemplate(buf, templateName, mergedVars); err != nil {
		return "", err
	}
	return buf.String(), nil
}
