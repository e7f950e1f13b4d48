package renderers

import (
	"fmt"

	taskDB "document-generator-service/internal/document-manager/db"
)

// Output is a rendered document on disk.
type Output struct {
	Content     string
	FilePath    string
	ContentType string
}

// Renderer writes a document's content to a file under dir.
type Renderer interface {
	Render(doc taskDB.Document, dir string) (Output, error)
}

var Registry = make(map[string]Renderer)

func init() {
	RegisterRenderer(taskDB.FormatText, &TextRenderer{})
	RegisterRenderer(taskDB.FormatWord, &DocxRenderer{})
	RegisterRenderer(taskDB.FormatSpreadsheet, &XlsxRenderer{})
}

func RegisterRenderer(format string, renderer Renderer) {
	Registry[format] = renderer
}

func GetRenderer(format string) (Renderer, error) {
	renderer, exists := Registry[format]
	if !exists {
		return nil, fmt.Errorf("no renderer registered for format: %s", format)
	}
	return renderer, nil
}
