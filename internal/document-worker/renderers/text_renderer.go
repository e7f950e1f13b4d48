package renderers

import (
	"fmt"
	"os"

	taskDB "document-generator-service/internal/document-manager/db"
)

// TextRenderer writes the content as a plain text file.
type TextRenderer struct{}

func (r *TextRenderer) Render(doc taskDB.Document, dir string) (Output, error) {
	path, err := outputPath(dir, doc, taskDB.FormatText)
	if err != nil {
		return Output{}, err
	}
	content := Content(doc)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return Output{}, fmt.Errorf("failed to write text document %q: %w", path, err)
	}
	return Output{Content: content, FilePath: path, ContentType: "text/plain"}, nil
}
