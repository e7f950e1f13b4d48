package renderers

import (
	"fmt"

	"github.com/gomutex/godocx"

	taskDB "document-generator-service/internal/document-manager/db"
)

const docxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// DocxRenderer writes the content as a single-paragraph Word document.
type DocxRenderer struct{}

func (r *DocxRenderer) Render(doc taskDB.Document, dir string) (Output, error) {
	path, err := outputPath(dir, doc, taskDB.FormatWord)
	if err != nil {
		return Output{}, err
	}
	content := Content(doc)

	document, err := godocx.NewDocument()
	if err != nil {
		return Output{}, fmt.Errorf("failed to create docx for document %d: %w", doc.ID, err)
	}
	document.AddParagraph(content)
	if err := document.SaveTo(path); err != nil {
		return Output{}, fmt.Errorf("failed to write docx document %q: %w", path, err)
	}
	return Output{Content: content, FilePath: path, ContentType: docxContentType}, nil
}
