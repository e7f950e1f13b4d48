package renderers

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	taskDB "document-generator-service/internal/document-manager/db"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// XlsxRenderer writes the content into cell A1 of a workbook. A1 gets a solid
// black fill when the document references an entity.
type XlsxRenderer struct{}

func (r *XlsxRenderer) Render(doc taskDB.Document, dir string) (Output, error) {
	path, err := outputPath(dir, doc, taskDB.FormatSpreadsheet)
	if err != nil {
		return Output{}, err
	}
	content := Content(doc)

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	if err := f.SetCellValue(sheet, "A1", content); err != nil {
		return Output{}, fmt.Errorf("failed to set content cell: %w", err)
	}
	if doc.Entity != 0 {
		style, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Color: []string{"000000"}, Pattern: 1},
		})
		if err != nil {
			return Output{}, fmt.Errorf("failed to create fill style: %w", err)
		}
		if err := f.SetCellStyle(sheet, "A1", "A1", style); err != nil {
			return Output{}, fmt.Errorf("failed to apply fill style: %w", err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return Output{}, fmt.Errorf("failed to write xlsx document %q: %w", path, err)
	}
	return Output{Content: content, FilePath: path, ContentType: xlsxContentType}, nil
}
