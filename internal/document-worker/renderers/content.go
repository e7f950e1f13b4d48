package renderers

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	taskDB "document-generator-service/internal/document-manager/db"
)

const contentTemplate = "Se remite a Sr(a) {{nombre}}. la disposición de presentarse en la entidad {{entidad}} con su vehículo de placa {{placa}}."

// Content fills the notice template with the document's fields.
func Content(doc taskDB.Document) string {
	return strings.NewReplacer(
		"{{nombre}}", doc.Name,
		"{{entidad}}", strconv.Itoa(doc.Entity),
		"{{placa}}", doc.Plate,
	).Replace(contentTemplate)
}

// outputPath creates dir and returns <dir>/<name>.<ext>, with the name reduced
// to a single path element.
func outputPath(dir string, doc taskDB.Document, ext string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory %q: %w", dir, err)
	}
	name := strings.NewReplacer("/", "_", "\\", "_").Replace(strings.TrimSpace(doc.Name))
	if name == "" || name == "." || name == ".." {
		name = "documento_" + strconv.FormatUint(uint64(doc.ID), 10)
	}
	return filepath.Join(dir, name+"."+ext), nil
}
