package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	taskDB "document-generator-service/internal/document-manager/db"
	"document-generator-service/internal/document-worker/renderers"
)

// DocumentGenerator renders a stored document on demand.
type DocumentGenerator interface {
	Generate(ctx context.Context, documentID uint) (renderers.Output, error)
}

type DocumentHandler struct {
	DB        *gorm.DB
	Generator DocumentGenerator
	log       zerolog.Logger
}

func NewDocumentHandler(db *gorm.DB, generator DocumentGenerator, logger zerolog.Logger) *DocumentHandler {
	return &DocumentHandler{DB: db, Generator: generator, log: logger.With().Str("handler", "documents").Logger()}
}

type CreateDocumentRequest struct {
	Name   string `json:"nombre"`
	Plate  string `json:"placa"`
	Entity int    `json:"entidad"`
	Format string `json:"formato"`
}

// CreateDocument stores a document, renders it and answers with the file.
func (h *DocumentHandler) CreateDocument(ctx context.Context, c *app.RequestContext) {
	var req CreateDocumentRequest
	if !bindBody(c, documentRequestSchema, &req) {
		return
	}

	doc := taskDB.Document{Name: req.Name, Plate: req.Plate, Entity: req.Entity, Format: req.Format}
	if result := h.DB.WithContext(ctx).Create(&doc); result.Error != nil {
		c.JSON(http.StatusInternalServerError, utils.H{"error": "Failed to create document: " + result.Error.Error()})
		return
	}

	out, err := h.Generator.Generate(ctx, doc.ID)
	if err != nil {
		h.log.Error().Err(err).Uint("document_id", doc.ID).Msg("Generation on create failed")
		respondError(c, "Failed to generate document", err)
		return
	}
	body, err := os.ReadFile(out.FilePath)
	if err != nil {
		c.JSON(http.StatusInternalServerError, utils.H{"error": "Failed to read generated file: " + err.Error()})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(out.FilePath)))
	c.Data(http.StatusOK, out.ContentType, body)
}

func (h *DocumentHandler) GetDocumentByID(ctx context.Context, c *app.RequestContext) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var doc taskDB.Document
	if err := h.DB.WithContext(ctx).First(&doc, id).Error; err != nil {
		respondError(c, "Document not found", err)
		return
	}
	c.JSON(http.StatusOK, doc)
}
