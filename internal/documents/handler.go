package documents

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/voltwise/voltwise/internal/auth"
	"github.com/voltwise/voltwise/internal/workflow/model"
)

// Handler exposes document upload and retrieval over HTTP.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Register(api *gin.RouterGroup) {
	api.POST("/documents", h.handleUpload)
	api.GET("/documents", h.handleList)
	api.GET("/documents/:id", h.handleDownload)
	api.DELETE("/documents/:id", h.handleDelete)
}

func (h *Handler) handleUpload(c *gin.Context) {
	actor, ok := auth.ActorFromContext(c.Request.Context())
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	defer file.Close()

	in := UploadInput{
		Filename: header.Filename,
		Reader:   file,
		Size:     header.Size,
		MimeType: header.Header.Get("Content-Type"),
		Category: DocumentCategory(c.PostForm("category")),
	}
	if raw := c.PostForm("plantId"); raw != "" {
		plantID, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid plantId"})
			return
		}
		in.PlantID = &plantID
	}

	doc, err := h.service.Upload(c.Request.Context(), actor, in)
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "Document upload failed", "error", err)
		var validation *model.ValidationError
		if errors.As(err, &validation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
		return
	}
	c.JSON(http.StatusCreated, doc)
}

func (h *Handler) handleList(c *gin.Context) {
	actor, ok := auth.ActorFromContext(c.Request.Context())
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var plantID *uuid.UUID
	if raw := c.Query("plantId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid plantId"})
			return
		}
		plantID = &id
	}

	docs, err := h.service.ListDocuments(c.Request.Context(), actor, plantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, docs)
}

func (h *Handler) handleDownload(c *gin.Context) {
	actor, ok := auth.ActorFromContext(c.Request.Context())
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid document ID"})
		return
	}

	reader, contentType, err := h.service.Download(c.Request.Context(), actor, id)
	if err != nil {
		var notFound *model.NotFoundError
		if errors.As(err, &notFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "download failed"})
		return
	}
	defer reader.Close()

	c.Header("Content-Type", contentType)
	c.Status(http.StatusOK)
	io.Copy(c.Writer, reader)
}

func (h *Handler) handleDelete(c *gin.Context) {
	actor, ok := auth.ActorFromContext(c.Request.Context())
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid document ID"})
		return
	}

	if err := h.service.Delete(c.Request.Context(), actor, id); err != nil {
		var notFound *model.NotFoundError
		if errors.As(err, &notFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}
