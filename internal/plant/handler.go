package plant

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/voltwise/voltwise/internal/auth"
)

// Handler exposes the plant registry over HTTP.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Register(api *gin.RouterGroup) {
	api.POST("/plants", h.handleCreate)
	api.GET("/plants", h.handleList)
	api.GET("/plants/:id", h.handleGet)
}

type createPlantRequest struct {
	Name          string  `json:"name" binding:"required"`
	PlantType     string  `json:"plantType" binding:"required"`
	PowerKw       float64 `json:"powerKw" binding:"required,gt=0"`
	ProtectedArea bool    `json:"protectedArea"`
	Municipality  string  `json:"municipality"`
	Region        string  `json:"region"`
}

func (h *Handler) handleCreate(c *gin.Context) {
	actor, ok := auth.ActorFromContext(c.Request.Context())
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req createPlantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid plant body: " + err.Error()})
		return
	}

	p := &Plant{
		TenantID:      actor.TenantID,
		Name:          req.Name,
		PlantType:     req.PlantType,
		PowerKw:       req.PowerKw,
		ProtectedArea: req.ProtectedArea,
		Municipality:  req.Municipality,
		Region:        req.Region,
	}
	if err := h.service.CreatePlant(c.Request.Context(), p); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *Handler) handleList(c *gin.Context) {
	actor, ok := auth.ActorFromContext(c.Request.Context())
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	plants, err := h.service.ListPlants(c.Request.Context(), actor.TenantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, plants)
}

func (h *Handler) handleGet(c *gin.Context) {
	actor, ok := auth.ActorFromContext(c.Request.Context())
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid plant ID"})
		return
	}

	p, err := h.service.GetPlant(c.Request.Context(), id, actor.TenantID)
	if err != nil {
		if errors.Is(err, ErrPlantNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, p)
}
