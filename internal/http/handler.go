package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nurpe/sid-bonds/internal/service"
)

type Handler struct {
	guarantees *service.GuaranteeService
	contracts  *service.ContractService
	orders     *service.OrderService
	activities *service.ActivityService
	documents  *service.DocumentService
	log        zerolog.Logger
}

type Services struct {
	Guarantees *service.GuaranteeService
	Contracts  *service.ContractService
	Orders     *service.OrderService
	Activities *service.ActivityService
	Documents  *service.DocumentService
}

func NewHandler(services Services, log zerolog.Logger) *Handler {
	return &Handler{
		guarantees: services.Guarantees,
		contracts:  services.Contracts,
		orders:     services.Orders,
		activities: services.Activities,
		documents:  services.Documents,
		log:        log,
	}
}

func (h *Handler) Register(router *gin.Engine, authMiddleware gin.HandlerFunc) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	protected := router.Group("/")
	protected.Use(authMiddleware)

	guarantees := protected.Group("/guarantees")
	guarantees.POST("", h.createGuarantee)
	guarantees.GET("", h.listGuarantees)
	guarantees.DELETE("", h.deleteGuarantees)
	guarantees.GET("/export", h.exportGuarantees)
	guarantees.POST("/actions/:action", h.runGuaranteeAction)
	guarantees.GET("/:id", h.getGuarantee)
	guarantees.PATCH("/:id", h.updateGuarantee)
	guarantees.GET("/:id/orders-action", h.guaranteeOrdersAction)
	guarantees.PUT("/:id/document", h.uploadDocument)
	guarantees.GET("/:id/document", h.downloadDocument)
	guarantees.GET("/:id/summary.pdf", h.summaryPDF)
	guarantees.GET("/:id/notes", h.listNotes)
	guarantees.GET("/:id/activities", h.listActivities)

	protected.POST("/activities/:id/done", h.markActivityDone)

	contracts := protected.Group("/contracts")
	contracts.POST("", h.createContract)
	contracts.GET("/:id", h.getContract)
	contracts.PATCH("/:id", h.updateContract)
	contracts.GET("/:id/orders-action", h.contractOrdersAction)

	protected.PUT("/orders/:id", h.upsertOrder)
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidState), errors.Is(err, service.ErrDeleteForbidden):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrValidation):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func parseIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param(name)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

func parseIDs(raw []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, item := range raw {
		id, err := uuid.Parse(strings.TrimSpace(item))
		if err != nil {
			return nil, service.ErrInvalidInput
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseOptionalID(raw *string) (*uuid.UUID, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	id, err := uuid.Parse(strings.TrimSpace(*raw))
	if err != nil {
		return nil, service.ErrInvalidInput
	}
	return &id, nil
}

// parseNullableID distinguishes an absent field (nil) from an explicit null
// (pointer to nil).
func parseNullableID(raw json.RawMessage) (**uuid.UUID, error) {
	if raw == nil {
		return nil, nil
	}
	var value *string
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, service.ErrInvalidInput
	}
	id, err := parseOptionalID(value)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func parseNullableDate(raw json.RawMessage) (**time.Time, error) {
	if raw == nil {
		return nil, nil
	}
	var value *string
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, service.ErrInvalidInput
	}
	date, err := parseOptionalDate(value)
	if err != nil {
		return nil, err
	}
	return &date, nil
}

func parseOptionalDate(raw *string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	parsed, err := parseDate(*raw)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, service.ErrInvalidInput
	}
	layouts := []string{
		time.RFC3339,
		"2006-01-02",
		"2006-01-02T15:04:05",
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, service.ErrInvalidInput
}

func sendFile(c *gin.Context, contentType, fileName string, content []byte) {
	c.Header("Content-Type", contentType)
	c.Header("Content-Disposition", "attachment; filename=\""+fileName+"\"")
	c.Data(http.StatusOK, contentType, content)
}
