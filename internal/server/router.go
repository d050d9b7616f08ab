// Package server wires the floor layout API over HTTP: draft load/save,
// activation, and the table-status views consumed by front of house.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/TableCraftLab/tablecraft/backend/internal/activation"
	"github.com/TableCraftLab/tablecraft/backend/internal/layout"
	"github.com/TableCraftLab/tablecraft/backend/internal/registry"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const userIDContextKey = "tablecraft_user_id"

var (
	errMissingTokenValidator = errors.New("token validator dependency required")
	errMissingWorkflow       = errors.New("activation workflow dependency required")
	errMissingRegistry       = errors.New("status registry dependency required")
	errInvalidAuthorization  = errors.New("authorization header missing or invalid")
)

// TokenValidator validates a bearer token and returns its subject.
type TokenValidator interface {
	ValidateToken(token string) (string, error)
}

// StatusRegistry is the registry surface the router consumes.
type StatusRegistry interface {
	Statuses(ctx context.Context, floorID string) ([]registry.TableStatusRow, error)
	SetOccupancy(ctx context.Context, floorID, tableID string, status layout.TableStatus) error
}

// Dependencies lists everything the HTTP handler needs.
type Dependencies struct {
	TokenValidator TokenValidator
	Workflow       *activation.Service
	Registry       StatusRegistry
	Logger         *zap.Logger
}

// NewHTTPHandler builds the Gin router for the layout API.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.TokenValidator == nil {
		return nil, errMissingTokenValidator
	}
	if deps.Workflow == nil {
		return nil, errMissingWorkflow
	}
	if deps.Registry == nil {
		return nil, errMissingRegistry
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type", layout.VersionHeader},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		tokens:   deps.TokenValidator,
		workflow: deps.Workflow,
		registry: deps.Registry,
		logger:   logger,
	}

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.GET("/floor/layout/draft", handler.handleGetDraft)
	protected.POST("/floor/layout/draft", handler.handleSaveDraft)
	protected.GET("/floor/layout/active", handler.handleGetActive)
	protected.PUT("/floor/layout/activate", handler.handleActivate)
	// POST is accepted as an alias for PUT for older clients.
	protected.POST("/floor/layout/activate", handler.handleActivate)
	protected.GET("/floor/tables/status", handler.handleTableStatuses)
	protected.POST("/floor/tables/status", handler.handleSetOccupancy)

	return router, nil
}

type httpHandler struct {
	tokens   TokenValidator
	workflow *activation.Service
	registry StatusRegistry
	logger   *zap.Logger
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	subject, err := h.tokens.ValidateToken(token)
	if err != nil {
		h.logger.Warn("token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(userIDContextKey, subject)
	c.Next()
}

func floorIDFromQuery(c *gin.Context) (layout.FloorID, bool) {
	floorID, err := layout.NewFloorID(c.Query("floorId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_FLOOR_ID"})
		return "", false
	}
	return floorID, true
}

type draftResponsePayload struct {
	Layout  layout.Document `json:"layout"`
	Version int64           `json:"version"`
}

func (h *httpHandler) handleGetDraft(c *gin.Context) {
	floorID, ok := floorIDFromQuery(c)
	if !ok {
		return
	}

	doc, version, err := h.workflow.GetDraft(c.Request.Context(), floorID)
	if err != nil {
		if errors.Is(err, activation.ErrLayoutNotFound) || errors.Is(err, activation.ErrNoDraft) {
			c.JSON(http.StatusNotFound, gin.H{"error": "LAYOUT_NOT_FOUND"})
			return
		}
		h.logger.Error("draft fetch failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}
	c.JSON(http.StatusOK, draftResponsePayload{Layout: doc, Version: version})
}

func (h *httpHandler) handleGetActive(c *gin.Context) {
	floorID, ok := floorIDFromQuery(c)
	if !ok {
		return
	}

	doc, version, err := h.workflow.GetActive(c.Request.Context(), floorID)
	if err != nil {
		if errors.Is(err, activation.ErrLayoutNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "LAYOUT_NOT_FOUND"})
			return
		}
		h.logger.Error("active layout fetch failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}
	c.JSON(http.StatusOK, draftResponsePayload{Layout: doc, Version: version})
}

type saveDraftRequestPayload struct {
	FloorID string          `json:"floorId"`
	Layout  layout.Document `json:"layout"`
}

func (h *httpHandler) handleSaveDraft(c *gin.Context) {
	var request saveDraftRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	floorID, err := layout.NewFloorID(request.FloorID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_FLOOR_ID"})
		return
	}

	expectVersion, err := strconv.ParseInt(c.GetHeader(layout.VersionHeader), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_VERSION_HEADER"})
		return
	}

	version, err := h.workflow.SaveDraft(c.Request.Context(), floorID, request.Layout, expectVersion)
	if err != nil {
		h.respondWorkflowError(c, err, "draft save failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"version": version})
}

type activateRequestPayload struct {
	FloorID       string `json:"floorId"`
	ExpectVersion int64  `json:"expectVersion"`
}

func (h *httpHandler) handleActivate(c *gin.Context) {
	var request activateRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	floorID, err := layout.NewFloorID(request.FloorID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_FLOOR_ID"})
		return
	}

	result, err := h.workflow.Activate(c.Request.Context(), floorID, request.ExpectVersion)
	if err != nil {
		h.respondWorkflowError(c, err, "activation failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"version":     result.Version,
		"activatedAt": result.ActivatedAt,
		"summary":     result.Summary,
	})
}

// respondWorkflowError maps workflow failures to the wire contract:
// 404 LAYOUT_NOT_FOUND, 409 STALE_VERSION carrying the current version,
// 400 NO_DRAFT / INVALID_LAYOUT, 500 INTERNAL_ERROR otherwise.
func (h *httpHandler) respondWorkflowError(c *gin.Context, err error, logMessage string) {
	var staleErr *activation.StaleVersionError
	var invalidErr *activation.InvalidLayoutError

	switch {
	case errors.Is(err, activation.ErrLayoutNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "LAYOUT_NOT_FOUND"})
	case errors.As(err, &staleErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":          "STALE_VERSION",
			"currentVersion": staleErr.CurrentVersion,
		})
	case errors.Is(err, activation.ErrNoDraft):
		c.JSON(http.StatusBadRequest, gin.H{"error": "NO_DRAFT"})
	case errors.As(err, &invalidErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "INVALID_LAYOUT",
			"message": strings.Join(invalidErr.Problems, "; "),
		})
	default:
		h.logger.Error(logMessage, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
	}
}

type statusResponsePayload struct {
	TableID  string  `json:"tableId"`
	Label    string  `json:"label"`
	Capacity int     `json:"capacity"`
	ZoneID   string  `json:"zoneId,omitempty"`
	Status   string  `json:"status"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

func (h *httpHandler) handleTableStatuses(c *gin.Context) {
	floorID, ok := floorIDFromQuery(c)
	if !ok {
		return
	}

	rows, err := h.registry.Statuses(c.Request.Context(), floorID.String())
	if err != nil {
		h.logger.Error("status fetch failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}

	statuses := make([]statusResponsePayload, 0, len(rows))
	for _, row := range rows {
		statuses = append(statuses, statusResponsePayload{
			TableID:  row.TableID,
			Label:    row.Label,
			Capacity: row.Capacity,
			ZoneID:   row.ZoneID,
			Status:   row.Status,
			X:        row.X,
			Y:        row.Y,
		})
	}
	c.JSON(http.StatusOK, gin.H{"statuses": statuses})
}

type occupancyRequestPayload struct {
	FloorID string `json:"floorId"`
	TableID string `json:"tableId"`
	Status  string `json:"status"`
}

func (h *httpHandler) handleSetOccupancy(c *gin.Context) {
	var request occupancyRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || request.TableID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	status, err := parseStatus(request.Status)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_STATUS"})
		return
	}

	if err := h.registry.SetOccupancy(c.Request.Context(), request.FloorID, request.TableID, status); err != nil {
		if errors.Is(err, registry.ErrStatusNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "TABLE_NOT_FOUND"})
			return
		}
		h.logger.Error("occupancy update failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func parseStatus(value string) (layout.TableStatus, error) {
	switch layout.TableStatus(strings.ToUpper(strings.TrimSpace(value))) {
	case layout.StatusFree:
		return layout.StatusFree, nil
	case layout.StatusSeated:
		return layout.StatusSeated, nil
	case layout.StatusDirty:
		return layout.StatusDirty, nil
	case layout.StatusReserved:
		return layout.StatusReserved, nil
	default:
		return "", errors.New("unknown status")
	}
}
