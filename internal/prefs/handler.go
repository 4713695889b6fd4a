package prefs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/garyellow/erp-gateway-go/internal/ctxutil"
	"github.com/garyellow/erp-gateway-go/internal/envelope"
	domerrors "github.com/garyellow/erp-gateway-go/internal/errors"
	"github.com/garyellow/erp-gateway-go/internal/logger"
)

// Namespacer hands out per-session stores.
type Namespacer interface {
	Namespace(sessionID string) Store
}

// Handler serves /api/preferences.
type Handler struct {
	stores     Namespacer
	validators Validators
	logger     *logger.Logger
}

// NewHandler creates a preferences handler.
func NewHandler(stores Namespacer, validators Validators, log *logger.Logger) *Handler {
	return &Handler{
		stores:     stores,
		validators: validators,
		logger:     log.WithModule("prefs"),
	}
}

// Register installs the preference routes. Requires SessionMiddleware.
func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/preferences", h.list)
	r.PATCH("/preferences", h.patch)
	r.DELETE("/preferences/:key", h.remove)
}

func (h *Handler) store(ctx context.Context) Store {
	return h.stores.Namespace(ctxutil.MustGetSessionID(ctx))
}

func (h *Handler) list(c *gin.Context) {
	h.respond(c, h.store(c.Request.Context()))
}

func (h *Handler) patch(c *gin.Context) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil || body == nil {
		envelope.Abort(c, http.StatusBadRequest, envelope.CodeBadRequest, "request body must be a JSON object")
		return
	}

	values := make(map[string]string, len(body))
	for key, raw := range body {
		value, ok := stringify(raw)
		if !ok {
			h.abortInvalid(c, domerrors.NewValidationError(key, "must be a string or boolean"))
			return
		}
		if err := h.validators.Validate(key, value); err != nil {
			h.abortInvalid(c, err)
			return
		}
		values[key] = value
	}

	ctx := c.Request.Context()
	store := h.store(ctx)
	for key, value := range values {
		if err := store.Set(ctx, key, value); err != nil {
			h.logger.WithError(err).WithField("key", key).ErrorContext(ctx, "Failed to save preference")
			envelope.Abort(c, http.StatusInternalServerError, envelope.CodeInternal, "failed to save preferences")
			return
		}
	}
	h.respond(c, store)
}

func (h *Handler) remove(c *gin.Context) {
	key := c.Param("key")
	if _, ok := h.validators[key]; !ok {
		envelope.Abort(c, http.StatusNotFound, envelope.CodeNotFound, fmt.Sprintf("unknown preference key: %s", key))
		return
	}

	ctx := c.Request.Context()
	store := h.store(ctx)
	if err := store.Remove(ctx, key); err != nil {
		h.logger.WithError(err).WithField("key", key).ErrorContext(ctx, "Failed to remove preference")
		envelope.Abort(c, http.StatusInternalServerError, envelope.CodeInternal, "failed to remove preference")
		return
	}
	h.respond(c, store)
}

func (h *Handler) respond(c *gin.Context, store Store) {
	ctx := c.Request.Context()
	values, err := Snapshot(ctx, store, h.validators.Keys())
	if err != nil {
		h.logger.WithError(err).ErrorContext(ctx, "Failed to read preferences")
		envelope.Abort(c, http.StatusInternalServerError, envelope.CodeInternal, "failed to read preferences")
		return
	}
	envelope.JSON(c, http.StatusOK, values, nil)
}

func (h *Handler) abortInvalid(c *gin.Context, err error) {
	var ve *domerrors.ValidationError
	if errors.As(err, &ve) {
		envelope.AbortWithDetails(c, http.StatusBadRequest, envelope.CodeValidation, ve.Error(),
			gin.H{"field": ve.Field})
		return
	}
	envelope.Abort(c, http.StatusBadRequest, envelope.CodeValidation, err.Error())
}

func stringify(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case bool:
		return strconv.FormatBool(t), true
	}
	return "", false
}
