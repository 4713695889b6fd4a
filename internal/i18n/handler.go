package i18n

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"

	"github.com/garyellow/erp-gateway-go/internal/ctxutil"
	"github.com/garyellow/erp-gateway-go/internal/envelope"
	"github.com/garyellow/erp-gateway-go/internal/logger"
	"github.com/garyellow/erp-gateway-go/internal/metrics"
	"github.com/garyellow/erp-gateway-go/internal/prefs"
)

// maxTranslateKeys bounds a single translate request.
const maxTranslateKeys = 200

// Handler serves /api/i18n.
type Handler struct {
	stores     prefs.Namespacer
	translator *Translator
	fallback   Locale
	metrics    *metrics.Metrics
	logger     *logger.Logger
}

// NewHandler creates the i18n handler. fallback is the locale used before
// anything is stored or negotiated.
func NewHandler(stores prefs.Namespacer, translator *Translator, fallback Locale, m *metrics.Metrics, log *logger.Logger) *Handler {
	return &Handler{
		stores:     stores,
		translator: translator,
		fallback:   fallback,
		metrics:    m,
		logger:     log.WithModule("i18n"),
	}
}

// Register installs the i18n routes. Requires prefs.SessionMiddleware.
func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/i18n/locale", h.getLocale)
	r.PUT("/i18n/locale", h.putLocale)
	r.POST("/i18n/translate", h.translate)
	r.GET("/i18n/messages/:locale", h.messages)
}

type localeResponse struct {
	Locale    Locale   `json:"locale"`
	Direction string   `json:"direction"`
	Source    string   `json:"source"`
	Supported []Locale `json:"supported"`
}

// state builds the session's locale state, initialized from storage or the
// request's Accept-Language header.
func (h *Handler) state(c *gin.Context) *State {
	ctx := c.Request.Context()
	s := NewState(h.stores.Namespace(ctxutil.MustGetSessionID(ctx)), h.translator, h.fallback)
	if err := s.Init(ctx, AcceptLanguageTags(c.GetHeader("Accept-Language"))); err != nil {
		h.logger.WithError(err).WarnContext(ctx, "Falling back to negotiated locale")
	}
	return s
}

func (h *Handler) respondLocale(c *gin.Context, s *State) {
	envelope.JSON(c, http.StatusOK, localeResponse{
		Locale:    s.Locale(),
		Direction: s.Direction(),
		Source:    s.Source(),
		Supported: Supported,
	}, nil)
}

func (h *Handler) getLocale(c *gin.Context) {
	h.respondLocale(c, h.state(c))
}

func (h *Handler) putLocale(c *gin.Context) {
	var body struct {
		Locale string `json:"locale"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		envelope.Abort(c, http.StatusBadRequest, envelope.CodeBadRequest, "request body must be a JSON object")
		return
	}
	l, err := ParseLocale(body.Locale)
	if err != nil {
		abortUnsupported(c, body.Locale)
		return
	}

	ctx := c.Request.Context()
	s := NewState(h.stores.Namespace(ctxutil.MustGetSessionID(ctx)), h.translator, h.fallback)
	if err := s.SetLocale(ctx, l); err != nil {
		h.logger.WithError(err).ErrorContext(ctx, "Failed to persist locale")
		envelope.Abort(c, http.StatusInternalServerError, envelope.CodeInternal, "failed to save locale")
		return
	}
	h.metrics.RecordLocaleChange(string(l))
	h.respondLocale(c, s)
}

type translateRequest struct {
	Locale string         `json:"locale"`
	Key    string         `json:"key"`
	Keys   []string       `json:"keys"`
	Vars   map[string]any `json:"vars"`
}

type translateResponse struct {
	Locale    Locale            `json:"locale"`
	Direction string            `json:"direction"`
	Values    map[string]string `json:"values"`
	Missing   []string          `json:"missing"`
}

func (h *Handler) translate(c *gin.Context) {
	var req translateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		envelope.Abort(c, http.StatusBadRequest, envelope.CodeBadRequest, "request body must be a JSON object")
		return
	}

	keys := req.Keys
	if req.Key != "" {
		keys = append([]string{req.Key}, keys...)
	}
	keys = slices.Compact(keys)
	if len(keys) == 0 {
		envelope.AbortWithDetails(c, http.StatusBadRequest, envelope.CodeValidation,
			"missing required field: key", gin.H{"missing": []string{"key"}})
		return
	}
	if len(keys) > maxTranslateKeys {
		envelope.Abort(c, http.StatusBadRequest, envelope.CodeValidation, "too many keys")
		return
	}

	var l Locale
	if req.Locale != "" {
		parsed, err := ParseLocale(req.Locale)
		if err != nil {
			abortUnsupported(c, req.Locale)
			return
		}
		l = parsed
	} else {
		l = h.state(c).Locale()
	}

	resp := translateResponse{
		Locale:    l,
		Direction: l.Direction(),
		Values:    make(map[string]string, len(keys)),
		Missing:   []string{},
	}
	for _, key := range keys {
		value, ok := h.translator.Lookup(l, key, req.Vars)
		if !ok {
			h.translator.miss(l, key)
			resp.Missing = append(resp.Missing, key)
		}
		resp.Values[key] = value
	}
	envelope.JSON(c, http.StatusOK, resp, nil)
}

func (h *Handler) messages(c *gin.Context) {
	l, err := ParseLocale(c.Param("locale"))
	if err != nil {
		abortUnsupported(c, c.Param("locale"))
		return
	}
	_, failed := h.translator.Bundle().Failed()[l]
	envelope.JSON(c, http.StatusOK, h.translator.Bundle().Tree(l), gin.H{
		"locale":    l,
		"direction": l.Direction(),
		"fallback":  failed,
	})
}

func abortUnsupported(c *gin.Context, code string) {
	envelope.AbortWithDetails(c, http.StatusBadRequest, envelope.CodeValidation,
		"unsupported locale", gin.H{"locale": code, "supported": Supported})
}
