package csvimport

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/garyellow/erp-gateway-go/internal/envelope"
	domerrors "github.com/garyellow/erp-gateway-go/internal/errors"
	"github.com/garyellow/erp-gateway-go/internal/gateway"
	"github.com/garyellow/erp-gateway-go/internal/logger"
	"github.com/garyellow/erp-gateway-go/internal/metrics"
)

// MaxUploadBytes bounds an import file.
const MaxUploadBytes = 5 << 20

// FormField is the multipart field carrying the file.
const FormField = "file"

// TemplateFilename is the attachment name of the template download.
const TemplateFilename = "leads-import-template.csv"

// Import results recorded in metrics.
const (
	resultAccepted  = "accepted"
	resultForwarded = "forwarded"
	resultEmpty     = "empty"
	resultInvalid   = "invalid"
	resultRejected  = "rejected"
)

// Handler serves the lead import routes under a resource path.
type Handler struct {
	gateway  *gateway.Gateway
	resource gateway.Resource
	metrics  *metrics.Metrics
	logger   *logger.Logger
}

// NewHandler creates an import handler for res, normally crm/leads.
func NewHandler(gw *gateway.Gateway, res gateway.Resource, m *metrics.Metrics, log *logger.Logger) *Handler {
	return &Handler{
		gateway:  gw,
		resource: res,
		metrics:  m,
		logger:   log.WithModule("csvimport"),
	}
}

// Register installs GET <path>/import/template and POST <path>/import.
func (h *Handler) Register(r gin.IRoutes) {
	r.GET(h.resource.Path+"/import/template", h.template)
	r.POST(h.resource.Path+"/import", h.upload)
}

func (h *Handler) template(c *gin.Context) {
	c.Header("Content-Disposition", `attachment; filename="`+TemplateFilename+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", Template())
}

func (h *Handler) upload(c *gin.Context) {
	wrapper := domerrors.NewWrapper("csvimport", "import_leads")

	body, err := h.readUpload(c)
	if err != nil {
		var unsupported *unsupportedMediaError
		switch {
		case errors.As(err, &unsupported):
			envelope.Abort(c, http.StatusUnsupportedMediaType, envelope.CodeUnsupportedMedia, err.Error())
		default:
			err = wrapper.Wrap(err, "could not read the uploaded file")
			h.logger.WithError(err).DebugContext(c.Request.Context(), "Import upload unreadable")
			envelope.Abort(c, http.StatusBadRequest, envelope.CodeBadRequest, domerrors.GetUserMessage(err))
		}
		h.metrics.RecordCSVImport(resultRejected)
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		h.metrics.RecordCSVImport(resultEmpty)
		envelope.Abort(c, http.StatusBadRequest, envelope.CodeBadRequest, ErrEmpty.Error())
		return
	}

	summary, err := Validate(bytes.NewReader(body))
	if err != nil {
		var herr *HeaderError
		switch {
		case errors.As(err, &herr):
			h.metrics.RecordCSVImport(resultInvalid)
			envelope.AbortWithDetails(c, http.StatusUnprocessableEntity, envelope.CodeValidation, herr.Error(), herr)
		case errors.Is(err, ErrEmpty):
			h.metrics.RecordCSVImport(resultEmpty)
			envelope.Abort(c, http.StatusBadRequest, envelope.CodeBadRequest, ErrEmpty.Error())
		default:
			h.metrics.RecordCSVImport(resultRejected)
			err = wrapper.Wrap(err, "the file is not valid CSV")
			envelope.Abort(c, http.StatusBadRequest, envelope.CodeBadRequest, domerrors.GetUserMessage(err))
		}
		return
	}

	if h.gateway.ForwardsWrites(h.resource) {
		h.metrics.RecordCSVImport(resultForwarded)
		h.gateway.ForwardWrite(c, h.resource, http.MethodPost, h.resource.TargetPath()+"/import", body, "text/csv")
		return
	}

	h.metrics.RecordCSVImport(resultAccepted)
	envelope.JSON(c, http.StatusOK, gin.H{
		"accepted": true,
		"rows":     summary.Rows,
		"columns":  summary.Columns,
	}, nil)
}

type unsupportedMediaError struct{ mediaType string }

func (e *unsupportedMediaError) Error() string {
	return "unsupported content type: " + e.mediaType
}

// readUpload returns the CSV bytes from a multipart "file" field or the raw body.
func (h *Handler) readUpload(c *gin.Context) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadBytes)

	mediaType := ""
	if ct := c.GetHeader("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil {
			return nil, &unsupportedMediaError{mediaType: ct}
		}
		mediaType = mt
	}

	switch {
	case mediaType == "multipart/form-data":
		fh, err := c.FormFile(FormField)
		if err != nil {
			return nil, err
		}
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		defer func() { _ = f.Close() }()
		return io.ReadAll(f)
	case mediaType == "", mediaType == "text/csv", mediaType == "text/plain",
		mediaType == "application/csv", mediaType == "application/octet-stream",
		strings.HasSuffix(mediaType, "+csv"):
		return io.ReadAll(c.Request.Body)
	default:
		return nil, &unsupportedMediaError{mediaType: mediaType}
	}
}
