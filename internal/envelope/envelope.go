// Package envelope defines the {data, meta} and {error} response shapes and
// the decoder that normalizes upstream list payloads.
package envelope

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/gin-gonic/gin"
)

// Error codes returned in error envelopes.
const (
	CodeBadRequest       = "bad_request"
	CodeValidation       = "validation_failed"
	CodeNotFound         = "not_found"
	CodeUpstream         = "upstream"
	CodeUpstreamFailure  = "upstream_failure"
	CodeProxyError       = "proxy_error"
	CodeInternal         = "internal"
	CodeUnsupportedMedia = "unsupported_media_type"
)

// Envelope is the success response shape.
type Envelope struct {
	Data any `json:"data"`
	Meta any `json:"meta,omitempty"`
}

// ErrorBody is the payload of an error envelope.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope is the error response shape.
type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
}

// NewError builds an error envelope.
func NewError(code, message string) ErrorEnvelope {
	return ErrorEnvelope{Error: ErrorBody{Code: code, Message: message}}
}

// WithDetails attaches structured details.
func (e ErrorEnvelope) WithDetails(details any) ErrorEnvelope {
	e.Error.Details = details
	return e
}

// JSON writes a success envelope.
func JSON(c *gin.Context, status int, data, meta any) {
	c.JSON(status, Envelope{Data: data, Meta: meta})
}

// Abort writes an error envelope and stops the handler chain.
func Abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, NewError(code, message))
}

// AbortWithDetails writes an error envelope with details and stops the handler chain.
func AbortWithDetails(c *gin.Context, status int, code, message string, details any) {
	c.AbortWithStatusJSON(status, NewError(code, message).WithDetails(details))
}

// ParseError reads an error body in either the structured {error:{code,message}}
// form or the legacy {error:"message"} form.
func ParseError(body []byte) (ErrorBody, bool) {
	var raw struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &raw); err != nil || len(raw.Error) == 0 {
		return ErrorBody{}, false
	}

	var legacy string
	if err := json.Unmarshal(raw.Error, &legacy); err == nil {
		return ErrorBody{Message: legacy}, true
	}

	var structured ErrorBody
	if err := json.Unmarshal(raw.Error, &structured); err != nil {
		return ErrorBody{}, false
	}
	if structured.Code == "" && structured.Message == "" {
		return ErrorBody{}, false
	}
	return structured, true
}

// Shape names the variant a list payload was decoded as.
type Shape int

// List payload variants, tried in declaration order.
const (
	ShapeUnknown Shape = iota
	ShapeArray         // [...]
	ShapeData          // {"data": [...]}
	ShapeItems         // {"items": [...]}
)

func (s Shape) String() string {
	switch s {
	case ShapeArray:
		return "array"
	case ShapeData:
		return "data"
	case ShapeItems:
		return "items"
	default:
		return "unknown"
	}
}

// List is a decoded list payload.
type List struct {
	Shape Shape
	Data  []any
	Meta  map[string]any
}

// NormalizeList decodes body as one of the list shapes. When none match the
// returned List has ShapeUnknown and the caller should serve fallback data.
func NormalizeList(body []byte) List {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return List{}
	}

	if data, ok := decodeArray(body); ok {
		return List{Shape: ShapeArray, Data: data}
	}

	var obj map[string]json.RawMessage
	if err := decode(body, &obj); err != nil {
		return List{}
	}
	meta := decodeMeta(obj["meta"])
	if data, ok := decodeArray(obj["data"]); ok {
		return List{Shape: ShapeData, Data: data, Meta: meta}
	}
	if data, ok := decodeArray(obj["items"]); ok {
		return List{Shape: ShapeItems, Data: data, Meta: meta}
	}
	return List{}
}

// NormalizeItem unwraps {"data": {...}} or accepts a bare object.
func NormalizeItem(body []byte) (map[string]any, bool) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '{' {
		return nil, false
	}

	var obj map[string]json.RawMessage
	if err := decode(body, &obj); err != nil {
		return nil, false
	}
	if inner := bytes.TrimSpace(obj["data"]); len(inner) > 0 && inner[0] == '{' {
		var item map[string]any
		if err := decode(inner, &item); err == nil {
			return item, true
		}
	}

	var item map[string]any
	if err := decode(body, &item); err != nil {
		return nil, false
	}
	return item, true
}

// IsJSON reports whether the content type names a JSON media type.
func IsJSON(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "application/json") || strings.Contains(ct, "+json")
}

func decodeArray(raw json.RawMessage) ([]any, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, false
	}
	var data []any
	if err := decode(raw, &data); err != nil {
		return nil, false
	}
	if data == nil {
		data = []any{}
	}
	return data, true
}

func decodeMeta(raw json.RawMessage) map[string]any {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil
	}
	var meta map[string]any
	if err := decode(raw, &meta); err != nil {
		return nil
	}
	return meta
}

// decode keeps numbers as json.Number so upstream IDs survive re-encoding.
func decode(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(v)
}
