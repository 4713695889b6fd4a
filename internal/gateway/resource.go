package gateway

import (
	"net/http"
	"slices"
)

// DefaultIDField is the record field matched against the :id path parameter.
const DefaultIDField = "id"

// Resource describes one proxied ERP collection.
type Resource struct {
	// Name identifies the fallback dataset and labels metrics, e.g. "crm/leads".
	Name string
	// Path is the route below /api, e.g. "/crm/leads".
	Path string
	// UpstreamPath is the path below /api/v1 on the backend. Defaults to Path.
	UpstreamPath string
	// SearchFields are matched by the q parameter on fallback reads.
	SearchFields []string
	// IDField defaults to "id".
	IDField string
	// Required lists body fields a create request must carry.
	Required []string
	// Actions are item sub-routes such as PATCH /:id/stage.
	Actions []Action
	// EchoWrites keeps writes local even when an upstream is configured.
	EchoWrites bool
}

// Action is a single-field mutation on an item, e.g. moving an opportunity stage.
type Action struct {
	// Name is the trailing path segment.
	Name string
	// Method defaults to PATCH.
	Method string
	// Field is the required body field.
	Field string
	// Allowed restricts Field values when non-empty.
	Allowed []string
}

func (r Resource) idField() string {
	if r.IDField == "" {
		return DefaultIDField
	}
	return r.IDField
}

// TargetPath is the backend path below /api/v1.
func (r Resource) TargetPath() string {
	if r.UpstreamPath == "" {
		return r.Path
	}
	return r.UpstreamPath
}

func (a Action) method() string {
	if a.Method == "" {
		return http.MethodPatch
	}
	return a.Method
}

func (a Action) allows(value any) bool {
	if len(a.Allowed) == 0 {
		return true
	}
	s, ok := value.(string)
	return ok && slices.Contains(a.Allowed, s)
}
