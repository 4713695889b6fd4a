package logger

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/garyellow/erp-gateway-go/internal/ctxutil"
)

// requestContext mirrors what the HTTP middleware chain stores for a call.
func requestContext(requestID, sessionID, orgID string) context.Context {
	ctx := ctxutil.WithRequestID(context.Background(), requestID)
	ctx = ctxutil.WithSessionID(ctx, sessionID)
	return ctxutil.WithOrgID(ctx, orgID)
}

func TestContextHandler_RequestEnrichment(t *testing.T) {
	tests := []struct {
		name    string
		ctx     context.Context
		want    map[string]string
		missing []string
	}{
		{
			name: "proxied request with tenant",
			ctx:  requestContext("req-7f3a", "sess-1", "OU-10"),
			want: map[string]string{"request_id": "req-7f3a", "session_id": "sess-1", "org_id": "OU-10"},
		},
		{
			name:    "first visit before the preferences cookie is issued",
			ctx:     requestContext("req-7f3b", "", "OU-10"),
			want:    map[string]string{"request_id": "req-7f3b", "org_id": "OU-10"},
			missing: []string{"session_id"},
		},
		{
			name:    "no tenant header",
			ctx:     requestContext("req-7f3c", "sess-2", ""),
			want:    map[string]string{"request_id": "req-7f3c", "session_id": "sess-2"},
			missing: []string{"org_id"},
		},
		{
			name:    "background job",
			ctx:     context.Background(),
			missing: []string{"request_id", "session_id", "org_id"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := slog.New(NewContextHandler(slog.NewJSONHandler(&buf, nil)))
			log.InfoContext(tt.ctx, "fallback served", "resource", "crm/leads")

			entry := decodeLine(t, &buf)
			for key, want := range tt.want {
				if entry[key] != want {
					t.Errorf("%s = %v, want %q", key, entry[key], want)
				}
			}
			for _, key := range tt.missing {
				if _, ok := entry[key]; ok {
					t.Errorf("unexpected %s in %v", key, entry)
				}
			}
			if entry["resource"] != "crm/leads" {
				t.Errorf("explicit attribute lost: %v", entry)
			}
		})
	}
}

func TestContextHandler_DerivedLoggersKeepEnrichment(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("debug", &buf).WithModule("gateway").WithField("resource", "hcm/employees")

	log.DebugContext(requestContext("req-1", "sess-1", "OU-2"), "proxying read")

	entry := decodeLine(t, &buf)
	want := map[string]any{
		"module":     "gateway",
		"resource":   "hcm/employees",
		"request_id": "req-1",
		"session_id": "sess-1",
		"org_id":     "OU-2",
		"level":      "debug",
		"message":    "proxying read",
	}
	for key, value := range want {
		if entry[key] != value {
			t.Errorf("%s = %v, want %v", key, entry[key], value)
		}
	}
}

func TestContextHandler_DetachedContextAfterCancel(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewContextHandler(slog.NewJSONHandler(&buf, nil)))

	ctx, cancel := context.WithCancel(requestContext("req-9", "sess-9", "OU-9"))
	cancel()
	log.WarnContext(ctxutil.PreserveTracing(ctx), "client disconnected mid-stream")

	entry := decodeLine(t, &buf)
	if entry["request_id"] != "req-9" || entry["session_id"] != "sess-9" || entry["org_id"] != "OU-9" {
		t.Errorf("tracing values lost on detached context: %v", entry)
	}
}

func TestContextHandler_Enabled(t *testing.T) {
	handler := NewContextHandler(slog.NewJSONHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelWarn}))
	ctx := requestContext("req-1", "sess-1", "OU-1")

	if handler.Enabled(ctx, slog.LevelInfo) {
		t.Error("info enabled below warn threshold")
	}
	if !handler.Enabled(ctx, slog.LevelError) {
		t.Error("error disabled above warn threshold")
	}
}

func TestContextHandler_GroupedCallKeepsIDs(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewContextHandler(slog.NewJSONHandler(&buf, nil)).WithAttrs([]slog.Attr{slog.String("service", "erp-gateway")}))

	log.InfoContext(requestContext("req-4", "", "OU-4"), "csv import", slog.Group("import", slog.Int("rows", 3), slog.Int("rejected", 1)))

	entry := decodeLine(t, &buf)
	if entry["service"] != "erp-gateway" || entry["request_id"] != "req-4" {
		t.Errorf("entry = %v", entry)
	}
	group, ok := entry["import"].(map[string]any)
	if !ok || group["rows"] != float64(3) || group["rejected"] != float64(1) {
		t.Errorf("import group = %v", entry["import"])
	}
}
