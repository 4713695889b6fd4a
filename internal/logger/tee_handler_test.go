package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/garyellow/erp-gateway-go/internal/ctxutil"
)

func decodeAll(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for line := range strings.SplitSeq(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("Failed to parse JSON log %q: %v", line, err)
		}
		out = append(out, entry)
	}
	return out
}

func TestNewTeeHandler_NilRemote(t *testing.T) {
	local := slog.NewJSONHandler(&bytes.Buffer{}, nil)
	if got := NewTeeHandler(local, nil); got != slog.Handler(local) {
		t.Errorf("NewTeeHandler(local, nil) = %T, want the local handler", got)
	}
}

func TestTeeHandler_MasksSessionOnRemoteOnly(t *testing.T) {
	var local, remote bytes.Buffer
	log := slog.New(NewContextHandler(NewTeeHandler(
		slog.NewJSONHandler(&local, nil),
		slog.NewJSONHandler(&remote, nil),
	)))

	ctx := ctxutil.WithSessionID(context.Background(), "sess-cookie-value")
	ctx = ctxutil.WithOrgID(ctx, "OU-10")
	log.InfoContext(ctx, "locale changed", "locale", "ar")

	l, r := decodeLine(t, &local), decodeLine(t, &remote)
	if l["session_id"] != "sess-cookie-value" {
		t.Errorf("local session_id = %v, want clear value", l["session_id"])
	}
	if r["session_id"] != Fingerprint("sess-cookie-value") {
		t.Errorf("remote session_id = %v, want fingerprint", r["session_id"])
	}
	if strings.Contains(remote.String(), "sess-cookie-value") {
		t.Errorf("session id leaked to remote: %s", remote.String())
	}
	for _, entry := range []map[string]any{l, r} {
		if entry["org_id"] != "OU-10" || entry["locale"] != "ar" {
			t.Errorf("unmasked attributes changed: %v", entry)
		}
	}
}

func TestTeeHandler_MasksBoundAndGroupedAttrs(t *testing.T) {
	var local, remote bytes.Buffer
	h := NewTeeHandler(slog.NewJSONHandler(&local, nil), slog.NewJSONHandler(&remote, nil))

	log := slog.New(h.WithAttrs([]slog.Attr{slog.String("session_id", "bound-sess")}))
	log.Info("bound", slog.Group("prefs", slog.String("session_id", "grouped-sess"), slog.String("key", "erp.locale")))

	r := decodeLine(t, &remote)
	if r["session_id"] != Fingerprint("bound-sess") {
		t.Errorf("bound session_id = %v, want fingerprint", r["session_id"])
	}
	group, ok := r["prefs"].(map[string]any)
	if !ok {
		t.Fatalf("prefs group missing: %v", r)
	}
	if group["session_id"] != Fingerprint("grouped-sess") || group["key"] != "erp.locale" {
		t.Errorf("grouped attrs = %v", group)
	}
	if !strings.Contains(local.String(), "grouped-sess") {
		t.Errorf("local output lost clear session id: %s", local.String())
	}
}

func TestTeeHandler_LevelsPerSide(t *testing.T) {
	var local, remote bytes.Buffer
	log := slog.New(NewTeeHandler(
		slog.NewJSONHandler(&local, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewJSONHandler(&remote, &slog.HandlerOptions{Level: slog.LevelWarn}),
	))

	log.Debug("upstream request")
	log.Warn("fallback served")

	if got := len(decodeAll(t, &local)); got != 2 {
		t.Errorf("local records = %d, want 2", got)
	}
	entries := decodeAll(t, &remote)
	if len(entries) != 1 || entries[0]["msg"] != "fallback served" {
		t.Errorf("remote records = %v, want only the warning", entries)
	}
}

type failingHandler struct{ slog.Handler }

func (failingHandler) Enabled(context.Context, slog.Level) bool { return true }
func (failingHandler) Handle(context.Context, slog.Record) error {
	return errors.New("shipper unavailable")
}

func TestTeeHandler_RemoteErrorKeepsLocalWrite(t *testing.T) {
	var local bytes.Buffer
	h := NewTeeHandler(slog.NewJSONHandler(&local, nil), failingHandler{})

	err := h.Handle(context.Background(), slog.Record{Message: "kept"})
	if err == nil || !strings.Contains(err.Error(), "shipper unavailable") {
		t.Errorf("Handle() error = %v, want remote failure", err)
	}
	if !strings.Contains(local.String(), `"msg":"kept"`) {
		t.Errorf("local write missing: %s", local.String())
	}
}

func TestFingerprint(t *testing.T) {
	if Fingerprint("") != "" {
		t.Error("empty value should stay empty")
	}
	a, b := Fingerprint("sess-a"), Fingerprint("sess-b")
	if a == b || a != Fingerprint("sess-a") {
		t.Errorf("fingerprints not stable and distinct: %q %q", a, b)
	}
	if !strings.HasPrefix(a, "sha256:") || len(a) != len("sha256:")+12 {
		t.Errorf("Fingerprint() = %q", a)
	}
}
