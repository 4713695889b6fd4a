package logger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
)

// maskedKeys are attributes that never leave the process in clear text.
// The preferences cookie doubles as a bearer credential for a session.
var maskedKeys = map[string]bool{
	"session_id": true,
}

// TeeHandler writes each record to a local handler and mirrors it to a remote
// shipper. The remote copy carries a fingerprint in place of every masked
// attribute, so the same session still correlates across remote records.
type TeeHandler struct {
	local  slog.Handler
	remote slog.Handler
}

// NewTeeHandler pairs local output with a remote shipper. A nil remote yields
// local unchanged.
func NewTeeHandler(local, remote slog.Handler) slog.Handler {
	if remote == nil {
		return local
	}
	return &TeeHandler{local: local, remote: remote}
}

// Enabled reports whether either side wants the level.
func (h *TeeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.local.Enabled(ctx, level) || h.remote.Enabled(ctx, level)
}

// Handle writes locally first. A remote failure never hides the local write;
// both errors are joined.
func (h *TeeHandler) Handle(ctx context.Context, r slog.Record) error {
	var localErr, remoteErr error
	if h.local.Enabled(ctx, r.Level) {
		localErr = h.local.Handle(ctx, r.Clone())
	}
	if h.remote.Enabled(ctx, r.Level) {
		remoteErr = h.remote.Handle(ctx, maskRecord(r))
	}
	return errors.Join(localErr, remoteErr)
}

// WithAttrs binds attrs on both sides, masking the remote copy.
func (h *TeeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	masked := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		masked[i] = maskAttr(a)
	}
	return &TeeHandler{local: h.local.WithAttrs(attrs), remote: h.remote.WithAttrs(masked)}
}

func (h *TeeHandler) WithGroup(name string) slog.Handler {
	return &TeeHandler{local: h.local.WithGroup(name), remote: h.remote.WithGroup(name)}
}

func maskRecord(r slog.Record) slog.Record {
	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(maskAttr(a))
		return true
	})
	return out
}

func maskAttr(a slog.Attr) slog.Attr {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		group := v.Group()
		masked := make([]slog.Attr, len(group))
		for i, g := range group {
			masked[i] = maskAttr(g)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(masked...)}
	}
	if maskedKeys[a.Key] {
		return slog.String(a.Key, Fingerprint(v.String()))
	}
	return a
}

// Fingerprint is the stable short digest used for masked attributes.
func Fingerprint(s string) string {
	if s == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(s))
	return "sha256:" + hex.EncodeToString(sum[:6])
}
