package r2client

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/smithy-go"
)

func TestCompressDecompress(t *testing.T) {
	t.Parallel()

	payload := []byte(strings.Repeat(`{"id":"L-1001","company":"Contoso"},`, 500))

	compressed, err := Compress(payload)
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	if len(compressed) >= len(payload) {
		t.Logf("compressed size (%d) >= original size (%d)", len(compressed), len(payload))
	}

	got, err := Decompress(bytes.NewReader(compressed))
	if err != nil {
		t.Fatalf("Decompress failed: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("Decompressed data mismatch: got %d bytes, want %d bytes", len(got), len(payload))
	}
}

func TestDecompress_Error(t *testing.T) {
	t.Parallel()

	if _, err := Decompress(strings.NewReader("not zstd data")); err == nil {
		t.Error("Expected error for invalid zstd input")
	}
}

func TestNew_RequiresAllFields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  Config
	}{
		{"empty", Config{}},
		{"missing bucket", Config{Endpoint: "https://x.r2.cloudflarestorage.com", AccessKeyID: "a", SecretKey: "s"}},
		{"missing secret", Config{Endpoint: "https://x.r2.cloudflarestorage.com", AccessKeyID: "a", BucketName: "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(context.Background(), tt.cfg); err == nil {
				t.Error("expected error for incomplete config")
			}
		})
	}
}

func TestIsNotFound(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"api error NoSuchKey", &smithy.GenericAPIError{Code: "NoSuchKey"}, true},
		{"api error NotFound", &smithy.GenericAPIError{Code: "NotFound"}, true},
		{"api error AccessDenied", &smithy.GenericAPIError{Code: "AccessDenied"}, false},
		{"plain error", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isNotFound(tt.err); got != tt.want {
				t.Errorf("isNotFound() = %v, want %v", got, tt.want)
			}
		})
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), Config{
		Endpoint:    srv.URL,
		AccessKeyID: "test",
		SecretKey:   "test",
		BucketName:  "seeds",
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return c
}

func TestClient_DownloadAndHead(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/seeds/erp/crm/leads.json.zst":
			w.Header().Set("ETag", `"abc123"`)
			if r.Method == http.MethodHead {
				w.WriteHeader(http.StatusOK)
				return
			}
			_, _ = w.Write([]byte("payload"))
		default:
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			if r.Method != http.MethodHead {
				_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`))
			}
		}
	})

	ctx := context.Background()

	etag, err := c.HeadObject(ctx, "erp/crm/leads.json.zst")
	if err != nil || etag != "abc123" {
		t.Fatalf("HeadObject = (%q, %v), want (abc123, nil)", etag, err)
	}

	body, etag, err := c.Download(ctx, "erp/crm/leads.json.zst")
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	defer body.Close()
	data, _ := io.ReadAll(body)
	if string(data) != "payload" || etag != "abc123" {
		t.Errorf("Download = (%q, %q)", data, etag)
	}

	if _, _, err := c.Download(ctx, "erp/missing.json.zst"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Download missing err = %v, want ErrNotFound", err)
	}
	if _, err := c.HeadObject(ctx, "erp/missing.json.zst"); !errors.Is(err, ErrNotFound) {
		t.Errorf("HeadObject missing err = %v, want ErrNotFound", err)
	}
}
