package httpserver

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tinytelemetry/udplog/internal/capture"
	"github.com/tinytelemetry/udplog/internal/forwarder"
	"github.com/tinytelemetry/udplog/internal/hostid"
	"github.com/tinytelemetry/udplog/internal/model"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T, logs LogDumper) (*forwarder.Forwarder, *gin.Engine) {
	t.Helper()
	fwd := forwarder.New(forwarder.DefaultConfig(), forwarder.Options{
		Hook:     capture.NewWriterHook(nil),
		Identity: hostid.Static("udplog-7A3F"),
	})
	srv := NewServer("", fwd, logs)
	srv.startTime = time.Now()
	return fwd, srv.routes()
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeStatus(t *testing.T, w *httptest.ResponseRecorder) model.Status {
	t.Helper()
	var st model.Status
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("unmarshal status: %v", err)
	}
	return st
}

func TestNewServer_DefaultLocalhostAddress(t *testing.T) {
	srv := NewServer("", nil, nil)
	if got := srv.Addr(); got != "127.0.0.1:9997" {
		t.Fatalf("Addr() = %q, want %q", got, "127.0.0.1:9997")
	}
}

func TestHealthEndpoint(t *testing.T) {
	_, r := newTestServer(t, nil)

	w := do(r, http.MethodGet, "/api/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d, want %d", w.Code, http.StatusOK)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal health: %v", err)
	}
	if body["status"] != "ok" || body["phase"] != "uninitialized" {
		t.Errorf("health body = %v", body)
	}
}

func TestHealthEndpoint_WrongMethod(t *testing.T) {
	_, r := newTestServer(t, nil)

	w := do(r, http.MethodPost, "/api/health", "")
	if w.Code != http.StatusMethodNotAllowed && w.Code != http.StatusNotFound {
		t.Errorf("health POST status = %d, want 405 or 404", w.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	_, r := newTestServer(t, nil)

	st := decodeStatus(t, do(r, http.MethodGet, "/api/status", ""))
	if st.Host != "udplog-7A3F" || st.Mode != "broadcast" || !st.BroadcastEnabled {
		t.Fatalf("status = %+v", st)
	}
}

func TestBindAndUnbindEndpoints(t *testing.T) {
	fwd, r := newTestServer(t, nil)

	w := do(r, http.MethodPost, "/api/bind", `{"ip":"10.0.0.5","port":5000}`)
	if w.Code != http.StatusOK {
		t.Fatalf("bind status = %d, body %s", w.Code, w.Body.String())
	}
	st := decodeStatus(t, w)
	if st.Mode != "unicast" || st.Unicast != "10.0.0.5:5000" {
		t.Fatalf("status after bind = %+v", st)
	}
	if !strings.Contains(fwd.StatusLine(), "unicast=10.0.0.5:5000") {
		t.Fatalf("forwarder not bound: %q", fwd.StatusLine())
	}

	st = decodeStatus(t, do(r, http.MethodPost, "/api/unbind", ""))
	if st.Mode != "broadcast" || st.UnicastReady {
		t.Fatalf("status after unbind = %+v", st)
	}
}

func TestBindEndpoint_Rejects(t *testing.T) {
	_, r := newTestServer(t, nil)

	tests := []struct {
		name string
		body string
	}{
		{"missing body", ""},
		{"missing port", `{"ip":"10.0.0.5"}`},
		{"ipv6", `{"ip":"::1","port":5000}`},
		{"port too large", `{"ip":"10.0.0.5","port":70000}`},
		{"negative port", `{"ip":"10.0.0.5","port":-1}`},
		{"hostname", `{"ip":"device.local","port":5000}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, http.MethodPost, "/api/bind", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("bind %s status = %d, want 400", tt.body, w.Code)
			}
		})
	}
}

func TestBroadcastEndpoint(t *testing.T) {
	_, r := newTestServer(t, nil)

	st := decodeStatus(t, do(r, http.MethodPost, "/api/broadcast", `{"enabled":false}`))
	if st.BroadcastEnabled {
		t.Fatal("broadcast still enabled")
	}
	st = decodeStatus(t, do(r, http.MethodPost, "/api/broadcast", `{"enabled":true}`))
	if !st.BroadcastEnabled {
		t.Fatal("broadcast still disabled")
	}

	if w := do(r, http.MethodPost, "/api/broadcast", `{}`); w.Code != http.StatusBadRequest {
		t.Fatalf("missing enabled status = %d, want 400", w.Code)
	}
}

func TestLogsEndpoint(t *testing.T) {
	_, r := newTestServer(t, func(w io.Writer) error {
		_, err := io.WriteString(w, "line one\nline two\n")
		return err
	})

	w := do(r, http.MethodGet, "/api/logs", "")
	if w.Code != http.StatusOK {
		t.Fatalf("logs status = %d", w.Code)
	}
	if w.Body.String() != "line one\nline two\n" {
		t.Fatalf("logs body = %q", w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("Content-Type = %q", ct)
	}
}

func TestLogsEndpoint_NotServedWithoutDumper(t *testing.T) {
	_, r := newTestServer(t, nil)
	if w := do(r, http.MethodGet, "/api/logs", ""); w.Code != http.StatusNotFound {
		t.Fatalf("logs status = %d, want 404", w.Code)
	}
}

func TestLogsEndpoint_DumperError(t *testing.T) {
	_, r := newTestServer(t, func(w io.Writer) error {
		return errors.New("ring closed")
	})
	if w := do(r, http.MethodGet, "/api/logs", ""); w.Code != http.StatusOK {
		t.Fatalf("logs status = %d, want 200 with empty body", w.Code)
	}
}
