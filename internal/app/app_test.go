package app

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/walletbot/ingress/internal/config"
)

func buildTestApp(t *testing.T, dsn string) *App {
	t.Helper()
	gin.SetMode(gin.TestMode)
	t.Setenv(config.EnvDBConnection, "")
	t.Setenv(config.EnvRedisAddr, "")

	path := filepath.Join(t.TempDir(), "config.yaml")
	req := InitRequest{DSN: dsn, AdminUsername: "ops", AdminPassword: "correct-horse"}
	if err := WriteConfigFile(path, req); err != nil {
		t.Fatalf("WriteConfigFile: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	a, err := Build(cfg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() {
		if errClose := a.Close(); errClose != nil {
			t.Errorf("Close: %v", errClose)
		}
	})
	return a
}

func doJSON(t *testing.T, h http.Handler, method, path, token, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	out := map[string]any{}
	if w.Body.Len() > 0 && strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return w.Code, out
}

func exerciseApp(t *testing.T, a *App) {
	t.Helper()
	h := a.Handler()

	code, body := doJSON(t, h, http.MethodPost, "/v0/inbound", "", `{"external_id":42,"text":"/start","username":"Alice"}`)
	if code != http.StatusOK {
		t.Fatalf("start: expected 200, got %d", code)
	}
	if body["state"] != "DISPATCHED" {
		t.Fatalf("start: expected DISPATCHED, got %v", body["state"])
	}
	if reply, _ := body["reply"].(string); !strings.Contains(reply, "alice1@pay.walletbot.app") {
		t.Fatalf("start: expected derived address in reply, got %q", reply)
	}

	code, body = doJSON(t, h, http.MethodPost, "/v0/inbound", "", `{"external_id":42,"text":"/withdraw 5"}`)
	if code != http.StatusOK || body["state"] != "DISPATCHED" {
		t.Fatalf("first withdraw: got %d %v", code, body)
	}
	code, body = doJSON(t, h, http.MethodPost, "/v0/inbound", "", `{"external_id":42,"text":"/withdraw 5"}`)
	if code != http.StatusOK || body["state"] != "DENIED" {
		t.Fatalf("second withdraw: got %d %v", code, body)
	}
	if body["reason"] != "COOLDOWN_ACTIVE" {
		t.Fatalf("second withdraw: expected COOLDOWN_ACTIVE, got %v", body["reason"])
	}

	code, _ = doJSON(t, h, http.MethodPost, "/v0/inbound", "", `{"text":"hi"}`)
	if code != http.StatusBadRequest {
		t.Fatalf("missing external id: expected 400, got %d", code)
	}

	code, body = doJSON(t, h, http.MethodPost, "/v0/admin/login", "", `{"username":"ops","password":"correct-horse"}`)
	if code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", code)
	}
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatalf("login: missing token")
	}

	code, body = doJSON(t, h, http.MethodGet, "/v0/admin/users/42/account", token, "")
	if code != http.StatusOK {
		t.Fatalf("account: expected 200, got %d", code)
	}
	if body["derived_address"] != "alice1@pay.walletbot.app" {
		t.Fatalf("account: unexpected address %v", body["derived_address"])
	}

	code, _ = doJSON(t, h, http.MethodGet, "/v0/admin/users/42/stats", token, "")
	if code != http.StatusOK {
		t.Fatalf("stats: expected 200, got %d", code)
	}
	code, _ = doJSON(t, h, http.MethodDelete, "/v0/admin/users/42/state", token, "")
	if code != http.StatusOK {
		t.Fatalf("clear: expected 200, got %d", code)
	}

	code, body = doJSON(t, h, http.MethodPost, "/v0/inbound", "", `{"external_id":42,"text":"/withdraw 5"}`)
	if code != http.StatusOK || body["state"] != "DISPATCHED" {
		t.Fatalf("withdraw after clear: got %d %v", code, body)
	}

	code, _ = doJSON(t, h, http.MethodGet, "/healthz", "", "")
	if code != http.StatusOK {
		t.Fatalf("healthz: expected 200, got %d", code)
	}
}

func TestApp_MemoryStores(t *testing.T) {
	exerciseApp(t, buildTestApp(t, ""))
}

func TestApp_SQLiteStores(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "ingress.db")
	exerciseApp(t, buildTestApp(t, dsn))
}

func TestApp_HelpListsCommands(t *testing.T) {
	a := buildTestApp(t, "")
	code, body := doJSON(t, a.Handler(), http.MethodPost, "/v0/inbound", "", `{"external_id":7,"text":"/help"}`)
	if code != http.StatusOK {
		t.Fatalf("help: expected 200, got %d", code)
	}
	reply, _ := body["reply"].(string)
	for _, cmd := range []string{"/balance", "/help", "/start"} {
		if !strings.Contains(reply, cmd) {
			t.Fatalf("help: expected %s in %q", cmd, reply)
		}
	}
}

func TestConfigureLogging_RejectsUnknownLevel(t *testing.T) {
	if err := ConfigureLogging(config.LoggingConfig{Level: "loud", Format: "text"}); err == nil {
		t.Fatalf("expected error for unknown level")
	}
	if err := ConfigureLogging(config.LoggingConfig{Level: "info", Format: "json"}); err != nil {
		t.Fatalf("ConfigureLogging: %v", err)
	}
}
