package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/astrabot/internal/agent"
	"github.com/hyperjump/astrabot/internal/app"
	"github.com/hyperjump/astrabot/internal/capability"
	"github.com/hyperjump/astrabot/internal/config"
	"github.com/hyperjump/astrabot/internal/index"
	"github.com/hyperjump/astrabot/internal/models"
	"github.com/hyperjump/astrabot/internal/session"
)

type fakeIndex struct{}

func (fakeIndex) Search(_ context.Context, _ string, k int) ([]*models.Passage, error) {
	return []*models.Passage{{
		Unit: &models.DocumentUnit{ID: "1", Content: "Lynparza wird zweimal täglich eingenommen."},
		Rank: 1,
	}}, nil
}

type fakeCatalog struct {
	descriptors []capability.Descriptor
}

func (f fakeCatalog) Capabilities() []capability.Descriptor { return f.descriptors }

func (f fakeCatalog) Status() []app.CollectionStatus {
	return []app.CollectionStatus{
		{Status: index.Status{Collection: "lynparza", Present: true, DiskBytes: 42}, Available: true},
		{Status: index.Status{Collection: "kfe"}, Stale: true, LoadError: "index load failure"},
	}
}

func newTestServer(t *testing.T) (*Server, *session.Manager) {
	t.Helper()
	c, err := capability.New("lynparza", "Liefert Informationen über das Krebsmedikament Lynparza.", fakeIndex{},
		capability.WithKeywords("lynparza"))
	if err != nil {
		t.Fatal(err)
	}
	reg, _ := capability.NewRegistry(c)
	ctrl, err := agent.NewController(agent.DefaultPolicy(), reg, agent.NewKeywordRouter(3), agent.NewExtractiveSynthesizer())
	if err != nil {
		t.Fatal(err)
	}
	catalog := fakeCatalog{descriptors: []capability.Descriptor{
		{Name: "lynparza", Description: c.Description(), Available: true},
		{Name: "kfe", Description: "Krebs", Error: "index load failure"},
	}}
	cfg := config.Default(t.TempDir())
	cfg.Stream.Delay = 0
	sessions := session.NewManager()
	return NewServer(ctrl, catalog, sessions, cfg, zap.NewNop()), sessions
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		r.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func TestHandleHealthAndInfo(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Router()

	w := do(t, h, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ok"`) {
		t.Errorf("health: %d %s", w.Code, w.Body.String())
	}

	w = do(t, h, http.MethodGet, "/api/v1/info", "")
	var info struct {
		Title       string   `json:"title"`
		Greeting    []string `json:"greeting"`
		Placeholder string   `json:"placeholder"`
	}
	decode(t, w, &info)
	if info.Title != "Astrabot" || len(info.Greeting) != 3 || info.Placeholder != "Stell mir eine Frage" {
		t.Errorf("info = %+v", info)
	}
}

func TestHandleCapabilitiesAndStatus(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Router()

	var caps struct {
		Capabilities []capability.Descriptor `json:"capabilities"`
	}
	decode(t, do(t, h, http.MethodGet, "/api/v1/capabilities", ""), &caps)
	if len(caps.Capabilities) != 2 || !caps.Capabilities[0].Available || caps.Capabilities[1].Available {
		t.Errorf("capabilities = %+v", caps.Capabilities)
	}

	var status struct {
		Collections []map[string]any `json:"collections"`
		Sessions    int              `json:"sessions"`
	}
	decode(t, do(t, h, http.MethodGet, "/api/v1/status", ""), &status)
	if len(status.Collections) != 2 {
		t.Fatalf("status = %+v", status)
	}
	if status.Collections[0]["collection"] != "lynparza" || status.Collections[0]["disk_bytes"] != float64(42) {
		t.Errorf("embedded status not flattened: %v", status.Collections[0])
	}
	if status.Collections[1]["stale"] != true {
		t.Errorf("kfe stale flag missing: %v", status.Collections[1])
	}
}

func TestSessionLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Router()

	w := do(t, h, http.MethodPost, "/api/v1/sessions", "")
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d", w.Code)
	}
	var created struct {
		ID string `json:"id"`
	}
	decode(t, w, &created)
	base := "/api/v1/sessions/" + created.ID

	w = do(t, h, http.MethodPost, base+"/messages", `{"message":"Wie nehme ich Lynparza ein?"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("message: %d %s", w.Code, w.Body.String())
	}
	var reply struct {
		SessionID    string   `json:"session_id"`
		Reply        string   `json:"reply"`
		Language     string   `json:"language"`
		Capabilities []string `json:"capabilities"`
		Declined     bool     `json:"declined"`
	}
	decode(t, w, &reply)
	if reply.SessionID != created.ID || reply.Language != "de" || !strings.Contains(reply.Reply, "zweimal täglich") {
		t.Errorf("reply = %+v", reply)
	}
	if len(reply.Capabilities) != 1 || reply.Declined {
		t.Errorf("reply = %+v", reply)
	}

	var history struct {
		Turns []models.Turn `json:"turns"`
	}
	decode(t, do(t, h, http.MethodGet, base+"/history", ""), &history)
	if len(history.Turns) != 2 || history.Turns[1].Content != reply.Reply {
		t.Errorf("history = %+v", history.Turns)
	}

	if w := do(t, h, http.MethodDelete, base, ""); w.Code != http.StatusOK {
		t.Errorf("delete: %d", w.Code)
	}
	if w := do(t, h, http.MethodPost, base+"/messages", `{"message":"Hallo"}`); w.Code != http.StatusNotFound {
		t.Errorf("message after delete: %d", w.Code)
	}
	if w := do(t, h, http.MethodDelete, base, ""); w.Code != http.StatusNotFound {
		t.Errorf("second delete: %d", w.Code)
	}
}

func TestHandleMessage_stream(t *testing.T) {
	srv, sessions := newTestServer(t)
	h := srv.Router()
	sess := sessions.Create()

	w := do(t, h, http.MethodPost, "/api/v1/sessions/"+sess.ID()+"/messages?stream=true",
		`{"message":"Was ist das Wetter morgen?"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %q", ct)
	}
	h2 := sess.History()
	if len(h2) != 2 || w.Body.String() != h2[1].Content {
		t.Errorf("streamed body %q does not match reply %+v", w.Body.String(), h2)
	}
	if w.Body.String() != agent.DefaultPolicy().Texts(agent.German).Clarify {
		t.Errorf("expected clarifying question, got %q", w.Body.String())
	}
}

func TestHandleMessage_errors(t *testing.T) {
	srv, sessions := newTestServer(t)
	h := srv.Router()
	busy := sessions.Create()
	if err := busy.Begin(); err != nil {
		t.Fatal(err)
	}
	idle := sessions.Create()

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"busy session", "/api/v1/sessions/" + busy.ID() + "/messages", `{"message":"Hallo"}`, http.StatusConflict},
		{"unknown session", "/api/v1/sessions/nope/messages", `{"message":"Hallo"}`, http.StatusNotFound},
		{"empty message", "/api/v1/sessions/" + idle.ID() + "/messages", `{"message":"  "}`, http.StatusBadRequest},
		{"invalid body", "/api/v1/sessions/" + idle.ID() + "/messages", `{`, http.StatusBadRequest},
		{"unknown history", "/api/v1/sessions/nope/history", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := http.MethodPost
			if strings.HasSuffix(tt.path, "/history") {
				method = http.MethodGet
			}
			w := do(t, h, method, tt.path, tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
			if strings.Contains(w.Body.String(), "turn already in progress") {
				t.Error("internal error text exposed")
			}
		})
	}
}
