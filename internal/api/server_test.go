// File path: internal/api/server_test.go
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/smpleo/leochat/internal/auth"
	"github.com/smpleo/leochat/internal/chat"
	"github.com/smpleo/leochat/internal/ingest"
	"github.com/smpleo/leochat/internal/llm"
	"github.com/smpleo/leochat/internal/store"
	"github.com/smpleo/leochat/internal/vector"
)

type mockProvider struct{}

func (mockProvider) Chat(_ context.Context, messages []llm.Message, _ llm.ModelConfig) (string, error) {
	last := messages[len(messages)-1]
	return "jawaban untuk: " + last.Content, nil
}

func (mockProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{0, 1, 0}
	}
	return vectors, nil
}

func (mockProvider) Name() string { return "mock" }

type fakeVectors struct {
	records []vector.Record
	deletes int
}

func (f *fakeVectors) Available() bool    { return true }
func (f *fakeVectors) Collection() string { return "school_docs" }

func (f *fakeVectors) Upsert(_ context.Context, records []vector.Record, _ [][]float32) error {
	f.records = append(f.records, records...)
	return nil
}

func (f *fakeVectors) Search(_ context.Context, _ []float32, _ int) ([]vector.SearchResult, error) {
	return nil, nil
}

func (f *fakeVectors) DeleteAll(_ context.Context) error {
	f.deletes++
	f.records = nil
	return nil
}

type testEnv struct {
	server  *httptest.Server
	store   *store.Store
	vectors *fakeVectors
	docsDir string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st, err := store.OpenWithConfig(store.Config{Path: filepath.Join(t.TempDir(), "api.db")})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cache, err := llm.NewCache(2, func(llm.ModelConfig) (llm.Provider, error) {
		return mockProvider{}, nil
	})
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	vectors := &fakeVectors{}
	orchestrator := chat.New(st, vectors, cache, chat.Config{})
	pipeline := ingest.NewPipeline(mockProvider{}, vectors, ingest.Config{})
	docsDir := t.TempDir()

	server := httptest.NewServer(NewServer(st, vectors, orchestrator, pipeline, Config{DocsDir: docsDir}))
	t.Cleanup(server.Close)
	return &testEnv{server: server, store: st, vectors: vectors, docsDir: docsDir}
}

func (e *testEnv) do(t *testing.T, method, path string, userID int64, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if userID > 0 {
		req.Header.Set(userHeader, fmt.Sprintf("%d", userID))
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var payload map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		payload = nil
	}
	return resp, payload
}

func registerUser(t *testing.T, e *testEnv, username string) int64 {
	t.Helper()
	resp, payload := e.do(t, http.MethodPost, "/v1/auth/register", 0, map[string]interface{}{
		"username": username,
		"email":    username + "@sekolah.sch.id",
		"password": "rahasia123",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register %s: status %d payload %v", username, resp.StatusCode, payload)
	}
	return int64(payload["id"].(float64))
}

func createAdmin(t *testing.T, e *testEnv, username string) int64 {
	t.Helper()
	hash, err := auth.HashPassword("rahasia123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	admin := &store.User{
		Username: username,
		Email:    username + "@sekolah.sch.id",
		Password: hash,
		IsAdmin:  true,
		IsActive: true,
	}
	if err := e.store.CreateUser(context.Background(), admin); err != nil {
		t.Fatalf("create admin: %v", err)
	}
	return admin.ID
}

func TestRegisterLoginAndChatFlow(t *testing.T) {
	env := newTestEnv(t)
	userID := registerUser(t, env, "siswa1")

	resp, payload := env.do(t, http.MethodPost, "/v1/auth/login", 0, map[string]string{
		"username": "siswa1",
		"password": "rahasia123",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: status %d payload %v", resp.StatusCode, payload)
	}
	if payload["username"] != "siswa1" {
		t.Fatalf("login payload %v", payload)
	}

	resp, payload = env.do(t, http.MethodPost, "/v1/chat", userID, map[string]interface{}{
		"question": "Jam berapa masuk sekolah?",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("chat: status %d payload %v", resp.StatusCode, payload)
	}
	sessionID, _ := payload["session_id"].(string)
	if sessionID == "" || payload["answer"] == "" {
		t.Fatalf("chat payload %v", payload)
	}

	resp, payload = env.do(t, http.MethodGet, "/v1/conversations", userID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list conversations: status %d", resp.StatusCode)
	}
	conversations := payload["conversations"].([]interface{})
	if len(conversations) != 1 {
		t.Fatalf("expected 1 conversation, got %d", len(conversations))
	}

	resp, payload = env.do(t, http.MethodGet, "/v1/conversations/"+sessionID+"/history", userID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("history: status %d", resp.StatusCode)
	}
	messages := payload["messages"].([]interface{})
	if len(messages) != 2 {
		t.Fatalf("expected a (user, assistant) pair, got %d entries", len(messages))
	}

	resp, _ = env.do(t, http.MethodPut, "/v1/conversations/"+sessionID+"/title", userID, map[string]string{"title": "jadwal"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update title: status %d", resp.StatusCode)
	}

	resp, _ = env.do(t, http.MethodDelete, "/v1/conversations/"+sessionID, userID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete conversation: status %d", resp.StatusCode)
	}
	resp, _ = env.do(t, http.MethodGet, "/v1/conversations/"+sessionID+"/history", userID, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("deleted conversation should be gone, status %d", resp.StatusCode)
	}
}

func TestChatRequiresPrincipal(t *testing.T) {
	env := newTestEnv(t)
	resp, _ := env.do(t, http.MethodPost, "/v1/chat", 0, map[string]string{"question": "halo"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestChatRejectsUnsupportedModel(t *testing.T) {
	env := newTestEnv(t)
	userID := registerUser(t, env, "siswa2")
	resp, _ := env.do(t, http.MethodPost, "/v1/chat", userID, map[string]interface{}{
		"question":     "halo",
		"model_config": map[string]interface{}{"model_name": "gpt-99"},
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unsupported model, got %d", resp.StatusCode)
	}
}

func TestForeignConversationLooksAbsent(t *testing.T) {
	env := newTestEnv(t)
	owner := registerUser(t, env, "pemilik")
	other := registerUser(t, env, "oranglain")

	_, payload := env.do(t, http.MethodPost, "/v1/chat", owner, map[string]string{"question": "punya saya"})
	sessionID := payload["session_id"].(string)

	resp, _ := env.do(t, http.MethodGet, "/v1/conversations/"+sessionID+"/history", other, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("foreign history should be 404, got %d", resp.StatusCode)
	}
	resp, _ = env.do(t, http.MethodDelete, "/v1/conversations/"+sessionID, other, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("foreign delete should be 404, got %d", resp.StatusCode)
	}
}

func TestRegisterDuplicateConflict(t *testing.T) {
	env := newTestEnv(t)
	registerUser(t, env, "kembar")
	resp, _ := env.do(t, http.MethodPost, "/v1/auth/register", 0, map[string]interface{}{
		"username": "kembar",
		"email":    "lain@sekolah.sch.id",
		"password": "rahasia123",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate username, got %d", resp.StatusCode)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	registerUser(t, env, "siswa3")
	resp, _ := env.do(t, http.MethodPost, "/v1/auth/login", 0, map[string]string{
		"username": "siswa3",
		"password": "salah",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password, got %d", resp.StatusCode)
	}
}

func TestUserAdminEndpoints(t *testing.T) {
	env := newTestEnv(t)
	adminID := createAdmin(t, env, "kepsek")
	studentID := registerUser(t, env, "siswa4")

	resp, _ := env.do(t, http.MethodGet, "/v1/users", studentID, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("non-admin list should be 403, got %d", resp.StatusCode)
	}

	resp, payload := env.do(t, http.MethodGet, "/v1/users", adminID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin list: status %d", resp.StatusCode)
	}
	users := payload["users"].([]interface{})
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}

	resp, payload = env.do(t, http.MethodPut, fmt.Sprintf("/v1/users/%d", studentID), adminID, map[string]interface{}{
		"role": "guru",
	})
	if resp.StatusCode != http.StatusOK || payload["role"] != "guru" {
		t.Fatalf("update user: status %d payload %v", resp.StatusCode, payload)
	}

	resp, _ = env.do(t, http.MethodDelete, fmt.Sprintf("/v1/users/%d", studentID), adminID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete user: status %d", resp.StatusCode)
	}
	resp, _ = env.do(t, http.MethodGet, fmt.Sprintf("/v1/users/%d", studentID), adminID, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("deleted user should be 404, got %d", resp.StatusCode)
	}
}

func TestIngestAndVectorAdmin(t *testing.T) {
	env := newTestEnv(t)
	userID := createAdmin(t, env, "operator")
	if err := os.WriteFile(filepath.Join(env.docsDir, "profil.txt"), []byte("profil sekolah"), 0o644); err != nil {
		t.Fatalf("write doc: %v", err)
	}

	resp, payload := env.do(t, http.MethodPost, "/v1/ingest", userID, map[string]interface{}{})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ingest: status %d payload %v", resp.StatusCode, payload)
	}
	if len(env.vectors.records) != 1 {
		t.Fatalf("expected 1 indexed record, got %d", len(env.vectors.records))
	}

	resp, payload = env.do(t, http.MethodDelete, "/v1/vectors", userID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete vectors: status %d", resp.StatusCode)
	}
	if payload["status"] != "deleted" || len(env.vectors.records) != 0 {
		t.Fatalf("vector wipe failed: %v, %d records", payload, len(env.vectors.records))
	}
}

func TestIngestEndpointsAdminOnly(t *testing.T) {
	env := newTestEnv(t)
	studentID := registerUser(t, env, "siswa6")
	env.vectors.records = append(env.vectors.records, vector.Record{ID: "profil.txt:0", Text: "profil"})

	resp, _ := env.do(t, http.MethodDelete, "/v1/vectors", studentID, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("non-admin vector wipe should be 403, got %d", resp.StatusCode)
	}
	if env.vectors.deletes != 0 || len(env.vectors.records) != 1 {
		t.Fatalf("index must be untouched after a rejected wipe, deletes=%d records=%d", env.vectors.deletes, len(env.vectors.records))
	}

	resp, _ = env.do(t, http.MethodPost, "/v1/ingest", studentID, map[string]interface{}{
		"files": []string{"/etc/passwd"},
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("non-admin ingest should be 403, got %d", resp.StatusCode)
	}
	if len(env.vectors.records) != 1 {
		t.Fatalf("rejected ingest must not index anything, got %d records", len(env.vectors.records))
	}
}

func TestLogsEndpointAdminOnly(t *testing.T) {
	env := newTestEnv(t)
	adminID := createAdmin(t, env, "kepala")
	studentID := registerUser(t, env, "siswa5")

	resp, _ := env.do(t, http.MethodGet, "/v1/logs", studentID, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("non-admin logs should be 403, got %d", resp.StatusCode)
	}
	resp, payload := env.do(t, http.MethodGet, "/v1/logs", adminID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin logs: status %d", resp.StatusCode)
	}
	if _, ok := payload["logs"]; !ok {
		t.Fatalf("logs payload missing: %v", payload)
	}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	resp, err := http.Get(env.server.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status %d", resp.StatusCode)
	}
	if !strings.Contains(resp.Header.Get("Content-Type"), "text") && resp.ContentLength == 0 {
		t.Fatalf("healthz should return a body")
	}
}
