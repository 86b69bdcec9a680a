// File path: internal/vector/chromadb_test.go
package vector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeChroma struct {
	t *testing.T

	mu             sync.Mutex
	collectionName string
	collectionID   string
	deleted        bool
	upsertCalls    int
	queryCalls     int

	lastUpsert map[string]interface{}
	queryReply map[string]interface{}
}

func newFakeChroma(t *testing.T) *fakeChroma {
	t.Helper()
	return &fakeChroma{
		t:              t,
		collectionName: "school_docs",
		collectionID:   "col-1",
	}
}

func (f *fakeChroma) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/heartbeat":
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	case r.URL.Path == "/api/v1/collections" && r.Method == http.MethodGet:
		f.mu.Lock()
		defer f.mu.Unlock()
		resp := map[string]interface{}{"collections": []map[string]string{}}
		if !f.deleted {
			resp["collections"] = []map[string]string{{"id": f.collectionID, "name": f.collectionName}}
		}
		writeFakeJSON(w, resp)
	case r.URL.Path == "/api/v1/collections" && r.Method == http.MethodPost:
		f.mu.Lock()
		f.deleted = false
		f.collectionID = "col-recreated"
		id := f.collectionID
		f.mu.Unlock()
		writeFakeJSON(w, map[string]string{"id": id})
	case strings.HasPrefix(r.URL.Path, "/api/v1/collections/") && r.Method == http.MethodDelete:
		f.mu.Lock()
		f.deleted = true
		f.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	case strings.HasSuffix(r.URL.Path, "/upsert"):
		f.mu.Lock()
		f.upsertCalls++
		var payload map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&payload)
		f.lastUpsert = payload
		f.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	case strings.HasSuffix(r.URL.Path, "/query"):
		f.mu.Lock()
		f.queryCalls++
		reply := f.queryReply
		f.mu.Unlock()
		if reply == nil {
			reply = map[string]interface{}{"ids": [][]string{}}
		}
		writeFakeJSON(w, reply)
	default:
		http.NotFound(w, r)
	}
}

func writeFakeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func newTestClient(t *testing.T, fake *fakeChroma) *Client {
	t.Helper()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)
	parsed, err := url.Parse(server.URL)
	if err != nil {
		t.Fatalf("parse server url: %v", err)
	}
	client, err := New(context.Background(), Config{
		Host:       parsed.Hostname(),
		Port:       parsed.Port(),
		Scheme:     "http",
		Collection: "school_docs",
		Timeout:    2 * time.Second,
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestUpsertSendsWholeBatch(t *testing.T) {
	fake := newFakeChroma(t)
	client := newTestClient(t, fake)
	records := []Record{
		{ID: "doc:0", Text: "jam sekolah", Metadata: map[string]interface{}{"source": "tatib.pdf"}},
		{ID: "doc:1", Text: "kalender", Metadata: map[string]interface{}{"source": "kalender.pdf"}},
	}
	vectors := [][]float32{{0.1, 0.2}, {0.3, 0.4}}
	if err := client.Upsert(context.Background(), records, vectors); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	fake.mu.Lock()
	defer fake.mu.Unlock()
	if fake.upsertCalls != 1 {
		t.Fatalf("expected 1 upsert call, got %d", fake.upsertCalls)
	}
	ids, ok := fake.lastUpsert["ids"].([]interface{})
	if !ok || len(ids) != 2 {
		t.Fatalf("unexpected ids payload: %v", fake.lastUpsert["ids"])
	}
}

func TestUpsertRejectsMismatchedVectors(t *testing.T) {
	fake := newFakeChroma(t)
	client := newTestClient(t, fake)
	records := []Record{{ID: "doc:0", Text: "a"}, {ID: "doc:1", Text: "b"}}
	err := client.Upsert(context.Background(), records, [][]float32{{0.1}})
	if err == nil {
		t.Fatal("expected mismatch error")
	}
	fake.mu.Lock()
	defer fake.mu.Unlock()
	if fake.upsertCalls != 0 {
		t.Fatalf("batch must not be sent on mismatch, got %d calls", fake.upsertCalls)
	}
}

func TestSearchMapsResults(t *testing.T) {
	fake := newFakeChroma(t)
	fake.queryReply = map[string]interface{}{
		"ids":       [][]string{{"doc:0", "doc:1"}},
		"distances": [][]float64{{0.0, 1.0}},
		"documents": [][]string{{"jam sekolah 07.00", "libur semester"}},
		"metadatas": [][]map[string]interface{}{{{"source": "tatib.pdf"}, {"source": "kalender.pdf"}}},
	}
	client := newTestClient(t, fake)
	results, err := client.Search(context.Background(), []float32{0.5, 0.5}, 2)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Text != "jam sekolah 07.00" || results[0].Score != 1.0 {
		t.Fatalf("unexpected first result: %+v", results[0])
	}
	if results[1].Score >= results[0].Score {
		t.Fatalf("expected descending scores: %v then %v", results[0].Score, results[1].Score)
	}
	if results[0].Metadata["source"] != "tatib.pdf" {
		t.Fatalf("unexpected metadata: %+v", results[0].Metadata)
	}
}

func TestSearchEmptyIndexReturnsNoResults(t *testing.T) {
	fake := newFakeChroma(t)
	client := newTestClient(t, fake)
	results, err := client.Search(context.Background(), []float32{0.5}, 3)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results, got %d", len(results))
	}
}

func TestDeleteAllWipesAndRecreatesOnNextUse(t *testing.T) {
	fake := newFakeChroma(t)
	client := newTestClient(t, fake)
	if err := client.DeleteAll(context.Background()); err != nil {
		t.Fatalf("delete all: %v", err)
	}
	fake.mu.Lock()
	if !fake.deleted {
		t.Fatal("expected collection delete request")
	}
	fake.mu.Unlock()
	// Next upsert recreates the collection lazily.
	if err := client.Upsert(context.Background(), []Record{{ID: "doc:0", Text: "x"}}, [][]float32{{0.1}}); err != nil {
		t.Fatalf("upsert after wipe: %v", err)
	}
	fake.mu.Lock()
	defer fake.mu.Unlock()
	if fake.deleted {
		t.Fatal("expected collection recreation")
	}
}
