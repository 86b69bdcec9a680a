// File path: internal/ingest/pipeline_test.go
package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/smpleo/leochat/internal/vector"
)

type fakeEmbedder struct {
	calls int
	fail  bool
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.fail {
		return nil, errors.New("embedding backend down")
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{float32(len(texts[i])), 0, 1}
	}
	return vectors, nil
}

type fakeVectorStore struct {
	records []vector.Record
	failFor string
	upserts int
	deletes int
}

func (f *fakeVectorStore) Available() bool    { return true }
func (f *fakeVectorStore) Collection() string { return "school_docs" }

func (f *fakeVectorStore) Upsert(_ context.Context, records []vector.Record, vectors [][]float32) error {
	f.upserts++
	if len(records) != len(vectors) {
		return errors.New("record and vector count mismatch")
	}
	for _, record := range records {
		if f.failFor != "" && strings.HasPrefix(record.ID, f.failFor) {
			return errors.New("vector store rejected batch")
		}
	}
	f.records = append(f.records, records...)
	return nil
}

func (f *fakeVectorStore) Search(_ context.Context, _ []float32, _ int) ([]vector.SearchResult, error) {
	return nil, nil
}

func (f *fakeVectorStore) DeleteAll(_ context.Context) error {
	f.deletes++
	f.records = nil
	return nil
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestIngestDirChunksLargeDocuments(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "profil.txt", strings.Repeat("sejarah sekolah menengah pertama ", 100))
	writeFile(t, dir, "pengumuman.md", "jadwal ujian semester ganjil")

	store := &fakeVectorStore{}
	pipeline := NewPipeline(&fakeEmbedder{}, store, Config{ChunkSize: 300, ChunkOverlap: 50, SplitThreshold: 500})

	report, err := pipeline.IngestDir(context.Background(), dir)
	if err != nil {
		t.Fatalf("IngestDir: %v", err)
	}
	if report.Failed != 0 {
		t.Fatalf("expected no failures, got %d", report.Failed)
	}
	if len(report.Files) != 2 {
		t.Fatalf("expected 2 file reports, got %d", len(report.Files))
	}
	var large, small FileReport
	for _, file := range report.Files {
		switch file.Name {
		case "profil.txt":
			large = file
		case "pengumuman.md":
			small = file
		}
	}
	if !large.Split || large.Chunks < 2 {
		t.Fatalf("large document should be chunked, got %+v", large)
	}
	if small.Split || small.Chunks != 1 {
		t.Fatalf("small document should be indexed whole, got %+v", small)
	}
	if len(store.records) != report.Chunks {
		t.Fatalf("store holds %d records, report says %d chunks", len(store.records), report.Chunks)
	}
	for _, record := range store.records {
		if record.Metadata["source"] == nil {
			t.Fatalf("record %s missing source metadata", record.ID)
		}
	}
}

func TestIngestFilesContinuesPastFailures(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "jadwal.txt", "jam masuk pukul tujuh pagi")
	bad := writeFile(t, dir, "rusak.json", "{not valid json")

	store := &fakeVectorStore{}
	pipeline := NewPipeline(&fakeEmbedder{}, store, Config{})

	report := pipeline.IngestFiles(context.Background(), []string{bad, good})
	if report.Failed != 1 {
		t.Fatalf("expected 1 failure, got %d", report.Failed)
	}
	if report.Files[0].Error == "" {
		t.Fatalf("broken document should carry an error")
	}
	if report.Files[1].Error != "" || report.Files[1].Chunks != 1 {
		t.Fatalf("healthy document should still be indexed, got %+v", report.Files[1])
	}
	if len(store.records) != 1 {
		t.Fatalf("expected 1 record in store, got %d", len(store.records))
	}
}

func TestIngestFileAllOrNothingOnStoreError(t *testing.T) {
	dir := t.TempDir()
	big := writeFile(t, dir, "besar.txt", strings.Repeat("tata tertib siswa ", 200))
	other := writeFile(t, dir, "kecil.txt", "lokasi perpustakaan lantai dua")

	store := &fakeVectorStore{failFor: "besar.txt:"}
	pipeline := NewPipeline(&fakeEmbedder{}, store, Config{SplitThreshold: 500})

	report := pipeline.IngestFiles(context.Background(), []string{big, other})
	if report.Failed != 1 {
		t.Fatalf("expected 1 failure, got %d", report.Failed)
	}
	for _, record := range store.records {
		if strings.HasPrefix(record.ID, "besar.txt:") {
			t.Fatalf("rejected document leaked records into the store: %s", record.ID)
		}
	}
	if len(store.records) != 1 {
		t.Fatalf("expected only the small document indexed, got %d records", len(store.records))
	}
}

func TestIngestEmbedFailureReported(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "visi.txt", "menjadi sekolah unggul")

	store := &fakeVectorStore{}
	pipeline := NewPipeline(&fakeEmbedder{fail: true}, store, Config{})

	report := pipeline.IngestFiles(context.Background(), []string{path})
	if report.Failed != 1 || len(store.records) != 0 {
		t.Fatalf("embed failure should fail the document without writes, got %+v", report)
	}
}

func TestJSONRecords(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "faq.json", `["biaya spp per bulan", {"q": "jam pulang", "a": "15.00"}, "  ", "ekstrakurikuler basket"]`)

	store := &fakeVectorStore{}
	pipeline := NewPipeline(&fakeEmbedder{}, store, Config{})

	report := pipeline.IngestFiles(context.Background(), []string{path})
	if report.Failed != 0 {
		t.Fatalf("expected no failures, got %+v", report)
	}
	if report.Files[0].Chunks != 3 {
		t.Fatalf("expected 3 records (blank entries skipped), got %d", report.Files[0].Chunks)
	}
	if report.Files[0].Split {
		t.Fatalf("json records should not be marked as split")
	}
	var sawObject bool
	for _, record := range store.records {
		if strings.Contains(record.Text, `"q":"jam pulang"`) {
			sawObject = true
		}
	}
	if !sawObject {
		t.Fatalf("object element should be re-serialized as a record")
	}
}

func TestJSONObjectSingleRecord(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "kontak.json", `{"telepon": "021-555", "alamat": "Jl. Merdeka 1"}`)

	records, err := extractJSONRecords(path)
	if err != nil {
		t.Fatalf("extractJSONRecords: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record for a top-level object, got %d", len(records))
	}
}

func TestIngestDirSkipsUnsupportedFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "catatan.txt", "rapat komite sekolah")
	writeFile(t, dir, "foto.png", "binary")

	store := &fakeVectorStore{}
	pipeline := NewPipeline(&fakeEmbedder{}, store, Config{})

	report, err := pipeline.IngestDir(context.Background(), dir)
	if err != nil {
		t.Fatalf("IngestDir: %v", err)
	}
	if len(report.Files) != 1 || report.Files[0].Name != "catatan.txt" {
		t.Fatalf("unsupported files should be skipped, got %+v", report.Files)
	}
}
