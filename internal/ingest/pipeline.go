// File path: internal/ingest/pipeline.go
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/smpleo/leochat/internal/common"
	"github.com/smpleo/leochat/internal/common/telemetry"
	"github.com/smpleo/leochat/internal/vector"
)

// Embedder produces one vector per input text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Policy decides whether an extracted document should be chunked or indexed
// whole. name is the base file name and size the extracted text length.
type Policy func(name string, size int) bool

// SplitAboveThreshold chunks any document whose extracted text exceeds the
// threshold, regardless of file name.
func SplitAboveThreshold(threshold int) Policy {
	return func(_ string, size int) bool {
		return size > threshold
	}
}

// FileReport records the outcome for a single document.
type FileReport struct {
	Name   string `json:"name"`
	Chunks int    `json:"chunks"`
	Split  bool   `json:"split"`
	Error  string `json:"error,omitempty"`
}

// Report summarizes an ingestion run.
type Report struct {
	Files  []FileReport `json:"files"`
	Chunks int          `json:"chunks"`
	Failed int          `json:"failed"`
}

// Pipeline extracts text from documents, chunks it, embeds the chunks, and
// upserts them into the vector store. Failures are contained per document.
type Pipeline struct {
	embedder Embedder
	store    vector.Store
	splitter *Splitter
	policy   Policy
	logger   *slog.Logger
}

// NewPipeline wires an ingestion pipeline with the given chunking settings.
func NewPipeline(embedder Embedder, store vector.Store, cfg Config) *Pipeline {
	cfg = cfg.applyDefaults()
	return &Pipeline{
		embedder: embedder,
		store:    store,
		splitter: NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
		policy:   SplitAboveThreshold(cfg.SplitThreshold),
		logger:   common.Logger().With("component", "ingest"),
	}
}

// SetPolicy overrides the default split policy.
func (p *Pipeline) SetPolicy(policy Policy) {
	if policy != nil {
		p.policy = policy
	}
}

// IngestDir ingests every supported file directly under dir, in name order.
func (p *Pipeline) IngestDir(ctx context.Context, dir string) (Report, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Report{}, fmt.Errorf("read document directory: %w", err)
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !SupportedFile(entry.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)
	return p.IngestFiles(ctx, paths), nil
}

// IngestFiles ingests the given documents one at a time. A document that
// fails to extract, embed, or upsert is reported and skipped, the rest still
// go through.
func (p *Pipeline) IngestFiles(ctx context.Context, paths []string) Report {
	var report Report
	for _, path := range paths {
		fileReport := p.ingestFile(ctx, path)
		report.Files = append(report.Files, fileReport)
		report.Chunks += fileReport.Chunks
		if fileReport.Error != "" {
			report.Failed++
			p.logger.Warn("document ingestion failed", "file", fileReport.Name, "error", fileReport.Error)
			continue
		}
		p.logger.Info("document ingested", "file", fileReport.Name, "chunks", fileReport.Chunks, "split", fileReport.Split)
	}
	telemetry.RecordIngest(len(report.Files)-report.Failed, report.Chunks, report.Failed)
	return report
}

func (p *Pipeline) ingestFile(ctx context.Context, path string) FileReport {
	name := filepath.Base(path)
	chunks, split, err := p.chunksFor(path, name)
	if err != nil {
		return FileReport{Name: name, Error: err.Error()}
	}
	if len(chunks) == 0 {
		return FileReport{Name: name}
	}
	if err := p.index(ctx, name, chunks); err != nil {
		return FileReport{Name: name, Error: err.Error()}
	}
	return FileReport{Name: name, Chunks: len(chunks), Split: split}
}

func (p *Pipeline) chunksFor(path, name string) ([]string, bool, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		records, err := extractJSONRecords(path)
		return records, false, err
	}
	text, err := extractText(path)
	if err != nil {
		return nil, false, err
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, false, nil
	}
	if !p.policy(name, len([]rune(text))) {
		return []string{text}, false, nil
	}
	return p.splitter.Split(text), true, nil
}

// index embeds the chunks and writes them in a single batch, so a document is
// either fully indexed or not indexed at all.
func (p *Pipeline) index(ctx context.Context, name string, chunks []string) error {
	vectors, err := p.embedder.Embed(ctx, chunks)
	if err != nil {
		return fmt.Errorf("embed %s: %w", name, err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embed %s: got %d vectors for %d chunks", name, len(vectors), len(chunks))
	}
	records := make([]vector.Record, len(chunks))
	for i, chunk := range chunks {
		records[i] = vector.Record{
			ID:   fmt.Sprintf("%s:%d", name, i),
			Text: chunk,
			Metadata: map[string]interface{}{
				"source": name,
				"chunk":  i,
			},
		}
	}
	if err := p.store.Upsert(ctx, records, vectors); err != nil {
		return fmt.Errorf("index %s: %w", name, err)
	}
	return nil
}
