// File path: internal/common/telemetry/telemetry.go
package telemetry

import (
	"context"
	"expvar"
	"sync"
	"time"

	"github.com/smpleo/leochat/internal/common"
)

var (
	initOnce sync.Once

	chatTurnTotal     *expvar.Int
	chatTurnLatencyMS *expvar.Int

	vectorSearchTotal     *expvar.Int
	vectorSearchLatencyMS *expvar.Int

	ingestDocsTotal   *expvar.Int
	ingestChunksTotal *expvar.Int
	ingestFailedTotal *expvar.Int
)

func ensureInit() {
	initOnce.Do(func() {
		chatTurnTotal = expvar.NewInt("leochat_chat_turns_total")
		chatTurnLatencyMS = expvar.NewInt("leochat_chat_turn_latency_ms")

		vectorSearchTotal = expvar.NewInt("leochat_vector_search_total")
		vectorSearchLatencyMS = expvar.NewInt("leochat_vector_search_latency_ms")

		ingestDocsTotal = expvar.NewInt("leochat_ingest_docs_total")
		ingestChunksTotal = expvar.NewInt("leochat_ingest_chunks_total")
		ingestFailedTotal = expvar.NewInt("leochat_ingest_failed_total")
	})
}

// StartSpan opens a named timing span. The returned func closes it and logs
// the duration at debug level with any extra attributes.
func StartSpan(ctx context.Context, name string) (context.Context, func(attrs ...interface{})) {
	ensureInit()
	start := time.Now()
	logger := common.Logger()
	logger.Debug("trace: start", "span", name)
	return ctx, func(attrs ...interface{}) {
		duration := time.Since(start)
		logger.Debug("trace: end", append([]interface{}{"span", name, "dur", duration}, attrs...)...)
	}
}

// RecordChatTurn counts one completed turn.
func RecordChatTurn(duration time.Duration) {
	ensureInit()
	chatTurnTotal.Add(1)
	if duration > 0 {
		chatTurnLatencyMS.Add(duration.Milliseconds())
	}
}

// RecordVectorSearch counts one index query.
func RecordVectorSearch(duration time.Duration) {
	ensureInit()
	vectorSearchTotal.Add(1)
	if duration > 0 {
		vectorSearchLatencyMS.Add(duration.Milliseconds())
	}
}

// RecordIngest accumulates per-run ingestion counters.
func RecordIngest(docs, chunks, failed int) {
	ensureInit()
	if docs > 0 {
		ingestDocsTotal.Add(int64(docs))
	}
	if chunks > 0 {
		ingestChunksTotal.Add(int64(chunks))
	}
	if failed > 0 {
		ingestFailedTotal.Add(int64(failed))
	}
}
