package pipeline

import (
	"context"
	"fmt"
	"sort"

	"docquery/internal/chunker"
	"docquery/internal/extract"
	"docquery/internal/llm"
	"docquery/internal/metrics"
	"docquery/internal/models"
	"docquery/internal/retrieval"
	"docquery/internal/util"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	queryTopK = 10
	batchTopK = 15
	// Clauses handed to the evaluation prompts and used for page references.
	evaluationClauses = 5
)

// Orchestrator is the top-level pipeline: it processes documents into the
// vector index and answers questions against what has been indexed.
type Orchestrator struct {
	downloader *extract.Downloader
	extractor  *extract.Extractor
	engine     *retrieval.Engine
	generator  *llm.Generator
	store      *DocStore
	chunkOpts  chunker.Options
	log        zerolog.Logger
	metrics    *metrics.Metrics

	llmConfigured bool
}

type Options struct {
	Downloader    *extract.Downloader
	Extractor     *extract.Extractor
	Engine        *retrieval.Engine
	Generator     *llm.Generator
	ChunkOptions  chunker.Options
	Log           zerolog.Logger
	Metrics       *metrics.Metrics
	LLMConfigured bool
}

func NewOrchestrator(opts Options) *Orchestrator {
	m := opts.Metrics
	if m == nil {
		m = metrics.NewNop()
	}
	return &Orchestrator{
		downloader:    opts.Downloader,
		extractor:     opts.Extractor,
		engine:        opts.Engine,
		generator:     opts.Generator,
		store:         NewDocStore(),
		chunkOpts:     opts.ChunkOptions,
		log:           opts.Log,
		metrics:       m,
		llmConfigured: opts.LLMConfigured,
	}
}

// ProcessDocument downloads, extracts, chunks, and indexes one document.
// An empty documentID gets a generated UUID. Reprocessing an existing id
// overwrites its record and adds fresh chunks.
func (o *Orchestrator) ProcessDocument(ctx context.Context, url, documentID string) (string, error) {
	if documentID == "" {
		documentID = uuid.NewString()
	}
	o.log.Info().Str("document_id", documentID).Str("url", url).Msg("processing document")
	o.store.Put(models.DocumentRecord{DocumentID: documentID, URL: url, Status: models.StatusProcessing})

	chunks, err := o.prepareChunks(ctx, url, documentID)
	if err == nil {
		err = o.engine.AddDocumentChunks(ctx, chunks)
	}
	if err != nil {
		o.store.Put(models.DocumentRecord{DocumentID: documentID, URL: url, Status: models.StatusFailed, Error: err.Error()})
		o.metrics.DocumentsFailed.Inc()
		return documentID, fmt.Errorf("process document %s: %w", documentID, err)
	}

	o.store.Put(models.DocumentRecord{DocumentID: documentID, URL: url, ChunkCount: len(chunks), Status: models.StatusProcessed})
	o.metrics.DocumentsProcessed.Inc()
	if stats, statsErr := o.engine.Stats(ctx); statsErr == nil {
		o.metrics.IndexedVectors.Set(float64(stats.Count))
	}
	o.log.Info().Str("document_id", documentID).Int("chunks", len(chunks)).Msg("document processed")
	return documentID, nil
}

func (o *Orchestrator) prepareChunks(ctx context.Context, url, documentID string) ([]models.Chunk, error) {
	data, err := o.downloader.Download(ctx, url)
	if err != nil {
		return nil, err
	}
	pages, err := o.extractor.ExtractPages(data)
	if err != nil {
		return nil, err
	}
	return chunker.Split(pages, documentID, o.chunkOpts), nil
}

// QueryDocuments answers a single question, optionally processing a
// document first. Failures come back as an error-shaped response rather
// than an error value.
func (o *Orchestrator) QueryDocuments(ctx context.Context, req models.QueryRequest) (resp models.QueryResponse) {
	defer func() {
		// A single bad question must never take the process down.
		if r := recover(); r != nil {
			o.log.Error().Any("panic", r).Msg("query processing panicked")
			o.metrics.QueriesTotal.WithLabelValues("error").Inc()
			resp = errorResponse(fmt.Errorf("unexpected failure: %v", r))
		}
	}()
	o.log.Info().Str("query", req.Query).Msg("processing query")

	if req.DocumentURL != "" {
		if _, err := o.ProcessDocument(ctx, req.DocumentURL, req.DocumentID); err != nil {
			o.metrics.QueriesTotal.WithLabelValues("error").Inc()
			return errorResponse(err)
		}
	}

	parsed := o.generator.ParseQuery(ctx, req.Query, req.Context)
	o.log.Info().Str("intent", string(parsed.Intent)).Str("subject", parsed.TargetSubject).Msg("query parsed")

	results := o.engine.SearchSimilarChunks(ctx, req.Query, queryTopK)
	if len(results) == 0 {
		o.metrics.QueriesTotal.WithLabelValues("no_results").Inc()
		return noResultsResponse()
	}

	best := bestClause(results)
	clauses := clauseTexts(results, evaluationClauses)
	evaluation := o.generator.EvaluateLogic(ctx, req.Query, clauses, req.Context)
	pageRefs := pageReferences(results, evaluationClauses)
	final := o.generator.GenerateFinalResponse(ctx, req.Query, evaluation, best.ClauseText)

	resp = models.QueryResponse{
		Answer:         llm.CoerceAnswer(final["answer"]),
		Conditions:     conditionStrings(final["conditions"]),
		Clause:         best.ClauseText,
		Confidence:     floatField(final, "confidence", best.RelevanceScore),
		Rationale:      "Analysis completed",
		PageReferences: pageRefs,
		AdditionalInfo: map[string]any{
			"parsed_query":         parsed,
			"search_results_count": len(results),
			"document_id":          req.DocumentID,
			"logic_evaluation":     evaluation,
		},
	}
	if clause, ok := final["clause"].(string); ok && clause != "" {
		resp.Clause = clause
	}
	if rationale, ok := final["rationale"].(string); ok && rationale != "" {
		resp.Rationale = rationale
	} else if rationale, ok := evaluation["rationale"].(string); ok && rationale != "" {
		resp.Rationale = rationale
	}

	o.metrics.QueriesTotal.WithLabelValues("success").Inc()
	o.log.Info().Str("answer", util.Snippet(resp.Answer, 120)).Msg("query processed")
	return resp
}

// ProcessBatchQueries processes one document and answers every question
// against it, returning one answer string per question in order. A document
// failure yields the same error text for all questions; a single question's
// failure affects only its own slot.
func (o *Orchestrator) ProcessBatchQueries(ctx context.Context, documentURL string, questions []string) []string {
	documentID := "batch_" + uuid.NewString()[:8]

	if _, err := o.ProcessDocument(ctx, documentURL, documentID); err != nil {
		o.log.Error().Err(err).Msg("batch document processing failed")
		msg := fmt.Sprintf("Error processing questions: %s", err.Error())
		answers := make([]string, len(questions))
		for i := range answers {
			answers[i] = msg
		}
		return answers
	}

	answers := make([]string, 0, len(questions))
	for i, question := range questions {
		o.log.Info().Int("question", i+1).Int("total", len(questions)).Str("text", util.Snippet(question, 120)).Msg("processing batch question")
		answers = append(answers, o.answerBatchQuestion(ctx, question))
	}
	return answers
}

// answerBatchQuestion handles one question of a batch. Failures, including
// panics, stay confined to this question's answer slot.
func (o *Orchestrator) answerBatchQuestion(ctx context.Context, question string) (answer string) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Error().Any("panic", r).Msg("batch question panicked")
			answer = fmt.Sprintf("Unable to process this question: %v", r)
		}
	}()

	results := o.engine.SearchSimilarChunks(ctx, question, batchTopK)
	if len(results) == 0 {
		return "No relevant information found in the document for this question."
	}

	best := bestClause(results)
	combined := o.generator.ParseAndEvaluateCombined(ctx, question, clauseTexts(results, evaluationClauses))
	final := o.generator.GenerateFinalResponse(ctx, question, combined, best.ClauseText)
	return llm.CoerceAnswer(final["answer"])
}

// DocumentStatus reports the record for one document id.
func (o *Orchestrator) DocumentStatus(documentID string) (models.DocumentRecord, error) {
	return o.store.Get(documentID)
}

// ListDocuments returns all document records and their count.
func (o *Orchestrator) ListDocuments() (map[string]models.DocumentRecord, int) {
	all := o.store.All()
	return all, len(all)
}

// SearchHit is a raw retrieval result without answer generation.
type SearchHit struct {
	Content         string  `json:"content"`
	PageNumber      int     `json:"page_number"`
	DocumentID      string  `json:"document_id"`
	SimilarityScore float64 `json:"similarity_score"`
	ChunkID         string  `json:"chunk_id"`
}

// SearchDocuments exposes plain vector search; failures degrade to an
// empty list.
func (o *Orchestrator) SearchDocuments(ctx context.Context, query string, k int) []SearchHit {
	if k <= 0 {
		k = 5
	}
	results := o.engine.SearchSimilarChunks(ctx, query, k)
	hits := make([]SearchHit, 0, len(results))
	for _, r := range results {
		hits = append(hits, SearchHit{
			Content:         r.Chunk.Content,
			PageNumber:      r.Chunk.PageNumber,
			DocumentID:      r.Chunk.DocumentID,
			SimilarityScore: r.Score,
			ChunkID:         r.Chunk.ChunkID,
		})
	}
	return hits
}

// ReprocessDocument runs an already-known document through the pipeline
// again under the same id.
func (o *Orchestrator) ReprocessDocument(ctx context.Context, documentID string) bool {
	rec, err := o.store.Get(documentID)
	if err != nil {
		return false
	}
	if _, err := o.ProcessDocument(ctx, rec.URL, documentID); err != nil {
		o.log.Error().Err(err).Str("document_id", documentID).Msg("reprocess failed")
		return false
	}
	return true
}

// Health summarizes index and provider state.
func (o *Orchestrator) Health(ctx context.Context) models.SystemHealth {
	health := models.SystemHealth{
		Status:         "healthy",
		VectorDBStatus: "connected",
		LLMStatus:      "not_configured",
		TotalDocuments: o.store.Len(),
		IndexBackend:   o.engine.IndexName(),
		EmbeddingModel: o.engine.EmbedderName(),
	}
	if o.llmConfigured {
		health.LLMStatus = "connected"
	}
	stats, err := o.engine.Stats(ctx)
	if err != nil {
		health.Status = "unhealthy"
		health.VectorDBStatus = "error"
		return health
	}
	health.TotalChunks = stats.Count
	return health
}

func bestClause(results []models.SearchResult) models.ClauseMatch {
	if len(results) == 0 {
		return models.ClauseMatch{ClauseText: "No relevant clauses found", ClauseID: "none"}
	}
	top := results[0]
	return models.ClauseMatch{
		ClauseText:     top.Chunk.Content,
		ClauseID:       top.Chunk.ChunkID,
		RelevanceScore: top.Score,
		PageReference:  top.Chunk.PageNumber,
		Section:        fmt.Sprintf("Chunk %d", top.Chunk.ChunkIndex),
	}
}

func clauseTexts(results []models.SearchResult, limit int) []string {
	if limit > len(results) {
		limit = len(results)
	}
	texts := make([]string, 0, limit)
	for _, r := range results[:limit] {
		texts = append(texts, r.Chunk.Content)
	}
	return texts
}

// pageReferences collects the distinct page numbers behind the top results,
// sorted ascending.
func pageReferences(results []models.SearchResult, limit int) []int {
	if limit > len(results) {
		limit = len(results)
	}
	seen := make(map[int]bool)
	var pages []int
	for _, r := range results[:limit] {
		if !seen[r.Chunk.PageNumber] {
			seen[r.Chunk.PageNumber] = true
			pages = append(pages, r.Chunk.PageNumber)
		}
	}
	sort.Ints(pages)
	return pages
}

func noResultsResponse() models.QueryResponse {
	return models.QueryResponse{
		Answer:         "No relevant information found",
		Conditions:     []string{},
		Clause:         "No matching clauses found in the document.",
		Confidence:     0.0,
		Rationale:      "The system could not find any relevant information to answer your query. This may be because the topic is not covered in the document or the query needs to be more specific.",
		PageReferences: []int{},
		AdditionalInfo: map[string]any{"status": "no_results"},
	}
}

func errorResponse(err error) models.QueryResponse {
	return models.QueryResponse{
		Answer:         "Error processing query",
		Conditions:     []string{},
		Clause:         "An error occurred while processing your request.",
		Confidence:     0.0,
		Rationale:      fmt.Sprintf("The system encountered an error: %s", err.Error()),
		PageReferences: []int{},
		AdditionalInfo: map[string]any{"error": err.Error(), "status": "error"},
	}
}

func conditionStrings(v any) []string {
	items, ok := v.([]any)
	if !ok {
		if direct, ok := v.([]string); ok {
			return direct
		}
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, llm.CoerceAnswer(item))
	}
	return out
}

func floatField(obj map[string]any, key string, fallback float64) float64 {
	switch v := obj[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return fallback
	}
}
