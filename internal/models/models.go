package models

// QueryIntent is a coarse classification of what a question asks for.
type QueryIntent string

const (
	IntentCoverageCheck QueryIntent = "coverage_check"
	IntentEligibility   QueryIntent = "eligibility"
	IntentCompliance    QueryIntent = "compliance"
	IntentDefinition    QueryIntent = "definition"
	IntentProcedure     QueryIntent = "procedure"
	IntentGeneral       QueryIntent = "general"
)

// ParseIntent maps a raw intent string onto the enumeration. Unknown or
// empty values fall back to IntentGeneral.
func ParseIntent(raw string) QueryIntent {
	switch QueryIntent(raw) {
	case IntentCoverageCheck, IntentEligibility, IntentCompliance, IntentDefinition, IntentProcedure, IntentGeneral:
		return QueryIntent(raw)
	default:
		return IntentGeneral
	}
}

// Chunk is a bounded span of document text, the unit of retrieval.
// Chunks are immutable once created.
type Chunk struct {
	ChunkID    string         `json:"chunk_id"`
	Content    string         `json:"content"`
	PageNumber int            `json:"page_number"`
	ChunkIndex int            `json:"chunk_index"`
	DocumentID string         `json:"document_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// SearchResult pairs a chunk with its similarity score for one query.
type SearchResult struct {
	Chunk               Chunk   `json:"chunk"`
	Score               float64 `json:"score"`
	EmbeddingSimilarity float64 `json:"embedding_similarity"`
}

// ParsedQuery is the structured form of a natural-language question.
type ParsedQuery struct {
	Intent           QueryIntent `json:"intent"`
	TargetSubject    string      `json:"target_subject"`
	FilterConditions []string    `json:"filter_conditions"`
	Keywords         []string    `json:"keywords"`
	OriginalQuery    string      `json:"original_query"`
}

// ClauseMatch is the chunk selected as the textual basis for an answer.
type ClauseMatch struct {
	ClauseText     string  `json:"clause_text"`
	ClauseID       string  `json:"clause_id"`
	RelevanceScore float64 `json:"relevance_score"`
	PageReference  int     `json:"page_reference"`
	Section        string  `json:"section,omitempty"`
}

// QueryRequest is a single question, optionally with a document to ingest
// first and free-form caller context.
type QueryRequest struct {
	Query       string         `json:"query"`
	DocumentURL string         `json:"document_url,omitempty"`
	DocumentID  string         `json:"document_id,omitempty"`
	Context     map[string]any `json:"context,omitempty"`
}

// QueryResponse is the structured answer for one question.
type QueryResponse struct {
	Answer         string         `json:"answer"`
	Conditions     []string       `json:"conditions"`
	Clause         string         `json:"clause"`
	Confidence     float64        `json:"confidence"`
	Rationale      string         `json:"rationale"`
	PageReferences []int          `json:"page_references"`
	AdditionalInfo map[string]any `json:"additional_info,omitempty"`
}

// Document lifecycle states.
const (
	StatusProcessing = "processing"
	StatusProcessed  = "processed"
	StatusFailed     = "failed"
)

// DocumentRecord tracks one processed document for the life of the process.
type DocumentRecord struct {
	DocumentID string `json:"document_id"`
	URL        string `json:"url"`
	ChunkCount int    `json:"chunk_count"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
}

// SystemHealth is the aggregate health summary exposed to the boundary layer.
type SystemHealth struct {
	Status         string `json:"status"`
	VectorDBStatus string `json:"vector_db_status"`
	LLMStatus      string `json:"llm_status"`
	TotalDocuments int    `json:"total_documents"`
	TotalChunks    int    `json:"total_chunks"`
	IndexBackend   string `json:"index_backend"`
	EmbeddingModel string `json:"embedding_model"`
}
