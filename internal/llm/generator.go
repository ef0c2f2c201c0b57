package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"docquery/internal/models"
	"docquery/internal/util"

	"github.com/rs/zerolog"
)

const parseSystemPrompt = `You are an expert query parser for document analysis systems.
Your task is to analyze user queries and extract structured information.

Parse the user query and return a JSON object with these fields:
- intent: One of [coverage_check, eligibility, compliance, definition, procedure, general]
- target_subject: The main subject/topic of the query
- filter_conditions: List of conditions or filters mentioned
- keywords: Important keywords for semantic search

Examples:
Query: "Does this policy cover knee surgery?"
Response: {
    "intent": "coverage_check",
    "target_subject": "knee surgery",
    "filter_conditions": [],
    "keywords": ["policy", "cover", "knee surgery", "medical procedure"]
}

Query: "What are the eligibility requirements for dental coverage for employees over 50?"
Response: {
    "intent": "eligibility",
    "target_subject": "dental coverage",
    "filter_conditions": ["employees over 50"],
    "keywords": ["eligibility", "requirements", "dental coverage", "employees", "age 50"]
}

Return only valid JSON, no additional text.`

const evaluateSystemPrompt = `You are an expert document analyst specializing in policy and legal document interpretation.
Your task is to evaluate whether given clauses answer a user's query and provide detailed reasoning.

Analyze the query and relevant clauses, then return a JSON object with:
- answer: Direct yes/no/partial answer to the query
- meets_criteria: Boolean indicating if the query is fully answered
- applicable_conditions: List of conditions that apply
- rationale: Detailed explanation of your reasoning
- confidence_score: Float between 0-1 indicating confidence
- supporting_evidence: List of specific text snippets that support the answer

Be precise, factual, and cite specific clause text in your reasoning.`

const combinedSystemPrompt = `You are an expert document analyst. Parse the query AND evaluate the clauses in ONE response.

CRITICAL INSTRUCTIONS:
- Extract EXACT numbers, time periods, percentages, and amounts from the document
- For waiting periods: State the EXACT number (e.g., "30 days", "36 months", "2 years")
- For percentages: Include the EXACT percentage (e.g., "5%", "10%")
- For definitions: Include ALL technical criteria and requirements mentioned
- For sub-limits: Include EXACT percentages and amounts
- For conditions: List ALL conditions, not just summaries

Return ONLY a valid JSON object with these exact fields:
- intent: One of [coverage_check, eligibility, compliance, definition, procedure, general]
- target_subject: Main subject/topic of the query
- answer: Complete answer as a SINGLE STRING with ALL specific details, numbers, percentages, and time periods
- applicable_conditions: List of condition strings with exact details
- confidence_score: Float between 0-1 indicating confidence

IMPORTANT:
- Return ONLY the JSON object. No additional text, explanations, or comments.
- The "answer" field must be a STRING, never an object or nested structure
- Be COMPLETE and ACCURATE. Include ALL relevant details from the document.`

const finalizeSystemPrompt = `Generate final comprehensive answer as a valid JSON object.

CRITICAL INSTRUCTIONS:
- Include ALL exact numbers, time periods, percentages from the analysis
- For waiting periods: State EXACT duration (e.g., "30 days", "36 months", "2 years")
- For percentages: Include EXACT percentage values (e.g., "5%", "10%")
- For definitions: Include ALL technical criteria and requirements
- For sub-limits: Include EXACT percentage limits and amounts
- Do NOT summarize or abbreviate - include complete details

Return ONLY a JSON object with these exact fields:
- answer: Complete detailed answer as a SINGLE STRING with ALL specific numbers and details
- conditions: List of condition strings with exact details
- confidence: 0-1

IMPORTANT:
- Return ONLY the JSON object. No additional text or explanations.
- The "answer" field must be a STRING, never an object or nested structure
- Be COMPLETE and include ALL exact details from the analysis.`

const (
	combinedTimeout = 15 * time.Second
	finalizeTimeout = 12 * time.Second
)

// CompletionRunner is what the generator needs from the provider layer.
// Manager satisfies it.
type CompletionRunner interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, timeout time.Duration) string
}

// Generator turns questions plus retrieved clauses into structured answers.
// Every operation degrades instead of failing: a malformed or missing model
// reply yields rule-based or default output.
type Generator struct {
	runner  CompletionRunner
	log     zerolog.Logger
	timeout time.Duration // parse and evaluate calls; combined/finalize have their own
}

func NewGenerator(runner CompletionRunner, log zerolog.Logger, timeout time.Duration) *Generator {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Generator{runner: runner, log: log, timeout: timeout}
}

// ParseQuery extracts intent, subject, conditions, and keywords from a
// question. When the model reply cannot be parsed the rule-based parser
// takes over.
func (g *Generator) ParseQuery(ctx context.Context, query string, callerCtx map[string]any) models.ParsedQuery {
	userPrompt := "Query: " + query
	if len(callerCtx) > 0 {
		if raw, err := json.Marshal(callerCtx); err == nil {
			userPrompt += "\nContext: " + string(raw)
		}
	}

	reply := g.runner.Complete(ctx, parseSystemPrompt, userPrompt, g.timeout)
	obj, err := DecodeObject(reply)
	if err != nil {
		g.log.Error().Err(err).Msg("query parse reply unusable, using rule-based parser")
		return g.fallbackParse(query)
	}
	intent, hasIntent := obj["intent"].(string)
	if !hasIntent {
		// The fallback payload decodes as JSON but carries no parse fields.
		return g.fallbackParse(query)
	}
	return models.ParsedQuery{
		Intent:           models.ParseIntent(intent),
		TargetSubject:    stringField(obj, "target_subject", ""),
		FilterConditions: stringSlice(obj["filter_conditions"]),
		Keywords:         stringSlice(obj["keywords"]),
		OriginalQuery:    query,
	}
}

// fallbackParse classifies a question by keyword matching alone.
func (g *Generator) fallbackParse(query string) models.ParsedQuery {
	lower := strings.ToLower(query)
	var intent models.QueryIntent
	switch {
	case containsAny(lower, "cover", "coverage", "covers", "include"):
		intent = models.IntentCoverageCheck
	case containsAny(lower, "eligible", "eligibility", "qualify"):
		intent = models.IntentEligibility
	case containsAny(lower, "comply", "compliance", "regulation"):
		intent = models.IntentCompliance
	case containsAny(lower, "define", "definition", "what is", "meaning"):
		intent = models.IntentDefinition
	case containsAny(lower, "procedure", "process", "how to", "steps"):
		intent = models.IntentProcedure
	default:
		intent = models.IntentGeneral
	}

	var keywords []string
	for _, w := range wordPattern.FindAllString(query, -1) {
		if len(w) > 2 {
			keywords = append(keywords, w)
		}
	}
	return models.ParsedQuery{
		Intent:           intent,
		TargetSubject:    util.Truncate(query, 100),
		FilterConditions: []string{},
		Keywords:         keywords,
		OriginalQuery:    query,
	}
}

// EvaluateLogic asks the model whether the clauses answer the query and why.
func (g *Generator) EvaluateLogic(ctx context.Context, query string, clauses []string, callerCtx map[string]any) map[string]any {
	contextJSON := "None"
	if len(callerCtx) > 0 {
		if raw, err := json.Marshal(callerCtx); err == nil {
			contextJSON = string(raw)
		}
	}
	userPrompt := fmt.Sprintf(`Query: %s

Relevant Clauses:
%s

Context: %s

Provide your analysis as JSON only.`, query, numberClauses(clauses, len(clauses)), contextJSON)

	reply := g.runner.Complete(ctx, evaluateSystemPrompt, userPrompt, g.timeout)
	obj, err := DecodeObject(reply)
	if err != nil {
		g.log.Error().Err(err).Msg("logic evaluation reply unusable, using defaults")
		return map[string]any{
			"answer":                "Unable to evaluate the query against the provided clauses",
			"meets_criteria":        false,
			"applicable_conditions": []any{},
			"rationale":             "Automated evaluation was unavailable; the answer reflects retrieved clause text only.",
			"confidence_score":      0.3,
			"supporting_evidence":   []any{},
		}
	}
	return obj
}

// ParseAndEvaluateCombined parses the query and evaluates the clauses in a
// single model call. Only the top three clauses go into the prompt. Missing
// fields in the reply are filled with defaults; an unusable reply produces
// the zero-confidence default analysis.
func (g *Generator) ParseAndEvaluateCombined(ctx context.Context, query string, clauses []string) map[string]any {
	userPrompt := fmt.Sprintf(`Query: %s

Top Relevant Clauses from the Document:
%s

Analyze the query against these clauses and provide comprehensive analysis as JSON only. Include ALL exact numbers, time periods, percentages, and technical details mentioned in the clauses.`,
		query, numberClauses(clauses, 3))

	reply := g.runner.Complete(ctx, combinedSystemPrompt, userPrompt, combinedTimeout)
	obj, err := DecodeObject(reply)
	if err != nil {
		g.log.Error().Err(err).Msg("combined parse and evaluate failed")
		return map[string]any{
			"intent":                "general",
			"target_subject":        util.Truncate(query, 50),
			"answer":                "Unable to process query",
			"applicable_conditions": []any{},
			"confidence_score":      0.0,
		}
	}

	defaults := map[string]any{
		"intent":                "general",
		"target_subject":        util.Truncate(query, 50),
		"answer":                "Unable to determine",
		"applicable_conditions": []any{},
		"confidence_score":      0.5,
	}
	for key, value := range defaults {
		if _, ok := obj[key]; !ok {
			obj[key] = value
		}
	}
	return obj
}

// GenerateFinalResponse produces the final answer object from the combined
// analysis and the best supporting clause. Required fields missing from the
// reply are back-filled from the analysis; an unusable reply falls back to
// the analysis itself at zero confidence.
func (g *Generator) GenerateFinalResponse(ctx context.Context, query string, combined map[string]any, bestClause string) map[string]any {
	userPrompt := fmt.Sprintf(`Query: %s

Analysis Answer: %s
Conditions: %v
Best Supporting Clause: %s

Generate comprehensive JSON response with ALL exact details:`,
		query,
		CoerceAnswer(valueOr(combined, "answer", "N/A")),
		valueOr(combined, "applicable_conditions", []any{}),
		util.Truncate(bestClause, 500))

	reply := g.runner.Complete(ctx, finalizeSystemPrompt, userPrompt, finalizeTimeout)
	obj, err := DecodeObject(reply)
	if err != nil {
		g.log.Error().Err(err).Msg("final response generation failed, answering from analysis")
		return map[string]any{
			"answer":     valueOr(combined, "answer", "Unable to process query"),
			"conditions": valueOr(combined, "applicable_conditions", []any{}),
			"confidence": 0.0,
		}
	}

	if _, ok := obj["answer"]; !ok {
		obj["answer"] = valueOr(combined, "answer", "Information not available")
	}
	if _, ok := obj["conditions"]; !ok {
		obj["conditions"] = valueOr(combined, "applicable_conditions", []any{})
	}
	if _, ok := obj["confidence"]; !ok {
		obj["confidence"] = valueOr(combined, "confidence_score", 0.5)
	}
	return obj
}

// ExtractKeywords pulls up to twenty distinct non-stop-word terms from text,
// in order of first appearance.
func (g *Generator) ExtractKeywords(text string) []string {
	seen := make(map[string]bool)
	var keywords []string
	for _, w := range keywordPattern.FindAllString(strings.ToLower(text), -1) {
		if stopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		keywords = append(keywords, w)
		if len(keywords) == 20 {
			break
		}
	}
	return keywords
}

var (
	wordPattern    = regexp.MustCompile(`\w+`)
	keywordPattern = regexp.MustCompile(`[a-zA-Z]{3,}`)
)

var stopWords = map[string]bool{
	"the": true, "and": true, "but": true, "for": true, "with": true,
	"are": true, "was": true, "were": true, "been": true, "have": true,
	"has": true, "had": true, "does": true, "did": true, "will": true,
	"would": true, "could": true, "should": true, "this": true, "that": true,
	"these": true, "those": true, "our": true, "you": true, "your": true,
	"his": true, "her": true, "its": true, "they": true, "them": true,
	"their": true,
}

func numberClauses(clauses []string, limit int) string {
	if limit > len(clauses) {
		limit = len(clauses)
	}
	parts := make([]string, 0, limit)
	for i := 0; i < limit; i++ {
		parts = append(parts, fmt.Sprintf("Clause %d: %s", i+1, clauses[i]))
	}
	return strings.Join(parts, "\n\n")
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func stringField(obj map[string]any, key, fallback string) string {
	if v, ok := obj[key].(string); ok {
		return v
	}
	return fallback
}

func stringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func valueOr(obj map[string]any, key string, fallback any) any {
	if v, ok := obj[key]; ok && v != nil {
		return v
	}
	return fallback
}
