package llm

import (
	"context"
	"testing"
	"time"

	"docquery/internal/logger"
	"docquery/internal/models"

	"github.com/stretchr/testify/require"
)

// scriptedRunner returns canned replies in order, then repeats the last one.
type scriptedRunner struct {
	replies []string
	calls   int
}

func (s *scriptedRunner) Complete(_ context.Context, _, _ string, _ time.Duration) string {
	i := s.calls
	if i >= len(s.replies) {
		i = len(s.replies) - 1
	}
	s.calls++
	return s.replies[i]
}

func newTestGenerator(replies ...string) *Generator {
	return NewGenerator(&scriptedRunner{replies: replies}, logger.Nop(), time.Second)
}

func TestParseQueryUsesModelReply(t *testing.T) {
	gen := newTestGenerator(`{"intent": "coverage_check", "target_subject": "knee surgery", "filter_conditions": ["age over 50"], "keywords": ["knee", "surgery"]}`)
	parsed := gen.ParseQuery(context.Background(), "Does this policy cover knee surgery?", nil)
	require.Equal(t, models.IntentCoverageCheck, parsed.Intent)
	require.Equal(t, "knee surgery", parsed.TargetSubject)
	require.Equal(t, []string{"age over 50"}, parsed.FilterConditions)
	require.Equal(t, "Does this policy cover knee surgery?", parsed.OriginalQuery)
}

func TestParseQueryFallsBackOnGarbage(t *testing.T) {
	gen := newTestGenerator("not json at all")
	parsed := gen.ParseQuery(context.Background(), "Does this policy cover knee surgery?", nil)
	require.Equal(t, models.IntentCoverageCheck, parsed.Intent)
	require.Contains(t, parsed.Keywords, "policy")
	require.Contains(t, parsed.Keywords, "cover")
	for _, k := range parsed.Keywords {
		require.Greater(t, len(k), 2)
	}
}

func TestFallbackParseIntentTable(t *testing.T) {
	gen := newTestGenerator("garbage")
	cases := map[string]models.QueryIntent{
		"Does the plan include dental?":                 models.IntentCoverageCheck,
		"Am I eligible for the discount?":               models.IntentEligibility,
		"Does this comply with the regulation?":         models.IntentCompliance,
		"What is the meaning of grace period?":          models.IntentDefinition,
		"What are the steps to file a claim?":           models.IntentProcedure,
		"Tell me something about the document content.": models.IntentGeneral,
	}
	for query, want := range cases {
		parsed := gen.ParseQuery(context.Background(), query, nil)
		require.Equal(t, want, parsed.Intent, "query %q", query)
	}
}

func TestFallbackParseIsDeterministic(t *testing.T) {
	gen := newTestGenerator("garbage")
	first := gen.ParseQuery(context.Background(), "What is the waiting period for surgery?", nil)
	second := gen.ParseQuery(context.Background(), "What is the waiting period for surgery?", nil)
	require.Equal(t, first, second)
}

func TestParseAndEvaluateCombinedFillsDefaults(t *testing.T) {
	gen := newTestGenerator(`{"answer": "The waiting period is 30 days."}`)
	result := gen.ParseAndEvaluateCombined(context.Background(), "What is the waiting period?", []string{"clause one"})
	require.Equal(t, "The waiting period is 30 days.", result["answer"])
	require.Equal(t, "general", result["intent"])
	require.Equal(t, "What is the waiting period?", result["target_subject"])
	require.Equal(t, 0.5, result["confidence_score"])
	require.Empty(t, result["applicable_conditions"])
}

func TestParseAndEvaluateCombinedUnusableReply(t *testing.T) {
	gen := newTestGenerator("complete nonsense with no braces")
	result := gen.ParseAndEvaluateCombined(context.Background(), "What is the waiting period?", nil)
	require.Equal(t, "Unable to process query", result["answer"])
	require.Equal(t, 0.0, result["confidence_score"])
}

func TestGenerateFinalResponseBackfillsFromAnalysis(t *testing.T) {
	gen := newTestGenerator(`{"answer": "A grace period of thirty days applies."}`)
	combined := map[string]any{
		"answer":                "thirty days",
		"applicable_conditions": []any{"premium due"},
		"confidence_score":      0.8,
	}
	result := gen.GenerateFinalResponse(context.Background(), "What is the grace period?", combined, "clause text")
	require.Equal(t, "A grace period of thirty days applies.", result["answer"])
	require.Equal(t, []any{"premium due"}, result["conditions"])
	require.Equal(t, 0.8, result["confidence"])
}

func TestGenerateFinalResponseUnusableReply(t *testing.T) {
	gen := newTestGenerator("no json here")
	combined := map[string]any{"answer": "thirty days", "applicable_conditions": []any{}}
	result := gen.GenerateFinalResponse(context.Background(), "q", combined, "clause")
	require.Equal(t, "thirty days", result["answer"])
	require.Equal(t, 0.0, result["confidence"])
}

func TestEvaluateLogicPassesThroughModelObject(t *testing.T) {
	gen := newTestGenerator(`{"answer": "yes", "meets_criteria": true, "confidence_score": 0.9}`)
	result := gen.EvaluateLogic(context.Background(), "q", []string{"clause"}, nil)
	require.Equal(t, "yes", result["answer"])
	require.Equal(t, true, result["meets_criteria"])
}

func TestEvaluateLogicDefaultsOnGarbage(t *testing.T) {
	gen := newTestGenerator("garbage")
	result := gen.EvaluateLogic(context.Background(), "q", []string{"clause"}, nil)
	require.Equal(t, false, result["meets_criteria"])
	require.Equal(t, 0.3, result["confidence_score"])
}

func TestExtractKeywords(t *testing.T) {
	gen := newTestGenerator("unused")
	keywords := gen.ExtractKeywords("The policy covers the knee surgery and the knee replacement for eligible members.")
	require.Contains(t, keywords, "policy")
	require.Contains(t, keywords, "knee")
	require.NotContains(t, keywords, "the")
	require.NotContains(t, keywords, "and")
	// dedupe preserves first occurrence only
	count := 0
	for _, k := range keywords {
		if k == "knee" {
			count++
		}
	}
	require.Equal(t, 1, count)
	require.LessOrEqual(t, len(keywords), 20)
}
