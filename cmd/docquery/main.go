package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"docquery/internal/chunker"
	"docquery/internal/config"
	"docquery/internal/embedding"
	"docquery/internal/extract"
	"docquery/internal/llm"
	"docquery/internal/logger"
	"docquery/internal/metrics"
	"docquery/internal/models"
	"docquery/internal/pipeline"
	"docquery/internal/retrieval"
	"docquery/internal/util"
	"docquery/internal/vectorindex"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

const usage = `usage:
  docquery process <url> [document-id]
  docquery query <question> [document-url]
  docquery batch <document-url> <question> [question ...]
  docquery search <query>
  docquery status <document-id>
  docquery list
  docquery health`

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	lg := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	orch, cleanup, err := buildPipeline(cfg, lg)
	if err != nil {
		log.Fatalf("docquery: %v", err)
	}
	defer cleanup()

	ctx := context.Background()
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "process":
		if len(args) < 1 {
			log.Fatal("process requires a document URL")
		}
		documentID := ""
		if len(args) > 1 {
			documentID = args[1]
		}
		id, err := orch.ProcessDocument(ctx, args[0], documentID)
		if err != nil {
			log.Fatalf("process: %v", err)
		}
		rec, _ := orch.DocumentStatus(id)
		printJSON(rec)
	case "query":
		if len(args) < 1 {
			log.Fatal("query requires a question")
		}
		req := models.QueryRequest{Query: args[0]}
		if len(args) > 1 {
			req.DocumentURL = args[1]
		}
		printJSON(orch.QueryDocuments(ctx, req))
	case "batch":
		if len(args) < 2 {
			log.Fatal("batch requires a document URL and at least one question")
		}
		printJSON(map[string]any{"answers": orch.ProcessBatchQueries(ctx, args[0], args[1:])})
	case "search":
		if len(args) < 1 {
			log.Fatal("search requires a query")
		}
		printJSON(orch.SearchDocuments(ctx, args[0], 5))
	case "status":
		if len(args) < 1 {
			log.Fatal("status requires a document id")
		}
		rec, err := orch.DocumentStatus(args[0])
		if err != nil {
			log.Fatalf("status: %v", err)
		}
		printJSON(rec)
	case "list":
		docs, count := orch.ListDocuments()
		printJSON(map[string]any{"documents": docs, "total_count": count})
	case "health":
		printJSON(orch.Health(ctx))
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
}

func buildPipeline(cfg config.Config, lg zerolog.Logger) (*pipeline.Orchestrator, func(), error) {
	cleanup := func() {}

	var embedder embedding.Provider
	switch cfg.EmbeddingProvider {
	case "openai":
		embedder = embedding.NewOpenAI(embedding.OpenAIConfig{
			APIKey: cfg.OpenAIAPIKey,
			Model:  cfg.EmbeddingModel,
		})
	default:
		embedder = embedding.NewLocal()
	}

	var index vectorindex.Index
	switch cfg.IndexBackend {
	case "pgvector":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		pg, err := vectorindex.NewPGVector(ctx, cfg.PostgresURL, embedder.Dimension())
		if err != nil {
			return nil, nil, fmt.Errorf("pgvector backend: %w", err)
		}
		cleanup = pg.Close
		index = pg
	default:
		if err := util.EnsureDir(filepath.Dir(cfg.IndexPath)); err != nil {
			return nil, nil, fmt.Errorf("index directory: %w", err)
		}
		mem := vectorindex.NewMemory(embedder.Dimension(), cfg.IndexPath)
		if err := mem.Load(); err != nil {
			lg.Warn().Err(err).Msg("could not load index snapshot, starting empty")
		}
		index = mem
	}

	engine := retrieval.NewEngine(embedder, index, logger.Component(lg, "retrieval"))

	var primary, secondary llm.ChatCompleter
	if cfg.GroqAPIKey != "" {
		primary = llm.NewGroq(llm.GroqConfig{APIKey: cfg.GroqAPIKey, Model: cfg.LLMModel})
	}
	if cfg.OpenAIAPIKey != "" {
		secondary = llm.NewOpenAIChat(llm.OpenAIChatConfig{APIKey: cfg.OpenAIAPIKey})
	}
	m := metrics.New(prometheus.DefaultRegisterer)
	manager := llm.NewManager(primary, secondary, logger.Component(lg, "llm"), m)
	generator := llm.NewGenerator(manager, logger.Component(lg, "llm"), time.Duration(cfg.LLMTimeoutSecs)*time.Second)

	orch := pipeline.NewOrchestrator(pipeline.Options{
		Downloader: extract.NewDownloader(time.Duration(cfg.DownloadTimeoutSecs)*time.Second, logger.Component(lg, "download")),
		Extractor:  extract.NewExtractor(logger.Component(lg, "extract")),
		Engine:     engine,
		Generator:  generator,
		ChunkOptions: chunker.Options{
			ChunkSize:       cfg.ChunkSize,
			ChunkOverlap:    cfg.ChunkOverlap,
			MaxChunksPerDoc: cfg.MaxChunksPerDoc,
		},
		Log:           logger.Component(lg, "pipeline"),
		Metrics:       m,
		LLMConfigured: primary != nil || secondary != nil,
	})
	return orch, cleanup, nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
