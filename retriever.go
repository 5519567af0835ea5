package retriever

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/siherrmann/retriever/core/assembler"
	"github.com/siherrmann/retriever/core/citation"
	"github.com/siherrmann/retriever/core/rerank"
	"github.com/siherrmann/retriever/core/retrieval"
	"github.com/siherrmann/retriever/core/tokens"
	"github.com/siherrmann/retriever/database"
	"github.com/siherrmann/retriever/helper"
	"github.com/siherrmann/retriever/model"
	"github.com/siherrmann/retriever/provider"
	loadSql "github.com/siherrmann/retriever/sql"
)

// Retriever provides a unified interface to the retrieval funnel: hybrid
// search, reranking, context assembly and citation tracking, backed by one
// Postgres database and one optional model provider.
type Retriever struct {
	DB         *helper.Database
	Chunks     *database.ChunksDBHandler
	Embeddings *database.EmbeddingsDBHandler
	Sources    *database.SourcesDBHandler
	Citations  *database.CitationsDBHandler
	Provider   provider.Provider
	Vectors    *retrieval.VectorStore
	Engine     *retrieval.Engine
	Reranker   *rerank.Reranker
	Assembler  *assembler.Assembler
	Tracker    *citation.Tracker
	// Logging
	log     *slog.Logger
	counter tokens.Counter
}

// NewRetriever creates a new Retriever instance with all handlers
// initialized. The provider configuration may be nil, then search runs
// keyword-only, reranking falls back to the heuristic path and context
// assembly uses the default window.
func NewRetriever(dbConfig *helper.DatabaseConfiguration, providerConfig *provider.Config) (*Retriever, error) {
	// Logger
	opts := helper.PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{
			Level: slog.LevelInfo,
		},
	}
	logger := slog.New(helper.NewPrettyHandler(os.Stdout, opts))

	// Initialize database
	db := helper.NewDatabase("retriever", dbConfig, logger)
	err := loadSql.Init(db.Instance)
	if err != nil {
		return nil, helper.NewError("initialize database extensions", err)
	}

	// Create all handlers in the correct order (chunks first, embeddings
	// and citations reference them)
	// force=false to not reload if functions already exist
	chunks, err := database.NewChunksDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create chunks handler", err)
	}

	embeddings, err := database.NewEmbeddingsDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create embeddings handler", err)
	}

	sources, err := database.NewSourcesDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create sources handler", err)
	}

	citations, err := database.NewCitationsDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create citations handler", err)
	}

	var modelProvider provider.Provider
	if providerConfig != nil {
		modelProvider, err = provider.NewProvider(providerConfig)
		if err != nil {
			return nil, helper.NewError("create model provider", err)
		}
	}

	searchConfig := model.DefaultSearchConfig()
	rerankConfig := model.DefaultRerankConfig()
	assemblyConfig := model.DefaultAssemblyConfig()

	var embedder retrieval.Embedder
	if modelProvider != nil {
		embedder = modelProvider
	}
	vectors, err := retrieval.NewVectorStore(embeddings, embedder, &searchConfig, logger)
	if err != nil {
		return nil, helper.NewError("create vector store", err)
	}

	var semantic retrieval.SemanticSearcher
	if modelProvider != nil {
		semantic = vectors
	}
	engine, err := retrieval.NewEngine(semantic, chunks, &searchConfig, logger)
	if err != nil {
		return nil, helper.NewError("create search engine", err)
	}

	var completions rerank.CompletionProvider
	if modelProvider != nil {
		completions = modelProvider
	}
	reranker := rerank.NewReranker(completions, nil, &rerankConfig, logger)

	// The encoding may need a download on first use. Without it the rough
	// estimator keeps assembly working.
	var counter tokens.Counter
	tiktokenCounter, err := tokens.NewTiktokenCounter("cl100k_base")
	if err != nil {
		logger.Warn("Token encoding unavailable, falling back to estimated counts", slog.Any("error", err))
		counter = tokens.Estimator{}
	} else {
		counter = tiktokenCounter
	}
	var modelInfos assembler.ModelInfoProvider
	if modelProvider != nil {
		modelInfos = modelProvider
	}
	contextAssembler := assembler.NewAssembler(modelInfos, counter, &assemblyConfig, logger)

	tracker, err := citation.NewTracker(citations, chunks, sources, logger)
	if err != nil {
		return nil, helper.NewError("create citation tracker", err)
	}

	return &Retriever{
		DB:         db,
		Chunks:     chunks,
		Embeddings: embeddings,
		Sources:    sources,
		Citations:  citations,
		Provider:   modelProvider,
		Vectors:    vectors,
		Engine:     engine,
		Reranker:   reranker,
		Assembler:  contextAssembler,
		Tracker:    tracker,
		log:        logger,
		counter:    counter,
	}, nil
}

// Close closes the database connection
func (r *Retriever) Close() error {
	if r.DB != nil && r.DB.Instance != nil {
		return r.DB.Instance.Close()
	}
	return nil
}

// HybridSearch runs the semantic and keyword passes and fuses their
// rankings. A nil config uses the defaults the retriever was built with.
func (r *Retriever) HybridSearch(ctx context.Context, query string, config *model.SearchConfig) ([]*model.SearchResult, error) {
	engine := r.Engine
	if config != nil {
		var semantic retrieval.SemanticSearcher
		if r.Provider != nil {
			vectors, err := retrieval.NewVectorStore(r.Embeddings, r.Provider, config, r.log)
			if err != nil {
				return nil, helper.NewError("create vector store", err)
			}
			semantic = vectors
		}
		scoped, err := retrieval.NewEngine(semantic, r.Chunks, config, r.log)
		if err != nil {
			return nil, helper.NewError("create search engine", err)
		}
		engine = scoped
	}
	return engine.Search(ctx, query)
}

// Rerank rescores the head of a ranked result list. A nil config uses the
// defaults the retriever was built with.
func (r *Retriever) Rerank(ctx context.Context, query string, results []*model.SearchResult, config *model.RerankConfig) []*model.SearchResult {
	reranker := r.Reranker
	if config != nil {
		var completions rerank.CompletionProvider
		if r.Provider != nil {
			completions = r.Provider
		}
		reranker = rerank.NewReranker(completions, nil, config, r.log)
	}
	return reranker.Rerank(ctx, query, results)
}

// AssembleContext packs the ranked results into the target model's token
// budget. A nil config uses the defaults the retriever was built with.
func (r *Retriever) AssembleContext(query string, results []*model.SearchResult, history []model.Message, modelName string, config *model.AssemblyConfig) *model.AssembledContext {
	contextAssembler := r.Assembler
	if config != nil {
		var modelInfos assembler.ModelInfoProvider
		if r.Provider != nil {
			modelInfos = r.Provider
		}
		contextAssembler = assembler.NewAssembler(modelInfos, r.counter, config, r.log)
	}
	return contextAssembler.AssembleContext(query, results, history, modelName)
}

// RecordCitations persists the citation set for a generated response from
// the chunk refs of its assembled context
func (r *Retriever) RecordCitations(messageID uuid.UUID, conversationID uuid.UUID, refs []model.ChunkRef) (*model.CitationRecord, error) {
	return r.Tracker.Record(messageID, conversationID, refs)
}

// GetCitations retrieves the citation record of a message
func (r *Retriever) GetCitations(messageID uuid.UUID) (*model.CitationRecord, error) {
	return r.Tracker.Get(messageID)
}

// RenderCitations renders a message's citations into its response text in
// the configured layout
func (r *Retriever) RenderCitations(messageID uuid.UUID, responseText string, config *model.CitationRenderConfig) (string, error) {
	return r.Tracker.Render(messageID, responseText, config)
}

// MostCitedSources aggregates citation counts per source URL across all
// persisted records
func (r *Retriever) MostCitedSources(limit int) ([]*model.SourceCount, error) {
	return r.Tracker.MostCitedSources(limit)
}

// ConversationCitationStats summarizes the citations of one conversation
func (r *Retriever) ConversationCitationStats(conversationID uuid.UUID) (*model.ConversationCitationStats, error) {
	return r.Tracker.ConversationStats(conversationID)
}

// EmbedChunk generates and stores the embedding for one chunk. An empty
// embedding model uses the provider default.
func (r *Retriever) EmbedChunk(ctx context.Context, chunkID int64, embeddingModel string) (int64, error) {
	if r.Provider == nil {
		return 0, helper.NewError("embed chunk", model.ErrNotConfigured)
	}

	chunk, err := r.Chunks.SelectChunk(chunkID)
	if err != nil {
		return 0, helper.NewError("select chunk", err)
	}

	if embeddingModel == "" {
		embeddingModel = r.Provider.DefaultEmbeddingModel()
	}
	if embeddingModel == "" {
		return 0, helper.NewError("embed chunk", fmt.Errorf("%w: provider has no embedding model", model.ErrNotConfigured))
	}

	vector, err := r.Provider.GenerateEmbedding(ctx, chunk.Content, embeddingModel)
	if err != nil {
		return 0, helper.NewError("generate embedding", err)
	}

	return r.Vectors.Store(chunkID, vector, embeddingModel)
}
