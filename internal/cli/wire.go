package cli

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"veridex/internal/cache"
	"veridex/internal/classifier"
	"veridex/internal/corroborate"
	"veridex/internal/embedding"
	"veridex/internal/llm"
	"veridex/internal/model"
	"veridex/internal/pipeline"
	"veridex/internal/search"
	"veridex/internal/trust"
)

// runtime bundles everything a command needs to run analyses
type runtime struct {
	cfg       *model.Config
	analyzer  *pipeline.Analyzer
	documents cache.DocumentStore
	vectors   *cache.VectorIndex
	embedder  embedding.Engine
	mongo     *mongo.Client
	logger    *zap.Logger
}

// buildRuntime connects the external services and assembles the pipeline
func buildRuntime(ctx context.Context, cfg *model.Config, logger *zap.Logger) (*runtime, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	db := client.Database(cfg.Mongo.Database)

	index, err := cache.OpenVectorIndex(cfg.Vector.Path,
		time.Duration(cfg.Cache.RetentionDays)*24*time.Hour)
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("open vector index: %w", err)
	}

	provider, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM))
	if err != nil {
		index.Close()
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	reasoner := llm.NewReasoner(provider, llm.DefaultRetryPolicy())

	baseEmbedder, err := embedding.NewOpenAIEngine(cfg.Embedding)
	if err != nil {
		index.Close()
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("embedding engine: %w", err)
	}
	embedder := embedding.NewCachedEngine(baseEmbedder, time.Hour)

	trustStore := trust.NewStore(
		trust.NewMongoBackend(db.Collection(cfg.Trust.Collection)),
		cfg.Trust.CacheTTL, logger)
	documents := cache.NewMongoDocuments(db.Collection("articles"))

	searcher := search.NewClient(cfg.Search, logger)
	factcheck := search.NewFactCheckConnector(cfg.FactCheck, logger)
	classifierClient := classifier.NewClient(cfg.Classifier, llm.DefaultRetryPolicy(), logger)
	corroborator := corroborate.NewEngine(reasoner, searcher, embedder, trustStore, logger)
	tiers := cache.NewTiers(documents, index, embedder, reasoner, cfg.Cache, logger)

	return &runtime{
		cfg:       cfg,
		analyzer:  pipeline.NewAnalyzer(reasoner, classifierClient, factcheck, corroborator, trustStore, tiers, logger),
		documents: documents,
		vectors:   index,
		embedder:  embedder,
		mongo:     client,
		logger:    logger,
	}, nil
}

func (rt *runtime) close() {
	if err := rt.vectors.Close(); err != nil {
		rt.logger.Warn("vector index close failed", zap.Error(err))
	}
	disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rt.mongo.Disconnect(disconnectCtx); err != nil {
		rt.logger.Warn("mongo disconnect failed", zap.Error(err))
	}
}
