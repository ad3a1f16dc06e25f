package cmd

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/Aman-CERP/insightd/internal/agent"
	"github.com/Aman-CERP/insightd/internal/blobstore"
	"github.com/Aman-CERP/insightd/internal/config"
	"github.com/Aman-CERP/insightd/internal/embedclient"
	"github.com/Aman-CERP/insightd/internal/extract"
	"github.com/Aman-CERP/insightd/internal/keyspace"
	"github.com/Aman-CERP/insightd/internal/logging"
	"github.com/Aman-CERP/insightd/internal/pipeline"
	"github.com/Aman-CERP/insightd/internal/search"
	"github.com/Aman-CERP/insightd/internal/storage"
)

// app bundles every long-lived handle a CLI command needs: the storage
// façade, the search index, the pipeline coordinator, and the durable
// settings that select the active embedding model. It is the CLI-level
// analogue of the shared mutable service handles pattern used throughout
// the pipeline — constructed once per process invocation and torn down
// by the returned close function.
type app struct {
	dataDir     string
	settings    *config.Settings
	pipelineCfg *config.PipelineConfig
	facade      *storage.Facade
	index       *search.Index
	coordinator *pipeline.Coordinator
	logger      *slog.Logger
}

// buildApp opens every durable resource under dataDir and constructs a
// pipeline.Coordinator over them. If the active settings name an
// embedding model, it is loaded eagerly; otherwise the coordinator starts
// with no embedder and stays without one for the life of this process.
func buildApp(ctx context.Context, dataDir string, debug bool) (*app, func(), error) {
	logCfg := logging.DefaultConfig()
	logCfg.FilePath = filepath.Join(dataDir, "logs", "insightd.log")
	if debug {
		logCfg = logging.DebugConfig()
		logCfg.FilePath = filepath.Join(dataDir, "logs", "insightd.log")
	}
	logger, loggingCleanup, err := logging.Setup(logCfg)
	if err != nil {
		return nil, nil, err
	}

	settings, err := config.LoadSettings(dataDir)
	if err != nil {
		loggingCleanup()
		return nil, nil, err
	}
	pipelineCfg, err := config.LoadPipelineConfig(dataDir)
	if err != nil {
		loggingCleanup()
		return nil, nil, err
	}

	keyspaces, err := keyspace.NewManager(filepath.Join(dataDir, "docs"))
	if err != nil {
		loggingCleanup()
		return nil, nil, err
	}
	blobs, err := blobstore.Open(filepath.Join(dataDir, "blobs"))
	if err != nil {
		keyspaces.CloseAll()
		loggingCleanup()
		return nil, nil, err
	}

	author := keyspace.NewAuthorID()
	facade, err := storage.New(keyspaces, blobs, extract.NewPDFExtractor(), author, 256)
	if err != nil {
		keyspaces.CloseAll()
		loggingCleanup()
		return nil, nil, err
	}

	index, err := search.Open(filepath.Join(dataDir, "search"))
	if err != nil {
		keyspaces.CloseAll()
		loggingCleanup()
		return nil, nil, err
	}

	var embedder embedclient.Embedder
	if settings.HasEmbedder() {
		provider := embedclient.ParseProvider(settings.ActiveProvider)
		embedder, err = embedclient.New(ctx, provider, settings.ActiveEmbeddingModelID)
		if err != nil {
			logger.Warn("configured embedder unavailable, starting without one",
				slog.String("model", settings.ActiveEmbeddingModelID), slog.String("error", err.Error()))
			embedder = nil
		}
	}

	coordinator := pipeline.New(facade, index, pipelineCfg, embedder)

	a := &app{
		dataDir:     dataDir,
		settings:    settings,
		pipelineCfg: pipelineCfg,
		facade:      facade,
		index:       index,
		coordinator: coordinator,
		logger:      logger,
	}

	closeFn := func() {
		coordinator.Shutdown()
		_ = index.Close()
		keyspaces.CloseAll()
		loggingCleanup()
	}
	return a, closeFn, nil
}

// agentServer builds the MCP tool dispatch server over this
// app's facade and index, scoped to every collection currently known to
// this node.
func (a *app) agentServer() *agent.Server {
	collections := agent.NewAllCollections(a.facade.ListCollections)
	return agent.NewServer(a.facade, a.index, a.coordinator.Embedder(), collections, a.logger)
}

// watchAll starts a CollectionWatcher for every collection already on
// disk, so documents that arrive from a peer while this process is
// running reach the pipeline even if the CLI invocation that started it
// never touched that collection directly.
func (a *app) watchAll() error {
	ids, err := a.facade.ListCollections()
	if err != nil {
		return err
	}
	for _, ns := range ids {
		if err := a.coordinator.Watch(ns); err != nil {
			return err
		}
	}
	return nil
}
