// Package app wires configuration, storage, the classifier and the HTTP
// server into a runnable sign assessment service.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/ayusman/signcheck/internal/assessment"
	"github.com/ayusman/signcheck/internal/classifier"
	"github.com/ayusman/signcheck/internal/config"
	"github.com/ayusman/signcheck/internal/inference"
	"github.com/ayusman/signcheck/internal/logger"
	"github.com/ayusman/signcheck/internal/metrics"
	"github.com/ayusman/signcheck/internal/mlclient"
	"github.com/ayusman/signcheck/internal/server"
	"github.com/ayusman/signcheck/internal/server/api"
	"github.com/ayusman/signcheck/internal/store"
)

// ErrModelMismatch is returned when a loaded model disagrees with the
// configured topology or dimensions.
var ErrModelMismatch = errors.New("model does not match configuration")

// App is the assembled service.
type App struct {
	cfg       *config.Config
	log       logger.Logger
	store     *store.Store
	service   *inference.Service
	predictor mlclient.Predictor
	engine    *assessment.Engine
	server    *server.Server
}

// New builds every component from cfg. The caller must Close the App.
func New(cfg *config.Config) (*App, error) {
	log := logger.Get().Named("app")

	metrics.Configure(
		metrics.WithNamespace(cfg.MetricsNamespace),
		metrics.WithSubsystem(cfg.MetricsSubsystem),
		metrics.WithHistogramBuckets(cfg.MetricsLatencyBucketsMS),
	)

	model, err := LoadModel(cfg)
	if err != nil {
		return nil, err
	}

	service, err := inference.New(model,
		inference.WithMinConfidence(cfg.MinConfidence),
		inference.WithLogger(logger.Get().Named("inference")),
	)
	if err != nil {
		return nil, err
	}

	var predictor mlclient.Predictor = mlclient.NewLocal(service)
	if cfg.InferenceURL != "" {
		predictor = mlclient.NewClient(cfg.InferenceURL, mlclient.WithTimeout(cfg.InferenceTimeout()))
		log.Info(context.Background(), "using remote inference", logger.String("url", cfg.InferenceURL))
	}

	catalog, err := LoadCatalog(cfg)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(store.Config{
		Driver:       cfg.DBDriver,
		DSN:          cfg.DBDSN,
		QueryTimeout: cfg.StoreTimeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	engine := assessment.NewEngine(catalog, st.Detections(), st.Progress(),
		assessment.WithLogger(logger.Get().Named("assessment")))

	srv := server.New(server.Config{
		StaticDir:    cfg.StaticDir,
		Predictor:    predictor,
		Engine:       engine,
		Progress:     st.Progress(),
		Limiter:      api.NewSubjectLimiter(cfg.RateLimitPerSec, cfg.RateLimitBurst),
		ModelVersion: service.ModelVersion(),
	})

	return &App{
		cfg:       cfg,
		log:       log,
		store:     st,
		service:   service,
		predictor: predictor,
		engine:    engine,
		server:    srv,
	}, nil
}

// LoadModel reads cfg.ModelPath, or builds a deterministic random model from
// cfg.ModelSeed when no path is set.
func LoadModel(cfg *config.Config) (*classifier.Model, error) {
	if cfg.ModelPath == "" {
		logger.Get().Named("app").Warn(context.Background(),
			"no model_path configured, using random development weights",
			logger.Any("seed", cfg.ModelSeed))
		return classifier.New(classifier.NewRandom(cfg.ClassifierConfig(), classifier.Letters(), cfg.ModelSeed))
	}

	model, err := classifier.Load(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", cfg.ModelPath, err)
	}
	if err := checkShape(model.Shape(), cfg.ClassifierConfig()); err != nil {
		return nil, fmt.Errorf("model %s: %w", cfg.ModelPath, err)
	}
	return model, nil
}

// checkShape compares a loaded model with the configured hyperparameters.
// The mlp topology has no blocks, so only its width is compared.
func checkShape(got, want classifier.Config) error {
	switch {
	case got.Topology != want.Topology:
		return fmt.Errorf("%w: file has topology %s, config wants %s", ErrModelMismatch, got.Topology, want.Topology)
	case got.HiddenDim != want.HiddenDim:
		return fmt.Errorf("%w: file has hidden_dim %d, config wants %d", ErrModelMismatch, got.HiddenDim, want.HiddenDim)
	case got.Topology == classifier.TopologyMLP:
		return nil
	case got.NumBlocks != want.NumBlocks:
		return fmt.Errorf("%w: file has num_blocks %d, config wants %d", ErrModelMismatch, got.NumBlocks, want.NumBlocks)
	case got.Expansion != want.Expansion:
		return fmt.Errorf("%w: file has expansion %d, config wants %d", ErrModelMismatch, got.Expansion, want.Expansion)
	}
	return nil
}

// LoadCatalog reads cfg.CatalogPath or falls back to the built-in course, then
// applies cfg.PassConfidence.
func LoadCatalog(cfg *config.Config) (*assessment.Catalog, error) {
	catalog := assessment.DefaultCatalog()
	if cfg.CatalogPath != "" {
		c, err := assessment.LoadCatalog(cfg.CatalogPath)
		if err != nil {
			return nil, fmt.Errorf("load catalog %s: %w", cfg.CatalogPath, err)
		}
		catalog = c
	}
	return catalog.WithPassConfidence(cfg.PassConfidence), nil
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	if err := a.store.Ping(ctx); err != nil {
		return fmt.Errorf("store not reachable: %w", err)
	}

	httpServer := a.server.HTTPServer(a.cfg.Addr)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.log.Info(gctx, "http server listening",
			logger.String("addr", a.cfg.Addr),
			logger.String("model_version", a.service.ModelVersion()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.log.Info(context.Background(), "shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout())
		defer cancel()
		a.server.CloseStreams()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Close releases the store.
func (a *App) Close() error {
	return a.store.Close()
}

// Server returns the HTTP handler.
func (a *App) Server() *server.Server {
	return a.server
}

// Store returns the database store.
func (a *App) Store() *store.Store {
	return a.store
}

// Engine returns the assessment engine.
func (a *App) Engine() *assessment.Engine {
	return a.engine
}

// Predictor returns the predictor in use, local or remote.
func (a *App) Predictor() mlclient.Predictor {
	return a.predictor
}

// Service returns the in-process inference service.
func (a *App) Service() *inference.Service {
	return a.service
}
