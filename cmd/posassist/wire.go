// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/teradata-labs/loom-pos/pkg/catalog"
	"github.com/teradata-labs/loom-pos/pkg/dispatch"
	"github.com/teradata-labs/loom-pos/pkg/engine"
	"github.com/teradata-labs/loom-pos/pkg/extract"
	"github.com/teradata-labs/loom-pos/pkg/ledger"
	"github.com/teradata-labs/loom-pos/pkg/llm"
	"github.com/teradata-labs/loom-pos/pkg/llm/factory"
	"github.com/teradata-labs/loom-pos/pkg/persona"
	"github.com/teradata-labs/loom-pos/pkg/prompts"
	"github.com/teradata-labs/loom-pos/pkg/session"
	"github.com/teradata-labs/loom-pos/pkg/types"
)

// app is the wired assistant.
type app struct {
	engine   *engine.Engine
	manager  *engine.Manager
	personas *persona.Cache
	registry *prometheus.Registry
	closers  []func() error
	logger   *zap.Logger
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

// buildApp wires every component from the configuration.
func buildApp(ctx context.Context, cfg *Config, logger *zap.Logger) (*app, error) {
	a := &app{registry: prometheus.NewRegistry(), logger: logger}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	cat, store, err := openCatalog(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if c, ok := cat.(*catalog.SQLiteStore); ok {
		a.closers = append(a.closers, c.Close)
	}

	a.personas = persona.NewCache(persona.NewFileLoader(cfg.Persona.Dir), logger)
	if err := a.personas.Warm(ctx, cfg.Persona.Key); err != nil {
		_ = a.Close()
		return nil, err
	}

	providerMetrics, err := llm.NewProviderMetrics(a.registry)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	rateLimit := llm.RateLimiterConfig{Enabled: false}
	if cfg.LLM.RateLimit.Enabled {
		rateLimit = llm.DefaultRateLimiterConfig()
		rateLimit.RequestsPerMinute = cfg.LLM.RateLimit.RequestsPerMinute
		rateLimit.Concurrency = cfg.LLM.RateLimit.Concurrency
		rateLimit.Logger = logger
	}
	timeout := time.Duration(cfg.LLM.TimeoutSeconds) * time.Second
	provider, err := factory.NewProviderFactory(factory.FactoryConfig{
		DefaultProvider: cfg.LLM.Provider,
		AnthropicAPIKey: cfg.LLM.AnthropicAPIKey,
		AnthropicModel:  cfg.LLM.AnthropicModel,
		BedrockRegion:   cfg.LLM.BedrockRegion,
		BedrockModelID:  cfg.LLM.BedrockModelID,
		BedrockProfile:  cfg.LLM.BedrockProfile,
		OllamaEndpoint:  cfg.LLM.OllamaEndpoint,
		OllamaModel:     cfg.LLM.OllamaModel,
		OllamaToolMode:  cfg.LLM.OllamaToolMode,
		MaxTokens:       cfg.LLM.MaxTokens,
		Temperature:     cfg.LLM.Temperature,
		Timeout:         timeout,
		RateLimit:       rateLimit,
		Metrics:         providerMetrics,
	}).CreateProvider("", "")
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("%w: %v", types.ErrConfigurationMissing, err)
	}

	gateway, err := llm.NewGateway(provider, llm.GatewayConfig{
		Retry: llm.RetryConfig{
			MaxAttempts:    cfg.LLM.Retry.MaxAttempts,
			InitialDelay:   time.Duration(cfg.LLM.Retry.InitialDelayMs) * time.Millisecond,
			AttemptTimeout: timeout,
		},
		Instructions: extract.Instructions,
		Logger:       logger,
	})
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	extractor, err := extract.New(dispatch.Schemas(), extract.Config{Logger: logger})
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	dispatcher, err := dispatch.New(dispatch.Config{Catalog: cat, Store: store, Logger: logger})
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	metrics, err := engine.NewMetrics(a.registry)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.engine, err = engine.New(engine.Config{
		Personas:   a.personas,
		Assembler:  prompts.NewAssembler(a.personas, prompts.Config{MaxExchanges: cfg.Session.HistoryWindow}),
		Gateway:    gateway,
		Dispatcher: dispatcher,
		Extractor:  extractor,
		Metrics:    metrics,
		Logger:     logger,
	})
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.manager, err = engine.NewManager(a.engine, engine.ManagerConfig{
		NewSession: func(id string) (*session.Context, error) {
			return newSession(cfg, id, logger), nil
		},
		IdleTimeout: 30 * time.Minute,
		Metrics:     metrics,
		Logger:      logger,
	})
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	info := gateway.ProviderInfo()
	gating := dispatcher.Gating()
	logger.Info("assistant ready",
		zap.String("provider", info.Name),
		zap.String("model", info.Model),
		zap.Bool("native_tools", info.SupportsNativeTools),
		zap.String("confidence_policy", extractor.Policy().Version),
		zap.Float64("execute_at", gating.Execute),
		zap.Float64("immediate_at", gating.Immediate),
		zap.String("persona", cfg.Persona.Key),
		zap.String("store", cfg.Store.ID))
	return a, nil
}

func openCatalog(ctx context.Context, cfg *Config, logger *zap.Logger) (types.Catalog, types.StoreConfig, error) {
	if cfg.Catalog.DB != "" {
		db, err := catalog.OpenSQLite(ctx, cfg.Catalog.DB, logger)
		if err != nil {
			return nil, nil, err
		}
		return db, db, nil
	}
	fixture, err := catalog.LoadFixture(cfg.Catalog.Fixture)
	if err != nil {
		return nil, nil, err
	}
	mem, store, err := fixture.Memory()
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("catalog loaded",
		zap.String("fixture", cfg.Catalog.Fixture),
		zap.Int("products", mem.Len()))
	return mem, store, nil
}

// newSession binds a fresh ledger to a session.
func newSession(cfg *Config, id string, logger *zap.Logger) *session.Context {
	var l types.Ledger
	if cfg.Ledger.Endpoint != "" {
		l = ledger.NewKernelClient(ledger.KernelConfig{
			Endpoint:   cfg.Ledger.Endpoint,
			TerminalID: cfg.Ledger.TerminalID,
			StoreID:    cfg.Store.ID,
			Currency:   cfg.Store.Currency,
			Places:     cfg.Store.CurrencyPlaces,
			Logger:     logger,
		})
	} else {
		l = ledger.NewMemoryLedger(ledger.MemoryConfig{
			Currency: cfg.Store.Currency,
			Places:   cfg.Store.CurrencyPlaces,
			Logger:   logger,
		})
	}
	return session.New(session.Config{
		ID:             id,
		PersonaKey:     cfg.Persona.Key,
		StoreID:        cfg.Store.ID,
		Currency:       cfg.Store.Currency,
		CurrencyPlaces: cfg.Store.CurrencyPlaces,
		HistoryWindow:  cfg.Session.HistoryWindow,
		Ledger:         l,
	})
}

// serveMetrics exposes the registry until ctx ends.
func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		logger.Info("metrics endpoint listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics endpoint failed", zap.Error(err))
		}
	}()
}
