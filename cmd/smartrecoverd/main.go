// Command smartrecoverd runs the SmartRecover HTTP API: it loads
// configuration, wires the incident/knowledge-base connectors, the agent
// set, the orchestrator and its supporting stores, and serves until an
// interrupt or terminate signal triggers a graceful shutdown.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/jmgress/smartrecover/internal/agents"
	"github.com/jmgress/smartrecover/internal/cache"
	"github.com/jmgress/smartrecover/internal/config"
	incidentconn "github.com/jmgress/smartrecover/internal/connectors/incident"
	kbconn "github.com/jmgress/smartrecover/internal/connectors/kb"
	"github.com/jmgress/smartrecover/internal/exclusion"
	"github.com/jmgress/smartrecover/internal/httpapi"
	"github.com/jmgress/smartrecover/internal/incident"
	"github.com/jmgress/smartrecover/internal/llm"
	"github.com/jmgress/smartrecover/internal/logging"
	"github.com/jmgress/smartrecover/internal/observability"
	"github.com/jmgress/smartrecover/internal/orchestrator"
	"github.com/jmgress/smartrecover/internal/promptlog"
	"github.com/jmgress/smartrecover/internal/promptstore"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		_ = godotenv.Load("example.env")
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logging: %v\n", err)
		os.Exit(1)
	}

	shutdownTracing, err := observability.InitTracing(context.Background(), cfg.Tracing)
	if err != nil {
		logger.Warn().Err(err).Msg("tracing init failed, continuing without it")
		shutdownTracing = func(context.Context) error { return nil }
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	incidentConn, warnings, err := incidentconn.New(cfg.IncidentConn, cfg.Agents.ConnectorTimeout, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init incident connector")
	}
	for _, w := range warnings {
		logger.Warn().Msg(w)
	}

	kbConn, err := kbconn.New(cfg.KnowledgeBase, cfg.Agents.ConnectorTimeout, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init knowledge base connector")
	}

	incidents := incident.NewStore()
	if cfg.IncidentConn.Type == "" || cfg.IncidentConn.Type == "mock" {
		if incidentWarnings, err := incidents.LoadCSV(cfg.IncidentConn.Mock.IncidentsCSV); err != nil {
			logger.Fatal().Err(err).Msg("failed to load incidents CSV")
		} else {
			for _, w := range incidentWarnings {
				logger.Warn().Msg(w)
			}
		}
	}

	// agents.New needs a PromptProvider, but the prompt store needs each
	// agent's default prompt to seed itself: build an unwired set first to
	// collect {name: default}, then rebuild the real set against the store.
	bootstrap := agents.New(cfg.Agents, incidentConn, kbConn, nil)
	defaults := map[string]string{
		bootstrap.IncidentManagement.Name(): bootstrap.IncidentManagement.DefaultPrompt(),
		bootstrap.KnowledgeBase.Name():      bootstrap.KnowledgeBase.DefaultPrompt(),
		bootstrap.ChangeCorrelation.Name():  bootstrap.ChangeCorrelation.DefaultPrompt(),
		bootstrap.Logs.Name():               bootstrap.Logs.DefaultPrompt(),
		bootstrap.Events.Name():             bootstrap.Events.DefaultPrompt(),
	}

	prompts, err := promptstore.New(cfg.PromptsPath, defaults)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init prompt store")
	}
	agentSet := agents.New(cfg.Agents, incidentConn, kbConn, prompts)

	provider, err := llm.New(cfg.LLM, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init LLM provider")
	}

	orch := &orchestrator.Orchestrator{
		IncidentConn:         incidentConn,
		KBConn:               kbConn,
		Agents:               agentSet,
		Cache:                cache.New[orchestrator.AgentData](),
		CacheTTL:             cfg.Cache.TTL,
		Exclusions:           exclusion.New(),
		LLM:                  llm.NewSwitcher(provider),
		PromptLog:            promptlog.New(cfg.PromptLogs.MaxEntries),
		ContextMaxPerSection: cfg.Agents.ContextMaxPerSection,
		IncidentSource:       cfg.IncidentConn.Type,
		KBSource:             cfg.KnowledgeBase.Type,
		Logger:               logger,
		CompleteTimeout:      cfg.LLM.CompleteTimeout,
		StreamIdleTimeout:    cfg.LLM.StreamIdleTimeout,
		TraceEnabled:         cfg.Logging.EnableTracing,
	}

	server := httpapi.NewServer(&httpapi.Server{
		Incidents:  incidents,
		Orch:       orch,
		Prompts:    prompts,
		PromptLog:  orch.PromptLog,
		Exclusions: orch.Exclusions,
		LLM:        orch.LLM,
		LLMConfig:  cfg.LLM,
		Logger:     logger,
	})

	addr := cfg.HTTPAddr
	if addr == "" {
		addr = ":8080"
	}
	httpServer := &http.Server{Addr: addr, Handler: server}

	go func() {
		logger.Info().Str("addr", addr).Msg("smartrecoverd listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	} else {
		logger.Info().Msg("smartrecoverd stopped")
	}
}
