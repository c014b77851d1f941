package app

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/calendent/calendent/internal/agent"
	"github.com/calendent/calendent/internal/config"
	"github.com/calendent/calendent/internal/gcal"
	"github.com/calendent/calendent/internal/httpapi"
	"github.com/calendent/calendent/internal/memory"
	"github.com/calendent/calendent/internal/observability"
	"github.com/calendent/calendent/internal/reasoner"
	"github.com/calendent/calendent/internal/scheduling"
)

type BuildResult struct {
	Config  config.Config
	API     *httpapi.Server
	Agent   *agent.Orchestrator
	Metrics *observability.Metrics

	// Cleanup should be called on shutdown to release external resources.
	Cleanup func() error
}

func Build(ctx context.Context, cfg config.Config) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	store, err := memory.NewStore(ctx, cfg.DatabaseURL, cfg.MaxConversationHistory)
	if err != nil {
		return nil, fmt.Errorf("conversation store init failed: %w", err)
	}

	engine, err := reasoner.NewEngine(reasoner.Config{
		Mode:    cfg.ReasonerMode,
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.GeminiModel,
		Timeout: cfg.ReasonerTimeout,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("reasoner init failed: %w", err)
	}
	if _, mock := engine.(*reasoner.MockEngine); mock {
		log.Printf("reasoner: mock (no gemini key configured)")
	} else {
		log.Printf("reasoner: gemini (%s)", cfg.GeminiModel)
	}

	var cal gcal.API
	if strings.TrimSpace(cfg.GoogleServiceAccountFile) != "" {
		client, err := gcal.NewClient(ctx, cfg.GoogleServiceAccountFile, cfg.CalendarID)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("calendar client init failed: %w", err)
		}
		cal = client
		log.Printf("calendar provider: google (%s)", cfg.CalendarID)
	} else {
		cal = gcal.NewInMemoryCalendar()
		log.Printf("calendar provider: in-memory (no service account configured)")
	}

	tools := scheduling.NewEngine(cal, cfg.Location(), cfg.TimezoneName, cfg.CalendarTimeout)

	chatAgent := agent.NewOrchestrator(engine, tools, store, metrics, agent.Options{
		MaxActions:   cfg.MaxActionsPerTurn,
		RecentWindow: cfg.RecentMessagesLimit,
		TurnTimeout:  cfg.TurnTimeout,
	})

	api := httpapi.New(cfg, chatAgent, metrics)

	return &BuildResult{
		Config:  cfg,
		API:     api,
		Agent:   chatAgent,
		Metrics: metrics,
		Cleanup: store.Close,
	}, nil
}
