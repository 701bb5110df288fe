package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/ahmed-jemaa-2000/photo-studio-bot/internal/catalog"
	"github.com/ahmed-jemaa-2000/photo-studio-bot/internal/flow"
	"github.com/ahmed-jemaa-2000/photo-studio-bot/internal/guard"
	"github.com/ahmed-jemaa-2000/photo-studio-bot/internal/history"
	botapi "github.com/ahmed-jemaa-2000/photo-studio-bot/internal/http"
	"github.com/ahmed-jemaa-2000/photo-studio-bot/internal/infra"
	"github.com/ahmed-jemaa-2000/photo-studio-bot/internal/ledger"
	"github.com/ahmed-jemaa-2000/photo-studio-bot/internal/orchestrator"
	"github.com/ahmed-jemaa-2000/photo-studio-bot/internal/palette"
	"github.com/ahmed-jemaa-2000/photo-studio-bot/internal/prompt"
	"github.com/ahmed-jemaa-2000/photo-studio-bot/internal/render"
	"github.com/ahmed-jemaa-2000/photo-studio-bot/internal/session"
	"github.com/ahmed-jemaa-2000/photo-studio-bot/internal/transport"
)

func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)
	clock := clockwork.NewRealClock()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Attempt history: postgres when configured, memory otherwise.
	var historyStore history.Store = history.NewMemory()
	if cfg.DatabaseURL != "" {
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer pool.Close()
		historyStore = history.NewPostgresStore(pool)
	} else {
		logger.Warn().Msg("no database configured, attempt history is in-memory only")
	}

	// Video guard: redis lease across instances when configured.
	var videoGuard guard.VideoGuard = guard.NewMemoryGuard()
	if cfg.RedisURL != "" {
		redisOpts, err := goredis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid redis url")
		}
		rdb := goredis.NewClient(redisOpts)
		defer rdb.Close()
		videoGuard = guard.NewRedisGuard(rdb, cfg.GuardLease, logger)
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}

	ledgerClient, err := ledger.NewClient(ledger.Options{
		BaseURL: cfg.LedgerBaseURL,
		Token:   cfg.LedgerToken,
		Costs: ledger.CostTable{
			"image": cfg.ImageCost,
			"video": cfg.VideoCost,
		},
		HTTPClient: httpClient,
		Logger:     &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure ledger client")
	}

	providerClient, err := render.NewClient(render.Options{
		BaseURL:    cfg.ProviderBaseURL,
		Token:      cfg.ProviderToken,
		HTTPClient: httpClient,
		Logger:     &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure render client")
	}

	poller := render.NewPoller(providerClient, render.PollerConfig{
		MaxAttempts:   cfg.PollMaxAttempts,
		PollInterval:  cfg.PollInterval,
		VideoDeadline: cfg.VideoDeadline,
	}, clock, logger)

	sessions := session.NewStore(clock)
	go sessions.RunJanitor(ctx, cfg.SessionIdleTimeout, logger)

	orch := orchestrator.New(orchestrator.Options{
		Sessions: sessions,
		Ledger:   ledgerClient,
		Provider: providerClient,
		Poller:   poller,
		Guard:    videoGuard,
		History:  historyStore,
		Prompts:  prompt.NewComposer(),
		Clock:    clock,
		Logger:   logger,
	})

	catalogClient, err := catalog.NewClient(catalog.Options{
		BaseURL:  cfg.CatalogBaseURL,
		CacheTTL: cfg.CatalogCacheTTL,
		Clock:    clock,
		Logger:   &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure catalog client")
	}

	responder, err := transport.NewResponder(transport.Options{
		BaseURL:    cfg.TransportBaseURL,
		Token:      cfg.TransportToken,
		HTTPClient: httpClient,
		Logger:     &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure transport responder")
	}

	var paletteClient flow.PaletteExtractor
	if cfg.PaletteBaseURL != "" {
		paletteClient, err = palette.NewClient(cfg.PaletteBaseURL, httpClient)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure palette client")
		}
	}

	engine := flow.NewEngine(sessions, orch, catalogClient, paletteClient, responder, logger)
	app := botapi.NewApp(engine, logger)
	server := infra.NewHTTPServer(cfg, botapi.NewRouter(app))

	go func() {
		logger.Info().Msgf("webhook receiver listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
