package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanpawarit/chative-commerce-agent/agent/agents/orchestrator"
	"github.com/tanpawarit/chative-commerce-agent/agent/agents/sales"
	contractx "github.com/tanpawarit/chative-commerce-agent/agent/contract"
	llmx "github.com/tanpawarit/chative-commerce-agent/agent/llm"
	promptx "github.com/tanpawarit/chative-commerce-agent/agent/prompt"
	statex "github.com/tanpawarit/chative-commerce-agent/agent/state"
	toolx "github.com/tanpawarit/chative-commerce-agent/agent/tool"
	"github.com/tanpawarit/chative-commerce-agent/channel"
	cartx "github.com/tanpawarit/chative-commerce-agent/commerce/cart"
	catalogx "github.com/tanpawarit/chative-commerce-agent/commerce/catalog"
	"github.com/tanpawarit/chative-commerce-agent/commerce/gateway"
	configx "github.com/tanpawarit/chative-commerce-agent/pkg/config"
	_ "github.com/tanpawarit/chative-commerce-agent/pkg/logger/autoload"
	openrouterx "github.com/tanpawarit/chative-commerce-agent/pkg/openrouter"
	postgresx "github.com/tanpawarit/chative-commerce-agent/pkg/postgres"
	qstashx "github.com/tanpawarit/chative-commerce-agent/pkg/qstash"
	"github.com/tanpawarit/chative-commerce-agent/transport/webhook"
)

type AppConfig struct {
	ListenAddr      string        `split_words:"true" default:":8080"`
	SessionBackend  string        `split_words:"true" default:"memory"`
	StorageBackend  string        `split_words:"true" default:"memory"`
	OutboundBackend string        `split_words:"true" default:"log"`
	CatalogFile     string        `split_words:"true" default:"data/products.json"`
	SeedCatalog     bool          `split_words:"true" default:"false"`
	Workers         int           `split_words:"true" default:"8"`
	TurnTimeout     time.Duration `split_words:"true" default:"2m"`
	RetryBudget     int           `split_words:"true" default:"2"` // 0 selects the default, negative disables retries
	RetryDelay      time.Duration `split_words:"true" default:"2s"`
	HistoryLimit    int           `split_words:"true" default:"40"`
	PageSize        int           `split_words:"true" default:"5"`
	ShutdownTimeout time.Duration `split_words:"true" default:"15s"`
}

func (c *AppConfig) Validate() error {
	if err := oneOf("session backend", c.SessionBackend, "memory", "sqlite", "upstash"); err != nil {
		return err
	}
	if err := oneOf("storage backend", c.StorageBackend, "memory", "postgres"); err != nil {
		return err
	}
	if err := oneOf("outbound backend", c.OutboundBackend, "log", "qstash"); err != nil {
		return err
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	return nil
}

func oneOf(name, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %s, got %q", name, strings.Join(allowed, "|"), value)
}

type closer func()

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appCfg := configx.MustNew[AppConfig]("APP")
	ctx = log.Logger.WithContext(ctx)

	products, carts, closeCommerce, err := openCommerce(ctx, appCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("open commerce storage")
	}
	defer closeCommerce()

	sessions, closeSessions, err := openSessions(ctx, appCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("open session store")
	}
	defer closeSessions()

	gw, err := gateway.New(products, carts, *configx.MustNew[gateway.Config]("GATEWAY"))
	if err != nil {
		log.Fatal().Err(err).Msg("init backend gateway")
	}

	catalog, err := toolx.NewCatalog()
	if err != nil {
		log.Fatal().Err(err).Msg("init tool catalog")
	}
	executor, err := toolx.NewExecutor(gw, sessions, appCfg.PageSize)
	if err != nil {
		log.Fatal().Err(err).Msg("init tool executor")
	}

	prompts := promptx.LoadPromptSet()
	if err := prompts.Validate(); err != nil {
		log.Fatal().Err(err).Msg("load prompts")
	}

	llmCfg := configx.MustNew[llmx.Config]("LLM")
	orCfg := llmCfg.OpenRouter()
	if llmCfg.ProbeOnStart {
		if err := openrouterx.Probe(ctx, orCfg); err != nil {
			log.Fatal().Err(err).Str("model", orCfg.Model).Msg("model endpoint probe failed")
		}
	}
	chatModel, err := orCfg.New(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("init chat model")
	}

	agent, err := sales.New(ctx, chatModel, prompts.Sales, catalog.ToolInfos())
	if err != nil {
		log.Fatal().Err(err).Msg("init sales agent")
	}

	orch, err := orchestrator.New(sessions, agent, catalog, executor, orchestrator.Config{
		RetryBudget:  appCfg.RetryBudget,
		RetryDelay:   appCfg.RetryDelay,
		ModelTimeout: llmCfg.Timeout,
		TurnTimeout:  appCfg.TurnTimeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("init orchestrator")
	}

	sender, err := newSender(appCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("init outbound sender")
	}
	outbound, err := channel.NewOutbound(sender, channel.MaxMessageLen)
	if err != nil {
		log.Fatal().Err(err).Msg("init outbound channel")
	}

	hook, err := webhook.New(orch, outbound, webhook.Config{Workers: appCfg.Workers})
	if err != nil {
		log.Fatal().Err(err).Msg("init webhook")
	}

	srv := &http.Server{
		Addr:              appCfg.ListenAddr,
		Handler:           hook.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("model", orCfg.Model).
			Str("sessions", appCfg.SessionBackend).
			Str("storage", appCfg.StorageBackend).
			Str("outbound", appCfg.OutboundBackend).
			Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server failed")
			stop()
		}
	}()

	<-ctx.Done()
	stop()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), appCfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	hook.Close()

	log.Info().Msg("server stopped")
}

func openCommerce(ctx context.Context, cfg *AppConfig) (catalogx.Repository, cartx.Store, closer, error) {
	switch cfg.StorageBackend {
	case "postgres":
		pgCfg, err := configx.New[postgresx.Config]("POSTGRES")
		if err != nil {
			return nil, nil, nil, err
		}
		db, err := postgresx.Open(ctx, *pgCfg)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := catalogx.CreateSchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, nil, err
		}
		if err := cartx.CreateSchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, nil, err
		}
		products := catalogx.NewBunRepository(db)
		if cfg.SeedCatalog {
			seed, err := catalogx.LoadFile(cfg.CatalogFile)
			if err == nil {
				err = products.Upsert(ctx, seed)
			}
			if err != nil {
				_ = db.Close()
				return nil, nil, nil, err
			}
			log.Info().Int("products", len(seed)).Msg("catalog seeded")
		}
		return products, cartx.NewBunStore(db), func() { _ = db.Close() }, nil
	default:
		seed, err := catalogx.LoadFile(cfg.CatalogFile)
		if err != nil {
			return nil, nil, nil, err
		}
		log.Info().Int("products", len(seed)).Str("file", cfg.CatalogFile).Msg("catalog loaded")
		return catalogx.NewMemoryRepository(seed...), cartx.NewMemoryStore(), func() {}, nil
	}
}

func openSessions(ctx context.Context, cfg *AppConfig) (statex.Store, closer, error) {
	switch cfg.SessionBackend {
	case "sqlite":
		sqliteCfg, err := configx.New[statex.SQLiteConfig]("SQLITE")
		if err != nil {
			return nil, nil, err
		}
		store, err := statex.NewSQLiteStore(ctx, *sqliteCfg, cfg.HistoryLimit)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	case "upstash":
		redisCfg, err := configx.New[statex.UpstashRedisConfig]("UPSTASH_REDIS")
		if err != nil {
			return nil, nil, err
		}
		store, err := statex.NewUpstashRedisStore(*redisCfg, statex.WithHistoryLimit(cfg.HistoryLimit))
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	default:
		return statex.NewMemoryStore(cfg.HistoryLimit), func() {}, nil
	}
}

func newSender(cfg *AppConfig) (contractx.Sender, error) {
	if cfg.OutboundBackend != "qstash" {
		return channel.LogSender{}, nil
	}

	qstashCfg, err := configx.New[qstashx.Config]("QSTASH")
	if err != nil {
		return nil, err
	}
	client, err := qstashx.NewClient(*qstashCfg)
	if err != nil {
		return nil, err
	}
	twilioCfg, err := configx.New[channel.TwilioConfig]("TWILIO")
	if err != nil {
		return nil, err
	}
	return channel.NewQStashSender(client, *twilioCfg)
}
