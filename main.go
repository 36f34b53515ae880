package main

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/portsense/portsense/agent/agents/guardian"
	"github.com/portsense/portsense/agent/agents/orchestrator"
	"github.com/portsense/portsense/agent/agents/specialist"
	"github.com/portsense/portsense/agent/engine"
	"github.com/portsense/portsense/agent/llm"
	statex "github.com/portsense/portsense/agent/state"
	"github.com/portsense/portsense/agent/suggest"
	"github.com/portsense/portsense/agent/tool"
	"github.com/portsense/portsense/api"
	configx "github.com/portsense/portsense/pkg/config"
	logx "github.com/portsense/portsense/pkg/logger"
	openrouterx "github.com/portsense/portsense/pkg/openrouter"
	"github.com/portsense/portsense/pkg/portapi"
)

type AppConfig struct {
	AdminEmail    string `envconfig:"ADMIN_EMAIL" split_words:"true" default:"admin@apcs.dz"`
	AdminPassword string `envconfig:"ADMIN_PASSWORD" split_words:"true" required:"true"`

	// Checkpoint backend: "postgres", "redis" or "memory".
	StateBackend string `envconfig:"STATE_BACKEND" split_words:"true" default:"memory"`
}

func main() {
	logCfg := configx.MustLoad[logx.Config]("LOG")
	logx.Init(*logCfg)

	appCfg := configx.MustLoad[AppConfig]("")
	apiCfg := configx.MustLoad[api.Config]("AGENT_API")
	portCfg := configx.MustLoad[portapi.Config]("PORT_API")
	providerCfg := configx.MustLoad[openrouterx.Config]("OPENROUTER")
	llmCfg := configx.MustLoad[llm.Config]("LLM")

	ctx := context.Background()

	tokens := portapi.NewFileTokenStore(portCfg.TokenFile)
	client, err := portapi.NewClient(*portCfg, tokens)
	if err != nil {
		log.Fatal().Err(err).Msg("build backend client")
	}
	if err := tokens.Clear(); err != nil {
		log.Warn().Err(err).Msg("clearing stale tokens failed")
	}
	if err := client.Login(ctx, appCfg.AdminEmail, appCfg.AdminPassword); err != nil {
		log.Warn().Err(err).Msg("startup login failed, requests may be unauthorized")
	}

	store := buildStore(appCfg.StateBackend)

	gateway := llm.New(*providerCfg, *llmCfg)
	exec := tool.NewExecutor(client)

	eng, err := engine.New(
		store,
		client,
		orchestrator.New(gateway),
		specialist.NewBooking(gateway, client, exec),
		specialist.NewCapacity(gateway, client, exec),
		guardian.New(gateway, client),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("build engine")
	}

	sdkClient := openrouterx.NewClient(*providerCfg)
	if sdkClient == nil {
		log.Fatal().Msg("openrouter api key is required")
	}
	suggestions, err := suggest.New(sdkClient, llmCfg.SmallModel, client)
	if err != nil {
		log.Fatal().Err(err).Msg("build suggestion service")
	}

	server, err := api.NewServer(*apiCfg, eng, suggestions)
	if err != nil {
		log.Fatal().Err(err).Msg("build server")
	}

	log.Info().Int("port", apiCfg.Port).Str("state_backend", appCfg.StateBackend).Msg("starting server")
	if err := server.Start(); err != nil {
		log.Fatal().Err(err).Msg("server shutdown failed")
	}
}

func buildStore(backend string) statex.Store {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "postgres":
		cfg := configx.MustLoad[statex.PostgresConfig]("POSTGRES")
		store, err := statex.NewPostgresStore(*cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("build postgres store")
		}
		if err := store.Setup(context.Background()); err != nil {
			log.Fatal().Err(err).Msg("prepare checkpoint table")
		}
		return store
	case "redis":
		cfg := configx.MustLoad[statex.UpstashRedisConfig]("UPSTASH_REDIS")
		store, err := statex.NewUpstashRedisStore(*cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("build redis store")
		}
		return store
	default:
		log.Warn().Msg("using in-memory state store, threads will not survive restarts")
		return statex.NewMemoryStore()
	}
}
