// Package app wires the clinic agent's services using go.uber.org/dig.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.uber.org/dig"

	"clinic-agent/internal/clinic"
	"clinic-agent/internal/config"
	"clinic-agent/internal/integrations/openai"
	"clinic-agent/internal/integrations/paramstore"
	"clinic-agent/internal/logging"
	"clinic-agent/internal/metrics"
	"clinic-agent/internal/repository"
	"clinic-agent/internal/usecase"
)

// ErrMissingAPIKey is returned when neither TOGETHER_API_KEY nor a parameter
// prefix is configured.
var ErrMissingAPIKey = errors.New("app: TOGETHER_API_KEY is not set and no param_prefix is configured")

// Container resolves services on demand. Only the part of the graph a caller
// asks for is built, so the offline domain commands never need an API key.
type Container struct {
	d *dig.Container
}

// awsLoader loads the shared AWS config at most once.
type awsLoader func(ctx context.Context) (aws.Config, error)

// New registers every provider for cfg.
func New(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, errors.New("app: config must not be nil")
	}
	d := dig.New()

	providers := []any{
		func() *config.Config { return cfg },
		newLogger,
		newAWSLoader,
		newRegistry,
		newTurnMetrics,
		newClinicStore,
		newClinicService,
		newSessionStore,
		newKeySource,
		newLLMClient,
		newOrchestrator,
		newChatService,
	}
	for _, p := range providers {
		if err := d.Provide(p); err != nil {
			return nil, fmt.Errorf("app: provide: %w", err)
		}
	}
	return &Container{d: d}, nil
}

func resolve[T any](c *Container) (T, error) {
	var out T
	err := c.d.Invoke(func(v T) { out = v })
	return out, err
}

func (c *Container) Logger() (*slog.Logger, error) {
	return resolve[*slog.Logger](c)
}

// Clinic resolves the domain service without touching the LLM side of the graph.
func (c *Container) Clinic() (*clinic.Service, error) {
	return resolve[*clinic.Service](c)
}

func (c *Container) ChatService() (*usecase.ChatService, error) {
	return resolve[*usecase.ChatService](c)
}

func (c *Container) Registry() (*prometheus.Registry, error) {
	return resolve[*prometheus.Registry](c)
}

func newLogger(cfg *config.Config) *slog.Logger {
	logger := logging.New(cfg.LogLevel)
	slog.SetDefault(logger)
	return logger
}

func newAWSLoader() awsLoader {
	var (
		once   sync.Once
		awsCfg aws.Config
		err    error
	)
	return func(ctx context.Context) (aws.Config, error) {
		once.Do(func() {
			awsCfg, err = awsconfig.LoadDefaultConfig(ctx)
		})
		return awsCfg, err
	}
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func newTurnMetrics(reg *prometheus.Registry) *metrics.TurnMetrics {
	return metrics.NewTurnMetrics(reg)
}

func newClinicStore(cfg *config.Config) (*repository.CSVStore, error) {
	return repository.NewCSVStore(cfg.DataDir)
}

func newClinicService(cfg *config.Config, store *repository.CSVStore) (*clinic.Service, error) {
	return clinic.NewService(store, cfg.Timezone)
}

func newSessionStore(cfg *config.Config, loadAWS awsLoader, logger *slog.Logger) (usecase.SessionStore, error) {
	switch cfg.Session.Backend {
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Session.RedisAddr,
			Password: cfg.Session.RedisPassword,
		})
		store, err := repository.NewRedisSessionStore(client, cfg.Session.TTL, otel.Tracer("clinic-agent/repository/sessions"))
		if err != nil {
			return nil, err
		}
		logger.Info("using redis session store", "addr", cfg.Session.RedisAddr)
		return store, nil
	case config.BackendDynamoDB:
		awsCfg, err := loadAWS(context.Background())
		if err != nil {
			return nil, fmt.Errorf("app: load AWS config: %w", err)
		}
		store, err := repository.NewDynamoSessionStore(awsdynamodb.NewFromConfig(awsCfg), cfg.Session.Table)
		if err != nil {
			return nil, err
		}
		logger.Info("using dynamodb session store", "table", cfg.Session.Table)
		return store, nil
	default:
		return repository.NewMemorySessionStore(), nil
	}
}

func newKeySource(cfg *config.Config, loadAWS awsLoader) (openai.KeySource, error) {
	if cfg.APIKey != "" {
		return openai.StaticKey(cfg.APIKey), nil
	}
	if cfg.ParamPrefix == "" {
		return nil, ErrMissingAPIKey
	}
	awsCfg, err := loadAWS(context.Background())
	if err != nil {
		return nil, fmt.Errorf("app: load AWS config: %w", err)
	}
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		return nil, err
	}
	key, err := openai.NewParamStoreKey(ssmClient, cfg.ParamPrefix)
	if err != nil {
		return nil, err
	}
	return key, nil
}

func newLLMClient(cfg *config.Config, keys openai.KeySource) (usecase.LLMClient, error) {
	client, err := openai.NewClient(keys,
		openai.WithBaseURL(cfg.LLM.BaseURL),
		openai.WithHTTPClient(&http.Client{Timeout: cfg.LLM.Timeout}),
	)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func newOrchestrator(cfg *config.Config, llm usecase.LLMClient, svc *clinic.Service, m *metrics.TurnMetrics, logger *slog.Logger) (*usecase.Orchestrator, error) {
	temperature := cfg.LLM.Temperature
	return usecase.NewOrchestrator(llm, svc, usecase.OrchestratorConfig{
		ClinicName:    cfg.ClinicName,
		Model:         cfg.LLM.Model,
		Temperature:   &temperature,
		MaxToolRounds: cfg.MaxToolRounds,
	},
		usecase.WithMetrics(m),
		usecase.WithLogger(logger),
		usecase.WithTracer(otel.Tracer("clinic-agent/usecase")),
	)
}

func newChatService(cfg *config.Config, o *usecase.Orchestrator, svc *clinic.Service, sessions usecase.SessionStore, logger *slog.Logger) (*usecase.ChatService, error) {
	mode, err := usecase.ParseHistoryMode(cfg.HistoryMode)
	if err != nil {
		return nil, err
	}
	prompt, err := cfg.SystemPrompt()
	if err != nil {
		return nil, err
	}
	return usecase.NewChatService(o, svc, sessions, usecase.ChatConfig{
		ClinicName:    cfg.ClinicName,
		SystemPrompt:  prompt,
		HistoryMode:   mode,
		MaxMessageLen: cfg.MaxMessageLength,
		MaxHistory:    cfg.MaxHistory,
	}, logger)
}
