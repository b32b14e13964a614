package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ticketd/internal/activities"
	"github.com/fyrsmithlabs/ticketd/internal/classify"
	"github.com/fyrsmithlabs/ticketd/internal/config"
	"github.com/fyrsmithlabs/ticketd/internal/idempotency"
	"github.com/fyrsmithlabs/ticketd/internal/knowledge"
	"github.com/fyrsmithlabs/ticketd/internal/logging"
	"github.com/fyrsmithlabs/ticketd/internal/notify"
	"github.com/fyrsmithlabs/ticketd/internal/orchestrator"
	"github.com/fyrsmithlabs/ticketd/internal/respond"
	"github.com/fyrsmithlabs/ticketd/internal/status"
)

// Registry holds the assembled stack and the resources it must release.
type Registry struct {
	gate       *idempotency.Gate
	acts       *activities.Activities
	status     *status.Memory
	searcher   knowledge.Searcher
	notifier   notify.Notifier
	generator  respond.Generator
	logger     *logging.Logger
	closers    []func() error
	components map[string]string
}

// Build validates cfg and constructs every component it selects. On error
// anything already opened is closed.
func Build(ctx context.Context, cfg *config.Config, logger *logging.Logger) (_ *Registry, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if logger == nil {
		logger = logging.Nop()
	}

	r := &Registry{logger: logger, components: make(map[string]string)}
	defer func() {
		if err != nil {
			_ = r.Close()
		}
	}()

	if r.gate, err = r.buildStore(ctx, cfg.Store); err != nil {
		return nil, fmt.Errorf("idempotency store: %w", err)
	}
	if r.searcher, err = r.buildSearcher(ctx, cfg.Knowledge); err != nil {
		return nil, fmt.Errorf("knowledge searcher: %w", err)
	}
	if r.generator, err = r.buildGenerator(cfg.Generator); err != nil {
		return nil, fmt.Errorf("generator: %w", err)
	}
	if r.notifier, err = r.buildNotifier(cfg.Notify); err != nil {
		return nil, fmt.Errorf("notifier: %w", err)
	}

	var statusOpts []status.Option
	if cfg.Status.Strict {
		statusOpts = append(statusOpts, status.WithStrict())
	}
	r.status = status.NewMemory(statusOpts...)

	r.acts, err = activities.New(r.gate, activities.Providers{
		Classifier: classify.NewHeuristic(),
		Searcher:   r.searcher,
		Generator:  r.generator,
		Status:     r.status,
		Notifier:   r.notifier,
	}, activities.WithLogger(logger.Underlying().Named("activities")))
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "ticket stack assembled",
		zap.String("store", r.components["store"]),
		zap.String("knowledge", r.components["knowledge"]),
		zap.String("generator", r.components["generator"]),
		zap.String("notify", r.components["notify"]),
		zap.Bool("status_strict", cfg.Status.Strict),
	)
	return r, nil
}

func (r *Registry) onClose(fn func() error) {
	r.closers = append(r.closers, fn)
}

func (r *Registry) buildStore(ctx context.Context, cfg config.StoreConfig) (*idempotency.Gate, error) {
	var backend idempotency.Backend

	switch cfg.Backend {
	case config.StoreSQLite:
		b, err := idempotency.OpenSQLite(cfg.Path)
		if err != nil {
			return nil, err
		}
		backend = b
	case config.StorePostgres:
		b, err := idempotency.OpenPostgres(ctx, cfg.DSN.Value())
		if err != nil {
			return nil, err
		}
		backend = b
	case config.StoreRedis:
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword.Value(),
			DB:       cfg.RedisDB,
		})
		b := idempotency.NewRedisBackend(client, cfg.RedisTTL.Duration())
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := b.Ping(pingCtx); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
		}
		r.onClose(client.Close)
		backend = b
	default:
		backend = idempotency.NewMemoryBackend()
	}

	gate, err := idempotency.NewGate(backend, idempotency.WithLogger(r.logger.Underlying().Named("idempotency")))
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	r.onClose(gate.Close)
	r.components["store"] = cfg.Backend
	return gate, nil
}

func (r *Registry) buildSearcher(ctx context.Context, cfg config.KnowledgeConfig) (knowledge.Searcher, error) {
	articles, err := knowledge.LoadCorpus(cfg.CorpusPath)
	if err != nil {
		return nil, err
	}
	r.components["knowledge"] = cfg.Backend

	switch cfg.Backend {
	case config.KnowledgeChromem:
		return knowledge.NewChromem(ctx, knowledge.ChromemConfig{
			Path:     cfg.ChromemPath,
			Compress: cfg.ChromemCompress,
		}, knowledge.NewHashingEmbedder(cfg.Dimension), articles)
	case config.KnowledgeQdrant:
		q, err := knowledge.NewQdrant(knowledge.QdrantConfig{
			Host:       cfg.QdrantHost,
			Port:       cfg.QdrantPort,
			UseTLS:     cfg.QdrantTLS,
			APIKey:     cfg.QdrantAPIKey.Value(),
			Collection: cfg.QdrantCollection,
		}, knowledge.NewHashingEmbedder(cfg.Dimension))
		if err != nil {
			return nil, err
		}
		r.onClose(q.Close)
		if err := q.Seed(ctx, articles); err != nil {
			return nil, fmt.Errorf("seeding qdrant: %w", err)
		}
		return q, nil
	default:
		return knowledge.NewKeyword(articles), nil
	}
}

func (r *Registry) buildGenerator(cfg config.GeneratorConfig) (respond.Generator, error) {
	r.components["generator"] = cfg.Backend
	if cfg.Backend == config.GeneratorLLM {
		return respond.NewOpenAI(respond.LLMConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			APIKey:  cfg.APIKey.Value(),
			Prompt:  cfg.Prompt,
		})
	}
	return respond.NewTemplate(cfg.Template)
}

func (r *Registry) buildNotifier(cfg config.NotifyConfig) (notify.Notifier, error) {
	r.components["notify"] = cfg.Backend
	logNotifier := notify.NewLog(r.logger.Underlying().Named("notify"))

	switch cfg.Backend {
	case config.NotifyNATS:
		nc, err := nats.Connect(cfg.NATSURL,
			nats.Name("ticketd"),
			nats.RetryOnFailedConnect(true),
			nats.MaxReconnects(5),
			nats.ReconnectWait(time.Second),
		)
		if err != nil {
			return nil, fmt.Errorf("connecting to NATS at %s: %w", cfg.NATSURL, err)
		}
		r.onClose(func() error {
			nc.Close()
			return nil
		})
		return notify.Mirror{Primary: notify.NewNATS(nc, cfg.SubjectPrefix), Copy: logNotifier}, nil
	case config.NotifyKafka:
		k := notify.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic)
		r.onClose(k.Close)
		return notify.Mirror{Primary: k, Copy: logNotifier}, nil
	default:
		return logNotifier, nil
	}
}

// Activities returns the activity set for workers and the orchestrator.
func (r *Registry) Activities() *activities.Activities { return r.acts }

// Status returns the status system of record.
func (r *Registry) Status() *status.Memory { return r.status }

// Store returns the idempotency gate.
func (r *Registry) Store() *idempotency.Gate { return r.gate }

// Components maps each pluggable concern to the backend in use.
func (r *Registry) Components() map[string]string {
	out := make(map[string]string, len(r.components))
	for k, v := range r.components {
		out[k] = v
	}
	return out
}

// Orchestrator returns an in-process orchestrator over the activities.
func (r *Registry) Orchestrator(opts ...orchestrator.Option) *orchestrator.Orchestrator {
	opts = append([]orchestrator.Option{orchestrator.WithLogger(r.logger.Underlying().Named("orchestrator"))}, opts...)
	return orchestrator.New(r.acts, opts...)
}

// Close releases resources in reverse order of acquisition.
func (r *Registry) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}
