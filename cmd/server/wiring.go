package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"didlab/internal/audit"
	"didlab/internal/credential/cache"
	credservice "didlab/internal/credential/service"
	"didlab/internal/credential/store"
	"didlab/internal/ledger"
	"didlab/internal/ledger/evm"
	"didlab/internal/ledger/memory"
	ledgermetrics "didlab/internal/ledger/metrics"
	"didlab/internal/platform/config"
	"didlab/internal/platform/database"
	"didlab/internal/platform/health"
	"didlab/internal/platform/kafka/producer"
	"didlab/internal/platform/metrics"
	"didlab/internal/platform/redis"
	"didlab/internal/platform/tracer"
	"didlab/pkg/domain"
	"didlab/pkg/platform/circuit"
)

const redisStatsInterval = 15 * time.Second

// infra holds the process-scoped clients. Nil fields are not configured.
type infra struct {
	db       *database.Pool
	redis    *redis.Client
	producer *producer.Producer
	evm      *evm.Client

	closers []func()
}

func (i *infra) close() {
	for j := len(i.closers) - 1; j >= 0; j-- {
		i.closers[j]()
	}
}

// connect opens every configured backing service. On error, whatever was
// already opened is closed.
func connect(ctx context.Context, cfg *config.Config, reg *metrics.Registry, log *slog.Logger) (_ *infra, err error) {
	in := &infra{}
	defer func() {
		if err != nil {
			in.close()
		}
	}()

	if in.db, err = database.New(ctx, cfg.Database, database.Options{Logger: log, Registerer: reg}); err != nil {
		return nil, err
	}
	if in.db != nil {
		in.closers = append(in.closers, func() { _ = in.db.Close() }) //nolint:errcheck // shutdown
	}

	if in.redis, err = redis.New(ctx, cfg.Redis, reg); err != nil {
		return nil, err
	}
	if in.redis != nil {
		in.closers = append(in.closers, func() { _ = in.redis.Close() }) //nolint:errcheck // shutdown
	}

	kcfg := producer.DefaultConfig()
	kcfg.Brokers = cfg.Kafka.Brokers
	kcfg.ClientID = cfg.Kafka.ClientID
	if in.producer, err = producer.New(kcfg, log); err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	if in.producer != nil {
		in.closers = append(in.closers, func() { _ = in.producer.Close() }) //nolint:errcheck // shutdown
	}

	if cfg.Ledger.RPCURL != "" {
		in.evm, err = evm.Dial(ctx, evm.Config{
			RPCURL:                 cfg.Ledger.RPCURL,
			ContractAddress:        cfg.Ledger.ContractAddress,
			PrivateKey:             cfg.Ledger.IssuerPrivateKey,
			ChainID:                cfg.Ledger.ChainID,
			ConfirmationTimeout:    cfg.Ledger.ConfirmationTimeout,
			AlreadyRecordedReasons: cfg.Ledger.AlreadyRecordedReasons,
		}, log)
		if err != nil {
			return nil, err
		}
		in.closers = append(in.closers, in.evm.Close)
	}

	return in, nil
}

// registerChecks adds a readiness check per configured dependency.
func (i *infra) registerChecks(h *health.Handler) {
	if i.db != nil {
		h.RegisterCheck("database", i.db.Health)
	}
	if i.redis != nil {
		h.RegisterCheck("redis", i.redis.Health)
	}
	if i.producer != nil {
		h.RegisterCheck("kafka", i.producer.Health)
	}
	if i.evm != nil {
		h.RegisterCheck("ledger", i.evm.Health)
	}
}

// recordRedisStats publishes pool statistics until ctx is done.
func (i *infra) recordRedisStats(ctx context.Context) {
	if i.redis == nil {
		return
	}
	ticker := time.NewTicker(redisStatsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			i.redis.RecordPoolStats()
		}
	}
}

func (i *infra) ledgerBackend() string {
	if i.evm != nil {
		return "evm"
	}
	return "memory"
}

func (i *infra) buildLedger(cfg config.LedgerConfig, reg *metrics.Registry) (*ledger.Instrumented, error) {
	var next ledger.Ledger
	if i.evm != nil {
		next = i.evm
	} else {
		issuer, err := domain.ParseAddress(cfg.DevIssuerAddress)
		if err != nil {
			return nil, fmt.Errorf("ledger.dev_issuer_address: %w", err)
		}
		next = memory.New(issuer)
	}
	return ledger.NewInstrumented(next, tracer.NewOTel(tracer.WithBackend(i.ledgerBackend())), ledgermetrics.New(reg)), nil
}

func (i *infra) buildStore() credservice.Store {
	if i.db != nil {
		return store.NewPostgres(i.db.DB())
	}
	return store.NewInMemoryStore()
}

// buildCache returns nil unless the verification cache is enabled. The
// in-memory cache is swept in the background until ctx is done.
func (i *infra) buildCache(ctx context.Context, cfg config.CredentialsConfig, log *slog.Logger) credservice.VerificationCache {
	if !cfg.VerificationCacheEnabled {
		return nil
	}
	if i.redis != nil {
		log.Info("verification cache enabled", "backend", "redis", "ttl", cfg.VerificationCacheTTL)
		return cache.NewResilientCache(cache.NewRedisCache(i.redis.Client, cfg.VerificationCacheTTL), circuit.New("verification_cache"), log)
	}
	log.Warn("verification cache enabled in memory, revocations on other replicas are seen only after expiry",
		"ttl", cfg.VerificationCacheTTL,
	)
	mem := cache.NewInMemoryCache(cfg.VerificationCacheTTL)
	go mem.Run(ctx, cache.DefaultSweepInterval)
	return mem
}

// buildAuditor writes events to Postgres or memory, and to Kafka when
// brokers are configured.
func (i *infra) buildAuditor(cfg config.KafkaConfig, reg *metrics.Registry, log *slog.Logger) *audit.Publisher {
	var sinks audit.MultiSink
	if i.db != nil {
		sinks = append(sinks, audit.NewPostgresStore(i.db.DB()))
	} else {
		sinks = append(sinks, audit.NewInMemoryStore())
	}
	if i.producer != nil {
		sinks = append(sinks, audit.NewKafkaSink(i.producer, cfg.AuditTopic))
	}
	return audit.NewPublisher(sinks,
		audit.WithAsyncBuffer(256),
		audit.WithPublisherLogger(log),
		audit.WithPublisherMetrics(reg),
	)
}
