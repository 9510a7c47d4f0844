package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/predyx/predyx/internal/blob"
	s3blob "github.com/predyx/predyx/internal/blob/s3"
	"github.com/predyx/predyx/internal/bus"
	"github.com/predyx/predyx/internal/cache/redis"
	"github.com/predyx/predyx/internal/chain"
	"github.com/predyx/predyx/internal/config"
	"github.com/predyx/predyx/internal/crypto"
	"github.com/predyx/predyx/internal/domain"
	"github.com/predyx/predyx/internal/indexer"
	"github.com/predyx/predyx/internal/notify"
	"github.com/predyx/predyx/internal/registry"
	"github.com/predyx/predyx/internal/service"
	"github.com/predyx/predyx/internal/store/memory"
	"github.com/predyx/predyx/internal/store/postgres"
)

// devOracleAddress is used by the simulator when no oracle key is
// configured. It is the first well-known hardhat development account.
const devOracleAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"

// Dependencies bundles everything the application modes operate on. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Markets   domain.MarketStore
	Trades    domain.TradeStore
	Positions domain.PositionStore
	Prices    domain.PriceHistoryStore

	PriceCache  domain.PriceCache
	MarketCache domain.MarketCache
	SignalBus   domain.SignalBus

	BlobWriter domain.BlobWriter
	Archiver   *blob.Archiver

	Notifier *notify.Notifier

	Source     chain.Source
	Sim        *chain.Sim // non-nil only with the sim backend
	Reconciler *indexer.Reconciler
	Poller     *indexer.Poller

	Query *service.QueryService
	Trade *service.TradeService
	Admin *service.AdminService

	OracleAddress string
}

// Wire constructs the concrete dependency graph from the configuration and
// returns it with a cleanup function releasing resources in reverse order.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// Stores: postgres when enabled, in-memory otherwise.
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.Markets = postgres.NewMarketStore(pool)
		deps.Trades = postgres.NewTradeStore(pool)
		deps.Positions = postgres.NewPositionStore(pool)
		deps.Prices = postgres.NewPriceHistoryStore(pool)
	} else {
		deps.Markets = memory.NewMarketStore()
		deps.Trades = memory.NewTradeStore()
		deps.Positions = memory.NewPositionStore()
		deps.Prices = memory.NewPriceHistoryStore()
	}

	// Caches and signal bus: redis when enabled, a process-local bus
	// otherwise so the websocket feed works in single-process deployments.
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.PriceCache = redis.NewPriceCache(redisClient)
		deps.MarketCache = redis.NewMarketCache(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
	} else {
		deps.SignalBus = bus.NewLocal()
	}

	// Oracle identity, used by the simulator as market creator and oracle.
	deps.OracleAddress = devOracleAddress
	if cfg.Oracle.PrivateKey != "" || cfg.Oracle.EncryptedKeyPath != "" {
		keyHex, err := crypto.LoadKey(crypto.KeyConfig{
			RawPrivateKey:    cfg.Oracle.PrivateKey,
			EncryptedKeyPath: cfg.Oracle.EncryptedKeyPath,
			KeyPassword:      cfg.Oracle.KeyPassword,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: oracle key: %w", err)
		}
		addr, err := crypto.AddressOf(keyHex)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: oracle key: %w", err)
		}
		deps.OracleAddress = addr
	}

	// Event source.
	switch strings.ToLower(cfg.Chain.Backend) {
	case "sim":
		deps.Sim = chain.NewSim(registry.New())
		deps.Source = deps.Sim
	case "rpc":
		rpc, err := chain.NewRPC(ctx, cfg.Chain.RPCURL, cfg.Chain.FactoryAddress, logger)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: rpc source: %w", err)
		}
		deps.Source = rpc
	default:
		cleanup()
		return nil, nil, fmt.Errorf("wire: unknown chain backend %q", cfg.Chain.Backend)
	}

	// Notifications.
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// Indexer.
	deps.Reconciler = indexer.NewReconciler(indexer.Deps{
		Source:      deps.Source,
		Markets:     deps.Markets,
		Trades:      deps.Trades,
		Positions:   deps.Positions,
		Prices:      deps.Prices,
		PriceCache:  deps.PriceCache,
		MarketCache: deps.MarketCache,
		Bus:         deps.SignalBus,
		Notifier:    deps.Notifier,
		Log:         logger,
	})
	deps.Poller = indexer.NewPoller(deps.Source, deps.Reconciler,
		cfg.Chain.ScanInterval.Duration, cfg.Chain.RefreshInterval.Duration, logger)

	// Object storage and the archiver.
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.Archiver = blob.NewArchiver(blob.Config{
			Interval:     cfg.Archive.Interval.Duration,
			ArchiveAfter: time.Duration(cfg.Archive.ArchiveAfterDays) * 24 * time.Hour,
			RetainBlobs:  time.Duration(cfg.Archive.RetainBlobDays) * 24 * time.Hour,
		}, deps.Trades, deps.Prices, deps.BlobWriter, logger)
	}

	// Application services.
	deps.Query = service.NewQueryService(deps.Markets, deps.Trades, deps.Positions, deps.Prices, deps.MarketCache, deps.PriceCache, logger)
	deps.Trade = service.NewTradeService(deps.Markets, deps.Reconciler, logger)
	var writer service.ChainWriter
	if deps.Sim != nil {
		writer = deps.Sim
	}
	deps.Admin = service.NewAdminService(writer, deps.Reconciler, logger)

	return deps, cleanup, nil
}
