package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"loans/internal/amqp"
	"loans/internal/backend"
	"loans/internal/cache"
	"loans/internal/config"
	"loans/internal/core"
	apphttp "loans/internal/http"
	"loans/internal/log"
	"loans/internal/services"
)

const cacheCleanupInterval = time.Minute

// runtime holds the collaborators shared by serve and worker.
type runtime struct {
	cfg          *config.Config
	logger       *log.Logger
	backend      *backend.BackendResult
	loans        *services.LoanService
	cacheManager *cache.Manager
	amqp         *amqp.Client
	readiness    map[string]apphttp.ReadinessCheck
	closers      []func() error
}

type runtimeOptions struct {
	// publish enables the AMQP publisher when AMQP_URL is set
	publish bool
}

func newRuntime(ctx context.Context, cfg *config.Config, logger *log.Logger, opts runtimeOptions) (*runtime, error) {
	rt := &runtime{
		cfg:       cfg,
		logger:    logger,
		readiness: make(map[string]apphttp.ReadinessCheck),
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	result, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend).Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return nil, err
	}
	rt.backend = result
	rt.closers = append(rt.closers, result.Close)
	if result.Ping != nil {
		rt.readiness[backendCfg.Type.String()] = apphttp.ReadinessCheck(result.Ping)
	}

	serviceOpts := []services.Option{
		services.WithClassifier(core.NewClassifier(cfg.GraceDays, cfg.DefaultThresholdDays)),
		services.WithViewCache(rt.viewCache()),
	}

	if opts.publish && cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
		} else {
			logger.Info("Initialized AMQP client",
				"exchange", cfg.AMQPExchange,
				"queue", cfg.AMQPQueue)
			rt.amqp = client
			rt.closers = append(rt.closers, client.Close)
			serviceOpts = append(serviceOpts, services.WithPublisher(client))
		}
	}

	rt.loans = services.NewLoanService(result.Repository, serviceOpts...)
	return rt, nil
}

// viewCache picks Redis when configured, otherwise an in-process LRU swept by
// the cache manager.
func (rt *runtime) viewCache() cache.Cache[[]core.LoanView] {
	cacheLogger := rt.logger.WithComponent(log.ComponentCache)
	if rt.cfg.RedisAddr != "" {
		prefix := viewCachePrefix(rt.cfg, uuid.NewString())
		rc := cache.NewRedisCache[[]core.LoanView](rt.cfg.RedisAddr, prefix, rt.cfg.CacheTTL)
		rt.readiness["redis"] = rc.Ping
		rt.closers = append(rt.closers, rc.Close)
		cacheLogger.Info("Using Redis view cache", "addr", rt.cfg.RedisAddr, "prefix", prefix, "ttl", rt.cfg.CacheTTL)
		return rc
	}

	lru := cache.NewLRUCache[[]core.LoanView](rt.cfg.CacheSize, rt.cfg.CacheTTL)
	rt.cacheManager = cache.NewManager()
	rt.cacheManager.Register(lru)
	rt.cacheManager.StartCleanup(cacheCleanupInterval)
	rt.closers = append(rt.closers, func() error {
		rt.cacheManager.Stop()
		return nil
	})
	cacheLogger.Info("Using in-process view cache", "size", rt.cfg.CacheSize, "ttl", rt.cfg.CacheTTL)
	return lru
}

// viewCachePrefix namespaces Redis keys by the store the views are derived
// from. A memory store belongs to one process; a SQLite file is shared by the
// processes on a host that open the same path.
func viewCachePrefix(cfg *config.Config, instanceID string) string {
	if backend.BackendType(cfg.DataBackend) == backend.SQLiteBackend {
		path, err := filepath.Abs(cfg.SQLiteDBPath)
		if err != nil {
			path = cfg.SQLiteDBPath
		}
		host, _ := os.Hostname()
		return fmt.Sprintf("loans:sqlite:%s:%s:", host, path)
	}
	return fmt.Sprintf("loans:memory:%s:", instanceID)
}

// Close releases resources in reverse order of acquisition.
func (rt *runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close runtime: %w", err)
	}
	return nil
}
