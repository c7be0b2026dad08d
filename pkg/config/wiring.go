package config

import (
	"fmt"

	"github.com/left-curve/dango-sdk-go/pkg/broadcaster"
	"github.com/left-curve/dango-sdk-go/pkg/persistence"
	badgerStore "github.com/left-curve/dango-sdk-go/pkg/persistence/badger"
	"github.com/left-curve/dango-sdk-go/pkg/persistence/memory"
	redisStore "github.com/left-curve/dango-sdk-go/pkg/persistence/redis"
	"github.com/left-curve/dango-sdk-go/pkg/pipeline"
	"github.com/left-curve/dango-sdk-go/pkg/signer"
	"github.com/left-curve/dango-sdk-go/pkg/transport"
	"github.com/left-curve/dango-sdk-go/pkg/transport/cometTransport"
	"github.com/left-curve/dango-sdk-go/pkg/transport/graphqlTransport"
	"go.uber.org/zap"
)

// NewTransport builds the transport selected by TransportKind.
func (c *SDKConfig) NewTransport(logger *zap.Logger) (transport.ITransport, error) {
	switch c.TransportKind {
	case transport.KindNode:
		cfg := &cometTransport.Config{
			URL:            c.RpcUrl,
			RequestTimeout: c.RequestTimeout,
			RateLimit:      c.RateLimit,
			Retry:          transport.DefaultRetryConfig,
		}
		if c.BatchMaxSize > 0 {
			cfg.Batch = &transport.BatchConfig{
				Window:  c.BatchWindow,
				MaxSize: c.BatchMaxSize,
			}
		}
		t, err := cometTransport.NewCometTransport(cfg, logger)
		if err != nil {
			return nil, err
		}
		return t, nil
	case transport.KindIndexer:
		t, err := graphqlTransport.NewGraphqlTransport(&graphqlTransport.Config{
			URL:            c.IndexerUrl,
			RequestTimeout: c.RequestTimeout,
			RateLimit:      c.RateLimit,
			Retry:          transport.DefaultRetryConfig,
		}, logger)
		if err != nil {
			return nil, err
		}
		return t, nil
	default:
		return nil, fmt.Errorf("unsupported transport: %s", c.TransportKind)
	}
}

// NewPipeline wires a pipeline and broadcaster over t.
func (c *SDKConfig) NewPipeline(t transport.ITransport, s signer.ISigner, logger *zap.Logger) (*pipeline.Pipeline, error) {
	b, err := broadcaster.NewBroadcaster(t, c.BroadcasterConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create broadcaster: %w", err)
	}
	return pipeline.NewPipeline(t, s, b, c.PipelineConfig(), logger)
}

// NewSessionStore opens the configured session store.
func (c *SDKConfig) NewSessionStore(logger *zap.Logger) (persistence.ISessionStore, error) {
	switch c.Persistence.Type {
	case PersistenceTypeMemory, "":
		return memory.NewMemorySessionStore(), nil
	case PersistenceTypeBadger:
		store, err := badgerStore.NewBadgerSessionStore(c.Persistence.DataPath, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	case PersistenceTypeRedis:
		store, err := redisStore.NewRedisSessionStore(c.Persistence.Redis, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported persistence type: %s", c.Persistence.Type)
	}
}
