package svc

import (
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx driver
	"github.com/zeromicro/go-zero/core/logx"
	gocache "github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/redis"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
	"github.com/zeromicro/go-zero/core/syncx"

	cachekeys "marketpipe/internal/cache"
	"marketpipe/internal/config"
	seriespersist "marketpipe/internal/persistence/series"
	"marketpipe/pkg/journal"
	marketpkg "marketpipe/pkg/market"
	_ "marketpipe/pkg/market/exchanges/binance"
	"marketpipe/pkg/pipeline"
)

type ServiceContext struct {
	Config *config.Config

	MarketConfig  *marketpkg.Config
	MarketSources map[string]marketpkg.Source
	DefaultMarket marketpkg.Source

	Sink    *pipeline.CSVSink
	Journal *journal.Writer

	// Optional mirrors, injected only when configured outside the test env.
	DBConn      sqlx.SqlConn
	Redis       *redis.Redis
	Cache       gocache.Cache
	Persistence pipeline.Persistence
}

func NewServiceContext(c *config.Config) (*ServiceContext, error) {
	if c == nil {
		return nil, fmt.Errorf("svc: nil config")
	}
	svc := &ServiceContext{
		Config: c,
		Sink:   pipeline.NewCSVSink(c.Ingest.OutputDir, c.Location(), c.Ingest.Precision),
	}

	marketCfg := c.MarketConfig()
	sources, err := marketCfg.BuildSources()
	if err != nil {
		return nil, fmt.Errorf("build market sources: %w", err)
	}
	svc.MarketConfig = marketCfg
	svc.MarketSources = sources
	if marketCfg.Default != "" {
		svc.DefaultMarket = sources[marketCfg.Default]
	}
	if svc.DefaultMarket == nil {
		return nil, fmt.Errorf("market config: no default source selected")
	}

	if c.Ingest.JournalDir != "" {
		svc.Journal = journal.NewWriter(c.Ingest.JournalDir)
	}

	if c.IsTestEnv() {
		return svc, nil
	}
	if c.PostgresEnabled() {
		svc.DBConn = sqlx.NewSqlConn("pgx", c.Postgres.DSN)
	}
	if c.RedisEnabled() {
		rds, err := redis.NewRedis(c.Redis)
		if err != nil {
			return nil, fmt.Errorf("connect redis %s: %w", c.Redis.Host, err)
		}
		svc.Redis = rds
		svc.Cache = gocache.NewNode(rds, syncx.NewSingleFlight(), gocache.NewStat("marketpipe"), sqlx.ErrNotFound)
	}
	svc.Persistence = seriespersist.NewService(seriespersist.Config{
		SQLConn:  svc.DBConn,
		Cache:    svc.Cache,
		TTL:      cachekeys.NewTTLSet(c.TTL),
		Provider: marketCfg.Default,
	})
	if svc.Persistence != nil {
		logx.Infof("svc: series mirror enabled postgres=%t redis=%t", svc.DBConn != nil, svc.Cache != nil)
	}
	return svc, nil
}

// Pipeline assembles an ingestion pipeline from the wired collaborators.
func (s *ServiceContext) Pipeline(opts ...pipeline.Option) *pipeline.Pipeline {
	base := make([]pipeline.Option, 0, len(opts)+2)
	if s.Persistence != nil {
		base = append(base, pipeline.WithPersistence(s.Persistence))
	}
	if s.Journal != nil {
		base = append(base, pipeline.WithJournal(s.Journal))
	}
	return pipeline.New(s.DefaultMarket, s.Sink, append(base, opts...)...)
}
