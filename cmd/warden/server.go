package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/warden-mod/warden/chatmod/admin"
	"github.com/warden-mod/warden/chatmod/cachestore"
	"github.com/warden-mod/warden/chatmod/configstore"
	"github.com/warden-mod/warden/chatmod/detector"
	"github.com/warden-mod/warden/chatmod/engine"
	"github.com/warden-mod/warden/chatmod/gateway"
	"github.com/warden-mod/warden/chatmod/scorer"
	"github.com/warden-mod/warden/chatmod/setstore"
	"github.com/warden-mod/warden/chatmod/tracker"
)

type Server struct {
	streamHost string
	logger     *slog.Logger
	engine     *engine.Engine
	admin      *admin.Admin
	workers    int
	rdb        *redis.Client
	lastSeq    int64
}

type Config struct {
	GatewayStreamHost string
	GatewayHost       string
	GatewayAdminToken string
	GatewayRateLimit  int
	ScorerHost        string
	ScorerPassword    string
	RedisURL          string
	DatabaseURL       string
	MaxDBConnections  int
	SetsFileJSON      string
	DetectorTimeout   time.Duration
	Cooldown          time.Duration
	RaidWindow        time.Duration
	Workers           int
	Logger            *slog.Logger
}

func NewServer(config Config) (*Server, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	if !strings.HasPrefix(config.GatewayStreamHost, "ws") {
		return nil, fmt.Errorf("gateway stream host must include 'ws://' or 'wss://'")
	}

	sets := setstore.NewBuiltinSetStore()
	if config.SetsFileJSON != "" {
		if err := sets.LoadFromFileJSON(config.SetsFileJSON); err != nil {
			return nil, fmt.Errorf("initializing in-process setstore: %v", err)
		}
		logger.Info("loaded set config from JSON", "path", config.SetsFileJSON)
	}

	var store configstore.Store
	var cache cachestore.CacheStore
	var rdb *redis.Client
	if config.RedisURL != "" {
		opt, err := redis.ParseURL(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis URL: %v", err)
		}
		rdb = redis.NewClient(opt)
		_, err = rdb.Ping(context.TODO()).Result()
		if err != nil {
			return nil, fmt.Errorf("redis ping failed: %v", err)
		}

		rst, err := configstore.NewRedisStore(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("initializing redis configstore: %v", err)
		}
		store = rst

		csh, err := cachestore.NewRedisCacheStore(config.RedisURL, 30*time.Minute)
		if err != nil {
			return nil, fmt.Errorf("initializing redis cachestore: %v", err)
		}
		cache = csh
	} else if config.DatabaseURL != "" {
		db, err := configstore.OpenDatabase(config.DatabaseURL, config.MaxDBConnections)
		if err != nil {
			return nil, fmt.Errorf("opening database: %v", err)
		}
		gst, err := configstore.NewGormStore(db)
		if err != nil {
			return nil, fmt.Errorf("initializing gorm configstore: %v", err)
		}
		store = gst
		cache = cachestore.NewMemCacheStore(5_000, 30*time.Minute)
	} else {
		store = configstore.NewMemStore()
		cache = cachestore.NewMemCacheStore(5_000, 30*time.Minute)
	}

	trkCfg := tracker.DefaultConfig()
	if config.RaidWindow > 0 {
		trkCfg.RaidWindow = config.RaidWindow
	}
	trk := tracker.New(trkCfg)

	detectors := []detector.Detector{
		&detector.FloodDetector{Sets: sets},
		&detector.SecurityDetector{Sets: sets},
		&detector.CopyrightDetector{Sets: sets},
	}
	if config.ScorerHost != "" {
		logger.Info("configuring external content scorer", "host", config.ScorerHost)
		sc := scorer.NewClient(config.ScorerHost, config.ScorerPassword)
		detectors = append(detectors, &detector.ContentDetector{Scorer: sc})
	}
	pool := detector.NewPool(logger, config.DetectorTimeout, detectors...)

	gw := gateway.NewClient(config.GatewayHost, config.GatewayAdminToken, config.GatewayRateLimit)

	eng := engine.NewEngine(logger, pool, trk, store, cache, gw)
	if config.Cooldown > 0 {
		eng.Cooldown = config.Cooldown
	}

	workers := config.Workers
	if workers < 1 {
		workers = 50
	}

	s := &Server{
		streamHost: config.GatewayStreamHost,
		logger:     logger,
		engine:     eng,
		admin:      admin.NewAdmin(store, cache, logger),
		workers:    workers,
		rdb:        rdb,
	}

	return s, nil
}

func (s *Server) RunMetrics(listen string) error {
	http.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(listen, nil)
}

var cursorKey = "warden/seq"

func (s *Server) ReadLastCursor(ctx context.Context) (int64, error) {
	// if redis isn't configured, just skip
	if s.rdb == nil {
		s.logger.Info("redis not configured, skipping cursor read")
		return 0, nil
	}

	val, err := s.rdb.Get(ctx, cursorKey).Int64()
	if err == redis.Nil {
		s.logger.Info("no pre-existing cursor in redis")
		return 0, nil
	}
	s.logger.Info("found prior subscription cursor seq in redis", "seq", val)
	return val, err
}

func (s *Server) PersistCursor(ctx context.Context) error {
	// if redis isn't configured, just skip
	if s.rdb == nil {
		return nil
	}
	if s.lastSeq <= 0 {
		return nil
	}
	return s.rdb.Set(ctx, cursorKey, s.lastSeq, 14*24*time.Hour).Err()
}

// this method runs in a loop, persisting the current cursor state every 5 seconds
func (s *Server) RunPersistCursor(ctx context.Context) error {

	// if redis isn't configured, just skip
	if s.rdb == nil {
		return nil
	}
	ticker := time.NewTicker(5 * time.Second)
	for {
		select {
		case <-ctx.Done():
			if s.lastSeq >= 1 {
				s.logger.Info("persisting final cursor seq value", "seq", s.lastSeq)
				if err := s.PersistCursor(ctx); err != nil {
					s.logger.Error("failed to persist cursor", "err", err, "seq", s.lastSeq)
				}
			}
			return nil
		case <-ticker.C:
			if s.lastSeq >= 1 {
				if err := s.PersistCursor(ctx); err != nil {
					s.logger.Error("failed to persist cursor", "err", err, "seq", s.lastSeq)
				}
			}
		}
	}
}
