package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jkmerchant/spot/internal/api"
	"github.com/jkmerchant/spot/internal/auth"
	"github.com/jkmerchant/spot/internal/catalog"
	"github.com/jkmerchant/spot/internal/site"
	"github.com/jkmerchant/spot/internal/skycache"
	"github.com/jkmerchant/spot/internal/stream"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	addr := os.Getenv("SPOT_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	authCfg, err := loadAuthConfig(logger)
	if err != nil {
		logger.Error("invalid auth configuration", "error", err)
		os.Exit(1)
	}

	registry, err := loadRegistry(logger)
	if err != nil {
		logger.Error("loading site registry", "error", err)
		os.Exit(1)
	}

	siteName := os.Getenv("SPOT_SITE")
	if siteName == "" {
		siteName = "maunakea"
	}
	st := registry.Get(siteName)
	if st == nil {
		logger.Error("unknown site", "site", siteName, "known", registry.Names())
		os.Exit(1)
	}

	store := catalog.NewStore()
	if err := loadCatalog(store, logger); err != nil {
		logger.Error("loading catalog", "error", err)
		os.Exit(1)
	}

	refraction := true
	if v := os.Getenv("SPOT_REFRACTION"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid SPOT_REFRACTION value, defaulting to true", "value", v)
		} else {
			refraction = b
		}
	}

	cacheCfg := loadCacheConfig(logger)
	gen := skycache.NewGenerator(st, store, refraction, logger)
	skyCache := skycache.New(cacheCfg, gen, store, logger)

	streamCfg := loadStreamConfig(logger)
	streamHandler := stream.NewHandler(skyCache, store, streamCfg, logger)

	srv := api.NewServer(addr, api.Deps{
		Registry: registry,
		Store:    store,
		Cache:    skyCache,
		Stream:   streamHandler,
	}, logger, authCfg)

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start sky cache background worker.
	go skyCache.Start(ctx)

	go func() {
		logger.Info("starting server",
			"addr", addr,
			"site", st.Name,
			"sites", registry.Len(),
			"auth_enabled", authCfg.Enabled,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func loadAuthConfig(logger *slog.Logger) (auth.Config, error) {
	cfg := auth.Config{}

	enabledStr := os.Getenv("SPOT_AUTH_ENABLED")
	if enabledStr != "" {
		enabled, err := strconv.ParseBool(enabledStr)
		if err != nil {
			return cfg, errors.New("SPOT_AUTH_ENABLED must be a boolean value (true/false/1/0)")
		}
		cfg.Enabled = enabled
	}

	if cfg.Enabled {
		cfg.Token = os.Getenv("SPOT_AUTH_TOKEN")
		if cfg.Token == "" {
			return cfg, errors.New("SPOT_AUTH_TOKEN is required when auth is enabled")
		}
		logger.Info("auth enabled")
	}

	return cfg, nil
}

// loadRegistry reads SPOT_SITES_FILE, falling back to the builtin
// registry when unset.
func loadRegistry(logger *slog.Logger) (*site.Registry, error) {
	path := os.Getenv("SPOT_SITES_FILE")
	if path == "" {
		logger.Info("no SPOT_SITES_FILE, using builtin site registry")
		return site.Builtin(), nil
	}
	r, err := site.LoadYAMLFile(path)
	if err != nil {
		return nil, err
	}
	logger.Info("loaded site registry", "path", path, "sites", r.Len())
	return r, nil
}

// loadCatalog reads SPOT_CATALOG_FILE (CSV sidereal targets) and
// SPOT_TLE_FILE (satellite elements) into the store. The server starts
// with an empty catalog when neither is set; visibility requests can
// still carry inline targets.
func loadCatalog(store *catalog.Store, logger *slog.Logger) error {
	var targets []catalog.Target
	var source string

	if path := os.Getenv("SPOT_CATALOG_FILE"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		ts, err := catalog.ParseCSV(f, logger)
		f.Close()
		if err != nil {
			return err
		}
		targets = append(targets, ts...)
		source = path
		logger.Info("loaded sidereal targets", "path", path, "count", len(ts))
	}

	if path := os.Getenv("SPOT_TLE_FILE"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		ts, err := catalog.ParseTLE(f, logger)
		f.Close()
		if err != nil {
			return err
		}
		targets = append(targets, ts...)
		if source != "" {
			source += "+"
		}
		source += path
		logger.Info("loaded satellite targets", "path", path, "count", len(ts))
	}

	if source == "" {
		source = "empty"
		logger.Warn("no catalog files configured, starting with empty catalog")
	}

	store.Set(&catalog.Catalog{
		Source:   source,
		LoadedAt: time.Now().UTC(),
		Targets:  targets,
	})
	return nil
}

func loadCacheConfig(logger *slog.Logger) skycache.Config {
	cfg := skycache.Config{
		Step:        10 * time.Second,
		Horizon:     600 * time.Second,
		GracePeriod: 30 * time.Second,
		Buffer:      60 * time.Second,
	}

	if v := os.Getenv("SPOT_CACHE_STEP"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid SPOT_CACHE_STEP value, using default", "value", v, "default", 10)
		} else {
			cfg.Step = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("SPOT_CACHE_HORIZON"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid SPOT_CACHE_HORIZON value, using default", "value", v, "default", 600)
		} else {
			cfg.Horizon = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("SPOT_CACHE_GRACE_PERIOD"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid SPOT_CACHE_GRACE_PERIOD value, using default", "value", v, "default", 30)
		} else {
			cfg.GracePeriod = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("SPOT_CACHE_BUFFER"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid SPOT_CACHE_BUFFER value, using default", "value", v, "default", 60)
		} else {
			cfg.Buffer = time.Duration(n) * time.Second
		}
	}

	logger.Info("sky cache config",
		"step_seconds", cfg.Step.Seconds(),
		"horizon_seconds", cfg.Horizon.Seconds(),
		"grace_period_seconds", cfg.GracePeriod.Seconds(),
		"buffer_seconds", cfg.Buffer.Seconds(),
	)

	return cfg
}

func loadStreamConfig(logger *slog.Logger) stream.Config {
	cfg := stream.Config{
		MaxConcurrentPerIP: 10,
		KeepaliveInterval:  30 * time.Second,
	}

	if v := os.Getenv("SPOT_STREAM_MAX_CONCURRENT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid SPOT_STREAM_MAX_CONCURRENT value, using default", "value", v, "default", 10)
		} else {
			cfg.MaxConcurrentPerIP = n
		}
	}

	if v := os.Getenv("SPOT_STREAM_KEEPALIVE_INTERVAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid SPOT_STREAM_KEEPALIVE_INTERVAL value, using default", "value", v, "default", 30)
		} else {
			cfg.KeepaliveInterval = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("SPOT_STREAM_TRUST_PROXY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid SPOT_STREAM_TRUST_PROXY value, defaulting to false", "value", v)
		} else {
			cfg.TrustProxy = b
		}
	}

	logger.Info("stream config",
		"max_concurrent_per_ip", cfg.MaxConcurrentPerIP,
		"keepalive_interval_seconds", cfg.KeepaliveInterval.Seconds(),
		"trust_proxy", cfg.TrustProxy,
	)

	return cfg
}
