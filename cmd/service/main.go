package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/wxtrends/trend-service/internal/cache"
	"github.com/wxtrends/trend-service/internal/client"
	"github.com/wxtrends/trend-service/internal/config"
	"github.com/wxtrends/trend-service/internal/gateway"
	"github.com/wxtrends/trend-service/internal/geoip"
	httphandler "github.com/wxtrends/trend-service/internal/http"
	"github.com/wxtrends/trend-service/internal/lifecycle"
	"github.com/wxtrends/trend-service/internal/observability"
	"github.com/wxtrends/trend-service/internal/trend"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	sharedHTTP := &http.Client{}

	breaker := func(name string) *gobreaker.CircuitBreaker {
		return gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    name,
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("circuit breaker state change",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		})
	}

	archiveClient := client.New(sharedHTTP, client.Options{
		Provider:       "archive",
		Timeout:        cfg.ArchiveTimeout,
		RetryAttempts:  cfg.RetryAttempts,
		RetryBaseDelay: cfg.RetryBaseDelay,
		RetryMaxDelay:  cfg.RetryMaxDelay,
		Headers:        map[string]string{"token": cfg.ArchiveToken},
	})
	conditionsClient := client.New(sharedHTTP, client.Options{
		Provider:       "conditions",
		Timeout:        cfg.ConditionsTimeout,
		RetryAttempts:  cfg.RetryAttempts,
		RetryBaseDelay: cfg.RetryBaseDelay,
		RetryMaxDelay:  cfg.RetryMaxDelay,
		Breaker:        breaker("conditions"),
	})
	gridClient := client.New(sharedHTTP, client.Options{
		Provider: "grid",
		Timeout:  cfg.GridTimeout,
		Headers:  map[string]string{"User-Agent": cfg.GridUserAgent},
	})
	geoipClient := client.New(sharedHTTP, client.Options{
		Provider: "geoip",
		Timeout:  cfg.GeoIPTimeout,
	})

	historical := gateway.NewHistoricalGateway(archiveClient, cfg.ArchiveBaseURL, cfg.ArchiveToken)

	var forecastSource gateway.ForecastSource
	switch cfg.ProviderMode {
	case config.ModeConditions:
		forecastSource = gateway.NewForecastGateway(conditionsClient, cfg.ConditionsBaseURL, cfg.ConditionsAPIKey)
		logger.Info("forecast source: conditions provider")
	default:
		forecastSource = gateway.NewOfficialGateway(gridClient, cfg.GridBaseURL)
		logger.Info("forecast source: grid provider")
	}

	alerts := gateway.NewAlertsGateway(gridClient, cfg.GridBaseURL)
	locations := gateway.NewLocationsGateway(conditionsClient, cfg.ConditionsBaseURL, cfg.ConditionsAPIKey)
	current := gateway.NewCurrentGateway(conditionsClient, cfg.ConditionsBaseURL, cfg.ConditionsAPIKey)
	locator := geoip.NewHTTPLocator(geoipClient, cfg.GeoIPBaseURL)

	var responseCache cache.Cache
	var memcacheCloser *cache.MemcachedCache
	switch cfg.CacheBackend {
	case "memcached":
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			logger.Fatal("memcached cache", zap.Error(err))
		}
		memcacheCloser = mc
		responseCache = mc
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	default:
		responseCache = cache.NewInMemoryCache(clockwork.NewRealClock())
		logger.Info("cache backend: in_memory")
	}

	engine := trend.New(historical, forecastSource, clockwork.NewRealClock(), logger)

	healthConfig := &httphandler.HealthConfig{
		OverloadWindow:   cfg.OverloadWindow,
		RateLimitRPS:     cfg.RateLimitRPS,
		RateLimitBurst:   cfg.RateLimitBurst,
		DegradedWindow:   cfg.DegradedWindow,
		DegradedErrorPct: cfg.DegradedErrorPct,
		HasArchiveToken:  cfg.ArchiveToken != "",
		HasConditionsKey: cfg.ConditionsAPIKey != "",
	}
	if memcacheCloser != nil {
		healthConfig.CachePing = memcacheCloser.Ping
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	handler := httphandler.NewHandler(
		engine, forecastSource, alerts, locations, current, locator,
		responseCache, cfg.CacheTTL,
		healthConfig, logger, limiter,
	)

	observability.RegisterRateLimitGauges(cfg.OverloadWindow)

	router := mux.NewRouter()
	router.Use(httphandler.CorrelationIDMiddleware(logger))
	router.Use(httphandler.MetricsMiddleware)
	router.HandleFunc("/health", handler.GetHealth).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler())

	api := router.PathPrefix("/").Subrouter()
	api.Use(httphandler.RateLimitMiddleware(limiter))
	api.Use(httphandler.TimeoutMiddleware(cfg.RequestTimeout))
	api.HandleFunc("/trends", handler.GetTrends).Methods("GET")
	api.HandleFunc("/forecast/daily", handler.GetDailyForecast).Methods("GET")
	api.HandleFunc("/weather", handler.GetWeather).Methods("GET")
	api.HandleFunc("/locations", handler.GetLocations).Methods("GET")
	api.HandleFunc("/alerts", handler.GetAlerts).Methods("GET")

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	logger.Info("waiting for in-flight requests", zap.Int64("count", httphandler.InFlightCount()))
	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	if err := httphandler.WaitForInFlight(waitCtx, 100*time.Millisecond); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}

	if memcacheCloser != nil {
		if err := memcacheCloser.Close(); err != nil {
			logger.Error("memcached close", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
}
