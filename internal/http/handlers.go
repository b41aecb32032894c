package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/wxtrends/trend-service/internal/cache"
	"github.com/wxtrends/trend-service/internal/client"
	"github.com/wxtrends/trend-service/internal/gateway"
	"github.com/wxtrends/trend-service/internal/geoip"
	"github.com/wxtrends/trend-service/internal/lifecycle"
	"github.com/wxtrends/trend-service/internal/models"
	"github.com/wxtrends/trend-service/internal/observability"
	"github.com/wxtrends/trend-service/internal/params"
	"github.com/wxtrends/trend-service/internal/traffic"
	"github.com/wxtrends/trend-service/internal/trend"
)

// TrendsService computes a trend report for a coordinate. Implemented by
// trend.Engine; an interface so handler tests can substitute fakes.
type TrendsService interface {
	Compute(ctx context.Context, loc models.Coordinates, days int, units string) (*models.TrendReport, error)
}

// AlertsSource lists active alerts covering a point.
type AlertsSource interface {
	Active(ctx context.Context, loc models.Coordinates) ([]models.Alert, error)
}

// LocationsSource searches geocoding results for a free-text query.
type LocationsSource interface {
	Search(ctx context.Context, q string) ([]models.Location, error)
}

// ConditionsSource fetches current conditions for a coordinate.
type ConditionsSource interface {
	Conditions(ctx context.Context, loc models.Coordinates, units string) (json.RawMessage, error)
}

// HealthConfig holds lifecycle thresholds and credential presence for the
// health handler.
type HealthConfig struct {
	OverloadWindow   time.Duration
	RateLimitRPS     int
	RateLimitBurst   int // 0 when rate limiter disabled
	DegradedWindow   time.Duration
	DegradedErrorPct int
	HasArchiveToken  bool
	HasConditionsKey bool
	// CachePing, when set, is called to check cache reachability. Used when backend is memcached.
	CachePing func() error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	trends       TrendsService
	forecast     gateway.ForecastSource
	alerts       AlertsSource
	locations    LocationsSource
	conditions   ConditionsSource
	locator      geoip.Locator
	cache        cache.Cache
	cacheTTL     time.Duration
	healthConfig *HealthConfig
	logger       *zap.Logger
	rateLimiter  *rate.Limiter

	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler.
func NewHandler(
	trends TrendsService,
	forecast gateway.ForecastSource,
	alerts AlertsSource,
	locations LocationsSource,
	conditions ConditionsSource,
	locator geoip.Locator,
	responseCache cache.Cache,
	cacheTTL time.Duration,
	healthConfig *HealthConfig,
	logger *zap.Logger,
	rateLimiter *rate.Limiter,
) *Handler {
	return &Handler{
		trends:       trends,
		forecast:     forecast,
		alerts:       alerts,
		locations:    locations,
		conditions:   conditions,
		locator:      locator,
		cache:        responseCache,
		cacheTTL:     cacheTTL,
		healthConfig: healthConfig,
		logger:       logger,
		rateLimiter:  rateLimiter,
	}
}

// GetTrends handles GET /trends.
func (h *Handler) GetTrends(w http.ResponseWriter, r *http.Request) {
	q, err := params.Parse(r.URL.Query())
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_PARAMETER", err.Error())
		return
	}

	report, err := h.trends.Compute(r.Context(), q.Coordinates(), q.Days, q.Units)
	if err != nil {
		traffic.RecordError()
		writeDomainError(w, r, err)
		return
	}
	traffic.RecordSuccess()
	writeJSON(w, http.StatusOK, report)
}

// GetDailyForecast handles GET /forecast/daily. Returns the provider forecast
// bucketized per day, without trend projection.
func (h *Handler) GetDailyForecast(w http.ResponseWriter, r *http.Request) {
	q, err := params.Parse(r.URL.Query())
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_PARAMETER", err.Error())
		return
	}

	days, err := h.forecast.DailyForecast(r.Context(), q.Coordinates(), q.Days, q.Units)
	if err != nil {
		traffic.RecordError()
		writeDomainError(w, r, err)
		return
	}
	traffic.RecordSuccess()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"location": q.Coordinates(),
		"units":    q.Units,
		"days":     q.Days,
		"daily":    days,
	})
}

// GetWeather handles GET /weather. When lat/lon are absent the caller's
// coordinates are resolved through the geoip locator before falling back to
// a 400.
func (h *Handler) GetWeather(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	units := values.Get("units")
	if units == "" {
		units = params.DefaultUnits
	}
	if units != "metric" && units != "imperial" {
		writeError(w, r, http.StatusBadRequest, "INVALID_PARAMETER", "units must be metric or imperial")
		return
	}

	var loc models.Coordinates
	if values.Get("lat") == "" && values.Get("lon") == "" {
		if h.locator == nil {
			writeError(w, r, http.StatusBadRequest, "INVALID_PARAMETER", "lat and lon are required")
			return
		}
		resolved, err := h.locator.Locate(r.Context())
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "INVALID_PARAMETER", "lat and lon are required and could not be inferred")
			return
		}
		loc = resolved
	} else {
		parsed, err := params.ParseCoordinates(values)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "INVALID_PARAMETER", err.Error())
			return
		}
		loc = parsed
	}

	key := cacheKey("weather", loc, units)
	if body, ok := h.cachedResponse(r.Context(), key); ok {
		writeRawJSON(w, http.StatusOK, body)
		return
	}

	raw, err := h.conditions.Conditions(r.Context(), loc, units)
	if err != nil {
		traffic.RecordError()
		writeDomainError(w, r, err)
		return
	}
	traffic.RecordSuccess()
	h.storeResponse(r.Context(), key, raw)
	writeRawJSON(w, http.StatusOK, raw)
}

// GetLocations handles GET /locations.
func (h *Handler) GetLocations(w http.ResponseWriter, r *http.Request) {
	q := gateway.NormalizeQuery(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, r, http.StatusBadRequest, "INVALID_PARAMETER", "q is required")
		return
	}

	key := "locations:" + strings.ToLower(q)
	if body, ok := h.cachedResponse(r.Context(), key); ok {
		writeRawJSON(w, http.StatusOK, body)
		return
	}

	results, err := h.locations.Search(r.Context(), q)
	if err != nil {
		traffic.RecordError()
		writeDomainError(w, r, err)
		return
	}
	traffic.RecordSuccess()

	payload, err := json.Marshal(map[string]interface{}{"query": q, "results": results})
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "INTERNAL", "encoding failure")
		return
	}
	h.storeResponse(r.Context(), key, payload)
	writeRawJSON(w, http.StatusOK, payload)
}

// GetAlerts handles GET /alerts.
func (h *Handler) GetAlerts(w http.ResponseWriter, r *http.Request) {
	loc, err := params.ParseCoordinates(r.URL.Query())
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_PARAMETER", err.Error())
		return
	}

	alerts, err := h.alerts.Active(r.Context(), loc)
	if err != nil {
		traffic.RecordError()
		writeDomainError(w, r, err)
		return
	}
	traffic.RecordSuccess()
	if alerts == nil {
		alerts = []models.Alert{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":  len(alerts),
		"alerts": alerts,
	})
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := make(map[string]string)
	if h.healthConfig != nil {
		checks["archiveCredential"] = credentialCheck(h.healthConfig.HasArchiveToken)
		checks["conditionsCredential"] = credentialCheck(h.healthConfig.HasConditionsKey)
		if h.healthConfig.CachePing != nil {
			if h.healthConfig.CachePing() == nil {
				checks["cache"] = "healthy"
			} else {
				checks["cache"] = "unhealthy"
			}
		}
	}
	resp := map[string]interface{}{
		"status":    result.status,
		"service":   "trend-service",
		"version":   "dev",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(result.statusCode)
	_ = json.NewEncoder(w).Encode(resp)
}

// computeHealthStatus evaluates health conditions in priority order:
// shutting-down > overloaded > degraded > healthy. Missing credentials are
// reported in checks but do not flip the status; the affected endpoints fail
// per-request instead.
func (h *Handler) computeHealthStatus() healthResult {
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if h.healthConfig == nil {
		return healthResult{"healthy", http.StatusOK, ""}
	}
	if h.healthConfig.RateLimitRPS > 0 && h.healthConfig.OverloadWindow > 0 {
		threshold := float64(h.healthConfig.RateLimitRPS) * h.healthConfig.OverloadWindow.Seconds() / 2
		if float64(traffic.DenialCount(h.healthConfig.OverloadWindow)) > threshold {
			return healthResult{"overloaded", http.StatusServiceUnavailable, "denial_threshold"}
		}
	}
	if h.healthConfig.DegradedWindow > 0 && h.healthConfig.DegradedErrorPct > 0 {
		errCount, total := traffic.ErrorRate(h.healthConfig.DegradedWindow)
		if total > 0 {
			pct := float64(errCount) * 100 / float64(total)
			if pct >= float64(h.healthConfig.DegradedErrorPct) {
				return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}
			}
		}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

func credentialCheck(present bool) string {
	if present {
		return "configured"
	}
	return "missing"
}

// cachedResponse returns a cached response body for key. Cache failures are
// treated as misses.
func (h *Handler) cachedResponse(ctx context.Context, key string) ([]byte, bool) {
	if h.cache == nil {
		return nil, false
	}
	body, ok, err := h.cache.Get(ctx, key)
	if err != nil || !ok {
		return nil, false
	}
	observability.CacheHitsTotal.WithLabelValues("response").Inc()
	return body, true
}

func (h *Handler) storeResponse(ctx context.Context, key string, body []byte) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Set(ctx, key, body, h.cacheTTL); err != nil {
		if h.logger != nil {
			h.logger.Debug("cache store failed", zap.String("key", key), zap.Error(err))
		}
	}
}

func cacheKey(prefix string, loc models.Coordinates, units string) string {
	payload, _ := json.Marshal(loc)
	return prefix + ":" + string(payload) + ":" + units
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeRawJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// writeError writes an error response in the standard error format with code,
// message, and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	corrID := ""
	if v := r.Context().Value("correlation_id"); v != nil {
		corrID = v.(string)
	}
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"code":      code,
			"message":   message,
			"requestId": corrID,
		},
	})
}

// writeDomainError maps domain and upstream failures onto HTTP statuses:
// missing credential 401, insufficient history 422, upstream timeout 504,
// transport failure 502, and upstream non-2xx statuses forwarded as-is with
// a truncated body detail.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	logger := requestLogger(r)

	switch {
	case errors.Is(err, gateway.ErrMissingCredential):
		writeError(w, r, http.StatusUnauthorized, "MISSING_CREDENTIAL", "upstream credential not configured")
	case errors.Is(err, trend.ErrInsufficientHistory):
		writeError(w, r, http.StatusUnprocessableEntity, "INSUFFICIENT_HISTORY", err.Error())
	default:
		ue, ok := client.AsUpstreamError(err)
		if !ok {
			writeError(w, r, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE", "unable to fetch weather data")
			break
		}
		switch ue.Kind {
		case client.KindTimeout:
			writeError(w, r, http.StatusGatewayTimeout, "UPSTREAM_TIMEOUT", "upstream request timed out")
		case client.KindTransport:
			writeError(w, r, http.StatusBadGateway, "UPSTREAM_UNREACHABLE", "unable to reach upstream provider")
		default:
			writeUpstreamStatusError(w, r, ue)
		}
	}

	if logger != nil {
		logger.Debug("request failed",
			zap.String("category", string(client.CategorizeError(err))),
			zap.Error(err))
	}
}

// writeUpstreamStatusError forwards an upstream non-2xx status, carrying the
// upstream status and truncated body alongside the standard error fields.
func writeUpstreamStatusError(w http.ResponseWriter, r *http.Request, ue *client.UpstreamError) {
	corrID := ""
	if v := r.Context().Value("correlation_id"); v != nil {
		corrID = v.(string)
	}
	writeJSON(w, ue.Status, map[string]interface{}{
		"error": map[string]interface{}{
			"code":      "UPSTREAM_STATUS",
			"message":   "upstream provider returned an error",
			"requestId": corrID,
			"status":    ue.Status,
			"detail":    ue.Body,
		},
	})
}

func requestLogger(r *http.Request) *zap.Logger {
	if logger, ok := r.Context().Value("logger").(*zap.Logger); ok {
		return logger
	}
	return nil
}
