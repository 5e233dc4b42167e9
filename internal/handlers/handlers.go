package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"weather-tracker/internal/apperrors"
	"weather-tracker/internal/logger"
	"weather-tracker/internal/metrics"
	"weather-tracker/internal/models"
)

// WeatherProvider answers weather lookups for a city.
type WeatherProvider interface {
	GetWeather(ctx context.Context, city string) (*models.WeatherResult, error)
}

type Handler struct {
	weather WeatherProvider
	logger  logger.Logger
	tracer  trace.Tracer
}

func NewHandler(weather WeatherProvider, log logger.Logger) *Handler {
	return &Handler{
		weather: weather,
		logger:  log.With(map[string]interface{}{"component": "http"}),
		tracer:  otel.GetTracerProvider().Tracer("weather-handlers"),
	}
}

// NewRouter wires the API routes, health check and metrics endpoint.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(h.recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "route not found", Code: "NOT_FOUND"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusMethodNotAllowed, models.ErrorResponse{Error: "method not allowed", Code: "METHOD_NOT_ALLOWED"})
	})

	r.Get("/health", HandleHealthCheck)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/api/weather", h.HandleWeatherRequest)

	return r
}

// HandleHealthCheck reports that the process is serving.
func HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// HandleWeatherRequest serves GET /api/weather?city=<value>.
func (h *Handler) HandleWeatherRequest(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := h.tracer.Start(ctx, "handle-weather-request")
	defer span.End()

	// Blank values are rejected; anything else is forwarded and echoed as sent.
	city := r.URL.Query().Get("city")
	span.SetAttributes(attribute.String("city", city))

	if strings.TrimSpace(city) == "" {
		h.respondError(w, r, apperrors.NewBadRequestError("city query parameter is required"))
		return
	}

	result, err := h.weather.GetWeather(ctx, city)
	if err != nil {
		span.RecordError(err)
		h.respondError(w, r, err)
		return
	}

	metrics.HTTPRequestsTotal.WithLabelValues(strconv.Itoa(http.StatusOK)).Inc()
	respondJSON(w, http.StatusOK, result)
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperrors.From(err)
	status := apperrors.HTTPStatus(appErr)
	metrics.HTTPRequestsTotal.WithLabelValues(strconv.Itoa(status)).Inc()

	fields := map[string]interface{}{
		"requestId": middleware.GetReqID(r.Context()),
		"status":    status,
		"code":      string(appErr.Code),
		"details":   appErr.Details,
	}
	if status >= http.StatusInternalServerError {
		h.logger.WithError(err).Error("request failed", fields)
	} else {
		h.logger.Info("request rejected", fields)
	}

	body := models.ErrorResponse{
		Error:   appErr.Message,
		Code:    string(appErr.Code),
		Details: appErr.Details,
	}
	// Unclassified errors are logged above but not echoed to the caller.
	if appErr.Code == apperrors.ErrCodeInternal {
		body.Details = ""
	}
	respondJSON(w, status, body)
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			h.logger.Info("request served", map[string]interface{}{
				"requestId": middleware.GetReqID(r.Context()),
				"method":    r.Method,
				"path":      r.URL.Path,
				"status":    ww.Status(),
				"bytes":     ww.BytesWritten(),
				"duration":  time.Since(start).String(),
			})
		}()
		next.ServeHTTP(ww, r)
	})
}

// recoverer turns a panic in a handler into a JSON 500 response.
func (h *Handler) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rvr := recover()
			if rvr == nil {
				return
			}
			if rvr == http.ErrAbortHandler {
				panic(rvr)
			}
			h.logger.Error("handler panicked", map[string]interface{}{
				"requestId": middleware.GetReqID(r.Context()),
				"panic":     fmt.Sprint(rvr),
				"stack":     string(debug.Stack()),
			})
			h.respondError(w, r, fmt.Errorf("panic: %v", rvr))
		}()
		next.ServeHTTP(w, r)
	})
}

func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
