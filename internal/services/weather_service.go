package services

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"weather-tracker/internal/apperrors"
	"weather-tracker/internal/logger"
	"weather-tracker/internal/metrics"
	"weather-tracker/internal/models"
)

// WeatherFetcher retrieves the raw provider payload for a city.
type WeatherFetcher interface {
	Fetch(ctx context.Context, city string) (*models.RawWeatherResponse, error)
}

// WeatherService combines the provider call with extraction.
type WeatherService struct {
	fetcher WeatherFetcher
	logger  logger.Logger
	tracer  trace.Tracer
}

func NewWeatherService(fetcher WeatherFetcher, log logger.Logger) *WeatherService {
	return &WeatherService{
		fetcher: fetcher,
		logger:  log.With(map[string]interface{}{"component": "weather-service"}),
		tracer:  otel.GetTracerProvider().Tracer("weather-service"),
	}
}

// GetWeather returns the current description and temperature for city.
func (s *WeatherService) GetWeather(ctx context.Context, city string) (*models.WeatherResult, error) {
	ctx, span := s.tracer.Start(ctx, "get-weather")
	defer span.End()

	span.SetAttributes(attribute.String("city", city))

	if strings.TrimSpace(city) == "" {
		return nil, apperrors.NewBadRequestError("city must not be empty")
	}

	raw, err := s.fetcher.Fetch(ctx, city)
	if err != nil {
		s.recordFailure(span, city, err)
		return nil, err
	}

	result, err := Extract(raw, city)
	if err != nil {
		s.recordFailure(span, city, err)
		return nil, err
	}

	metrics.UpstreamRequestsTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
	span.SetAttributes(
		attribute.String("description", result.Description),
		attribute.Float64("temperature_c", result.Temperature),
	)
	s.logger.Debug("weather retrieved", map[string]interface{}{
		"city":        city,
		"description": result.Description,
		"temperature": result.Temperature,
	})
	return result, nil
}

func (s *WeatherService) recordFailure(span trace.Span, city string, err error) {
	appErr := apperrors.From(err)

	span.RecordError(err)
	span.SetStatus(codes.Error, appErr.Message)
	metrics.UpstreamRequestsTotal.WithLabelValues(outcome(appErr.Code)).Inc()

	s.logger.Warn("weather lookup failed", map[string]interface{}{
		"city":           city,
		"code":           string(appErr.Code),
		"details":        appErr.Details,
		"upstreamStatus": appErr.UpstreamStatus,
		"timeout":        appErr.Timeout,
	})
}

func outcome(code apperrors.ErrorCode) string {
	switch code {
	case apperrors.ErrCodeUpstreamUnavailable:
		return metrics.OutcomeUnavailable
	case apperrors.ErrCodeUpstreamError:
		return metrics.OutcomeError
	case apperrors.ErrCodeMalformedResponse:
		return metrics.OutcomeMalformed
	default:
		return metrics.OutcomeError
	}
}
