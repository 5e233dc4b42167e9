package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"weather-tracker/internal/apperrors"
	"weather-tracker/internal/config"
	"weather-tracker/internal/metrics"
	"weather-tracker/internal/models"
)

// UnitsMetric asks the provider for Celsius temperatures. It is fixed for the
// lifetime of the service.
const UnitsMetric = "metric"

const (
	weatherPath = "/data/2.5/weather"

	maxBodyBytes      = 1 << 20
	maxErrorBodyBytes = 4 << 10
)

// WeatherClient calls the OpenWeatherMap current weather endpoint.
type WeatherClient struct {
	baseURL string
	apiKey  string
	units   string
	client  *http.Client
	tracer  trace.Tracer
}

// NewWeatherClient binds the API key and base URL from cfg. Calls are bounded
// by cfg.Timeout and by the caller's context.
func NewWeatherClient(cfg config.WeatherConfig) *WeatherClient {
	return &WeatherClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		units:   UnitsMetric,
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		tracer: otel.GetTracerProvider().Tracer("weather-client"),
	}
}

// Fetch requests the current weather for city and returns the undecoded
// payload sections.
func (c *WeatherClient) Fetch(ctx context.Context, city string) (*models.RawWeatherResponse, error) {
	ctx, span := c.tracer.Start(ctx, "fetch-weather")
	defer span.End()

	span.SetAttributes(
		attribute.String("city", city),
		attribute.String("units", c.units),
	)

	if city == "" {
		err := apperrors.NewBadRequestError("city must not be empty")
		span.RecordError(err)
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.requestURL(city), nil)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	metrics.UpstreamRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		appErr := apperrors.NewUpstreamUnavailableError(stripURL(err), isTimeout(err))
		span.RecordError(appErr)
		span.SetStatus(codes.Error, appErr.Message)
		return nil, appErr
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		appErr := apperrors.NewUpstreamError(resp.StatusCode, strings.TrimSpace(string(body)))
		span.RecordError(appErr)
		span.SetStatus(codes.Error, appErr.Message)
		return nil, appErr
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		appErr := apperrors.NewUpstreamUnavailableError(err, isTimeout(err))
		span.RecordError(appErr)
		return nil, appErr
	}

	var raw models.RawWeatherResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		appErr := apperrors.NewMalformedResponseError("response body is not a JSON object", err)
		span.RecordError(appErr)
		span.SetStatus(codes.Error, appErr.Message)
		return nil, appErr
	}

	return &raw, nil
}

func (c *WeatherClient) requestURL(city string) string {
	params := url.Values{}
	params.Set("q", city)
	params.Set("appid", c.apiKey)
	params.Set("units", c.units)
	return c.baseURL + weatherPath + "?" + params.Encode()
}

// stripURL drops the request URL from transport errors, since it carries the
// API key in its query string.
func stripURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
