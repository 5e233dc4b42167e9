package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weather-tracker/internal/apperrors"
	"weather-tracker/internal/client"
	"weather-tracker/internal/config"
	"weather-tracker/internal/logger"
	"weather-tracker/internal/models"
	"weather-tracker/internal/services"
)

type fakeProvider struct {
	result *models.WeatherResult
	err    error
	panics bool
	cities []string
}

func (f *fakeProvider) GetWeather(_ context.Context, city string) (*models.WeatherResult, error) {
	f.cities = append(f.cities, city)
	if f.panics {
		panic("unexpected payload shape")
	}
	return f.result, f.err
}

func serve(t *testing.T, provider WeatherProvider, target string) *httptest.ResponseRecorder {
	t.Helper()
	router := NewRouter(NewHandler(provider, logger.NewTestLogger(t)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var body models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHandleWeatherRequest_Success(t *testing.T) {
	provider := &fakeProvider{result: &models.WeatherResult{City: "London", Description: "clear sky", Temperature: 15.5}}

	rec := serve(t, provider, "/api/weather?city=London")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"city":"London","description":"clear sky","temperature":15.5}`, rec.Body.String())
	assert.Equal(t, []string{"London"}, provider.cities)
}

func TestHandleWeatherRequest_MissingCity(t *testing.T) {
	for _, target := range []string{"/api/weather", "/api/weather?city=", "/api/weather?city=%20%20"} {
		t.Run(target, func(t *testing.T) {
			provider := &fakeProvider{}
			rec := serve(t, provider, target)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, "BAD_REQUEST", body.Code)
			assert.Contains(t, body.Error, "city")
			assert.Empty(t, provider.cities)
		})
	}
}

func TestHandleWeatherRequest_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"unavailable", apperrors.NewUpstreamUnavailableError(errors.New("connection refused"), false), http.StatusBadGateway, "UPSTREAM_UNAVAILABLE"},
		{"timeout", apperrors.NewUpstreamUnavailableError(context.DeadlineExceeded, true), http.StatusGatewayTimeout, "UPSTREAM_UNAVAILABLE"},
		{"unknown city", apperrors.NewUpstreamError(http.StatusNotFound, `{"cod":"404","message":"city not found"}`), http.StatusNotFound, "UPSTREAM_ERROR"},
		{"invalid key", apperrors.NewUpstreamError(http.StatusUnauthorized, `{"cod":401}`), http.StatusBadGateway, "UPSTREAM_ERROR"},
		{"malformed", apperrors.NewMalformedResponseError("weather: array is empty", nil), http.StatusBadGateway, "MALFORMED_UPSTREAM_RESPONSE"},
		{"unclassified", errors.New("secret internals"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, &fakeProvider{err: tt.err}, "/api/weather?city=London")

			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, tt.wantCode, body.Code)
			assert.NotEmpty(t, body.Error)
			assert.NotContains(t, rec.Body.String(), "secret internals")
		})
	}
}

func TestHandleWeatherRequest_PaddedCityEchoedVerbatim(t *testing.T) {
	provider := &fakeProvider{result: &models.WeatherResult{City: " London ", Description: "clear sky", Temperature: 15.5}}

	rec := serve(t, provider, "/api/weather?city=%20London%20")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{" London "}, provider.cities)
	assert.JSONEq(t, `{"city":" London ","description":"clear sky","temperature":15.5}`, rec.Body.String())
}

func TestHandleWeatherRequest_PanicIsRecovered(t *testing.T) {
	rec := serve(t, &fakeProvider{panics: true}, "/api/weather?city=London")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	body := decodeError(t, rec)
	assert.Equal(t, "INTERNAL_ERROR", body.Code)
	assert.NotEmpty(t, body.Error)
	assert.Empty(t, body.Details)
	assert.NotContains(t, rec.Body.String(), "unexpected payload shape")
}

func TestRecoverer_RepanicsOnAbortHandler(t *testing.T) {
	h := NewHandler(&fakeProvider{}, logger.NewNoOpLogger())
	wrapped := h.recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		wrapped.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/weather?city=London", nil))
	})
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	rec := serve(t, &fakeProvider{}, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = serve(t, &fakeProvider{}, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "weather_upstream_request_duration_seconds")
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	router := NewRouter(NewHandler(&fakeProvider{}, logger.NewNoOpLogger()))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/weather?city=London", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "METHOD_NOT_ALLOWED", decodeError(t, rec).Code)
}

// End-to-end: real client and service against a fake provider.

func newStack(t *testing.T, upstream http.HandlerFunc) *httptest.Server {
	t.Helper()
	provider := httptest.NewServer(upstream)
	t.Cleanup(provider.Close)

	weatherClient := client.NewWeatherClient(config.WeatherConfig{
		BaseURL: provider.URL,
		APIKey:  "e2e-key",
		Timeout: 2 * time.Second,
	})
	log := logger.NewTestLogger(t)
	svc := services.NewWeatherService(weatherClient, log)

	api := httptest.NewServer(NewRouter(NewHandler(svc, log)))
	t.Cleanup(api.Close)
	return api
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestEndToEnd_London(t *testing.T) {
	api := newStack(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "London", r.URL.Query().Get("q"))
		assert.Equal(t, "e2e-key", r.URL.Query().Get("appid"))
		assert.Equal(t, "metric", r.URL.Query().Get("units"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"weather":[{"description":"clear sky"}],"main":{"temp":15.5}}`))
	})

	status, body := get(t, api.URL+"/api/weather?city=London")

	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"city":"London","description":"clear sky","temperature":15.5}`, body)
}

func TestEndToEnd_EmptyCity(t *testing.T) {
	api := newStack(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("provider must not be called for an empty city")
	})

	status, body := get(t, api.URL+"/api/weather?city=")

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body, `"error"`)
}

func TestEndToEnd_UnknownCity(t *testing.T) {
	api := newStack(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"cod":"404","message":"city not found"}`))
	})

	status, body := get(t, api.URL+"/api/weather?city=Atlantis")

	assert.Equal(t, http.StatusNotFound, status)
	var errBody models.ErrorResponse
	require.NoError(t, json.Unmarshal([]byte(body), &errBody))
	assert.Equal(t, "UPSTREAM_ERROR", errBody.Code)
	assert.Contains(t, errBody.Details, "city not found")
}

func TestEndToEnd_MalformedPayload(t *testing.T) {
	api := newStack(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"weather":[],"main":{"temp":"n/a"}}`))
	})

	status, _ := get(t, api.URL+"/api/weather?city=London")
	assert.Equal(t, http.StatusBadGateway, status)
}
