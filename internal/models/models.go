package models

import "encoding/json"

// RawWeatherResponse is the provider payload restricted to the paths the
// service reads. The nested values stay undecoded until extraction so that a
// missing or mistyped field can be reported precisely.
type RawWeatherResponse struct {
	Weather json.RawMessage `json:"weather"`
	Main    json.RawMessage `json:"main"`
}

// WeatherResult is the response returned by GET /api/weather.
type WeatherResult struct {
	City        string  `json:"city"`
	Description string  `json:"description"`
	Temperature float64 `json:"temperature"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}
