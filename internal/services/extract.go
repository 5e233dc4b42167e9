package services

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"weather-tracker/internal/apperrors"
	"weather-tracker/internal/models"
)

// upstreamSchemaJSON covers only the two paths the service consumes:
// weather[0].description and main.temp. Everything else is ignored.
const upstreamSchemaJSON = `{
	"type": "object",
	"properties": {
		"weather": {
			"type": "array",
			"minItems": 1,
			"items": [{
				"type": "object",
				"required": ["description"],
				"properties": {
					"description": {"type": "string"}
				}
			}]
		},
		"main": {
			"type": "object",
			"required": ["temp"],
			"properties": {
				"temp": {"type": ["number", "string"]}
			}
		}
	}
}`

var upstreamSchema = mustCompileSchema(upstreamSchemaJSON)

func mustCompileSchema(s string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(s))
	if err != nil {
		panic(fmt.Sprintf("compile upstream schema: %v", err))
	}
	return schema
}

// Extract turns a provider payload into a WeatherResult for city. The city is
// always the caller's value, never the provider's spelling. Every failure is
// reported as ErrCodeMalformedResponse.
func Extract(raw *models.RawWeatherResponse, city string) (result *models.WeatherResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = apperrors.NewMalformedResponseError(fmt.Sprintf("extraction panicked: %v", r), nil)
		}
	}()

	if raw == nil {
		return nil, apperrors.NewMalformedResponseError("empty response", nil)
	}

	if err := validateRaw(raw); err != nil {
		return nil, err
	}

	description, err := extractDescription(raw.Weather)
	if err != nil {
		return nil, err
	}

	temperature, err := extractTemperature(raw.Main)
	if err != nil {
		return nil, err
	}

	return &models.WeatherResult{
		City:        city,
		Description: description,
		Temperature: temperature,
	}, nil
}

func validateRaw(raw *models.RawWeatherResponse) error {
	// Absent sections marshal as null and fail the type checks.
	result, err := upstreamSchema.Validate(gojsonschema.NewGoLoader(raw))
	if err != nil {
		return apperrors.NewMalformedResponseError("payload could not be validated", err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return apperrors.NewMalformedResponseError(strings.Join(errs, "; "), nil)
	}
	return nil
}

func extractDescription(weather json.RawMessage) (string, error) {
	// Only the first entry is read; later entries may have any shape.
	var entries []json.RawMessage
	if err := json.Unmarshal(weather, &entries); err != nil {
		return "", apperrors.NewMalformedResponseError("weather: expected an array", err)
	}
	if len(entries) == 0 {
		return "", apperrors.NewMalformedResponseError("weather: array is empty", nil)
	}

	var first struct {
		Description *string `json:"description"`
	}
	if err := json.Unmarshal(entries[0], &first); err != nil {
		return "", apperrors.NewMalformedResponseError("weather.0: expected an object with a string description", err)
	}
	if first.Description == nil {
		return "", apperrors.NewMalformedResponseError("weather.0: description is missing", nil)
	}
	return *first.Description, nil
}

func extractTemperature(main json.RawMessage) (float64, error) {
	var section struct {
		Temp json.RawMessage `json:"temp"`
	}
	if err := json.Unmarshal(main, &section); err != nil {
		return 0, apperrors.NewMalformedResponseError("main: expected an object", err)
	}
	if len(section.Temp) == 0 || string(section.Temp) == "null" {
		return 0, apperrors.NewMalformedResponseError("main: temp is missing", nil)
	}

	var temp float64
	if err := json.Unmarshal(section.Temp, &temp); err == nil {
		return temp, nil
	}

	// The provider contract says number; a numeric string is tolerated.
	var s string
	if err := json.Unmarshal(section.Temp, &s); err != nil {
		return 0, apperrors.NewMalformedResponseError("main.temp: not a number", err)
	}
	temp, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(temp) || math.IsInf(temp, 0) {
		return 0, apperrors.NewMalformedResponseError(fmt.Sprintf("main.temp: %q is not a number", s), err)
	}
	return temp, nil
}
