package handler

import (
	"bytes"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/miyamo2/weathermcp"
	"github.com/miyamo2/weathermcp/domain/model"
)

// ForecastArgs contains input parameters for the get_forecast tool.
type ForecastArgs struct {
	City string   `json:"city" jsonschema:"description=City name"`
	Days *float64 `json:"days,omitempty" jsonschema:"description=Number of days (1-5),minimum=1,maximum=5"`
}

// ErrInvalidForecastArgs is returned for get_forecast arguments of the wrong shape.
var ErrInvalidForecastArgs = weathermcp.InvalidParamsError("Invalid forecast arguments")

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidForecastArgs reports whether raw is a JSON object whose city is a string and whose days, when present, is a number.
func ValidForecastArgs(raw json.RawMessage) bool {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return false
	}
	city, ok := fields["city"]
	if !ok || !isJSONString(city) {
		return false
	}
	if days, ok := fields["days"]; ok && !isJSONNumber(days) {
		return false
	}
	return true
}

// ParseForecastArgs validates raw and returns the request with days defaulted and clamped.
func ParseForecastArgs(raw json.RawMessage) (model.ForecastRequest, error) {
	if !ValidForecastArgs(raw) {
		return model.ForecastRequest{}, ErrInvalidForecastArgs
	}
	var args ForecastArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return model.ForecastRequest{}, ErrInvalidForecastArgs
	}
	req := model.ForecastRequest{
		City: args.City,
		Days: model.ClampDays(args.Days),
	}
	if err := validate.Struct(req); err != nil {
		return model.ForecastRequest{}, ErrInvalidForecastArgs
	}
	return req, nil
}

func isJSONString(v json.RawMessage) bool {
	var s string
	return bytes.HasPrefix(bytes.TrimSpace(v), []byte(`"`)) && json.Unmarshal(v, &s) == nil
}

func isJSONNumber(v json.RawMessage) bool {
	v = bytes.TrimSpace(v)
	if len(v) == 0 {
		return false
	}
	if c := v[0]; c != '-' && (c < '0' || c > '9') {
		return false
	}
	var f float64
	return json.Unmarshal(v, &f) == nil
}
