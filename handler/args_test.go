package handler

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/miyamo2/weathermcp/domain/model"
	"golang.org/x/exp/jsonrpc2"
)

func TestValidForecastArgs(t *testing.T) {
	type test struct {
		raw  string
		want bool
	}
	tests := map[string]test{
		"city only":            {raw: `{"city":"London"}`, want: true},
		"city and days":        {raw: `{"city":"Paris","days":3}`, want: true},
		"fractional days":      {raw: `{"city":"Paris","days":2.5}`, want: true},
		"negative days":        {raw: `{"city":"Paris","days":-1}`, want: true},
		"empty city":           {raw: `{"city":""}`, want: true},
		"extra fields":         {raw: `{"city":"Oslo","units":"metric"}`, want: true},
		"missing city":         {raw: `{"days":3}`, want: false},
		"numeric city":         {raw: `{"city":42}`, want: false},
		"null city":            {raw: `{"city":null}`, want: false},
		"array city":           {raw: `{"city":["London"]}`, want: false},
		"string days":          {raw: `{"city":"Paris","days":"3"}`, want: false},
		"null days":            {raw: `{"city":"Paris","days":null}`, want: false},
		"boolean days":         {raw: `{"city":"Paris","days":true}`, want: false},
		"null":                 {raw: `null`, want: false},
		"array":                {raw: `[{"city":"London"}]`, want: false},
		"string":               {raw: `"London"`, want: false},
		"empty":                {raw: ``, want: false},
		"malformed":            {raw: `{"city":`, want: false},
		"empty object":         {raw: `{}`, want: false},
		"whitespace padded ok": {raw: ` { "city" : "Rome" , "days" : 1 } `, want: true},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			if got := ValidForecastArgs(json.RawMessage(tt.raw)); got != tt.want {
				t.Errorf("ValidForecastArgs(%s) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseForecastArgs(t *testing.T) {
	type test struct {
		raw     string
		want    model.ForecastRequest
		wantErr bool
	}
	tests := map[string]test{
		"days default": {
			raw:  `{"city":"London"}`,
			want: model.ForecastRequest{City: "London", Days: 3},
		},
		"days zero falls back to default": {
			raw:  `{"city":"London","days":0}`,
			want: model.ForecastRequest{City: "London", Days: 3},
		},
		"days clamped to max": {
			raw:  `{"city":"Paris","days":10}`,
			want: model.ForecastRequest{City: "Paris", Days: 5},
		},
		"days clamped to min": {
			raw:  `{"city":"Paris","days":-4}`,
			want: model.ForecastRequest{City: "Paris", Days: 1},
		},
		"days beyond int range clamped to max": {
			raw:  `{"city":"Paris","days":1e20}`,
			want: model.ForecastRequest{City: "Paris", Days: 5},
		},
		"days truncated": {
			raw:  `{"city":"Paris","days":2.9}`,
			want: model.ForecastRequest{City: "Paris", Days: 2},
		},
		"empty city": {
			raw:     `{"city":""}`,
			wantErr: true,
		},
		"missing city": {
			raw:     `{"days":2}`,
			wantErr: true,
		},
		"string days": {
			raw:     `{"city":"Paris","days":"2"}`,
			wantErr: true,
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := ParseForecastArgs(json.RawMessage(tt.raw))
			if tt.wantErr {
				if !errors.Is(err, jsonrpc2.ErrInvalidParams) {
					t.Fatalf("ParseForecastArgs(%s) error = %v, want InvalidParams", tt.raw, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseForecastArgs(%s) unexpected error: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Errorf("ParseForecastArgs(%s) = %+v, want %+v", tt.raw, got, tt.want)
			}
		})
	}
}
