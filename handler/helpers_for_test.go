package handler

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/miyamo2/weathermcp"
	"github.com/miyamo2/weathermcp/infrastructure/api"
	"github.com/stretchr/testify/require"
)

// JSONRPCRequest represents a JSON-RPC request.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// NewJSONRPCRequest creates a new JSON-RPC request with a random UUID as the ID.
func NewJSONRPCRequest(t *testing.T, method string, params any) JSONRPCRequest {
	t.Helper()
	_uuid, err := uuid.NewRandom()
	require.NoError(t, err, "failed to generate UUID for JSON-RPC request ID")

	req := NewJSONRPCNotification(t, method, params)
	req.ID = _uuid.String()
	return req
}

// NewJSONRPCNotification creates a JSON-RPC request without an ID.
func NewJSONRPCNotification(t *testing.T, method string, params any) JSONRPCRequest {
	t.Helper()
	req := JSONRPCRequest{
		JSONRPC: weathermcp.JSONRPCVersion,
		Method:  method,
	}
	if params != nil {
		p, err := json.Marshal(params)
		require.NoError(t, err, "failed to marshal JSON-RPC request parameters")
		req.Params = p
	}
	return req
}

// JSONRPCResponse represents a JSON-RPC response.
type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

// JSONRPCError represents a JSON-RPC error.
type JSONRPCError struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
}

// CallToolResult is the decoded result of tools/call.
type CallToolResult struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	IsError bool `json:"isError"`
}

// ReadResourceResult is the decoded result of resources/read.
type ReadResourceResult struct {
	Contents []struct {
		URI      string `json:"uri"`
		MimeType string `json:"mimeType"`
		Text     string `json:"text"`
	} `json:"contents"`
}

// lineClient writes requests to and reads responses from a line-delimited stream.
type lineClient struct {
	t *testing.T
	w io.Writer
	r *bufio.Reader
}

func newLineClient(t *testing.T, w io.Writer, r io.Reader) *lineClient {
	return &lineClient{t: t, w: w, r: bufio.NewReader(r)}
}

func (c *lineClient) send(req JSONRPCRequest) {
	c.t.Helper()
	b, err := json.Marshal(req)
	require.NoError(c.t, err)
	_, err = c.w.Write(append(b, '\n'))
	require.NoError(c.t, err)
}

func (c *lineClient) receive() JSONRPCResponse {
	c.t.Helper()
	line, err := c.r.ReadBytes('\n')
	require.NoError(c.t, err)
	var res JSONRPCResponse
	require.NoError(c.t, json.Unmarshal(line, &res), "response: %s", line)
	return res
}

// call sends req and returns its response.
func (c *lineClient) call(req JSONRPCRequest) JSONRPCResponse {
	c.t.Helper()
	c.send(req)
	res := c.receive()
	require.Equal(c.t, req.ID, res.ID)
	return res
}

// upstream stubs the OpenWeatherMap forecast endpoint.
//
// "Atlantis" answers 404, "Garbled" answers an undecodable 200 and any other city answers cnt readings.
type upstream struct {
	*httptest.Server
	queries chan url.Values
}

func newUpstream(t *testing.T) *upstream {
	t.Helper()
	u := &upstream{queries: make(chan url.Values, 16)}
	u.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		select {
		case u.queries <- q:
		default:
		}
		w.Header().Set("Content-Type", "application/json")
		switch q.Get("q") {
		case "Atlantis":
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"cod":"404","message":"city not found"}`)
		case "Garbled":
			io.WriteString(w, `{"list":"not a list"}`)
		default:
			cnt, _ := strconv.Atoi(q.Get("cnt"))
			json.NewEncoder(w).Encode(map[string]any{"cod": "200", "list": readings(cnt)})
		}
	}))
	t.Cleanup(u.Close)
	return u
}

// lastQuery returns the query string of the most recent upstream call.
func (u *upstream) lastQuery(t *testing.T) url.Values {
	t.Helper()
	select {
	case q := <-u.queries:
		return q
	case <-time.After(5 * time.Second):
		t.Fatal("upstream was not called")
	}
	return nil
}

// readings returns n three-hour readings starting 2025-01-01 00:00:00. Reading i has temperature i.
func readings(n int) []map[string]any {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	list := make([]map[string]any, 0, n)
	for i := range n {
		list = append(list, map[string]any{
			"main":    map[string]any{"temp": float64(i), "humidity": 50},
			"weather": []map[string]any{{"description": fmt.Sprintf("sky %d", i)}},
			"wind":    map[string]any{"speed": 3.5},
			"dt_txt":  start.Add(time.Duration(i) * 3 * time.Hour).Format(time.DateTime),
		})
	}
	return list
}

// newWeatherServer builds a server with the weather capabilities registered against u.
func newWeatherServer(t *testing.T, u *upstream) *weathermcp.Server {
	t.Helper()
	s := weathermcp.New("weather-server",
		weathermcp.WithVersion("0.1.0"),
		weathermcp.WithLogger(slog.New(slog.DiscardHandler)))
	repo := api.NewWeather(api.Config{BaseURL: u.URL, APIKey: "test-key", Timeout: 5 * time.Second})
	Register(s, NewWeather(repo))
	return s
}
