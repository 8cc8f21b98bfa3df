package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/jsonrpc2"
)

// echoBinder answers every call with its method and params.
type echoBinder struct {
	framer jsonrpc2.Framer
}

func (b echoBinder) Bind(_ context.Context, _ *jsonrpc2.Connection) (jsonrpc2.ConnectionOptions, error) {
	return jsonrpc2.ConnectionOptions{
		Framer: b.framer,
		Handler: jsonrpc2.HandlerFunc(func(_ context.Context, req *jsonrpc2.Request) (any, error) {
			return map[string]any{
				"method": req.Method,
				"params": req.Params,
			}, nil
		}),
	}, nil
}

type response struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id"`
	Result  struct {
		Method string          `json:"method"`
		Params json.RawMessage `json:"params"`
	} `json:"result"`
}

func decodeResponse(t *testing.T, data []byte) response {
	t.Helper()
	var v response
	require.NoError(t, json.Unmarshal(data, &v), "response: %s", data)
	return v
}

type event struct {
	name string
	data string
}

// events parses an SSE stream in the background. Comment lines are dropped.
func events(t *testing.T, body io.Reader) <-chan event {
	t.Helper()
	ch := make(chan event, 16)
	go func() {
		defer close(ch)
		r := bufio.NewReader(body)
		var evt event
		for {
			line, err := r.ReadString('\n')
			line = strings.TrimRight(line, "\n")
			switch {
			case line == "":
				if evt != (event{}) {
					ch <- evt
					evt = event{}
				}
			case strings.HasPrefix(line, ":"):
			case strings.HasPrefix(line, "event: "):
				evt.name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				evt.data = strings.TrimPrefix(line, "data: ")
			}
			if err != nil {
				return
			}
		}
	}()
	return ch
}

func nextEvent(t *testing.T, ch <-chan event) event {
	t.Helper()
	select {
	case evt, ok := <-ch:
		require.True(t, ok, "stream closed")
		return evt
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return event{}
}
