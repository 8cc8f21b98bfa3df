package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"golang.org/x/exp/jsonrpc2"
)

// compatibility check
var (
	_ jsonrpc2.Listener  = (*SSE)(nil)
	_ http.Handler       = (*SSE)(nil)
	_ io.ReadWriteCloser = (*Session)(nil)
)

// SSE implements jsonrpc2.Listener and http.Handler for the HTTP+SSE transport.
//
// GET on the stream path opens a session and streams server messages as events.
// POST on the messages path relays the body into the session named by the sessionId query parameter.
type SSE struct {
	router           chi.Router
	sessions         SessionStore
	conns            chan *Session
	done             chan struct{}
	closeOnce        sync.Once
	streamPath       string
	messagesPath     string
	keepAlive        time.Duration
	allowCORSOrigin  string
	allowCORSMethods string
	allowCORSHeaders string
}

var (
	defaultAccessControlAllowOrigin  = []string{"*"}
	defaultAccessControlAllowMethods = []string{"GET", "POST", "OPTIONS"}
	defaultAccessControlAllowHeaders = []string{"Accept", "Content-Type", "Content-Length", "Accept-Encoding", "Authorization"}
)

const (
	sseEndpoint = "event: endpoint\ndata: %s\n\n"
	sseMessage  = "event: message\ndata: %s\n\n"
	sseProbe    = ":\n\n"
)

// ServeHTTP See: http.Handler#ServeHTTP
func (s *SSE) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Accept See: jsonrpc2.Listener#Accept
func (s *SSE) Accept(ctx context.Context) (io.ReadWriteCloser, error) {
	select {
	case session := <-s.conns:
		return session, nil
	case <-s.done:
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close See: jsonrpc2.Listener#Close
//
// It stops accepting sessions and closes every open one.
func (s *SSE) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		ctx := context.Background()
		for id, session := range s.sessions.All(ctx) {
			session.Close()
			s.sessions.Delete(ctx, id)
		}
	})
	return nil
}

// Dialer See: jsonrpc2.Listener#Dialer
//
// SSE sessions are opened by HTTP clients and cannot be dialed.
func (s *SSE) Dialer() jsonrpc2.Dialer {
	return nil
}

func (s *SSE) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	in, inWriter := io.Pipe()
	session := &Session{
		w:        w,
		flusher:  flusher,
		in:       in,
		inWriter: inWriter,
		ctx:      ctx,
		cancel:   cancel,
	}
	id, err := s.sessions.Issue(ctx, session)
	if err != nil {
		slog.ErrorContext(ctx, "[weathermcp] failed to issue session", slog.Any("error", err))
		http.Error(w, "failed to issue session", http.StatusInternalServerError)
		return
	}
	session.id = id
	defer func() {
		session.Close()
		s.sessions.Delete(context.WithoutCancel(ctx), session.ID())
	}()

	w.Header().Set("content-type", "text/event-stream")
	w.Header().Set("cache-control", "no-cache")
	w.Header().Set("connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	endpoint := fmt.Sprintf("%s?%s", s.messagesPath, url.Values{"sessionId": {session.ID()}}.Encode())
	if err := session.writeEvent(sseEndpoint, endpoint); err != nil {
		return
	}
	slog.DebugContext(ctx, "[weathermcp] session opened", slog.String("sessionId", session.ID()))

	select {
	case s.conns <- session:
	case <-ctx.Done():
		return
	case <-s.done:
		return
	}

	ticker := time.NewTicker(s.keepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := session.Probe(); err != nil {
				return
			}
		case <-ctx.Done():
			slog.DebugContext(context.WithoutCancel(ctx), "[weathermcp] session closed", slog.String("sessionId", session.ID()))
			return
		case <-s.done:
			return
		}
	}
}

func (s *SSE) handleMessage(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("sessionId")
	if id == "" {
		http.Error(w, ErrMissingSessionID.Error(), http.StatusBadRequest)
		return
	}
	session, err := s.sessions.Load(r.Context(), id)
	if errors.Is(err, ErrSessionNotFound) {
		http.Error(w, ErrSessionNotFound.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "[weathermcp] failed to load session", slog.Any("error", err))
		http.Error(w, "failed to load session", http.StatusInternalServerError)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxMessageBytes))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, body); err != nil {
		http.Error(w, ErrInvalidMessage.Error(), http.StatusBadRequest)
		return
	}
	buf.Write(messageDelimiter)

	if err := session.deliver(buf.Bytes()); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusAccepted)
	w.Write([]byte("Accepted"))
}

func (s *SSE) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("access-control-allow-origin", s.allowCORSOrigin)
		w.Header().Set("access-control-allow-methods", s.allowCORSMethods)
		w.Header().Set("access-control-allow-headers", s.allowCORSHeaders)
		next.ServeHTTP(w, r)
	})
}

func (s *SSE) preflight(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// Session is one SSE stream and the inbound pipe that POSTed messages are written to.
type Session struct {
	id       string
	w        http.ResponseWriter
	flusher  http.Flusher
	in       *io.PipeReader
	inWriter *io.PipeWriter
	ctx      context.Context
	cancel   context.CancelFunc

	// mu guards w and closed
	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
}

// ID returns the session ID.
func (s *Session) ID() string {
	return s.id
}

// Read See: io.Reader#Read
func (s *Session) Read(p []byte) (int, error) {
	return s.in.Read(p)
}

// Write sends p to the client as a message event.
func (s *Session) Write(p []byte) (int, error) {
	if err := s.writeEvent(sseMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close ends the stream. Writes after Close fail with ErrSessionClosed.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		s.cancel()
		s.inWriter.Close()
	})
	return nil
}

// Probe sends a comment to the client to keep the connection alive.
func (s *Session) Probe() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if _, err := io.WriteString(s.w, sseProbe); err != nil {
		return fmt.Errorf("failed to write probe: %w", err)
	}
	s.flusher.Flush()
	return nil
}

func (s *Session) writeEvent(format string, data any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if _, err := fmt.Fprintf(s.w, format, data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// deliver writes one newline-terminated message into the session's inbound pipe.
func (s *Session) deliver(message []byte) error {
	if _, err := s.inWriter.Write(message); err != nil {
		if errors.Is(err, io.ErrClosedPipe) {
			return ErrSessionClosed
		}
		return err
	}
	return nil
}

type sseOptions struct {
	streamPath                      string
	messagesPath                    string
	keepAlive                       time.Duration
	sessionStore                    SessionStore
	accessControlAllowOrigin        []string
	accessControlAllowOriginMethods []string
	accessControlAllowOriginHeaders []string
}

// SSEOption configures the SSE transport.
type SSEOption func(*sseOptions)

// SSEWithStreamPath settings the path clients GET to open a session. Defaults to "/sse".
func SSEWithStreamPath(path string) SSEOption {
	return func(o *sseOptions) {
		o.streamPath = path
	}
}

// SSEWithMessagesPath settings the path clients POST messages to. Defaults to "/messages".
func SSEWithMessagesPath(path string) SSEOption {
	return func(o *sseOptions) {
		o.messagesPath = path
	}
}

// SSEWithKeepAlive settings the interval between keep-alive comments. Defaults to 15 seconds.
func SSEWithKeepAlive(interval time.Duration) SSEOption {
	return func(o *sseOptions) {
		o.keepAlive = interval
	}
}

// SSEWithSessionStore settings the SessionStore.
func SSEWithSessionStore(store SessionStore) SSEOption {
	return func(o *sseOptions) {
		o.sessionStore = store
	}
}

// SSEWithAccessControlAllowOrigin settings the allowed origins.
func SSEWithAccessControlAllowOrigin(allowCORSOrigin []string) SSEOption {
	return func(o *sseOptions) {
		o.accessControlAllowOrigin = allowCORSOrigin
	}
}

// SSEWithAccessControlAllowMethods settings the allowed CORS methods.
func SSEWithAccessControlAllowMethods(allowCORSMethods []string) SSEOption {
	return func(o *sseOptions) {
		o.accessControlAllowOriginMethods = allowCORSMethods
	}
}

// SSEWithAccessControlAllowHeaders settings the allowed CORS headers.
func SSEWithAccessControlAllowHeaders(allowCORSHeaders []string) SSEOption {
	return func(o *sseOptions) {
		o.accessControlAllowOriginHeaders = allowCORSHeaders
	}
}

// NewSSE creates new SSE transport. Serve it with an http.Server and pass it to the server as its listener.
func NewSSE(options ...SSEOption) *SSE {
	opts := &sseOptions{
		streamPath:                      "/sse",
		messagesPath:                    "/messages",
		keepAlive:                       15 * time.Second,
		sessionStore:                    &InMemorySessionStore{},
		accessControlAllowOrigin:        defaultAccessControlAllowOrigin,
		accessControlAllowOriginMethods: defaultAccessControlAllowMethods,
		accessControlAllowOriginHeaders: defaultAccessControlAllowHeaders,
	}
	for _, opt := range options {
		opt(opts)
	}
	if opts.keepAlive <= 0 {
		opts.keepAlive = 15 * time.Second
	}

	s := &SSE{
		sessions:         opts.sessionStore,
		conns:            make(chan *Session),
		done:             make(chan struct{}),
		streamPath:       opts.streamPath,
		messagesPath:     opts.messagesPath,
		keepAlive:        opts.keepAlive,
		allowCORSOrigin:  strings.Join(opts.accessControlAllowOrigin, ","),
		allowCORSMethods: strings.Join(opts.accessControlAllowOriginMethods, ","),
		allowCORSHeaders: strings.Join(opts.accessControlAllowOriginHeaders, ","),
	}

	r := chi.NewRouter()
	r.Use(s.cors)
	r.Options(s.streamPath, s.preflight)
	r.Options(s.messagesPath, s.preflight)
	r.Get(s.streamPath, s.handleStream)
	r.Post(s.messagesPath, s.handleMessage)
	s.router = r
	return s
}
