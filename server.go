package weathermcp

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/url"
	"slices"
	"sync"

	"github.com/goccy/go-json"
	"github.com/invopop/jsonschema"
	"github.com/miyamo2/weathermcp/transport"
	"golang.org/x/exp/jsonrpc2"
)

// Server is an MCP server exposing registered tools and resources over a jsonrpc2 listener.
type Server struct {
	// name of the server
	name string

	// version of the server
	version string

	// startupMutex is mutex to lock Server instance access during server configuration and startup.
	startupMutex sync.RWMutex

	// logger records request failures
	logger *slog.Logger

	// jsonUnmarshalFunc is the function to unmarshal JSON data
	jsonUnmarshalFunc JSONUnmarshalFunc

	// jsonMarshalFunc is the function to marshal JSON data
	jsonMarshalFunc JSONMarshalFunc

	// jsonMarshalIndentFunc is the function to marshal JSON data for text content
	jsonMarshalIndentFunc JSONMarshalIndentFunc

	// toolMiddleware is the list of middleware functions to be applied to each Tool handler
	toolMiddleware []ToolMiddlewareFunc

	// toolContextPool pools ToolContext
	toolContextPool sync.Pool

	// tools is the map of Tool names to Tool instances
	tools map[string]Tool

	// resourceMiddleware is the list of middleware functions to be applied to each resource handler
	resourceMiddleware []ResourceMiddlewareFunc

	// resourceContextPool pools ResourceContext
	resourceContextPool sync.Pool

	// resources is the map of resource URIs to Resource instances
	resources map[string]Resource

	// capabilities advertised on initialize
	capabilities ServerCapabilities

	// compose applies server-wide middleware once
	compose sync.Once
}

// ToolMiddlewareFunc defines a function to process Tool middleware.
type ToolMiddlewareFunc func(next ToolHandlerFunc) ToolHandlerFunc

// ToolHandlerFunc defines a function to serve Tool requests.
type ToolHandlerFunc func(c ToolContext) error

// ResourceHandlerFunc defines a function to serve resource requests.
type ResourceHandlerFunc func(c ResourceContext) error

// ResourceMiddlewareFunc defines a function to process resource middleware.
type ResourceMiddlewareFunc func(next ResourceHandlerFunc) ResourceHandlerFunc

// JSONUnmarshalFunc defines a function to unmarshal JSON data.
type JSONUnmarshalFunc func(data []byte, v any) error

// JSONMarshalFunc defines a function to marshal JSON data.
type JSONMarshalFunc func(v any) ([]byte, error)

// JSONMarshalIndentFunc defines a function to marshal JSON data with indentation.
type JSONMarshalIndentFunc func(v any, prefix, indent string) ([]byte, error)

// Option configures the Server instance.
type Option func(*Server)

// WithVersion sets the version reported in serverInfo.
func WithVersion(version string) Option {
	return func(s *Server) {
		s.version = version
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithJSONMarshalIndentFunc sets the JSON marshal function used for JSON text content.
func WithJSONMarshalIndentFunc(f JSONMarshalIndentFunc) Option {
	return func(s *Server) {
		s.jsonMarshalIndentFunc = f
	}
}

// New creates a new Server instance.
func New(name string, options ...Option) *Server {
	s := &Server{
		name:                  name,
		version:               "1.0.0",
		logger:                slog.Default(),
		tools:                 make(map[string]Tool),
		resources:             make(map[string]Resource),
		jsonMarshalFunc:       json.Marshal,
		jsonUnmarshalFunc:     json.Unmarshal,
		jsonMarshalIndentFunc: json.MarshalIndent,
	}
	ok := s.startupMutex.TryLock()
	if !ok {
		panic(ErrServerLockingConflicts)
	}
	defer s.startupMutex.Unlock()

	for _, opt := range options {
		opt(s)
	}
	s.toolContextPool = sync.Pool{
		New: func() any {
			return newToolContext(s)
		},
	}
	s.resourceContextPool = sync.Pool{
		New: func() any {
			return newResourceContext(s)
		},
	}
	return s
}

type toolOptions struct {
	description string
	annotation  *ToolAnnotations
}

// ToolOption configures the Tool options.
type ToolOption func(*toolOptions)

// ToolWithDescription configures the Tool description.
func ToolWithDescription(description string) ToolOption {
	return func(o *toolOptions) {
		o.description = description
	}
}

// ToolWithAnnotations configures the Tool annotations.
func ToolWithAnnotations(annotations ToolAnnotations) ToolOption {
	return func(o *toolOptions) {
		o.annotation = &annotations
	}
}

// Tool registers a new Tool with the given name.
//
//   - name: the name of the Tool
//   - req: the request schema for the Tool
//   - handler: the handler function for the Tool
//   - options: (optional) the options for the Tool
func (s *Server) Tool(name string, req any, handler ToolHandlerFunc, options ...ToolOption) {
	ok := s.startupMutex.TryLock()
	if !ok {
		panic(ErrServerLockingConflicts)
	}
	defer s.startupMutex.Unlock()

	if s.capabilities.Tools == nil {
		s.capabilities.Tools = &ToolCapability{}
	}

	opts := &toolOptions{}
	for _, o := range options {
		o(opts)
	}

	ref := jsonschema.Reflector{
		Anonymous:                 true,
		DoNotReference:            true,
		AllowAdditionalProperties: true,
	}
	schema := ref.Reflect(req)
	schema.Version = ""
	s.tools[name] = Tool{
		Name:        name,
		Description: opts.description,
		InputSchema: schema,
		Annotations: opts.annotation,
		handler:     handler,
	}
}

type resourceOptions struct {
	description string
	mimeType    string
}

// ResourceOption configures the resource options.
type ResourceOption func(*resourceOptions)

// ResourceWithDescription configures the resource description.
func ResourceWithDescription(description string) ResourceOption {
	return func(o *resourceOptions) {
		o.description = description
	}
}

// ResourceWithMimeType configures the resource MIME type.
func ResourceWithMimeType(mimeType string) ResourceOption {
	return func(o *resourceOptions) {
		o.mimeType = mimeType
	}
}

// Resource registers a new resource at a fixed URI. Reads must match uri exactly.
//
//   - name: the name of the resource
//   - uri: the URI of the resource
//   - handler: the handler function for the resource
//   - options: (optional) the options for the resource
func (s *Server) Resource(name, uri string, handler ResourceHandlerFunc, options ...ResourceOption) {
	ok := s.startupMutex.TryLock()
	if !ok {
		panic(ErrServerLockingConflicts)
	}
	defer s.startupMutex.Unlock()

	if _, err := url.Parse(uri); err != nil {
		panic(err)
	}
	if s.capabilities.Resources == nil {
		s.capabilities.Resources = &ResourceCapability{}
	}

	opts := &resourceOptions{}
	for _, o := range options {
		o(opts)
	}
	s.resources[uri] = Resource{
		URI:         uri,
		Name:        name,
		Description: opts.description,
		MimeType:    opts.mimeType,
		handler:     handler,
	}
}

// UseInTools adds middleware to every Tool handler chain.
//
// Middleware registered first runs first.
func (s *Server) UseInTools(middleware ...ToolMiddlewareFunc) {
	ok := s.startupMutex.TryLock()
	if !ok {
		panic(ErrServerLockingConflicts)
	}
	defer s.startupMutex.Unlock()
	s.toolMiddleware = append(s.toolMiddleware, middleware...)
}

// UseInResources adds middleware to every resource handler chain.
//
// Middleware registered first runs first.
func (s *Server) UseInResources(middleware ...ResourceMiddlewareFunc) {
	ok := s.startupMutex.TryLock()
	if !ok {
		panic(ErrServerLockingConflicts)
	}
	defer s.startupMutex.Unlock()
	s.resourceMiddleware = append(s.resourceMiddleware, middleware...)
}

// chain wraps h so that middlewares[0] is the outermost.
func chain[H any, M ~func(H) H](h H, middlewares []M) H {
	for _, m := range slices.Backward(middlewares) {
		h = m(h)
	}
	return h
}

type startOptions struct {
	ctx      context.Context
	listener jsonrpc2.Listener
	framer   jsonrpc2.Framer
}

// StartOption configures the startup settings for the Server instance
type StartOption func(*startOptions)

// StartWithContext settings the context
func StartWithContext(ctx context.Context) StartOption {
	return func(o *startOptions) {
		o.ctx = ctx
	}
}

// StartWithListener settings the jsonrpc2.Listener along with its framer
func StartWithListener[T *transport.Stdio | *transport.SSE](listener T) StartOption {
	return func(o *startOptions) {
		switch v := any(listener).(type) {
		case *transport.Stdio:
			o.listener = v
			o.framer = transport.DefaultStdioFramer()
		case *transport.SSE:
			o.listener = v
			o.framer = transport.DefaultSSEFramer()
		}
	}
}

// Start serves connections accepted by the listener until the context is canceled or the listener is exhausted.
//
// Without StartWithListener it serves stdin/stdout.
func (s *Server) Start(options ...StartOption) error {
	if !s.startupMutex.TryLock() {
		panic(ErrServerLockingConflicts)
	}
	// Locked until the jsonrpc2 server is shut down.
	defer s.startupMutex.Unlock()

	o := &startOptions{
		ctx:    context.Background(),
		framer: transport.DefaultStdioFramer(),
	}
	for _, opt := range options {
		opt(o)
	}
	ctx, cancel := context.WithCancel(o.ctx)
	defer cancel()
	if o.listener == nil {
		o.listener = transport.NewStdio()
	}
	context.AfterFunc(ctx, func() {
		o.listener.Close()
	})

	s.compose.Do(func() {
		for name, tool := range s.tools {
			tool.handler = chain(tool.handler, s.toolMiddleware)
			s.tools[name] = tool
		}
		for uri, resource := range s.resources {
			resource.handler = chain(resource.handler, s.resourceMiddleware)
			s.resources[uri] = resource
		}
	})

	srv, err := jsonrpc2.Serve(ctx, o.listener, &binder{server: s, framer: o.framer})
	if err != nil {
		return err
	}
	err = srv.Wait()
	if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// compatibility check
var _ jsonrpc2.Binder = (*binder)(nil)

type binder struct {
	server *Server
	framer jsonrpc2.Framer
}

// Bind See: jsonrpc2.Binder#Bind
func (b *binder) Bind(_ context.Context, _ *jsonrpc2.Connection) (jsonrpc2.ConnectionOptions, error) {
	return jsonrpc2.ConnectionOptions{
		Framer:  b.framer,
		Handler: &handler{server: b.server},
	}, nil
}

// compatibility check
var _ jsonrpc2.Handler = (*handler)(nil)

// handler serves one connection. It holds no state between requests.
type handler struct {
	server *Server
}

// Handle See: jsonrpc2.Handler#Handle
func (h *handler) Handle(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	if !req.IsCall() {
		// notifications/initialized and notifications/cancelled need no reply
		return nil, nil
	}
	result, err := h.invokeMethod(ctx, req)
	if err == nil {
		return result, nil
	}
	if !IsProtocolError(err) {
		h.server.logger.ErrorContext(ctx, "[weathermcp] failed to handle request",
			slog.String("method", req.Method),
			slog.Any("error", err))
	}
	return nil, wireError(err)
}

// invokeMethod invokes the method specified in the request.
func (h *handler) invokeMethod(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	switch req.Method {
	case MethodInitialize:
		return h.handleInitialize(req)
	case MethodPing:
		return struct{}{}, nil
	case MethodResourcesList:
		return h.handleResourcesList()
	case MethodResourcesRead:
		return h.handleResourcesRead(ctx, req)
	case MethodToolsList:
		return h.handleToolsList()
	case MethodToolsCall:
		return h.handleToolsCall(ctx, req)
	default:
		return nil, jsonrpc2.ErrMethodNotFound
	}
}

// handleInitialize handles the initialization request.
func (h *handler) handleInitialize(req *jsonrpc2.Request) (any, error) {
	var params initializeRequestParams
	if len(req.Params) > 0 {
		if err := h.server.jsonUnmarshalFunc(req.Params, &params); err != nil {
			return nil, jsonrpc2.ErrInvalidParams
		}
	}

	protocolVersion := params.ProtocolVersion
	if support := SupportedProtocolVersions[protocolVersion]; !support {
		protocolVersion = LatestProtocolVersion
	}
	return &initializeResult{
		ProtocolVersion: protocolVersion,
		Capabilities:    h.server.capabilities,
		ServerInfo: implementation{
			Name:    h.server.name,
			Version: h.server.version,
		},
	}, nil
}

// handleResourcesList handles the request to list resources.
func (h *handler) handleResourcesList() (any, error) {
	resources := slices.SortedFunc(maps.Values(h.server.resources), func(a, b Resource) int {
		return cmp.Compare(a.URI, b.URI)
	})
	return &listResourcesResult{
		Resources: resources,
	}, nil
}

// handleResourcesRead handles the request to read a resource.
func (h *handler) handleResourcesRead(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	var params readResourceRequestParams
	if err := h.server.jsonUnmarshalFunc(req.Params, &params); err != nil {
		return nil, jsonrpc2.ErrInvalidParams
	}

	resource, ok := h.server.resources[params.URI]
	if !ok {
		return nil, UnknownResourceError(params.URI)
	}

	c := h.server.resourceContextPool.Get().(*resourceContext)
	dest := readResourceResult{
		Contents: make([]ResourceContent, 0, 1),
	}
	c.ctx = ctx
	c.uri = params.URI
	c.mimeType = resource.MimeType
	c.jsonrpcRequest = req
	c.dest = &dest

	defer func() {
		c.reset()
		h.server.resourceContextPool.Put(c)
	}()

	if err := resource.handler(c); err != nil {
		if IsProtocolError(err) {
			return nil, err
		}
		return nil, fmt.Errorf(ErrorMessageFailedToHandleResource, params.URI, err)
	}
	return &dest, nil
}

// handleToolsList handles the request to list tools.
func (h *handler) handleToolsList() (any, error) {
	tools := slices.SortedFunc(maps.Values(h.server.tools), func(a, b Tool) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return &listToolsResult{
		Tools: tools,
	}, nil
}

// handleToolsCall handles the request to call a tool.
func (h *handler) handleToolsCall(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	var params callToolRequestParams
	if err := h.server.jsonUnmarshalFunc(req.Params, &params); err != nil {
		return nil, jsonrpc2.ErrInvalidParams
	}

	tool, toolAvailable := h.server.tools[params.Name]
	if !toolAvailable {
		return nil, UnknownToolError(params.Name)
	}

	c := h.server.toolContextPool.Get().(*toolContext)
	dest := callToolResult{
		Content: make([]CallToolContent, 0, 1),
	}
	c.toolName = params.Name
	c.ctx = ctx
	c.jsonrpcRequest = req
	c.args = params.Arguments
	c.dest = &dest

	defer func() {
		c.reset()
		h.server.toolContextPool.Put(c)
	}()

	if err := tool.handler(c); err != nil {
		if IsProtocolError(err) {
			return nil, err
		}
		return nil, fmt.Errorf(ErrorMessageFailedToHandleTool, params.Name, err)
	}
	return &dest, nil
}
