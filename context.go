package weathermcp

import (
	"context"
	"encoding/json"
	"log/slog"

	"golang.org/x/exp/jsonrpc2"
)

type Context interface {
	// JSONRPCRequest returns the JSONRPC request
	JSONRPCRequest() jsonrpc2.Request
	// Context returns the context
	Context() context.Context
	// Logger returns the server logger
	Logger() *slog.Logger
}

var _ Context = (*_context)(nil)

type _context struct {
	ctx                   context.Context
	jsonrpcRequest        *jsonrpc2.Request
	logger                *slog.Logger
	jsonUnmarshalFunc     JSONUnmarshalFunc
	jsonMarshalFunc       JSONMarshalFunc
	jsonMarshalIndentFunc JSONMarshalIndentFunc
}

func (c *_context) JSONRPCRequest() jsonrpc2.Request {
	if c.jsonrpcRequest == nil {
		return jsonrpc2.Request{}
	}
	return *c.jsonrpcRequest
}

func (c *_context) Context() context.Context {
	return c.ctx
}

func (c *_context) Logger() *slog.Logger {
	return c.logger
}

// indent renders i as JSON indented with two spaces.
func (c *_context) indent(i any) (string, error) {
	b, err := c.jsonMarshalIndentFunc(i, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (c *_context) reset() {
	c.jsonrpcRequest = nil
	c.ctx = nil
}

// BindableContext is the context for handlers that able to bind JSON data
type BindableContext interface {
	Context
	// Bind binds json data into the provided type `i`.
	Bind(i any) error
}

// ToolContext is the context for Tool handlers
type ToolContext interface {
	BindableContext
	// ToolName returns the name of the Tool
	ToolName() string
	// Arguments return the arguments passed to the Tool
	Arguments() json.RawMessage
	// String sends plain text content
	String(s string) error
	// JSON sends content as JSON text indented with two spaces
	JSON(i any) error
	// Error sends plain text content and flags the result as a tool error
	Error(s string) error
}

var (
	_ Context     = (*toolContext)(nil)
	_ ToolContext = (*toolContext)(nil)
)

type toolContext struct {
	_context
	toolName string
	args     json.RawMessage
	dest     *callToolResult
}

func (c *toolContext) Arguments() json.RawMessage {
	return c.args
}

func (c *toolContext) Bind(i any) error {
	args := c.Arguments()
	if len(args) == 0 {
		return nil
	}
	return c.jsonUnmarshalFunc(args, i)
}

func (c *toolContext) String(s string) error {
	c.dest.Content = append(c.dest.Content, &textCallToolContent{
		Text:    s,
		marshal: c.jsonMarshalFunc,
	})
	return nil
}

func (c *toolContext) JSON(i any) error {
	s, err := c.indent(i)
	if err != nil {
		return err
	}
	return c.String(s)
}

func (c *toolContext) Error(s string) error {
	c.dest.IsError = true
	return c.String(s)
}

func (c *toolContext) ToolName() string {
	return c.toolName
}

// reset resets the Tool context
func (c *toolContext) reset() {
	c._context.reset()
	c.toolName = ""
	c.dest = nil
	c.args = nil
}

// newToolContext creates a new Tool context
func newToolContext(s *Server) *toolContext {
	return &toolContext{
		_context: _context{
			logger:                s.logger,
			jsonUnmarshalFunc:     s.jsonUnmarshalFunc,
			jsonMarshalFunc:       s.jsonMarshalFunc,
			jsonMarshalIndentFunc: s.jsonMarshalIndentFunc,
		},
	}
}

// ResourceContext is the context for resource handlers
type ResourceContext interface {
	Context
	// ResourceURI returns the requested uri of the resource
	ResourceURI() string
	// MimeType returns the mime type of the resource
	MimeType() string
	// String sends plain text content
	String(s string) error
	// JSON sends content as JSON text indented with two spaces
	JSON(i any) error
}

var _ ResourceContext = (*resourceContext)(nil)

type resourceContext struct {
	_context
	uri      string
	mimeType string
	dest     *readResourceResult
}

func (c *resourceContext) ResourceURI() string {
	return c.uri
}

func (c *resourceContext) MimeType() string {
	return c.mimeType
}

func (c *resourceContext) String(s string) error {
	mimeType := c.mimeType
	if mimeType == "" {
		mimeType = "text/plain"
	}
	c.dest.Contents = append(c.dest.Contents, ResourceContent{
		URI:      c.uri,
		MimeType: mimeType,
		Text:     s,
	})
	return nil
}

func (c *resourceContext) JSON(i any) error {
	s, err := c.indent(i)
	if err != nil {
		return err
	}
	mimeType := c.mimeType
	if mimeType == "" {
		mimeType = "application/json"
	}
	c.dest.Contents = append(c.dest.Contents, ResourceContent{
		URI:      c.uri,
		MimeType: mimeType,
		Text:     s,
	})
	return nil
}

func (c *resourceContext) reset() {
	c._context.reset()
	c.uri = ""
	c.mimeType = ""
	c.dest = nil
}

// newResourceContext creates a new resource context
func newResourceContext(s *Server) *resourceContext {
	return &resourceContext{
		_context: _context{
			logger:                s.logger,
			jsonUnmarshalFunc:     s.jsonUnmarshalFunc,
			jsonMarshalFunc:       s.jsonMarshalFunc,
			jsonMarshalIndentFunc: s.jsonMarshalIndentFunc,
		},
	}
}
