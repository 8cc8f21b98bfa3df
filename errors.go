package weathermcp

import (
	"errors"
	"fmt"

	"golang.org/x/exp/jsonrpc2"
)

const (
	ErrorMessageFailedToHandleTool     = "failed to handle Tool (name: %s): %w"
	ErrorMessageFailedToHandleResource = "failed to handle Resource (uri: %s): %w"
)

var ErrServerLockingConflicts = errors.New(
	"server is already running or there is a configuration process conflict",
)

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     int64 = -32700
	CodeInvalidRequest int64 = -32600
	CodeMethodNotFound int64 = -32601
	CodeInvalidParams  int64 = -32602
	CodeInternalError  int64 = -32603
)

// protocolErrors maps the standard JSON-RPC codes to the jsonrpc2 sentinels.
var protocolErrors = map[int64]error{
	CodeParseError:     jsonrpc2.ErrParse,
	CodeInvalidRequest: jsonrpc2.ErrInvalidRequest,
	CodeMethodNotFound: jsonrpc2.ErrMethodNotFound,
	CodeInvalidParams:  jsonrpc2.ErrInvalidParams,
	CodeInternalError:  jsonrpc2.ErrInternal,
}

// ProtocolError is an error that reaches the client as a JSON-RPC error object
// with its own code and message.
type ProtocolError struct {
	Code    int64
	Message string
}

// Error See: error#Error
func (e *ProtocolError) Error() string {
	return e.Message
}

// Is reports whether target is the jsonrpc2 sentinel for e.Code.
func (e *ProtocolError) Is(target error) bool {
	sentinel, ok := protocolErrors[e.Code]
	return ok && sentinel == target
}

// UnknownToolError returns the MethodNotFound error for a tool that is not registered.
func UnknownToolError(name string) error {
	return &ProtocolError{Code: CodeMethodNotFound, Message: fmt.Sprintf("Unknown tool: %s", name)}
}

// UnknownResourceError returns the InvalidRequest error for a resource URI that is not registered.
func UnknownResourceError(uri string) error {
	return &ProtocolError{Code: CodeInvalidRequest, Message: fmt.Sprintf("Unknown resource: %s", uri)}
}

// InvalidParamsError returns an InvalidParams error carrying message.
func InvalidParamsError(message string) error {
	return &ProtocolError{Code: CodeInvalidParams, Message: message}
}

// IsProtocolError reports whether err carries one of the standard JSON-RPC error codes.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return true
	}
	for _, sentinel := range protocolErrors {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// wireError converts err into the value handed to jsonrpc2.
// jsonrpc2 only keeps the code of an unwrapped error, so nothing returned here is wrapped.
func wireError(err error) error {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return jsonrpc2.NewError(pe.Code, pe.Message)
	}
	for _, sentinel := range protocolErrors {
		if errors.Is(err, sentinel) {
			return sentinel
		}
	}
	return jsonrpc2.NewError(CodeInternalError, err.Error())
}
