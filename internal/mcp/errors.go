// Package mcp exposes the matching engine as a Model Context Protocol
// server over stdio.
package mcp

import (
	"context"
	"errors"
	"fmt"

	rmerrors "github.com/Aman-CERP/resumatch/internal/errors"
)

// Custom MCP error codes for resumatch.
const (
	// ErrCodeIndexNotReady indicates the index for a kind is missing or empty.
	ErrCodeIndexNotReady = -32001

	// ErrCodeEmbeddingFailed indicates embedding generation failed.
	ErrCodeEmbeddingFailed = -32002

	// ErrCodeTimeout indicates the request timed out.
	ErrCodeTimeout = -32003

	// ErrCodeRecordNotFound indicates a record id does not exist.
	ErrCodeRecordNotFound = -32004

	// ErrCodeIndexBusy indicates another writer holds the index lock.
	ErrCodeIndexBusy = -32005

	// Standard JSON-RPC error codes.
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// MCPError represents an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts internal errors to MCP errors.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var mcpErr *MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr
	}
	if me, ok := rmerrors.As(err); ok {
		return mapMatchError(me)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
	}
}

// NewInvalidParamsError creates an error for invalid parameters with a custom message.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// NewMethodNotFoundError creates an error for unknown tools.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{
		Code:    ErrCodeMethodNotFound,
		Message: fmt.Sprintf("Tool '%s' not found.", name),
	}
}

// NewResourceNotFoundError creates an error for unknown resources.
func NewResourceNotFoundError(uri string) *MCPError {
	return &MCPError{
		Code:    ErrCodeRecordNotFound,
		Message: fmt.Sprintf("Resource '%s' not found.", uri),
	}
}

func mapMatchError(me *rmerrors.MatchError) *MCPError {
	message := me.Message
	if me.Suggestion != "" {
		message = fmt.Sprintf("%s. %s", me.Message, me.Suggestion)
	}

	switch me.Code {
	case rmerrors.ErrCodeIndexNotReady, rmerrors.ErrCodeIndexNotFound:
		return &MCPError{Code: ErrCodeIndexNotReady, Message: message}
	case rmerrors.ErrCodeIndexLocked:
		return &MCPError{Code: ErrCodeIndexBusy, Message: message}
	case rmerrors.ErrCodeRecordNotFound:
		return &MCPError{Code: ErrCodeRecordNotFound, Message: message}
	case rmerrors.ErrCodeTimeout, rmerrors.ErrCodeNetworkTimeout:
		return &MCPError{Code: ErrCodeTimeout, Message: message}
	}

	switch me.Category {
	case rmerrors.CategoryModel:
		return &MCPError{Code: ErrCodeEmbeddingFailed, Message: message}
	case rmerrors.CategoryValidation:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}
