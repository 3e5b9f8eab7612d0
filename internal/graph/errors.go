package graph

import (
	"fmt"
	"log/slog"
	"strconv"

	graphql "github.com/graph-gophers/graphql-go"
)

// Error codes exposed under "extensions.code". Authorization codes come from auth.GateError.
const (
	codeBadUserInput  = "BAD_USER_INPUT"
	codeNotFound      = "NOT_FOUND"
	codeUnauthorized  = "UNAUTHENTICATED"
	codeUnsupported   = "NOT_SUPPORTED"
	codeInternalError = "INTERNAL_SERVER_ERROR"
)

// Error is a client-facing resolver error with a stable message.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

// Extensions implements the graphql-go extensions interface.
func (e *Error) Extensions() map[string]interface{} {
	return map[string]interface{}{"code": e.Code}
}

func badInput(format string, args ...any) *Error {
	return &Error{Code: codeBadUserInput, Message: fmt.Sprintf(format, args...)}
}

func notFound(msg string) *Error {
	return &Error{Code: codeNotFound, Message: msg}
}

// internal logs err and returns msg to the client without the underlying cause.
func internal(msg string, err error, attrs ...any) *Error {
	slog.Error(msg, append([]any{"error", err}, attrs...)...)
	return &Error{Code: codeInternalError, Message: msg}
}

// parseID converts a GraphQL ID into an internal integer key.
func parseID(id graphql.ID) (int64, error) {
	n, err := strconv.ParseInt(string(id), 10, 64)
	if err != nil || n <= 0 {
		return 0, badInput("invalid id %q", string(id))
	}
	return n, nil
}

func formatID(id int64) graphql.ID {
	return graphql.ID(strconv.FormatInt(id, 10))
}
