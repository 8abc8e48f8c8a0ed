package tools

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vietddude/zkagent/internal/core/domain"
	"github.com/vietddude/zkagent/internal/infra/chain"
)

// Error codes returned in Result.Error.
const (
	CodeInvalidArgument = "INVALID_ARGUMENT"
	CodeNotInitialized  = "NOT_INITIALIZED"
	CodeUpstreamFailure = "UPSTREAM_FAILURE"
	CodeTxFailed        = "TX_FAILED"
	CodeNotImplemented  = "NOT_IMPLEMENTED"
	CodeUnknownTool     = "UNKNOWN_TOOL"
	CodeInternal        = "INTERNAL"
)

// ToolError is the structured error carried across the tool boundary.
type ToolError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Cause   error          `json:"-"`
}

func (e *ToolError) Error() string {
	if e == nil {
		return ""
	}
	code := strings.TrimSpace(e.Code)
	msg := strings.TrimSpace(e.Message)
	switch {
	case code == "":
		return msg
	case msg == "":
		return code
	default:
		return fmt.Sprintf("%s: %s", code, msg)
	}
}

func (e *ToolError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func invalidArgument(format string, args ...any) *ToolError {
	return &ToolError{Code: CodeInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

func notInitialized(what string) *ToolError {
	return &ToolError{Code: CodeNotInitialized, Message: what + " is not initialized"}
}

func txFailed(action string, result *domain.TxResult) *ToolError {
	return &ToolError{
		Code:    CodeTxFailed,
		Message: fmt.Sprintf("%s rejected with code %d", action, result.Code),
		Details: map[string]any{
			"code":    result.Code,
			"tx_hash": result.TxHash,
			"raw_log": result.RawLog,
		},
	}
}

// asToolError maps handler errors onto the structured error taxonomy.
func asToolError(err error) *ToolError {
	var te *ToolError
	if errors.As(err, &te) {
		return te
	}
	if errors.Is(err, chain.ErrNotInitialized) || errors.Is(err, chain.ErrShutdown) {
		return &ToolError{Code: CodeNotInitialized, Message: err.Error(), Cause: err}
	}
	return &ToolError{Code: CodeUpstreamFailure, Message: err.Error(), Cause: err}
}
