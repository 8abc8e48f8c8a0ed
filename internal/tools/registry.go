// Package tools exposes chain operations as named tools with JSON input and
// structured results.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/vietddude/zkagent/internal/metrics"
)

// Handler executes a tool. input is the raw JSON argument object.
type Handler func(ctx context.Context, input json.RawMessage) (any, error)

// Definition describes a tool to the host.
type Definition struct {
	Name             string `json:"name"`
	Description      string `json:"description"`
	InputSchemaJSON  string `json:"input_schema"`
	RequiresApproval bool   `json:"requires_approval"`
}

// Tool pairs a definition with its handler.
type Tool struct {
	Definition Definition
	Handler    Handler
}

// Result is what every invocation returns. Exactly one of Data or Error is set.
type Result struct {
	RequestID string     `json:"request_id"`
	Tool      string     `json:"tool"`
	OK        bool       `json:"ok"`
	Data      any        `json:"data,omitempty"`
	Error     *ToolError `json:"error,omitempty"`
}

// Registry holds the available tools.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]*Tool
	logger *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:  make(map[string]*Tool),
		logger: logger.With("component", "tools"),
	}
}

// Register adds tools. Names must be unique.
func (r *Registry) Register(tools ...*Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range tools {
		name := t.Definition.Name
		if name == "" || t.Handler == nil {
			return fmt.Errorf("tool %q must have a name and a handler", name)
		}
		if _, exists := r.tools[name]; exists {
			return fmt.Errorf("tool %q already registered", name)
		}
		r.tools[name] = t
	}
	return nil
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (*Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Definitions returns all tool definitions sorted by name.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]Definition, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, t.Definition)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Invoke runs the named tool. It never returns an error or panics; failures
// are reported in Result.Error. Approval for transaction tools is the host's
// responsibility.
func (r *Registry) Invoke(ctx context.Context, name string, input json.RawMessage) (res Result) {
	res = Result{RequestID: uuid.NewString(), Tool: name}
	logger := r.logger.With("tool", name, "request_id", res.RequestID)

	defer func() {
		if p := recover(); p != nil {
			logger.Error("Tool panicked", "panic", p)
			res.OK = false
			res.Data = nil
			res.Error = &ToolError{Code: CodeInternal, Message: fmt.Sprintf("tool panicked: %v", p)}
		}
		status := "ok"
		if !res.OK {
			status = res.Error.Code
		}
		metrics.ToolCalls.WithLabelValues(name, status).Inc()
	}()

	tool, ok := r.Get(name)
	if !ok {
		res.Error = &ToolError{Code: CodeUnknownTool, Message: fmt.Sprintf("unknown tool %q", name)}
		return res
	}
	if len(input) == 0 {
		input = json.RawMessage("{}")
	}

	data, err := tool.Handler(ctx, input)
	if err != nil {
		res.Error = asToolError(err)
		logger.Warn("Tool failed", "code", res.Error.Code, "error", res.Error.Message)
		return res
	}

	res.OK = true
	res.Data = data
	logger.Debug("Tool succeeded")
	return res
}

// decode unmarshals tool input into v, mapping failures to INVALID_ARGUMENT.
func decode(input json.RawMessage, v any) error {
	if err := json.Unmarshal(input, v); err != nil {
		return invalidArgument("invalid input: %v", err)
	}
	return nil
}
