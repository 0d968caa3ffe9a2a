package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/swasthya/hms-backend/internal/domain/entities"
	"github.com/swasthya/hms-backend/internal/infrastructure/observability"
	"go.opentelemetry.io/otel/attribute"
)

// ToolCall carries the arguments of one tool invocation plus the turn context
type ToolCall struct {
	Args map[string]interface{}
	// HospitalID is the turn's hospital hint, used when the model omits hospital_id.
	HospitalID *int64
	UserID     int64
}

// ToolHandler executes a tool. The returned value is a string or a JSON-encodable record list.
type ToolHandler func(ctx context.Context, call ToolCall) (interface{}, error)

// Tool is a named capability the model may invoke
type Tool struct {
	Name        string
	Description string
	Parameters  *entities.JSONSchema
	Mutating    bool
	Handler     ToolHandler
}

// ToolResult is the outcome of a dispatched call
type ToolResult struct {
	Name     string
	Output   interface{}
	Mutating bool
	Failed   bool
}

// ToolRegistry maps tool names to typed tools
type ToolRegistry struct {
	tools   map[string]Tool
	order   []string
	metrics *observability.Metrics
}

// NewToolRegistry creates an empty registry
func NewToolRegistry(metrics *observability.Metrics) *ToolRegistry {
	return &ToolRegistry{
		tools:   make(map[string]Tool),
		metrics: metrics,
	}
}

// Register adds a tool. Names must be unique.
func (r *ToolRegistry) Register(tool Tool) error {
	if tool.Name == "" || tool.Handler == nil {
		return fmt.Errorf("tool requires a name and a handler")
	}
	if _, exists := r.tools[tool.Name]; exists {
		return fmt.Errorf("tool %q already registered", tool.Name)
	}
	r.tools[tool.Name] = tool
	r.order = append(r.order, tool.Name)
	return nil
}

// Lookup returns the tool registered under name
func (r *ToolRegistry) Lookup(name string) (Tool, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

// Declarations lists every registered tool in registration order
func (r *ToolRegistry) Declarations() []entities.ToolDeclaration {
	decls := make([]entities.ToolDeclaration, 0, len(r.order))
	for _, name := range r.order {
		tool := r.tools[name]
		decls = append(decls, entities.ToolDeclaration{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  tool.Parameters,
		})
	}
	return decls
}

// Dispatch runs the named tool. Unknown tools, handler errors and panics are
// turned into a descriptive string result.
func (r *ToolRegistry) Dispatch(ctx context.Context, name string, call ToolCall) (result ToolResult) {
	ctx, span := observability.StartSpan(ctx, "agent.tool")
	defer span.End()
	observability.SetSpanAttributes(span, attribute.String("agent.tool", name))

	logger := observability.LoggerFromContext(ctx)
	result = ToolResult{Name: name}

	tool, ok := r.tools[name]
	if !ok {
		result.Output = fmt.Sprintf("Error: Unknown tool '%s'.", name)
		result.Failed = true
		observability.RecordToolCall(ctx, r.metrics, name, true)
		return result
	}
	result.Mutating = tool.Mutating

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error().Interface("panic", rec).Str("tool", name).Msg("Tool panicked")
			result.Output = fmt.Sprintf("Error executing %s: internal error", name)
			result.Failed = true
		}
		observability.RecordToolCall(ctx, r.metrics, name, result.Failed)
	}()

	if call.Args == nil {
		call.Args = map[string]interface{}{}
	}
	output, err := tool.Handler(ctx, call)
	if err != nil {
		observability.RecordError(span, err)
		logger.Warn().Err(err).Str("tool", name).Msg("Tool returned an error")
		result.Output = fmt.Sprintf("Error executing %s: %v", name, err)
		result.Failed = true
		return result
	}

	logger.Info().Str("tool", name).Bool("mutating", tool.Mutating).Msg("Tool executed")
	result.Output = output
	return result
}

// IntArg reads an integer argument. Models send numbers as JSON floats and
// sometimes as numeric strings; both are accepted.
func IntArg(args map[string]interface{}, key string) (int64, bool, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return 0, false, nil
	}
	switch v := raw.(type) {
	case float64:
		if v != math.Trunc(v) {
			return 0, true, fmt.Errorf("%s must be an integer, got %v", key, v)
		}
		return int64(v), true, nil
	case int:
		return int64(v), true, nil
	case int64:
		return v, true, nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, true, fmt.Errorf("%s must be an integer: %w", key, err)
		}
		return n, true, nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, false, nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			f, ferr := strconv.ParseFloat(s, 64)
			if ferr != nil || f != math.Trunc(f) {
				return 0, true, fmt.Errorf("%s must be an integer, got %q", key, v)
			}
			n = int64(f)
		}
		return n, true, nil
	default:
		return 0, true, fmt.Errorf("%s must be an integer, got %T", key, raw)
	}
}

// StringArg reads a string argument; non-string scalars are formatted
func StringArg(args map[string]interface{}, key string) (string, bool) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return "", false
	}
	if s, ok := raw.(string); ok {
		return s, true
	}
	return fmt.Sprint(raw), true
}
