// Package tools is the registry of actions a model may invoke during a
// generation run. A registry is built per run from the run's capability set
// and is not changed afterwards.
package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/everydev1618/dockwright/llm"
)

// Standard errors
var (
	// ErrToolNotFound is returned when a tool is not registered
	ErrToolNotFound = errors.New("tool not found")

	// ErrToolAlreadyRegistered is returned when trying to register a duplicate tool name.
	ErrToolAlreadyRegistered = errors.New("tool already registered")

	// ErrMissingParam is returned when a required parameter is absent.
	ErrMissingParam = errors.New("missing required parameter")
)

// ToolError wraps errors with tool context.
type ToolError struct {
	ToolName string
	Err      error
}

func (e *ToolError) Error() string {
	return "tool " + e.ToolName + ": " + e.Err.Error()
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// Tools is a collection of callable tools.
type Tools struct {
	tools      map[string]*tool
	middleware []ToolMiddleware
	mu         sync.RWMutex
}

// tool is an internal representation of a registered tool.
type tool struct {
	name        string
	description string
	fn          ToolFunc
	schema      llm.ToolSchema
	params      map[string]ParamDef
}

// ParamDef defines a tool parameter.
type ParamDef struct {
	Type        string   `json:"type" yaml:"type"`
	Description string   `json:"description" yaml:"description"`
	Required    bool     `json:"required" yaml:"required"`
	Default     any      `json:"default,omitempty" yaml:"default,omitempty"`
	Enum        []string `json:"enum,omitempty" yaml:"enum,omitempty"`
}

// ToolDef allows explicit tool definition with schema.
type ToolDef struct {
	Description string
	Fn          ToolFunc
	Params      map[string]ParamDef
}

// ToolMiddleware wraps tool execution.
type ToolMiddleware func(name string, next ToolFunc) ToolFunc

// ToolFunc is the signature for tool execution.
type ToolFunc func(ctx context.Context, params map[string]any) (string, error)

// NewTools creates a new Tools collection.
func NewTools() *Tools {
	return &Tools{
		tools: make(map[string]*tool),
	}
}

// Register adds a tool to the collection.
func (t *Tools) Register(name string, def ToolDef) error {
	if name == "" {
		return errors.New("tool name is required")
	}
	if def.Fn == nil {
		return fmt.Errorf("tool %s: function is required", name)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.tools[name]; exists {
		return fmt.Errorf("%w: %s", ErrToolAlreadyRegistered, name)
	}

	t.tools[name] = &tool{
		name:        name,
		description: def.Description,
		fn:          def.Fn,
		params:      def.Params,
		schema:      buildSchema(name, def.Description, def.Params),
	}
	return nil
}

// Use adds middleware to the tool chain. Middleware registered first runs
// outermost.
func (t *Tools) Use(mw ToolMiddleware) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.middleware = append(t.middleware, mw)
}

// Has reports whether a tool is registered.
func (t *Tools) Has(name string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.tools[name]
	return ok
}

// Names returns the registered tool names in sorted order.
func (t *Tools) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.tools))
	for name := range t.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute calls a tool by name. Defaults are filled in for absent optional
// parameters; an absent required parameter fails with ErrMissingParam.
func (t *Tools) Execute(ctx context.Context, name string, params map[string]any) (string, error) {
	t.mu.RLock()
	tl, ok := t.tools[name]
	middleware := t.middleware
	t.mu.RUnlock()

	if !ok {
		return "", &ToolError{ToolName: name, Err: ErrToolNotFound}
	}

	params, err := tl.applyDefaults(params)
	if err != nil {
		return "", &ToolError{ToolName: name, Err: err}
	}

	exec := tl.fn
	for i := len(middleware) - 1; i >= 0; i-- {
		exec = middleware[i](name, exec)
	}

	result, err := exec(ctx, params)
	if err != nil {
		return "", &ToolError{ToolName: name, Err: err}
	}

	return result, nil
}

func (tl *tool) applyDefaults(params map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(params)+len(tl.params))
	for k, v := range params {
		out[k] = v
	}
	for pname, pdef := range tl.params {
		if _, ok := out[pname]; ok {
			continue
		}
		if pdef.Required {
			return nil, fmt.Errorf("%w: %s", ErrMissingParam, pname)
		}
		if pdef.Default != nil {
			out[pname] = pdef.Default
		}
	}
	return out, nil
}

// Schema returns the schemas for all tools, ordered by name.
func (t *Tools) Schema() []llm.ToolSchema {
	t.mu.RLock()
	defer t.mu.RUnlock()

	schemas := make([]llm.ToolSchema, 0, len(t.tools))
	for _, tl := range t.tools {
		schemas = append(schemas, tl.schema)
	}
	sort.Slice(schemas, func(i, j int) bool {
		return schemas[i].Name < schemas[j].Name
	})
	return schemas
}

// buildSchema builds a schema from explicit definitions.
func buildSchema(name, description string, params map[string]ParamDef) llm.ToolSchema {
	props := make(map[string]any)
	required := []string{}

	for pname, pdef := range params {
		prop := map[string]any{
			"type": pdef.Type,
		}
		if pdef.Description != "" {
			prop["description"] = pdef.Description
		}
		if len(pdef.Enum) > 0 {
			prop["enum"] = pdef.Enum
		}
		if pdef.Default != nil {
			prop["default"] = pdef.Default
		}
		props[pname] = prop

		if pdef.Required {
			required = append(required, pname)
		}
	}
	sort.Strings(required)

	return llm.ToolSchema{
		Name:        name,
		Description: description,
		InputSchema: map[string]any{
			"type":       "object",
			"properties": props,
			"required":   required,
		},
	}
}
